package players

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"belenavidad.es/discord-bot/internal/common"
)

type Handler struct {
	service *Service
	session *discordgo.Session
}

func NewHandler(service *Service, session *discordgo.Session) *Handler {
	return &Handler{service: service, session: session}
}

// HandleBalance — !monedas
func (h *Handler) HandleBalance(ctx context.Context, channelID, userID string) {
	coins, err := h.service.GetCoins(ctx, userID)
	if err != nil {
		log.WithError(err).Error("get balance failed")
		h.send(channelID, "❌ No se pudo consultar tu saldo")
		return
	}
	h.send(channelID, fmt.Sprintf("💰 Tienes %s", common.FormatCoins(coins)))
}

// HandleAdminGive — !admin_dar_monedas <jugador> <cantidad>
func (h *Handler) HandleAdminGive(ctx context.Context, channelID string, args []string) {
	h.adjust(ctx, channelID, args, true)
}

// HandleAdminTake — !admin_quitar_monedas <jugador> <cantidad>
func (h *Handler) HandleAdminTake(ctx context.Context, channelID string, args []string) {
	h.adjust(ctx, channelID, args, false)
}

func (h *Handler) adjust(ctx context.Context, channelID string, args []string, give bool) {
	if len(args) < 2 || !common.IsNumeric(args[1]) {
		h.send(channelID, "❌ Formato: <jugador> <cantidad>")
		return
	}
	target := ParseUserRef(args[0])
	if target == "" {
		h.send(channelID, "❌ Menciona al jugador o indica su ID")
		return
	}
	amount, _ := common.ParseID(args[1])

	var (
		balance int64
		err     error
	)
	if give {
		balance, err = h.service.Give(ctx, target, amount)
	} else {
		balance, err = h.service.Take(ctx, target, amount)
	}
	if err != nil {
		switch {
		case errors.Is(err, common.ErrInvalidAmount):
			h.send(channelID, "❌ La cantidad debe ser positiva")
		case errors.Is(err, common.ErrPlayerNotFound):
			h.send(channelID, "❌ Jugador no encontrado")
		default:
			log.WithError(err).Error("adjust coins failed")
			h.send(channelID, "❌ No se pudo actualizar el saldo")
		}
		return
	}

	verb := "quitado a"
	if give {
		verb = "dado a"
	}
	h.send(channelID, fmt.Sprintf("✅ Has %s <@%s> %s. Saldo actual: %s",
		verb, target, common.FormatCoins(amount), common.FormatCoins(balance)))
}

// ParseUserRef extracts a user ID from a Discord mention (<@123>, <@!123>)
// or a bare numeric ID. Returns "" when the token is neither.
func ParseUserRef(token string) string {
	id := strings.TrimSuffix(strings.TrimPrefix(token, "<@"), ">")
	id = strings.TrimPrefix(id, "!")
	if common.IsNumeric(id) {
		return id
	}
	return ""
}

func (h *Handler) send(channelID, text string) {
	if _, err := h.session.ChannelMessageSend(channelID, text); err != nil {
		log.WithError(err).WithField("channel_id", channelID).Error("send message failed")
	}
}
