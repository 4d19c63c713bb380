package access

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"belenavidad.es/discord-bot/internal/common"
	"belenavidad.es/discord-bot/internal/features/players"
)

type Handler struct {
	service *Service
	session *discordgo.Session
}

func NewHandler(service *Service, session *discordgo.Session) *Handler {
	return &Handler{service: service, session: session}
}

// HandleElevate — !admin <contraseña>, DM only. The caller supplies the shared
// admin password and, if it checks out, gets persisted as administrator.
func (h *Handler) HandleElevate(ctx context.Context, channelID, userID string, args []string) {
	if len(args) < 1 {
		h.send(channelID, "❌ Formato: admin <contraseña>")
		return
	}

	if err := h.service.Elevate(ctx, userID, args[0]); err != nil {
		switch {
		case errors.Is(err, common.ErrTooManyAttempts):
			h.send(channelID, "❌ Demasiados intentos. Espera una hora antes de volver a intentarlo.")
		case errors.Is(err, common.ErrWrongPassword):
			h.send(channelID, "❌ Contraseña incorrecta")
		default:
			log.WithError(err).Error("elevate failed")
			h.send(channelID, "❌ No se pudo procesar la solicitud")
		}
		return
	}
	h.send(channelID, "👑 Ahora eres administrador")
}

// HandleAddAdmin — !agregar_admin <jugador>
func (h *Handler) HandleAddAdmin(ctx context.Context, channelID string, args []string) {
	target, ok := h.parseTarget(channelID, args)
	if !ok {
		return
	}
	added, err := h.service.AddAdmin(ctx, target)
	if err != nil {
		log.WithError(err).Error("add admin failed")
		h.send(channelID, "❌ No se pudo agregar el administrador")
		return
	}
	if !added {
		h.send(channelID, fmt.Sprintf("ℹ️ <@%s> ya era administrador", target))
		return
	}
	h.send(channelID, fmt.Sprintf("👑 <@%s> ahora es administrador", target))
}

// HandleRemoveAdmin — !eliminar_admin <jugador>
func (h *Handler) HandleRemoveAdmin(ctx context.Context, channelID string, args []string) {
	target, ok := h.parseTarget(channelID, args)
	if !ok {
		return
	}
	removed, err := h.service.RemoveAdmin(ctx, target)
	if err != nil {
		log.WithError(err).Error("remove admin failed")
		h.send(channelID, "❌ No se pudo eliminar el administrador")
		return
	}
	if !removed {
		h.send(channelID, fmt.Sprintf("ℹ️ <@%s> no era administrador", target))
		return
	}
	h.send(channelID, fmt.Sprintf("✅ <@%s> ya no es administrador", target))
}

// HandleBlock — !admin_bloquear <jugador> [motivo...]
func (h *Handler) HandleBlock(ctx context.Context, channelID string, args []string) {
	target, ok := h.parseTarget(channelID, args)
	if !ok {
		return
	}
	var reason *string
	if len(args) > 1 {
		r := strings.Join(args[1:], " ")
		reason = &r
	}
	blocked, err := h.service.Block(ctx, target, reason)
	if err != nil {
		log.WithError(err).Error("block failed")
		h.send(channelID, "❌ No se pudo bloquear al jugador")
		return
	}
	if !blocked {
		h.send(channelID, fmt.Sprintf("ℹ️ <@%s> ya estaba bloqueado", target))
		return
	}
	h.send(channelID, fmt.Sprintf("🚫 <@%s> bloqueado", target))
}

// HandleUnblock — !admin_desbloquear <jugador>
func (h *Handler) HandleUnblock(ctx context.Context, channelID string, args []string) {
	target, ok := h.parseTarget(channelID, args)
	if !ok {
		return
	}
	unblocked, err := h.service.Unblock(ctx, target)
	if err != nil {
		log.WithError(err).Error("unblock failed")
		h.send(channelID, "❌ No se pudo desbloquear al jugador")
		return
	}
	if !unblocked {
		h.send(channelID, fmt.Sprintf("ℹ️ <@%s> no estaba bloqueado", target))
		return
	}
	h.send(channelID, fmt.Sprintf("✅ <@%s> desbloqueado", target))
}

// HandleListAdmins — !admin_listar
func (h *Handler) HandleListAdmins(ctx context.Context, channelID string) {
	ids, err := h.service.ListAdmins(ctx)
	if err != nil {
		log.WithError(err).Error("list admins failed")
		h.send(channelID, "❌ No se pudieron cargar los administradores")
		return
	}
	if len(ids) == 0 {
		h.send(channelID, "📭 No hay administradores registrados")
		return
	}
	var sb strings.Builder
	sb.WriteString("👑 **Administradores**\n")
	for _, id := range ids {
		sb.WriteString(fmt.Sprintf("• <@%s>\n", id))
	}
	h.send(channelID, sb.String())
}

// HandleListBlocked — !admin_bloqueados: blocked users with reason and date.
func (h *Handler) HandleListBlocked(ctx context.Context, channelID string) {
	blocked, err := h.service.ListBlocked(ctx)
	if err != nil {
		log.WithError(err).Error("list blocked failed")
		h.send(channelID, "❌ No se pudieron cargar los usuarios bloqueados")
		return
	}
	if len(blocked) == 0 {
		h.send(channelID, "📭 No hay usuarios bloqueados")
		return
	}
	var sb strings.Builder
	sb.WriteString("🚫 **Usuarios bloqueados**\n")
	for _, u := range blocked {
		reason := "sin motivo"
		if u.Reason != nil && *u.Reason != "" {
			reason = *u.Reason
		}
		sb.WriteString(fmt.Sprintf("• <@%s> — %s (desde %s)\n", u.ID, reason, common.FormatDateTime(u.CreatedAt)))
	}
	h.send(channelID, sb.String())
}

func (h *Handler) parseTarget(channelID string, args []string) (string, bool) {
	if len(args) < 1 {
		h.send(channelID, "❌ Menciona al jugador o indica su ID")
		return "", false
	}
	target := players.ParseUserRef(args[0])
	if target == "" {
		h.send(channelID, "❌ Menciona al jugador o indica su ID")
		return "", false
	}
	return target, true
}

func (h *Handler) send(channelID, text string) {
	if _, err := h.session.ChannelMessageSend(channelID, text); err != nil {
		log.WithError(err).WithField("channel_id", channelID).Error("send message failed")
	}
}
