// Package belenes — handlers.go renders the belén commands:
// crear_belen, unirse_belen, aceptar_solicitud, rechazar_solicitud,
// salir_belen, ver_belen and admin_eliminar_belen.
package belenes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"belenavidad.es/discord-bot/internal/common"
)

// Notifier delivers best-effort direct messages. Failures are the
// notifier's problem; handlers never see them.
type Notifier interface {
	DirectMessage(userID, text string)
}

// Handler turns belén commands into service calls and renders results.
type Handler struct {
	service  *Service
	session  *discordgo.Session
	notifier Notifier
}

func NewHandler(service *Service, session *discordgo.Session, notifier Notifier) *Handler {
	return &Handler{service: service, session: session, notifier: notifier}
}

// HandleCreate — !crear_belen <nombre> [descripción...]
func (h *Handler) HandleCreate(ctx context.Context, channelID, userID string, args []string) {
	if len(args) < 1 {
		h.send(channelID, "❌ Formato: crear_belen <nombre> [descripción]")
		return
	}

	name := args[0]
	var description *string
	if len(args) > 1 {
		d := strings.Join(args[1:], " ")
		description = &d
	}

	belen, err := h.service.Create(ctx, name, userID, description)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrDuplicateName):
			h.send(channelID, "❌ Ya existe un belén con ese nombre")
		case errors.Is(err, common.ErrAlreadyMember):
			h.send(channelID, "❌ Ya perteneces a un belén. Sal primero con salir_belen")
		case errors.Is(err, common.ErrInvalidName):
			h.send(channelID, "❌ El nombre no puede estar vacío")
		default:
			log.WithError(err).Error("create belen failed")
			h.send(channelID, "❌ No se pudo crear el belén")
		}
		return
	}

	h.send(channelID, fmt.Sprintf("🏠 Belén **%s** creado (ID %d). ¡Ya eres su creador!", belen.Name, belen.ID))
}

// HandleJoin — !unirse_belen <id|nombre>
func (h *Handler) HandleJoin(ctx context.Context, channelID, userID string, args []string) {
	if len(args) < 1 {
		h.send(channelID, "❌ Formato: unirse_belen <id|nombre>")
		return
	}

	belen, err := h.service.Find(ctx, strings.Join(args, " "))
	if err != nil {
		h.renderFindError(channelID, err)
		return
	}

	requestID, _, err := h.service.RequestJoin(ctx, belen.ID, userID)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrAlreadyMember):
			h.send(channelID, "❌ Ya perteneces a un belén")
		case errors.Is(err, common.ErrBelenNotFound):
			h.send(channelID, "❌ Belén no encontrado")
		default:
			log.WithError(err).Error("join request failed")
			h.send(channelID, "❌ No se pudo enviar la solicitud")
		}
		return
	}

	h.send(channelID, fmt.Sprintf("📨 Solicitud #%d enviada al belén **%s**. Su creador decidirá.", requestID, belen.Name))

	// Post-commit side effect: tell the creator. Best effort only.
	h.notifier.DirectMessage(belen.CreatorID, fmt.Sprintf(
		"📨 Nueva solicitud #%d para unirse a tu belén **%s** (<@%s>). Usa aceptar_solicitud %d o rechazar_solicitud %d.",
		requestID, belen.Name, userID, requestID, requestID))
}

// HandleResolve — !aceptar_solicitud <id> / !rechazar_solicitud <id>
func (h *Handler) HandleResolve(ctx context.Context, channelID, userID string, args []string, decision Decision) {
	if len(args) < 1 || !common.IsNumeric(args[0]) {
		h.send(channelID, "❌ Indica el ID numérico de la solicitud")
		return
	}
	requestID, _ := common.ParseID(args[0])

	req, err := h.service.Resolve(ctx, requestID, userID, decision)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrRequestNotFound):
			h.send(channelID, "❌ Solicitud no encontrada")
		case errors.Is(err, common.ErrAlreadyProcessed):
			h.send(channelID, "❌ Esa solicitud ya fue procesada")
		case errors.Is(err, common.ErrForbidden):
			h.send(channelID, "❌ Solo el creador del belén o un admin puede decidir")
		default:
			log.WithError(err).Error("resolve request failed")
			h.send(channelID, "❌ No se pudo procesar la solicitud")
		}
		return
	}

	if decision == DecisionAccept {
		h.send(channelID, fmt.Sprintf("✅ Solicitud #%d aceptada: **%s** ya es miembro de **%s**", req.ID, req.Username, req.BelenName))
		h.notifier.DirectMessage(req.PlayerID, fmt.Sprintf("🎉 ¡Tu solicitud para unirte a **%s** fue aceptada!", req.BelenName))
	} else {
		h.send(channelID, fmt.Sprintf("🚫 Solicitud #%d rechazada", req.ID))
		h.notifier.DirectMessage(req.PlayerID, fmt.Sprintf("😔 Tu solicitud para unirte a **%s** fue rechazada", req.BelenName))
	}
}

// HandleLeave — !salir_belen
func (h *Handler) HandleLeave(ctx context.Context, channelID, userID string) {
	res, err := h.service.Leave(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotMember) {
			h.send(channelID, "❌ No perteneces a ningún belén")
			return
		}
		log.WithError(err).Error("leave failed")
		h.send(channelID, "❌ No se pudo salir del belén")
		return
	}

	if res.Deleted {
		h.send(channelID, fmt.Sprintf("🗑️ Eras el creador: el belén **%s** fue eliminado con todas sus piezas", res.Belen.Name))
	} else {
		h.send(channelID, fmt.Sprintf("👋 Has salido del belén **%s**", res.Belen.Name))
	}
}

// HandleView — !ver_belen: panel with pieces, roster and (for the creator)
// pending requests.
func (h *Handler) HandleView(ctx context.Context, channelID, userID string) {
	belen, err := h.service.BelenForPlayer(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotMember) {
			h.send(channelID, "❌ No perteneces a ningún belén. Crea uno con crear_belen o únete con unirse_belen")
			return
		}
		log.WithError(err).Error("view belen failed")
		h.send(channelID, "❌ No se pudo cargar el belén")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🏠 **%s** (ID %d)\n", belen.Name, belen.ID))
	if belen.Description != nil && *belen.Description != "" {
		sb.WriteString(*belen.Description + "\n")
	}

	pieces, err := h.service.Pieces(ctx, belen.ID)
	if err != nil {
		log.WithError(err).Warn("load pieces failed")
	}
	sb.WriteString("\n🎁 **Piezas compradas**\n")
	if len(pieces) == 0 {
		sb.WriteString("Ninguna todavía\n")
	}
	for _, p := range pieces {
		sb.WriteString(fmt.Sprintf("%s %s ×%d — %s\n", p.Icon, p.ItemName, p.Quantity, p.BuyerName))
	}

	members, err := h.service.Members(ctx, belen.ID)
	if err != nil {
		log.WithError(err).Warn("load members failed")
	}
	sb.WriteString("\n👥 **Miembros**\n")
	for _, m := range members {
		sb.WriteString(fmt.Sprintf("%s — aportación %s\n", m.Username, common.FormatCoins(m.Contribution)))
	}

	if userID == belen.CreatorID {
		pending, err := h.service.Pending(ctx, belen.ID, userID)
		if err == nil && len(pending) > 0 {
			sb.WriteString("\n📨 **Solicitudes pendientes**\n")
			for _, r := range pending {
				sb.WriteString(fmt.Sprintf("#%d %s (%s)\n", r.ID, r.Username, common.FormatDateTime(r.CreatedAt)))
			}
		}
	}

	h.send(channelID, sb.String())
}

// HandleAdminDelete — !admin_eliminar_belen <id|nombre>
func (h *Handler) HandleAdminDelete(ctx context.Context, channelID, userID string, args []string) {
	if len(args) < 1 {
		h.send(channelID, "❌ Formato: admin_eliminar_belen <id|nombre>")
		return
	}

	belen, err := h.service.Find(ctx, strings.Join(args, " "))
	if err != nil {
		h.renderFindError(channelID, err)
		return
	}

	deleted, err := h.service.Delete(ctx, belen.ID, userID)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrForbidden):
			h.send(channelID, "❌ Solo los administradores pueden eliminar belenes")
		case errors.Is(err, common.ErrBelenNotFound):
			h.send(channelID, "❌ Belén no encontrado")
		default:
			log.WithError(err).Error("admin delete belen failed")
			h.send(channelID, "❌ No se pudo eliminar el belén")
		}
		return
	}

	h.send(channelID, fmt.Sprintf("🗑️ Belén **%s** eliminado", deleted.Name))
}

func (h *Handler) renderFindError(channelID string, err error) {
	if errors.Is(err, common.ErrBelenNotFound) {
		h.send(channelID, "❌ Belén no encontrado")
		return
	}
	log.WithError(err).Error("find belen failed")
	h.send(channelID, "❌ Error buscando el belén")
}

func (h *Handler) send(channelID, text string) {
	if _, err := h.session.ChannelMessageSend(channelID, text); err != nil {
		log.WithError(err).WithField("channel_id", channelID).Error("send message failed")
	}
}
