// Package store — handlers.go renders the store commands: tienda,
// tienda_comprar (with a confirm/cancel prompt) and the admin catalog CRUD.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"belenavidad.es/discord-bot/internal/common"
	"belenavidad.es/discord-bot/internal/features/players"
)

// Confirmer holds one pending action per user until the user confirms,
// cancels, or the prompt times out (then the action is dropped with no
// state change).
type Confirmer interface {
	Push(userID, summary string, run func(ctx context.Context)) (token string, expiresAt time.Time)
}

// Handler turns store commands into service calls and renders results.
type Handler struct {
	service  *Service
	players  *players.Service
	session  *discordgo.Session
	confirms Confirmer
}

func NewHandler(service *Service, playerService *players.Service, session *discordgo.Session, confirms Confirmer) *Handler {
	return &Handler{service: service, players: playerService, session: session, confirms: confirms}
}

// HandleList — !tienda
func (h *Handler) HandleList(ctx context.Context, channelID string) {
	items, err := h.service.ListItems(ctx)
	if err != nil {
		log.WithError(err).Error("list items failed")
		h.send(channelID, "❌ No se pudo cargar la tienda")
		return
	}
	if len(items) == 0 {
		h.send(channelID, "🏪 La tienda está vacía")
		return
	}

	var sb strings.Builder
	sb.WriteString("🏪 **Catálogo de piezas**\n")
	for _, it := range items {
		sb.WriteString(fmt.Sprintf("%s **%s** (ID %d) — %s", it.Icon, it.Name, it.ID, common.FormatCoins(it.Price)))
		if it.Description != nil && *it.Description != "" {
			sb.WriteString(" · " + *it.Description)
		}
		sb.WriteString("\n")
	}
	h.send(channelID, sb.String())
}

// HandleBuy — !tienda_comprar <pieza> [cantidad]
// Shows a confirmation prompt; the purchase itself only runs when the user
// sends confirmar before the prompt expires.
func (h *Handler) HandleBuy(ctx context.Context, channelID, userID string, args []string) {
	if len(args) < 1 {
		h.send(channelID, "❌ Formato: tienda_comprar <pieza> [cantidad]")
		return
	}

	quantity := int64(1)
	itemArgs := args
	if len(args) > 1 && common.IsNumeric(args[len(args)-1]) {
		quantity, _ = common.ParseID(args[len(args)-1])
		itemArgs = args[:len(args)-1]
	}
	if quantity < 1 {
		h.send(channelID, "❌ La cantidad debe ser al menos 1")
		return
	}

	item, err := h.service.FindItem(ctx, strings.Join(itemArgs, " "))
	if err != nil {
		if errors.Is(err, common.ErrItemNotFound) {
			h.send(channelID, "❌ Pieza no encontrada")
			return
		}
		log.WithError(err).Error("find item failed")
		h.send(channelID, "❌ Error buscando la pieza")
		return
	}

	belen, err := h.service.BelenFor(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotMember) {
			h.send(channelID, "❌ Necesitas pertenecer a un belén para comprar piezas")
			return
		}
		log.WithError(err).Error("member lookup failed")
		h.send(channelID, "❌ Error comprobando tu belén")
		return
	}

	balance, err := h.players.GetCoins(ctx, userID)
	if err != nil {
		log.WithError(err).Error("balance lookup failed")
		h.send(channelID, "❌ Error consultando tu saldo")
		return
	}

	total := item.Price * quantity
	belenID := belen.ID
	itemID := item.ID

	token, expiresAt := h.confirms.Push(userID, fmt.Sprintf("%d × %s", quantity, item.Name), func(ctx context.Context) {
		h.executePurchase(ctx, channelID, userID, belenID, itemID, quantity)
	})

	h.send(channelID, fmt.Sprintf(
		"🛒 ¿Comprar %d × %s **%s** por %s para el belén **%s**?\nSaldo actual: %s · Saldo después: %s\nReferencia: `%s`\nResponde `confirmar` o `cancelar` antes de las %s.",
		quantity, item.Icon, item.Name, common.FormatCoins(total), belen.Name,
		common.FormatCoins(balance), common.FormatCoins(balance-total),
		token, expiresAt.Format("15:04:05")))
}

func (h *Handler) executePurchase(ctx context.Context, channelID, userID string, belenID, itemID, quantity int64) {
	res, err := h.service.Purchase(ctx, userID, belenID, itemID, quantity)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrInsufficientCoins):
			h.send(channelID, fmt.Sprintf("❌ Saldo insuficiente (%v)", err))
		case errors.Is(err, common.ErrForbidden):
			h.send(channelID, "❌ Solo puedes comprar piezas para tu propio belén")
		case errors.Is(err, common.ErrItemNotFound):
			h.send(channelID, "❌ Esa pieza ya no existe")
		case errors.Is(err, common.ErrInvalidAmount):
			h.send(channelID, "❌ La cantidad debe ser al menos 1")
		default:
			log.WithError(err).Error("purchase failed")
			h.send(channelID, "❌ No se pudo completar la compra")
		}
		return
	}

	h.send(channelID, fmt.Sprintf("✅ Comprado %d × %s **%s** por %s. Saldo: %s",
		res.Quantity, res.Item.Icon, res.Item.Name,
		common.FormatCoins(res.TotalCost), common.FormatCoins(res.NewBalance)))
}

// HandleAdminAdd — !admin_agregar_producto <nombre> <precio> [descripción...]
func (h *Handler) HandleAdminAdd(ctx context.Context, channelID string, args []string) {
	if len(args) < 2 || !common.IsNumeric(args[1]) {
		h.send(channelID, "❌ Formato: admin_agregar_producto <nombre> <precio> [descripción]")
		return
	}
	name := args[0]
	price, _ := common.ParseID(args[1])
	var description *string
	if len(args) > 2 {
		d := strings.Join(args[2:], " ")
		description = &d
	}

	id, err := h.service.CreateItem(ctx, name, price, description, "")
	if err != nil {
		switch {
		case errors.Is(err, common.ErrInvalidAmount):
			h.send(channelID, "❌ El precio debe ser positivo")
		case errors.Is(err, common.ErrInvalidName):
			h.send(channelID, "❌ El nombre no puede estar vacío")
		default:
			log.WithError(err).Error("create item failed")
			h.send(channelID, "❌ No se pudo crear el producto")
		}
		return
	}
	h.send(channelID, fmt.Sprintf("✅ Producto **%s** creado (ID %d, %s)", name, id, common.FormatCoins(price)))
}

// HandleAdminUpdatePrice — !admin_modificar_producto <id|nombre> <precio>
// Price is the field admins change in practice; name/description edits go
// through delete+create.
func (h *Handler) HandleAdminUpdatePrice(ctx context.Context, channelID string, args []string) {
	if len(args) < 2 || !common.IsNumeric(args[1]) {
		h.send(channelID, "❌ Formato: admin_modificar_producto <id|nombre> <precio>")
		return
	}

	item, err := h.service.FindItem(ctx, args[0])
	if err != nil {
		h.send(channelID, "❌ Producto no encontrado")
		return
	}
	price, _ := common.ParseID(args[1])

	if err := h.service.UpdateItem(ctx, item.ID, ItemUpdate{Price: &price}); err != nil {
		if errors.Is(err, common.ErrInvalidAmount) {
			h.send(channelID, "❌ El precio debe ser positivo")
			return
		}
		log.WithError(err).Error("update item failed")
		h.send(channelID, "❌ No se pudo modificar el producto")
		return
	}
	h.send(channelID, fmt.Sprintf("✅ Producto **%s** ahora cuesta %s", item.Name, common.FormatCoins(price)))
}

// HandleAdminDelete — !admin_eliminar_producto <id|nombre>
func (h *Handler) HandleAdminDelete(ctx context.Context, channelID string, args []string) {
	if len(args) < 1 {
		h.send(channelID, "❌ Formato: admin_eliminar_producto <id|nombre>")
		return
	}

	item, err := h.service.FindItem(ctx, strings.Join(args, " "))
	if err != nil {
		h.send(channelID, "❌ Producto no encontrado")
		return
	}

	if err := h.service.DeleteItem(ctx, item.ID); err != nil {
		log.WithError(err).Error("delete item failed")
		h.send(channelID, "❌ No se pudo eliminar el producto")
		return
	}
	h.send(channelID, fmt.Sprintf("🗑️ Producto **%s** eliminado", item.Name))
}

func (h *Handler) send(channelID, text string) {
	if _, err := h.session.ChannelMessageSend(channelID, text); err != nil {
		log.WithError(err).WithField("channel_id", channelID).Error("send message failed")
	}
}
