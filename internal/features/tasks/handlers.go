// Package tasks — handlers.go renders the task commands: tareas,
// agregar_tarea (submit), the admin review commands and the admin CRUD.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"belenavidad.es/discord-bot/internal/common"
)

// Notifier delivers best-effort direct messages.
type Notifier interface {
	DirectMessage(userID, text string)
}

type Handler struct {
	service  *Service
	session  *discordgo.Session
	notifier Notifier
}

func NewHandler(service *Service, session *discordgo.Session, notifier Notifier) *Handler {
	return &Handler{service: service, session: session, notifier: notifier}
}

// HandleList — !tareas: tasks the caller can still earn.
func (h *Handler) HandleList(ctx context.Context, channelID, userID string) {
	tasks, err := h.service.Available(ctx, userID)
	if err != nil {
		log.WithError(err).Error("list tasks failed")
		h.send(channelID, "❌ No se pudieron cargar las tareas")
		return
	}
	if len(tasks) == 0 {
		h.send(channelID, "📋 No tienes tareas disponibles. ¡Ya las has completado todas!")
		return
	}

	var sb strings.Builder
	sb.WriteString("📋 **Tareas disponibles**\n")
	for _, t := range tasks {
		sb.WriteString(fmt.Sprintf("**%s** (ID %d) — %s 🪙\n%s\n", t.Name, t.ID, common.FormatCoins(t.Reward), t.Description))
	}
	h.send(channelID, sb.String())
}

// HandleSubmit — !agregar_tarea <tarea_id> [nota...]
func (h *Handler) HandleSubmit(ctx context.Context, channelID, userID string, args []string) {
	if len(args) < 1 || !common.IsNumeric(args[0]) {
		h.send(channelID, "❌ Formato: agregar_tarea <tarea_id> [nota]")
		return
	}
	taskID, _ := common.ParseID(args[0])

	var note *string
	if len(args) > 1 {
		n := strings.Join(args[1:], " ")
		note = &n
	}

	id, task, err := h.service.Submit(ctx, taskID, userID, note)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrTaskNotFound):
			h.send(channelID, "❌ Tarea no encontrada")
		case errors.Is(err, common.ErrDuplicatePending):
			h.send(channelID, "❌ Ya tienes una solicitud pendiente para esa tarea")
		default:
			log.WithError(err).Error("submit task failed")
			h.send(channelID, "❌ No se pudo enviar la tarea")
		}
		return
	}

	h.send(channelID, fmt.Sprintf("📬 Tarea **%s** enviada para revisión (solicitud #%d). Un admin la revisará.", task.Name, id))
}

// HandleReview — !admin_aceptar_tarea <id> / !admin_rechazar_tarea <id>
func (h *Handler) HandleReview(ctx context.Context, channelID, userID string, args []string, approve bool) {
	if len(args) < 1 || !common.IsNumeric(args[0]) {
		h.send(channelID, "❌ Indica el ID numérico de la solicitud")
		return
	}
	submissionID, _ := common.ParseID(args[0])

	res, err := h.service.Review(ctx, submissionID, userID, approve)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrSubmissionNotFound):
			h.send(channelID, "❌ Solicitud no encontrada")
		case errors.Is(err, common.ErrAlreadyProcessed):
			h.send(channelID, "❌ Esa solicitud ya fue revisada")
		case errors.Is(err, common.ErrForbidden):
			h.send(channelID, "❌ Solo los administradores pueden revisar tareas")
		default:
			log.WithError(err).Error("review failed")
			h.send(channelID, "❌ No se pudo revisar la solicitud")
		}
		return
	}

	sub := res.Submission
	if res.Approved {
		h.send(channelID, fmt.Sprintf("✅ Tarea **%s** de %s aprobada: +%s", sub.TaskName, sub.Username, common.FormatCoins(res.Reward)))
		h.notifier.DirectMessage(sub.PlayerID, fmt.Sprintf("🎉 Tu tarea **%s** fue aprobada. Has ganado %s.", sub.TaskName, common.FormatCoins(res.Reward)))
	} else {
		h.send(channelID, fmt.Sprintf("🚫 Tarea **%s** de %s rechazada", sub.TaskName, sub.Username))
		h.notifier.DirectMessage(sub.PlayerID, fmt.Sprintf("😔 Tu tarea **%s** fue rechazada. Puedes volver a enviarla.", sub.TaskName))
	}
}

// HandlePending — !admin_ver_solicitudes_tareas
func (h *Handler) HandlePending(ctx context.Context, channelID, userID string) {
	subs, err := h.service.Pending(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrForbidden) {
			h.send(channelID, "❌ Solo los administradores pueden ver las solicitudes")
			return
		}
		log.WithError(err).Error("pending submissions failed")
		h.send(channelID, "❌ No se pudieron cargar las solicitudes")
		return
	}
	if len(subs) == 0 {
		h.send(channelID, "📭 No hay solicitudes de tareas pendientes")
		return
	}

	var sb strings.Builder
	sb.WriteString("📬 **Solicitudes pendientes**\n")
	for _, s := range subs {
		sb.WriteString(fmt.Sprintf("#%d **%s** — %s (%s, %s 🪙)",
			s.ID, s.TaskName, s.Username, common.FormatDateTime(s.CreatedAt), common.FormatCoins(s.Reward)))
		if s.Note != nil && *s.Note != "" {
			sb.WriteString(" · " + *s.Note)
		}
		sb.WriteString("\n")
	}
	h.send(channelID, sb.String())
}

// HandleAdminList — !admin_listar_tareas: the full catalog, with IDs,
// for editing and deleting.
func (h *Handler) HandleAdminList(ctx context.Context, channelID string) {
	tasks, err := h.service.ListTasks(ctx)
	if err != nil {
		log.WithError(err).Error("admin list tasks failed")
		h.send(channelID, "❌ No se pudieron cargar las tareas")
		return
	}
	if len(tasks) == 0 {
		h.send(channelID, "📋 No hay tareas registradas")
		return
	}

	var sb strings.Builder
	sb.WriteString("📋 **Catálogo de tareas**\n")
	for _, t := range tasks {
		sb.WriteString(fmt.Sprintf("ID %d · **%s** — %s 🪙\n%s\n", t.ID, t.Name, common.FormatCoins(t.Reward), t.Description))
	}
	h.send(channelID, sb.String())
}

// HandleAdminAdd — !admin_agregar_tarea <nombre> <recompensa> <descripción...>
func (h *Handler) HandleAdminAdd(ctx context.Context, channelID string, args []string) {
	if len(args) < 3 || !common.IsNumeric(args[1]) {
		h.send(channelID, "❌ Formato: admin_agregar_tarea <nombre> <recompensa> <descripción>")
		return
	}
	name := args[0]
	reward, _ := common.ParseID(args[1])
	description := strings.Join(args[2:], " ")

	id, err := h.service.CreateTask(ctx, name, description, reward)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrInvalidAmount):
			h.send(channelID, "❌ La recompensa debe ser positiva")
		case errors.Is(err, common.ErrInvalidName):
			h.send(channelID, "❌ El nombre no puede estar vacío")
		default:
			log.WithError(err).Error("create task failed")
			h.send(channelID, "❌ No se pudo crear la tarea")
		}
		return
	}
	h.send(channelID, fmt.Sprintf("✅ Tarea **%s** creada (ID %d, %s)", name, id, common.FormatCoins(reward)))
}

// HandleAdminUpdateReward — !admin_modificar_tarea <id> <recompensa>
func (h *Handler) HandleAdminUpdateReward(ctx context.Context, channelID string, args []string) {
	if len(args) < 2 || !common.IsNumeric(args[0]) || !common.IsNumeric(args[1]) {
		h.send(channelID, "❌ Formato: admin_modificar_tarea <id> <recompensa>")
		return
	}
	id, _ := common.ParseID(args[0])
	reward, _ := common.ParseID(args[1])

	if err := h.service.UpdateTask(ctx, id, TaskUpdate{Reward: &reward}); err != nil {
		switch {
		case errors.Is(err, common.ErrTaskNotFound):
			h.send(channelID, "❌ Tarea no encontrada")
		case errors.Is(err, common.ErrInvalidAmount):
			h.send(channelID, "❌ La recompensa debe ser positiva")
		default:
			log.WithError(err).Error("update task failed")
			h.send(channelID, "❌ No se pudo modificar la tarea")
		}
		return
	}
	h.send(channelID, fmt.Sprintf("✅ Tarea %d ahora recompensa %s", id, common.FormatCoins(reward)))
}

// HandleAdminDelete — !admin_eliminar_tarea <id>
func (h *Handler) HandleAdminDelete(ctx context.Context, channelID string, args []string) {
	if len(args) < 1 || !common.IsNumeric(args[0]) {
		h.send(channelID, "❌ Formato: admin_eliminar_tarea <id>")
		return
	}
	id, _ := common.ParseID(args[0])

	if err := h.service.DeleteTask(ctx, id); err != nil {
		if errors.Is(err, common.ErrTaskNotFound) {
			h.send(channelID, "❌ Tarea no encontrada")
			return
		}
		log.WithError(err).Error("delete task failed")
		h.send(channelID, "❌ No se pudo eliminar la tarea")
		return
	}
	h.send(channelID, fmt.Sprintf("🗑️ Tarea %d eliminada", id))
}

func (h *Handler) send(channelID, text string) {
	if _, err := h.session.ChannelMessageSend(channelID, text); err != nil {
		log.WithError(err).WithField("channel_id", channelID).Error("send message failed")
	}
}
