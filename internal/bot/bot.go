// Package bot wires the Discord gateway to the feature handlers: it parses
// incoming messages, applies the access and rate-limit gates and routes
// commands.
package bot

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"belenavidad.es/discord-bot/internal/bot/middleware"
	"belenavidad.es/discord-bot/internal/config"
	"belenavidad.es/discord-bot/internal/features/access"
	"belenavidad.es/discord-bot/internal/features/belenes"
	"belenavidad.es/discord-bot/internal/features/players"
	"belenavidad.es/discord-bot/internal/features/store"
	"belenavidad.es/discord-bot/internal/features/tasks"
)

// Bot is the top-level structure tying every component together.
type Bot struct {
	session *discordgo.Session
	cfg     *config.Config

	rateLimiter *middleware.RateLimiter
	confirms    *ConfirmManager

	playerService *players.Service
	accessService *access.Service

	playerHandler *players.Handler
	accessHandler *access.Handler
	belenHandler  *belenes.Handler
	storeHandler  *store.Handler
	taskHandler   *tasks.Handler

	parser *CommandParser
}

func New(
	session *discordgo.Session,
	cfg *config.Config,
	confirms *ConfirmManager,
	playerService *players.Service,
	accessService *access.Service,
	playerHandler *players.Handler,
	accessHandler *access.Handler,
	belenHandler *belenes.Handler,
	storeHandler *store.Handler,
	taskHandler *tasks.Handler,
) *Bot {
	return &Bot{
		session:       session,
		cfg:           cfg,
		rateLimiter:   middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		confirms:      confirms,
		playerService: playerService,
		accessService: accessService,
		playerHandler: playerHandler,
		accessHandler: accessHandler,
		belenHandler:  belenHandler,
		storeHandler:  storeHandler,
		taskHandler:   taskHandler,
		parser:        NewCommandParser(cfg.CommandPrefix),
	}
}

// Start registers the message handler and opens the gateway connection.
func (b *Bot) Start(ctx context.Context) error {
	b.session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	b.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		go b.handleMessage(ctx, m)
	})

	if err := b.session.Open(); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"guild_id": b.cfg.DiscordGuildID,
		"prefix":   b.cfg.CommandPrefix,
	}).Info("bot connected, waiting for messages")
	return nil
}

// Stop closes the gateway connection and the rate limiter.
func (b *Bot) Stop() {
	b.rateLimiter.Close()
	b.confirms.Close()
	if err := b.session.Close(); err != nil {
		log.WithError(err).Warn("session close failed")
	}
}

func (b *Bot) handleMessage(ctx context.Context, m *discordgo.MessageCreate) {
	defer middleware.RecoverFromPanic()

	if m.Author == nil || m.Author.Bot || m.Content == "" {
		return
	}

	// Only the configured guild, plus DMs (elevation and notifications).
	isDM := m.GuildID == ""
	if !isDM && m.GuildID != b.cfg.DiscordGuildID {
		return
	}

	middleware.LogMessage(m)

	userID := m.Author.ID
	channelID := m.ChannelID

	if !b.rateLimiter.Allow(userID) {
		log.WithField("user_id", userID).Debug("rate limited")
		return
	}

	isAdmin, err := b.accessService.IsAdmin(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("admin check failed")
	}

	// Blocked players are ignored outright. Administrators stay exempt so a
	// mistaken block cannot lock everyone out.
	if !isAdmin {
		blocked, err := b.accessService.IsBlocked(ctx, userID)
		if err != nil {
			log.WithError(err).WithField("user_id", userID).Warn("block check failed")
			return
		}
		if blocked {
			return
		}
	}

	if err := b.playerService.Ensure(ctx, userID, m.Author.Username); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("ensure player failed")
	}

	cmd, args, isCommand := b.parser.ParseCommand(m.Content)
	if !isCommand {
		return
	}

	b.routeCommand(ctx, channelID, userID, cmd, args, isDM, isAdmin)
}

func (b *Bot) routeCommand(ctx context.Context, channelID, userID, cmd string, args []string, isDM, isAdmin bool) {
	log.WithFields(log.Fields{
		"cmd":  cmd,
		"args": args,
	}).Debug("routing command")

	switch cmd {
	case "ayuda", "help":
		b.sendHelp(channelID, isAdmin)

	// --- membership ---
	case "crear_belen":
		b.belenHandler.HandleCreate(ctx, channelID, userID, args)
	case "unirse_belen":
		b.belenHandler.HandleJoin(ctx, channelID, userID, args)
	case "aceptar_solicitud":
		b.belenHandler.HandleResolve(ctx, channelID, userID, args, belenes.DecisionAccept)
	case "rechazar_solicitud":
		b.belenHandler.HandleResolve(ctx, channelID, userID, args, belenes.DecisionReject)
	case "salir_belen":
		b.belenHandler.HandleLeave(ctx, channelID, userID)
	case "ver_belen":
		b.belenHandler.HandleView(ctx, channelID, userID)

	// --- economy ---
	case "monedas":
		b.playerHandler.HandleBalance(ctx, channelID, userID)
	case "tienda":
		b.storeHandler.HandleList(ctx, channelID)
	case "tienda_comprar":
		b.storeHandler.HandleBuy(ctx, channelID, userID, args)
	case "confirmar":
		b.handleConfirm(ctx, channelID, userID, args)
	case "cancelar":
		b.handleCancel(channelID, userID)

	// --- tasks ---
	case "tareas":
		b.taskHandler.HandleList(ctx, channelID, userID)
	case "agregar_tarea":
		b.taskHandler.HandleSubmit(ctx, channelID, userID, args)

	// --- elevation, DM only so the password never lands in a public channel ---
	case "admin":
		if isDM {
			b.accessHandler.HandleElevate(ctx, channelID, userID, args)
		} else {
			b.send(channelID, "🔒 Usa este comando por mensaje directo")
		}

	// --- administration ---
	case "agregar_admin":
		if b.requireAdmin(channelID, isAdmin) {
			b.accessHandler.HandleAddAdmin(ctx, channelID, args)
		}
	case "eliminar_admin":
		if b.requireAdmin(channelID, isAdmin) {
			b.accessHandler.HandleRemoveAdmin(ctx, channelID, args)
		}
	case "admin_listar":
		if b.requireAdmin(channelID, isAdmin) {
			b.accessHandler.HandleListAdmins(ctx, channelID)
		}
	case "admin_bloquear":
		if b.requireAdmin(channelID, isAdmin) {
			b.accessHandler.HandleBlock(ctx, channelID, args)
		}
	case "admin_desbloquear":
		if b.requireAdmin(channelID, isAdmin) {
			b.accessHandler.HandleUnblock(ctx, channelID, args)
		}
	case "admin_bloqueados":
		if b.requireAdmin(channelID, isAdmin) {
			b.accessHandler.HandleListBlocked(ctx, channelID)
		}
	case "admin_dar_monedas":
		if b.requireAdmin(channelID, isAdmin) {
			b.playerHandler.HandleAdminGive(ctx, channelID, args)
		}
	case "admin_quitar_monedas":
		if b.requireAdmin(channelID, isAdmin) {
			b.playerHandler.HandleAdminTake(ctx, channelID, args)
		}
	case "admin_eliminar_belen":
		b.belenHandler.HandleAdminDelete(ctx, channelID, userID, args)
	case "admin_agregar_producto":
		if b.requireAdmin(channelID, isAdmin) {
			b.storeHandler.HandleAdminAdd(ctx, channelID, args)
		}
	case "admin_modificar_producto":
		if b.requireAdmin(channelID, isAdmin) {
			b.storeHandler.HandleAdminUpdatePrice(ctx, channelID, args)
		}
	case "admin_eliminar_producto":
		if b.requireAdmin(channelID, isAdmin) {
			b.storeHandler.HandleAdminDelete(ctx, channelID, args)
		}
	case "admin_listar_tareas":
		if b.requireAdmin(channelID, isAdmin) {
			b.taskHandler.HandleAdminList(ctx, channelID)
		}
	case "admin_agregar_tarea":
		if b.requireAdmin(channelID, isAdmin) {
			b.taskHandler.HandleAdminAdd(ctx, channelID, args)
		}
	case "admin_modificar_tarea":
		if b.requireAdmin(channelID, isAdmin) {
			b.taskHandler.HandleAdminUpdateReward(ctx, channelID, args)
		}
	case "admin_eliminar_tarea":
		if b.requireAdmin(channelID, isAdmin) {
			b.taskHandler.HandleAdminDelete(ctx, channelID, args)
		}
	case "admin_ver_solicitudes_tareas":
		b.taskHandler.HandlePending(ctx, channelID, userID)
	case "admin_aceptar_tarea":
		b.taskHandler.HandleReview(ctx, channelID, userID, args, true)
	case "admin_rechazar_tarea":
		b.taskHandler.HandleReview(ctx, channelID, userID, args, false)
	}
}

func (b *Bot) handleConfirm(ctx context.Context, channelID, userID string, args []string) {
	token := ""
	if len(args) > 0 {
		token = args[0]
	}
	run, _, ok := b.confirms.Pop(userID, token)
	if !ok {
		b.send(channelID, "❌ No tienes ninguna compra pendiente de confirmar (o la referencia no coincide)")
		return
	}
	run(ctx)
}

func (b *Bot) handleCancel(channelID, userID string) {
	summary, ok := b.confirms.Cancel(userID)
	if !ok {
		b.send(channelID, "❌ No tienes ninguna compra pendiente")
		return
	}
	b.send(channelID, "🚫 Compra cancelada: "+summary)
}

func (b *Bot) requireAdmin(channelID string, isAdmin bool) bool {
	if !isAdmin {
		b.send(channelID, "❌ Solo los administradores pueden usar ese comando")
	}
	return isAdmin
}

func (b *Bot) sendHelp(channelID string, isAdmin bool) {
	var sb strings.Builder
	sb.WriteString("🎄 **Comandos del bot de belenes**\n")
	sb.WriteString("`crear_belen <nombre> <descripción>` — crea tu belén\n")
	sb.WriteString("`unirse_belen <id|nombre>` — solicita unirte a un belén\n")
	sb.WriteString("`aceptar_solicitud <id>` / `rechazar_solicitud <id>` — decide una solicitud\n")
	sb.WriteString("`salir_belen` — abandona tu belén\n")
	sb.WriteString("`ver_belen` — miembros y piezas de tu belén\n")
	sb.WriteString("`monedas` — tu saldo\n")
	sb.WriteString("`tienda` — catálogo de piezas\n")
	sb.WriteString("`tienda_comprar <pieza> [cantidad]` — compra piezas (confirmar/cancelar)\n")
	sb.WriteString("`tareas` — tareas disponibles\n")
	sb.WriteString("`agregar_tarea <id> [nota]` — envía una tarea a revisión\n")
	sb.WriteString("`admin <contraseña>` — hazte admin (solo por DM)\n")
	if isAdmin {
		sb.WriteString("\n👑 **Administración**\n")
		sb.WriteString("`admin_dar_monedas` · `admin_quitar_monedas` · `admin_eliminar_belen`\n")
		sb.WriteString("`admin_agregar_producto` · `admin_modificar_producto` · `admin_eliminar_producto`\n")
		sb.WriteString("`admin_listar_tareas` · `admin_agregar_tarea` · `admin_modificar_tarea` · `admin_eliminar_tarea`\n")
		sb.WriteString("`admin_ver_solicitudes_tareas` · `admin_aceptar_tarea` · `admin_rechazar_tarea`\n")
		sb.WriteString("`agregar_admin` · `eliminar_admin` · `admin_listar` · `admin_bloquear` · `admin_desbloquear` · `admin_bloqueados`\n")
	}
	b.send(channelID, sb.String())
}

func (b *Bot) send(channelID, text string) {
	if _, err := b.session.ChannelMessageSend(channelID, text); err != nil {
		log.WithError(err).WithField("channel_id", channelID).Error("send message failed")
	}
}
