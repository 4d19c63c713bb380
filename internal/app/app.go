// Package app initializes every component of the application.
// app.go is the assembly point: DB pool, migrations, Discord session,
// repositories, services, handlers, bot and scheduler.
package app

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"belenavidad.es/discord-bot/internal/bot"
	"belenavidad.es/discord-bot/internal/config"
	"belenavidad.es/discord-bot/internal/db/postgres"
	"belenavidad.es/discord-bot/internal/features/access"
	"belenavidad.es/discord-bot/internal/features/belenes"
	"belenavidad.es/discord-bot/internal/features/players"
	"belenavidad.es/discord-bot/internal/features/store"
	"belenavidad.es/discord-bot/internal/features/tasks"
	"belenavidad.es/discord-bot/internal/jobs"
)

// App holds every long-lived component.
type App struct {
	Bot       *bot.Bot
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool
	Session   *discordgo.Session
}

// New builds and wires the application. Initialization order matters:
// components depend on the ones created before them.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. Database ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database connect: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}

	// === 2. Discord session ===
	session, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	session.StateEnabled = true

	// === 3. Repositories ===
	playerRepo := players.NewRepository(pool)
	accessRepo := access.NewRepository(pool)
	belenRepo := belenes.NewRepository(pool)
	storeRepo := store.NewRepository(pool)
	taskRepo := tasks.NewRepository(pool)

	// === 4. Services ===
	playerService := players.NewService(playerRepo)
	accessService := access.NewService(accessRepo, cfg.AdminPasswordHash)
	belenService := belenes.NewService(belenRepo, accessService)
	storeService := store.NewService(storeRepo, belenService)
	taskService := tasks.NewService(taskRepo, accessService)

	if err := accessService.SeedAdmins(ctx, cfg.AdminIDs); err != nil {
		return nil, fmt.Errorf("seed admins: %w", err)
	}

	// === 5. Handlers ===
	notifier := bot.NewNotifier(session, cfg.NotifyTimeout)
	confirms := bot.NewConfirmManager(cfg.PurchaseConfirmTimeout)

	playerHandler := players.NewHandler(playerService, session)
	accessHandler := access.NewHandler(accessService, session)
	belenHandler := belenes.NewHandler(belenService, session, notifier)
	storeHandler := store.NewHandler(storeService, playerService, session, confirms)
	taskHandler := tasks.NewHandler(taskService, session, notifier)

	// === 6. Bot ===
	b := bot.New(
		session, cfg, confirms,
		playerService, accessService,
		playerHandler, accessHandler, belenHandler, storeHandler, taskHandler,
	)

	// === 7. Scheduler ===
	scheduler := jobs.NewScheduler(
		cfg.AppTimezone,
		taskService, belenService, accessService,
		notifier.DirectMessage,
		cfg.RequestPurgeAge,
	)

	return &App{
		Bot:       b,
		Scheduler: scheduler,
		DB:        pool,
		Session:   session,
	}, nil
}

// runMigrations applies every SQL migration in order.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if err := postgres.EnsureMigrationTable(ctx, pool); err != nil {
		return err
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001Players},
		{2, migration002Access},
		{3, migration003Belenes},
		{4, migration004Store},
		{5, migration005Tasks},
	}

	for _, m := range migrations {
		if err := postgres.ExecMigrationSQL(ctx, pool, m.version, m.sql); err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		log.WithField("version", m.version).Debug("migration applied")
	}
	return nil
}

// SQL migrations are embedded so deploys never depend on files on disk.

var migration001Players = `
CREATE TABLE IF NOT EXISTS jugadores (
    id         TEXT PRIMARY KEY,
    username   TEXT NOT NULL DEFAULT '',
    monedas    BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

var migration002Access = `
CREATE TABLE IF NOT EXISTS administradores (
    id         TEXT PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS usuarios_bloqueados (
    id         TEXT PRIMARY KEY,
    motivo     TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

var migration003Belenes = `
CREATE TABLE IF NOT EXISTS belenes (
    id          BIGSERIAL PRIMARY KEY,
    nombre      TEXT NOT NULL,
    creador_id  TEXT NOT NULL REFERENCES jugadores(id),
    descripcion TEXT,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- one belén per name, case-insensitive
CREATE UNIQUE INDEX IF NOT EXISTS idx_belenes_nombre
    ON belenes (LOWER(nombre));

CREATE TABLE IF NOT EXISTS miembros_belen (
    belen_id   BIGINT NOT NULL REFERENCES belenes(id) ON DELETE CASCADE,
    jugador_id TEXT NOT NULL REFERENCES jugadores(id),
    joined_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (belen_id, jugador_id),
    -- a player belongs to at most one belén
    UNIQUE (jugador_id)
);

CREATE TABLE IF NOT EXISTS solicitudes_union (
    id         BIGSERIAL PRIMARY KEY,
    belen_id   BIGINT NOT NULL REFERENCES belenes(id) ON DELETE CASCADE,
    jugador_id TEXT NOT NULL REFERENCES jugadores(id),
    estado     TEXT NOT NULL DEFAULT 'pendiente'
               CHECK (estado IN ('pendiente', 'aceptada', 'rechazada')),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (belen_id, jugador_id)
);

CREATE INDEX IF NOT EXISTS idx_solicitudes_estado
    ON solicitudes_union (belen_id, estado);
`

var migration004Store = `
CREATE TABLE IF NOT EXISTS piezas_catalogo (
    id          BIGSERIAL PRIMARY KEY,
    nombre      TEXT NOT NULL,
    precio      BIGINT NOT NULL CHECK (precio > 0),
    descripcion TEXT,
    emoji       TEXT NOT NULL DEFAULT '🎁',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_piezas_catalogo_nombre
    ON piezas_catalogo (LOWER(nombre));

CREATE TABLE IF NOT EXISTS piezas_belen (
    id           BIGSERIAL PRIMARY KEY,
    belen_id     BIGINT NOT NULL REFERENCES belenes(id) ON DELETE CASCADE,
    pieza_id     BIGINT NOT NULL REFERENCES piezas_catalogo(id) ON DELETE CASCADE,
    comprador_id TEXT NOT NULL REFERENCES jugadores(id),
    cantidad     BIGINT NOT NULL CHECK (cantidad > 0),
    purchased_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_piezas_belen_belen
    ON piezas_belen (belen_id);
`

var migration005Tasks = `
CREATE TABLE IF NOT EXISTS tareas (
    id          BIGSERIAL PRIMARY KEY,
    nombre      TEXT NOT NULL,
    descripcion TEXT NOT NULL DEFAULT '',
    recompensa  BIGINT NOT NULL CHECK (recompensa > 0),
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS tareas_completadas (
    id          BIGSERIAL PRIMARY KEY,
    tarea_id    BIGINT NOT NULL REFERENCES tareas(id) ON DELETE CASCADE,
    jugador_id  TEXT NOT NULL REFERENCES jugadores(id),
    nota        TEXT,
    estado      TEXT NOT NULL DEFAULT 'pendiente'
                CHECK (estado IN ('pendiente', 'aprobada', 'rechazada')),
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    reviewed_at TIMESTAMPTZ
);

-- at most one pending submission per (task, player)
CREATE UNIQUE INDEX IF NOT EXISTS idx_tareas_completadas_pendiente
    ON tareas_completadas (tarea_id, jugador_id)
    WHERE estado = 'pendiente';

CREATE INDEX IF NOT EXISTS idx_tareas_completadas_estado
    ON tareas_completadas (estado);
`
