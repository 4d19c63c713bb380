// Package config loads the bot configuration from environment variables.
// envconfig maps environment variables onto the Config struct fields.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds ALL application settings.
type Config struct {
	// --- Discord ---
	DiscordBotToken string `envconfig:"DISCORD_BOT_TOKEN" required:"true"`
	// The only guild the bot answers in. DMs from registered players also work.
	DiscordGuildID string `envconfig:"DISCORD_GUILD_ID" required:"true"`
	CommandPrefix  string `envconfig:"BOT_COMMAND_PREFIX" default:"!"`

	// Seed administrators, comma-separated Discord user IDs. Applied on boot
	// in addition to whoever is in the administradores table.
	AdminIDsRaw string   `envconfig:"ADMIN_IDS"`
	AdminIDs    []string `envconfig:"-"`

	// Argon2id hash for the !admin elevation command (scripts/generate_hash.go).
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH" required:"true"`

	// --- Database ---
	// Inside Docker "localhost" is almost always wrong; default to the
	// docker-compose service name and override DB_HOST=localhost locally.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"botuser"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"belen_bot"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Madrid"`

	// --- Purchases ---
	// How long a "confirm this purchase?" prompt stays valid. After this the
	// pending purchase is dropped with no state change.
	PurchaseConfirmTimeout time.Duration `envconfig:"PURCHASE_CONFIRM_TIMEOUT" default:"60s"`

	// --- Notifications ---
	// Upper bound for a single best-effort DM attempt.
	NotifyTimeout time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"5s"`

	// --- Jobs ---
	// Terminal join requests older than this get purged by the weekly job.
	RequestPurgeAge time.Duration `envconfig:"REQUEST_PURGE_AGE" default:"720h"`

	// --- Rate limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// DatabaseDSN returns the PostgreSQL connection string.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) Validate() error {
	if c.DiscordGuildID == "" {
		return fmt.Errorf("DISCORD_GUILD_ID is empty")
	}
	if c.CommandPrefix == "" {
		return fmt.Errorf("BOT_COMMAND_PREFIX is empty")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("bad DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.PurchaseConfirmTimeout <= 0 {
		return fmt.Errorf("PURCHASE_CONFIRM_TIMEOUT must be > 0")
	}
	if c.NotifyTimeout <= 0 {
		return fmt.Errorf("NOTIFY_TIMEOUT must be > 0")
	}
	return nil
}

// Load reads the environment and fills the Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	cfg.AdminIDs = parseCSV(cfg.AdminIDsRaw)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseCSV(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
