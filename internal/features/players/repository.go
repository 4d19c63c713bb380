// Package players — repository.go runs all SQL against the jugadores table.
package players

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"belenavidad.es/discord-bot/internal/common"
)

// Repo is what the service needs from storage. The pgx Repository implements
// it; tests substitute an in-memory fake.
type Repo interface {
	Upsert(ctx context.Context, id, username string) error
	Get(ctx context.Context, id string) (*Player, error)
	Coins(ctx context.Context, id string) (int64, error)
	AddCoins(ctx context.Context, id string, delta int64) (int64, error)
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Upsert registers a player or refreshes the username of an existing one.
// The balance is never touched here.
func (r *Repository) Upsert(ctx context.Context, id, username string) error {
	query := `
		INSERT INTO jugadores (id, username, monedas)
		VALUES ($1, $2, 0)
		ON CONFLICT (id) DO UPDATE
		SET username = EXCLUDED.username, updated_at = NOW()
	`
	if _, err := r.db.Exec(ctx, query, id, username); err != nil {
		return fmt.Errorf("upsert player: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*Player, error) {
	query := `
		SELECT id, username, monedas, created_at, updated_at
		FROM jugadores
		WHERE id = $1
	`
	var p Player
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Username, &p.Coins, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("read player %s: %w", id, err)
	}
	return &p, nil
}

func (r *Repository) Coins(ctx context.Context, id string) (int64, error) {
	query := `SELECT monedas FROM jugadores WHERE id = $1`
	var coins int64
	err := r.db.QueryRow(ctx, query, id).Scan(&coins)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, common.ErrPlayerNotFound
		}
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return coins, nil
}

// AddCoins applies a delta to the balance and returns the new value.
// The delta may be negative; callers decide whether negative balances are
// acceptable (the purchase path never uses this, it checks inside its own
// transaction).
func (r *Repository) AddCoins(ctx context.Context, id string, delta int64) (int64, error) {
	query := `
		UPDATE jugadores
		SET monedas = monedas + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING monedas
	`
	var coins int64
	err := r.db.QueryRow(ctx, query, id, delta).Scan(&coins)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, common.ErrPlayerNotFound
		}
		return 0, fmt.Errorf("adjust balance: %w", err)
	}
	return coins, nil
}
