// Package access — repository.go: set-membership queries for the admin and
// block lists.
package access

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo is the storage surface the service needs.
type Repo interface {
	IsAdmin(ctx context.Context, id string) (bool, error)
	IsBlocked(ctx context.Context, id string) (bool, error)
	AddAdmin(ctx context.Context, id string) (bool, error)
	RemoveAdmin(ctx context.Context, id string) (bool, error)
	Block(ctx context.Context, id string, reason *string) (bool, error)
	Unblock(ctx context.Context, id string) (bool, error)
	ListAdmins(ctx context.Context) ([]string, error)
	ListBlocked(ctx context.Context) ([]*BlockedUser, error)
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) IsAdmin(ctx context.Context, id string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM administradores WHERE id = $1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("admin check: %w", err)
	}
	return exists, nil
}

func (r *Repository) IsBlocked(ctx context.Context, id string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM usuarios_bloqueados WHERE id = $1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("block check: %w", err)
	}
	return exists, nil
}

// AddAdmin inserts the id into the admin set. Returns false if it was
// already there.
func (r *Repository) AddAdmin(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO administradores (id) VALUES ($1) ON CONFLICT DO NOTHING`, id)
	if err != nil {
		return false, fmt.Errorf("add admin: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) RemoveAdmin(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM administradores WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("remove admin: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) Block(ctx context.Context, id string, reason *string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO usuarios_bloqueados (id, motivo) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		id, reason)
	if err != nil {
		return false, fmt.Errorf("block user: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) Unblock(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM usuarios_bloqueados WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("unblock user: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) ListAdmins(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM administradores ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan admin id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read admins: %w", err)
	}
	return out, nil
}

func (r *Repository) ListBlocked(ctx context.Context) ([]*BlockedUser, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, motivo, created_at FROM usuarios_bloqueados ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list blocked: %w", err)
	}
	defer rows.Close()

	var out []*BlockedUser
	for rows.Next() {
		var u BlockedUser
		if err := rows.Scan(&u.ID, &u.Reason, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan blocked user: %w", err)
		}
		out = append(out, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read blocked users: %w", err)
	}
	return out, nil
}
