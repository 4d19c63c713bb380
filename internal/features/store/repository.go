// Package store — repository.go: catalog SQL and the purchase transaction.
// The purchase locks the buyer's balance row (FOR UPDATE), checks funds,
// debits and appends the piece record — all in one transaction, so a failed
// purchase leaves both the balance and the piece ledger untouched.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"belenavidad.es/discord-bot/internal/common"
)

// Repo is the storage surface the service needs.
type Repo interface {
	ListItems(ctx context.Context) ([]*Item, error)
	GetItemByID(ctx context.Context, id int64) (*Item, error)
	GetItemByName(ctx context.Context, name string) (*Item, error)
	CreateItem(ctx context.Context, name string, price int64, description *string, icon string) (int64, error)
	UpdateItem(ctx context.Context, id int64, upd ItemUpdate) (bool, error)
	DeleteItem(ctx context.Context, id int64) (bool, error)
	Purchase(ctx context.Context, buyerID string, belenID, itemID, quantity, unitPrice int64) (recordID, newBalance int64, err error)
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ListItems(ctx context.Context) ([]*Item, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, nombre, precio, descripcion, emoji, created_at
		FROM piezas_catalogo
		ORDER BY precio
	`)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var out []*Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Price, &it.Description, &it.Icon, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, &it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}
	return out, nil
}

func (r *Repository) GetItemByID(ctx context.Context, id int64) (*Item, error) {
	return r.getItem(ctx, `
		SELECT id, nombre, precio, descripcion, emoji, created_at
		FROM piezas_catalogo WHERE id = $1
	`, id)
}

func (r *Repository) GetItemByName(ctx context.Context, name string) (*Item, error) {
	return r.getItem(ctx, `
		SELECT id, nombre, precio, descripcion, emoji, created_at
		FROM piezas_catalogo WHERE LOWER(nombre) = LOWER($1)
	`, name)
}

func (r *Repository) getItem(ctx context.Context, query string, arg interface{}) (*Item, error) {
	var it Item
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&it.ID, &it.Name, &it.Price, &it.Description, &it.Icon, &it.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrItemNotFound
		}
		return nil, fmt.Errorf("read item: %w", err)
	}
	return &it, nil
}

func (r *Repository) CreateItem(ctx context.Context, name string, price int64, description *string, icon string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO piezas_catalogo (nombre, precio, descripcion, emoji)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, name, price, description, icon).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert item: %w", err)
	}
	return id, nil
}

// UpdateItem applies the non-nil fields. Returns false when nothing was
// given or the item does not exist.
func (r *Repository) UpdateItem(ctx context.Context, id int64, upd ItemUpdate) (bool, error) {
	var sets []string
	var args []interface{}
	args = append(args, id)

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.Name != nil {
		add("nombre", *upd.Name)
	}
	if upd.Price != nil {
		add("precio", *upd.Price)
	}
	if upd.Description != nil {
		add("descripcion", *upd.Description)
	}
	if upd.Icon != nil {
		add("emoji", *upd.Icon)
	}
	if len(sets) == 0 {
		return false, nil
	}

	query := fmt.Sprintf("UPDATE piezas_catalogo SET %s WHERE id = $1", strings.Join(sets, ", "))
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update item: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) DeleteItem(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM piezas_catalogo WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete item: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Purchase debits price×quantity from the buyer and appends one
// piezas_belen row, atomically. The buyer's balance row is locked for the
// duration so concurrent purchases cannot double-spend.
func (r *Repository) Purchase(ctx context.Context, buyerID string, belenID, itemID, quantity, unitPrice int64) (int64, int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var balance int64
	err = tx.QueryRow(ctx,
		`SELECT monedas FROM jugadores WHERE id = $1 FOR UPDATE`, buyerID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, common.ErrPlayerNotFound
		}
		return 0, 0, fmt.Errorf("read balance: %w", err)
	}

	total := unitPrice * quantity
	if balance < total {
		return 0, 0, fmt.Errorf("%w: required %d, available %d",
			common.ErrInsufficientCoins, total, balance)
	}

	var newBalance int64
	err = tx.QueryRow(ctx, `
		UPDATE jugadores
		SET monedas = monedas - $2, updated_at = NOW()
		WHERE id = $1
		RETURNING monedas
	`, buyerID, total).Scan(&newBalance)
	if err != nil {
		return 0, 0, fmt.Errorf("debit balance: %w", err)
	}

	var recordID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO piezas_belen (belen_id, pieza_id, comprador_id, cantidad)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, belenID, itemID, buyerID, quantity).Scan(&recordID)
	if err != nil {
		return 0, 0, fmt.Errorf("record purchase: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit: %w", err)
	}
	return recordID, newBalance, nil
}
