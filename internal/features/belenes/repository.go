// Package belenes — repository.go runs all SQL for belenes, miembros_belen
// and solicitudes_union. State transitions use conditional updates
// (UPDATE ... WHERE estado = 'pendiente' RETURNING ...) so that two
// concurrent resolvers cannot both win; multi-row changes run inside one
// database transaction.
package belenes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"belenavidad.es/discord-bot/internal/common"
)

// Repo is the storage surface the service needs; the pgx Repository
// implements it and tests use an in-memory fake.
type Repo interface {
	Create(ctx context.Context, name, creatorID string, description *string) (int64, error)
	GetByID(ctx context.Context, id int64) (*Belen, error)
	GetByName(ctx context.Context, name string) (*Belen, error)
	BelenForPlayer(ctx context.Context, playerID string) (*Belen, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Leave(ctx context.Context, playerID string) (*LeaveResult, error)
	Members(ctx context.Context, belenID int64) ([]*Member, error)
	Pieces(ctx context.Context, belenID int64) ([]*Piece, error)

	UpsertJoinRequest(ctx context.Context, belenID int64, playerID string) (int64, error)
	GetJoinRequest(ctx context.Context, id int64) (*JoinRequestDetail, error)
	PendingRequests(ctx context.Context, belenID int64) ([]*JoinRequestDetail, error)
	AcceptJoinRequest(ctx context.Context, id int64) (bool, error)
	RejectJoinRequest(ctx context.Context, id int64) (bool, error)
	PurgeResolvedRequests(ctx context.Context, olderThan time.Time) (int64, error)
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const uniqueViolation = "23505"

// Create inserts the belén and the creator's membership in one transaction.
// The unique index on LOWER(nombre) backs the duplicate-name check; the
// unique jugador_id on miembros_belen backs the one-belén invariant.
func (r *Repository) Create(ctx context.Context, name, creatorID string, description *string) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var belenID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO belenes (nombre, creador_id, descripcion)
		VALUES ($1, $2, $3)
		RETURNING id
	`, name, creatorID, description).Scan(&belenID)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, common.ErrDuplicateName
		}
		return 0, fmt.Errorf("insert belen: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO miembros_belen (belen_id, jugador_id)
		VALUES ($1, $2)
	`, belenID, creatorID)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, common.ErrAlreadyMember
		}
		return 0, fmt.Errorf("insert creator membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return belenID, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*Belen, error) {
	return r.getBelen(ctx, `
		SELECT id, nombre, creador_id, descripcion, created_at
		FROM belenes WHERE id = $1
	`, id)
}

func (r *Repository) GetByName(ctx context.Context, name string) (*Belen, error) {
	return r.getBelen(ctx, `
		SELECT id, nombre, creador_id, descripcion, created_at
		FROM belenes WHERE LOWER(nombre) = LOWER($1)
	`, name)
}

func (r *Repository) getBelen(ctx context.Context, query string, arg interface{}) (*Belen, error) {
	var b Belen
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&b.ID, &b.Name, &b.CreatorID, &b.Description, &b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrBelenNotFound
		}
		return nil, fmt.Errorf("read belen: %w", err)
	}
	return &b, nil
}

// BelenForPlayer returns the belén the player belongs to, or ErrNotMember.
func (r *Repository) BelenForPlayer(ctx context.Context, playerID string) (*Belen, error) {
	var b Belen
	err := r.db.QueryRow(ctx, `
		SELECT b.id, b.nombre, b.creador_id, b.descripcion, b.created_at
		FROM belenes b
		JOIN miembros_belen mb ON b.id = mb.belen_id
		WHERE mb.jugador_id = $1
	`, playerID).Scan(&b.ID, &b.Name, &b.CreatorID, &b.Description, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrNotMember
		}
		return nil, fmt.Errorf("read player belen: %w", err)
	}
	return &b, nil
}

// Delete removes the belén. Memberships, requests and piece records go with
// it through ON DELETE CASCADE.
func (r *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM belenes WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete belen: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Leave removes the player from their belén. When the player is the
// creator the whole belén is deleted instead. Lookup and delete happen in
// the same transaction so a concurrent leave cannot act on stale rows.
func (r *Repository) Leave(ctx context.Context, playerID string) (*LeaveResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var b Belen
	err = tx.QueryRow(ctx, `
		SELECT b.id, b.nombre, b.creador_id, b.descripcion, b.created_at
		FROM belenes b
		JOIN miembros_belen mb ON b.id = mb.belen_id
		WHERE mb.jugador_id = $1
		FOR UPDATE OF b
	`, playerID).Scan(&b.ID, &b.Name, &b.CreatorID, &b.Description, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrNotMember
		}
		return nil, fmt.Errorf("read player belen: %w", err)
	}

	deleted := false
	if b.CreatorID == playerID {
		if _, err := tx.Exec(ctx, `DELETE FROM belenes WHERE id = $1`, b.ID); err != nil {
			return nil, fmt.Errorf("delete belen: %w", err)
		}
		deleted = true
	} else {
		_, err := tx.Exec(ctx,
			`DELETE FROM miembros_belen WHERE belen_id = $1 AND jugador_id = $2`,
			b.ID, playerID)
		if err != nil {
			return nil, fmt.Errorf("delete membership: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &LeaveResult{Belen: &b, Deleted: deleted}, nil
}

// Members returns the roster ordered by contribution (sum of price×quantity
// each member bought for this belén).
func (r *Repository) Members(ctx context.Context, belenID int64) ([]*Member, error) {
	rows, err := r.db.Query(ctx, `
		SELECT j.id, j.username,
		       COALESCE(SUM(pb.cantidad * pc.precio), 0) AS contribucion
		FROM miembros_belen mb
		JOIN jugadores j ON mb.jugador_id = j.id
		LEFT JOIN piezas_belen pb ON pb.comprador_id = j.id AND pb.belen_id = mb.belen_id
		LEFT JOIN piezas_catalogo pc ON pb.pieza_id = pc.id
		WHERE mb.belen_id = $1
		GROUP BY j.id, j.username
		ORDER BY contribucion DESC
	`, belenID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var out []*Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.PlayerID, &m.Username, &m.Contribution); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read members: %w", err)
	}
	return out, nil
}

// Pieces returns the purchased pieces of a belén, newest first.
func (r *Repository) Pieces(ctx context.Context, belenID int64) ([]*Piece, error) {
	rows, err := r.db.Query(ctx, `
		SELECT pc.nombre, pc.emoji, pb.cantidad, j.username, pb.purchased_at
		FROM piezas_belen pb
		JOIN piezas_catalogo pc ON pb.pieza_id = pc.id
		JOIN jugadores j ON pb.comprador_id = j.id
		WHERE pb.belen_id = $1
		ORDER BY pb.purchased_at DESC
	`, belenID)
	if err != nil {
		return nil, fmt.Errorf("query pieces: %w", err)
	}
	defer rows.Close()

	var out []*Piece
	for rows.Next() {
		var p Piece
		if err := rows.Scan(&p.ItemName, &p.Icon, &p.Quantity, &p.BuyerName, &p.PurchasedAt); err != nil {
			return nil, fmt.Errorf("scan piece: %w", err)
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read pieces: %w", err)
	}
	return out, nil
}

// UpsertJoinRequest creates a pending request, or resets an existing row
// for the same (belén, player) pair back to pendiente with a fresh
// timestamp. This is the only self-healing retry in the system.
func (r *Repository) UpsertJoinRequest(ctx context.Context, belenID int64, playerID string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO solicitudes_union (belen_id, jugador_id, estado)
		VALUES ($1, $2, 'pendiente')
		ON CONFLICT (belen_id, jugador_id)
		DO UPDATE SET estado = 'pendiente', created_at = NOW()
		RETURNING id
	`, belenID, playerID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert join request: %w", err)
	}
	return id, nil
}

func (r *Repository) GetJoinRequest(ctx context.Context, id int64) (*JoinRequestDetail, error) {
	var d JoinRequestDetail
	err := r.db.QueryRow(ctx, `
		SELECT s.id, s.belen_id, s.jugador_id, s.estado, s.created_at,
		       b.nombre, b.creador_id, j.username
		FROM solicitudes_union s
		JOIN belenes b ON s.belen_id = b.id
		JOIN jugadores j ON s.jugador_id = j.id
		WHERE s.id = $1
	`, id).Scan(
		&d.ID, &d.BelenID, &d.PlayerID, &d.State, &d.CreatedAt,
		&d.BelenName, &d.CreatorID, &d.Username,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrRequestNotFound
		}
		return nil, fmt.Errorf("read join request: %w", err)
	}
	return &d, nil
}

func (r *Repository) PendingRequests(ctx context.Context, belenID int64) ([]*JoinRequestDetail, error) {
	rows, err := r.db.Query(ctx, `
		SELECT s.id, s.belen_id, s.jugador_id, s.estado, s.created_at,
		       b.nombre, b.creador_id, j.username
		FROM solicitudes_union s
		JOIN belenes b ON s.belen_id = b.id
		JOIN jugadores j ON s.jugador_id = j.id
		WHERE s.belen_id = $1 AND s.estado = 'pendiente'
		ORDER BY s.created_at
	`, belenID)
	if err != nil {
		return nil, fmt.Errorf("query pending requests: %w", err)
	}
	defer rows.Close()

	var out []*JoinRequestDetail
	for rows.Next() {
		var d JoinRequestDetail
		if err := rows.Scan(
			&d.ID, &d.BelenID, &d.PlayerID, &d.State, &d.CreatedAt,
			&d.BelenName, &d.CreatorID, &d.Username,
		); err != nil {
			return nil, fmt.Errorf("scan pending request: %w", err)
		}
		out = append(out, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read pending requests: %w", err)
	}
	return out, nil
}

// AcceptJoinRequest flips the request to aceptada and inserts the
// membership in one transaction. The conditional update only matches a
// pending row, so a request resolved by someone else returns false and
// changes nothing. The membership insert is idempotent: ON CONFLICT covers
// both a re-accept and a player who joined elsewhere in the meantime
// (jugador_id is unique, so the one-belén invariant holds either way).
func (r *Repository) AcceptJoinRequest(ctx context.Context, id int64) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var belenID int64
	var playerID string
	err = tx.QueryRow(ctx, `
		UPDATE solicitudes_union
		SET estado = 'aceptada'
		WHERE id = $1 AND estado = 'pendiente'
		RETURNING belen_id, jugador_id
	`, id).Scan(&belenID, &playerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("accept join request: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO miembros_belen (belen_id, jugador_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, belenID, playerID)
	if err != nil {
		return false, fmt.Errorf("insert membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// RejectJoinRequest flips the request to rechazada. Returns false when the
// request was not pending.
func (r *Repository) RejectJoinRequest(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE solicitudes_union
		SET estado = 'rechazada'
		WHERE id = $1 AND estado = 'pendiente'
	`, id)
	if err != nil {
		return false, fmt.Errorf("reject join request: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// PurgeResolvedRequests deletes terminal requests older than the cutoff.
// Pending requests are never purged.
func (r *Repository) PurgeResolvedRequests(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM solicitudes_union
		WHERE estado <> 'pendiente' AND created_at < $1
	`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("purge requests: %w", err)
	}
	return tag.RowsAffected(), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
