// Package tasks — repository.go: task catalog SQL and the review
// transitions. Approval flips the submission with a conditional update and
// credits the reward inside the same transaction, so a submission can be
// approved (and paid) at most once.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"belenavidad.es/discord-bot/internal/common"
)

// Repo is the storage surface the service needs.
type Repo interface {
	ListAll(ctx context.Context) ([]*Task, error)
	Get(ctx context.Context, id int64) (*Task, error)
	Create(ctx context.Context, name, description string, reward int64) (int64, error)
	Update(ctx context.Context, id int64, upd TaskUpdate) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)

	Available(ctx context.Context, playerID string) ([]*Task, error)
	Submit(ctx context.Context, taskID int64, playerID string, note *string) (int64, error)
	GetSubmission(ctx context.Context, id int64) (*SubmissionDetail, error)
	PendingSubmissions(ctx context.Context) ([]*SubmissionDetail, error)
	Approve(ctx context.Context, id int64) (reward int64, playerID string, ok bool, err error)
	Reject(ctx context.Context, id int64) (bool, error)
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ListAll(ctx context.Context) ([]*Task, error) {
	return r.queryTasks(ctx, `
		SELECT id, nombre, descripcion, recompensa, created_at
		FROM tareas
		ORDER BY recompensa DESC
	`)
}

func (r *Repository) Get(ctx context.Context, id int64) (*Task, error) {
	var t Task
	err := r.db.QueryRow(ctx, `
		SELECT id, nombre, descripcion, recompensa, created_at
		FROM tareas WHERE id = $1
	`, id).Scan(&t.ID, &t.Name, &t.Description, &t.Reward, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrTaskNotFound
		}
		return nil, fmt.Errorf("read task: %w", err)
	}
	return &t, nil
}

func (r *Repository) Create(ctx context.Context, name, description string, reward int64) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO tareas (nombre, descripcion, recompensa)
		VALUES ($1, $2, $3)
		RETURNING id
	`, name, description, reward).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	return id, nil
}

func (r *Repository) Update(ctx context.Context, id int64, upd TaskUpdate) (bool, error) {
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
	if upd.Description != nil {
		add("descripcion", *upd.Description)
	}
	if upd.Reward != nil {
		add("recompensa", *upd.Reward)
	}
	if len(sets) == 0 {
		return false, nil
	}

	query := fmt.Sprintf("UPDATE tareas SET %s WHERE id = $1", strings.Join(sets, ", "))
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update task: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM tareas WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Available returns tasks the player can still earn: everything without an
// approved submission by that player, best paid first. A rejected or
// missing submission keeps the task available.
func (r *Repository) Available(ctx context.Context, playerID string) ([]*Task, error) {
	return r.queryTasks(ctx, `
		SELECT t.id, t.nombre, t.descripcion, t.recompensa, t.created_at
		FROM tareas t
		WHERE NOT EXISTS (
			SELECT 1 FROM tareas_completadas tc
			WHERE tc.tarea_id = t.id
			  AND tc.jugador_id = $1
			  AND tc.estado = 'aprobada'
		)
		ORDER BY t.recompensa DESC
	`, playerID)
}

// Submit inserts a pending submission. A partial unique index on
// (tarea_id, jugador_id) WHERE estado = 'pendiente' enforces the
// one-pending-per-task invariant against races.
func (r *Repository) Submit(ctx context.Context, taskID int64, playerID string, note *string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO tareas_completadas (tarea_id, jugador_id, nota, estado)
		VALUES ($1, $2, $3, 'pendiente')
		RETURNING id
	`, taskID, playerID, note).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, common.ErrDuplicatePending
		}
		return 0, fmt.Errorf("insert submission: %w", err)
	}
	return id, nil
}

func (r *Repository) GetSubmission(ctx context.Context, id int64) (*SubmissionDetail, error) {
	var d SubmissionDetail
	err := r.db.QueryRow(ctx, `
		SELECT tc.id, tc.tarea_id, tc.jugador_id, tc.nota, tc.estado,
		       tc.created_at, tc.reviewed_at,
		       t.nombre, t.recompensa, j.username
		FROM tareas_completadas tc
		JOIN tareas t ON tc.tarea_id = t.id
		JOIN jugadores j ON tc.jugador_id = j.id
		WHERE tc.id = $1
	`, id).Scan(
		&d.ID, &d.TaskID, &d.PlayerID, &d.Note, &d.State,
		&d.CreatedAt, &d.ReviewedAt,
		&d.TaskName, &d.Reward, &d.Username,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("read submission: %w", err)
	}
	return &d, nil
}

func (r *Repository) PendingSubmissions(ctx context.Context) ([]*SubmissionDetail, error) {
	rows, err := r.db.Query(ctx, `
		SELECT tc.id, tc.tarea_id, tc.jugador_id, tc.nota, tc.estado,
		       tc.created_at, tc.reviewed_at,
		       t.nombre, t.recompensa, j.username
		FROM tareas_completadas tc
		JOIN tareas t ON tc.tarea_id = t.id
		JOIN jugadores j ON tc.jugador_id = j.id
		WHERE tc.estado = 'pendiente'
		ORDER BY tc.created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("query pending submissions: %w", err)
	}
	defer rows.Close()

	var out []*SubmissionDetail
	for rows.Next() {
		var d SubmissionDetail
		if err := rows.Scan(
			&d.ID, &d.TaskID, &d.PlayerID, &d.Note, &d.State,
			&d.CreatedAt, &d.ReviewedAt,
			&d.TaskName, &d.Reward, &d.Username,
		); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read submissions: %w", err)
	}
	return out, nil
}

// Approve flips the submission to aprobada and credits the task's reward
// in the same transaction. The conditional update only matches a pending
// row; losing a concurrent review returns ok=false with nothing changed.
func (r *Repository) Approve(ctx context.Context, id int64) (int64, string, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, "", false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var taskID int64
	var playerID string
	err = tx.QueryRow(ctx, `
		UPDATE tareas_completadas
		SET estado = 'aprobada', reviewed_at = NOW()
		WHERE id = $1 AND estado = 'pendiente'
		RETURNING tarea_id, jugador_id
	`, id).Scan(&taskID, &playerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, "", false, nil
		}
		return 0, "", false, fmt.Errorf("approve submission: %w", err)
	}

	var reward int64
	err = tx.QueryRow(ctx,
		`SELECT recompensa FROM tareas WHERE id = $1`, taskID,
	).Scan(&reward)
	if err != nil {
		return 0, "", false, fmt.Errorf("read reward: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE jugadores
		SET monedas = monedas + $2, updated_at = NOW()
		WHERE id = $1
	`, playerID, reward)
	if err != nil {
		return 0, "", false, fmt.Errorf("credit reward: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, "", false, fmt.Errorf("commit: %w", err)
	}
	return reward, playerID, true, nil
}

// Reject flips the submission to rechazada. No balance change.
func (r *Repository) Reject(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE tareas_completadas
		SET estado = 'rechazada', reviewed_at = NOW()
		WHERE id = $1 AND estado = 'pendiente'
	`, id)
	if err != nil {
		return false, fmt.Errorf("reject submission: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) queryTasks(ctx context.Context, query string, args ...interface{}) ([]*Task, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var out []*Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.Reward, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read tasks: %w", err)
	}
	return out, nil
}
