// Package tasks owns the task catalog (tareas) and the submission review
// workflow (tareas_completadas): submit → admin decision → reward or
// reject.
package tasks

import "time"

// Submission states. Pendiente is the only non-terminal state.
const (
	StatePending  = "pendiente"
	StateApproved = "aprobada"
	StateRejected = "rechazada"
)

// Task is one reward-bearing assignment. Admin-managed.
type Task struct {
	ID          int64     `db:"id"`
	Name        string    `db:"nombre"`
	Description string    `db:"descripcion"`
	Reward      int64     `db:"recompensa"` // always positive
	CreatedAt   time.Time `db:"created_at"`
}

// TaskUpdate is a partial update: nil fields are left untouched.
type TaskUpdate struct {
	Name        *string
	Description *string
	Reward      *int64
}

// Submission is one player's claim of having completed a task.
type Submission struct {
	ID         int64      `db:"id"`
	TaskID     int64      `db:"tarea_id"`
	PlayerID   string     `db:"jugador_id"`
	Note       *string    `db:"nota"`
	State      string     `db:"estado"`
	CreatedAt  time.Time  `db:"created_at"`
	ReviewedAt *time.Time `db:"reviewed_at"`
}

// SubmissionDetail joins the submission with its task and player, which is
// what review listings and notifications need.
type SubmissionDetail struct {
	Submission
	TaskName string `db:"tarea_nombre"`
	Reward   int64  `db:"recompensa"`
	Username string `db:"username"`
}

// ReviewResult reports a committed review decision.
type ReviewResult struct {
	Submission *SubmissionDetail
	Approved   bool
	Reward     int64 // credited amount; 0 on reject
}
