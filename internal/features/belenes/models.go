// Package belenes implements the belén lifecycle: creation, membership,
// join-request arbitration and deletion. models.go describes the rows of
// belenes, miembros_belen and solicitudes_union.
package belenes

import "time"

// Join request states. Pendiente is the only non-terminal state; aceptada
// and rechazada are immutable once set.
const (
	StatePending  = "pendiente"
	StateAccepted = "aceptada"
	StateRejected = "rechazada"
)

// Decision is the arbitration verdict for a pending join request.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// Belen is one player-formed group. The creator is always a member; a
// player belongs to at most one belén at a time.
type Belen struct {
	ID          int64     `db:"id"`
	Name        string    `db:"nombre"` // unique, case-insensitive
	CreatorID   string    `db:"creador_id"`
	Description *string   `db:"descripcion"`
	CreatedAt   time.Time `db:"created_at"`
}

// Member is a roster entry with the member's total spend on pieces for
// this belén.
type Member struct {
	PlayerID     string `db:"id"`
	Username     string `db:"username"`
	Contribution int64  `db:"contribucion"` // sum of price×quantity bought
}

// JoinRequest is one ask to join a belén. One row per (belén, player);
// a new request for the same pair upserts the row back to pendiente.
type JoinRequest struct {
	ID        int64     `db:"id"`
	BelenID   int64     `db:"belen_id"`
	PlayerID  string    `db:"jugador_id"`
	State     string    `db:"estado"`
	CreatedAt time.Time `db:"created_at"`
}

// JoinRequestDetail joins the request with its belén and requester, which
// is what arbitration and notifications need.
type JoinRequestDetail struct {
	JoinRequest
	BelenName string `db:"belen_nombre"`
	CreatorID string `db:"creador_id"`
	Username  string `db:"username"` // requester's display name
}

// Piece is a purchased piece as shown on the belén panel.
type Piece struct {
	ItemName    string    `db:"nombre"`
	Icon        string    `db:"emoji"`
	Quantity    int64     `db:"cantidad"`
	BuyerName   string    `db:"comprador"`
	PurchasedAt time.Time `db:"purchased_at"`
}

// LeaveResult reports what leaving did: Deleted is true when the leaver was
// the creator and the whole belén was removed (memberships, pending
// requests and piece records cascade away with it).
type LeaveResult struct {
	Belen   *Belen
	Deleted bool
}
