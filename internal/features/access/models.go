// Package access owns the administradores and usuarios_bloqueados tables:
// who may run admin commands and who may not talk to the bot at all.
// The two sets are independent of the jugadores lifecycle and of each other.
package access

import "time"

// BlockedUser is one entry of the block list.
type BlockedUser struct {
	ID        string    `db:"id"`     // Discord user ID
	Reason    *string   `db:"reason"` // optional, shown to admins only
	CreatedAt time.Time `db:"created_at"`
}
