// Package players owns the jugadores table: player identities and their
// coin balances. models.go describes the row structures.
package players

import "time"

// Player is one registered user. A player is created on first interaction
// with the bot and never deleted; the username is refreshed on every
// interaction so displays stay current.
type Player struct {
	ID        string    `db:"id"`       // Discord user ID (snowflake)
	Username  string    `db:"username"` // display name, refreshed on contact
	Coins     int64     `db:"monedas"`  // current balance, starts at 0
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
