// Package store owns the piece catalog (piezas_catalogo) and the purchase
// engine that turns coins into piezas_belen records.
package store

import "time"

// Item is one purchasable catalog entry. Admin-managed.
type Item struct {
	ID          int64     `db:"id"`
	Name        string    `db:"nombre"` // unique lookup is case-insensitive
	Price       int64     `db:"precio"` // always positive
	Description *string   `db:"descripcion"`
	Icon        string    `db:"emoji"`
	CreatedAt   time.Time `db:"created_at"`
}

// ItemUpdate is a partial update: nil fields are left untouched.
type ItemUpdate struct {
	Name        *string
	Price       *int64
	Description *string
	Icon        *string
}

// PurchaseResult reports a committed purchase.
type PurchaseResult struct {
	RecordID   int64 // the new piezas_belen row
	Item       *Item
	Quantity   int64
	TotalCost  int64
	NewBalance int64
}
