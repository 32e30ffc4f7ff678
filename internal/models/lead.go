package models

import "time"

// Lead is the sales-prospect record a chat may be linked to.
type Lead struct {
	ID        int64     `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Phone     *string   `db:"phone" json:"phone"`
	OwnerID   *int64    `db:"owner_id" json:"owner_id"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
