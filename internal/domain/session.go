package domain

import "time"

// ShoppingSession links a user to one reasoning service thread.
// ThreadID is opaque and assigned once at creation.
type ShoppingSession struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ThreadID  string    `json:"thread_id"`
	Intent    string    `json:"intent"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProductPage is a generated product description attached to a session.
// Pages are append-only; ID order is insertion order.
type ProductPage struct {
	ID          int64     `json:"id"`
	SessionID   int64     `json:"session_id"`
	ProductPage string    `json:"product_page"`
	CreatedAt   time.Time `json:"created_at"`
}
