package cart

import (
	"errors"
	"time"
)

var (
	ErrInvalidQuantity    = errors.New("cart: quantity must be at least 1")
	ErrInsufficientStock  = errors.New("cart: quantity exceeds available stock")
	ErrItemNotFound       = errors.New("cart: item not found")
	ErrProductUnavailable = errors.New("cart: product is not available")
)

// Item is one cart line. A user has at most one line per product; adding the
// same product again replaces the quantity (last write wins).
type Item struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	ProductID string    `json:"product_id"`
	Qty       int       `json:"qty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Line is an Item joined with the current product data for display. Prices
// here are live; they are only frozen when the cart becomes an order.
type Line struct {
	Item
	ProductName   string `json:"product_name"`
	PriceCents    int    `json:"price_cents"`
	SubtotalCents int    `json:"subtotal_cents"`
}

type View struct {
	Items      []Line `json:"items"`
	TotalCents int    `json:"total_cents"`
}
