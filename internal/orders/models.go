package orders

import (
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("orders: order not found")
	ErrEmptyCart     = errors.New("orders: cart is empty")
	ErrStockConflict = errors.New("orders: stock changed since the cart was built")
)

type ShippingAddress struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Order is immutable after creation except for Status.
type Order struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Status     Status          `json:"status"`
	TotalCents int             `json:"total_cents"`
	Shipping   ShippingAddress `json:"shipping"`
	Items      []Item          `json:"items,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Item freezes the unit price at order-creation time. Later product price
// changes never affect an existing order's total.
type Item struct {
	ID         string `json:"id"`
	OrderID    string `json:"-"`
	ProductID  string `json:"product_id"`
	Qty        int    `json:"qty"`
	PriceCents int    `json:"price_cents"`
}
