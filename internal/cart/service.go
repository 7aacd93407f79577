package cart

import (
	"context"

	"github.com/evercart/checkout/internal/catalog"
)

type Store interface {
	Upsert(ctx context.Context, item Item) (Item, error)
	GetItem(ctx context.Context, userID, itemID string) (Item, error)
	SetQty(ctx context.Context, userID, itemID string, qty int) (Item, error)
	Remove(ctx context.Context, userID, itemID string) error
	Clear(ctx context.Context, userID string) error
	Lines(ctx context.Context, userID string) ([]Line, error)
}

type Products interface {
	Get(ctx context.Context, productID string) (catalog.Product, error)
}

type Service struct {
	Store    Store
	Products Products
}

// Add puts qty of a product in the user's cart, replacing any existing line
// for that product. Stock is validated against the live count; it is checked
// again at checkout, so a later stock change cannot oversell.
func (s *Service) Add(ctx context.Context, userID, productID string, qty int) (Item, error) {
	if qty < 1 {
		return Item{}, ErrInvalidQuantity
	}
	p, err := s.Products.Get(ctx, productID)
	if err != nil {
		return Item{}, err
	}
	if !p.Active {
		return Item{}, ErrProductUnavailable
	}
	if qty > p.Stock {
		return Item{}, ErrInsufficientStock
	}
	return s.Store.Upsert(ctx, Item{UserID: userID, ProductID: productID, Qty: qty})
}

func (s *Service) UpdateQty(ctx context.Context, userID, itemID string, qty int) (Item, error) {
	if qty < 1 {
		return Item{}, ErrInvalidQuantity
	}
	it, err := s.Store.GetItem(ctx, userID, itemID)
	if err != nil {
		return Item{}, err
	}
	p, err := s.Products.Get(ctx, it.ProductID)
	if err != nil {
		return Item{}, err
	}
	if qty > p.Stock {
		return Item{}, ErrInsufficientStock
	}
	return s.Store.SetQty(ctx, userID, itemID, qty)
}

func (s *Service) Remove(ctx context.Context, userID, itemID string) error {
	return s.Store.Remove(ctx, userID, itemID)
}

// Clear empties the cart. Clearing an already-empty cart is a no-op.
func (s *Service) Clear(ctx context.Context, userID string) error {
	return s.Store.Clear(ctx, userID)
}

func (s *Service) View(ctx context.Context, userID string) (View, error) {
	lines, err := s.Store.Lines(ctx, userID)
	if err != nil {
		return View{}, err
	}
	v := View{Items: lines}
	for _, l := range lines {
		v.TotalCents += l.SubtotalCents
	}
	if v.Items == nil {
		v.Items = []Line{}
	}
	return v, nil
}
