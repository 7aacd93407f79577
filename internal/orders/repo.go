package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

// CreateFromCart snapshots the user's cart into an order in one transaction:
// lock product rows, re-validate stock, decrement, insert order + items with
// frozen prices, delete the cart rows. Any shortage rolls the whole attempt
// back and reports ErrStockConflict.
func (r *Repo) CreateFromCart(ctx context.Context, userID string, ship ShippingAddress) (Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Deterministic lock order (by product id) so two concurrent checkouts
	// sharing products cannot deadlock each other.
	rows, err := tx.Query(ctx, `
		SELECT product_id, qty FROM cart_items
		WHERE user_id=$1 ORDER BY product_id`, userID)
	if err != nil {
		return Order{}, err
	}
	type line struct {
		productID string
		qty       int
	}
	var cartLines []line
	for rows.Next() {
		var l line
		if err := rows.Scan(&l.productID, &l.qty); err != nil {
			rows.Close()
			return Order{}, err
		}
		cartLines = append(cartLines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Order{}, err
	}
	if len(cartLines) == 0 {
		return Order{}, ErrEmptyCart
	}

	order := Order{
		ID:       uuid.NewString(),
		UserID:   userID,
		Status:   StatusPending,
		Shipping: ship,
	}
	for _, l := range cartLines {
		var stock, price int
		var active bool
		if err := tx.QueryRow(ctx, `
			SELECT stock, price_cents, active FROM products
			WHERE id=$1 FOR UPDATE`, l.productID).Scan(&stock, &price, &active); err != nil {
			return Order{}, err
		}
		if !active || stock < l.qty {
			return Order{}, ErrStockConflict
		}
		if _, err := tx.Exec(ctx, `
			UPDATE products SET stock = stock - $2, updated_at = now()
			WHERE id=$1`, l.productID, l.qty); err != nil {
			return Order{}, err
		}
		order.Items = append(order.Items, Item{
			ID:         uuid.NewString(),
			OrderID:    order.ID,
			ProductID:  l.productID,
			Qty:        l.qty,
			PriceCents: price,
		})
		order.TotalCents += price * l.qty
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO orders(id, user_id, status, total_cents,
			shipping_address, shipping_city, shipping_postal_code, shipping_country)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		order.ID, order.UserID, order.Status, order.TotalCents,
		ship.Address, ship.City, ship.PostalCode, ship.Country).
		Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	for _, it := range order.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(id, order_id, product_id, qty, price_cents)
			VALUES ($1,$2,$3,$4,$5)`,
			it.ID, it.OrderID, it.ProductID, it.Qty, it.PriceCents); err != nil {
			return Order{}, err
		}
	}
	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1`, userID); err != nil {
		return Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	return order, nil
}

func (r *Repo) Get(ctx context.Context, orderID string) (Order, error) {
	var o Order
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, status, total_cents,
		       shipping_address, shipping_city, shipping_postal_code, shipping_country,
		       created_at, updated_at
		FROM orders WHERE id=$1`, orderID).
		Scan(&o.ID, &o.UserID, &o.Status, &o.TotalCents,
			&o.Shipping.Address, &o.Shipping.City, &o.Shipping.PostalCode, &o.Shipping.Country,
			&o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, qty, price_cents
		FROM order_items WHERE order_id=$1`, orderID)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Qty, &it.PriceCents); err != nil {
			return Order{}, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

func (r *Repo) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, user_id, status, total_cents,
		       shipping_address, shipping_city, shipping_postal_code, shipping_country,
		       created_at, updated_at
		FROM orders WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.TotalCents,
			&o.Shipping.Address, &o.Shipping.City, &o.Shipping.PostalCode, &o.Shipping.Country,
			&o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// SetStatus is a compare-and-set: it only applies when the order is still in
// the expected state, so a concurrent writer loses cleanly instead of
// clobbering.
func (r *Repo) SetStatus(ctx context.Context, orderID string, from, to Status) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$3, updated_at=now()
		WHERE id=$1 AND status=$2`, orderID, from, to)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// CancelRestock cancels the order and puts every item's quantity back on the
// shelf, mirroring the decrement done at checkout, in one transaction.
func (r *Repo) CancelRestock(ctx context.Context, orderID string, from Status) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE orders SET status=$3, updated_at=now()
		WHERE id=$1 AND status=$2`, orderID, from, StatusCancelled)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() != 1 {
		return false, nil
	}

	rows, err := tx.Query(ctx, `
		SELECT product_id, qty FROM order_items
		WHERE order_id=$1 ORDER BY product_id`, orderID)
	if err != nil {
		return false, err
	}
	type line struct {
		productID string
		qty       int
	}
	var lines []line
	for rows.Next() {
		var l line
		if err := rows.Scan(&l.productID, &l.qty); err != nil {
			rows.Close()
			return false, err
		}
		lines = append(lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, err
	}

	for _, l := range lines {
		if _, err := tx.Exec(ctx, `
			UPDATE products SET stock = stock + $2, updated_at = now()
			WHERE id=$1`, l.productID, l.qty); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}
