package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

func (r *Repo) Upsert(ctx context.Context, item Item) (Item, error) {
	err := r.DB.QueryRow(ctx, `
		INSERT INTO cart_items(id, user_id, product_id, qty)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET qty = EXCLUDED.qty, updated_at = now()
		RETURNING id, user_id, product_id, qty, created_at, updated_at`,
		uuid.NewString(), item.UserID, item.ProductID, item.Qty).
		Scan(&item.ID, &item.UserID, &item.ProductID, &item.Qty, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

func (r *Repo) GetItem(ctx context.Context, userID, itemID string) (Item, error) {
	var it Item
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, product_id, qty, created_at, updated_at
		FROM cart_items WHERE id=$1 AND user_id=$2`, itemID, userID).
		Scan(&it.ID, &it.UserID, &it.ProductID, &it.Qty, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	if err != nil {
		return Item{}, err
	}
	return it, nil
}

func (r *Repo) SetQty(ctx context.Context, userID, itemID string, qty int) (Item, error) {
	var it Item
	err := r.DB.QueryRow(ctx, `
		UPDATE cart_items SET qty=$3, updated_at=now()
		WHERE id=$1 AND user_id=$2
		RETURNING id, user_id, product_id, qty, created_at, updated_at`,
		itemID, userID, qty).
		Scan(&it.ID, &it.UserID, &it.ProductID, &it.Qty, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	if err != nil {
		return Item{}, err
	}
	return it, nil
}

func (r *Repo) Remove(ctx context.Context, userID, itemID string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE id=$1 AND user_id=$2`, itemID, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *Repo) Clear(ctx context.Context, userID string) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1`, userID)
	return err
}

func (r *Repo) Lines(ctx context.Context, userID string) ([]Line, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT ci.id, ci.user_id, ci.product_id, ci.qty, ci.created_at, ci.updated_at,
		       p.name, p.price_cents
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id=$1
		ORDER BY ci.created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.UserID, &l.ProductID, &l.Qty, &l.CreatedAt, &l.UpdatedAt,
			&l.ProductName, &l.PriceCents); err != nil {
			return nil, err
		}
		l.SubtotalCents = l.PriceCents * l.Qty
		out = append(out, l)
	}
	return out, rows.Err()
}
