package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

var (
	_ Store          = (*Repo)(nil)
	_ ReconcileStore = (*Repo)(nil)
)

func (r *Repo) Insert(ctx context.Context, p Payment) (Payment, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	err := r.DB.QueryRow(ctx, `
		INSERT INTO payments(id, order_id, intent_id, client_secret, status, amount_cents)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		p.ID, p.OrderID, p.IntentID, p.ClientSecret, p.Status, p.AmountCents).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Payment{}, err
	}
	return p, nil
}

func (r *Repo) GetByOrderID(ctx context.Context, orderID string) (Payment, error) {
	return r.get(ctx, `WHERE order_id=$1`, orderID)
}

func (r *Repo) GetByIntentID(ctx context.Context, intentID string) (Payment, error) {
	return r.get(ctx, `WHERE intent_id=$1`, intentID)
}

func (r *Repo) get(ctx context.Context, where, arg string) (Payment, error) {
	var p Payment
	err := r.DB.QueryRow(ctx, `
		SELECT id, order_id, intent_id, client_secret, status, amount_cents,
		       card_last4, failure_reason, created_at, updated_at, paid_at
		FROM payments `+where, arg).
		Scan(&p.ID, &p.OrderID, &p.IntentID, &p.ClientSecret, &p.Status, &p.AmountCents,
			&p.CardLast4, &p.FailureReason, &p.CreatedAt, &p.UpdatedAt, &p.PaidAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, ErrNotFound
	}
	if err != nil {
		return Payment{}, err
	}
	return p, nil
}

// ApplySucceeded records the event id and applies the succeeded transition in
// one transaction. A duplicate event id commits nothing and reports Duplicate;
// an unknown intent rolls everything back (the event stays unrecorded so the
// processor's retry can land after the payment row exists). OrderAdvanced
// reports whether the order CAS landed: a success arriving after the order was
// cancelled settles the payment for audit but leaves the order alone.
func (r *Repo) ApplySucceeded(ctx context.Context, eventID, intentID, cardLast4 string) (ReconcileResult, error) {
	var res ReconcileResult

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return res, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	dup, err := markProcessed(ctx, tx, eventID, EventIntentSucceeded)
	if err != nil {
		return res, err
	}
	if dup {
		res.Duplicate = true
		return res, tx.Commit(ctx)
	}

	var p struct {
		id, orderID string
		status      Status
	}
	err = tx.QueryRow(ctx, `
		SELECT id, order_id, status FROM payments
		WHERE intent_id=$1 FOR UPDATE`, intentID).Scan(&p.id, &p.orderID, &p.status)
	if errors.Is(err, pgx.ErrNoRows) {
		return res, ErrNotFound
	}
	if err != nil {
		return res, err
	}
	res.OrderID = p.orderID

	if err := tx.QueryRow(ctx, `
		SELECT user_id, total_cents FROM orders
		WHERE id=$1 FOR UPDATE`, p.orderID).Scan(&res.UserID, &res.TotalCents); err != nil {
		return res, err
	}

	if p.status == StatusSucceeded {
		res.AlreadyApplied = true
		return res, tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE payments SET status=$2, card_last4=$3, failure_reason='',
			paid_at=now(), updated_at=now()
		WHERE id=$1`, p.id, StatusSucceeded, cardLast4); err != nil {
		return res, err
	}
	// single writer of order lifecycle state; CAS keeps a cancelled order cancelled
	ct, err := tx.Exec(ctx, `
		UPDATE orders SET status=$2, updated_at=now()
		WHERE id=$1 AND status=$3`, p.orderID, "PROCESSING", "PENDING")
	if err != nil {
		return res, err
	}
	res.OrderAdvanced = ct.RowsAffected() == 1

	if err := tx.Commit(ctx); err != nil {
		return res, err
	}
	res.Applied = true
	return res, nil
}

// ApplyFailed marks the payment FAILED and, when the order was created before
// the cancellation cutoff and is still PENDING, cancels it and restores stock
// item by item — the exact mirror of the checkout decrement.
func (r *Repo) ApplyFailed(ctx context.Context, eventID, intentID, reason string, cancelBefore *time.Time) (ReconcileResult, error) {
	var res ReconcileResult

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return res, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	dup, err := markProcessed(ctx, tx, eventID, EventIntentFailed)
	if err != nil {
		return res, err
	}
	if dup {
		res.Duplicate = true
		return res, tx.Commit(ctx)
	}

	var p struct {
		id, orderID string
		status      Status
	}
	err = tx.QueryRow(ctx, `
		SELECT id, order_id, status FROM payments
		WHERE intent_id=$1 FOR UPDATE`, intentID).Scan(&p.id, &p.orderID, &p.status)
	if errors.Is(err, pgx.ErrNoRows) {
		return res, ErrNotFound
	}
	if err != nil {
		return res, err
	}
	res.OrderID = p.orderID

	// Out-of-order delivery: a failure arriving after success never regresses
	// the payment.
	if p.status == StatusSucceeded {
		res.AlreadyApplied = true
		return res, tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE payments SET status=$2, failure_reason=$3, updated_at=now()
		WHERE id=$1`, p.id, StatusFailed, reason); err != nil {
		return res, err
	}

	var orderStatus string
	var orderCreated time.Time
	if err := tx.QueryRow(ctx, `
		SELECT user_id, status, created_at FROM orders
		WHERE id=$1 FOR UPDATE`, p.orderID).Scan(&res.UserID, &orderStatus, &orderCreated); err != nil {
		return res, err
	}

	if cancelBefore != nil && orderStatus == "PENDING" && !orderCreated.After(*cancelBefore) {
		if _, err := tx.Exec(ctx, `
			UPDATE orders SET status='CANCELLED', updated_at=now()
			WHERE id=$1`, p.orderID); err != nil {
			return res, err
		}
		rows, err := tx.Query(ctx, `
			SELECT product_id, qty FROM order_items
			WHERE order_id=$1 ORDER BY product_id`, p.orderID)
		if err != nil {
			return res, err
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
				return res, err
			}
			lines = append(lines, l)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return res, err
		}
		for _, l := range lines {
			if _, err := tx.Exec(ctx, `
				UPDATE products SET stock = stock + $2, updated_at = now()
				WHERE id=$1`, l.productID, l.qty); err != nil {
				return res, err
			}
		}
		res.Cancelled = true
	}

	if err := tx.Commit(ctx); err != nil {
		return res, err
	}
	res.Applied = true
	return res, nil
}

func markProcessed(ctx context.Context, tx pgx.Tx, eventID, eventType string) (duplicate bool, err error) {
	ct, err := tx.Exec(ctx, `
		INSERT INTO webhook_events(id, event_type) VALUES ($1,$2)
		ON CONFLICT (id) DO NOTHING`, eventID, eventType)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 0, nil
}
