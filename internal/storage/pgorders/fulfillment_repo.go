package pgorders

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/merchline/matchbox/internal/models"
)

// UpsertFulfillmentOrder writes one order header plus all of its line items in
// a single transaction, keyed by the provider's identifiers. Safe to re-run:
// the same upstream data leaves the rows unchanged.
func (s *Storage) UpsertFulfillmentOrder(ctx context.Context, o models.FulfillmentOrder) error {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var updatedAt *time.Time
	if !o.UpdatedAt.IsZero() {
		u := o.UpdatedAt.UTC()
		updatedAt = &u
	}

	_, err = tx.Exec(ctx, `
INSERT INTO fulfillment_orders (
  id, external_id, recipient_name, total_amount, currency, status,
  created_at, updated_at, last_synced_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id)
DO UPDATE SET
  external_id = EXCLUDED.external_id,
  recipient_name = EXCLUDED.recipient_name,
  total_amount = EXCLUDED.total_amount,
  currency = EXCLUDED.currency,
  status = EXCLUDED.status,
  updated_at = EXCLUDED.updated_at,
  last_synced_at = EXCLUDED.last_synced_at
`, o.ID, o.ExternalID, o.RecipientName, o.TotalAmount, o.Currency, o.Status,
		o.CreatedAt.UTC(), updatedAt, now)
	if err != nil {
		return errors.Wrap(err, "upsert fulfillment order")
	}

	for _, it := range o.Items {
		var variant any
		if len(it.Variant) > 0 {
			b, err := json.Marshal(it.Variant)
			if err != nil {
				return errors.Wrap(err, "marshal variant")
			}
			variant = b
		}

		_, err = tx.Exec(ctx, `
INSERT INTO fulfillment_order_items (
  order_id, line_item_id, name, quantity, retail_price, cost, currency, sku, variant
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (order_id, line_item_id)
DO UPDATE SET
  name = EXCLUDED.name,
  quantity = EXCLUDED.quantity,
  retail_price = EXCLUDED.retail_price,
  cost = EXCLUDED.cost,
  currency = EXCLUDED.currency,
  sku = EXCLUDED.sku,
  variant = EXCLUDED.variant
`, o.ID, it.LineItemID, it.Name, it.Quantity, it.RetailPrice, it.Cost, it.Currency, it.SKU, variant)
		if err != nil {
			return errors.Wrap(err, "upsert fulfillment order item")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

// FulfillmentLastSync returns the incremental-sync watermark: the latest
// updated_at (falling back to created_at) across stored orders, or nil when
// the table is empty.
func (s *Storage) FulfillmentLastSync(ctx context.Context) (*time.Time, error) {
	var ts *time.Time
	err := s.db.QueryRow(ctx, `
SELECT MAX(COALESCE(updated_at, created_at)) FROM fulfillment_orders
`).Scan(&ts)
	if err != nil {
		return nil, errors.Wrap(err, "select fulfillment watermark")
	}
	return ts, nil
}

func (s *Storage) GetFulfillmentOrder(ctx context.Context, id int64) (*models.FulfillmentOrder, error) {
	row := s.db.QueryRow(ctx, `
SELECT id, external_id, recipient_name, total_amount, currency, status,
       created_at, updated_at, last_synced_at
FROM fulfillment_orders
WHERE id = $1
`, id)

	o, err := scanFulfillmentOrder(row)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select fulfillment order")
	}
	return o, nil
}

func (s *Storage) CountFulfillmentOrders(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM fulfillment_orders`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count fulfillment orders")
	}
	return n, nil
}

// ListUnmappedFulfillmentOrders returns orders with no mapping row, newest
// first. "Unmapped" is derived with an anti-join so there is no second source
// of truth to keep consistent.
func (s *Storage) ListUnmappedFulfillmentOrders(ctx context.Context, limit, offset int) ([]*models.FulfillmentOrder, int64, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	err := s.db.QueryRow(ctx, `
SELECT COUNT(*)
FROM fulfillment_orders f
WHERE NOT EXISTS (
  SELECT 1 FROM order_mappings m WHERE m.fulfillment_order_id = f.id
)
`).Scan(&total)
	if err != nil {
		return nil, 0, errors.Wrap(err, "count unmapped orders")
	}

	rows, err := s.db.Query(ctx, `
SELECT id, external_id, recipient_name, total_amount, currency, status,
       created_at, updated_at, last_synced_at
FROM fulfillment_orders f
WHERE NOT EXISTS (
  SELECT 1 FROM order_mappings m WHERE m.fulfillment_order_id = f.id
)
ORDER BY created_at DESC
LIMIT $1 OFFSET $2
`, limit, offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, "select unmapped orders")
	}
	defer rows.Close()

	var out []*models.FulfillmentOrder
	for rows.Next() {
		o, err := scanFulfillmentOrder(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "scan unmapped order")
		}
		out = append(out, o)
	}
	if rows.Err() != nil {
		return nil, 0, errors.Wrap(rows.Err(), "rows")
	}
	return out, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFulfillmentOrder(r rowScanner) (*models.FulfillmentOrder, error) {
	var o models.FulfillmentOrder
	var updatedAt *time.Time
	if err := r.Scan(
		&o.ID, &o.ExternalID, &o.RecipientName, &o.TotalAmount, &o.Currency, &o.Status,
		&o.CreatedAt, &updatedAt, &o.LastSyncedAt,
	); err != nil {
		return nil, err
	}
	if updatedAt != nil {
		o.UpdatedAt = *updatedAt
	}
	return &o, nil
}
