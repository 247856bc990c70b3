package pgorders

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/merchline/matchbox/internal/models"
)

func (s *Storage) UpsertStorefrontOrder(ctx context.Context, o models.StorefrontOrder) error {
	now := time.Now().UTC()

	_, err := s.db.Exec(ctx, `
INSERT INTO storefront_orders (
  id, order_number, customer_name, total_amount, currency, financial_status,
  ordered_at, last_synced_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id)
DO UPDATE SET
  order_number = EXCLUDED.order_number,
  customer_name = EXCLUDED.customer_name,
  total_amount = EXCLUDED.total_amount,
  currency = EXCLUDED.currency,
  financial_status = EXCLUDED.financial_status,
  ordered_at = EXCLUDED.ordered_at,
  last_synced_at = EXCLUDED.last_synced_at
`, o.ID, o.OrderNumber, o.CustomerName, o.TotalAmount, o.Currency, o.FinancialStatus,
		o.OrderedAt.UTC(), now)
	return errors.Wrap(err, "upsert storefront order")
}

// StorefrontLastSync returns the latest ordered_at across stored storefront
// orders, or nil when none exist. The commerce platform reports no separate
// update timestamp on the fields this engine reads.
func (s *Storage) StorefrontLastSync(ctx context.Context) (*time.Time, error) {
	var ts *time.Time
	err := s.db.QueryRow(ctx, `SELECT MAX(ordered_at) FROM storefront_orders`).Scan(&ts)
	if err != nil {
		return nil, errors.Wrap(err, "select storefront watermark")
	}
	return ts, nil
}

// ListStorefrontCandidates returns orders placed within [from, to], the
// pre-filter window the scorer ranks against.
func (s *Storage) ListStorefrontCandidates(ctx context.Context, from, to time.Time) ([]*models.StorefrontOrder, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, order_number, customer_name, total_amount, currency, financial_status,
       ordered_at, last_synced_at
FROM storefront_orders
WHERE ordered_at >= $1 AND ordered_at <= $2
ORDER BY ordered_at
`, from.UTC(), to.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "select storefront candidates")
	}
	defer rows.Close()

	var out []*models.StorefrontOrder
	for rows.Next() {
		var o models.StorefrontOrder
		if err := rows.Scan(
			&o.ID, &o.OrderNumber, &o.CustomerName, &o.TotalAmount, &o.Currency,
			&o.FinancialStatus, &o.OrderedAt, &o.LastSyncedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan storefront order")
		}
		out = append(out, &o)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) GetStorefrontOrder(ctx context.Context, id int64) (*models.StorefrontOrder, error) {
	var o models.StorefrontOrder
	err := s.db.QueryRow(ctx, `
SELECT id, order_number, customer_name, total_amount, currency, financial_status,
       ordered_at, last_synced_at
FROM storefront_orders
WHERE id = $1
`, id).Scan(
		&o.ID, &o.OrderNumber, &o.CustomerName, &o.TotalAmount, &o.Currency,
		&o.FinancialStatus, &o.OrderedAt, &o.LastSyncedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select storefront order")
	}
	return &o, nil
}
