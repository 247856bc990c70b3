package pgorders

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS fulfillment_orders (
  id BIGINT PRIMARY KEY,
  external_id TEXT NOT NULL,
  recipient_name TEXT NOT NULL DEFAULT '',
  total_amount NUMERIC(12,2) NOT NULL,
  currency TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NULL,
  last_synced_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_fulfillment_orders_created_at ON fulfillment_orders(created_at DESC)`,
		`
CREATE TABLE IF NOT EXISTS fulfillment_order_items (
  order_id BIGINT NOT NULL REFERENCES fulfillment_orders(id) ON DELETE CASCADE,
  line_item_id BIGINT NOT NULL,
  name TEXT NOT NULL DEFAULT '',
  quantity INT NOT NULL DEFAULT 1,
  retail_price NUMERIC(12,2) NOT NULL,
  cost NUMERIC(12,2) NOT NULL,
  currency TEXT NOT NULL,
  sku TEXT NOT NULL DEFAULT '',
  variant JSONB NULL,
  PRIMARY KEY (order_id, line_item_id)
)`,
		`
CREATE TABLE IF NOT EXISTS storefront_orders (
  id BIGINT PRIMARY KEY,
  order_number TEXT NOT NULL,
  customer_name TEXT NOT NULL DEFAULT '',
  total_amount NUMERIC(12,2) NOT NULL,
  currency TEXT NOT NULL,
  financial_status TEXT NOT NULL DEFAULT '',
  ordered_at TIMESTAMPTZ NOT NULL,
  last_synced_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_storefront_orders_ordered_at ON storefront_orders(ordered_at)`,
		`
CREATE TABLE IF NOT EXISTS order_mappings (
  id UUID PRIMARY KEY,
  fulfillment_order_id BIGINT NOT NULL REFERENCES fulfillment_orders(id),
  storefront_order_id BIGINT NULL REFERENCES storefront_orders(id),
  classification TEXT NOT NULL CHECK (classification IN ('normal','corrective','gift')),
  mapped_by TEXT NULL,
  mapped_at TIMESTAMPTZ NOT NULL,
  notes TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		// One mapping per fulfillment order; a second create is a conflict.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_order_mappings_fulfillment_order_id ON order_mappings(fulfillment_order_id)`,
		`CREATE INDEX IF NOT EXISTS idx_order_mappings_created_at ON order_mappings(created_at DESC)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
