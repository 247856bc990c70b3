package pgorders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/merchline/matchbox/internal/models"
)

// MappingFilters narrows ListMappings. Zero values mean "no filter".
// DateTo is inclusive and must already be end-of-day adjusted by the caller.
type MappingFilters struct {
	Classification string
	DateFrom       *time.Time
	DateTo         *time.Time
	Search         string

	Limit  int
	Offset int
}

// Predicate compiles the filters into a parameterized WHERE fragment and its
// arguments. Pure; user input never lands in the SQL text itself.
func (f MappingFilters) Predicate() (string, []any) {
	var conds []string
	var args []any

	next := func() string { return fmt.Sprintf("$%d", len(args)) }

	if f.Classification != "" && f.Classification != "all" {
		args = append(args, f.Classification)
		conds = append(conds, "m.classification = "+next())
	}
	if f.DateFrom != nil {
		args = append(args, f.DateFrom.UTC())
		conds = append(conds, "m.created_at >= "+next())
	}
	if f.DateTo != nil {
		args = append(args, f.DateTo.UTC())
		conds = append(conds, "m.created_at <= "+next())
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		p := next()
		conds = append(conds, `(
  f.id::TEXT ILIKE `+p+`
  OR f.external_id ILIKE `+p+`
  OR f.recipient_name ILIKE `+p+`
  OR s.order_number ILIKE `+p+`
  OR s.customer_name ILIKE `+p+`
)`)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// MappingDetail is one mapping hydrated with both order summaries for the
// admin listing. StorefrontOrder is nil for gift/corrective mappings without
// a storefront counterpart.
type MappingDetail struct {
	Mapping          models.OrderMapping
	FulfillmentOrder models.FulfillmentOrder
	StorefrontOrder  *models.StorefrontOrder
}

func (s *Storage) CreateMapping(ctx context.Context, m *models.OrderMapping) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO order_mappings (
  id, fulfillment_order_id, storefront_order_id, classification,
  mapped_by, mapped_at, notes, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`, m.ID, m.FulfillmentOrderID, m.StorefrontOrderID, m.Classification,
		m.MappedBy, m.MappedAt.UTC(), m.Notes, m.CreatedAt.UTC(), m.UpdatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrAlreadyMapped
			case "23503":
				return ErrNotFound
			}
		}
		return errors.Wrap(err, "insert mapping")
	}
	return nil
}

func (s *Storage) GetMapping(ctx context.Context, id uuid.UUID) (*models.OrderMapping, error) {
	row := s.db.QueryRow(ctx, `
SELECT id, fulfillment_order_id, storefront_order_id, classification,
       mapped_by, mapped_at, notes, created_at, updated_at
FROM order_mappings
WHERE id = $1
`, id)

	m, err := scanMapping(row)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select mapping")
	}
	return m, nil
}

// MappingPatch carries the partial update for one mapping. Nil fields are
// left untouched; ClearStorefrontOrder unlinks the storefront order.
type MappingPatch struct {
	StorefrontOrderID    *int64
	ClearStorefrontOrder bool
	Classification       *string
	Notes                *string
}

// UpdateMapping applies the patch and re-stamps mapped_by/mapped_at to the
// current actor and time.
func (s *Storage) UpdateMapping(ctx context.Context, id uuid.UUID, patch MappingPatch, actor *string) (*models.OrderMapping, error) {
	now := time.Now().UTC()

	sets := []string{"mapped_by = $2", "mapped_at = $3", "updated_at = $3"}
	args := []any{id, actor, now}

	if patch.ClearStorefrontOrder {
		sets = append(sets, "storefront_order_id = NULL")
	} else if patch.StorefrontOrderID != nil {
		args = append(args, *patch.StorefrontOrderID)
		sets = append(sets, fmt.Sprintf("storefront_order_id = $%d", len(args)))
	}
	if patch.Classification != nil {
		args = append(args, *patch.Classification)
		sets = append(sets, fmt.Sprintf("classification = $%d", len(args)))
	}
	if patch.Notes != nil {
		args = append(args, *patch.Notes)
		sets = append(sets, fmt.Sprintf("notes = $%d", len(args)))
	}

	row := s.db.QueryRow(ctx, `
UPDATE order_mappings
SET `+strings.Join(sets, ", ")+`
WHERE id = $1
RETURNING id, fulfillment_order_id, storefront_order_id, classification,
          mapped_by, mapped_at, notes, created_at, updated_at
`, args...)

	m, err := scanMapping(row)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "update mapping")
	}
	return m, nil
}

func (s *Storage) DeleteMapping(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM order_mappings WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete mapping")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Storage) ListMappings(ctx context.Context, f MappingFilters) ([]*MappingDetail, int64, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	where, args := f.Predicate()

	const fromClause = `
FROM order_mappings m
JOIN fulfillment_orders f ON f.id = m.fulfillment_order_id
LEFT JOIN storefront_orders s ON s.id = m.storefront_order_id
`

	var total int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*)`+fromClause+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count mappings")
	}

	limitArgs := append(args, f.Limit, f.Offset)
	rows, err := s.db.Query(ctx, `
SELECT
  m.id, m.fulfillment_order_id, m.storefront_order_id, m.classification,
  m.mapped_by, m.mapped_at, m.notes, m.created_at, m.updated_at,
  f.id, f.external_id, f.recipient_name, f.total_amount, f.currency, f.status,
  f.created_at, f.updated_at, f.last_synced_at,
  s.id, s.order_number, s.customer_name, s.total_amount, s.currency,
  s.financial_status, s.ordered_at, s.last_synced_at
`+fromClause+where+fmt.Sprintf(`
ORDER BY m.created_at DESC
LIMIT $%d OFFSET $%d
`, len(args)+1, len(args)+2), limitArgs...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "select mappings")
	}
	defer rows.Close()

	var out []*MappingDetail
	for rows.Next() {
		var d MappingDetail
		var mappedBy *string
		var fUpdatedAt *time.Time
		var so models.StorefrontOrder
		var soID *int64
		var soNumber, soCustomer, soCurrency, soStatus *string
		var soAmount decimal.NullDecimal
		var soOrderedAt, soSyncedAt *time.Time

		if err := rows.Scan(
			&d.Mapping.ID, &d.Mapping.FulfillmentOrderID, &d.Mapping.StorefrontOrderID,
			&d.Mapping.Classification, &mappedBy, &d.Mapping.MappedAt, &d.Mapping.Notes,
			&d.Mapping.CreatedAt, &d.Mapping.UpdatedAt,
			&d.FulfillmentOrder.ID, &d.FulfillmentOrder.ExternalID, &d.FulfillmentOrder.RecipientName,
			&d.FulfillmentOrder.TotalAmount, &d.FulfillmentOrder.Currency, &d.FulfillmentOrder.Status,
			&d.FulfillmentOrder.CreatedAt, &fUpdatedAt, &d.FulfillmentOrder.LastSyncedAt,
			&soID, &soNumber, &soCustomer, &soAmount, &soCurrency,
			&soStatus, &soOrderedAt, &soSyncedAt,
		); err != nil {
			return nil, 0, errors.Wrap(err, "scan mapping detail")
		}

		d.Mapping.MappedBy = mappedBy
		if fUpdatedAt != nil {
			d.FulfillmentOrder.UpdatedAt = *fUpdatedAt
		}
		if soID != nil {
			so.ID = *soID
			so.OrderNumber = deref(soNumber)
			so.CustomerName = deref(soCustomer)
			so.Currency = deref(soCurrency)
			so.FinancialStatus = deref(soStatus)
			if soAmount.Valid {
				so.TotalAmount = soAmount.Decimal
			}
			if soOrderedAt != nil {
				so.OrderedAt = *soOrderedAt
			}
			if soSyncedAt != nil {
				so.LastSyncedAt = *soSyncedAt
			}
			d.StorefrontOrder = &so
		}

		out = append(out, &d)
	}
	if rows.Err() != nil {
		return nil, 0, errors.Wrap(rows.Err(), "rows")
	}
	return out, total, nil
}

// MappingCounts returns the raw aggregates; percentage math lives in the
// service layer.
func (s *Storage) MappingCounts(ctx context.Context) (total, mapped, normal, corrective, gift int64, err error) {
	err = s.db.QueryRow(ctx, `
SELECT
  (SELECT COUNT(*) FROM fulfillment_orders),
  COUNT(*),
  COUNT(*) FILTER (WHERE classification = 'normal'),
  COUNT(*) FILTER (WHERE classification = 'corrective'),
  COUNT(*) FILTER (WHERE classification = 'gift')
FROM order_mappings
`).Scan(&total, &mapped, &normal, &corrective, &gift)
	if err != nil {
		err = errors.Wrap(err, "select mapping counts")
	}
	return
}

func scanMapping(r rowScanner) (*models.OrderMapping, error) {
	var m models.OrderMapping
	var mappedBy *string
	if err := r.Scan(
		&m.ID, &m.FulfillmentOrderID, &m.StorefrontOrderID, &m.Classification,
		&mappedBy, &m.MappedAt, &m.Notes, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	m.MappedBy = mappedBy
	return &m, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
