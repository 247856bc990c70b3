package fake

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/merchline/matchbox/internal/integrations/orders"
	"github.com/merchline/matchbox/internal/models"
)

// Deterministic stand-in for both providers, used when no credentials are
// configured in dev/demo environments. Orders are derived from their index,
// so repeated syncs see identical upstream data. Roughly 80% of fulfillment
// orders have a storefront counterpart with the same amount and a same-day
// date; the rest stay unmatched (gifts, reships).
type Provider struct {
	total int
	base  time.Time
}

func New(total int) *Provider {
	if total <= 0 {
		total = 250
	}
	return &Provider{
		total: total,
		base:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

var fakeNames = []string{
	"John Smith", "Maria Garcia", "Wei Chen", "Aisha Khan",
	"Lukas Meyer", "Emma Johnson", "Noah Brown", "Olivia Davis",
}

func (p *Provider) ListOrders(ctx context.Context, offset, limit int) (orders.FulfillmentPage, error) {
	var out []models.FulfillmentOrder
	for i := offset; i < p.total && len(out) < limit; i++ {
		out = append(out, p.fulfillmentOrder(i))
	}
	return orders.FulfillmentPage{Orders: out, Total: p.total}, nil
}

// Storefront exposes the storefront side of the same catalog under the
// storefront client contract. Both contracts name their method ListOrders,
// so the Provider cannot satisfy them on one receiver.
func (p *Provider) Storefront() orders.StorefrontClient {
	return storefrontView{p}
}

type storefrontView struct{ p *Provider }

func (v storefrontView) ListOrders(ctx context.Context, sinceID int64, limit int, updatedSince time.Time) ([]models.StorefrontOrder, error) {
	return v.p.ListStorefrontOrders(ctx, sinceID, limit, updatedSince)
}

// ListStorefrontOrders implements the storefront side of the same catalog.
func (p *Provider) ListStorefrontOrders(ctx context.Context, sinceID int64, limit int, updatedSince time.Time) ([]models.StorefrontOrder, error) {
	var out []models.StorefrontOrder
	for i := 0; i < p.total && len(out) < limit; i++ {
		if !p.hasStorefrontTwin(i) {
			continue
		}
		o := p.storefrontOrder(i)
		if o.ID <= sinceID {
			continue
		}
		if !updatedSince.IsZero() && o.OrderedAt.Before(updatedSince) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (p *Provider) fulfillmentOrder(i int) models.FulfillmentOrder {
	id := int64(9000 + i)
	created := p.base.Add(time.Duration(i) * 2 * time.Hour)
	amount := p.amount(i)
	name := fakeNames[p.hash(i)%uint32(len(fakeNames))]

	return models.FulfillmentOrder{
		ID:            id,
		ExternalID:    fmt.Sprintf("PF-%d", id),
		RecipientName: name,
		TotalAmount:   amount,
		Currency:      "USD",
		Status:        "fulfilled",
		CreatedAt:     created,
		UpdatedAt:     created,
		Items: []models.FulfillmentOrderItem{
			{
				OrderID:     id,
				LineItemID:  id*10 + 1,
				Name:        "Classic Tee",
				Quantity:    1,
				RetailPrice: amount,
				Cost:        amount.Div(decimal.NewFromInt(2)).Round(2),
				Currency:    "USD",
				SKU:         fmt.Sprintf("TEE-%03d", i%40),
				Variant:     map[string]string{"size": "M", "color": "black"},
			},
		},
	}
}

func (p *Provider) storefrontOrder(i int) models.StorefrontOrder {
	id := int64(500000 + i)
	return models.StorefrontOrder{
		ID:              id,
		OrderNumber:     fmt.Sprintf("#%d", 1000+i),
		CustomerName:    fakeNames[p.hash(i)%uint32(len(fakeNames))],
		TotalAmount:     p.amount(i),
		Currency:        "USD",
		FinancialStatus: "paid",
		OrderedAt:       p.base.Add(time.Duration(i)*2*time.Hour - 30*time.Minute),
	}
}

func (p *Provider) hasStorefrontTwin(i int) bool {
	return p.hash(i)%5 != 0
}

func (p *Provider) amount(i int) decimal.Decimal {
	cents := int64(1999 + (p.hash(i)%60)*100)
	return decimal.New(cents, -2)
}

func (p *Provider) hash(i int) uint32 {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "order|%d", i)
	return h.Sum32()
}
