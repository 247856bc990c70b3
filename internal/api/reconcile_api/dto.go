package reconcile_api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/merchline/matchbox/internal/models"
	"github.com/merchline/matchbox/internal/services/reconcile"
	"github.com/merchline/matchbox/internal/storage/pgorders"
)

type fulfillmentOrderJSON struct {
	ID            int64           `json:"id"`
	ExternalID    string          `json:"externalId"`
	RecipientName string          `json:"recipientName"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     *time.Time      `json:"updatedAt,omitempty"`
	LastSyncedAt  time.Time       `json:"lastSyncedAt"`
}

type storefrontOrderJSON struct {
	ID              int64           `json:"id"`
	OrderNumber     string          `json:"orderNumber"`
	CustomerName    string          `json:"customerName"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Currency        string          `json:"currency"`
	FinancialStatus string          `json:"financialStatus"`
	OrderedAt       time.Time       `json:"orderedAt"`
}

type mappingJSON struct {
	ID                 string    `json:"id"`
	FulfillmentOrderID int64     `json:"fulfillmentOrderId"`
	StorefrontOrderID  *int64    `json:"storefrontOrderId,omitempty"`
	Classification     string    `json:"classification"`
	MappedBy           *string   `json:"mappedBy,omitempty"`
	MappedAt           time.Time `json:"mappedAt"`
	Notes              string    `json:"notes"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

type mappingDetailJSON struct {
	Mapping          mappingJSON          `json:"mapping"`
	FulfillmentOrder fulfillmentOrderJSON `json:"fulfillmentOrder"`
	StorefrontOrder  *storefrontOrderJSON `json:"storefrontOrder,omitempty"`
}

type listMappingsJSON struct {
	Mappings   []mappingDetailJSON `json:"mappings"`
	TotalCount int64               `json:"totalCount"`
	Stats      models.MappingStats `json:"stats"`
}

type unmappedOrderJSON struct {
	Order            fulfillmentOrderJSON    `json:"order"`
	SuggestedMatches []models.SuggestedMatch `json:"suggestedMatches"`
}

type listUnmappedJSON struct {
	Orders     []unmappedOrderJSON `json:"orders"`
	TotalCount int64               `json:"totalCount"`
}

func toMappingJSON(m *models.OrderMapping) mappingJSON {
	return mappingJSON{
		ID:                 m.ID.String(),
		FulfillmentOrderID: m.FulfillmentOrderID,
		StorefrontOrderID:  m.StorefrontOrderID,
		Classification:     m.Classification,
		MappedBy:           m.MappedBy,
		MappedAt:           m.MappedAt,
		Notes:              m.Notes,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func toFulfillmentOrderJSON(o *models.FulfillmentOrder) fulfillmentOrderJSON {
	out := fulfillmentOrderJSON{
		ID:            o.ID,
		ExternalID:    o.ExternalID,
		RecipientName: o.RecipientName,
		TotalAmount:   o.TotalAmount,
		Currency:      o.Currency,
		Status:        o.Status,
		CreatedAt:     o.CreatedAt,
		LastSyncedAt:  o.LastSyncedAt,
	}
	if !o.UpdatedAt.IsZero() {
		u := o.UpdatedAt
		out.UpdatedAt = &u
	}
	return out
}

func toStorefrontOrderJSON(o *models.StorefrontOrder) *storefrontOrderJSON {
	if o == nil {
		return nil
	}
	return &storefrontOrderJSON{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		CustomerName:    o.CustomerName,
		TotalAmount:     o.TotalAmount,
		Currency:        o.Currency,
		FinancialStatus: o.FinancialStatus,
		OrderedAt:       o.OrderedAt,
	}
}

func toMappingDetailJSON(d *pgorders.MappingDetail) mappingDetailJSON {
	return mappingDetailJSON{
		Mapping:          toMappingJSON(&d.Mapping),
		FulfillmentOrder: toFulfillmentOrderJSON(&d.FulfillmentOrder),
		StorefrontOrder:  toStorefrontOrderJSON(d.StorefrontOrder),
	}
}

func toListUnmappedJSON(res *reconcile.ListUnmappedResult) listUnmappedJSON {
	out := listUnmappedJSON{
		Orders:     make([]unmappedOrderJSON, 0, len(res.Orders)),
		TotalCount: res.TotalCount,
	}
	for _, u := range res.Orders {
		out.Orders = append(out.Orders, unmappedOrderJSON{
			Order:            toFulfillmentOrderJSON(u.Order),
			SuggestedMatches: u.SuggestedMatches,
		})
	}
	return out
}
