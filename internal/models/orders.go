package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Mapping classifications.
const (
	ClassificationNormal     = "normal"
	ClassificationCorrective = "corrective"
	ClassificationGift       = "gift"
)

func ValidClassification(c string) bool {
	switch c {
	case ClassificationNormal, ClassificationCorrective, ClassificationGift:
		return true
	}
	return false
}

// FulfillmentOrder is one order as reported by the print-on-demand provider.
// ID is the provider-assigned numeric identifier.
type FulfillmentOrder struct {
	ID            int64
	ExternalID    string
	RecipientName string
	TotalAmount   decimal.Decimal
	Currency      string
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastSyncedAt  time.Time

	Items []FulfillmentOrderItem
}

type FulfillmentOrderItem struct {
	OrderID     int64
	LineItemID  int64
	Name        string
	Quantity    int32
	RetailPrice decimal.Decimal
	Cost        decimal.Decimal
	Currency    string
	SKU         string
	Variant     map[string]string
}

// StorefrontOrder is one order from the commerce platform. Read-only for the
// reconciliation engine.
type StorefrontOrder struct {
	ID              int64
	OrderNumber     string
	CustomerName    string
	TotalAmount     decimal.Decimal
	Currency        string
	FinancialStatus string
	OrderedAt       time.Time
	LastSyncedAt    time.Time
}

// OrderMapping links a fulfillment order to its storefront counterpart.
// StorefrontOrderID is nil for gift and corrective orders that have none.
type OrderMapping struct {
	ID                 uuid.UUID
	FulfillmentOrderID int64
	StorefrontOrderID  *int64
	Classification     string
	MappedBy           *string
	MappedAt           time.Time
	Notes              string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// SuggestedMatch is an ephemeral scoring result, never persisted.
type SuggestedMatch struct {
	StorefrontOrderID int64           `json:"storefrontOrderId"`
	OrderNumber       string          `json:"orderNumber"`
	CustomerName      string          `json:"customerName"`
	TotalAmount       decimal.Decimal `json:"totalAmount"`
	Currency          string          `json:"currency"`
	OrderedAt         time.Time       `json:"orderedAt"`
	MatchScore        float64         `json:"matchScore"`
	MatchReasons      []string        `json:"matchReasons"`
}

// MappingStats are the aggregate reconciliation counters.
type MappingStats struct {
	TotalFulfillmentOrders int64   `json:"totalFulfillmentOrders"`
	MappedOrders           int64   `json:"mappedOrders"`
	UnmappedOrders         int64   `json:"unmappedOrders"`
	NormalOrders           int64   `json:"normalOrders"`
	CorrectiveOrders       int64   `json:"correctiveOrders"`
	GiftOrders             int64   `json:"giftOrders"`
	MappingPercentage      float64 `json:"mappingPercentage"`
}
