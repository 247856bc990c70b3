package orders

import (
	"context"
	"time"

	"github.com/merchline/matchbox/internal/models"
)

// FulfillmentPage is one page of provider orders plus the provider-reported
// total, used by the syncer to decide when to stop paging.
type FulfillmentPage struct {
	Orders []models.FulfillmentOrder
	Total  int
}

// FulfillmentClient lists orders from the print-on-demand provider using
// offset pagination. The provider cannot filter by update time server-side,
// so incremental runs filter client-side.
type FulfillmentClient interface {
	ListOrders(ctx context.Context, offset, limit int) (FulfillmentPage, error)
}

// StorefrontClient lists orders from the commerce platform. Pagination is
// cursor-style on the last seen order id; updatedSince is pushed down to the
// platform when non-zero.
type StorefrontClient interface {
	ListOrders(ctx context.Context, sinceID int64, limit int, updatedSince time.Time) ([]models.StorefrontOrder, error)
}
