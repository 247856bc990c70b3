package messages

import "time"

// Sync sources.
const (
	SourceFulfillment = "fulfillment"
	SourceStorefront  = "storefront"
)

// SyncCompleted is published after a sync run that upserted anything.
// Consumers use it to drop cached reconciliation stats.
type SyncCompleted struct {
	Source       string    `json:"source"`
	FullSync     bool      `json:"full_sync"`
	OrdersSynced int       `json:"orders_synced"`
	ItemsSynced  int       `json:"items_synced,omitempty"`
	CompletedAt  time.Time `json:"completed_at"`
}

// Mapping change actions.
const (
	MappingCreated = "created"
	MappingUpdated = "updated"
	MappingDeleted = "deleted"
)

type MappingChanged struct {
	MappingID          string    `json:"mapping_id"`
	FulfillmentOrderID int64     `json:"fulfillment_order_id"`
	Action             string    `json:"action"`
	Actor              *string   `json:"actor,omitempty"`
	ChangedAt          time.Time `json:"changed_at"`
}
