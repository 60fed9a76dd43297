package models

import "time"

// DispatchType distinguishes transfers between own stores from transfers to
// external parties.
type DispatchType string

const (
	DispatchTypeInternal DispatchType = "INTERNAL"
	DispatchTypeExternal DispatchType = "EXTERNAL"
)

// Dispatch records a transfer of goods between stores, tracked item-by-item
// for receipt and optional return. The display status is never stored; it is
// derived from the items on every read.
type Dispatch struct {
	ID             string         `db:"id" json:"id"`
	DispatchNumber string         `db:"dispatch_number" json:"dispatch_number"`
	Type           DispatchType   `db:"type" json:"type"`
	FromStoreID    string         `db:"from_store_id" json:"from_store_id"`
	ToStoreID      string         `db:"to_store_id" json:"to_store_id"`
	IsReturnable   bool           `db:"is_returnable" json:"is_returnable"`
	Notes          *string        `db:"notes" json:"notes,omitempty"`
	AcknowledgedBy *string        `db:"acknowledged_by" json:"acknowledged_by,omitempty"`
	BreakageID     *string        `db:"breakage_id" json:"breakage_id,omitempty"`
	CreatedBy      string         `db:"created_by" json:"created_by"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
	Items          []DispatchItem `db:"-" json:"items"`
}

// DispatchItem tracks one product line of a dispatch. Counters only ever grow:
// acknowledge-receipt increments received_quantity, returns increment
// returned_quantity, and is_returned closes the item's return lifecycle.
type DispatchItem struct {
	ID               string     `db:"id" json:"id"`
	DispatchID       string     `db:"dispatch_id" json:"dispatch_id"`
	ProductID        string     `db:"product_id" json:"product_id"`
	VariantID        *string    `db:"variant_id" json:"variant_id,omitempty"`
	ProductName      string     `db:"product_name" json:"product_name"`
	Quantity         int        `db:"quantity" json:"quantity"`
	ReceivedQuantity int        `db:"received_quantity" json:"received_quantity"`
	ReturnedQuantity int        `db:"returned_quantity" json:"returned_quantity"`
	IsReturnable     bool       `db:"is_returnable" json:"is_returnable"`
	IsReturned       bool       `db:"is_returned" json:"is_returned"`
	ReturnDate       *time.Time `db:"return_date" json:"return_date,omitempty"`
	ReturnNotes      *string    `db:"return_notes" json:"return_notes,omitempty"`
}

// DispatchFilter constrains dispatch listing queries.
type DispatchFilter struct {
	Type        DispatchType
	FromStoreID string
	ToStoreID   string
	Search      string
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}
