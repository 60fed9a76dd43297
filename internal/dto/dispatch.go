package dto

import (
	"github.com/noah-isme/backoffice-api/internal/models"
	"github.com/noah-isme/backoffice-api/internal/workflow"
)

// CreateDispatchItemRequest is one product line of a new dispatch.
type CreateDispatchItemRequest struct {
	ProductID    string   `json:"product_id" validate:"required"`
	VariantID    *string  `json:"variant_id,omitempty"`
	Quantity     int      `json:"quantity" validate:"required,gt=0"`
	IsReturnable FlexBool `json:"is_returnable"`
}

// CreateDispatchRequest creates a dispatch with its initial item set.
type CreateDispatchRequest struct {
	Type         models.DispatchType         `json:"type" validate:"required,oneof=INTERNAL EXTERNAL"`
	FromStoreID  string                      `json:"from_store_id" validate:"required"`
	ToStoreID    string                      `json:"to_store_id" validate:"required,nefield=FromStoreID"`
	IsReturnable FlexBool                    `json:"is_returnable"`
	Notes        string                      `json:"notes"`
	Items        []CreateDispatchItemRequest `json:"items" validate:"required,min=1,dive"`
}

// UpdateDispatchRequest replaces mutable header fields and the item set.
// Only permitted while the derived status is still Pending.
type UpdateDispatchRequest struct {
	Type         models.DispatchType         `json:"type" validate:"required,oneof=INTERNAL EXTERNAL"`
	FromStoreID  string                      `json:"from_store_id" validate:"required"`
	ToStoreID    string                      `json:"to_store_id" validate:"required,nefield=FromStoreID"`
	IsReturnable FlexBool                    `json:"is_returnable"`
	Notes        string                      `json:"notes"`
	Items        []CreateDispatchItemRequest `json:"items" validate:"required,min=1,dive"`
}

// AcknowledgeItemRequest records arrival of some quantity of one item.
type AcknowledgeItemRequest struct {
	ID               string `json:"id" validate:"required"`
	ReceivedQuantity int    `json:"received_quantity"`
}

// AcknowledgeReceiptRequest is the bulk acknowledge payload. Pairs with a
// non-positive quantity are dropped before validation.
type AcknowledgeReceiptRequest struct {
	Items []AcknowledgeItemRequest `json:"items" validate:"required"`
}

// ReturnItemRequest sends previously received quantity back to the source.
type ReturnItemRequest struct {
	ID               string  `json:"id" validate:"required"`
	ReturnedQuantity int     `json:"returned_quantity"`
	ReturnNotes      *string `json:"return_notes,omitempty"`
}

// ReturnItemsRequest is the bulk return payload.
type ReturnItemsRequest struct {
	Items []ReturnItemRequest `json:"items" validate:"required"`
}

// DispatchQuery mirrors supported listing filters.
type DispatchQuery struct {
	Type      string `form:"type"`
	FromStore string `form:"from_store_id"`
	ToStore   string `form:"to_store_id"`
	Search    string `form:"search"`
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
	SortBy    string `form:"sort"`
	SortOrder string `form:"order"`
}

// DispatchView is the normalized read model: the stored dispatch plus its
// derived status, permitted actions, and receipt progress, computed once at
// the API boundary so consumers never branch on raw counters.
type DispatchView struct {
	models.Dispatch
	DerivedStatus workflow.DispatchStatus  `json:"derived_status"`
	Actions       workflow.DispatchActions `json:"actions"`
	Progress      workflow.ReceiptProgress `json:"progress"`
}

// NewDispatchView derives status, actions, and progress for a dispatch.
func NewDispatchView(d models.Dispatch) DispatchView {
	return DispatchView{
		Dispatch:      d,
		DerivedStatus: workflow.DeriveDispatchStatus(d.Items),
		Actions:       workflow.DeriveDispatchActions(d.Items),
		Progress:      workflow.DeriveReceiptProgress(d.Items),
	}
}
