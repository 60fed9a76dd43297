package dto

import (
	"github.com/noah-isme/backoffice-api/internal/models"
	"github.com/noah-isme/backoffice-api/internal/workflow"
)

// CreateBreakageItemRequest reports damage against one dispatch item.
type CreateBreakageItemRequest struct {
	DispatchItemID       string               `json:"dispatch_item_id" validate:"required"`
	Quantity             int                  `json:"quantity" validate:"required,gt=0"`
	Cause                models.BreakageCause `json:"cause" validate:"required"`
	ReplacementRequested FlexBool             `json:"replacement_requested"`
	Notes                *string              `json:"notes,omitempty"`
}

// CreateBreakageRequest files a new damage report.
type CreateBreakageRequest struct {
	StoreID string                      `json:"store_id" validate:"required"`
	Notes   string                      `json:"notes"`
	Items   []CreateBreakageItemRequest `json:"items" validate:"required,min=1,dive"`
}

// UpdateBreakageRequest replaces notes and the item set. Only permitted while
// both status axes are still pending.
type UpdateBreakageRequest struct {
	Notes string                      `json:"notes"`
	Items []CreateBreakageItemRequest `json:"items" validate:"required,min=1,dive"`
}

// ReviewBreakageRequest carries the approve/reject decision.
type ReviewBreakageRequest struct {
	ApprovalStatus  models.ApprovalStatus `json:"approval_status" validate:"required,oneof=APPROVED REJECTED"`
	RejectionReason string                `json:"rejection_reason"`
}

// BreakageQuery mirrors supported listing filters.
type BreakageQuery struct {
	Status         string `form:"status"`
	ApprovalStatus string `form:"approval_status"`
	StoreID        string `form:"store_id"`
	Search         string `form:"search"`
	Page           int    `form:"page"`
	PageSize       int    `form:"page_size"`
	SortBy         string `form:"sort"`
	SortOrder      string `form:"order"`
}

// AssignableItemQuery filters the breakage item picker.
type AssignableItemQuery struct {
	StoreID string `form:"store_id"`
	Search  string `form:"search"`
}

// BreakageView is the normalized read model with the permitted-action set
// derived from both status axes.
type BreakageView struct {
	models.Breakage
	Actions workflow.BreakageActions `json:"actions"`
}

// NewBreakageView derives the action set for a breakage.
func NewBreakageView(b models.Breakage) BreakageView {
	return BreakageView{
		Breakage: b,
		Actions:  workflow.DeriveBreakageActions(&b),
	}
}
