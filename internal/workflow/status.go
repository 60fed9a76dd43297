// Package workflow holds the derived-status and action-gating rules shared by
// the dispatch and breakage modules. Everything here is a pure function over
// in-memory models: no I/O, no caching, safe to re-evaluate on every request.
package workflow

import (
	"github.com/noah-isme/backoffice-api/internal/models"
)

// DispatchStatus is the human-facing label derived from a dispatch's items.
type DispatchStatus string

const (
	DispatchStatusEmpty              DispatchStatus = "Empty"
	DispatchStatusPending            DispatchStatus = "Pending"
	DispatchStatusPartial            DispatchStatus = "Partial"
	DispatchStatusPartialWithReturns DispatchStatus = "Partial w/ Returns"
	DispatchStatusReceived           DispatchStatus = "Received"
	DispatchStatusPartialReturns     DispatchStatus = "Partial Returns"
	DispatchStatusReturned           DispatchStatus = "Returned"
)

// DeriveDispatchStatus computes the dispatch label from its items. The rules
// are evaluated in strict precedence order; the first match wins. A nil or
// empty item slice yields DispatchStatusEmpty, never an error.
func DeriveDispatchStatus(items []models.DispatchItem) DispatchStatus {
	if len(items) == 0 {
		return DispatchStatusEmpty
	}

	allReturned := true
	allReceived := true
	hasReturnedItems := false
	partiallyReceived := false

	for i := range items {
		item := &items[i]
		if !item.IsReturned {
			allReturned = false
		} else {
			hasReturnedItems = true
		}
		if item.ReceivedQuantity < item.Quantity {
			allReceived = false
		}
		if item.ReceivedQuantity > 0 {
			partiallyReceived = true
		}
	}

	switch {
	case allReturned:
		return DispatchStatusReturned
	case allReceived && hasReturnedItems:
		return DispatchStatusPartialReturns
	case allReceived:
		return DispatchStatusReceived
	case partiallyReceived && hasReturnedItems:
		return DispatchStatusPartialWithReturns
	case partiallyReceived:
		return DispatchStatusPartial
	default:
		return DispatchStatusPending
	}
}

// CanAcknowledgeReceipt reports whether any item still has an outstanding
// receipt deficit.
func CanAcknowledgeReceipt(items []models.DispatchItem) bool {
	for i := range items {
		if items[i].ReceivedQuantity < items[i].Quantity {
			return true
		}
	}
	return false
}

// CanReturnItems reports whether any item is a live return candidate:
// returnable, not yet closed, and holding received quantity that has not been
// sent back.
func CanReturnItems(items []models.DispatchItem) bool {
	for i := range items {
		item := &items[i]
		if item.IsReturnable && !item.IsReturned && item.ReceivedQuantity > item.ReturnedQuantity {
			return true
		}
	}
	return false
}

// CanEditDispatch allows editing only before any receipt activity, i.e. while
// the derived status is still Pending. The same gate applies to deletion.
func CanEditDispatch(items []models.DispatchItem) bool {
	return DeriveDispatchStatus(items) == DispatchStatusPending
}

// DispatchActions is the permitted-action set embedded in API responses so
// clients never re-derive gating rules.
type DispatchActions struct {
	Acknowledge bool `json:"acknowledge"`
	Return      bool `json:"return"`
	Edit        bool `json:"edit"`
	Delete      bool `json:"delete"`
}

// DeriveDispatchActions bundles the individual gates for a dispatch.
func DeriveDispatchActions(items []models.DispatchItem) DispatchActions {
	editable := CanEditDispatch(items)
	return DispatchActions{
		Acknowledge: CanAcknowledgeReceipt(items),
		Return:      CanReturnItems(items),
		Edit:        editable,
		Delete:      editable,
	}
}

// ReceiptProgress summarises item-level receipt and return counters for a
// dispatch.
type ReceiptProgress struct {
	TotalQuantity    int `json:"total_quantity"`
	ReceivedQuantity int `json:"received_quantity"`
	ReturnedQuantity int `json:"returned_quantity"`
	OutstandingItems int `json:"outstanding_items"`
}

// DeriveReceiptProgress aggregates quantity counters across the item list.
func DeriveReceiptProgress(items []models.DispatchItem) ReceiptProgress {
	var progress ReceiptProgress
	for i := range items {
		item := &items[i]
		progress.TotalQuantity += item.Quantity
		progress.ReceivedQuantity += item.ReceivedQuantity
		progress.ReturnedQuantity += item.ReturnedQuantity
		if item.ReceivedQuantity < item.Quantity {
			progress.OutstandingItems++
		}
	}
	return progress
}
