package workflow

import (
	"github.com/noah-isme/backoffice-api/internal/models"
)

// Breakage action gates. The fulfillment status and approval status are
// independent axes: a breakage can be approved long before any replacement
// dispatch exists.

// CanEditBreakage permits edits only while both axes are still pending.
func CanEditBreakage(b *models.Breakage) bool {
	if b == nil {
		return false
	}
	return b.Status == models.BreakageStatusPending && b.ApprovalStatus == models.ApprovalStatusPending
}

// CanDeleteBreakage uses the same gate as editing.
func CanDeleteBreakage(b *models.Breakage) bool {
	return CanEditBreakage(b)
}

// CanReviewBreakage permits approve/reject while the approval axis is
// undecided, regardless of fulfillment progress.
func CanReviewBreakage(b *models.Breakage) bool {
	if b == nil {
		return false
	}
	return b.ApprovalStatus == models.ApprovalStatusPending
}

// CanCreateReplacementDispatch gates the replacement flow: the report must be
// approved, must not already have triggered a dispatch, and at least one item
// must actually request a replacement. Once a dispatch is initiated the gate
// closes to prevent duplicate replacement shipments.
func CanCreateReplacementDispatch(b *models.Breakage) bool {
	if b == nil {
		return false
	}
	if b.ApprovalStatus != models.ApprovalStatusApproved {
		return false
	}
	if b.Status == models.BreakageStatusDispatchInitiated {
		return false
	}
	for i := range b.Items {
		if b.Items[i].ReplacementRequested {
			return true
		}
	}
	return false
}

// BreakageActions is the permitted-action set for a breakage report.
type BreakageActions struct {
	Edit           bool `json:"edit"`
	Delete         bool `json:"delete"`
	Review         bool `json:"review"`
	CreateDispatch bool `json:"create_dispatch"`
}

// DeriveBreakageActions bundles the individual breakage gates.
func DeriveBreakageActions(b *models.Breakage) BreakageActions {
	return BreakageActions{
		Edit:           CanEditBreakage(b),
		Delete:         CanDeleteBreakage(b),
		Review:         CanReviewBreakage(b),
		CreateDispatch: CanCreateReplacementDispatch(b),
	}
}
