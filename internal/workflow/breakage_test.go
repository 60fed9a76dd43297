package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/backoffice-api/internal/models"
)

func breakage(status models.BreakageStatus, approval models.ApprovalStatus, replacement bool) *models.Breakage {
	return &models.Breakage{
		Status:         status,
		ApprovalStatus: approval,
		Items: []models.BreakageItem{
			{Quantity: 2, ReplacementRequested: replacement},
		},
	}
}

func TestCanEditBreakage(t *testing.T) {
	assert.False(t, CanEditBreakage(nil))
	assert.True(t, CanEditBreakage(breakage(models.BreakageStatusPending, models.ApprovalStatusPending, false)))
	assert.False(t, CanEditBreakage(breakage(models.BreakageStatusPending, models.ApprovalStatusApproved, false)))
	assert.False(t, CanEditBreakage(breakage(models.BreakageStatusPending, models.ApprovalStatusRejected, false)))
	assert.False(t, CanEditBreakage(breakage(models.BreakageStatusDispatchInitiated, models.ApprovalStatusApproved, false)))
}

func TestDeleteGateMatchesEditGate(t *testing.T) {
	for _, b := range []*models.Breakage{
		nil,
		breakage(models.BreakageStatusPending, models.ApprovalStatusPending, false),
		breakage(models.BreakageStatusPending, models.ApprovalStatusApproved, true),
		breakage(models.BreakageStatusDispatchInitiated, models.ApprovalStatusApproved, true),
	} {
		assert.Equal(t, CanEditBreakage(b), CanDeleteBreakage(b))
	}
}

func TestCanReviewBreakageIgnoresFulfillmentAxis(t *testing.T) {
	assert.False(t, CanReviewBreakage(nil))
	assert.True(t, CanReviewBreakage(breakage(models.BreakageStatusPending, models.ApprovalStatusPending, false)))
	// fulfillment status never blocks review while the approval axis is open
	assert.True(t, CanReviewBreakage(breakage(models.BreakageStatusDispatchInitiated, models.ApprovalStatusPending, false)))
	assert.False(t, CanReviewBreakage(breakage(models.BreakageStatusPending, models.ApprovalStatusApproved, false)))
	assert.False(t, CanReviewBreakage(breakage(models.BreakageStatusPending, models.ApprovalStatusRejected, false)))
}

func TestCanCreateReplacementDispatch(t *testing.T) {
	assert.False(t, CanCreateReplacementDispatch(nil))
	assert.True(t, CanCreateReplacementDispatch(breakage(models.BreakageStatusPending, models.ApprovalStatusApproved, true)))
	assert.False(t, CanCreateReplacementDispatch(breakage(models.BreakageStatusPending, models.ApprovalStatusPending, true)), "not yet approved")
	assert.False(t, CanCreateReplacementDispatch(breakage(models.BreakageStatusPending, models.ApprovalStatusRejected, true)), "rejected")
	assert.False(t, CanCreateReplacementDispatch(breakage(models.BreakageStatusDispatchInitiated, models.ApprovalStatusApproved, true)), "dispatch already initiated")
	assert.False(t, CanCreateReplacementDispatch(breakage(models.BreakageStatusPending, models.ApprovalStatusApproved, false)), "no replacement requested")
}

func TestDeriveBreakageActions(t *testing.T) {
	fresh := DeriveBreakageActions(breakage(models.BreakageStatusPending, models.ApprovalStatusPending, true))
	assert.True(t, fresh.Edit)
	assert.True(t, fresh.Delete)
	assert.True(t, fresh.Review)
	assert.False(t, fresh.CreateDispatch)

	approved := DeriveBreakageActions(breakage(models.BreakageStatusPending, models.ApprovalStatusApproved, true))
	assert.False(t, approved.Edit)
	assert.False(t, approved.Review)
	assert.True(t, approved.CreateDispatch)

	done := DeriveBreakageActions(breakage(models.BreakageStatusDispatchInitiated, models.ApprovalStatusApproved, true))
	assert.False(t, done.Edit)
	assert.False(t, done.Delete)
	assert.False(t, done.Review)
	assert.False(t, done.CreateDispatch)
}
