package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backoffice-api/internal/dto"
	"github.com/noah-isme/backoffice-api/internal/models"
	"github.com/noah-isme/backoffice-api/internal/repository"
)

type breakageRepoStub struct {
	breakages map[string]*models.Breakage
}

func newBreakageRepoStub() *breakageRepoStub {
	return &breakageRepoStub{breakages: make(map[string]*models.Breakage)}
}

func (b *breakageRepoStub) Create(ctx context.Context, breakage *models.Breakage) error {
	if breakage.ID == "" {
		breakage.ID = "b-" + breakage.BreakageNumber
	}
	for i := range breakage.Items {
		breakage.Items[i].BreakageID = breakage.ID
	}
	clone := *breakage
	clone.Items = append([]models.BreakageItem(nil), breakage.Items...)
	b.breakages[breakage.ID] = &clone
	return nil
}

func (b *breakageRepoStub) GetByID(ctx context.Context, id string) (*models.Breakage, error) {
	stored, ok := b.breakages[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *stored
	clone.Items = append([]models.BreakageItem(nil), stored.Items...)
	return &clone, nil
}

func (b *breakageRepoStub) List(ctx context.Context, filter models.BreakageFilter) ([]models.Breakage, int, error) {
	result := make([]models.Breakage, 0, len(b.breakages))
	for _, breakage := range b.breakages {
		if filter.ReportedBy != "" && breakage.ReportedBy != filter.ReportedBy {
			continue
		}
		result = append(result, *breakage)
	}
	return result, len(result), nil
}

func (b *breakageRepoStub) Update(ctx context.Context, breakage *models.Breakage) error {
	stored, ok := b.breakages[breakage.ID]
	if !ok || stored.Status != models.BreakageStatusPending || stored.ApprovalStatus != models.ApprovalStatusPending {
		return sql.ErrNoRows
	}
	clone := *breakage
	clone.Items = append([]models.BreakageItem(nil), breakage.Items...)
	b.breakages[breakage.ID] = &clone
	return nil
}

func (b *breakageRepoStub) Delete(ctx context.Context, id string) error {
	stored, ok := b.breakages[id]
	if !ok || stored.Status != models.BreakageStatusPending || stored.ApprovalStatus != models.ApprovalStatusPending {
		return sql.ErrNoRows
	}
	delete(b.breakages, id)
	return nil
}

func (b *breakageRepoStub) ApplyReview(ctx context.Context, params repository.ReviewParams) error {
	stored, ok := b.breakages[params.ID]
	if !ok || stored.ApprovalStatus != models.ApprovalStatusPending {
		return sql.ErrNoRows
	}
	now := time.Now().UTC()
	stored.ApprovalStatus = params.ApprovalStatus
	stored.ApprovedBy = &params.ApprovedBy
	stored.ApprovedAt = &now
	stored.RejectionReason = params.RejectionReason
	return nil
}

func (b *breakageRepoStub) MarkDispatchInitiated(ctx context.Context, id string) error {
	stored, ok := b.breakages[id]
	if !ok || stored.ApprovalStatus != models.ApprovalStatusApproved || stored.Status == models.BreakageStatusDispatchInitiated {
		return sql.ErrNoRows
	}
	stored.Status = models.BreakageStatusDispatchInitiated
	return nil
}

type dispatchItemSourceStub struct {
	items      map[string]models.DispatchItem
	assignable []models.AssignableItem
}

func (d *dispatchItemSourceStub) GetItems(ctx context.Context, itemIDs []string) ([]models.DispatchItem, error) {
	result := make([]models.DispatchItem, 0, len(itemIDs))
	for _, id := range itemIDs {
		if item, ok := d.items[id]; ok {
			result = append(result, item)
		}
	}
	return result, nil
}

func (d *dispatchItemSourceStub) ListAssignableItems(ctx context.Context, storeID, search string) ([]models.AssignableItem, error) {
	return d.assignable, nil
}

type replacementDispatcherStub struct {
	requests []dto.CreateDispatchRequest
	breakage string
}

func (r *replacementDispatcherStub) CreateForBreakage(ctx context.Context, req dto.CreateDispatchRequest, breakageID, userID string) (*dto.DispatchView, error) {
	r.requests = append(r.requests, req)
	r.breakage = breakageID
	view := dto.NewDispatchView(models.Dispatch{
		ID:             "d-replacement",
		DispatchNumber: "DSP-REPL",
		Type:           req.Type,
		FromStoreID:    req.FromStoreID,
		ToStoreID:      req.ToStoreID,
		BreakageID:     &breakageID,
	})
	return &view, nil
}

func newBreakageFixture() (*BreakageService, *breakageRepoStub, *replacementDispatcherStub, *auditStub) {
	repo := newBreakageRepoStub()
	items := &dispatchItemSourceStub{items: map[string]models.DispatchItem{
		"di1": {ID: "di1", DispatchID: "d1", ProductID: "p1", ProductName: "Crate", Quantity: 10, ReceivedQuantity: 8, ReturnedQuantity: 2, IsReturnable: true},
		"di2": {ID: "di2", DispatchID: "d1", ProductID: "p2", ProductName: "Pallet", Quantity: 4, ReceivedQuantity: 4, IsReturned: true},
	}}
	stores := &storeDirectoryStub{stores: map[string]*models.Store{
		"s1": {ID: "s1", Name: "Central Warehouse"},
		"s2": {ID: "s2", Name: "Downtown Store"},
	}}
	dispatcher := &replacementDispatcherStub{}
	audit := &auditStub{}
	svc := NewBreakageService(repo, items, dispatcher, stores, audit, nil)
	return svc, repo, dispatcher, audit
}

func createTestBreakage(t *testing.T, svc *BreakageService, replacement bool) *dto.BreakageView {
	t.Helper()
	view, err := svc.Create(context.Background(), dto.CreateBreakageRequest{
		StoreID: "s2",
		Items: []dto.CreateBreakageItemRequest{
			{DispatchItemID: "di1", Quantity: 3, Cause: models.CauseTransportDamage, ReplacementRequested: dto.FlexBool(replacement)},
		},
	}, "clerk-1")
	require.NoError(t, err)
	return view
}

func TestBreakageServiceCreate(t *testing.T) {
	svc, _, _, audit := newBreakageFixture()

	view := createTestBreakage(t, svc, true)
	require.Equal(t, models.BreakageStatusPending, view.Status)
	require.Equal(t, models.ApprovalStatusPending, view.ApprovalStatus)
	require.Equal(t, "Crate", view.Items[0].ProductName)
	require.True(t, view.Actions.Edit)
	require.True(t, view.Actions.Review)
	require.False(t, view.Actions.CreateDispatch)
	require.Len(t, audit.logs, 1)
}

func TestBreakageServiceCreateRejectsExhaustedItem(t *testing.T) {
	svc, _, _, _ := newBreakageFixture()

	_, err := svc.Create(context.Background(), dto.CreateBreakageRequest{
		StoreID: "s2",
		Items: []dto.CreateBreakageItemRequest{
			{DispatchItemID: "di2", Quantity: 1, Cause: models.CauseAccident},
		},
	}, "clerk-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no available quantity")
}

func TestBreakageServiceCreateRejectsOverAvailable(t *testing.T) {
	svc, _, _, _ := newBreakageFixture()

	_, err := svc.Create(context.Background(), dto.CreateBreakageRequest{
		StoreID: "s2",
		Items: []dto.CreateBreakageItemRequest{
			{DispatchItemID: "di1", Quantity: 7, Cause: models.CauseAccident},
		},
	}, "clerk-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot exceed available quantity (6)")
}

func TestBreakageReviewApproveIsOneShot(t *testing.T) {
	svc, _, _, _ := newBreakageFixture()
	view := createTestBreakage(t, svc, true)

	reviewed, err := svc.Review(context.Background(), view.ID, dto.ReviewBreakageRequest{
		ApprovalStatus: models.ApprovalStatusApproved,
	}, "mgr-1")
	require.NoError(t, err)
	require.Equal(t, models.ApprovalStatusApproved, reviewed.ApprovalStatus)
	require.NotNil(t, reviewed.ApprovedBy)
	require.False(t, reviewed.Actions.Edit)
	require.False(t, reviewed.Actions.Review)
	require.True(t, reviewed.Actions.CreateDispatch)

	_, err = svc.Review(context.Background(), view.ID, dto.ReviewBreakageRequest{
		ApprovalStatus:  models.ApprovalStatusRejected,
		RejectionReason: "changed my mind",
	}, "mgr-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "already reviewed")
}

func TestBreakageReviewRejectRequiresReason(t *testing.T) {
	svc, _, _, _ := newBreakageFixture()
	view := createTestBreakage(t, svc, false)

	_, err := svc.Review(context.Background(), view.ID, dto.ReviewBreakageRequest{
		ApprovalStatus: models.ApprovalStatusRejected,
	}, "mgr-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "rejection reason is required")
}

func TestBreakageEditBlockedAfterReview(t *testing.T) {
	svc, _, _, _ := newBreakageFixture()
	view := createTestBreakage(t, svc, false)

	_, err := svc.Review(context.Background(), view.ID, dto.ReviewBreakageRequest{
		ApprovalStatus: models.ApprovalStatusApproved,
	}, "mgr-1")
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), view.ID, dto.UpdateBreakageRequest{
		Items: []dto.CreateBreakageItemRequest{
			{DispatchItemID: "di1", Quantity: 1, Cause: models.CauseAccident},
		},
	}, "clerk-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "can no longer be edited")

	err = svc.Delete(context.Background(), view.ID, "clerk-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "can no longer be deleted")
}

func TestCreateReplacementDispatch(t *testing.T) {
	svc, repo, dispatcher, _ := newBreakageFixture()
	view := createTestBreakage(t, svc, true)

	_, err := svc.Review(context.Background(), view.ID, dto.ReviewBreakageRequest{
		ApprovalStatus: models.ApprovalStatusApproved,
	}, "mgr-1")
	require.NoError(t, err)

	dispatch, err := svc.CreateReplacementDispatch(context.Background(), view.ID, "s1", "mgr-1")
	require.NoError(t, err)
	require.Equal(t, "s2", dispatch.ToStoreID)
	require.Equal(t, view.ID, dispatcher.breakage)
	require.Len(t, dispatcher.requests, 1)
	require.Equal(t, "p1", dispatcher.requests[0].Items[0].ProductID)
	require.Equal(t, 3, dispatcher.requests[0].Items[0].Quantity)
	require.Equal(t, models.BreakageStatusDispatchInitiated, repo.breakages[view.ID].Status)

	_, err = svc.CreateReplacementDispatch(context.Background(), view.ID, "s1", "mgr-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not eligible")
}

func TestCreateReplacementDispatchRequiresApproval(t *testing.T) {
	svc, _, _, _ := newBreakageFixture()
	view := createTestBreakage(t, svc, true)

	_, err := svc.CreateReplacementDispatch(context.Background(), view.ID, "s1", "mgr-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not eligible")
}

func TestBreakageListScopesClerkToOwnReports(t *testing.T) {
	svc, _, _, _ := newBreakageFixture()
	createTestBreakage(t, svc, false)

	views, _, err := svc.List(context.Background(), dto.BreakageQuery{}, &models.JWTClaims{UserID: "other", Role: models.RoleClerk})
	require.NoError(t, err)
	require.Empty(t, views)

	views, _, err = svc.List(context.Background(), dto.BreakageQuery{}, &models.JWTClaims{UserID: "mgr", Role: models.RoleManager})
	require.NoError(t, err)
	require.Len(t, views, 1)
}
