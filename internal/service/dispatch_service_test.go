package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backoffice-api/internal/dto"
	"github.com/noah-isme/backoffice-api/internal/models"
	"github.com/noah-isme/backoffice-api/internal/repository"
	"github.com/noah-isme/backoffice-api/internal/workflow"
)

type dispatchRepoStub struct {
	dispatches map[string]*models.Dispatch
}

func newDispatchRepoStub() *dispatchRepoStub {
	return &dispatchRepoStub{dispatches: make(map[string]*models.Dispatch)}
}

func (d *dispatchRepoStub) Create(ctx context.Context, dispatch *models.Dispatch) error {
	if dispatch.ID == "" {
		dispatch.ID = "d-" + dispatch.DispatchNumber
	}
	for i := range dispatch.Items {
		if dispatch.Items[i].ID == "" {
			dispatch.Items[i].ID = dispatch.Items[i].ProductID
		}
		dispatch.Items[i].DispatchID = dispatch.ID
	}
	clone := *dispatch
	clone.Items = append([]models.DispatchItem(nil), dispatch.Items...)
	d.dispatches[dispatch.ID] = &clone
	return nil
}

func (d *dispatchRepoStub) GetByID(ctx context.Context, id string) (*models.Dispatch, error) {
	stored, ok := d.dispatches[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *stored
	clone.Items = append([]models.DispatchItem(nil), stored.Items...)
	return &clone, nil
}

func (d *dispatchRepoStub) List(ctx context.Context, filter models.DispatchFilter) ([]models.Dispatch, int, error) {
	result := make([]models.Dispatch, 0, len(d.dispatches))
	for _, dispatch := range d.dispatches {
		result = append(result, *dispatch)
	}
	return result, len(result), nil
}

func (d *dispatchRepoStub) Update(ctx context.Context, dispatch *models.Dispatch) error {
	if _, ok := d.dispatches[dispatch.ID]; !ok {
		return sql.ErrNoRows
	}
	clone := *dispatch
	clone.Items = append([]models.DispatchItem(nil), dispatch.Items...)
	d.dispatches[dispatch.ID] = &clone
	return nil
}

func (d *dispatchRepoStub) Delete(ctx context.Context, id string) error {
	if _, ok := d.dispatches[id]; !ok {
		return sql.ErrNoRows
	}
	delete(d.dispatches, id)
	return nil
}

func (d *dispatchRepoStub) ApplyAcknowledgements(ctx context.Context, dispatchID string, acks []repository.ItemQuantity, userID string) error {
	stored, ok := d.dispatches[dispatchID]
	if !ok {
		return sql.ErrNoRows
	}
	for _, ack := range acks {
		applied := false
		for i := range stored.Items {
			item := &stored.Items[i]
			if item.ID != ack.ItemID {
				continue
			}
			if item.ReceivedQuantity+ack.Quantity > item.Quantity {
				return sql.ErrNoRows
			}
			item.ReceivedQuantity += ack.Quantity
			applied = true
		}
		if !applied {
			return sql.ErrNoRows
		}
	}
	if stored.AcknowledgedBy == nil {
		stored.AcknowledgedBy = &userID
	}
	return nil
}

func (d *dispatchRepoStub) ApplyReturns(ctx context.Context, dispatchID string, updates []repository.ReturnUpdate) error {
	stored, ok := d.dispatches[dispatchID]
	if !ok {
		return sql.ErrNoRows
	}
	for _, update := range updates {
		for i := range stored.Items {
			item := &stored.Items[i]
			if item.ID != update.ItemID {
				continue
			}
			if update.Quantity+item.ReturnedQuantity > item.ReceivedQuantity {
				return sql.ErrNoRows
			}
			item.ReturnedQuantity += update.Quantity
			if update.CloseItem {
				item.IsReturned = true
				item.ReturnDate = &update.ReturnDate
			}
		}
	}
	return nil
}

type productCatalogStub struct {
	products map[string]*models.Product
}

func (p *productCatalogStub) GetByID(ctx context.Context, id string) (*models.Product, error) {
	if product, ok := p.products[id]; ok {
		return product, nil
	}
	return nil, sql.ErrNoRows
}

type storeDirectoryStub struct {
	stores map[string]*models.Store
}

func (s *storeDirectoryStub) GetByID(ctx context.Context, id string) (*models.Store, error) {
	if store, ok := s.stores[id]; ok {
		return store, nil
	}
	return nil, sql.ErrNoRows
}

type auditStub struct {
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func disabledCache() *CacheService {
	return NewCacheService(nil, nil, 0, nil, false)
}

func newDispatchFixture() (*DispatchService, *dispatchRepoStub, *auditStub) {
	repo := newDispatchRepoStub()
	products := &productCatalogStub{products: map[string]*models.Product{
		"p1": {ID: "p1", SKU: "SKU-1", Name: "Crate"},
		"p2": {ID: "p2", SKU: "SKU-2", Name: "Pallet"},
	}}
	stores := &storeDirectoryStub{stores: map[string]*models.Store{
		"s1": {ID: "s1", Code: "WH1", Name: "Central Warehouse"},
		"s2": {ID: "s2", Code: "ST1", Name: "Downtown Store"},
	}}
	audit := &auditStub{}
	svc := NewDispatchService(repo, products, stores, audit, disabledCache(), 0, nil)
	return svc, repo, audit
}

func createTestDispatch(t *testing.T, svc *DispatchService) *dto.DispatchView {
	t.Helper()
	view, err := svc.Create(context.Background(), dto.CreateDispatchRequest{
		Type:         models.DispatchTypeInternal,
		FromStoreID:  "s1",
		ToStoreID:    "s2",
		IsReturnable: dto.FlexBool(true),
		Items: []dto.CreateDispatchItemRequest{
			{ProductID: "p1", Quantity: 10},
			{ProductID: "p2", Quantity: 4},
		},
	}, "clerk-1")
	require.NoError(t, err)
	return view
}

func TestDispatchServiceCreate(t *testing.T) {
	svc, _, audit := newDispatchFixture()

	view := createTestDispatch(t, svc)
	require.True(t, strings.HasPrefix(view.DispatchNumber, "DSP-"))
	require.Equal(t, workflow.DispatchStatusPending, view.DerivedStatus)
	require.Equal(t, "Crate", view.Items[0].ProductName)
	require.True(t, view.Actions.Edit)
	require.True(t, view.Actions.Acknowledge)
	require.False(t, view.Actions.Return)
	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionDispatchCreate, audit.logs[0].Action)
}

func TestDispatchServiceCreateRejectsSameStores(t *testing.T) {
	svc, _, _ := newDispatchFixture()

	_, err := svc.Create(context.Background(), dto.CreateDispatchRequest{
		Type:        models.DispatchTypeInternal,
		FromStoreID: "s1",
		ToStoreID:   "s1",
		Items:       []dto.CreateDispatchItemRequest{{ProductID: "p1", Quantity: 1}},
	}, "clerk-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must differ")
}

func TestDispatchServiceCreateRejectsUnknownProduct(t *testing.T) {
	svc, _, _ := newDispatchFixture()

	_, err := svc.Create(context.Background(), dto.CreateDispatchRequest{
		Type:        models.DispatchTypeInternal,
		FromStoreID: "s1",
		ToStoreID:   "s2",
		Items:       []dto.CreateDispatchItemRequest{{ProductID: "ghost", Quantity: 1}},
	}, "clerk-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown product")
}

func TestAcknowledgeReceiptDropsNonPositivePairs(t *testing.T) {
	svc, _, _ := newDispatchFixture()
	view := createTestDispatch(t, svc)

	_, err := svc.AcknowledgeReceipt(context.Background(), view.ID, dto.AcknowledgeReceiptRequest{
		Items: []dto.AcknowledgeItemRequest{
			{ID: view.Items[0].ID, ReceivedQuantity: 0},
			{ID: view.Items[1].ID, ReceivedQuantity: -3},
		},
	}, "mgr-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no items to acknowledge")
}

func TestAcknowledgeReceiptRejectsOverDelivery(t *testing.T) {
	svc, _, _ := newDispatchFixture()
	view := createTestDispatch(t, svc)

	_, err := svc.AcknowledgeReceipt(context.Background(), view.ID, dto.AcknowledgeReceiptRequest{
		Items: []dto.AcknowledgeItemRequest{{ID: view.Items[0].ID, ReceivedQuantity: 11}},
	}, "mgr-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot exceed remaining quantity (10)")
}

func TestAcknowledgeReceiptUpdatesStatusAndStampsUser(t *testing.T) {
	svc, repo, audit := newDispatchFixture()
	view := createTestDispatch(t, svc)

	updated, err := svc.AcknowledgeReceipt(context.Background(), view.ID, dto.AcknowledgeReceiptRequest{
		Items: []dto.AcknowledgeItemRequest{
			{ID: view.Items[0].ID, ReceivedQuantity: 10},
			{ID: view.Items[1].ID, ReceivedQuantity: 4},
		},
	}, "mgr-1")
	require.NoError(t, err)
	require.Equal(t, workflow.DispatchStatusReceived, updated.DerivedStatus)
	require.NotNil(t, updated.AcknowledgedBy)
	require.Equal(t, "mgr-1", *updated.AcknowledgedBy)
	require.False(t, updated.Actions.Acknowledge)
	require.True(t, updated.Actions.Return)
	require.False(t, updated.Actions.Edit)

	stored := repo.dispatches[view.ID]
	require.Equal(t, 10, stored.Items[0].ReceivedQuantity)
	require.Equal(t, models.AuditActionDispatchAcknowledge, audit.logs[len(audit.logs)-1].Action)
}

func TestReturnItemsRequiresPositiveQuantity(t *testing.T) {
	svc, _, _ := newDispatchFixture()
	view := createTestDispatch(t, svc)

	_, err := svc.ReturnItems(context.Background(), view.ID, dto.ReturnItemsRequest{
		Items: []dto.ReturnItemRequest{
			{ID: view.Items[0].ID, ReturnedQuantity: 0},
			{ID: view.Items[1].ID, ReturnedQuantity: 0},
		},
	}, "mgr-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "at least one item must have a return quantity greater than 0")
}

func TestReturnItemsRejectsOverReturn(t *testing.T) {
	svc, _, _ := newDispatchFixture()
	view := createTestDispatch(t, svc)

	_, err := svc.AcknowledgeReceipt(context.Background(), view.ID, dto.AcknowledgeReceiptRequest{
		Items: []dto.AcknowledgeItemRequest{{ID: view.Items[0].ID, ReceivedQuantity: 6}},
	}, "mgr-1")
	require.NoError(t, err)

	_, err = svc.ReturnItems(context.Background(), view.ID, dto.ReturnItemsRequest{
		Items: []dto.ReturnItemRequest{{ID: view.Items[0].ID, ReturnedQuantity: 7}},
	}, "mgr-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot exceed available quantity (6)")
}

func TestReturnItemsClosesFullyReturnedItem(t *testing.T) {
	svc, repo, _ := newDispatchFixture()
	view := createTestDispatch(t, svc)

	_, err := svc.AcknowledgeReceipt(context.Background(), view.ID, dto.AcknowledgeReceiptRequest{
		Items: []dto.AcknowledgeItemRequest{
			{ID: view.Items[0].ID, ReceivedQuantity: 10},
			{ID: view.Items[1].ID, ReceivedQuantity: 4},
		},
	}, "mgr-1")
	require.NoError(t, err)

	updated, err := svc.ReturnItems(context.Background(), view.ID, dto.ReturnItemsRequest{
		Items: []dto.ReturnItemRequest{{ID: view.Items[0].ID, ReturnedQuantity: 10}},
	}, "mgr-1")
	require.NoError(t, err)
	require.Equal(t, workflow.DispatchStatusPartialReturns, updated.DerivedStatus)

	stored := repo.dispatches[view.ID]
	require.True(t, stored.Items[0].IsReturned)
	require.NotNil(t, stored.Items[0].ReturnDate)
}

func TestDispatchUpdateBlockedAfterReceipt(t *testing.T) {
	svc, _, _ := newDispatchFixture()
	view := createTestDispatch(t, svc)

	_, err := svc.AcknowledgeReceipt(context.Background(), view.ID, dto.AcknowledgeReceiptRequest{
		Items: []dto.AcknowledgeItemRequest{{ID: view.Items[0].ID, ReceivedQuantity: 1}},
	}, "mgr-1")
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), view.ID, dto.UpdateDispatchRequest{
		Type:        models.DispatchTypeInternal,
		FromStoreID: "s1",
		ToStoreID:   "s2",
		Items:       []dto.CreateDispatchItemRequest{{ProductID: "p1", Quantity: 3}},
	}, "clerk-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "can no longer be edited")

	err = svc.Delete(context.Background(), view.ID, "clerk-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "can no longer be deleted")
}

func TestDispatchDeletePending(t *testing.T) {
	svc, repo, _ := newDispatchFixture()
	view := createTestDispatch(t, svc)

	require.NoError(t, svc.Delete(context.Background(), view.ID, "clerk-1"))
	_, ok := repo.dispatches[view.ID]
	require.False(t, ok)
}
