package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/backoffice-api/internal/dto"
	"github.com/noah-isme/backoffice-api/internal/models"
	"github.com/noah-isme/backoffice-api/internal/repository"
	"github.com/noah-isme/backoffice-api/internal/workflow"
	appErrors "github.com/noah-isme/backoffice-api/pkg/errors"
)

const dispatchCachePattern = "dispatches:*"

type dispatchStore interface {
	Create(ctx context.Context, dispatch *models.Dispatch) error
	GetByID(ctx context.Context, id string) (*models.Dispatch, error)
	List(ctx context.Context, filter models.DispatchFilter) ([]models.Dispatch, int, error)
	Update(ctx context.Context, dispatch *models.Dispatch) error
	Delete(ctx context.Context, id string) error
	ApplyAcknowledgements(ctx context.Context, dispatchID string, acks []repository.ItemQuantity, userID string) error
	ApplyReturns(ctx context.Context, dispatchID string, updates []repository.ReturnUpdate) error
}

type productCatalog interface {
	GetByID(ctx context.Context, id string) (*models.Product, error)
}

type storeDirectory interface {
	GetByID(ctx context.Context, id string) (*models.Store, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// DispatchService orchestrates inter-store transfers: creation, receipt
// acknowledgement, and returns. All status labels and action gates exposed to
// clients are derived from the item counters, never stored.
type DispatchService struct {
	repo     dispatchStore
	products productCatalog
	stores   storeDirectory
	audit    auditLogger
	cache    *CacheService
	listTTL  time.Duration
	logger   *zap.Logger
}

// NewDispatchService constructs the service.
func NewDispatchService(repo dispatchStore, products productCatalog, stores storeDirectory, audit auditLogger, cache *CacheService, listTTL time.Duration, logger *zap.Logger) *DispatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DispatchService{
		repo:     repo,
		products: products,
		stores:   stores,
		audit:    audit,
		cache:    cache,
		listTTL:  listTTL,
		logger:   logger,
	}
}

type dispatchListPayload struct {
	Items      []dto.DispatchView `json:"items"`
	Pagination models.Pagination  `json:"pagination"`
}

// List returns dispatch views with derived status and actions. Results are
// cached per filter combination; cacheHit reports whether the cache served
// the request.
func (s *DispatchService) List(ctx context.Context, query dto.DispatchQuery) ([]dto.DispatchView, models.Pagination, bool, error) {
	cacheKey := fmt.Sprintf("dispatches:list:%s:%s:%s:%s:%d:%d:%s:%s",
		query.Type, query.FromStore, query.ToStore, strings.ToLower(query.Search),
		query.Page, query.PageSize, query.SortBy, query.SortOrder)

	var cached dispatchListPayload
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return cached.Items, cached.Pagination, true, nil
	}

	filter := models.DispatchFilter{
		Type:        models.DispatchType(strings.ToUpper(query.Type)),
		FromStoreID: query.FromStore,
		ToStoreID:   query.ToStore,
		Search:      query.Search,
		Page:        query.Page,
		PageSize:    query.PageSize,
		SortBy:      query.SortBy,
		SortOrder:   query.SortOrder,
	}
	dispatches, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, models.Pagination{}, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list dispatches")
	}

	views := make([]dto.DispatchView, len(dispatches))
	for i, dispatch := range dispatches {
		views[i] = dto.NewDispatchView(dispatch)
	}
	pagination := models.NewPagination(filter.Page, filter.PageSize, total)

	if err := s.cache.Set(ctx, cacheKey, dispatchListPayload{Items: views, Pagination: pagination}, s.listTTL); err != nil {
		s.logger.Debug("dispatch list cache write skipped", zap.Error(err))
	}
	return views, pagination, false, nil
}

// Get returns a single dispatch view.
func (s *DispatchService) Get(ctx context.Context, id string) (*dto.DispatchView, error) {
	dispatch, err := s.loadDispatch(ctx, id)
	if err != nil {
		return nil, err
	}
	view := dto.NewDispatchView(*dispatch)
	return &view, nil
}

// Create validates store and product references and persists a new dispatch.
func (s *DispatchService) Create(ctx context.Context, req dto.CreateDispatchRequest, userID string) (*dto.DispatchView, error) {
	return s.create(ctx, req, nil, userID)
}

// CreateForBreakage creates a dispatch linked to the breakage report that
// triggered it.
func (s *DispatchService) CreateForBreakage(ctx context.Context, req dto.CreateDispatchRequest, breakageID, userID string) (*dto.DispatchView, error) {
	return s.create(ctx, req, &breakageID, userID)
}

func (s *DispatchService) create(ctx context.Context, req dto.CreateDispatchRequest, breakageID *string, userID string) (*dto.DispatchView, error) {
	if req.FromStoreID == req.ToStoreID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "source and destination stores must differ")
	}
	if err := s.checkStores(ctx, req.FromStoreID, req.ToStoreID); err != nil {
		return nil, err
	}
	items, err := s.buildItems(ctx, req.Items, req.IsReturnable.Bool())
	if err != nil {
		return nil, err
	}

	dispatch := &models.Dispatch{
		DispatchNumber: newDispatchNumber(),
		Type:           req.Type,
		FromStoreID:    req.FromStoreID,
		ToStoreID:      req.ToStoreID,
		IsReturnable:   req.IsReturnable.Bool(),
		Notes:          optionalString(req.Notes),
		BreakageID:     breakageID,
		CreatedBy:      userID,
		Items:          items,
	}
	if err := s.repo.Create(ctx, dispatch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create dispatch")
	}

	s.emitAudit(ctx, userID, models.AuditActionDispatchCreate, dispatch.ID, dispatch)
	s.invalidateLists(ctx)
	view := dto.NewDispatchView(*dispatch)
	return &view, nil
}

// Update replaces the header and item set while the dispatch is still
// pending.
func (s *DispatchService) Update(ctx context.Context, id string, req dto.UpdateDispatchRequest, userID string) (*dto.DispatchView, error) {
	existing, err := s.loadDispatch(ctx, id)
	if err != nil {
		return nil, err
	}
	if !workflow.CanEditDispatch(existing.Items) {
		return nil, appErrors.Clone(appErrors.ErrNotEditable, "dispatch can no longer be edited")
	}
	if req.FromStoreID == req.ToStoreID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "source and destination stores must differ")
	}
	if err := s.checkStores(ctx, req.FromStoreID, req.ToStoreID); err != nil {
		return nil, err
	}
	items, err := s.buildItems(ctx, req.Items, req.IsReturnable.Bool())
	if err != nil {
		return nil, err
	}

	existing.Type = req.Type
	existing.FromStoreID = req.FromStoreID
	existing.ToStoreID = req.ToStoreID
	existing.IsReturnable = req.IsReturnable.Bool()
	existing.Notes = optionalString(req.Notes)
	existing.Items = items
	if err := s.repo.Update(ctx, existing); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotEditable, "dispatch can no longer be edited")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update dispatch")
	}

	s.emitAudit(ctx, userID, models.AuditActionDispatchUpdate, existing.ID, existing)
	s.invalidateLists(ctx)
	view := dto.NewDispatchView(*existing)
	return &view, nil
}

// Delete removes a pending dispatch.
func (s *DispatchService) Delete(ctx context.Context, id string, userID string) error {
	existing, err := s.loadDispatch(ctx, id)
	if err != nil {
		return err
	}
	if !workflow.CanEditDispatch(existing.Items) {
		return appErrors.Clone(appErrors.ErrNotEditable, "dispatch can no longer be deleted")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotEditable, "dispatch can no longer be deleted")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete dispatch")
	}
	s.emitAudit(ctx, userID, models.AuditActionDispatchDelete, id, nil)
	s.invalidateLists(ctx)
	return nil
}

// AcknowledgeReceipt records arrival of the submitted quantities. Pairs with a
// non-positive quantity are dropped before validation; if nothing remains the
// whole request is rejected.
func (s *DispatchService) AcknowledgeReceipt(ctx context.Context, id string, req dto.AcknowledgeReceiptRequest, userID string) (*dto.DispatchView, error) {
	dispatch, err := s.loadDispatch(ctx, id)
	if err != nil {
		return nil, err
	}

	acks := make([]repository.ItemQuantity, 0, len(req.Items))
	byID := itemsByID(dispatch.Items)
	for _, pair := range req.Items {
		if pair.ReceivedQuantity <= 0 {
			continue
		}
		item, ok := byID[pair.ID]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown dispatch item: %s", pair.ID))
		}
		if err := workflow.ValidateAcknowledgeQuantity(item, pair.ReceivedQuantity); err != nil {
			return nil, err
		}
		acks = append(acks, repository.ItemQuantity{ItemID: pair.ID, Quantity: pair.ReceivedQuantity})
	}
	if len(acks) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no items to acknowledge")
	}

	if err := s.repo.ApplyAcknowledgements(ctx, id, acks, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "receipt state changed, reload and retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acknowledge receipt")
	}

	s.emitAudit(ctx, userID, models.AuditActionDispatchAcknowledge, id, req)
	s.invalidateLists(ctx)
	return s.Get(ctx, id)
}

// ReturnItems sends previously received quantity back to the source store.
// Zero-quantity pairs are tolerated as long as at least one pair carries a
// positive quantity.
func (s *DispatchService) ReturnItems(ctx context.Context, id string, req dto.ReturnItemsRequest, userID string) (*dto.DispatchView, error) {
	dispatch, err := s.loadDispatch(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	updates := make([]repository.ReturnUpdate, 0, len(req.Items))
	byID := itemsByID(dispatch.Items)
	for _, pair := range req.Items {
		if pair.ReturnedQuantity == 0 {
			continue
		}
		item, ok := byID[pair.ID]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown dispatch item: %s", pair.ID))
		}
		if err := workflow.ValidateReturnQuantity(item, pair.ReturnedQuantity); err != nil {
			return nil, err
		}
		updates = append(updates, repository.ReturnUpdate{
			ItemID:      pair.ID,
			Quantity:    pair.ReturnedQuantity,
			CloseItem:   item.ReturnedQuantity+pair.ReturnedQuantity == item.Quantity,
			ReturnDate:  now,
			ReturnNotes: pair.ReturnNotes,
		})
	}
	if len(updates) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one item must have a return quantity greater than 0")
	}

	if err := s.repo.ApplyReturns(ctx, id, updates); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "return state changed, reload and retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to return items")
	}

	s.emitAudit(ctx, userID, models.AuditActionDispatchReturn, id, req)
	s.invalidateLists(ctx)
	return s.Get(ctx, id)
}

func (s *DispatchService) loadDispatch(ctx context.Context, id string) (*models.Dispatch, error) {
	dispatch, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dispatch")
	}
	return dispatch, nil
}

func (s *DispatchService) checkStores(ctx context.Context, storeIDs ...string) error {
	for _, storeID := range storeIDs {
		if _, err := s.stores.GetByID(ctx, storeID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown store: %s", storeID))
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify store")
		}
	}
	return nil
}

func (s *DispatchService) buildItems(ctx context.Context, reqs []dto.CreateDispatchItemRequest, headerReturnable bool) ([]models.DispatchItem, error) {
	items := make([]models.DispatchItem, 0, len(reqs))
	for _, req := range reqs {
		product, err := s.products.GetByID(ctx, req.ProductID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown product: %s", req.ProductID))
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify product")
		}
		items = append(items, models.DispatchItem{
			ProductID:    product.ID,
			VariantID:    req.VariantID,
			ProductName:  product.Name,
			Quantity:     req.Quantity,
			IsReturnable: headerReturnable || req.IsReturnable.Bool(),
		})
	}
	return items, nil
}

func (s *DispatchService) invalidateLists(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, dispatchCachePattern); err != nil {
		s.logger.Debug("dispatch cache invalidation skipped", zap.Error(err))
	}
}

func (s *DispatchService) emitAudit(ctx context.Context, userID, action, resourceID string, payload interface{}) {
	if s.audit == nil {
		return
	}
	var newValues []byte
	if payload != nil {
		if encoded, err := json.Marshal(payload); err == nil {
			newValues = encoded
		}
	}
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "dispatches",
		ResourceID: &resourceID,
		NewValues:  newValues,
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("audit log write failed", zap.String("action", action), zap.Error(err))
	}
}

func itemsByID(items []models.DispatchItem) map[string]*models.DispatchItem {
	byID := make(map[string]*models.DispatchItem, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}
	return byID
}

func newDispatchNumber() string {
	return "DSP-" + strings.ToUpper(uuid.NewString()[:8])
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
