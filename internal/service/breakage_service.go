package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/backoffice-api/internal/dto"
	"github.com/noah-isme/backoffice-api/internal/models"
	"github.com/noah-isme/backoffice-api/internal/repository"
	"github.com/noah-isme/backoffice-api/internal/workflow"
	appErrors "github.com/noah-isme/backoffice-api/pkg/errors"
)

type breakageStore interface {
	Create(ctx context.Context, breakage *models.Breakage) error
	GetByID(ctx context.Context, id string) (*models.Breakage, error)
	List(ctx context.Context, filter models.BreakageFilter) ([]models.Breakage, int, error)
	Update(ctx context.Context, breakage *models.Breakage) error
	Delete(ctx context.Context, id string) error
	ApplyReview(ctx context.Context, params repository.ReviewParams) error
	MarkDispatchInitiated(ctx context.Context, id string) error
}

type dispatchItemSource interface {
	GetItems(ctx context.Context, itemIDs []string) ([]models.DispatchItem, error)
	ListAssignableItems(ctx context.Context, storeID, search string) ([]models.AssignableItem, error)
}

type replacementDispatcher interface {
	CreateForBreakage(ctx context.Context, req dto.CreateDispatchRequest, breakageID, userID string) (*dto.DispatchView, error)
}

// BreakageService manages damage reports. Fulfillment status and approval
// status are independent axes; every action consults the workflow gates
// before touching storage, and storage guards enforce the same transitions a
// second time against racing writers.
type BreakageService struct {
	repo          breakageStore
	dispatchItems dispatchItemSource
	dispatcher    replacementDispatcher
	stores        storeDirectory
	audit         auditLogger
	logger        *zap.Logger
}

// NewBreakageService constructs the service.
func NewBreakageService(repo breakageStore, dispatchItems dispatchItemSource, dispatcher replacementDispatcher, stores storeDirectory, audit auditLogger, logger *zap.Logger) *BreakageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BreakageService{
		repo:          repo,
		dispatchItems: dispatchItems,
		dispatcher:    dispatcher,
		stores:        stores,
		audit:         audit,
		logger:        logger,
	}
}

// List returns breakage views with derived action sets.
func (s *BreakageService) List(ctx context.Context, query dto.BreakageQuery, actor *models.JWTClaims) ([]dto.BreakageView, models.Pagination, error) {
	if actor == nil {
		return nil, models.Pagination{}, appErrors.ErrUnauthorized
	}
	filter := models.BreakageFilter{
		StoreID:   query.StoreID,
		Search:    query.Search,
		Page:      query.Page,
		PageSize:  query.PageSize,
		SortBy:    query.SortBy,
		SortOrder: query.SortOrder,
	}
	if query.Status != "" {
		filter.Status = []models.BreakageStatus{models.BreakageStatus(strings.ToUpper(query.Status))}
	}
	if query.ApprovalStatus != "" {
		filter.ApprovalStatus = []models.ApprovalStatus{models.ApprovalStatus(strings.ToUpper(query.ApprovalStatus))}
	}
	if actor.Role == models.RoleClerk {
		filter.ReportedBy = actor.UserID
	}

	breakages, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, models.Pagination{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list breakages")
	}
	views := make([]dto.BreakageView, len(breakages))
	for i, breakage := range breakages {
		views[i] = dto.NewBreakageView(breakage)
	}
	return views, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a single breakage view enforcing reporter scope for clerks.
func (s *BreakageService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*dto.BreakageView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	breakage, err := s.loadBreakage(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleClerk && breakage.ReportedBy != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	view := dto.NewBreakageView(*breakage)
	return &view, nil
}

// Create files a new damage report against received dispatch stock.
func (s *BreakageService) Create(ctx context.Context, req dto.CreateBreakageRequest, userID string) (*dto.BreakageView, error) {
	if _, err := s.stores.GetByID(ctx, req.StoreID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown store: %s", req.StoreID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify store")
	}
	items, err := s.buildItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	breakage := &models.Breakage{
		BreakageNumber: newBreakageNumber(),
		Status:         models.BreakageStatusPending,
		ApprovalStatus: models.ApprovalStatusPending,
		StoreID:        req.StoreID,
		ReportedBy:     userID,
		Notes:          optionalString(req.Notes),
		Items:          items,
	}
	if err := s.repo.Create(ctx, breakage); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create breakage")
	}

	s.emitAudit(ctx, userID, models.AuditActionBreakageCreate, breakage.ID, breakage)
	view := dto.NewBreakageView(*breakage)
	return &view, nil
}

// Update replaces notes and the item set while both axes are still pending.
func (s *BreakageService) Update(ctx context.Context, id string, req dto.UpdateBreakageRequest, userID string) (*dto.BreakageView, error) {
	existing, err := s.loadBreakage(ctx, id)
	if err != nil {
		return nil, err
	}
	if !workflow.CanEditBreakage(existing) {
		return nil, appErrors.Clone(appErrors.ErrNotEditable, "breakage can no longer be edited")
	}
	items, err := s.buildItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	existing.Notes = optionalString(req.Notes)
	existing.Items = items
	if err := s.repo.Update(ctx, existing); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotEditable, "breakage can no longer be edited")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update breakage")
	}

	s.emitAudit(ctx, userID, models.AuditActionBreakageUpdate, existing.ID, existing)
	view := dto.NewBreakageView(*existing)
	return &view, nil
}

// Delete removes a fully pending breakage.
func (s *BreakageService) Delete(ctx context.Context, id string, userID string) error {
	existing, err := s.loadBreakage(ctx, id)
	if err != nil {
		return err
	}
	if !workflow.CanDeleteBreakage(existing) {
		return appErrors.Clone(appErrors.ErrNotEditable, "breakage can no longer be deleted")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotEditable, "breakage can no longer be deleted")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete breakage")
	}
	s.emitAudit(ctx, userID, models.AuditActionBreakageDelete, id, nil)
	return nil
}

// Review records the approve/reject decision. Review is a one-shot
// transition on the approval axis only; fulfillment status is untouched.
func (s *BreakageService) Review(ctx context.Context, id string, req dto.ReviewBreakageRequest, reviewerID string) (*dto.BreakageView, error) {
	existing, err := s.loadBreakage(ctx, id)
	if err != nil {
		return nil, err
	}
	if !workflow.CanReviewBreakage(existing) {
		return nil, appErrors.Clone(appErrors.ErrAlreadyReviewed, "breakage already reviewed")
	}
	if req.ApprovalStatus == models.ApprovalStatusRejected && strings.TrimSpace(req.RejectionReason) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}

	params := repository.ReviewParams{
		ID:             id,
		ApprovalStatus: req.ApprovalStatus,
		ApprovedBy:     reviewerID,
	}
	if req.ApprovalStatus == models.ApprovalStatusRejected {
		params.RejectionReason = optionalString(req.RejectionReason)
	}
	if err := s.repo.ApplyReview(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyReviewed, "breakage already reviewed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to review breakage")
	}

	s.emitAudit(ctx, reviewerID, models.AuditActionBreakageReview, id, req)
	reviewed, err := s.loadBreakage(ctx, id)
	if err != nil {
		return nil, err
	}
	view := dto.NewBreakageView(*reviewed)
	return &view, nil
}

// CreateReplacementDispatch cuts a dispatch carrying the replacement-requested
// items of an approved breakage and links the two records.
func (s *BreakageService) CreateReplacementDispatch(ctx context.Context, id string, fromStoreID string, userID string) (*dto.DispatchView, error) {
	breakage, err := s.loadBreakage(ctx, id)
	if err != nil {
		return nil, err
	}
	if !workflow.CanCreateReplacementDispatch(breakage) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "breakage is not eligible for a replacement dispatch")
	}
	if fromStoreID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "from_store_id is required")
	}
	if fromStoreID == breakage.StoreID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "source and destination stores must differ")
	}

	req := dto.CreateDispatchRequest{
		Type:        models.DispatchTypeInternal,
		FromStoreID: fromStoreID,
		ToStoreID:   breakage.StoreID,
		Notes:       fmt.Sprintf("Replacement for %s", breakage.BreakageNumber),
	}
	for _, item := range breakage.Items {
		if !item.ReplacementRequested {
			continue
		}
		req.Items = append(req.Items, dto.CreateDispatchItemRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	view, err := s.dispatcher.CreateForBreakage(ctx, req, id, userID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.MarkDispatchInitiated(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "replacement dispatch already initiated")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update breakage status")
	}

	s.emitAudit(ctx, userID, models.AuditActionBreakageReplacement, id, view)
	return view, nil
}

// AssignableItems lists dispatch items that may be referenced by a new or
// edited breakage report: received stock not yet damaged away or returned.
func (s *BreakageService) AssignableItems(ctx context.Context, query dto.AssignableItemQuery) ([]models.AssignableItem, error) {
	items, err := s.dispatchItems.ListAssignableItems(ctx, query.StoreID, query.Search)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignable items")
	}
	return items, nil
}

func (s *BreakageService) buildItems(ctx context.Context, reqs []dto.CreateBreakageItemRequest) ([]models.BreakageItem, error) {
	ids := make([]string, 0, len(reqs))
	for _, req := range reqs {
		if !models.ValidBreakageCause(req.Cause) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown breakage cause: %s", req.Cause))
		}
		ids = append(ids, req.DispatchItemID)
	}
	dispatchItems, err := s.dispatchItems.GetItems(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dispatch items")
	}
	byID := make(map[string]*models.DispatchItem, len(dispatchItems))
	for i := range dispatchItems {
		byID[dispatchItems[i].ID] = &dispatchItems[i]
	}

	items := make([]models.BreakageItem, 0, len(reqs))
	for _, req := range reqs {
		source, ok := byID[req.DispatchItemID]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown dispatch item: %s", req.DispatchItemID))
		}
		if !workflow.IsSelectable(source) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("dispatch item %s has no available quantity", req.DispatchItemID))
		}
		if err := workflow.ValidateAgainstAvailable(source, req.Quantity); err != nil {
			return nil, err
		}
		items = append(items, models.BreakageItem{
			DispatchItemID:       req.DispatchItemID,
			ProductID:            source.ProductID,
			ProductName:          source.ProductName,
			Quantity:             req.Quantity,
			Cause:                req.Cause,
			ReplacementRequested: req.ReplacementRequested.Bool(),
			Notes:                req.Notes,
		})
	}
	return items, nil
}

func (s *BreakageService) loadBreakage(ctx context.Context, id string) (*models.Breakage, error) {
	breakage, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load breakage")
	}
	return breakage, nil
}

func (s *BreakageService) emitAudit(ctx context.Context, userID, action, resourceID string, payload interface{}) {
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
		Resource:   "breakages",
		ResourceID: &resourceID,
		NewValues:  newValues,
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("audit log write failed", zap.String("action", action), zap.Error(err))
	}
}

func newBreakageNumber() string {
	return "BRK-" + strings.ToUpper(uuid.NewString()[:8])
}
