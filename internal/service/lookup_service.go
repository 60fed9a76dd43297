package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/backoffice-api/internal/dto"
	"github.com/noah-isme/backoffice-api/internal/models"
	"github.com/noah-isme/backoffice-api/pkg/retry"
)

const formDataCacheKey = "lookups:form-data"

type storeLister interface {
	List(ctx context.Context) ([]models.Store, error)
}

type catalogLookups interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	ListSuppliers(ctx context.Context) ([]models.Supplier, error)
}

type userDirectory interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
}

// LookupService feeds form dropdowns. Each source is loaded with bounded
// retries; a source that stays down degrades to an empty list plus a warning
// instead of failing the whole aggregate.
type LookupService struct {
	stores   storeLister
	catalog  catalogLookups
	users    userDirectory
	cache    *CacheService
	retryCfg retry.Config
	formTTL  time.Duration
	logger   *zap.Logger
}

// NewLookupService constructs the service.
func NewLookupService(stores storeLister, catalog catalogLookups, users userDirectory, cache *CacheService, retryCfg retry.Config, formTTL time.Duration, logger *zap.Logger) *LookupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LookupService{
		stores:   stores,
		catalog:  catalog,
		users:    users,
		cache:    cache,
		retryCfg: retryCfg,
		formTTL:  formTTL,
		logger:   logger,
	}
}

// Stores lists active stores with retries.
func (s *LookupService) Stores(ctx context.Context) ([]models.Store, error) {
	var stores []models.Store
	err := retry.Do(ctx, s.retryCfg, func(ctx context.Context) error {
		var loadErr error
		stores, loadErr = s.stores.List(ctx)
		return loadErr
	})
	return stores, err
}

// Categories lists categories with retries.
func (s *LookupService) Categories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := retry.Do(ctx, s.retryCfg, func(ctx context.Context) error {
		var loadErr error
		categories, loadErr = s.catalog.ListCategories(ctx)
		return loadErr
	})
	return categories, err
}

// Suppliers lists suppliers with retries.
func (s *LookupService) Suppliers(ctx context.Context) ([]models.Supplier, error) {
	var suppliers []models.Supplier
	err := retry.Do(ctx, s.retryCfg, func(ctx context.Context) error {
		var loadErr error
		suppliers, loadErr = s.catalog.ListSuppliers(ctx)
		return loadErr
	})
	return suppliers, err
}

// Users lists active users as dropdown summaries with retries.
func (s *LookupService) Users(ctx context.Context) ([]dto.UserSummary, error) {
	active := true
	var summaries []dto.UserSummary
	err := retry.Do(ctx, s.retryCfg, func(ctx context.Context) error {
		users, _, loadErr := s.users.List(ctx, models.UserFilter{Active: &active, PageSize: 100, SortBy: "full_name", SortOrder: "ASC"})
		if loadErr != nil {
			return loadErr
		}
		summaries = summaries[:0]
		for _, user := range users {
			summaries = append(summaries, dto.UserSummary{ID: user.ID, FullName: user.FullName, Role: user.Role})
		}
		return nil
	})
	return summaries, err
}

// FormData aggregates every dropdown source in one call. Sources that fail
// after all retries contribute an empty list and a warning naming the source.
// The aggregate is cached only when it is complete.
func (s *LookupService) FormData(ctx context.Context) (*dto.FormData, bool, error) {
	var cached dto.FormData
	if hit, err := s.cache.Get(ctx, formDataCacheKey, &cached); err == nil && hit {
		return &cached, true, nil
	}

	data := &dto.FormData{}

	if stores, err := s.Stores(ctx); err != nil {
		s.logger.Warn("form data source failed", zap.String("source", "stores"), zap.Error(err))
		data.Warnings = append(data.Warnings, "stores unavailable")
	} else {
		data.Stores = stores
	}
	if categories, err := s.Categories(ctx); err != nil {
		s.logger.Warn("form data source failed", zap.String("source", "categories"), zap.Error(err))
		data.Warnings = append(data.Warnings, "categories unavailable")
	} else {
		data.Categories = categories
	}
	if suppliers, err := s.Suppliers(ctx); err != nil {
		s.logger.Warn("form data source failed", zap.String("source", "suppliers"), zap.Error(err))
		data.Warnings = append(data.Warnings, "suppliers unavailable")
	} else {
		data.Suppliers = suppliers
	}
	if users, err := s.Users(ctx); err != nil {
		s.logger.Warn("form data source failed", zap.String("source", "users"), zap.Error(err))
		data.Warnings = append(data.Warnings, "users unavailable")
	} else {
		data.Users = users
	}

	if len(data.Warnings) == 0 {
		if err := s.cache.Set(ctx, formDataCacheKey, data, s.formTTL); err != nil {
			s.logger.Debug("form data cache write skipped", zap.Error(err))
		}
	}
	return data, false, nil
}
