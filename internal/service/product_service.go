package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/backoffice-api/internal/dto"
	"github.com/noah-isme/backoffice-api/internal/models"
	appErrors "github.com/noah-isme/backoffice-api/pkg/errors"
)

const productCachePattern = "products:*"

type productStore interface {
	Create(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, id string) (*models.Product, error)
	GetBySKU(ctx context.Context, sku string) (*models.Product, error)
	List(ctx context.Context, filter models.ProductFilter) ([]models.Product, int, error)
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
}

// ProductService manages the catalog.
type ProductService struct {
	repo    productStore
	cache   *CacheService
	listTTL time.Duration
	logger  *zap.Logger
}

// NewProductService constructs the service.
func NewProductService(repo productStore, cache *CacheService, listTTL time.Duration, logger *zap.Logger) *ProductService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductService{repo: repo, cache: cache, listTTL: listTTL, logger: logger}
}

type productListPayload struct {
	Items      []models.Product  `json:"items"`
	Pagination models.Pagination `json:"pagination"`
}

// List returns products matching the query. Results are cached per filter
// combination.
func (s *ProductService) List(ctx context.Context, query dto.ProductQuery) ([]models.Product, models.Pagination, bool, error) {
	active := ""
	if query.Active != nil {
		active = fmt.Sprintf("%t", *query.Active)
	}
	cacheKey := fmt.Sprintf("products:list:%s:%s:%s:%s:%d:%d:%s:%s",
		query.CategoryID, query.SupplierID, active, strings.ToLower(query.Search),
		query.Page, query.PageSize, query.SortBy, query.SortOrder)

	var cached productListPayload
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return cached.Items, cached.Pagination, true, nil
	}

	filter := models.ProductFilter{
		CategoryID: query.CategoryID,
		SupplierID: query.SupplierID,
		Active:     query.Active,
		Search:     query.Search,
		Page:       query.Page,
		PageSize:   query.PageSize,
		SortBy:     query.SortBy,
		SortOrder:  query.SortOrder,
	}
	products, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, models.Pagination{}, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list products")
	}
	pagination := models.NewPagination(filter.Page, filter.PageSize, total)

	if err := s.cache.Set(ctx, cacheKey, productListPayload{Items: products, Pagination: pagination}, s.listTTL); err != nil {
		s.logger.Debug("product list cache write skipped", zap.Error(err))
	}
	return products, pagination, false, nil
}

// Get returns one product with variants.
func (s *ProductService) Get(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load product")
	}
	return product, nil
}

// Create adds a catalog entry after checking SKU uniqueness.
func (s *ProductService) Create(ctx context.Context, req dto.CreateProductRequest) (*models.Product, error) {
	sku := strings.TrimSpace(req.SKU)
	if _, err := s.repo.GetBySKU(ctx, sku); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("sku already in use: %s", sku))
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check sku")
	}

	product := &models.Product{
		SKU:        sku,
		Name:       strings.TrimSpace(req.Name),
		CategoryID: req.CategoryID,
		SupplierID: req.SupplierID,
		UnitPrice:  req.UnitPrice,
		Active:     true,
	}
	if req.Active != nil {
		product.Active = *req.Active
	}
	for _, variant := range req.Variants {
		product.Variants = append(product.Variants, models.ProductVariant{
			Name:      strings.TrimSpace(variant.Name),
			SKUSuffix: strings.TrimSpace(variant.SKUSuffix),
		})
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create product")
	}
	s.invalidateLists(ctx)
	return product, nil
}

// Update modifies mutable catalog fields.
func (s *ProductService) Update(ctx context.Context, id string, req dto.UpdateProductRequest) (*models.Product, error) {
	product, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	product.Name = strings.TrimSpace(req.Name)
	product.CategoryID = req.CategoryID
	product.SupplierID = req.SupplierID
	product.UnitPrice = req.UnitPrice
	if req.Active != nil {
		product.Active = *req.Active
	}
	if err := s.repo.Update(ctx, product); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update product")
	}
	s.invalidateLists(ctx)
	return product, nil
}

// Delete removes a product.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete product")
	}
	s.invalidateLists(ctx)
	return nil
}

func (s *ProductService) invalidateLists(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, productCachePattern); err != nil {
		s.logger.Debug("product cache invalidation skipped", zap.Error(err))
	}
}
