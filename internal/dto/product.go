package dto

import "github.com/noah-isme/backoffice-api/internal/models"

// CreateProductRequest adds a catalog entry.
type CreateProductRequest struct {
	SKU        string                 `json:"sku" validate:"required"`
	Name       string                 `json:"name" validate:"required"`
	CategoryID *string                `json:"category_id,omitempty"`
	SupplierID *string                `json:"supplier_id,omitempty"`
	UnitPrice  float64                `json:"unit_price" validate:"gte=0"`
	Active     *bool                  `json:"active,omitempty"`
	Variants   []CreateVariantRequest `json:"variants,omitempty" validate:"dive"`
}

// CreateVariantRequest adds a variant under a product.
type CreateVariantRequest struct {
	Name      string `json:"name" validate:"required"`
	SKUSuffix string `json:"sku_suffix" validate:"required"`
}

// UpdateProductRequest modifies mutable catalog fields.
type UpdateProductRequest struct {
	Name       string  `json:"name" validate:"required"`
	CategoryID *string `json:"category_id,omitempty"`
	SupplierID *string `json:"supplier_id,omitempty"`
	UnitPrice  float64 `json:"unit_price" validate:"gte=0"`
	Active     *bool   `json:"active,omitempty"`
}

// ProductQuery mirrors supported listing filters.
type ProductQuery struct {
	CategoryID string `form:"category_id"`
	SupplierID string `form:"supplier_id"`
	Active     *bool  `form:"active"`
	Search     string `form:"search"`
	Page       int    `form:"page"`
	PageSize   int    `form:"page_size"`
	SortBy     string `form:"sort"`
	SortOrder  string `form:"order"`
}

// CreateExportRequest queues an asynchronous export job.
type CreateExportRequest struct {
	Type   models.ExportType   `json:"type" validate:"required,oneof=PRODUCT_CATALOG DISPATCH_SUMMARY"`
	Format models.ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
}
