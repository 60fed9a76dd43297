package models

import "time"

// Product is a catalog entry.
type Product struct {
	ID         string    `db:"id" json:"id"`
	SKU        string    `db:"sku" json:"sku"`
	Name       string    `db:"name" json:"name"`
	CategoryID *string   `db:"category_id" json:"category_id,omitempty"`
	SupplierID *string   `db:"supplier_id" json:"supplier_id,omitempty"`
	UnitPrice  float64   `db:"unit_price" json:"unit_price"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`

	Variants []ProductVariant `db:"-" json:"variants,omitempty"`
}

// ProductVariant describes a sellable variation of a product (size, colour).
type ProductVariant struct {
	ID        string `db:"id" json:"id"`
	ProductID string `db:"product_id" json:"product_id"`
	Name      string `db:"name" json:"name"`
	SKUSuffix string `db:"sku_suffix" json:"sku_suffix"`
}

// Category groups products for filtering and form dropdowns.
type Category struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Supplier is a goods source referenced by products.
type Supplier struct {
	ID           string  `db:"id" json:"id"`
	Name         string  `db:"name" json:"name"`
	ContactEmail *string `db:"contact_email" json:"contact_email,omitempty"`
}

// ProductFilter constrains product listing queries.
type ProductFilter struct {
	CategoryID string
	SupplierID string
	Active     *bool
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
