package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/backoffice-api/internal/models"
)

const productColumns = `id, sku, name, category_id, supplier_id, unit_price, active, created_at, updated_at`

// ProductRepository persists catalog entries and their variants.
type ProductRepository struct {
	db *sqlx.DB
}

// NewProductRepository constructs the repository.
func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create inserts a product and its variants in one transaction.
func (r *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create product: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO products (id, sku, name, category_id, supplier_id, unit_price, active, created_at, updated_at)
		VALUES (:id, :sku, :name, :category_id, :supplier_id, :unit_price, :active, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, product); err != nil {
		return fmt.Errorf("create product: %w", err)
	}

	if err := insertVariants(ctx, tx, product.ID, product.Variants); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create product: %w", err)
	}
	return nil
}

func insertVariants(ctx context.Context, tx *sqlx.Tx, productID string, variants []models.ProductVariant) error {
	const query = `INSERT INTO product_variants (id, product_id, name, sku_suffix)
		VALUES (:id, :product_id, :name, :sku_suffix)`
	for i := range variants {
		variant := &variants[i]
		if variant.ID == "" {
			variant.ID = uuid.NewString()
		}
		variant.ProductID = productID
		if _, err := tx.NamedExecContext(ctx, query, variant); err != nil {
			return fmt.Errorf("create product variant: %w", err)
		}
	}
	return nil
}

// GetByID fetches a product with its variants.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	query := fmt.Sprintf("SELECT %s FROM products WHERE id = $1", productColumns)
	var product models.Product
	if err := r.db.GetContext(ctx, &product, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find product: %w", err)
	}

	const variantsQuery = `SELECT id, product_id, name, sku_suffix FROM product_variants WHERE product_id = $1 ORDER BY name`
	if err := r.db.SelectContext(ctx, &product.Variants, variantsQuery, id); err != nil {
		return nil, fmt.Errorf("load product variants: %w", err)
	}
	return &product, nil
}

// GetBySKU fetches a product by its unique SKU.
func (r *ProductRepository) GetBySKU(ctx context.Context, sku string) (*models.Product, error) {
	query := fmt.Sprintf("SELECT %s FROM products WHERE sku = $1", productColumns)
	var product models.Product
	if err := r.db.GetContext(ctx, &product, query, sku); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find product by sku: %w", err)
	}
	return &product, nil
}

// List returns products matching the filter and a total count.
func (r *ProductRepository) List(ctx context.Context, filter models.ProductFilter) ([]models.Product, int, error) {
	baseQuery := `FROM products WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.CategoryID != "" {
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", len(args)+1))
		args = append(args, filter.CategoryID)
	}
	if filter.SupplierID != "" {
		conditions = append(conditions, fmt.Sprintf("supplier_id = $%d", len(args)+1))
		args = append(args, filter.SupplierID)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(sku) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"name":       true,
		"sku":        true,
		"unit_price": true,
		"created_at": true,
		"updated_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "name"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d",
		productColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var products []models.Product
	if err := r.db.SelectContext(ctx, &products, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}
	return products, total, nil
}

// Update replaces the product row and its variant set.
func (r *ProductRepository) Update(ctx context.Context, product *models.Product) error {
	product.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update product: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `UPDATE products SET sku = :sku, name = :name, category_id = :category_id,
		supplier_id = :supplier_id, unit_price = :unit_price, active = :active, updated_at = :updated_at
		WHERE id = :id`
	result, err := tx.NamedExecContext(ctx, query, product)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check product update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM product_variants WHERE product_id = $1`, product.ID); err != nil {
		return fmt.Errorf("clear product variants: %w", err)
	}
	for i := range product.Variants {
		product.Variants[i].ID = ""
	}
	if err := insertVariants(ctx, tx, product.ID, product.Variants); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update product: %w", err)
	}
	return nil
}

// Delete removes a product and its variants.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete product: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM product_variants WHERE product_id = $1`, id); err != nil {
		return fmt.Errorf("delete product variants: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check product delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete product: %w", err)
	}
	return nil
}

// ListCategories returns all categories ordered by name.
func (r *ProductRepository) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := r.db.SelectContext(ctx, &categories, `SELECT id, name FROM categories ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// ListSuppliers returns all suppliers ordered by name.
func (r *ProductRepository) ListSuppliers(ctx context.Context) ([]models.Supplier, error) {
	var suppliers []models.Supplier
	if err := r.db.SelectContext(ctx, &suppliers, `SELECT id, name, contact_email FROM suppliers ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	return suppliers, nil
}
