package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/backoffice-api/internal/models"
)

// StoreRepository reads warehouse and retail locations.
type StoreRepository struct {
	db *sqlx.DB
}

// NewStoreRepository constructs the repository.
func NewStoreRepository(db *sqlx.DB) *StoreRepository {
	return &StoreRepository{db: db}
}

// List returns active stores ordered by name.
func (r *StoreRepository) List(ctx context.Context) ([]models.Store, error) {
	const query = `SELECT id, code, name, address, active, created_at, updated_at
		FROM stores WHERE active = TRUE ORDER BY name`
	var stores []models.Store
	if err := r.db.SelectContext(ctx, &stores, query); err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	return stores, nil
}

// GetByID fetches one store.
func (r *StoreRepository) GetByID(ctx context.Context, id string) (*models.Store, error) {
	const query = `SELECT id, code, name, address, active, created_at, updated_at FROM stores WHERE id = $1`
	var store models.Store
	if err := r.db.GetContext(ctx, &store, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find store: %w", err)
	}
	return &store, nil
}
