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

const dispatchColumns = `id, dispatch_number, type, from_store_id, to_store_id, is_returnable, notes, acknowledged_by, breakage_id, created_by, created_at, updated_at`

const dispatchItemColumns = `id, dispatch_id, product_id, variant_id, product_name, quantity, received_quantity, returned_quantity, is_returnable, is_returned, return_date, return_notes`

// DispatchRepository persists dispatches and their items.
type DispatchRepository struct {
	db *sqlx.DB
}

// NewDispatchRepository constructs the repository.
func NewDispatchRepository(db *sqlx.DB) *DispatchRepository {
	return &DispatchRepository{db: db}
}

// Create inserts a dispatch header and its items in one transaction.
func (r *DispatchRepository) Create(ctx context.Context, dispatch *models.Dispatch) error {
	if dispatch.ID == "" {
		dispatch.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if dispatch.CreatedAt.IsZero() {
		dispatch.CreatedAt = now
	}
	dispatch.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create dispatch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const headerQuery = `INSERT INTO dispatches
		(id, dispatch_number, type, from_store_id, to_store_id, is_returnable, notes, acknowledged_by, breakage_id, created_by, created_at, updated_at)
		VALUES (:id, :dispatch_number, :type, :from_store_id, :to_store_id, :is_returnable, :notes, :acknowledged_by, :breakage_id, :created_by, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, headerQuery, dispatch); err != nil {
		return fmt.Errorf("create dispatch: %w", err)
	}

	if err := insertDispatchItems(ctx, tx, dispatch.ID, dispatch.Items); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create dispatch: %w", err)
	}
	return nil
}

func insertDispatchItems(ctx context.Context, tx *sqlx.Tx, dispatchID string, items []models.DispatchItem) error {
	const itemQuery = `INSERT INTO dispatch_items
		(id, dispatch_id, product_id, variant_id, product_name, quantity, received_quantity, returned_quantity, is_returnable, is_returned, return_date, return_notes)
		VALUES (:id, :dispatch_id, :product_id, :variant_id, :product_name, :quantity, :received_quantity, :returned_quantity, :is_returnable, :is_returned, :return_date, :return_notes)`
	for i := range items {
		item := &items[i]
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.DispatchID = dispatchID
		if _, err := tx.NamedExecContext(ctx, itemQuery, item); err != nil {
			return fmt.Errorf("create dispatch item: %w", err)
		}
	}
	return nil
}

// GetByID fetches a dispatch with its items.
func (r *DispatchRepository) GetByID(ctx context.Context, id string) (*models.Dispatch, error) {
	query := fmt.Sprintf("SELECT %s FROM dispatches WHERE id = $1", dispatchColumns)
	var dispatch models.Dispatch
	if err := r.db.GetContext(ctx, &dispatch, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find dispatch: %w", err)
	}

	itemsQuery := fmt.Sprintf("SELECT %s FROM dispatch_items WHERE dispatch_id = $1 ORDER BY product_name, id", dispatchItemColumns)
	if err := r.db.SelectContext(ctx, &dispatch.Items, itemsQuery, id); err != nil {
		return nil, fmt.Errorf("load dispatch items: %w", err)
	}
	return &dispatch, nil
}

// List returns dispatches matching the filter with their items attached and a
// total count for pagination.
func (r *DispatchRepository) List(ctx context.Context, filter models.DispatchFilter) ([]models.Dispatch, int, error) {
	baseQuery := `FROM dispatches WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}
	if filter.FromStoreID != "" {
		conditions = append(conditions, fmt.Sprintf("from_store_id = $%d", len(args)+1))
		args = append(args, filter.FromStoreID)
	}
	if filter.ToStoreID != "" {
		conditions = append(conditions, fmt.Sprintf("to_store_id = $%d", len(args)+1))
		args = append(args, filter.ToStoreID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(dispatch_number) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"dispatch_number": true,
		"created_at":      true,
		"updated_at":      true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
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
		dispatchColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var dispatches []models.Dispatch
	if err := r.db.SelectContext(ctx, &dispatches, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list dispatches: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count dispatches: %w", err)
	}

	if err := r.attachItems(ctx, dispatches); err != nil {
		return nil, 0, err
	}
	return dispatches, total, nil
}

func (r *DispatchRepository) attachItems(ctx context.Context, dispatches []models.Dispatch) error {
	if len(dispatches) == 0 {
		return nil
	}
	ids := make([]string, len(dispatches))
	for i := range dispatches {
		ids[i] = dispatches[i].ID
	}
	query, args, err := sqlx.In(
		fmt.Sprintf("SELECT %s FROM dispatch_items WHERE dispatch_id IN (?) ORDER BY product_name, id", dispatchItemColumns), ids)
	if err != nil {
		return fmt.Errorf("build dispatch items query: %w", err)
	}
	query = r.db.Rebind(query)

	var items []models.DispatchItem
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return fmt.Errorf("load dispatch items: %w", err)
	}

	byDispatch := make(map[string][]models.DispatchItem, len(dispatches))
	for _, item := range items {
		byDispatch[item.DispatchID] = append(byDispatch[item.DispatchID], item)
	}
	for i := range dispatches {
		dispatches[i].Items = byDispatch[dispatches[i].ID]
	}
	return nil
}

// Update replaces the dispatch header and item set. The caller is responsible
// for enforcing the pending-only edit gate; the query still guards against
// concurrent receipt activity by refusing when any item has been received.
func (r *DispatchRepository) Update(ctx context.Context, dispatch *models.Dispatch) error {
	dispatch.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update dispatch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const headerQuery = `UPDATE dispatches SET type = :type, from_store_id = :from_store_id, to_store_id = :to_store_id,
		is_returnable = :is_returnable, notes = :notes, updated_at = :updated_at
		WHERE id = :id AND NOT EXISTS (
			SELECT 1 FROM dispatch_items WHERE dispatch_id = :id AND received_quantity > 0
		)`
	result, err := tx.NamedExecContext(ctx, headerQuery, dispatch)
	if err != nil {
		return fmt.Errorf("update dispatch: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check dispatch update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM dispatch_items WHERE dispatch_id = $1`, dispatch.ID); err != nil {
		return fmt.Errorf("clear dispatch items: %w", err)
	}
	for i := range dispatch.Items {
		dispatch.Items[i].ID = ""
	}
	if err := insertDispatchItems(ctx, tx, dispatch.ID, dispatch.Items); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update dispatch: %w", err)
	}
	return nil
}

// Delete removes a dispatch and its items. Refuses once receipt activity
// exists.
func (r *DispatchRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete dispatch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var receivedCount int
	if err := tx.GetContext(ctx, &receivedCount,
		`SELECT COUNT(*) FROM dispatch_items WHERE dispatch_id = $1 AND received_quantity > 0`, id); err != nil {
		return fmt.Errorf("check dispatch activity: %w", err)
	}
	if receivedCount > 0 {
		return sql.ErrNoRows
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM dispatch_items WHERE dispatch_id = $1`, id); err != nil {
		return fmt.Errorf("delete dispatch items: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM dispatches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete dispatch: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check dispatch delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete dispatch: %w", err)
	}
	return nil
}

// ItemQuantity pairs an item with a quantity delta.
type ItemQuantity struct {
	ItemID   string
	Quantity int
}

// ApplyAcknowledgements increments received counters for the given items.
// Each update is guarded so the counter can never exceed the requested
// quantity; a guard miss aborts the transaction with sql.ErrNoRows.
func (r *DispatchRepository) ApplyAcknowledgements(ctx context.Context, dispatchID string, acks []ItemQuantity, userID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin acknowledge: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const itemQuery = `UPDATE dispatch_items
		SET received_quantity = received_quantity + $1
		WHERE id = $2 AND dispatch_id = $3 AND received_quantity + $1 <= quantity`
	for _, ack := range acks {
		result, err := tx.ExecContext(ctx, itemQuery, ack.Quantity, ack.ItemID, dispatchID)
		if err != nil {
			return fmt.Errorf("acknowledge item %s: %w", ack.ItemID, err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("check acknowledge rows: %w", err)
		}
		if rows == 0 {
			return sql.ErrNoRows
		}
	}

	const headerQuery = `UPDATE dispatches SET acknowledged_by = COALESCE(acknowledged_by, $2), updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, headerQuery, dispatchID, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("stamp acknowledger: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit acknowledge: %w", err)
	}
	return nil
}

// ReturnUpdate describes a return applied to one dispatch item.
type ReturnUpdate struct {
	ItemID      string
	Quantity    int
	CloseItem   bool
	ReturnDate  time.Time
	ReturnNotes *string
}

// ApplyReturns increments returned counters and optionally closes the item's
// return lifecycle. Guards refuse returns past the received balance.
func (r *DispatchRepository) ApplyReturns(ctx context.Context, dispatchID string, updates []ReturnUpdate) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin return: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const itemQuery = `UPDATE dispatch_items
		SET returned_quantity = returned_quantity + $1,
		    is_returned = CASE WHEN $2 THEN TRUE ELSE is_returned END,
		    return_date = CASE WHEN $2 THEN $3 ELSE return_date END,
		    return_notes = COALESCE($4, return_notes)
		WHERE id = $5 AND dispatch_id = $6 AND is_returnable = TRUE AND is_returned = FALSE
		  AND returned_quantity + $1 <= received_quantity`
	for _, update := range updates {
		result, err := tx.ExecContext(ctx, itemQuery,
			update.Quantity, update.CloseItem, update.ReturnDate, update.ReturnNotes, update.ItemID, dispatchID)
		if err != nil {
			return fmt.Errorf("return item %s: %w", update.ItemID, err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("check return rows: %w", err)
		}
		if rows == 0 {
			return sql.ErrNoRows
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE dispatches SET updated_at = $2 WHERE id = $1`, dispatchID, time.Now().UTC()); err != nil {
		return fmt.Errorf("touch dispatch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit return: %w", err)
	}
	return nil
}

// ListAssignableItems returns dispatch items that still hold received,
// undamaged quantity at the given store and may be referenced by a breakage
// report.
func (r *DispatchRepository) ListAssignableItems(ctx context.Context, storeID, search string) ([]models.AssignableItem, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 2)
	builder.WriteString(`SELECT di.id AS dispatch_item_id, di.dispatch_id, d.dispatch_number, di.product_id,
       di.product_name, di.variant_id, di.received_quantity, di.returned_quantity
		FROM dispatch_items di
		JOIN dispatches d ON d.id = di.dispatch_id
		WHERE di.is_returned = FALSE AND di.received_quantity - di.returned_quantity > 0`)

	if storeID != "" {
		args = append(args, storeID)
		builder.WriteString(fmt.Sprintf(" AND d.to_store_id = $%d", len(args)))
	}
	if search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		builder.WriteString(fmt.Sprintf(" AND (LOWER(di.product_name) LIKE $%d OR LOWER(d.dispatch_number) LIKE $%d)", len(args), len(args)))
	}
	builder.WriteString(" ORDER BY d.dispatch_number, di.product_name")

	var items []models.AssignableItem
	if err := r.db.SelectContext(ctx, &items, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list assignable items: %w", err)
	}
	for i := range items {
		items[i].AvailableQuantity = items[i].ReceivedQuantity - items[i].ReturnedQuantity
	}
	return items, nil
}

// GetItems fetches a specific set of dispatch items by id.
func (r *DispatchRepository) GetItems(ctx context.Context, itemIDs []string) ([]models.DispatchItem, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		fmt.Sprintf("SELECT %s FROM dispatch_items WHERE id IN (?)", dispatchItemColumns), itemIDs)
	if err != nil {
		return nil, fmt.Errorf("build items query: %w", err)
	}
	query = r.db.Rebind(query)

	var items []models.DispatchItem
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	return items, nil
}
