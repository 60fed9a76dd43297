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

const breakageColumns = `id, breakage_number, status, approval_status, store_id, reported_by, approved_by, approved_at, rejection_reason, notes, created_at, updated_at`

const breakageItemColumns = `id, breakage_id, dispatch_item_id, product_id, product_name, quantity, cause, replacement_requested, notes`

// BreakageRepository persists breakage reports and their items.
type BreakageRepository struct {
	db *sqlx.DB
}

// NewBreakageRepository constructs the repository.
func NewBreakageRepository(db *sqlx.DB) *BreakageRepository {
	return &BreakageRepository{db: db}
}

// Create inserts a breakage and its items in one transaction.
func (r *BreakageRepository) Create(ctx context.Context, breakage *models.Breakage) error {
	if breakage.ID == "" {
		breakage.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if breakage.CreatedAt.IsZero() {
		breakage.CreatedAt = now
	}
	breakage.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create breakage: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const headerQuery = `INSERT INTO breakages
		(id, breakage_number, status, approval_status, store_id, reported_by, approved_by, approved_at, rejection_reason, notes, created_at, updated_at)
		VALUES (:id, :breakage_number, :status, :approval_status, :store_id, :reported_by, :approved_by, :approved_at, :rejection_reason, :notes, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, headerQuery, breakage); err != nil {
		return fmt.Errorf("create breakage: %w", err)
	}

	if err := insertBreakageItems(ctx, tx, breakage.ID, breakage.Items); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create breakage: %w", err)
	}
	return nil
}

func insertBreakageItems(ctx context.Context, tx *sqlx.Tx, breakageID string, items []models.BreakageItem) error {
	const itemQuery = `INSERT INTO breakage_items
		(id, breakage_id, dispatch_item_id, product_id, product_name, quantity, cause, replacement_requested, notes)
		VALUES (:id, :breakage_id, :dispatch_item_id, :product_id, :product_name, :quantity, :cause, :replacement_requested, :notes)`
	for i := range items {
		item := &items[i]
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.BreakageID = breakageID
		if _, err := tx.NamedExecContext(ctx, itemQuery, item); err != nil {
			return fmt.Errorf("create breakage item: %w", err)
		}
	}
	return nil
}

// GetByID fetches a breakage with its items.
func (r *BreakageRepository) GetByID(ctx context.Context, id string) (*models.Breakage, error) {
	query := fmt.Sprintf("SELECT %s FROM breakages WHERE id = $1", breakageColumns)
	var breakage models.Breakage
	if err := r.db.GetContext(ctx, &breakage, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find breakage: %w", err)
	}

	itemsQuery := fmt.Sprintf("SELECT %s FROM breakage_items WHERE breakage_id = $1 ORDER BY product_name, id", breakageItemColumns)
	if err := r.db.SelectContext(ctx, &breakage.Items, itemsQuery, id); err != nil {
		return nil, fmt.Errorf("load breakage items: %w", err)
	}
	return &breakage, nil
}

// List returns breakages matching the filter with their items attached and a
// total count for pagination.
func (r *BreakageRepository) List(ctx context.Context, filter models.BreakageFilter) ([]models.Breakage, int, error) {
	baseQuery := `FROM breakages WHERE 1=1`
	var conditions []string
	var args []interface{}

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}
	if len(filter.ApprovalStatus) > 0 {
		placeholders := make([]string, len(filter.ApprovalStatus))
		for i, status := range filter.ApprovalStatus {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("approval_status IN (%s)", strings.Join(placeholders, ", ")))
	}
	if filter.StoreID != "" {
		conditions = append(conditions, fmt.Sprintf("store_id = $%d", len(args)+1))
		args = append(args, filter.StoreID)
	}
	if filter.ReportedBy != "" {
		conditions = append(conditions, fmt.Sprintf("reported_by = $%d", len(args)+1))
		args = append(args, filter.ReportedBy)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(breakage_number) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"breakage_number": true,
		"status":          true,
		"approval_status": true,
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
		breakageColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var breakages []models.Breakage
	if err := r.db.SelectContext(ctx, &breakages, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list breakages: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count breakages: %w", err)
	}

	if err := r.attachItems(ctx, breakages); err != nil {
		return nil, 0, err
	}
	return breakages, total, nil
}

func (r *BreakageRepository) attachItems(ctx context.Context, breakages []models.Breakage) error {
	if len(breakages) == 0 {
		return nil
	}
	ids := make([]string, len(breakages))
	for i := range breakages {
		ids[i] = breakages[i].ID
	}
	query, args, err := sqlx.In(
		fmt.Sprintf("SELECT %s FROM breakage_items WHERE breakage_id IN (?) ORDER BY product_name, id", breakageItemColumns), ids)
	if err != nil {
		return fmt.Errorf("build breakage items query: %w", err)
	}
	query = r.db.Rebind(query)

	var items []models.BreakageItem
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return fmt.Errorf("load breakage items: %w", err)
	}

	byBreakage := make(map[string][]models.BreakageItem, len(breakages))
	for _, item := range items {
		byBreakage[item.BreakageID] = append(byBreakage[item.BreakageID], item)
	}
	for i := range breakages {
		breakages[i].Items = byBreakage[breakages[i].ID]
	}
	return nil
}

// Update replaces the breakage notes and item set. The query refuses once the
// report has left the fully-pending state.
func (r *BreakageRepository) Update(ctx context.Context, breakage *models.Breakage) error {
	breakage.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update breakage: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const headerQuery = `UPDATE breakages SET store_id = :store_id, notes = :notes, updated_at = :updated_at
		WHERE id = :id AND status = 'PENDING' AND approval_status = 'PENDING'`
	result, err := tx.NamedExecContext(ctx, headerQuery, breakage)
	if err != nil {
		return fmt.Errorf("update breakage: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check breakage update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM breakage_items WHERE breakage_id = $1`, breakage.ID); err != nil {
		return fmt.Errorf("clear breakage items: %w", err)
	}
	for i := range breakage.Items {
		breakage.Items[i].ID = ""
	}
	if err := insertBreakageItems(ctx, tx, breakage.ID, breakage.Items); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update breakage: %w", err)
	}
	return nil
}

// Delete removes a breakage and its items while both axes are still pending.
func (r *BreakageRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete breakage: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM breakage_items WHERE breakage_id IN (
			SELECT id FROM breakages WHERE id = $1 AND status = 'PENDING' AND approval_status = 'PENDING'
		)`, id); err != nil {
		return fmt.Errorf("delete breakage items: %w", err)
	}
	result, err := tx.ExecContext(ctx,
		`DELETE FROM breakages WHERE id = $1 AND status = 'PENDING' AND approval_status = 'PENDING'`, id)
	if err != nil {
		return fmt.Errorf("delete breakage: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check breakage delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete breakage: %w", err)
	}
	return nil
}

// ReviewParams carries the outcome of an approval decision.
type ReviewParams struct {
	ID              string
	ApprovalStatus  models.ApprovalStatus
	ApprovedBy      string
	RejectionReason *string
}

// ApplyReview records the approval decision. The guard makes review a
// one-shot transition: rows affected is zero when the report was already
// reviewed.
func (r *BreakageRepository) ApplyReview(ctx context.Context, params ReviewParams) error {
	const query = `UPDATE breakages
		SET approval_status = $2, approved_by = $3, approved_at = $4, rejection_reason = $5, updated_at = $4
		WHERE id = $1 AND approval_status = 'PENDING'`
	result, err := r.db.ExecContext(ctx, query,
		params.ID, params.ApprovalStatus, params.ApprovedBy, time.Now().UTC(), params.RejectionReason)
	if err != nil {
		return fmt.Errorf("apply review: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check review rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkDispatchInitiated flips an approved report into DISPATCH_INITIATED.
// Guarded so only one replacement dispatch can be cut per report.
func (r *BreakageRepository) MarkDispatchInitiated(ctx context.Context, id string) error {
	const query = `UPDATE breakages SET status = 'DISPATCH_INITIATED', updated_at = $2
		WHERE id = $1 AND approval_status = 'APPROVED' AND status <> 'DISPATCH_INITIATED'`
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark dispatch initiated: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check status rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
