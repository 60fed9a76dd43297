package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backoffice-api/internal/models"
)

func TestBreakageGetByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBreakageRepository(db)

	now := time.Now()
	headerRows := sqlmock.NewRows([]string{"id", "breakage_number", "status", "approval_status", "store_id", "reported_by", "approved_by", "approved_at", "rejection_reason", "notes", "created_at", "updated_at"}).
		AddRow("b1", "BRK-001", "PENDING", "PENDING", "s1", "u1", nil, nil, nil, nil, now, now)
	mock.ExpectQuery("SELECT (.+) FROM breakages WHERE id").
		WithArgs("b1").
		WillReturnRows(headerRows)

	itemRows := sqlmock.NewRows([]string{"id", "breakage_id", "dispatch_item_id", "product_id", "product_name", "quantity", "cause", "replacement_requested", "notes"}).
		AddRow("bi1", "b1", "di1", "p1", "Crate", 2, "TRANSPORT_DAMAGE", true, nil)
	mock.ExpectQuery("SELECT (.+) FROM breakage_items WHERE breakage_id").
		WithArgs("b1").
		WillReturnRows(itemRows)

	breakage, err := repo.GetByID(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusPending, breakage.ApprovalStatus)
	require.Len(t, breakage.Items, 1)
	assert.True(t, breakage.Items[0].ReplacementRequested)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBreakageCreateInsertsHeaderAndItems(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBreakageRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO breakages").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO breakage_items").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	breakage := &models.Breakage{
		BreakageNumber: "BRK-002",
		Status:         models.BreakageStatusPending,
		ApprovalStatus: models.ApprovalStatusPending,
		StoreID:        "s1",
		ReportedBy:     "u1",
		Items: []models.BreakageItem{
			{DispatchItemID: "di1", ProductID: "p1", ProductName: "Crate", Quantity: 1, Cause: models.CauseAccident},
		},
	}
	err := repo.Create(context.Background(), breakage)
	require.NoError(t, err)
	assert.NotEmpty(t, breakage.ID)
	assert.Equal(t, breakage.ID, breakage.Items[0].BreakageID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyReviewIsOneShot(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBreakageRepository(db)

	mock.ExpectExec("UPDATE breakages").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ApplyReview(context.Background(), ReviewParams{
		ID:             "b1",
		ApprovalStatus: models.ApprovalStatusApproved,
		ApprovedBy:     "m1",
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkDispatchInitiatedRequiresApproval(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBreakageRepository(db)

	mock.ExpectExec("UPDATE breakages SET status = 'DISPATCH_INITIATED'").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkDispatchInitiated(context.Background(), "b1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBreakageDeleteRefusesAfterReview(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBreakageRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM breakage_items").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM breakages").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "b1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
