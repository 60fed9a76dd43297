package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backoffice-api/internal/models"
)

func TestDispatchGetByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDispatchRepository(db)

	now := time.Now()
	headerRows := sqlmock.NewRows([]string{"id", "dispatch_number", "type", "from_store_id", "to_store_id", "is_returnable", "notes", "acknowledged_by", "breakage_id", "created_by", "created_at", "updated_at"}).
		AddRow("d1", "DSP-001", "INTERNAL", "s1", "s2", true, nil, nil, nil, "u1", now, now)
	mock.ExpectQuery("SELECT (.+) FROM dispatches WHERE id").
		WithArgs("d1").
		WillReturnRows(headerRows)

	itemRows := sqlmock.NewRows([]string{"id", "dispatch_id", "product_id", "variant_id", "product_name", "quantity", "received_quantity", "returned_quantity", "is_returnable", "is_returned", "return_date", "return_notes"}).
		AddRow("i1", "d1", "p1", nil, "Crate", 10, 4, 0, true, false, nil, nil)
	mock.ExpectQuery("SELECT (.+) FROM dispatch_items WHERE dispatch_id").
		WithArgs("d1").
		WillReturnRows(itemRows)

	dispatch, err := repo.GetByID(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, "DSP-001", dispatch.DispatchNumber)
	require.Len(t, dispatch.Items, 1)
	assert.Equal(t, 4, dispatch.Items[0].ReceivedQuantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatchCreateInsertsHeaderAndItems(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDispatchRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO dispatches").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO dispatch_items").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO dispatch_items").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	dispatch := &models.Dispatch{
		DispatchNumber: "DSP-002",
		Type:           models.DispatchTypeInternal,
		FromStoreID:    "s1",
		ToStoreID:      "s2",
		CreatedBy:      "u1",
		Items: []models.DispatchItem{
			{ProductID: "p1", ProductName: "Crate", Quantity: 5},
			{ProductID: "p2", ProductName: "Pallet", Quantity: 2},
		},
	}
	err := repo.Create(context.Background(), dispatch)
	require.NoError(t, err)
	assert.NotEmpty(t, dispatch.ID)
	assert.Equal(t, dispatch.ID, dispatch.Items[0].DispatchID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyAcknowledgementsGuardMiss(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDispatchRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE dispatch_items").
		WithArgs(20, "i1", "d1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.ApplyAcknowledgements(context.Background(), "d1", []ItemQuantity{{ItemID: "i1", Quantity: 20}}, "u1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyAcknowledgementsStampsAcknowledger(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDispatchRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE dispatch_items").
		WithArgs(3, "i1", "d1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE dispatches SET acknowledged_by = COALESCE(acknowledged_by, $2)")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ApplyAcknowledgements(context.Background(), "d1", []ItemQuantity{{ItemID: "i1", Quantity: 3}}, "u1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyReturnsClosesItem(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDispatchRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE dispatch_items").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE dispatches SET updated_at").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ApplyReturns(context.Background(), "d1", []ReturnUpdate{
		{ItemID: "i1", Quantity: 4, CloseItem: true, ReturnDate: time.Now()},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatchDeleteRefusesAfterReceipt(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDispatchRepository(db)

	mock.ExpectBegin()
	countRows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery("SELECT COUNT(.+) FROM dispatch_items").WithArgs("d1").WillReturnRows(countRows)
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "d1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAssignableItemsComputesAvailable(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDispatchRepository(db)

	rows := sqlmock.NewRows([]string{"dispatch_item_id", "dispatch_id", "dispatch_number", "product_id", "product_name", "variant_id", "received_quantity", "returned_quantity"}).
		AddRow("i1", "d1", "DSP-001", "p1", "Crate", nil, 8, 3)
	mock.ExpectQuery("SELECT di.id AS dispatch_item_id").WillReturnRows(rows)

	items, err := repo.ListAssignableItems(context.Background(), "", "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].AvailableQuantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}
