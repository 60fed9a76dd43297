package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backoffice-api/internal/models"
)

func item(quantity, received, returned int, returnable, closed bool) models.DispatchItem {
	return models.DispatchItem{
		Quantity:         quantity,
		ReceivedQuantity: received,
		ReturnedQuantity: returned,
		IsReturnable:     returnable,
		IsReturned:       closed,
	}
}

func TestDeriveDispatchStatus(t *testing.T) {
	cases := []struct {
		name  string
		items []models.DispatchItem
		want  DispatchStatus
	}{
		{"nil items", nil, DispatchStatusEmpty},
		{"empty items", []models.DispatchItem{}, DispatchStatusEmpty},
		{"nothing received", []models.DispatchItem{
			item(10, 0, 0, true, false),
			item(4, 0, 0, true, false),
		}, DispatchStatusPending},
		{"some received", []models.DispatchItem{
			item(10, 3, 0, true, false),
			item(4, 0, 0, true, false),
		}, DispatchStatusPartial},
		{"all received", []models.DispatchItem{
			item(10, 10, 0, true, false),
			item(4, 4, 0, true, false),
		}, DispatchStatusReceived},
		{"all received one closed", []models.DispatchItem{
			item(10, 10, 10, true, true),
			item(4, 4, 0, true, false),
		}, DispatchStatusPartialReturns},
		{"partially received with a closed item", []models.DispatchItem{
			item(10, 5, 0, true, false),
			item(4, 4, 4, true, true),
		}, DispatchStatusPartialWithReturns},
		{"every item closed", []models.DispatchItem{
			item(10, 10, 10, true, true),
			item(4, 4, 4, true, true),
		}, DispatchStatusReturned},
		{"single closed item outranks received", []models.DispatchItem{
			item(4, 4, 4, true, true),
		}, DispatchStatusReturned},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveDispatchStatus(tc.items))
		})
	}
}

func TestDeriveDispatchStatusIsPure(t *testing.T) {
	items := []models.DispatchItem{item(10, 3, 0, true, false)}
	first := DeriveDispatchStatus(items)
	second := DeriveDispatchStatus(items)
	assert.Equal(t, first, second)
	assert.Equal(t, 3, items[0].ReceivedQuantity)
}

func TestCanAcknowledgeReceipt(t *testing.T) {
	assert.False(t, CanAcknowledgeReceipt(nil))
	assert.True(t, CanAcknowledgeReceipt([]models.DispatchItem{item(10, 4, 0, true, false)}))
	assert.False(t, CanAcknowledgeReceipt([]models.DispatchItem{item(10, 10, 0, true, false)}))
	// a fully received dispatch with returns still has nothing left to acknowledge
	assert.False(t, CanAcknowledgeReceipt([]models.DispatchItem{item(10, 10, 5, true, false)}))
}

func TestCanReturnItems(t *testing.T) {
	assert.False(t, CanReturnItems(nil))
	assert.True(t, CanReturnItems([]models.DispatchItem{item(10, 4, 0, true, false)}))
	assert.False(t, CanReturnItems([]models.DispatchItem{item(10, 4, 0, false, false)}), "non-returnable")
	assert.False(t, CanReturnItems([]models.DispatchItem{item(10, 4, 4, true, false)}), "everything back already")
	assert.False(t, CanReturnItems([]models.DispatchItem{item(10, 4, 2, true, true)}), "closed item")
	assert.False(t, CanReturnItems([]models.DispatchItem{item(10, 0, 0, true, false)}), "nothing received yet")
}

func TestCanEditDispatchOnlyWhilePending(t *testing.T) {
	assert.True(t, CanEditDispatch([]models.DispatchItem{item(10, 0, 0, true, false)}))
	assert.False(t, CanEditDispatch(nil), "empty dispatch is not pending")
	assert.False(t, CanEditDispatch([]models.DispatchItem{item(10, 1, 0, true, false)}))
}

func TestDeriveDispatchActionsMutualExclusion(t *testing.T) {
	pending := DeriveDispatchActions([]models.DispatchItem{item(10, 0, 0, true, false)})
	assert.True(t, pending.Edit)
	assert.True(t, pending.Delete)
	assert.True(t, pending.Acknowledge)
	assert.False(t, pending.Return)

	partial := DeriveDispatchActions([]models.DispatchItem{item(10, 4, 0, true, false)})
	assert.False(t, partial.Edit)
	assert.True(t, partial.Acknowledge)
	assert.True(t, partial.Return)

	closed := DeriveDispatchActions([]models.DispatchItem{item(10, 10, 10, true, true)})
	assert.False(t, closed.Edit)
	assert.False(t, closed.Acknowledge)
	assert.False(t, closed.Return)
}

func TestDeriveReceiptProgress(t *testing.T) {
	progress := DeriveReceiptProgress([]models.DispatchItem{
		item(10, 4, 1, true, false),
		item(4, 4, 0, true, false),
	})
	require.Equal(t, 14, progress.TotalQuantity)
	require.Equal(t, 8, progress.ReceivedQuantity)
	require.Equal(t, 1, progress.ReturnedQuantity)
	require.Equal(t, 1, progress.OutstandingItems)
}

// Walks one dispatch through its whole life: created, partially received,
// fully received, partially returned, fully returned.
func TestDispatchLifecycle(t *testing.T) {
	items := []models.DispatchItem{
		item(10, 0, 0, true, false),
		item(4, 0, 0, true, false),
	}
	require.Equal(t, DispatchStatusPending, DeriveDispatchStatus(items))

	items[0].ReceivedQuantity = 6
	require.Equal(t, DispatchStatusPartial, DeriveDispatchStatus(items))
	require.False(t, CanEditDispatch(items))

	items[0].ReceivedQuantity = 10
	items[1].ReceivedQuantity = 4
	require.Equal(t, DispatchStatusReceived, DeriveDispatchStatus(items))
	require.False(t, CanAcknowledgeReceipt(items))
	require.True(t, CanReturnItems(items))

	items[0].ReturnedQuantity = 10
	items[0].IsReturned = true
	require.Equal(t, DispatchStatusPartialReturns, DeriveDispatchStatus(items))

	items[1].ReturnedQuantity = 4
	items[1].IsReturned = true
	require.Equal(t, DispatchStatusReturned, DeriveDispatchStatus(items))
	require.False(t, CanReturnItems(items))
}
