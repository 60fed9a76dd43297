package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backoffice-api/internal/models"
)

func TestAvailableQuantity(t *testing.T) {
	assert.Equal(t, 0, AvailableQuantity(nil))
	it := item(10, 8, 3, true, false)
	assert.Equal(t, 5, AvailableQuantity(&it))
}

func TestIsSelectable(t *testing.T) {
	assert.False(t, IsSelectable(nil))

	open := item(10, 8, 3, true, false)
	assert.True(t, IsSelectable(&open))

	exhausted := item(10, 8, 8, true, false)
	assert.False(t, IsSelectable(&exhausted))

	closed := item(10, 8, 3, true, true)
	assert.False(t, IsSelectable(&closed))

	unreceived := item(10, 0, 0, true, false)
	assert.False(t, IsSelectable(&unreceived))
}

func TestSelectableItems(t *testing.T) {
	items := []models.DispatchItem{
		item(10, 8, 3, true, false),
		item(4, 4, 4, true, false),
		item(6, 2, 0, false, false),
	}
	selected := SelectableItems(items)
	require.Len(t, selected, 2)
	assert.Equal(t, 10, selected[0].Quantity)
	assert.Equal(t, 6, selected[1].Quantity)
}

func TestValidateAgainstAvailable(t *testing.T) {
	it := item(10, 8, 3, true, false)

	require.NoError(t, ValidateAgainstAvailable(&it, 5))
	require.NoError(t, ValidateAgainstAvailable(&it, 1))

	err := ValidateAgainstAvailable(&it, 6)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot exceed available quantity (5)")

	err = ValidateAgainstAvailable(&it, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quantity must be greater than 0")

	err = ValidateAgainstAvailable(&it, -2)
	require.Error(t, err)
}

func TestValidateAcknowledgeQuantity(t *testing.T) {
	it := item(10, 4, 0, true, false)

	require.NoError(t, ValidateAcknowledgeQuantity(&it, 6))
	require.NoError(t, ValidateAcknowledgeQuantity(&it, 1))

	err := ValidateAcknowledgeQuantity(&it, 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot exceed remaining quantity (6)")

	err = ValidateAcknowledgeQuantity(&it, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quantity must be greater than 0")
}

func TestValidateReturnQuantity(t *testing.T) {
	it := item(10, 8, 3, true, false)

	require.NoError(t, ValidateReturnQuantity(&it, 5))
	require.NoError(t, ValidateReturnQuantity(&it, 0), "zero means skip, not violation")

	err := ValidateReturnQuantity(&it, 6)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot exceed available quantity (5)")

	err = ValidateReturnQuantity(&it, -1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not be negative")

	nonReturnable := item(10, 8, 0, false, false)
	require.Error(t, ValidateReturnQuantity(&nonReturnable, 1))

	closed := item(10, 8, 8, true, true)
	require.Error(t, ValidateReturnQuantity(&closed, 1))

	require.Error(t, ValidateReturnQuantity(nil, 1))
}
