package workflow

import (
	"fmt"

	"github.com/noah-isme/backoffice-api/internal/models"
	appErrors "github.com/noah-isme/backoffice-api/pkg/errors"
)

// AvailableQuantity returns the quantity of a dispatch item that is still on
// hand at the receiving store: received minus already returned.
func AvailableQuantity(item *models.DispatchItem) int {
	if item == nil {
		return 0
	}
	return item.ReceivedQuantity - item.ReturnedQuantity
}

// IsSelectable reports whether an item may be offered in return or breakage
// pickers. Closed items and items with nothing on hand are excluded entirely.
func IsSelectable(item *models.DispatchItem) bool {
	if item == nil || item.IsReturned {
		return false
	}
	return AvailableQuantity(item) > 0
}

// SelectableItems filters a dispatch item list down to picker candidates.
func SelectableItems(items []models.DispatchItem) []models.DispatchItem {
	selectable := make([]models.DispatchItem, 0, len(items))
	for i := range items {
		if IsSelectable(&items[i]) {
			selectable = append(selectable, items[i])
		}
	}
	return selectable
}

// ValidateAgainstAvailable rejects quantities that exceed the item's
// available ceiling. Violations are surfaced as validation errors, never
// silently clamped.
func ValidateAgainstAvailable(item *models.DispatchItem, quantity int) error {
	if quantity <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "quantity must be greater than 0")
	}
	available := AvailableQuantity(item)
	if quantity > available {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("cannot exceed available quantity (%d)", available))
	}
	return nil
}

// ValidateAcknowledgeQuantity checks an acknowledge-receipt quantity against
// the item's remaining receipt deficit.
func ValidateAcknowledgeQuantity(item *models.DispatchItem, quantity int) error {
	if quantity <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "quantity must be greater than 0")
	}
	deficit := item.Quantity - item.ReceivedQuantity
	if quantity > deficit {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("cannot exceed remaining quantity (%d)", deficit))
	}
	return nil
}

// ValidateReturnQuantity checks a return quantity against the outstanding
// receivable balance of a returnable, still-open item.
func ValidateReturnQuantity(item *models.DispatchItem, quantity int) error {
	if item == nil || !item.IsReturnable || item.IsReturned {
		return appErrors.Clone(appErrors.ErrValidation, "item is not eligible for return")
	}
	if quantity < 0 {
		return appErrors.Clone(appErrors.ErrValidation, "return quantity must not be negative")
	}
	outstanding := item.ReceivedQuantity - item.ReturnedQuantity
	if quantity > outstanding {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("cannot exceed available quantity (%d)", outstanding))
	}
	return nil
}
