package services

import (
	"github.com/yashrajoria/storefront/models"
)

// applyStockOperation is the single authority for stock arithmetic: every
// writer of Product.StockQuantity computes the new level here, so the
// floor-at-zero check cannot be bypassed by direct field assignment. ok is
// false when subtract would cross zero or set is handed a negative; add is
// unconditional (it restores inventory on cancel and refund).
func applyStockOperation(current, quantity int, op models.StockOperation) (next int, ok bool) {
	switch op {
	case models.StockAdd:
		return current + quantity, true
	case models.StockSubtract:
		if current-quantity < 0 {
			return current, false
		}
		return current - quantity, true
	case models.StockSet:
		if quantity < 0 {
			return current, false
		}
		return quantity, true
	}
	return current, false
}
