package service

import (
	"sort"

	"inventory-service/internal/models"
)

// PlanDeduction decides how much to take from each batch to cover qty,
// earliest expiry first and lowest batch id on ties. Batches at zero are skipped.
// The input slice is not modified.
func PlanDeduction(batches []models.Batch, qty int) ([]models.BatchMovement, error) {
	if qty <= 0 {
		return nil, invalidInput("quantity must be positive, got %d", qty)
	}

	ordered := make([]models.Batch, 0, len(batches))
	available := 0
	for _, b := range batches {
		if b.Quantity > 0 {
			ordered = append(ordered, b)
			available += b.Quantity
		}
	}

	if available < qty {
		var productID int64
		if len(batches) > 0 {
			productID = batches[0].ProductID
		}
		return nil, &InsufficientStockError{ProductID: productID, Requested: qty, Available: available}
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].ExpiryDate.Equal(ordered[j].ExpiryDate) {
			return ordered[i].ExpiryDate.Before(ordered[j].ExpiryDate)
		}
		return ordered[i].ID < ordered[j].ID
	})

	plan := make([]models.BatchMovement, 0, len(ordered))
	remaining := qty
	for _, b := range ordered {
		if remaining == 0 {
			break
		}
		take := min(b.Quantity, remaining)
		plan = append(plan, models.BatchMovement{BatchID: b.ID, Quantity: take})
		remaining -= take
	}
	return plan, nil
}
