package service

import (
	"testing"
	"time"

	"inventory-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestPlanDeductionScenario(t *testing.T) {
	batches := []models.Batch{
		{ID: 2, ProductID: 1, Quantity: 10, ExpiryDate: date("2025-02-01")},
		{ID: 1, ProductID: 1, Quantity: 5, ExpiryDate: date("2025-01-01")},
	}

	plan, err := PlanDeduction(batches, 7)
	require.NoError(t, err)

	assert.Equal(t, []models.BatchMovement{
		{BatchID: 1, Quantity: 5},
		{BatchID: 2, Quantity: 2},
	}, plan)
	assert.Equal(t, int64(2), batches[0].ID, "input must not be reordered")
}

func TestPlanDeductionFollowsExpiryOrder(t *testing.T) {
	cases := []struct {
		name    string
		batches []models.Batch
		qty     int
		want    []models.BatchMovement
	}{
		{
			name: "single batch covers",
			batches: []models.Batch{
				{ID: 1, Quantity: 10, ExpiryDate: date("2025-03-01")},
				{ID: 2, Quantity: 10, ExpiryDate: date("2025-01-01")},
			},
			qty:  4,
			want: []models.BatchMovement{{BatchID: 2, Quantity: 4}},
		},
		{
			name: "ties broken by batch id",
			batches: []models.Batch{
				{ID: 9, Quantity: 3, ExpiryDate: date("2025-01-01")},
				{ID: 4, Quantity: 3, ExpiryDate: date("2025-01-01")},
			},
			qty:  4,
			want: []models.BatchMovement{{BatchID: 4, Quantity: 3}, {BatchID: 9, Quantity: 1}},
		},
		{
			name: "empty batches skipped",
			batches: []models.Batch{
				{ID: 1, Quantity: 0, ExpiryDate: date("2024-12-01")},
				{ID: 2, Quantity: 2, ExpiryDate: date("2025-01-01")},
				{ID: 3, Quantity: 2, ExpiryDate: date("2025-02-01")},
			},
			qty:  4,
			want: []models.BatchMovement{{BatchID: 2, Quantity: 2}, {BatchID: 3, Quantity: 2}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan, err := PlanDeduction(tc.batches, tc.qty)
			require.NoError(t, err)
			assert.Equal(t, tc.want, plan)

			total := 0
			for _, m := range plan {
				total += m.Quantity
			}
			assert.Equal(t, tc.qty, total)
		})
	}
}

func TestPlanDeductionInsufficientStock(t *testing.T) {
	batches := []models.Batch{
		{ID: 1, ProductID: 7, Quantity: 5, ExpiryDate: date("2025-01-01")},
		{ID: 2, ProductID: 7, Quantity: 10, ExpiryDate: date("2025-02-01")},
	}

	_, err := PlanDeduction(batches, 16)
	require.ErrorIs(t, err, ErrInsufficientStock)

	var shortage *InsufficientStockError
	require.ErrorAs(t, err, &shortage)
	assert.Equal(t, int64(7), shortage.ProductID)
	assert.Equal(t, 16, shortage.Requested)
	assert.Equal(t, 15, shortage.Available)
}

func TestPlanDeductionRejectsNonPositive(t *testing.T) {
	_, err := PlanDeduction(nil, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = PlanDeduction(nil, -3)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
