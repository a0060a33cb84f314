package installments

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate(t *testing.T) {
	plans := Calculate(397)
	require.Len(t, plans, 6)

	counts := make([]int, 0, len(plans))
	for _, plan := range plans {
		counts = append(counts, plan.Count)
		assert.Equal(t, plan.Count == 12, plan.HasInterest, "count %d", plan.Count)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 6, 12}, counts)

	assert.Equal(t, 397.0, plans[0].Amount)
	assert.InDelta(t, 397.0/6, plans[4].Amount, 1e-9)
	assert.Greater(t, plans[5].Amount, 397.0/12)
	assert.InDelta(t, 37.52, plans[5].Amount, 0.01)
}

func TestCalculateRecomputesForTotal(t *testing.T) {
	withUpsell := Calculate(397 + 27)
	assert.Equal(t, 424.0, withUpsell[0].Amount)
	assert.Greater(t, withUpsell[5].Amount, Calculate(397)[5].Amount)
}

func TestFind(t *testing.T) {
	plans := Calculate(100)
	plan, ok := Find(plans, 4)
	require.True(t, ok)
	assert.Equal(t, 25.0, plan.Amount)

	_, ok = Find(plans, 5)
	assert.False(t, ok)
}

func TestLabel(t *testing.T) {
	plans := Calculate(397)
	assert.Equal(t, "1x de R$ 397,00 (sem juros)", Label(plans[0]))
	assert.Equal(t, "12x de R$ 37,52 (com juros)", Label(plans[5]))
	assert.Greater(t, Total(plans[5]), 397.0)
}
