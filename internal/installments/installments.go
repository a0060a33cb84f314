// Package installments computes the installment plans offered for a checkout total.
package installments

import (
	"fmt"
	"math"

	"github.com/siege-masterclass/checkout/internal/fields"
)

// MonthlyRate is the interest applied to plans with interest.
const MonthlyRate = 0.0199

var (
	interestFreeCounts = []int{1, 2, 3, 4, 6}
	interestCounts     = []int{12}
)

// Plan is one way of splitting the total.
type Plan struct {
	Count       int     `json:"parcelas"`
	Amount      float64 `json:"valor"`
	HasInterest bool    `json:"juros"`
}

// Calculate returns the interest-free plans in ascending count followed by the interest-bearing ones.
func Calculate(total float64) []Plan {
	plans := make([]Plan, 0, len(interestFreeCounts)+len(interestCounts))
	for _, n := range interestFreeCounts {
		plans = append(plans, Plan{Count: n, Amount: total / float64(n)})
	}
	for _, n := range interestCounts {
		plans = append(plans, Plan{Count: n, Amount: total * coefficient(MonthlyRate, n), HasInterest: true})
	}
	return plans
}

// coefficient is the amortization factor r(1+r)^n / ((1+r)^n - 1).
func coefficient(rate float64, n int) float64 {
	growth := math.Pow(1+rate, float64(n))
	return rate * growth / (growth - 1)
}

// Find returns the plan with the given count.
func Find(plans []Plan, count int) (Plan, bool) {
	for _, plan := range plans {
		if plan.Count == count {
			return plan, true
		}
	}
	return Plan{}, false
}

// Label renders a plan for display, e.g. "12x de R$ 37,52 (com juros)".
func Label(plan Plan) string {
	suffix := "sem juros"
	if plan.HasInterest {
		suffix = "com juros"
	}
	return fmt.Sprintf("%dx de %s (%s)", plan.Count, fields.FormatCurrency(plan.Amount), suffix)
}

// Total returns what the buyer pays over the whole plan.
func Total(plan Plan) float64 {
	return plan.Amount * float64(plan.Count)
}
