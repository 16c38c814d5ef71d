package predictions

import (
	"math"
	"sort"
	"time"

	"budgetcal/internal/core"
)

// MonthData aggregates one month of history. Amounts are euros.
type MonthData struct {
	Month      core.MonthRef      `json:"month"`
	Expenses   float64            `json:"expenses"`
	Income     float64            `json:"income"`
	Count      int                `json:"count"`
	Categories map[string]float64 `json:"categories"`
}

// Estimate is a predicted amount with its confidence in [0, 1].
type Estimate struct {
	Amount     float64 `json:"amount"`
	Confidence float64 `json:"confidence"`
}

// groupByMonth buckets txs per calendar month, oldest first. Months without
// transactions are absent.
func groupByMonth(txs []core.Transaction) []MonthData {
	idx := map[string]int{}
	var out []MonthData
	for _, t := range txs {
		key := t.Date.MonthKey()
		i, ok := idx[key]
		if !ok {
			i = len(out)
			idx[key] = i
			out = append(out, MonthData{
				Month:      core.NewMonthRef(t.Date.Year(), t.Date.Month()),
				Categories: map[string]float64{},
			})
		}
		m := &out[i]
		m.Count++
		if t.Type == core.Expense {
			m.Expenses += t.Amount.Euros()
			m.Categories[t.Category] += t.Amount.Euros()
		} else {
			m.Income += t.Amount.Euros()
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Month.Key < out[b].Month.Key })
	return out
}

func expenseValues(data []MonthData) []float64 {
	out := make([]float64, len(data))
	for i, m := range data {
		out[i] = m.Expenses
	}
	return out
}

// categorySeries returns the non-zero monthly amounts of category.
func categorySeries(data []MonthData, category string) []float64 {
	var out []float64
	for _, m := range data {
		if v := m.Categories[category]; v > 0 {
			out = append(out, v)
		}
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdDev is the population standard deviation.
func stdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(values)))
}

// linearRegression fits y = intercept + slope*x with x = 0..n-1.
func linearRegression(values []float64) (slope, intercept float64) {
	n := float64(len(values))
	if n == 0 {
		return 0, 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom != 0 {
		slope = (n*sumXY - sumX*sumY) / denom
	}
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

func rSquared(values []float64, slope, intercept float64) float64 {
	m := mean(values)
	var total, residual float64
	for i, v := range values {
		p := intercept + slope*float64(i)
		total += (v - m) * (v - m)
		residual += (v - p) * (v - p)
	}
	if total == 0 {
		return 0
	}
	return 1 - residual/total
}

// Model predicts next month's expenses from history. next is the month
// being predicted.
type Model interface {
	Name() string
	Predict(data []MonthData, next time.Month) Estimate
}

type LinearModel struct{}

func (LinearModel) Name() string { return "linear" }

func (LinearModel) Predict(data []MonthData, _ time.Month) Estimate {
	if len(data) < 2 {
		return Estimate{}
	}
	values := expenseValues(data)
	slope, intercept := linearRegression(values)
	next := intercept + slope*float64(len(values))
	return Estimate{
		Amount:     math.Max(0, next),
		Confidence: math.Max(0, math.Min(0.9, rSquared(values, slope, intercept))),
	}
}

// SeasonalModel adds the per calendar month deviation to the linear trend.
type SeasonalModel struct{}

func (SeasonalModel) Name() string { return "seasonal" }

func (SeasonalModel) Predict(data []MonthData, next time.Month) Estimate {
	if len(data) < 6 {
		return Estimate{}
	}
	var sums, counts [12]float64
	for _, m := range data {
		sums[m.Month.Month-1] += m.Expenses
		counts[m.Month.Month-1]++
	}
	var global float64
	for i := range sums {
		if counts[i] > 0 {
			sums[i] /= counts[i]
		}
		global += sums[i]
	}
	global /= 12

	values := expenseValues(data)
	slope, intercept := linearRegression(values)
	trend := intercept + slope*float64(len(values))
	prediction := trend + sums[next-1] - global
	return Estimate{
		Amount:     math.Max(0, prediction),
		Confidence: math.Min(0.8, float64(len(data))/12),
	}
}

// ExponentialModel is simple exponential smoothing.
type ExponentialModel struct {
	Alpha float64
}

func (ExponentialModel) Name() string { return "exponential" }

func (m ExponentialModel) Predict(data []MonthData, _ time.Month) Estimate {
	if len(data) < 3 {
		return Estimate{}
	}
	alpha := m.Alpha
	if alpha == 0 {
		alpha = 0.3
	}
	values := expenseValues(data)
	smoothed := values[0]
	for _, v := range values[1:] {
		smoothed = alpha*v + (1-alpha)*smoothed
	}
	return Estimate{
		Amount:     smoothed,
		Confidence: math.Min(0.85, float64(len(data))/8),
	}
}
