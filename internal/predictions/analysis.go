package predictions

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"

	"budgetcal/internal/core"
)

// Period selects the window of DetectAnomalies.
type Period string

const (
	PeriodWeek    Period = "week"
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
	PeriodYear    Period = "year"
)

type (
	RecurringExpense struct {
		Category       string    `json:"category"`
		Label          string    `json:"label"`
		Amount         float64   `json:"amount"`
		Frequency      string    `json:"frequency"`
		AvgInterval    int       `json:"avgInterval"`
		NextOccurrence core.Date `json:"nextOccurrence"`
		Confidence     float64   `json:"confidence"`
		Occurrences    int       `json:"occurrences"`
	}

	SeasonalPattern struct {
		Category    string  `json:"category"`
		Period      int     `json:"period"`
		Strength    float64 `json:"strength"`
		Description string  `json:"description"`
	}

	Anomaly struct {
		Type             string            `json:"type"`
		Transaction      *core.Transaction `json:"transaction,omitempty"`
		Category         string            `json:"category,omitempty"`
		Severity         float64           `json:"severity"`
		Description      string            `json:"description"`
		ExpectedRange    string            `json:"expectedRange,omitempty"`
		ExpectedInterval string            `json:"expectedInterval,omitempty"`
		ActualInterval   string            `json:"actualInterval,omitempty"`
	}

	Quality struct {
		Score        float64  `json:"score"`
		Level        string   `json:"level"`
		MonthsOfData int      `json:"monthsOfData"`
		Issues       []string `json:"issues"`
	}

	// Report bundles every prediction shown on the predictions page.
	Report struct {
		NextMonth   Prediction         `json:"nextMonth"`
		YearEnd     YearEnd            `json:"yearEnd"`
		Anomalies   []Anomaly          `json:"anomalies"`
		Recurring   []RecurringExpense `json:"recurring"`
		DataQuality Quality            `json:"dataQuality"`
		Period      Period             `json:"period"`
		GeneratedAt time.Time          `json:"generatedAt"`
	}
)

// PeriodRange returns the inclusive day range of period around now. Unknown
// periods fall back to the current month.
func PeriodRange(period Period, now time.Time) (start, end core.Date) {
	today := core.DateOf(now)
	y, m := today.Year(), today.Month()
	switch period {
	case PeriodWeek:
		return today.AddDays(-7), today
	case PeriodQuarter:
		q := (m - 1) / 3
		return core.NewDate(y, q*3+1, 1), core.NewDate(y, q*3+3, core.DaysIn(y, q*3+3))
	case PeriodYear:
		return core.NewDate(y, 1, 1), core.NewDate(y, 12, 31)
	default:
		return core.NewDate(y, m, 1), core.NewDate(y, m, core.DaysIn(y, m))
	}
}

func daysBetween(a, b core.Date) float64 {
	return math.Round(b.Time.Sub(a.Time).Hours() / 24)
}

func sortedByDate(txs []core.Transaction) []core.Transaction {
	out := append([]core.Transaction(nil), txs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func intervals(sorted []core.Transaction) []float64 {
	out := make([]float64, 0, len(sorted))
	for i := 1; i < len(sorted); i++ {
		out = append(out, daysBetween(sorted[i-1].Date, sorted[i].Date))
	}
	return out
}

// signature groups transactions sharing a label, ignoring digits and
// punctuation, within one category.
func signature(t core.Transaction) string {
	label := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsDigit(r):
			return -1
		case unicode.IsLetter(r), unicode.IsSpace(r), r == '_':
			return unicode.ToLower(r)
		default:
			return -1
		}
	}, t.Label)
	return strings.TrimSpace(label) + "-" + t.Category
}

// RecurringExpenses finds expenses repeating at a regular interval, most
// confident first.
func (e *Engine) RecurringExpenses(ctx context.Context) ([]RecurringExpense, error) {
	txs, err := e.transactions(ctx)
	if err != nil {
		return nil, err
	}
	return recurring(txs), nil
}

func recurring(txs []core.Transaction) []RecurringExpense {
	idx := map[string]int{}
	var groups [][]core.Transaction
	for _, t := range txs {
		if t.Type != core.Expense {
			continue
		}
		sig := signature(t)
		i, ok := idx[sig]
		if !ok {
			i = len(groups)
			idx[sig] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], t)
	}

	out := []RecurringExpense{}
	for _, g := range groups {
		if len(g) < 3 {
			continue
		}
		if r, ok := analyzeRecurring(g); ok && r.Confidence > 0.7 {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

func analyzeRecurring(group []core.Transaction) (RecurringExpense, bool) {
	sorted := sortedByDate(group)
	gaps := intervals(sorted)
	avg := mean(gaps)
	if avg <= 0 {
		return RecurringExpense{}, false
	}
	regularity := math.Max(0, 1-stdDev(gaps)/avg)
	frequency := math.Min(1, float64(len(group))/5)

	amounts := make([]float64, len(group))
	for i, t := range group {
		amounts[i] = t.Amount.Euros()
	}

	var freq string
	switch {
	case avg <= 7:
		freq = "weekly"
	case avg <= 32:
		freq = "monthly"
	case avg <= 95:
		freq = "quarterly"
	default:
		freq = "yearly"
	}
	interval := int(math.Round(avg))
	return RecurringExpense{
		Category:       group[0].Category,
		Label:          group[0].Label,
		Amount:         mean(amounts),
		Frequency:      freq,
		AvgInterval:    interval,
		NextOccurrence: sorted[len(sorted)-1].Date.AddDays(interval),
		Confidence:     regularity*0.7 + frequency*0.3,
		Occurrences:    len(group),
	}, true
}

// Seasonality reports categories whose spending peaks in some calendar
// month. A category needs twelve months with spending.
func (e *Engine) Seasonality(ctx context.Context) ([]SeasonalPattern, error) {
	txs, err := e.transactions(ctx)
	if err != nil {
		return nil, err
	}
	history := groupByMonth(txs)
	out := []SeasonalPattern{}
	for _, c := range allCategories(txs) {
		var sums, counts [12]float64
		points := 0
		for _, m := range history {
			if v := m.Categories[c]; v > 0 {
				sums[m.Month.Month-1] += v
				counts[m.Month.Month-1]++
				points++
			}
		}
		if points < 12 {
			continue
		}
		maxIdx, minIdx := 0, 0
		for i := range sums {
			if counts[i] > 0 {
				sums[i] /= counts[i]
			}
			if sums[i] > sums[maxIdx] {
				maxIdx = i
			}
			if sums[i] < sums[minIdx] {
				minIdx = i
			}
		}
		var strength float64
		if sums[maxIdx] > 0 {
			strength = (sums[maxIdx] - sums[minIdx]) / sums[maxIdx]
		}
		if strength > 0.3 {
			out = append(out, SeasonalPattern{
				Category:    c,
				Period:      12,
				Strength:    strength,
				Description: fmt.Sprintf("Pic en %s, minimum en %s", core.MonthNames[maxIdx], core.MonthNames[minIdx]),
			})
		}
	}
	return out, nil
}

// DetectAnomalies flags unusual amounts and category frequencies within
// period, most severe first.
func (e *Engine) DetectAnomalies(ctx context.Context, period Period) ([]Anomaly, error) {
	txs, err := e.transactions(ctx)
	if err != nil {
		return nil, err
	}
	start, end := PeriodRange(period, e.now())
	var scoped []core.Transaction
	for _, t := range txs {
		if !t.Date.Before(start) && !t.Date.After(end) {
			scoped = append(scoped, t)
		}
	}
	return detectAnomalies(scoped), nil
}

func detectAnomalies(txs []core.Transaction) []Anomaly {
	out := []Anomaly{}
	if len(txs) < 10 {
		return out
	}

	amounts := make([]float64, len(txs))
	for i, t := range txs {
		amounts[i] = t.Amount.Euros()
	}
	m, sd := mean(amounts), stdDev(amounts)
	threshold := m + 2*sd
	for i, t := range txs {
		if amounts[i] <= threshold || threshold <= 0 {
			continue
		}
		tx := t
		out = append(out, Anomaly{
			Type:          "amount",
			Transaction:   &tx,
			Severity:      math.Min(1, (amounts[i]-threshold)/threshold),
			Description:   fmt.Sprintf("Montant inhabituel: %.2f€ (moyenne: %.2f€)", amounts[i], m),
			ExpectedRange: fmt.Sprintf("%.2f€ - %.2f€", m-sd, m+sd),
		})
	}

	byCategory := map[string][]core.Transaction{}
	var categories []string
	for _, t := range txs {
		c := t.Category
		if c == "" {
			c = "Non catégorisé"
		}
		if _, ok := byCategory[c]; !ok {
			categories = append(categories, c)
		}
		byCategory[c] = append(byCategory[c], t)
	}
	for _, c := range categories {
		group := byCategory[c]
		if len(group) < 5 {
			continue
		}
		gaps := intervals(sortedByDate(group))
		avg := mean(gaps)
		if avg <= 0 {
			continue
		}
		last := gaps[len(gaps)-1]
		if diff := math.Abs(last - avg); diff > avg*0.5 {
			out = append(out, Anomaly{
				Type:             "frequency",
				Category:         c,
				Severity:         math.Min(1, diff/avg),
				Description:      "Fréquence inhabituelle pour " + c,
				ExpectedInterval: fmt.Sprintf("%.0f jours", avg),
				ActualInterval:   fmt.Sprintf("%.0f jours", last),
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Severity > out[j].Severity })
	return out
}

// DataQuality scores how reliable the predictions can be, out of 100.
func (e *Engine) DataQuality(ctx context.Context) (Quality, error) {
	txs, err := e.transactions(ctx)
	if err != nil {
		return Quality{}, err
	}
	return assessQuality(txs), nil
}

func assessQuality(txs []core.Transaction) Quality {
	history := groupByMonth(txs)
	months := len(history)
	categories := len(allCategories(txs))

	var score float64
	switch {
	case months >= 12:
		score += 40
	case months >= 6:
		score += 30
	case months >= 3:
		score += 20
	default:
		score += 10
	}
	regularity := dataRegularity(txs, history)
	score += regularity * 30
	switch {
	case categories >= 8:
		score += 20
	case categories >= 5:
		score += 15
	default:
		score += 10
	}
	score += amountConsistency(txs) * 10

	issues := []string{}
	if months < 6 {
		issues = append(issues, "Données insuffisantes pour prédictions fiables")
	}
	if regularity < 0.5 {
		issues = append(issues, "Saisie irrégulière des transactions")
	}
	if categories < 5 {
		issues = append(issues, "Catégorisation insuffisante")
	}

	var level string
	switch {
	case score >= 80:
		level = "excellent"
	case score >= 60:
		level = "good"
	case score >= 40:
		level = "fair"
	default:
		level = "poor"
	}
	return Quality{
		Score:        math.Min(100, score),
		Level:        level,
		MonthsOfData: months,
		Issues:       issues,
	}
}

func dataRegularity(txs []core.Transaction, history []MonthData) float64 {
	if len(txs) < 30 {
		return 0.5
	}
	if len(history) < 3 {
		return 0.3
	}
	counts := make([]float64, len(history))
	for i, m := range history {
		counts[i] = float64(m.Count)
	}
	avg := mean(counts)
	return math.Min(1, math.Max(0, 1-stdDev(counts)/avg))
}

func amountConsistency(txs []core.Transaction) float64 {
	if len(txs) < 10 {
		return 0.5
	}
	byCategory := map[string][]float64{}
	for _, t := range txs {
		byCategory[t.Category] = append(byCategory[t.Category], t.Amount.Euros())
	}
	var total float64
	valid := 0
	for _, amounts := range byCategory {
		if len(amounts) < 3 {
			continue
		}
		if avg := mean(amounts); avg > 0 {
			total += math.Max(0, 1-stdDev(amounts)/avg)
		}
		valid++
	}
	if valid == 0 {
		return 0.5
	}
	return total / float64(valid)
}

// FinancialPredictions computes the full report, running the independent
// predictions concurrently.
func (e *Engine) FinancialPredictions(ctx context.Context, period Period) (Report, error) {
	report := Report{Period: period, GeneratedAt: e.now()}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		report.NextMonth, err = e.PredictNextMonth(gctx)
		return err
	})
	g.Go(func() (err error) {
		report.YearEnd, err = e.YearEndBalance(gctx)
		return err
	})
	g.Go(func() (err error) {
		report.Anomalies, err = e.DetectAnomalies(gctx, period)
		return err
	})
	g.Go(func() (err error) {
		report.Recurring, err = e.RecurringExpenses(gctx)
		return err
	})
	g.Go(func() (err error) {
		report.DataQuality, err = e.DataQuality(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	e.logger.Debug("Prediction report generated",
		"period", period,
		"anomalies", len(report.Anomalies),
		"recurring", len(report.Recurring))
	return report, nil
}
