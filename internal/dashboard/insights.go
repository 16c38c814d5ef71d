package dashboard

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"budgetcal/internal/core"
	"budgetcal/internal/predictions"
)

const (
	maxInsights    = 5
	trendMonths    = 6
	savingsShare   = 0.1
	widgetAlerts   = 3
	criticalAlerts = 2
	recentCount    = 5
	topPredictions = 3
)

type Insight struct {
	Type           string  `json:"type"`
	Importance     float64 `json:"importance"`
	Icon           string  `json:"icon"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Recommendation string  `json:"recommendation"`
	Value          string  `json:"value"`
}

type Alert struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Icon        string `json:"icon"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Action      string `json:"action"`
}

var alertIcons = map[string]string{
	"budget_exceeded":    "💸",
	"prediction_warning": "🔮",
	"category_spike":     "📊",
	"anomaly":            "⚠️",
}

func alertIcon(kind string) string {
	if icon, ok := alertIcons[kind]; ok {
		return icon
	}
	return "🔔"
}

// Trend compares the average of the second half of values with the first
// half, in percent. It is 0 with fewer than two values or a zero baseline.
func Trend(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	half := len(values) / 2
	first, second := mean(values[:half]), mean(values[half:])
	if first == 0 {
		return 0
	}
	return (second - first) / first * 100
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func monthlyExpenses(txs []core.Transaction, now time.Time) []float64 {
	months := core.LastNMonths(trendMonths, now)
	out := make([]float64, len(months))
	for i, m := range months {
		out[i] = core.Summarize(core.InMonth(txs, m.Year, m.Month)).Expenses.Euros()
	}
	return out
}

// categoryTrend returns the six-month expense total of category and its trend.
func categoryTrend(txs []core.Transaction, category string, now time.Time) (total, trend float64) {
	months := core.LastNMonths(trendMonths, now)
	totals := make([]float64, len(months))
	for i, m := range months {
		for _, t := range core.InMonth(txs, m.Year, m.Month) {
			if t.Category == category && t.Type == core.Expense {
				totals[i] += t.Amount.Euros()
			}
		}
		total += totals[i]
	}
	return total, Trend(totals)
}

func uniqueCategories(txs []core.Transaction) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range txs {
		if !seen[t.Category] {
			seen[t.Category] = true
			out = append(out, t.Category)
		}
	}
	sort.Strings(out)
	return out
}

func signed(v float64) string {
	if v > 0 {
		return fmt.Sprintf("+%.1f%%", v)
	}
	return fmt.Sprintf("%.1f%%", v)
}

func trendInsight(txs []core.Transaction, now time.Time) (Insight, bool) {
	expenses := monthlyExpenses(txs, now)
	valid := 0
	for _, e := range expenses {
		if e > 0 {
			valid++
		}
	}
	if valid < 3 {
		return Insight{}, false
	}
	trend := Trend(expenses)
	if math.Abs(trend) <= 5 {
		return Insight{}, false
	}
	in := Insight{
		Type:        "trend",
		Importance:  0.8,
		Icon:        "📉",
		Title:       "Dépenses en baisse",
		Description: fmt.Sprintf("Vos dépenses diminuent de %.1f%% par mois en moyenne", math.Abs(trend)),
		Value:       signed(trend),
	}
	in.Recommendation = "Excellent ! Maintenez cette tendance positive"
	if trend > 0 {
		in.Icon = "📈"
		in.Title = "Dépenses en hausse"
		in.Description = fmt.Sprintf("Vos dépenses augmentent de %.1f%% par mois en moyenne", trend)
		in.Recommendation = "Surveillez vos catégories de dépenses les plus importantes"
	}
	return in, true
}

func anomalyInsight(anomalies []predictions.Anomaly) (Insight, bool) {
	severe := 0
	for _, a := range anomalies {
		if a.Severity > 0.7 {
			severe++
		}
	}
	if severe == 0 {
		return Insight{}, false
	}
	return Insight{
		Type:           "anomaly",
		Importance:     0.9,
		Icon:           "⚠️",
		Title:          "Transactions inhabituelles détectées",
		Description:    fmt.Sprintf("%d transaction(s) sortent de vos habitudes", severe),
		Recommendation: "Vérifiez ces transactions pour détecter d'éventuelles erreurs",
		Value:          fmt.Sprintf("%d alerte(s)", severe),
	}, true
}

func savingsInsight(txs []core.Transaction, now time.Time) (Insight, bool) {
	var (
		best      string
		potential float64
	)
	for _, c := range uniqueCategories(txs) {
		total, trend := categoryTrend(txs, c, now)
		if trend > 10 && total > 100 && total*savingsShare > potential {
			best, potential = c, total*savingsShare
		}
	}
	if best == "" {
		return Insight{}, false
	}
	return Insight{
		Type:           "savings",
		Importance:     0.7,
		Icon:           "💰",
		Title:          "Opportunité d'économie identifiée",
		Description:    fmt.Sprintf("En optimisant \"%s\", vous pourriez économiser jusqu'à %s", best, core.FormatCurrency(potential)),
		Recommendation: "Analysez vos dépenses dans cette catégorie et recherchez des alternatives moins coûteuses",
		Value:          core.FormatCurrency(potential),
	}, true
}

func patternInsight(recurring []predictions.RecurringExpense) (Insight, bool) {
	n := 0
	for _, r := range recurring {
		if r.Confidence > 0.8 {
			n++
		}
	}
	if n == 0 {
		return Insight{}, false
	}
	return Insight{
		Type:           "pattern",
		Importance:     0.6,
		Icon:           "🔄",
		Title:          "Dépenses récurrentes identifiées",
		Description:    fmt.Sprintf("%d pattern(s) de dépenses récurrentes détecté(s)", n),
		Recommendation: "Considérez la mise en place de budgets automatiques pour ces dépenses",
		Value:          fmt.Sprintf("%d pattern(s)", n),
	}, true
}

// insights never fails: a failing analysis is logged and skipped.
func (d *Dashboard) insights(ctx context.Context, txs []core.Transaction, now time.Time) []Insight {
	out := []Insight{}
	if d.predictions == nil || len(txs) == 0 {
		return out
	}
	if in, ok := trendInsight(txs, now); ok {
		out = append(out, in)
	}
	if anomalies, err := d.predictions.DetectAnomalies(ctx, predictions.PeriodMonth); err != nil {
		d.logger.WarnContext(ctx, "Anomaly analysis failed", "error", err)
	} else if in, ok := anomalyInsight(anomalies); ok {
		out = append(out, in)
	}
	if in, ok := savingsInsight(txs, now); ok {
		out = append(out, in)
	}
	if recurring, err := d.predictions.RecurringExpenses(ctx); err != nil {
		d.logger.WarnContext(ctx, "Recurring analysis failed", "error", err)
	} else if in, ok := patternInsight(recurring); ok {
		out = append(out, in)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Importance > out[b].Importance })
	if len(out) > maxInsights {
		out = out[:maxInsights]
	}
	return out
}

func (d *Dashboard) alerts(ctx context.Context, txs []core.Transaction, now time.Time) []Alert {
	out := []Alert{}
	stats := core.Summarize(core.InMonth(txs, now.Year(), int(now.Month())))
	expenses, income := stats.Expenses.Euros(), stats.Income.Euros()
	if expenses > income*1.1 {
		out = append(out, Alert{
			Type:        "budget_exceeded",
			Severity:    "high",
			Title:       "Dépassement budgétaire",
			Description: fmt.Sprintf("Vos dépenses (%s) dépassent vos revenus", core.FormatCurrency(expenses)),
			Action:      "Réduire les dépenses non-essentielles",
		})
	}
	if d.predictions != nil {
		p, err := d.predictions.PredictNextMonth(ctx)
		switch {
		case err != nil:
			d.logger.WarnContext(ctx, "Prediction for alerts failed", "error", err)
		case p.TotalAmount > expenses*1.2:
			out = append(out, Alert{
				Type:        "prediction_warning",
				Severity:    "medium",
				Title:       "Dépenses élevées prévues",
				Description: "Le mois prochain pourrait coûter " + core.FormatCurrency(p.TotalAmount),
				Action:      "Planifier le budget du mois prochain",
			})
		}
	}
	for _, c := range uniqueCategories(txs) {
		if _, trend := categoryTrend(txs, c, now); trend > 50 {
			out = append(out, Alert{
				Type:        "category_spike",
				Severity:    "medium",
				Title:       "Explosion: " + c,
				Description: fmt.Sprintf("Cette catégorie a augmenté de %.1f%%", trend),
				Action:      "Analyser les dépenses de cette catégorie",
			})
		}
	}
	for i := range out {
		out[i].Icon = alertIcon(out[i].Type)
	}
	return out
}

// CriticalAlerts keeps the first high severity alerts shown as a banner.
func CriticalAlerts(alerts []Alert) []Alert {
	out := []Alert{}
	for _, a := range alerts {
		if a.Severity == "high" && len(out) < criticalAlerts {
			out = append(out, a)
		}
	}
	return out
}

// monthComparison describes the balance change against the previous month.
func monthComparison(txs []core.Transaction, now time.Time) string {
	cur := core.CurrentMonth(now)
	prev := cur.Offset(-1)
	current := core.Summarize(core.InMonth(txs, cur.Year, cur.Month)).Balance.Euros()
	last := core.Summarize(core.InMonth(txs, prev.Year, prev.Month)).Balance.Euros()
	if last == 0 {
		return "N/A"
	}
	return signed((current - last) / math.Abs(last) * 100)
}

// estimateGoalDate projects when goal is reached from the average positive
// balance of the last six months.
func estimateGoalDate(txs []core.Transaction, current, goal float64, now time.Time) string {
	if current >= goal {
		return "Objectif atteint !"
	}
	months := core.LastNMonths(trendMonths, now)
	var saved float64
	for _, m := range months {
		saved += math.Max(0, core.Summarize(core.InMonth(txs, m.Year, m.Month)).Balance.Euros())
	}
	avg := saved / float64(len(months))
	if avg <= 0 {
		return "Impossible à estimer"
	}
	needed := int(math.Ceil((goal - current) / avg))
	target := core.CurrentMonth(now).Offset(needed)
	return fmt.Sprintf("%s %d", strings.ToLower(target.Name), target.Year)
}

func trendIcon(direction string) string {
	switch direction {
	case "increasing":
		return "📈"
	case "decreasing":
		return "📉"
	default:
		return "➡️"
	}
}

func trendText(direction string) string {
	switch direction {
	case "increasing":
		return "Hausse"
	case "decreasing":
		return "Baisse"
	case "stable":
		return "Stable"
	default:
		return "Indéterminé"
	}
}
