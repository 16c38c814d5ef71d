// Package predictions forecasts spending from the transaction history and
// flags trends, risks, recurring expenses and anomalies.
package predictions

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"budgetcal/internal/core"
)

// TransactionSource supplies the full transaction history.
type TransactionSource interface {
	All(ctx context.Context) ([]core.Transaction, error)
}

type (
	Trend struct {
		Direction  string  `json:"direction"`
		Slope      float64 `json:"slope"`
		Confidence float64 `json:"confidence"`
	}

	Trends struct {
		Overall    Trend            `json:"overall"`
		Categories map[string]Trend `json:"categories"`
	}

	Risk struct {
		Type        string  `json:"type"`
		Severity    string  `json:"severity"`
		Description string  `json:"description"`
		Category    string  `json:"category,omitempty"`
		Impact      float64 `json:"impact"`
	}

	Recommendation struct {
		Type        string   `json:"type"`
		Priority    string   `json:"priority"`
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Actions     []string `json:"actions"`
	}

	Optimization struct {
		Type        string   `json:"type"`
		Category    string   `json:"category,omitempty"`
		Potential   float64  `json:"potential"`
		Description string   `json:"description"`
		Suggestions []string `json:"suggestions"`
	}

	// Prediction is the forecast of next month's expenses.
	Prediction struct {
		TotalAmount     float64             `json:"totalAmount"`
		Confidence      float64             `json:"confidence"`
		Breakdown       map[string]Estimate `json:"breakdown"`
		Trends          Trends              `json:"trends"`
		Recommendations []Recommendation    `json:"recommendations"`
		RiskFactors     []Risk              `json:"riskFactors"`
		Optimizations   []Optimization      `json:"optimizationSuggestions"`
	}

	MonthForecast struct {
		Expenses   float64 `json:"expenses"`
		Income     float64 `json:"income"`
		Confidence float64 `json:"confidence"`
	}

	YearEnd struct {
		CurrentBalance          float64         `json:"currentBalance"`
		PredictedYearEndBalance float64         `json:"predictedYearEndBalance"`
		MonthlyBreakdown        []MonthForecast `json:"monthlyBreakdown"`
		ConfidenceLevel         float64         `json:"confidenceLevel"`
	}
)

// Severity and priority ranks used for sorting.
var rank = map[string]int{"low": 1, "medium": 2, "high": 3}

// seasonalFactors scale the average month, January first.
var seasonalFactors = [12]float64{1.1, 0.9, 1.0, 1.0, 1.0, 1.1, 1.2, 1.2, 1.0, 1.0, 1.1, 1.3}

// baseWeights apply to the linear, seasonal and exponential models.
var baseWeights = []float64{0.3, 0.4, 0.3}

var optimizationTips = map[string][]string{
	"Alimentation": {"Cuisiner plus à la maison", "Acheter en gros", "Comparer les prix"},
	"Transport":    {"Utiliser les transports en commun", "Covoiturage", "Vélo pour les courtes distances"},
	"Loisirs":      {"Activités gratuites", "Abonnements groupés", "Offres promotionnelles"},
	"Vêtements":    {"Achats en soldes", "Seconde main", "Limiter les achats impulsifs"},
}

type Engine struct {
	source TransactionSource
	models []Model
	logger *slog.Logger
	now    func() time.Time
}

func NewEngine(source TransactionSource, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		source: source,
		models: []Model{LinearModel{}, SeasonalModel{}, ExponentialModel{Alpha: 0.3}},
		logger: logger,
		now:    time.Now,
	}
}

func (e *Engine) transactions(ctx context.Context) ([]core.Transaction, error) {
	txs, err := e.source.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	return txs, nil
}

// History returns the monthly aggregates, oldest first.
func (e *Engine) History(ctx context.Context) ([]MonthData, error) {
	txs, err := e.transactions(ctx)
	if err != nil {
		return nil, err
	}
	return groupByMonth(txs), nil
}

func allCategories(txs []core.Transaction) []string {
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

// PredictNextMonth forecasts next month's expenses. With less than three
// months of history it falls back to the current month plus 5%.
func (e *Engine) PredictNextMonth(ctx context.Context) (Prediction, error) {
	txs, err := e.transactions(ctx)
	if err != nil {
		return Prediction{}, err
	}
	history := groupByMonth(txs)
	if len(history) < 3 {
		return e.basicPrediction(txs), nil
	}

	combined := e.combine(history)
	categories := allCategories(txs)
	return Prediction{
		TotalAmount:     combined.Amount,
		Confidence:      combined.Confidence,
		Breakdown:       categoryBreakdown(history, categories),
		Trends:          analyzeTrends(history, categories),
		Recommendations: recommendations(history, categories, combined),
		RiskFactors:     riskFactors(history, categories),
		Optimizations:   optimizations(history, categories),
	}, nil
}

func (e *Engine) basicPrediction(txs []core.Transaction) Prediction {
	now := e.now()
	current := core.Summarize(core.InMonth(txs, now.Year(), int(now.Month())))
	return Prediction{
		TotalAmount: current.Expenses.Euros() * 1.05,
		Confidence:  0.3,
		Breakdown:   map[string]Estimate{},
		Trends:      Trends{Overall: Trend{Direction: "stable"}, Categories: map[string]Trend{}},
		Recommendations: []Recommendation{{
			Type:        "insufficient_data",
			Priority:    "medium",
			Title:       "Données insuffisantes",
			Description: "Plus de données sont nécessaires pour des prédictions précises",
			Actions:     []string{"Continuer à enregistrer les transactions"},
		}},
		RiskFactors:   []Risk{},
		Optimizations: []Optimization{},
	}
}

func (e *Engine) nextMonth() time.Month {
	return e.now().Month()%12 + 1
}

// combine weights each model by its held-out accuracy.
func (e *Engine) combine(history []MonthData) Estimate {
	next := e.nextMonth()
	acc := e.accuracies(history)

	weights := make([]float64, len(e.models))
	var total float64
	for i := range e.models {
		weights[i] = acc[i] * baseWeights[i]
		total += weights[i]
	}
	if total <= 0 {
		for i := range weights {
			weights[i] = 1
		}
		total = float64(len(weights))
	}

	var amount, confidence float64
	for i, m := range e.models {
		est := m.Predict(history, next)
		amount += est.Amount * weights[i]
		confidence += est.Confidence * weights[i]
	}
	return Estimate{
		Amount:     amount / total,
		Confidence: math.Min(confidence/total, 0.95),
	}
}

// accuracies scores every model on the last three months, each predicted
// from the months before it. Scores are clamped to [0, 1].
func (e *Engine) accuracies(history []MonthData) []float64 {
	if len(history) < 4 {
		return []float64{0.33, 0.33, 0.34}
	}
	out := make([]float64, len(e.models))
	start := len(history) - 3
	for i, m := range e.models {
		var totalErr float64
		for p := start; p < len(history); p++ {
			actual := history[p].Expenses
			est := m.Predict(history[:p], time.Month(history[p].Month.Month))
			switch {
			case actual > 0:
				totalErr += math.Abs(actual-est.Amount) / actual
			case est.Amount > 0:
				totalErr++
			}
		}
		out[i] = math.Max(0, math.Min(1, 1-totalErr/3))
	}
	return out
}

func categoryBreakdown(history []MonthData, categories []string) map[string]Estimate {
	out := make(map[string]Estimate, len(categories))
	for _, c := range categories {
		series := categorySeries(history, c)
		if len(series) < 2 {
			out[c] = Estimate{}
			continue
		}
		var sum, totalWeight float64
		for i, v := range series {
			w := math.Pow(1.1, float64(i))
			sum += v * w
			totalWeight += w
		}
		out[c] = Estimate{
			Amount:     sum / totalWeight,
			Confidence: math.Min(0.9, float64(len(series))/6),
		}
	}
	return out
}

func overallTrend(history []MonthData) Trend {
	if len(history) < 2 {
		return Trend{Direction: "stable"}
	}
	slope, _ := linearRegression(expenseValues(history))
	return Trend{
		Direction:  direction(slope, 5),
		Slope:      slope,
		Confidence: math.Min(0.9, float64(len(history))/12),
	}
}

func categoryTrend(series []float64) Trend {
	slope, _ := linearRegression(series)
	return Trend{
		Direction:  direction(slope, 2),
		Slope:      slope,
		Confidence: math.Min(0.9, float64(len(series))/6),
	}
}

func direction(slope, threshold float64) string {
	switch {
	case slope > threshold:
		return "increasing"
	case slope < -threshold:
		return "decreasing"
	default:
		return "stable"
	}
}

func analyzeTrends(history []MonthData, categories []string) Trends {
	t := Trends{Overall: overallTrend(history), Categories: map[string]Trend{}}
	for _, c := range categories {
		if series := categorySeries(history, c); len(series) >= 3 {
			t.Categories[c] = categoryTrend(series)
		}
	}
	return t
}

// volatility is the coefficient of variation of monthly expenses.
func volatility(history []MonthData) float64 {
	if len(history) < 2 {
		return 0
	}
	values := expenseValues(history)
	m := mean(values)
	if m == 0 {
		return 0
	}
	return stdDev(values) / m
}

func riskFactors(history []MonthData, categories []string) []Risk {
	risks := []Risk{}
	if v := volatility(history); v > 0.3 {
		risks = append(risks, Risk{
			Type:        "high_volatility",
			Severity:    "medium",
			Description: "Forte variabilité dans vos dépenses",
			Impact:      v,
		})
	}
	if trend := overallTrend(history); trend.Slope > 10 {
		risks = append(risks, Risk{
			Type:        "increasing_expenses",
			Severity:    "high",
			Description: "Augmentation continue des dépenses",
			Impact:      trend.Slope,
		})
	}
	for _, c := range categories {
		series := categorySeries(history, c)
		if len(series) < 3 {
			continue
		}
		if trend := categoryTrend(series); trend.Slope > 15 {
			risks = append(risks, Risk{
				Type:        "category_explosion",
				Severity:    "high",
				Description: "Explosion des dépenses: " + c,
				Category:    c,
				Impact:      trend.Slope,
			})
		}
	}
	sort.SliceStable(risks, func(i, j int) bool { return rank[risks[i].Severity] > rank[risks[j].Severity] })
	return risks
}

func recommendations(history []MonthData, categories []string, prediction Estimate) []Recommendation {
	recs := []Recommendation{}
	last := history[len(history)-1]
	if prediction.Amount > last.Expenses*1.1 {
		recs = append(recs, Recommendation{
			Type:        "budget_warning",
			Priority:    "high",
			Title:       "Dépassement budgétaire prévu",
			Description: fmt.Sprintf("Les dépenses prévues (%.2f€) dépassent la moyenne actuelle de 10%%", prediction.Amount),
			Actions: []string{
				"Revoir les dépenses non-essentielles",
				"Reporter certains achats",
				"Surveiller les catégories en hausse",
			},
		})
	}
	trends := analyzeTrends(history, categories)
	for _, c := range categories {
		trend, ok := trends.Categories[c]
		if !ok || trend.Slope <= 10 {
			continue
		}
		recs = append(recs, Recommendation{
			Type:        "category_optimization",
			Priority:    "medium",
			Title:       "Optimisation de la catégorie " + c,
			Description: fmt.Sprintf("Cette catégorie montre une tendance à la hausse (%.1f%% par mois)", trend.Slope),
			Actions: []string{
				"Analyser les dépenses en " + c,
				"Rechercher des alternatives moins coûteuses",
				"Définir un budget spécifique",
			},
		})
	}
	if last.Income > last.Expenses*1.2 {
		recs = append(recs, Recommendation{
			Type:        "savings_opportunity",
			Priority:    "low",
			Title:       "Opportunité d'épargne",
			Description: "Votre solde positif permet d'augmenter votre épargne",
			Actions: []string{
				"Mettre en place un virement automatique",
				"Considérer des investissements",
				"Constituer un fonds d'urgence",
			},
		})
	}
	sort.SliceStable(recs, func(i, j int) bool { return rank[recs[i].Priority] > rank[recs[j].Priority] })
	return recs
}

func optimizations(history []MonthData, categories []string) []Optimization {
	type total struct {
		category string
		amount   float64
	}
	var totals []total
	for _, c := range categories {
		var sum float64
		for _, v := range categorySeries(history, c) {
			sum += v
		}
		if sum > 0 {
			totals = append(totals, total{c, sum})
		}
	}
	sort.SliceStable(totals, func(i, j int) bool { return totals[i].amount > totals[j].amount })
	if len(totals) > 3 {
		totals = totals[:3]
	}

	out := make([]Optimization, 0, len(totals)+2)
	for _, t := range totals {
		tips, ok := optimizationTips[t.category]
		if !ok {
			tips = []string{"Analyser les dépenses", "Rechercher des alternatives", "Comparer les prix"}
		}
		out = append(out, Optimization{
			Type:        "reduce_category",
			Category:    t.category,
			Potential:   t.amount * 0.1,
			Description: "Réduire les dépenses en " + t.category,
			Suggestions: tips,
		})
	}
	return append(out,
		Optimization{
			Type:        "substitution",
			Potential:   50,
			Description: "Remplacer les marques premium par des alternatives",
			Suggestions: []string{"Marques distributeur", "Produits en promotion", "Achats groupés"},
		},
		Optimization{
			Type:        "negotiation",
			Potential:   30,
			Description: "Renégocier les contrats récurrents",
			Suggestions: []string{"Assurances", "Abonnements téléphoniques", "Fournisseurs d'énergie"},
		},
	)
}

// SeasonalFactor returns the typical spending factor monthsAhead months from
// now.
func (e *Engine) SeasonalFactor(monthsAhead int) float64 {
	idx := (int(e.now().Month()) - 1 + monthsAhead) % 12
	if idx < 0 {
		idx += 12
	}
	return seasonalFactors[idx]
}

// PredictMonthExpenses scales the average month by the seasonal factor.
func (e *Engine) PredictMonthExpenses(ctx context.Context, monthsAhead int) (MonthForecast, error) {
	history, err := e.History(ctx)
	if err != nil {
		return MonthForecast{}, err
	}
	return e.forecast(history, monthsAhead), nil
}

func (e *Engine) forecast(history []MonthData, monthsAhead int) MonthForecast {
	if len(history) < 2 {
		return MonthForecast{}
	}
	var expenses, income float64
	for _, m := range history {
		expenses += m.Expenses
		income += m.Income
	}
	n := float64(len(history))
	factor := e.SeasonalFactor(monthsAhead)
	return MonthForecast{
		Expenses:   expenses / n * factor,
		Income:     income / n * factor,
		Confidence: math.Min(0.8, n/12),
	}
}

// YearEndBalance projects the balance at the end of the year.
func (e *Engine) YearEndBalance(ctx context.Context) (YearEnd, error) {
	txs, err := e.transactions(ctx)
	if err != nil {
		return YearEnd{}, err
	}
	history := groupByMonth(txs)
	remaining := 12 - (int(e.now().Month()) - 1)

	out := YearEnd{
		CurrentBalance:   core.Summarize(txs).Balance.Euros(),
		MonthlyBreakdown: make([]MonthForecast, 0, remaining),
	}
	var income, expenses, conf float64
	for i := 1; i <= remaining; i++ {
		f := e.forecast(history, i)
		out.MonthlyBreakdown = append(out.MonthlyBreakdown, f)
		income += f.Income
		expenses += f.Expenses
		conf += f.Confidence
	}
	out.PredictedYearEndBalance = out.CurrentBalance + income - expenses
	if n := float64(remaining); n > 0 {
		out.ConfidenceLevel = math.Min(0.95, math.Min(1, n/6)*conf/n)
	}
	return out, nil
}
