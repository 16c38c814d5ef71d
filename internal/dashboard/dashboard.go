// Package dashboard assembles the widget data of the home page and derives
// insights and budget alerts from the transaction history.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetcal/internal/charts"
	"budgetcal/internal/core"
	"budgetcal/internal/predictions"
	"budgetcal/internal/registry"
	"budgetcal/internal/storage"
)

// DefaultSavingsGoal is the target of the savings widget, in euros.
const DefaultSavingsGoal = 5000

var (
	ErrPredictionsUnavailable = errors.New("Moteur de prédictions non disponible")
	ErrChartsUnavailable      = errors.New("Graphiques non disponibles")
)

type TransactionSource interface {
	All(ctx context.Context) ([]core.Transaction, error)
}

// Predictor is the subset of the predictions engine the dashboard reads.
type Predictor interface {
	PredictNextMonth(ctx context.Context) (predictions.Prediction, error)
	DetectAnomalies(ctx context.Context, period predictions.Period) ([]predictions.Anomaly, error)
	RecurringExpenses(ctx context.Context) ([]predictions.RecurringExpense, error)
}

type ChartSource interface {
	BudgetSeries(ctx context.Context) ([]charts.BudgetPoint, error)
	CategoryBreakdown(ctx context.Context) ([]charts.CategorySlice, error)
	Matrix3D(ctx context.Context) ([]charts.MatrixCell, error)
}

type (
	Summary struct {
		TotalBalance      core.Money `json:"totalBalance"`
		MonthlyIncome     core.Money `json:"monthlyIncome"`
		MonthlyExpenses   core.Money `json:"monthlyExpenses"`
		MonthlyBalance    core.Money `json:"monthlyBalance"`
		TotalTransactions int        `json:"totalTransactions"`
	}

	QuickStats struct {
		Summary
		Comparison string `json:"comparison"`
	}

	CategoryForecast struct {
		Category   string  `json:"category"`
		Amount     float64 `json:"amount"`
		Confidence float64 `json:"confidence"`
	}

	PredictionSummary struct {
		TotalAmount float64 `json:"totalAmount"`
		// Confidence is a rounded percentage.
		Confidence    int                `json:"confidence"`
		TopCategories []CategoryForecast `json:"topCategories"`
		Direction     string             `json:"direction"`
		TrendIcon     string             `json:"trendIcon"`
		TrendText     string             `json:"trendText"`
	}

	SavingsGoal struct {
		Current       float64 `json:"current"`
		Goal          float64 `json:"goal"`
		Progress      float64 `json:"progress"`
		Label         string  `json:"label"`
		EstimatedDate string  `json:"estimatedDate"`
	}

	// Snapshot holds the data of every visible widget. Errors maps widget
	// IDs to the message shown in place of their content.
	Snapshot struct {
		QuickStats   QuickStats             `json:"quickStats"`
		BalanceTrend []charts.BudgetPoint   `json:"balanceTrend"`
		Breakdown    []charts.CategorySlice `json:"monthlyBreakdown"`
		Predictions  PredictionSummary      `json:"predictions"`
		Recent       []core.Transaction     `json:"recentTransactions"`
		Alerts       []Alert                `json:"budgetAlerts"`
		Heatmap      []charts.MatrixCell    `json:"categoriesHeatmap"`
		SavingsGoal  SavingsGoal            `json:"savingsGoal"`
		Insights     []Insight              `json:"insights"`
		Errors       map[string]string      `json:"errors,omitempty"`
		UpdatedAt    time.Time              `json:"updatedAt"`
	}

	Diagnosis struct {
		Initialized           bool     `json:"initialized"`
		HasTransactionManager bool     `json:"hasTransactionManager"`
		HasPredictionsAI      bool     `json:"hasPredictionsAI"`
		HasChartManager       bool     `json:"hasChartManager"`
		WidgetsCount          int      `json:"widgetsCount"`
		Errors                []string `json:"errors"`
	}
)

type Options struct {
	// Predictions and Charts are optional.
	Predictions Predictor
	Charts      ChartSource
	Settings    storage.SettingsStore
	Logger      *slog.Logger
	// RefreshInterval applies until preferences set one.
	RefreshInterval time.Duration
	SavingsGoal     float64
}

type Dashboard struct {
	source      TransactionSource
	predictions Predictor
	charts      ChartSource
	settings    storage.SettingsStore
	logger      *slog.Logger
	now         func() time.Time
	interval    time.Duration
	goal        float64

	mu       sync.RWMutex
	prefs    Preferences
	snapshot *Snapshot
	updated  map[string]time.Time
}

// New builds a dashboard and restores the stored preferences. Unreadable
// preferences are logged and replaced by the defaults.
func New(ctx context.Context, source TransactionSource, opts Options) (*Dashboard, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshMinutes * time.Minute
	}
	if opts.SavingsGoal <= 0 {
		opts.SavingsGoal = DefaultSavingsGoal
	}
	d := &Dashboard{
		source:   source,
		settings: opts.Settings,
		logger:   opts.Logger,
		now:      time.Now,
		interval: opts.RefreshInterval,
		goal:     opts.SavingsGoal,
		updated:  map[string]time.Time{},
	}
	if registry.Defined(opts.Predictions) {
		d.predictions = opts.Predictions
	}
	if registry.Defined(opts.Charts) {
		d.charts = opts.Charts
	}
	if d.settings == nil {
		return d, nil
	}
	raw, err := d.settings.GetSetting(ctx, storage.SettingDashboardPreferences)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("load dashboard preferences: %w", err)
	default:
		var p Preferences
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			d.logger.WarnContext(ctx, "Ignoring invalid dashboard preferences", "error", err)
		} else {
			d.prefs = p
		}
	}
	return d, nil
}

func (d *Dashboard) Preferences() Preferences {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p := d.prefs
	p.Widgets = append([]WidgetPreference(nil), d.prefs.Widgets...)
	return p
}

// Interval returns the current refresh period.
func (d *Dashboard) Interval() time.Duration {
	p := d.Preferences()
	if p.RefreshInterval > 0 {
		return time.Duration(p.RefreshInterval) * time.Minute
	}
	return d.interval
}

// SavePreferences validates and persists p. Unknown widget IDs are dropped.
func (d *Dashboard) SavePreferences(ctx context.Context, p Preferences) error {
	if err := p.validate(); err != nil {
		return err
	}
	kept := p.Widgets[:0:0]
	for _, w := range p.Widgets {
		if knownWidget(w.ID) {
			kept = append(kept, w)
		}
	}
	p.Widgets = kept
	p.SavedAt = d.now().UTC()
	if d.settings != nil {
		raw, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode dashboard preferences: %w", err)
		}
		if err := d.settings.SetSetting(ctx, storage.SettingDashboardPreferences, string(raw)); err != nil {
			return fmt.Errorf("save dashboard preferences: %w", err)
		}
	}
	d.mu.Lock()
	d.prefs = p
	d.mu.Unlock()
	return nil
}

func (d *Dashboard) SetWidgetVisible(ctx context.Context, id string, visible bool) error {
	if !knownWidget(id) {
		return fmt.Errorf("%w: %s", ErrUnknownWidget, id)
	}
	return d.SavePreferences(ctx, d.Preferences().withVisibility(id, visible))
}

func (d *Dashboard) SetRefreshInterval(ctx context.Context, minutes int) error {
	if minutes < MinRefreshMinutes || minutes > MaxRefreshMinutes {
		return ErrInvalidInterval
	}
	p := d.Preferences()
	p.RefreshInterval = minutes
	return d.SavePreferences(ctx, p)
}

// Widgets returns the catalog with visibility, last update and error state.
func (d *Dashboard) Widgets() []Widget {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Widget, 0, len(widgetConfigs))
	for _, c := range widgetConfigs {
		w := Widget{Config: c, Visible: d.prefs.Visible(c.ID)}
		if at, ok := d.updated[c.ID]; ok {
			w.LastUpdate = &at
		}
		if d.snapshot != nil {
			w.Error = d.snapshot.Errors[c.ID]
		}
		out = append(out, w)
	}
	return out
}

// Snapshot returns the last refreshed data.
func (d *Dashboard) Snapshot() (Snapshot, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.snapshot == nil {
		return Snapshot{}, false
	}
	return *d.snapshot, true
}

// Refresh recomputes the data of every visible widget concurrently and
// stores the result. A failing widget records its error in the snapshot;
// only loading the transactions or a cancelled context fails the refresh.
func (d *Dashboard) Refresh(ctx context.Context) (Snapshot, error) {
	txs, err := d.source.All(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load transactions: %w", err)
	}
	now := d.now()
	prefs := d.Preferences()
	snap := Snapshot{Errors: map[string]string{}, UpdatedAt: now}

	var (
		mu   sync.Mutex
		done []string
	)
	g, gctx := errgroup.WithContext(ctx)
	widget := func(id string, fn func(ctx context.Context) error) {
		if !prefs.Visible(id) {
			return
		}
		g.Go(func() error {
			err := fn(gctx)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				snap.Errors[id] = err.Error()
				d.logger.WarnContext(gctx, "Widget refresh failed", "widget", id, "error", err)
				return nil
			}
			done = append(done, id)
			return nil
		})
	}

	widget(WidgetQuickStats, func(context.Context) error {
		snap.QuickStats = QuickStats{Summary: summarize(txs, now), Comparison: monthComparison(txs, now)}
		return nil
	})
	widget(WidgetBalanceTrend, func(ctx context.Context) error {
		if d.charts == nil {
			return ErrChartsUnavailable
		}
		var err error
		snap.BalanceTrend, err = d.charts.BudgetSeries(ctx)
		return err
	})
	widget(WidgetMonthlyBreakdown, func(ctx context.Context) error {
		if d.charts == nil {
			return ErrChartsUnavailable
		}
		var err error
		snap.Breakdown, err = d.charts.CategoryBreakdown(ctx)
		return err
	})
	widget(WidgetPredictions, func(ctx context.Context) error {
		var err error
		snap.Predictions, err = d.predictionSummary(ctx)
		return err
	})
	widget(WidgetRecentTransactions, func(context.Context) error {
		snap.Recent = recent(txs, recentCount)
		return nil
	})
	widget(WidgetBudgetAlerts, func(ctx context.Context) error {
		alerts := d.alerts(ctx, txs, now)
		if len(alerts) > widgetAlerts {
			alerts = alerts[:widgetAlerts]
		}
		snap.Alerts = alerts
		return nil
	})
	widget(WidgetCategoriesHeatmap, func(ctx context.Context) error {
		if d.charts == nil {
			return ErrChartsUnavailable
		}
		var err error
		snap.Heatmap, err = d.charts.Matrix3D(ctx)
		return err
	})
	widget(WidgetSavingsGoal, func(context.Context) error {
		snap.SavingsGoal = d.savingsGoal(txs, now)
		return nil
	})
	g.Go(func() error {
		snap.Insights = d.insights(gctx, txs, now)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	d.mu.Lock()
	for _, id := range done {
		d.updated[id] = now
	}
	d.snapshot = &snap
	d.mu.Unlock()
	return snap, nil
}

// Run refreshes immediately and then once per Interval until ctx is done.
func (d *Dashboard) Run(ctx context.Context) error {
	for {
		if _, err := d.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			d.logger.ErrorContext(ctx, "Dashboard refresh failed", "error", err)
		}
		timer := time.NewTimer(d.Interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func summarize(txs []core.Transaction, now time.Time) Summary {
	total := core.Summarize(txs)
	month := core.Summarize(core.InMonth(txs, now.Year(), int(now.Month())))
	return Summary{
		TotalBalance:      total.Balance,
		MonthlyIncome:     month.Income,
		MonthlyExpenses:   month.Expenses,
		MonthlyBalance:    month.Balance,
		TotalTransactions: total.TransactionCount,
	}
}

func recent(txs []core.Transaction, n int) []core.Transaction {
	out := append([]core.Transaction(nil), txs...)
	sort.SliceStable(out, func(a, b int) bool { return out[a].Date.After(out[b].Date) })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func (d *Dashboard) predictionSummary(ctx context.Context) (PredictionSummary, error) {
	if d.predictions == nil {
		return PredictionSummary{}, ErrPredictionsUnavailable
	}
	p, err := d.predictions.PredictNextMonth(ctx)
	if err != nil {
		return PredictionSummary{}, err
	}
	top := make([]CategoryForecast, 0, len(p.Breakdown))
	for c, e := range p.Breakdown {
		top = append(top, CategoryForecast{Category: c, Amount: e.Amount, Confidence: e.Confidence})
	}
	sort.Slice(top, func(a, b int) bool {
		if top[a].Amount != top[b].Amount {
			return top[a].Amount > top[b].Amount
		}
		return top[a].Category < top[b].Category
	})
	if len(top) > topPredictions {
		top = top[:topPredictions]
	}
	direction := p.Trends.Overall.Direction
	if direction == "" {
		direction = "stable"
	}
	return PredictionSummary{
		TotalAmount:   p.TotalAmount,
		Confidence:    int(math.Round(p.Confidence * 100)),
		TopCategories: top,
		Direction:     direction,
		TrendIcon:     trendIcon(direction),
		TrendText:     trendText(direction),
	}, nil
}

func (d *Dashboard) savingsGoal(txs []core.Transaction, now time.Time) SavingsGoal {
	current := core.Summarize(txs).Balance.Euros()
	progress := math.Max(0, math.Min(100, current/d.goal*100))
	return SavingsGoal{
		Current:       current,
		Goal:          d.goal,
		Progress:      math.Round(progress*10) / 10,
		Label:         core.FormatCurrency(current) + " / " + core.FormatCurrency(d.goal),
		EstimatedDate: estimateGoalDate(txs, current, d.goal, now),
	}
}

func (d *Dashboard) load(ctx context.Context) ([]core.Transaction, error) {
	txs, err := d.source.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	return txs, nil
}

// Insights returns at most five insights, most important first. It is
// empty without a predictions engine.
func (d *Dashboard) Insights(ctx context.Context) ([]Insight, error) {
	txs, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	return d.insights(ctx, txs, d.now()), nil
}

// Alerts returns every budget alert for the current month.
func (d *Dashboard) Alerts(ctx context.Context) ([]Alert, error) {
	txs, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	return d.alerts(ctx, txs, d.now()), nil
}

func (d *Dashboard) Summary(ctx context.Context) (Summary, error) {
	txs, err := d.load(ctx)
	if err != nil {
		return Summary{}, err
	}
	return summarize(txs, d.now()), nil
}

// MonthComparison returns the balance change against last month, such as
// "+12.5%", or "N/A" when last month balanced to zero.
func (d *Dashboard) MonthComparison(ctx context.Context) (string, error) {
	txs, err := d.load(ctx)
	if err != nil {
		return "", err
	}
	return monthComparison(txs, d.now()), nil
}

// EstimateGoalDate returns the French month and year at which goal should
// be reached from current, or a message when it cannot be estimated.
func (d *Dashboard) EstimateGoalDate(ctx context.Context, current, goal float64) (string, error) {
	txs, err := d.load(ctx)
	if err != nil {
		return "", err
	}
	return estimateGoalDate(txs, current, goal, d.now()), nil
}

func (d *Dashboard) Diagnose() Diagnosis {
	d.mu.RLock()
	initialized := d.snapshot != nil
	d.mu.RUnlock()
	diag := Diagnosis{
		Initialized:           initialized,
		HasTransactionManager: registry.Defined(d.source),
		HasPredictionsAI:      d.predictions != nil,
		HasChartManager:       d.charts != nil,
		WidgetsCount:          len(widgetConfigs),
		Errors:                []string{},
	}
	if !diag.HasTransactionManager {
		diag.Errors = append(diag.Errors, "TransactionManager manquant")
	}
	if !diag.HasPredictionsAI {
		diag.Errors = append(diag.Errors, "PredictionsAI manquant")
	}
	if !diag.HasChartManager {
		diag.Errors = append(diag.Errors, "ChartManager manquant")
	}
	return diag
}

type exportWidget struct {
	ID         string       `json:"id"`
	Config     WidgetConfig `json:"config"`
	LastUpdate *time.Time   `json:"lastUpdate"`
}

type exportDocument struct {
	Timestamp    time.Time          `json:"timestamp"`
	Widgets      []exportWidget     `json:"widgets"`
	Insights     []Insight          `json:"insights"`
	Transactions []core.Transaction `json:"transactions"`
}

// ExportFileName names the dashboard export of day at.
func ExportFileName(at time.Time) string {
	return "dashboard_export_" + at.Format(core.DateLayout) + ".json"
}

// Export writes the widgets, the insights of the last refresh and every
// transaction as indented JSON.
func (d *Dashboard) Export(ctx context.Context, w io.Writer) error {
	txs, err := d.load(ctx)
	if err != nil {
		return err
	}
	doc := exportDocument{
		Timestamp:    d.now().UTC(),
		Insights:     []Insight{},
		Transactions: txs,
	}
	if doc.Transactions == nil {
		doc.Transactions = []core.Transaction{}
	}
	for _, wd := range d.Widgets() {
		doc.Widgets = append(doc.Widgets, exportWidget{ID: wd.Config.ID, Config: wd.Config, LastUpdate: wd.LastUpdate})
	}
	if snap, ok := d.Snapshot(); ok {
		doc.Insights = snap.Insights
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode dashboard export: %w", err)
	}
	return nil
}
