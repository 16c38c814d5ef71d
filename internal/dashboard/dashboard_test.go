package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"budgetcal/internal/core"
	"budgetcal/internal/predictions"
	"budgetcal/internal/storage"
	"budgetcal/internal/storage/memory"
)

var fixedNow = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

type staticSource struct {
	txs []core.Transaction
	err error
}

func (s staticSource) All(context.Context) ([]core.Transaction, error) { return s.txs, s.err }

type fakePredictor struct {
	prediction predictions.Prediction
	anomalies  []predictions.Anomaly
	recurring  []predictions.RecurringExpense
	err        error
}

func (f fakePredictor) PredictNextMonth(context.Context) (predictions.Prediction, error) {
	return f.prediction, f.err
}

func (f fakePredictor) DetectAnomalies(context.Context, predictions.Period) ([]predictions.Anomaly, error) {
	return f.anomalies, f.err
}

func (f fakePredictor) RecurringExpenses(context.Context) ([]predictions.RecurringExpense, error) {
	return f.recurring, f.err
}

func tx(category string, euros float64, date string, typ core.TransactionType) core.Transaction {
	d, err := core.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return core.Transaction{Label: category, Category: category, Amount: core.FromEuros(euros), Date: d, Type: typ}
}

// rising doubles Loisirs spending over the last six months and has a small
// March income.
func rising() []core.Transaction {
	return []core.Transaction{
		tx("Loisirs", 100, "2024-10-05", core.Expense),
		tx("Loisirs", 100, "2024-11-05", core.Expense),
		tx("Loisirs", 100, "2024-12-05", core.Expense),
		tx("Loisirs", 200, "2025-01-05", core.Expense),
		tx("Loisirs", 200, "2025-02-05", core.Expense),
		tx("Loisirs", 200, "2025-03-05", core.Expense),
		tx("Salaire", 150, "2025-03-01", core.Income),
	}
}

func predictor() fakePredictor {
	return fakePredictor{
		prediction: predictions.Prediction{
			TotalAmount: 300,
			Confidence:  0.756,
			Breakdown: map[string]predictions.Estimate{
				"Loisirs":      {Amount: 250, Confidence: 0.8},
				"Transport":    {Amount: 50, Confidence: 0.5},
				"Alimentation": {Amount: 120, Confidence: 0.6},
				"Autres":       {Amount: 10, Confidence: 0.3},
			},
			Trends: predictions.Trends{Overall: predictions.Trend{Direction: "increasing"}},
		},
		anomalies: []predictions.Anomaly{{Severity: 0.9}, {Severity: 0.5}},
		recurring: []predictions.RecurringExpense{{Confidence: 0.85}, {Confidence: 0.75}},
	}
}

func newDashboard(t *testing.T, src TransactionSource, opts Options) *Dashboard {
	t.Helper()
	d, err := New(context.Background(), src, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	d.now = func() time.Time { return fixedNow }
	return d
}

func TestTrend(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"single", []float64{100}, 0},
		{"double", []float64{100, 200}, 100},
		{"zero baseline", []float64{0, 100}, 0},
		{"halved", []float64{100, 100, 100, 50, 50, 50}, -50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Trend(tt.values); got != tt.want {
				t.Fatalf("Trend(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}
}

func TestInsights(t *testing.T) {
	d := newDashboard(t, staticSource{txs: rising()}, Options{Predictions: predictor()})
	got, err := d.Insights(context.Background())
	if err != nil {
		t.Fatalf("Insights: %v", err)
	}
	var types []string
	for _, in := range got {
		types = append(types, in.Type)
	}
	if diff := cmp.Diff([]string{"anomaly", "trend", "savings", "pattern"}, types); diff != "" {
		t.Fatalf("insight types (-want +got):\n%s", diff)
	}
	if got[0].Description != "1 transaction(s) sortent de vos habitudes" {
		t.Errorf("anomaly description = %q", got[0].Description)
	}
	if got[1].Title != "Dépenses en hausse" || got[1].Value != "+100.0%" {
		t.Errorf("trend insight = %+v", got[1])
	}
	if got[2].Value != "90.00 €" {
		t.Errorf("savings value = %q", got[2].Value)
	}
	if got[3].Value != "1 pattern(s)" {
		t.Errorf("pattern value = %q", got[3].Value)
	}
}

func TestInsightsWithoutPredictions(t *testing.T) {
	d := newDashboard(t, staticSource{txs: rising()}, Options{})
	got, err := d.Insights(context.Background())
	if err != nil {
		t.Fatalf("Insights: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("insights = %+v, want none", got)
	}
}

func TestInsightsSkipFailingAnalyses(t *testing.T) {
	p := predictor()
	p.err = errors.New("boom")
	d := newDashboard(t, staticSource{txs: rising()}, Options{Predictions: p})
	got, err := d.Insights(context.Background())
	if err != nil {
		t.Fatalf("Insights: %v", err)
	}
	if len(got) != 2 || got[0].Type != "trend" || got[1].Type != "savings" {
		t.Fatalf("insights = %+v", got)
	}
}

func TestAlerts(t *testing.T) {
	d := newDashboard(t, staticSource{txs: rising()}, Options{Predictions: predictor()})
	got, err := d.Alerts(context.Background())
	if err != nil {
		t.Fatalf("Alerts: %v", err)
	}
	var types []string
	for _, a := range got {
		types = append(types, a.Type)
	}
	if diff := cmp.Diff([]string{"budget_exceeded", "prediction_warning", "category_spike"}, types); diff != "" {
		t.Fatalf("alert types (-want +got):\n%s", diff)
	}
	if got[0].Icon != "💸" || got[0].Description != "Vos dépenses (200.00 €) dépassent vos revenus" {
		t.Errorf("budget alert = %+v", got[0])
	}
	if got[2].Title != "Explosion: Loisirs" || got[2].Description != "Cette catégorie a augmenté de 100.0%" {
		t.Errorf("spike alert = %+v", got[2])
	}
	critical := CriticalAlerts(got)
	if len(critical) != 1 || critical[0].Type != "budget_exceeded" {
		t.Errorf("critical = %+v", critical)
	}
}

func TestMonthComparison(t *testing.T) {
	tests := []struct {
		name string
		txs  []core.Transaction
		want string
	}{
		{"improving", rising(), "+75.0%"},
		{"no previous month", []core.Transaction{tx("Salaire", 100, "2025-03-01", core.Income)}, "N/A"},
		{"worse", []core.Transaction{
			tx("Salaire", 100, "2025-02-01", core.Income),
			tx("Salaire", 50, "2025-03-01", core.Income),
		}, "-50.0%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDashboard(t, staticSource{txs: tt.txs}, Options{})
			got, err := d.MonthComparison(context.Background())
			if err != nil {
				t.Fatalf("MonthComparison: %v", err)
			}
			if got != tt.want {
				t.Fatalf("MonthComparison = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEstimateGoalDate(t *testing.T) {
	saving := []core.Transaction{
		tx("Salaire", 500, "2025-01-01", core.Income),
		tx("Salaire", 500, "2025-02-01", core.Income),
	}
	tests := []struct {
		name          string
		txs           []core.Transaction
		current, goal float64
		want          string
	}{
		{"reached", nil, 5000, 5000, "Objectif atteint !"},
		{"no savings", rising(), 0, 5000, "Impossible à estimer"},
		{"three months", saving, 0, 400, "juin 2025"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDashboard(t, staticSource{txs: tt.txs}, Options{})
			got, err := d.EstimateGoalDate(context.Background(), tt.current, tt.goal)
			if err != nil {
				t.Fatalf("EstimateGoalDate: %v", err)
			}
			if got != tt.want {
				t.Fatalf("EstimateGoalDate = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSummary(t *testing.T) {
	d := newDashboard(t, staticSource{txs: rising()}, Options{})
	got, err := d.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	want := Summary{
		TotalBalance:      core.FromEuros(-750),
		MonthlyIncome:     core.FromEuros(150),
		MonthlyExpenses:   core.FromEuros(200),
		MonthlyBalance:    core.FromEuros(-50),
		TotalTransactions: 7,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Summary (-want +got):\n%s", diff)
	}
}

func TestRefresh(t *testing.T) {
	d := newDashboard(t, staticSource{txs: rising()}, Options{Predictions: predictor()})
	snap, err := d.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if snap.QuickStats.Comparison != "+75.0%" || snap.QuickStats.TotalTransactions != 7 {
		t.Errorf("quick stats = %+v", snap.QuickStats)
	}
	if len(snap.Recent) != 5 || snap.Recent[0].Date.String() != "2025-03-05" {
		t.Errorf("recent = %+v", snap.Recent)
	}
	if len(snap.Alerts) != 3 {
		t.Errorf("alerts = %d, want 3", len(snap.Alerts))
	}
	p := snap.Predictions
	if p.Confidence != 76 || p.TrendIcon != "📈" || p.TrendText != "Hausse" {
		t.Errorf("predictions = %+v", p)
	}
	var top []string
	for _, c := range p.TopCategories {
		top = append(top, c.Category)
	}
	if diff := cmp.Diff([]string{"Loisirs", "Alimentation", "Transport"}, top); diff != "" {
		t.Errorf("top categories (-want +got):\n%s", diff)
	}
	if snap.SavingsGoal.Progress != 0 || snap.SavingsGoal.Goal != DefaultSavingsGoal {
		t.Errorf("savings goal = %+v", snap.SavingsGoal)
	}
	if snap.SavingsGoal.Label != "-750.00 € / 5000.00 €" {
		t.Errorf("savings label = %q", snap.SavingsGoal.Label)
	}
	if len(snap.Insights) != 4 {
		t.Errorf("insights = %d, want 4", len(snap.Insights))
	}
	for _, id := range []string{WidgetBalanceTrend, WidgetMonthlyBreakdown, WidgetCategoriesHeatmap} {
		if snap.Errors[id] != ErrChartsUnavailable.Error() {
			t.Errorf("error[%s] = %q", id, snap.Errors[id])
		}
	}
	if _, ok := snap.Errors[WidgetPredictions]; ok {
		t.Errorf("unexpected predictions error")
	}

	stored, ok := d.Snapshot()
	if !ok || !stored.UpdatedAt.Equal(fixedNow) {
		t.Fatalf("stored snapshot = %v, %v", stored.UpdatedAt, ok)
	}
	for _, w := range d.Widgets() {
		failed := w.Error != ""
		if failed == (w.LastUpdate != nil) {
			t.Errorf("widget %s: error %q, last update %v", w.Config.ID, w.Error, w.LastUpdate)
		}
	}
}

func TestRefreshWithoutPredictions(t *testing.T) {
	d := newDashboard(t, staticSource{txs: rising()}, Options{})
	snap, err := d.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if snap.Errors[WidgetPredictions] != "Moteur de prédictions non disponible" {
		t.Fatalf("predictions error = %q", snap.Errors[WidgetPredictions])
	}
	for _, a := range snap.Alerts {
		if a.Type == "prediction_warning" {
			t.Fatalf("prediction alert without predictions")
		}
	}
	diag := d.Diagnose()
	if !diag.Initialized || diag.HasPredictionsAI || diag.WidgetsCount != 8 || len(diag.Errors) != 2 {
		t.Fatalf("diagnosis = %+v", diag)
	}
}

func TestRefreshSourceError(t *testing.T) {
	d := newDashboard(t, staticSource{err: errors.New("db down")}, Options{})
	if _, err := d.Refresh(context.Background()); err == nil {
		t.Fatalf("Refresh succeeded on source error")
	}
	if _, ok := d.Snapshot(); ok {
		t.Fatalf("snapshot stored after failure")
	}
}

func TestTypedNilPredictor(t *testing.T) {
	var engine *predictions.Engine
	d := newDashboard(t, staticSource{txs: rising()}, Options{Predictions: engine})
	if d.Diagnose().HasPredictionsAI {
		t.Fatalf("typed nil predictor counted as available")
	}
}

func TestPreferences(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	d := newDashboard(t, staticSource{txs: rising()}, Options{Settings: store, RefreshInterval: time.Minute})

	if got := d.Interval(); got != time.Minute {
		t.Fatalf("Interval = %v, want 1m", got)
	}
	if err := d.SetWidgetVisible(ctx, WidgetPredictions, false); err != nil {
		t.Fatalf("SetWidgetVisible: %v", err)
	}
	if err := d.SetWidgetVisible(ctx, "weather", false); !errors.Is(err, ErrUnknownWidget) {
		t.Fatalf("unknown widget err = %v", err)
	}
	for _, minutes := range []int{0, 61} {
		if err := d.SetRefreshInterval(ctx, minutes); !errors.Is(err, ErrInvalidInterval) {
			t.Fatalf("SetRefreshInterval(%d) err = %v", minutes, err)
		}
	}
	if err := d.SetRefreshInterval(ctx, 10); err != nil {
		t.Fatalf("SetRefreshInterval: %v", err)
	}

	reloaded := newDashboard(t, staticSource{txs: rising()}, Options{Settings: store})
	if reloaded.Interval() != 10*time.Minute {
		t.Fatalf("reloaded interval = %v", reloaded.Interval())
	}
	if reloaded.Preferences().Visible(WidgetPredictions) {
		t.Fatalf("predictions widget still visible after reload")
	}
	snap, err := reloaded.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, ok := snap.Errors[WidgetPredictions]; ok {
		t.Fatalf("hidden widget was refreshed")
	}
}

func TestInvalidStoredPreferences(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	if err := store.SetSetting(ctx, storage.SettingDashboardPreferences, "{not json"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	d := newDashboard(t, staticSource{}, Options{Settings: store})
	if d.Interval() != DefaultRefreshMinutes*time.Minute {
		t.Fatalf("Interval = %v", d.Interval())
	}
}

func TestExport(t *testing.T) {
	d := newDashboard(t, staticSource{txs: rising()}, Options{Predictions: predictor()})
	if _, err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	var buf bytes.Buffer
	if err := d.Export(context.Background(), &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}
	var doc struct {
		Widgets []struct {
			ID string `json:"id"`
		} `json:"widgets"`
		Insights     []Insight         `json:"insights"`
		Transactions []json.RawMessage `json:"transactions"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(doc.Widgets) != 8 || doc.Widgets[0].ID != WidgetQuickStats {
		t.Errorf("widgets = %+v", doc.Widgets)
	}
	if len(doc.Insights) != 4 || len(doc.Transactions) != 7 {
		t.Errorf("insights = %d, transactions = %d", len(doc.Insights), len(doc.Transactions))
	}
	if got := ExportFileName(fixedNow); got != "dashboard_export_2025-03-15.json" {
		t.Errorf("ExportFileName = %q", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	d := newDashboard(t, staticSource{txs: rising()}, Options{RefreshInterval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := d.Snapshot(); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("no refresh before deadline")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop")
	}
}
