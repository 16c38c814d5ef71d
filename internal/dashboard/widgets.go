package dashboard

import (
	"errors"
	"time"
)

// Widget identifiers.
const (
	WidgetQuickStats         = "quick-stats"
	WidgetBalanceTrend       = "balance-trend"
	WidgetMonthlyBreakdown   = "monthly-breakdown"
	WidgetPredictions        = "predictions"
	WidgetRecentTransactions = "recent-transactions"
	WidgetBudgetAlerts       = "budget-alerts"
	WidgetCategoriesHeatmap  = "categories-heatmap"
	WidgetSavingsGoal        = "savings-goal"
)

// Refresh interval bounds, in minutes.
const (
	DefaultRefreshMinutes = 5
	MinRefreshMinutes     = 1
	MaxRefreshMinutes     = 60
)

var (
	ErrUnknownWidget   = errors.New("Widget inconnu")
	ErrInvalidInterval = errors.New("Intervalle de rafraîchissement invalide")
)

type WidgetConfig struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Type        string `json:"type"`
	ChartType   string `json:"chartType,omitempty"`
	Size        string `json:"size"`
	Priority    int    `json:"priority"`
	AutoRefresh bool   `json:"autoRefresh"`
}

var widgetConfigs = []WidgetConfig{
	{ID: WidgetQuickStats, Title: "📈 Statistiques Rapides", Type: "stats", Size: "medium", Priority: 1, AutoRefresh: true},
	{ID: WidgetBalanceTrend, Title: "💰 Évolution du Solde", Type: "chart", ChartType: "line", Size: "large", Priority: 2, AutoRefresh: true},
	{ID: WidgetMonthlyBreakdown, Title: "🍰 Répartition Mensuelle", Type: "chart", ChartType: "doughnut", Size: "medium", Priority: 3, AutoRefresh: true},
	{ID: WidgetPredictions, Title: "🔮 Prédictions", Type: "predictions", Size: "medium", Priority: 4, AutoRefresh: true},
	{ID: WidgetRecentTransactions, Title: "📋 Dernières Transactions", Type: "transactions", Size: "large", Priority: 5, AutoRefresh: true},
	{ID: WidgetBudgetAlerts, Title: "⚠️ Alertes Budget", Type: "alerts", Size: "small", Priority: 6, AutoRefresh: true},
	{ID: WidgetCategoriesHeatmap, Title: "🌡️ Heatmap Catégories", Type: "chart", ChartType: "heatmap", Size: "large", Priority: 7, AutoRefresh: true},
	{ID: WidgetSavingsGoal, Title: "🎯 Objectif d'Épargne", Type: "progress", Size: "medium", Priority: 8, AutoRefresh: true},
}

// WidgetConfigs returns the widget catalog ordered by priority.
func WidgetConfigs() []WidgetConfig {
	return append([]WidgetConfig(nil), widgetConfigs...)
}

func knownWidget(id string) bool {
	for _, w := range widgetConfigs {
		if w.ID == id {
			return true
		}
	}
	return false
}

// Widget is a catalog entry with its display state.
type Widget struct {
	Config     WidgetConfig `json:"config"`
	Visible    bool         `json:"visible"`
	LastUpdate *time.Time   `json:"lastUpdate"`
	Error      string       `json:"error,omitempty"`
}

type WidgetPreference struct {
	ID      string `json:"id"`
	Visible bool   `json:"visible"`
}

// Preferences is persisted as JSON under the dashboard preferences setting.
// RefreshInterval is in minutes; zero means the configured default.
type Preferences struct {
	Widgets         []WidgetPreference `json:"widgets"`
	RefreshInterval int                `json:"refreshInterval"`
	SavedAt         time.Time          `json:"savedAt"`
}

// Visible reports whether widget id is shown. Widgets without a
// preference are visible.
func (p Preferences) Visible(id string) bool {
	for _, w := range p.Widgets {
		if w.ID == id {
			return w.Visible
		}
	}
	return true
}

func (p Preferences) withVisibility(id string, visible bool) Preferences {
	out := Preferences{RefreshInterval: p.RefreshInterval, SavedAt: p.SavedAt}
	found := false
	for _, w := range p.Widgets {
		if w.ID == id {
			w.Visible = visible
			found = true
		}
		out.Widgets = append(out.Widgets, w)
	}
	if !found {
		out.Widgets = append(out.Widgets, WidgetPreference{ID: id, Visible: visible})
	}
	return out
}

func (p Preferences) validate() error {
	if p.RefreshInterval != 0 && (p.RefreshInterval < MinRefreshMinutes || p.RefreshInterval > MaxRefreshMinutes) {
		return ErrInvalidInterval
	}
	return nil
}
