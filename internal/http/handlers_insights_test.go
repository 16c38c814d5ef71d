package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"budgetcal/internal/categorize"
	"budgetcal/internal/charts"
	"budgetcal/internal/dashboard"
	"budgetcal/internal/predictions"
	"budgetcal/internal/registry"
	"budgetcal/internal/search"
)

// newFullEnv binds every component the API can serve.
func newFullEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	env := newTestEnv(t, Options{})

	pred := predictions.NewEngine(env.tm, nil)
	engine, err := categorize.NewEngine(ctx, env.store, env.tm, nil)
	if err != nil {
		t.Fatalf("categorize.NewEngine: %v", err)
	}
	dash, err := dashboard.New(ctx, env.tm, dashboard.Options{
		Predictions: pred,
		Charts:      charts.New(env.tm),
		Settings:    env.store,
	})
	if err != nil {
		t.Fatalf("dashboard.New: %v", err)
	}
	binds := map[string]any{
		registry.BudgetPredictionsAI:   pred,
		registry.AdvancedSearchManager: search.NewManager(env.tm, env.store, nil),
		registry.EnhancedDashboard:     dash,
		CategorizerComponent:           engine,
	}
	for name, v := range binds {
		if err := env.ns.Bind(name, v); err != nil {
			t.Fatalf("Bind(%s): %v", name, err)
		}
	}
	return env
}

func seed(t *testing.T, env *testEnv) {
	t.Helper()
	bodies := []string{
		`{"label":"Courses Carrefour","amount":54.3,"category":"Alimentation","date":"2024-03-10","type":"expense"}`,
		`{"label":"Courses Carrefour","amount":61,"category":"Alimentation","date":"2024-02-10","type":"expense"}`,
		`{"label":"Salaire","amount":2500,"category":"Salaire","date":"2024-03-01","type":"income"}`,
		`{"label":"Netflix","amount":13.49,"category":"Abonnements","date":"2024-03-05","type":"expense"}`,
	}
	for _, b := range bodies {
		if rec := env.do(t, http.MethodPost, "/api/transactions", b); rec.Code != http.StatusCreated {
			t.Fatalf("seed status = %d, body %s", rec.Code, rec.Body)
		}
	}
}

func TestInsightEndpointsSucceed(t *testing.T) {
	for _, seeded := range []bool{false, true} {
		env := newFullEnv(t)
		if seeded {
			seed(t, env)
		}
		tests := []struct {
			method, target, body string
			want                 int
		}{
			{http.MethodGet, "/api/categorize/stats", "", http.StatusOK},
			{http.MethodPost, "/api/categorize/suggest", `{"label":"Courses"}`, http.StatusOK},
			{http.MethodPost, "/api/categorize/suggest", `{"label":"Courses","amount":20,"type":"expense","limit":3}`, http.StatusOK},
			{http.MethodPost, "/api/categorize/suggest", "label=Courses&limit=2", http.StatusOK},
			{http.MethodGet, "/api/predictions", "", http.StatusOK},
			{http.MethodGet, "/api/predictions?period=week", "", http.StatusOK},
			{http.MethodGet, "/api/predictions?period=year", "", http.StatusOK},
			{http.MethodGet, "/api/predictions/anomalies?period=quarter", "", http.StatusOK},
			{http.MethodGet, "/api/predictions/recurring", "", http.StatusOK},
			{http.MethodGet, "/api/predictions/quality", "", http.StatusOK},
			{http.MethodPost, "/api/search", "", http.StatusOK},
			{http.MethodPost, "/api/search", `{"search":"courses","types":["expense"]}`, http.StatusOK},
			{http.MethodGet, "/api/search/quick/" + search.QuickThisMonth, "", http.StatusOK},
			{http.MethodGet, "/api/search/quick/" + search.QuickLargeAmounts, "", http.StatusOK},
			{http.MethodGet, "/api/search/quick/" + search.QuickIncomeOnly, "", http.StatusOK},
			{http.MethodGet, "/api/search/saved", "", http.StatusOK},
			{http.MethodGet, "/api/search/history", "", http.StatusOK},
			{http.MethodGet, "/api/search/analytics", "", http.StatusOK},
			{http.MethodGet, "/api/dashboard", "", http.StatusOK},
			{http.MethodGet, "/api/dashboard?refresh=true", "", http.StatusOK},
			{http.MethodGet, "/api/dashboard/insights", "", http.StatusOK},
			{http.MethodGet, "/api/dashboard/alerts", "", http.StatusOK},
			{http.MethodGet, "/api/dashboard/alerts?critical=true", "", http.StatusOK},
			{http.MethodGet, "/api/dashboard/preferences", "", http.StatusOK},
		}
		for _, tt := range tests {
			rec := env.do(t, tt.method, tt.target, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("seeded=%v %s %s = %d, want %d, body %s", seeded, tt.method, tt.target, rec.Code, tt.want, rec.Body)
			}
		}
	}
}

func TestInsightEndpointsRejectBadInput(t *testing.T) {
	env := newFullEnv(t)
	tests := []struct {
		name, method, target, body string
		want                       int
	}{
		{"suggest without label", http.MethodPost, "/api/categorize/suggest", `{"amount":10}`, http.StatusBadRequest},
		{"suggest zero limit", http.MethodPost, "/api/categorize/suggest", `{"label":"Courses","limit":0}`, http.StatusBadRequest},
		{"suggest text limit", http.MethodPost, "/api/categorize/suggest", `{"label":"Courses","limit":"beaucoup"}`, http.StatusBadRequest},
		{"suggest bad type", http.MethodPost, "/api/categorize/suggest", `{"label":"Courses","type":"gift"}`, http.StatusBadRequest},
		{"suggest malformed", http.MethodPost, "/api/categorize/suggest", `{"label":`, http.StatusBadRequest},
		{"learn without category", http.MethodPost, "/api/categorize/learn", `{"label":"Courses"}`, http.StatusBadRequest},
		{"learn without label", http.MethodPost, "/api/categorize/learn", `{"category":"Alimentation"}`, http.StatusBadRequest},
		{"bad period", http.MethodGet, "/api/predictions?period=decade", "", http.StatusBadRequest},
		{"bad anomaly period", http.MethodGet, "/api/predictions/anomalies?period=day", "", http.StatusBadRequest},
		{"invalid type filter", http.MethodPost, "/api/search", `{"types":["gift"]}`, http.StatusBadRequest},
		{"unknown filter field", http.MethodPost, "/api/search", `{"colour":"red"}`, http.StatusBadRequest},
		{"invalid export type", http.MethodPost, "/api/search/export", `{"types":["gift"]}`, http.StatusBadRequest},
		{"empty saved filter name", http.MethodPost, "/api/search/saved", `{"name":"   "}`, http.StatusBadRequest},
		{"saved filter with bad type", http.MethodPost, "/api/search/saved", `{"name":"x","filters":{"types":["gift"]}}`, http.StatusBadRequest},
		{"unknown quick filter", http.MethodGet, "/api/search/quick/someday", "", http.StatusNotFound},
		{"missing saved filter", http.MethodGet, "/api/search/saved/absent", "", http.StatusNotFound},
		{"interval too long", http.MethodPut, "/api/dashboard/preferences", `{"refreshInterval":600}`, http.StatusBadRequest},
		{"malformed preferences", http.MethodPut, "/api/dashboard/preferences", `[`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.target, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("%s %s = %d, want %d, body %s", tt.method, tt.target, rec.Code, tt.want, rec.Body)
			}
			if _, ok := decode(t, rec)["error"]; !ok {
				t.Fatalf("body %s has no error field", rec.Body)
			}
		})
	}
}

func TestLearnThenSuggest(t *testing.T) {
	env := newFullEnv(t)
	rec := env.do(t, http.MethodPost, "/api/categorize/learn", `{"label":"Netflix","category":"Abonnements"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("learn status = %d, body %s", rec.Code, rec.Body)
	}

	rec = env.do(t, http.MethodPost, "/api/categorize/suggest", `{"label":"Netflix"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("suggest status = %d, body %s", rec.Code, rec.Body)
	}
	var single struct {
		Suggestion categorize.Suggestion `json:"suggestion"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &single); err != nil {
		t.Fatalf("decode suggestion: %v", err)
	}
	if single.Suggestion.Category != "Abonnements" {
		t.Fatalf("suggestion = %+v, want Abonnements", single.Suggestion)
	}

	rec = env.do(t, http.MethodPost, "/api/categorize/suggest", `{"label":"Netflix","limit":2}`)
	if _, ok := decode(t, rec)["suggestions"]; !ok {
		t.Fatalf("limit 2 body = %s, want suggestions", rec.Body)
	}

	rec = env.do(t, http.MethodGet, "/api/categorize/stats", "")
	var stats categorize.Statistics
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalLearned != 1 {
		t.Fatalf("TotalLearned = %d, want 1", stats.TotalLearned)
	}
}

func TestSearchAndSavedFilters(t *testing.T) {
	env := newFullEnv(t)
	seed(t, env)

	rec := env.do(t, http.MethodPost, "/api/search", `{"search":"\"carrefour\""}`)
	if got := decode(t, rec)["count"]; got != 2.0 {
		t.Fatalf("quoted search count = %v, body %s", got, rec.Body)
	}

	// The posted filters are saved without becoming the current ones.
	rec = env.do(t, http.MethodPost, "/api/search/saved", `{"name":"Revenus","filters":{"types":["income"]}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("save status = %d, body %s", rec.Code, rec.Body)
	}
	rec = env.do(t, http.MethodPost, "/api/search/saved", `{"name":"Carrefour"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("save current status = %d, body %s", rec.Code, rec.Body)
	}

	rec = env.do(t, http.MethodGet, "/api/search/saved/Carrefour", "")
	if got := decode(t, rec)["count"]; got != 2.0 {
		t.Fatalf("Carrefour count = %v, body %s", got, rec.Body)
	}
	rec = env.do(t, http.MethodGet, "/api/search/saved/Revenus", "")
	if got := decode(t, rec)["count"]; got != 1.0 {
		t.Fatalf("Revenus count = %v, body %s", got, rec.Body)
	}

	rec = env.do(t, http.MethodGet, "/api/search/saved", "")
	if filters, _ := decode(t, rec)["filters"].([]any); len(filters) != 2 {
		t.Fatalf("saved filters = %s", rec.Body)
	}
	rec = env.do(t, http.MethodGet, "/api/search/history", "")
	if history, _ := decode(t, rec)["history"].([]any); len(history) != 1 {
		t.Fatalf("history = %s", rec.Body)
	}

	if rec = env.do(t, http.MethodDelete, "/api/search/saved/Revenus", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec = env.do(t, http.MethodGet, "/api/search/saved/Revenus", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("load deleted status = %d", rec.Code)
	}
}

func TestSearchExportIsCSV(t *testing.T) {
	env := newFullEnv(t)
	seed(t, env)

	rec := env.do(t, http.MethodPost, "/api/search/export", `{"types":["income"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d, body %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, search.ExportFileName(testNow)) {
		t.Fatalf("Content-Disposition = %q", cd)
	}
	lines := strings.Split(rec.Body.String(), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], `"Salaire"`) {
		t.Fatalf("csv = %q", rec.Body.String())
	}
}

func TestDashboardPreferencesAndExport(t *testing.T) {
	env := newFullEnv(t)
	seed(t, env)

	rec := env.do(t, http.MethodPut, "/api/dashboard/preferences",
		`{"refreshInterval":10,"widgets":[{"id":"`+dashboard.WidgetSavingsGoal+`","visible":false}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("save preferences status = %d, body %s", rec.Code, rec.Body)
	}
	var prefs dashboard.Preferences
	rec = env.do(t, http.MethodGet, "/api/dashboard/preferences", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &prefs); err != nil {
		t.Fatalf("decode preferences: %v", err)
	}
	if prefs.RefreshInterval != 10 || prefs.Visible(dashboard.WidgetSavingsGoal) {
		t.Fatalf("preferences = %+v", prefs)
	}

	rec = env.do(t, http.MethodGet, "/api/dashboard/export", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d, body %s", rec.Code, rec.Body)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, dashboard.ExportFileName(testNow)) {
		t.Fatalf("Content-Disposition = %q", cd)
	}
	if !json.Valid(rec.Body.Bytes()) {
		t.Fatalf("export is not JSON: %s", rec.Body)
	}
}
