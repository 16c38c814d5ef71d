package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"budgetcal/internal/calendar"
	"budgetcal/internal/charts"
	applog "budgetcal/internal/log"
	"budgetcal/internal/registry"
	"budgetcal/internal/storage/memory"
	"budgetcal/internal/themes"
	"budgetcal/internal/transactions"
)

var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	srv   *Server
	store *memory.Store
	ns    *registry.Namespace
	tm    *transactions.Manager
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	ns := registry.NewNamespace()

	tm := transactions.NewManager(store, transactions.Options{Now: func() time.Time { return testNow }})
	th, err := themes.NewManager(ctx, store, nil)
	if err != nil {
		t.Fatalf("themes.NewManager: %v", err)
	}
	binds := map[string]any{
		registry.TransactionManager: tm,
		registry.ChartsManager:      charts.New(tm),
		registry.ThemeManager:       th,
		CalendarComponent:           calendar.New(tm),
	}
	for name, v := range binds {
		if err := ns.Bind(name, v); err != nil {
			t.Fatalf("Bind(%s): %v", name, err)
		}
	}

	opts.Namespace = ns
	opts.Now = func() time.Time { return testNow }
	opts.Logger = applog.New(applog.Config{Output: io.Discard})
	if opts.Ready == nil {
		opts.Ready = func(context.Context) error { return nil }
	}
	srv := NewServer(opts)
	t.Cleanup(func() { srv.Close() })
	return &testEnv{srv: srv, store: store, ns: ns, tm: tm}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
	if got := decode(t, rec)["status"]; got != "ok" {
		t.Fatalf("healthz status field = %v", got)
	}

	rec = env.do(t, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz status = %d, body %s", rec.Code, rec.Body)
	}
}

func TestReadyFailsWhenStorageIsDown(t *testing.T) {
	env := newTestEnv(t, Options{Ready: func(context.Context) error { return errors.New("db closed") }})

	rec := env.do(t, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d", rec.Code)
	}
	if got := decode(t, rec)["status"]; got != "not_ready" {
		t.Fatalf("status field = %v", got)
	}
}

func TestModulesListsBoundNames(t *testing.T) {
	env := newTestEnv(t, Options{})

	body := decode(t, env.do(t, http.MethodGet, "/api/modules", ""))
	if got := body["count"]; got != float64(4) {
		t.Fatalf("count = %v", got)
	}
	known := body["known"].(map[string]any)
	if known[registry.TransactionManager] != true {
		t.Fatalf("TransactionManager not reported: %v", known)
	}
	if known[registry.BudgetPredictionsAI] != false {
		t.Fatalf("BudgetPredictionsAI reported: %v", known)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodPost, "/api/transactions",
		`{"label":"Courses","amount":"42,50","category":"Alimentation","date":"2024-03-10","type":"expense"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body)
	}
	created := decode(t, rec)
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatalf("created transaction has no id: %v", created)
	}
	if loc := rec.Header().Get("Location"); loc != "/api/transactions/"+id {
		t.Fatalf("Location = %q", loc)
	}
	if created["amount"] != 42.5 {
		t.Fatalf("amount = %v", created["amount"])
	}

	rec = env.do(t, http.MethodGet, "/api/transactions/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPut, "/api/transactions/"+id, `{"label":"Marché"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body)
	}
	if got := decode(t, rec)["label"]; got != "Marché" {
		t.Fatalf("label = %v", got)
	}

	rec = env.do(t, http.MethodGet, "/api/transactions?month=2024-03", "")
	if got := decode(t, rec)["count"]; got != float64(1) {
		t.Fatalf("list count = %v", got)
	}
	rec = env.do(t, http.MethodGet, "/api/transactions?month=2024-04", "")
	if got := decode(t, rec)["count"]; got != float64(0) {
		t.Fatalf("april count = %v", got)
	}

	rec = env.do(t, http.MethodGet, "/api/stats/monthly?month=2024-03", "")
	stats := decode(t, rec)["stats"].(map[string]any)
	if stats["expenses"] != 42.5 {
		t.Fatalf("monthly expenses = %v", stats["expenses"])
	}

	rec = env.do(t, http.MethodDelete, "/api/transactions/"+id, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/transactions/"+id, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", rec.Code)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	env := newTestEnv(t, Options{})

	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{
			name:    "missing label",
			body:    `{"amount":10,"category":"Loisirs","date":"2024-03-10","type":"expense"}`,
			wantMsg: "Le libellé est obligatoire",
		},
		{
			name:    "zero amount",
			body:    `{"label":"Cinéma","amount":0,"category":"Loisirs","date":"2024-03-10","type":"expense"}`,
			wantMsg: "Le montant doit être positif",
		},
		{
			name:    "missing category",
			body:    `{"label":"Cinéma","amount":10,"date":"2024-03-10","type":"expense"}`,
			wantMsg: "Veuillez sélectionner une catégorie",
		},
		{
			name: "unknown field",
			body: `{"label":"Cinéma","price":10}`,
		},
		{
			name: "malformed",
			body: `{"label":`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/transactions", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
			}
			msg, _ := decode(t, rec)["error"].(string)
			if msg == "" {
				t.Fatal("empty error message")
			}
			if tt.wantMsg != "" && msg != tt.wantMsg {
				t.Fatalf("error = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}

func TestMissingComponentIsUnavailable(t *testing.T) {
	env := newTestEnv(t, Options{})

	for _, path := range []string{"/api/predictions", "/api/dashboard", "/api/search/saved", "/api/categorize/stats"} {
		rec := env.do(t, http.MethodGet, path, "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s status = %d", path, rec.Code)
		}
	}
}

func TestUnknownChartIsNotFound(t *testing.T) {
	env := newTestEnv(t, Options{})

	if rec := env.do(t, http.MethodGet, "/api/charts/pie", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/charts/budget", ""); rec.Code != http.StatusOK {
		t.Fatalf("budget status = %d, body %s", rec.Code, rec.Body)
	}
}

func TestThemeActions(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodPut, "/api/themes/current", `{"theme":"midnight"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("apply status = %d, body %s", rec.Code, rec.Body)
	}
	current := decode(t, rec)["current"].(map[string]any)
	if current["key"] != "midnight" {
		t.Fatalf("current = %v", current["key"])
	}

	if rec := env.do(t, http.MethodPut, "/api/themes/current", `{"theme":"nope"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown theme status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/themes/next", ""); rec.Code != http.StatusOK {
		t.Fatalf("next status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/themes/sideways", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown action status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/themes/import", "not json"); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid import status = %d", rec.Code)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	env := newTestEnv(t, Options{})

	env.do(t, http.MethodPost, "/api/transactions",
		`{"label":"Salaire","amount":2000,"category":"Salaire","date":"2024-03-01","type":"income"}`)

	rec := env.do(t, http.MethodGet, "/api/export", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Fatalf("Content-Disposition = %q", cd)
	}
	backupBody := rec.Body.String()

	if rec := env.do(t, http.MethodPost, "/api/clear", ""); rec.Code != http.StatusOK {
		t.Fatalf("clear status = %d", rec.Code)
	}
	if got := decode(t, env.do(t, http.MethodGet, "/api/transactions", ""))["count"]; got != float64(0) {
		t.Fatalf("count after clear = %v", got)
	}

	rec = env.do(t, http.MethodPost, "/api/import", backupBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("import status = %d, body %s", rec.Code, rec.Body)
	}
	if got := decode(t, rec)["imported"]; got != float64(1) {
		t.Fatalf("imported = %v", got)
	}
	if got := decode(t, env.do(t, http.MethodGet, "/api/transactions", ""))["count"]; got != float64(1) {
		t.Fatalf("count after import = %v", got)
	}

	if rec := env.do(t, http.MethodPost, "/api/import", `{"broken":`); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid import status = %d", rec.Code)
	}
}

func TestRateLimitSparesHealthChecks(t *testing.T) {
	env := newTestEnv(t, Options{RateLimitPerMinute: 1})

	if rec := env.do(t, http.MethodGet, "/api/themes", ""); rec.Code != http.StatusOK {
		t.Fatalf("first status = %d", rec.Code)
	}
	rec := env.do(t, http.MethodGet, "/api/themes", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}
	if rec := env.do(t, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz while limited = %d", rec.Code)
	}
}

func TestIndexAndHeaders(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("index status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("Content-Type = %q", ct)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options = %q", got)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID")
	}

	rec = env.do(t, http.MethodGet, "/api/themes", "")
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("api Cache-Control = %q", got)
	}
}

func TestTraceMethodIsBlocked(t *testing.T) {
	env := newTestEnv(t, Options{})

	if rec := env.do(t, http.MethodTrace, "/api/themes", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
}
