package http

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"budgetcal/internal/categorize"
	"budgetcal/internal/core"
	"budgetcal/internal/predictions"
	"budgetcal/internal/registry"
	"budgetcal/internal/search"
)

// handleSuggestCategory reads label, amount, type and an optional limit
// from a JSON or form body.
func (s *Server) handleSuggestCategory(w http.ResponseWriter, r *http.Request) {
	engine, ok := component[*categorize.Engine](s, w, r, CategorizerComponent)
	if !ok {
		return
	}
	s.limitBody(w, r)
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeError(w, r, err)
		return
	}
	label := p.Get("label")
	if label == "" {
		writeError(w, r, core.ErrLabelRequired)
		return
	}
	amount := core.ParseAmountOrZero(p.Get("amount"))
	typ := core.Expense
	if t := p.Get("type"); t != "" {
		typ = core.TransactionType(t)
		if !typ.IsValid() {
			writeError(w, r, core.ErrInvalidType)
			return
		}
	}
	limit := 1
	if v := p.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, r, badRequest("limit %q", v))
			return
		}
		limit = n
	}

	if limit == 1 {
		writeJSON(w, http.StatusOK, map[string]any{
			"suggestion": engine.Suggest(r.Context(), label, amount, typ),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"suggestions": engine.Suggestions(r.Context(), label, amount, typ, limit),
	})
}

func (s *Server) handleLearnCategory(w http.ResponseWriter, r *http.Request) {
	engine, ok := component[*categorize.Engine](s, w, r, CategorizerComponent)
	if !ok {
		return
	}
	s.limitBody(w, r)
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeError(w, r, err)
		return
	}
	label, category := p.Get("label"), p.Get("category")
	if label == "" {
		writeError(w, r, core.ErrLabelRequired)
		return
	}
	if category == "" {
		writeError(w, r, core.ErrCategoryRequired)
		return
	}
	if err := engine.Learn(r.Context(), label, category, p.Get("suggested")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"learned": true})
}

func (s *Server) handleCategorizeStats(w http.ResponseWriter, r *http.Request) {
	engine, ok := component[*categorize.Engine](s, w, r, CategorizerComponent)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, engine.Statistics())
}

func (s *Server) predictions(w http.ResponseWriter, r *http.Request) (*predictions.Engine, bool) {
	return component[*predictions.Engine](s, w, r, registry.BudgetPredictionsAI)
}

func parsePeriod(r *http.Request) (predictions.Period, error) {
	switch p := predictions.Period(strings.TrimSpace(r.URL.Query().Get("period"))); p {
	case "":
		return predictions.PeriodMonth, nil
	case predictions.PeriodWeek, predictions.PeriodMonth, predictions.PeriodQuarter, predictions.PeriodYear:
		return p, nil
	default:
		return "", badRequest("période %q", p)
	}
}

func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.predictions(w, r)
	if !ok {
		return
	}
	period, err := parsePeriod(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := engine.FinancialPredictions(r.Context(), period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.predictions(w, r)
	if !ok {
		return
	}
	period, err := parsePeriod(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	anomalies, err := engine.DetectAnomalies(r.Context(), period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"period": period, "anomalies": anomalies})
}

func (s *Server) handleRecurring(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.predictions(w, r)
	if !ok {
		return
	}
	recurring, err := engine.RecurringExpenses(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recurring": recurring})
}

func (s *Server) handleQuality(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.predictions(w, r)
	if !ok {
		return
	}
	quality, err := engine.DataQuality(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quality)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) (*search.Manager, bool) {
	return component[*search.Manager](s, w, r, registry.AdvancedSearchManager)
}

func writeResults(w http.ResponseWriter, txs []core.Transaction) {
	writeJSON(w, http.StatusOK, map[string]any{
		"results": txs,
		"count":   len(txs),
	})
}

// decodeFilters reads a SearchFilters body. An empty body means the
// default filters.
func decodeFilters(r *http.Request) (core.SearchFilters, error) {
	f := core.DefaultFilters()
	if r.ContentLength == 0 {
		return f, nil
	}
	if err := decodeJSON(r, &f); err != nil {
		return f, err
	}
	for _, t := range f.Types {
		if !t.IsValid() {
			return f, core.ErrInvalidType
		}
	}
	return f, nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	sm, ok := s.search(w, r)
	if !ok {
		return
	}
	s.limitBody(w, r)
	f, err := decodeFilters(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	txs, err := sm.Search(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResults(w, txs)
}

func (s *Server) handleQuickFilter(w http.ResponseWriter, r *http.Request) {
	sm, ok := s.search(w, r)
	if !ok {
		return
	}
	txs, err := sm.QuickFilter(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResults(w, txs)
}

func (s *Server) handleListSavedFilters(w http.ResponseWriter, r *http.Request) {
	sm, ok := s.search(w, r)
	if !ok {
		return
	}
	saved, err := sm.SavedFilters(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"filters": saved})
}

// saveFilterRequest saves Filters under name, or the current filters when
// Filters is absent.
type saveFilterRequest struct {
	Name    string              `json:"name"`
	Filters *core.SearchFilters `json:"filters"`
}

func (s *Server) handleSaveFilter(w http.ResponseWriter, r *http.Request) {
	sm, ok := s.search(w, r)
	if !ok {
		return
	}
	s.limitBody(w, r)
	var req saveFilterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, r, search.ErrFilterNameRequired)
		return
	}
	filters := sm.Filters()
	if req.Filters != nil {
		for _, t := range req.Filters.Types {
			if !t.IsValid() {
				writeError(w, r, core.ErrInvalidType)
				return
			}
		}
		filters = *req.Filters
	}
	sf, err := sm.SaveFilters(r.Context(), sanitizeInput(req.Name), filters)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sf)
}

func (s *Server) handleLoadFilter(w http.ResponseWriter, r *http.Request) {
	sm, ok := s.search(w, r)
	if !ok {
		return
	}
	txs, err := sm.LoadFilter(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResults(w, txs)
}

func (s *Server) handleDeleteFilter(w http.ResponseWriter, r *http.Request) {
	sm, ok := s.search(w, r)
	if !ok {
		return
	}
	if err := sm.DeleteFilter(r.Context(), r.PathValue("name")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSearchHistory(w http.ResponseWriter, r *http.Request) {
	sm, ok := s.search(w, r)
	if !ok {
		return
	}
	history, err := sm.History(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (s *Server) handleSearchAnalytics(w http.ResponseWriter, r *http.Request) {
	sm, ok := s.search(w, r)
	if !ok {
		return
	}
	analytics, err := sm.Analytics(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

// handleSearchExport runs the posted filters and downloads the results as
// CSV.
func (s *Server) handleSearchExport(w http.ResponseWriter, r *http.Request) {
	sm, ok := s.search(w, r)
	if !ok {
		return
	}
	s.limitBody(w, r)
	f, err := decodeFilters(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	txs, err := sm.Search(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := search.ExportCSV(&buf, txs); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Body("text/csv; charset=utf-8", buf.Bytes()).
		Attachment(search.ExportFileName(s.now())).
		Write(w)
}
