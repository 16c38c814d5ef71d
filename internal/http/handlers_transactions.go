package http

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"budgetcal/internal/backup"
	"budgetcal/internal/core"
	applog "budgetcal/internal/log"
	"budgetcal/internal/registry"
	"budgetcal/internal/search"
	"budgetcal/internal/transactions"
)

func (s *Server) transactions(w http.ResponseWriter, r *http.Request) (*transactions.Manager, bool) {
	return component[*transactions.Manager](s, w, r, registry.TransactionManager)
}

// listFilters builds the filter of GET /api/transactions. month and
// start/end are exclusive; month wins when both are sent.
func (s *Server) listFilters(r *http.Request) (core.SearchFilters, error) {
	q := r.URL.Query()
	f := core.DefaultFilters()
	f.Search = sanitizeInput(q.Get("q"))
	if c := sanitizeInput(q.Get("category")); c != "" {
		f.Categories = []string{c}
	}
	if t := strings.TrimSpace(q.Get("type")); t != "" {
		typ := core.TransactionType(t)
		if !typ.IsValid() {
			return f, core.ErrInvalidType
		}
		f.Types = []core.TransactionType{typ}
	}
	if q.Get("month") != "" {
		mp, err := ParseMonthParams(q, s.now())
		if err != nil {
			return f, err
		}
		f.DateRange.Start, f.DateRange.End = mp.Bounds()
		return f, nil
	}
	start, end, err := ParseDateRange(q)
	if err != nil {
		return f, err
	}
	f.DateRange = core.DateRange{Start: start, End: end}
	return f, nil
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	tm, ok := s.transactions(w, r)
	if !ok {
		return
	}
	f, err := s.listFilters(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	all, err := tm.All(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	txs := search.Apply(all, f)
	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": txs,
		"count":        len(txs),
	})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	tm, ok := s.transactions(w, r)
	if !ok {
		return
	}
	s.limitBody(w, r)
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := tm.Add(r.Context(), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+t.ID).
		Data(t).
		Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tm, ok := s.transactions(w, r)
	if !ok {
		return
	}
	t, err := tm.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	tm, ok := s.transactions(w, r)
	if !ok {
		return
	}
	s.limitBody(w, r)
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := tm.Update(r.Context(), r.PathValue("id"), req.patch())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	tm, ok := s.transactions(w, r)
	if !ok {
		return
	}
	if err := tm.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	tm, ok := s.transactions(w, r)
	if !ok {
		return
	}
	used, err := tm.UniqueCategories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	years, err := tm.Years(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"used":  used,
		"years": years,
	})
}

func (s *Server) handleMonthlyStats(w http.ResponseWriter, r *http.Request) {
	tm, ok := s.transactions(w, r)
	if !ok {
		return
	}
	mp, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	stats, err := tm.MonthlyStats(r.Context(), mp.Year, mp.Month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"month": mp.Key(),
		"stats": stats,
	})
}

func (s *Server) handleTotalStats(w http.ResponseWriter, r *http.Request) {
	tm, ok := s.transactions(w, r)
	if !ok {
		return
	}
	stats, err := tm.TotalStats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCategoryStats(w http.ResponseWriter, r *http.Request) {
	tm, ok := s.transactions(w, r)
	if !ok {
		return
	}
	start, end, err := ParseDateRange(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	cats, err := tm.CategoryStats(r.Context(), start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": cats})
}

func (s *Server) handleGetFixedExpenses(w http.ResponseWriter, r *http.Request) {
	tm, ok := s.transactions(w, r)
	if !ok {
		return
	}
	fe, err := tm.FixedExpenses(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	total, err := tm.FixedExpensesTotal(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"fixedExpenses": fe,
		"total":         total,
	})
}

// handleUpdateFixedExpenses accepts an object of key to amount, where the
// amount is a number or a decimal string.
func (s *Server) handleUpdateFixedExpenses(w http.ResponseWriter, r *http.Request) {
	tm, ok := s.transactions(w, r)
	if !ok {
		return
	}
	s.limitBody(w, r)
	var body map[string]any
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	raw := make(map[string]string, len(body))
	for k, v := range body {
		raw[k] = stringValue(v)
	}
	fe, err := tm.UpdateFixedExpenses(r.Context(), raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fixedExpenses": fe})
}

// handleExport downloads the full backup, JSON unless ?format=yaml.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	tm, ok := s.transactions(w, r)
	if !ok {
		return
	}
	format, err := backup.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, r, badRequest("%v", err))
		return
	}
	snap, err := tm.Export(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := backup.Encode(&buf, snap, format); err != nil {
		writeError(w, r, err)
		return
	}
	contentType := "application/json; charset=utf-8"
	if format == backup.YAML {
		contentType = "application/yaml; charset=utf-8"
	}
	NewJSONResponse().
		Body(contentType, buf.Bytes()).
		Attachment(backup.FileName(s.now(), format)).
		Write(w)
}

// handleImport restores a backup sent as the raw body. ?filename= or the
// content type hints the format.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	tm, ok := s.transactions(w, r)
	if !ok {
		return
	}
	s.limitBody(w, r)
	name := r.URL.Query().Get("filename")
	if name == "" && strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		name = "import.yaml"
	}
	snap, err := backup.Decode(r.Body, name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := tm.Restore(r.Context(), snap); err != nil {
		writeError(w, r, err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Backup imported",
		applog.NewFields().WithOperation(applog.OpImport).ToSlice()...)
	writeJSON(w, http.StatusOK, map[string]any{
		"imported": len(snap.Transactions),
	})
}

// handleClear deletes every transaction, or all user data with ?all=true.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	tm, ok := s.transactions(w, r)
	if !ok {
		return
	}
	all, _ := strconv.ParseBool(r.URL.Query().Get("all"))
	var err error
	if all {
		err = tm.ClearAll(r.Context())
	} else {
		err = tm.Clear(r.Context())
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cleared": true, "all": all})
}
