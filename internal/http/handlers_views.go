package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"budgetcal/internal/calendar"
	"budgetcal/internal/charts"
	"budgetcal/internal/dashboard"
	"budgetcal/internal/registry"
	"budgetcal/internal/themes"
)

// handleCalendar moves the calendar to ?month= (the current month when
// absent) and returns its grid.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	cal, ok := component[*calendar.Calendar](s, w, r, CalendarComponent)
	if !ok {
		return
	}
	mp, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.calendarMu.Lock()
	cal.GoTo(mp.Year, mp.Month)
	view, err := cal.View(r.Context())
	s.calendarMu.Unlock()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleCalendarExport downloads the month of ?month= as JSON, or CSV with
// ?format=csv.
func (s *Server) handleCalendarExport(w http.ResponseWriter, r *http.Request) {
	cal, ok := component[*calendar.Calendar](s, w, r, CalendarComponent)
	if !ok {
		return
	}
	mp, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	format := strings.ToLower(r.URL.Query().Get("format"))
	contentType, ext := "application/json; charset=utf-8", "json"
	switch format {
	case "", "json":
	case "csv":
		contentType, ext = "text/csv; charset=utf-8", "csv"
	default:
		writeError(w, r, badRequest("format %q", format))
		return
	}

	var buf bytes.Buffer
	s.calendarMu.Lock()
	cal.GoTo(mp.Year, mp.Month)
	err = cal.WriteExport(r.Context(), &buf, format)
	s.calendarMu.Unlock()
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Body(contentType, buf.Bytes()).
		Attachment("calendrier_" + mp.Key() + "." + ext).
		Write(w)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	c, ok := component[*charts.Charts](s, w, r, registry.ChartsManager)
	if !ok {
		return
	}
	ctx := r.Context()
	var (
		data any
		err  error
	)
	switch name := r.PathValue("chart"); name {
	case "budget":
		data, err = c.BudgetSeries(ctx)
	case "categories":
		data, err = c.CategoryBreakdown(ctx)
	case "bars":
		data, err = c.ModernBars(ctx)
	case "matrix":
		data, err = c.Matrix3D(ctx)
	case "validate":
		data = c.Validate(ctx)
	default:
		NotFoundError("Graphique inconnu: " + name).Write(w)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chart": r.PathValue("chart"), "data": data})
}

func (s *Server) themes(w http.ResponseWriter, r *http.Request) (*themes.Manager, bool) {
	return component[*themes.Manager](s, w, r, registry.ThemeManager)
}

func (s *Server) handleThemes(w http.ResponseWriter, r *http.Request) {
	tm, ok := s.themes(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"current": tm.Current(),
		"themes":  tm.List(),
		"groups":  tm.ByCategory(),
	})
}

// handleApplyTheme reads {"theme": key} or theme=key.
func (s *Server) handleApplyTheme(w http.ResponseWriter, r *http.Request) {
	tm, ok := s.themes(w, r)
	if !ok {
		return
	}
	s.limitBody(w, r)
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeError(w, r, err)
		return
	}
	key := p.Get("theme")
	if key == "" {
		writeError(w, r, badRequest("thème manquant"))
		return
	}
	theme, err := tm.Apply(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"current": theme})
}

func (s *Server) handleThemeAction(w http.ResponseWriter, r *http.Request) {
	tm, ok := s.themes(w, r)
	if !ok {
		return
	}
	var step func(context.Context) (themes.Theme, error)
	switch action := r.PathValue("action"); action {
	case "next":
		step = tm.Next
	case "previous":
		step = tm.Previous
	case "toggle-dark":
		step = tm.ToggleDark
	case "import":
		s.importThemeConfig(w, r, tm)
		return
	default:
		NotFoundError("Action inconnue: " + action).Write(w)
		return
	}
	theme, err := step(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"current": theme})
}

func (s *Server) handleExportThemeConfig(w http.ResponseWriter, r *http.Request) {
	tm, ok := s.themes(w, r)
	if !ok {
		return
	}
	data, err := tm.ExportConfig()
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Body("application/json; charset=utf-8", data).
		Attachment("theme-config.json").
		Write(w)
}

func (s *Server) importThemeConfig(w http.ResponseWriter, r *http.Request, tm *themes.Manager) {
	s.limitBody(w, r)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, r, badRequest("%v", err))
		return
	}
	if !json.Valid(data) {
		writeError(w, r, badRequest("configuration de thème invalide"))
		return
	}
	if err := tm.ImportConfig(r.Context(), data); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"current": tm.Current()})
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) (*dashboard.Dashboard, bool) {
	return component[*dashboard.Dashboard](s, w, r, registry.EnhancedDashboard)
}

// handleDashboard returns the last refreshed snapshot, refreshing first
// when none exists yet or ?refresh=true.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	snap, ok := d.Snapshot()
	if !ok || r.URL.Query().Get("refresh") == "true" {
		var err error
		if snap, err = d.Refresh(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot":  snap,
		"widgets":   d.Widgets(),
		"diagnosis": d.Diagnose(),
	})
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	insights, err := d.Insights(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"insights": insights})
}

// handleAlerts returns the alerts; ?critical=true keeps the critical ones.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	alerts, err := d.Alerts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if r.URL.Query().Get("critical") == "true" {
		alerts = dashboard.CriticalAlerts(alerts)
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

func (s *Server) handleDashboardExport(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := d.Export(r.Context(), &buf); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Body("application/json; charset=utf-8", buf.Bytes()).
		Attachment(dashboard.ExportFileName(s.now())).
		Write(w)
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d.Preferences())
}

func (s *Server) handleSavePreferences(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	s.limitBody(w, r)
	var prefs dashboard.Preferences
	if err := decodeJSON(r, &prefs); err != nil {
		writeError(w, r, err)
		return
	}
	if err := d.SavePreferences(r.Context(), prefs); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d.Preferences())
}
