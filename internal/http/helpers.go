package http

import (
	"errors"
	"fmt"
	"net/http"

	"budgetcal/internal/backup"
	"budgetcal/internal/core"
	"budgetcal/internal/dashboard"
	applog "budgetcal/internal/log"
	"budgetcal/internal/registry"
	"budgetcal/internal/search"
	"budgetcal/internal/storage"
	"budgetcal/internal/themes"
	"budgetcal/internal/transactions"
)

// errUnavailable marks a component missing from the namespace.
var errUnavailable = errors.New("Composant non disponible")

var badRequestErrors = []error{
	errBadRequest,
	core.ErrLabelRequired,
	core.ErrAmountNotPositive,
	core.ErrCategoryRequired,
	core.ErrDateRequired,
	core.ErrInvalidType,
	core.ErrInvalidAmount,
	core.ErrInvalidDate,
	backup.ErrInvalidFile,
	transactions.ErrInvalidFile,
	search.ErrFilterNameRequired,
	themes.ErrUnknownTheme,
	dashboard.ErrUnknownWidget,
	dashboard.ErrInvalidInterval,
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, transactions.ErrNotFound),
		errors.Is(err, storage.ErrNotFound),
		errors.Is(err, search.ErrUnknownQuickFilter):
		return http.StatusNotFound
	case errors.Is(err, errUnavailable),
		errors.Is(err, dashboard.ErrPredictionsUnavailable),
		errors.Is(err, dashboard.ErrChartsUnavailable):
		return http.StatusServiceUnavailable
	}
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

// writeError writes err as {"error": ...}. Internal errors are logged and
// their details are not sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.NewFields().WithError(err).ToSlice()...)
		msg = "Erreur interne du serveur"
	}
	ErrorResponse(status, msg).Write(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewJSONResponse().Status(status).Data(v).Write(w)
}

// component resolves a named component of type T from the namespace and
// writes a 503 when it is missing.
func component[T any](s *Server, w http.ResponseWriter, r *http.Request, name string) (T, bool) {
	c, ok := registry.Typed[T](s.ns, name)
	if !ok {
		writeError(w, r, fmt.Errorf("%w: %s", errUnavailable, name))
	}
	return c, ok
}
