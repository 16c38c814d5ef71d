// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// month and range query parameters, JSON or form bodies, and transaction
// payloads.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"budgetcal/internal/core"
)

// errBadRequest marks malformed requests; it maps to 400.
var errBadRequest = errors.New("Requête invalide")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// Key returns YYYY-MM.
func (p MonthParams) Key() string { return core.MonthKey(p.Year, p.Month) }

// Bounds returns the first and last day of the month as YYYY-MM-DD.
func (p MonthParams) Bounds() (start, end string) {
	return core.NewDate(p.Year, p.Month, 1).String(),
		core.NewDate(p.Year, p.Month, core.DaysIn(p.Year, p.Month)).String()
}

// ParseMonthParams reads ?month=YYYY-MM, or ?year=&month= with a numeric
// month. Missing values default to the month of now.
func ParseMonthParams(query url.Values, now time.Time) (MonthParams, error) {
	params := MonthParams{Year: now.Year(), Month: int(now.Month())}

	month := strings.TrimSpace(query.Get("month"))
	if strings.Contains(month, "-") {
		y, m, err := core.ParseMonthKey(month)
		if err != nil {
			return MonthParams{}, badRequest("mois %q", month)
		}
		return MonthParams{Year: y, Month: m}, nil
	}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 {
			return MonthParams{}, badRequest("année %q", v)
		}
		params.Year = y
	}
	if month != "" {
		m, err := strconv.Atoi(month)
		if err != nil || m < 1 || m > 12 {
			return MonthParams{}, badRequest("mois %q", month)
		}
		params.Month = m
	}
	return params, nil
}

// ParseDateRange reads ?start= and ?end=. Both are optional YYYY-MM-DD
// dates; start must not be after end.
func ParseDateRange(query url.Values) (start, end string, err error) {
	start = strings.TrimSpace(query.Get("start"))
	end = strings.TrimSpace(query.Get("end"))
	for _, v := range []string{start, end} {
		if v == "" {
			continue
		}
		if _, perr := core.ParseDate(v); perr != nil {
			return "", "", badRequest("date %q", v)
		}
	}
	if start != "" && end != "" && start > end {
		return "", "", badRequest("période %s..%s", start, end)
	}
	return start, end, nil
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	p.body, p.err = io.ReadAll(r.Body)
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	// Try JSON first if content looks like JSON
	if p.body[0] == '{' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = badRequest("JSON: %v", err)
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	if p.err != nil {
		p.err = badRequest("formulaire: %v", p.err)
	}
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
		return ""
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

// Has reports whether key is present in the body.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	return p.formData != nil && p.formData.Has(key)
}

// GetRaw returns the raw body bytes.
func (p *RequestBodyParser) GetRaw() []byte {
	return p.body
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts an interface{} to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// decodeJSON decodes the body into v, rejecting unknown fields and
// trailing data.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("corps vide")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return badRequest("corps trop volumineux")
		}
		// Domain decode errors keep their own status.
		if errors.Is(err, core.ErrInvalidAmount) || errors.Is(err, core.ErrInvalidDate) {
			return err
		}
		return badRequest("JSON: %v", err)
	}
	if dec.More() {
		return badRequest("données après le JSON")
	}
	return nil
}

// transactionRequest is the body of POST and PUT /api/transactions. Absent
// fields stay nil so PUT only changes what was sent.
type transactionRequest struct {
	Label    *string               `json:"label"`
	Amount   *core.Money           `json:"amount"`
	Category *string               `json:"category"`
	Date     *core.Date            `json:"date"`
	Type     *core.TransactionType `json:"type"`
}

func (req transactionRequest) input() core.TransactionInput {
	var in core.TransactionInput
	if req.Label != nil {
		in.Label = sanitizeInput(*req.Label)
	}
	if req.Amount != nil {
		in.Amount = *req.Amount
	}
	if req.Category != nil {
		in.Category = sanitizeInput(*req.Category)
	}
	if req.Date != nil {
		in.Date = *req.Date
	}
	if req.Type != nil {
		in.Type = *req.Type
	}
	return in
}

func (req transactionRequest) patch() core.TransactionPatch {
	p := core.TransactionPatch{
		Amount: req.Amount,
		Date:   req.Date,
		Type:   req.Type,
	}
	if req.Label != nil {
		label := sanitizeInput(*req.Label)
		p.Label = &label
	}
	if req.Category != nil {
		cat := sanitizeInput(*req.Category)
		p.Category = &cat
	}
	return p
}
