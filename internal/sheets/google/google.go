// Package google mirrors transactions to a Google Sheets tab.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"budgetcal/internal/core"
	ports "budgetcal/internal/sheets"
)

const (
	DefaultSheetName = "Transactions"
	writeAttempts    = 3
)

// Config selects the spreadsheet and the credentials. OAuth client and
// token take precedence over a service account.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	OAuthClientJSON    string
	OAuthClientFile    string
	OAuthTokenJSON     string
	OAuthTokenFile     string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// ConfigFromEnv reads the GOOGLE_* variables.
func ConfigFromEnv() Config {
	env := func(k string) string { return strings.TrimSpace(os.Getenv(k)) }
	return Config{
		SpreadsheetID:      env("GOOGLE_SPREADSHEET_ID"),
		SheetName:          env("GOOGLE_SHEET_NAME"),
		OAuthClientJSON:    env("GOOGLE_OAUTH_CLIENT_JSON"),
		OAuthClientFile:    env("GOOGLE_OAUTH_CLIENT_FILE"),
		OAuthTokenJSON:     env("GOOGLE_OAUTH_TOKEN_JSON"),
		OAuthTokenFile:     env("GOOGLE_OAUTH_TOKEN_FILE"),
		ServiceAccountJSON: env("GOOGLE_SERVICE_ACCOUNT_JSON"),
		ServiceAccountFile: env("GOOGLE_SERVICE_ACCOUNT_FILE"),
	}
}

type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *slog.Logger
	retryDelay    time.Duration

	mu      sync.Mutex
	sheetID *int64
}

// Ensure interface conformance
var (
	_ ports.TransactionSink   = (*Exporter)(nil)
	_ ports.TransactionLister = (*Exporter)(nil)
)

// New creates an exporter authenticated from cfg.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Exporter, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName, logger), nil
}

// NewWithService wraps an existing service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	if sheetName == "" {
		sheetName = DefaultSheetName
	}
	return &Exporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger.With("component", "sheets"),
		retryDelay:    2 * time.Second,
	}
}

func readSecret(inline, file, what string) ([]byte, error) {
	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s file: %w", what, err)
		}
		return b, nil
	}
	return nil, nil
}

func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	clientJSON, err := readSecret(cfg.OAuthClientJSON, cfg.OAuthClientFile, "oauth client")
	if err != nil {
		return nil, err
	}
	if clientJSON != nil {
		return newOAuthService(ctx, cfg, clientJSON)
	}
	credentials, err := readSecret(cfg.ServiceAccountJSON, cfg.ServiceAccountFile, "service account")
	if err != nil {
		return nil, err
	}
	if credentials == nil {
		return nil, errors.New("missing credentials (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_SERVICE_ACCOUNT_JSON)")
	}
	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentials))
	return gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentials),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

func newOAuthService(ctx context.Context, cfg Config, clientJSON []byte) (*gsheet.Service, error) {
	oc, err := googleoauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	tokenJSON, err := readSecret(cfg.OAuthTokenJSON, cfg.OAuthTokenFile, "oauth token")
	if err != nil {
		return nil, err
	}
	if tokenJSON == nil {
		return nil, errors.New("missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)")
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}
	base := context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	return gsheet.NewService(ctx, goption.WithHTTPClient(oc.Client(base, &tok)))
}

// newHTTPClientWithPooling creates an HTTP client tuned for the Sheets API
// with connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// retryable reports rate limiting and server side failures.
func retryable(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
	}
	return false
}

func (e *Exporter) do(ctx context.Context, op string, fn func() error) error {
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(writeAttempts),
		retry.Delay(e.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			e.logger.WarnContext(ctx, "Sheets call failed, retrying", "operation", op, "attempt", n+1, "error", err)
		}),
		retry.LastErrorOnly(true),
	)
}

func (e *Exporter) rng(cols string) string {
	return fmt.Sprintf("%s!%s", e.sheetName, cols)
}

// AppendTransaction adds one row and returns the updated range.
func (e *Exporter) AppendTransaction(ctx context.Context, t core.Transaction) (string, error) {
	if e.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	vr := &gsheet.ValueRange{Values: [][]any{rowValues(t)}}
	var ref string
	err := e.do(ctx, "append", func() error {
		resp, err := e.svc.Spreadsheets.Values.Append(e.spreadsheetID, e.rng("A:F"), vr).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		if resp.Updates != nil {
			ref = resp.Updates.UpdatedRange
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", e.sheetName, err)
	}
	e.logger.DebugContext(ctx, "Appended transaction row", "transaction_id", t.ID, "range", ref)
	return ref, nil
}

func (e *Exporter) sheetGID(ctx context.Context) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sheetID != nil {
		return *e.sheetID, nil
	}
	ss, err := e.svc.Spreadsheets.Get(e.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == e.sheetName {
			id := s.Properties.SheetId
			e.sheetID = &id
			return id, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", e.sheetName)
}

// DeleteTransaction removes every row whose ID column equals id.
func (e *Exporter) DeleteTransaction(ctx context.Context, id string) error {
	if e.svc == nil {
		return errors.New("sheets service not initialized")
	}
	resp, err := e.svc.Spreadsheets.Values.Get(e.spreadsheetID, e.rng("A:F")).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", e.sheetName, err)
	}
	var rows []int64
	for i, row := range resp.Values {
		if rowID(row) == id {
			rows = append(rows, int64(i))
		}
	}
	if len(rows) == 0 {
		return nil
	}
	gid, err := e.sheetGID(ctx)
	if err != nil {
		return err
	}
	// Delete bottom up so earlier indexes stay valid.
	reqs := make([]*gsheet.Request, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		reqs = append(reqs, &gsheet.Request{DeleteDimension: &gsheet.DeleteDimensionRequest{
			Range: &gsheet.DimensionRange{SheetId: gid, Dimension: "ROWS", StartIndex: rows[i], EndIndex: rows[i] + 1},
		}})
	}
	err = e.do(ctx, "delete", func() error {
		_, err := e.svc.Spreadsheets.BatchUpdate(e.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{Requests: reqs}).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("delete rows of %s: %w", id, err)
	}
	return nil
}

// ReplaceAll clears the tab and writes the header followed by txs.
func (e *Exporter) ReplaceAll(ctx context.Context, txs []core.Transaction) error {
	if e.svc == nil {
		return errors.New("sheets service not initialized")
	}
	values := make([][]any, 0, len(txs)+1)
	values = append(values, Header)
	for _, t := range txs {
		values = append(values, rowValues(t))
	}
	err := e.do(ctx, "clear", func() error {
		_, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, e.rng("A:F"), &gsheet.ClearValuesRequest{}).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("clear %s: %w", e.sheetName, err)
	}
	err = e.do(ctx, "update", func() error {
		_, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, e.rng("A1"), &gsheet.ValueRange{Values: values}).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", e.sheetName, err)
	}
	e.logger.InfoContext(ctx, "Replaced sheet contents", "rows", len(txs))
	return nil
}

// ListTransactions reads the tab back, skipping rows that do not parse.
func (e *Exporter) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	if e.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	resp, err := e.svc.Spreadsheets.Values.Get(e.spreadsheetID, e.rng("A:F")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", e.sheetName, err)
	}
	var out []core.Transaction
	for _, row := range resp.Values {
		if t, ok := parseRow(row); ok {
			out = append(out, t)
		}
	}
	return out, nil
}
