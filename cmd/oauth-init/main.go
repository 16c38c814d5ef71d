// Command oauth-init runs the OAuth consent flow once and stores the token
// used by the Sheets exporter.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/sheets/v4"

	"budgetcal/internal/cli"
	applog "budgetcal/internal/log"
	gsheet "budgetcal/internal/sheets/google"
)

func main() {
	cli.LoadEnvFile()
	logger := applog.New(applog.Config{Component: applog.ComponentSheets, Output: os.Stderr})

	if err := run(logger); err != nil {
		logger.Error("OAuth initialisation failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *applog.Logger) error {
	gcfg := gsheet.ConfigFromEnv()
	var (
		b   []byte
		err error
	)
	switch {
	case gcfg.OAuthClientJSON != "":
		b = []byte(gcfg.OAuthClientJSON)
	case gcfg.OAuthClientFile != "":
		if b, err = os.ReadFile(gcfg.OAuthClientFile); err != nil {
			return fmt.Errorf("read client file: %w", err)
		}
	default:
		return errors.New("set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE")
	}

	cfg, err := google.ConfigFromJSON(b, sheets.SpreadsheetsScope)
	if err != nil {
		return fmt.Errorf("oauth config: %w", err)
	}

	// The OAuth client must list http://localhost:<port>/callback as an
	// authorized redirect URI.
	redirectPort := os.Getenv("OAUTH_REDIRECT_PORT")
	if redirectPort == "" {
		redirectPort = "8085"
	}
	cfg.RedirectURL = "http://localhost:" + redirectPort + "/callback"
	state := uuid.NewString()

	codeCh := make(chan string, 1)
	mux := http.NewServeMux()
	srv := &http.Server{Addr: ":" + redirectPort, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if errStr := q.Get("error"); errStr != "" {
			http.Error(w, "OAuth error: "+errStr, http.StatusBadRequest)
			return
		}
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "Autorisation reçue, vous pouvez fermer cette fenêtre.")
		select {
		case codeCh <- q.Get("code"):
		default:
		}
	})
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Callback server failed", "error", err)
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	fmt.Printf("Open this URL to authorize:\n%s\n", cfg.AuthCodeURL(state, oauth2.AccessTypeOffline))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	var code string
	select {
	case code = <-codeCh:
	case <-time.After(5 * time.Minute):
		return errors.New("authorization timed out")
	case <-sigCh:
		return errors.New("interrupted")
	}

	tok, err := cfg.Exchange(context.Background(), code)
	if err != nil {
		return fmt.Errorf("token exchange: %w", err)
	}
	outFile := gcfg.OAuthTokenFile
	if outFile == "" {
		outFile = "token.json"
	}
	f, err := os.OpenFile(outFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	logger.Info("OAuth token saved", "file", outFile)
	return nil
}
