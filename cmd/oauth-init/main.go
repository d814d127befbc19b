// Command oauth-init runs the one-time OAuth consent flow for the Sheets
// mirror and stores the resulting token.
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

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/sheets/v4"

	"fintrack/internal/cli"
	"fintrack/internal/config"
	applog "fintrack/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()
	logger := cli.SetupLogger(cfg, applog.ComponentSheets)

	if err := run(cfg, logger); err != nil {
		logger.Error("OAuth setup failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *applog.Logger) error {
	clientJSON, err := clientCredentials(cfg)
	if err != nil {
		return err
	}
	oauthCfg, err := google.ConfigFromJSON(clientJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return fmt.Errorf("oauth config: %w", err)
	}

	// The OAuth client must list this redirect URI.
	redirectPort := os.Getenv("OAUTH_REDIRECT_PORT")
	if redirectPort == "" {
		redirectPort = "8085"
	}
	oauthCfg.RedirectURL = "http://localhost:" + redirectPort + "/callback"

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	mux := http.NewServeMux()
	srv := &http.Server{Addr: ":" + redirectPort, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if errStr := r.URL.Query().Get("error"); errStr != "" {
			http.Error(w, "OAuth error: "+errStr, http.StatusBadRequest)
			errCh <- fmt.Errorf("authorization denied: %s", errStr)
			return
		}
		fmt.Fprintln(w, "You may close this window and return to the terminal.")
		codeCh <- r.URL.Query().Get("code")
	})
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("callback server: %w", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("Open this URL to authorize:\n%s\n", oauthCfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Minute):
		return errors.New("authorization timed out")
	case <-ctx.Done():
		return errors.New("interrupted")
	}

	tok, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("token exchange: %w", err)
	}

	outFile := cfg.GoogleOAuthTokenFile
	if outFile == "" {
		outFile = "token.json"
	}
	if err := writeToken(outFile, tok); err != nil {
		return err
	}
	logger.Info("Saved OAuth token", "path", outFile)
	return nil
}

func clientCredentials(cfg *config.Config) ([]byte, error) {
	switch {
	case cfg.GoogleOAuthClientJSON != "":
		return []byte(cfg.GoogleOAuthClientJSON), nil
	case cfg.GoogleOAuthClientFile != "":
		b, err := os.ReadFile(cfg.GoogleOAuthClientFile)
		if err != nil {
			return nil, fmt.Errorf("read client file: %w", err)
		}
		return b, nil
	}
	return nil, errors.New("set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE")
}

func writeToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}
