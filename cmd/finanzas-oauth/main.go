package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"finanzas/internal/cli"
	"finanzas/internal/config"
	"finanzas/internal/log"
	gsheet "finanzas/internal/sheets/google"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const authorizeTimeout = 5 * time.Minute

// finanzas-oauth runs the installed-app consent flow once and stores the
// refresh token used when no service account is configured.
func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Stderr, log.ComponentCLI)
	if err := run(config.Load(), logger); err != nil {
		logger.Error("Authorization failed", log.FieldError, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *log.Logger) error {
	oauthCfg, err := gsheet.OAuthConfig(cfg.GoogleOAuthClientJSON, cfg.GoogleOAuthClientFile)
	if err != nil {
		return err
	}
	// The OAuth client must list this URI among its authorized redirect URIs.
	oauthCfg.RedirectURL = "http://localhost:" + cfg.OAuthRedirectPort + "/callback"
	state := uuid.NewString()

	type result struct {
		code string
		err  error
	}
	results := make(chan result, 1)
	deliver := func(r result) {
		select {
		case results <- r:
		default:
		}
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("error") != "":
			http.Error(w, "OAuth error: "+q.Get("error"), http.StatusBadRequest)
			deliver(result{err: fmt.Errorf("consent denied: %s", q.Get("error"))})
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
		default:
			fmt.Fprintln(w, "You may close this window and return to the terminal.")
			deliver(result{code: q.Get("code")})
		}
	})
	srv := &http.Server{Addr: ":" + cfg.OAuthRedirectPort, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			deliver(result{err: fmt.Errorf("callback server: %w", err)})
		}
	}()
	defer srv.Close()

	fmt.Printf("Open this URL to authorize:\n%s\n", oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, authorizeTimeout)
	defer cancel()

	var res result
	select {
	case res = <-results:
	case <-ctx.Done():
		return fmt.Errorf("waiting for authorization: %w", ctx.Err())
	}
	if res.err != nil {
		return res.err
	}

	tok, err := oauthCfg.Exchange(ctx, res.code)
	if err != nil {
		return fmt.Errorf("token exchange: %w", err)
	}
	out := cfg.GoogleOAuthTokenFile
	if out == "" {
		out = "token.json"
	}
	if err := gsheet.SaveToken(out, tok); err != nil {
		return err
	}
	logger.Info("Saved OAuth token", "path", out)
	return nil
}
