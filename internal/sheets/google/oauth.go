package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Auth selects how the client authenticates. A service account wins when
// both are configured; an OAuth user token is used otherwise.
type Auth struct {
	ServiceAccountJSON string
	ServiceAccountFile string

	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenJSON  string
	OAuthTokenFile  string
}

func (a Auth) hasServiceAccount() bool {
	return strings.TrimSpace(a.ServiceAccountJSON) != "" || strings.TrimSpace(a.ServiceAccountFile) != ""
}

func (a Auth) hasOAuth() bool {
	return strings.TrimSpace(a.OAuthClientJSON) != "" || strings.TrimSpace(a.OAuthClientFile) != ""
}

// ClientOption resolves a into credentials for New.
func (a Auth) ClientOption(ctx context.Context) (goption.ClientOption, error) {
	if !a.hasServiceAccount() && a.hasOAuth() {
		return OAuthCredentials(ctx, a)
	}
	return Credentials(ctx, a.ServiceAccountJSON, a.ServiceAccountFile)
}

// OAuthConfig reads an installed-app OAuth client, inline JSON first.
func OAuthConfig(clientJSON, clientFile string) (*oauth2.Config, error) {
	b, err := inlineOrFile(clientJSON, clientFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client: %w", err)
	}
	if b == nil {
		return nil, errors.New("missing oauth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)")
	}
	cfg, err := googleoauth.ConfigFromJSON(b, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	return cfg, nil
}

// OAuthCredentials builds a refreshing token source from the client and a
// token saved by finanzas-oauth.
func OAuthCredentials(ctx context.Context, a Auth) (goption.ClientOption, error) {
	cfg, err := OAuthConfig(a.OAuthClientJSON, a.OAuthClientFile)
	if err != nil {
		return nil, err
	}
	b, err := inlineOrFile(a.OAuthTokenJSON, a.OAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth token: %w", err)
	}
	if b == nil {
		return nil, errors.New("missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE, or run finanzas-oauth)")
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}
	// Refreshes outlive the call that built the client.
	return goption.WithTokenSource(cfg.TokenSource(context.WithoutCancel(ctx), &tok)), nil
}

// SaveToken writes tok as JSON readable only by the owner.
func SaveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		f.Close()
		return fmt.Errorf("write token: %w", err)
	}
	return f.Close()
}

func inlineOrFile(inline, file string) ([]byte, error) {
	if s := strings.TrimSpace(inline); s != "" {
		return []byte(s), nil
	}
	if file = strings.TrimSpace(file); file == "" {
		return nil, nil
	}
	return os.ReadFile(file)
}
