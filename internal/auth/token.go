// Package auth supplies the bearer token attached to sync uploads.
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// TokenProvider returns the current bearer token. An empty token with a nil
// error means no credential is available.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// None is a TokenProvider that never has a token
type None struct{}

// Token implements TokenProvider
func (None) Token(context.Context) (string, error) {
	return "", nil
}

// Static serves a fixed token. When the token is a JWT whose exp claim has
// passed it is treated as absent.
type Static struct {
	token string
	now   func() time.Time
}

// NewStatic creates a provider for a fixed token
func NewStatic(token string) *Static {
	return &Static{token: strings.TrimSpace(token), now: time.Now}
}

// Token implements TokenProvider
func (s *Static) Token(context.Context) (string, error) {
	if s.token == "" {
		return "", nil
	}
	if exp, ok := expiry(s.token); ok && !exp.After(s.now()) {
		log.WithField("expired", exp).Warn("configured sync token has expired")
		return "", nil
	}
	return s.token, nil
}

// expiry reads the exp claim of a JWT without verifying its signature. The
// server verifies; this only avoids sending a token known to be stale.
func expiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Refreshing obtains access tokens through the OAuth2 refresh-token grant,
// reusing each token until it expires.
type Refreshing struct {
	source oauth2.TokenSource
}

// RefreshConfig configures the refresh-token grant
type RefreshConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// NewRefreshing creates a refreshing provider. ctx carries the HTTP client
// used for token requests (oauth2.HTTPClient) and should outlive the provider.
func NewRefreshing(ctx context.Context, cfg RefreshConfig) *Refreshing {
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL},
	}
	src := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	return &Refreshing{source: oauth2.ReuseTokenSource(nil, src)}
}

// Token implements TokenProvider
func (r *Refreshing) Token(context.Context) (string, error) {
	tok, err := r.source.Token()
	if err != nil {
		return "", fmt.Errorf("failed to refresh sync token: %w", err)
	}
	return tok.AccessToken, nil
}
