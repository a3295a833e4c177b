package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// HeaderUserID carries the caller identity when JWT auth is disabled.
const HeaderUserID = "X-User-ID"

// ErrUnauthenticated is returned when a request carries no usable identity.
var ErrUnauthenticated = errors.New("unauthenticated")

// Authenticator resolves the calling user from a request.
type Authenticator interface {
	Authenticate(r *http.Request) (string, error)
}

// HeaderAuthenticator trusts the X-User-ID header. Use it behind a gateway
// that already authenticated the caller, or in development.
type HeaderAuthenticator struct{}

// Authenticate returns the header value.
func (HeaderAuthenticator) Authenticate(r *http.Request) (string, error) {
	userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if userID == "" {
		return "", fmt.Errorf("%w: missing %s header", ErrUnauthenticated, HeaderUserID)
	}
	return userID, nil
}

// JWTAuthenticator validates bearer tokens against a JWKS endpoint and uses
// the subject claim as the user id.
type JWTAuthenticator struct {
	jwks     *keyfunc.JWKS
	issuer   string
	audience string
	leeway   time.Duration
}

// NewJWTAuthenticator fetches the key set and keeps it refreshed until ctx is
// cancelled.
func NewJWTAuthenticator(ctx context.Context, jwksURL, issuer, audience string, log zerolog.Logger) (*JWTAuthenticator, error) {
	if jwksURL == "" {
		return nil, errors.New("jwks url is required")
	}
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx: ctx,
		RefreshErrorHandler: func(err error) {
			log.Error().Err(err).Str("jwks_url", jwksURL).Msg("jwks refresh failed")
		},
		RefreshInterval:   time.Hour,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	return newJWTAuthenticator(jwks, issuer, audience), nil
}

func newJWTAuthenticator(jwks *keyfunc.JWKS, issuer, audience string) *JWTAuthenticator {
	return &JWTAuthenticator{jwks: jwks, issuer: issuer, audience: audience, leeway: 30 * time.Second}
}

// Authenticate validates the Authorization header.
func (a *JWTAuthenticator) Authenticate(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%w: missing bearer token", ErrUnauthenticated)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(a.issuer),
		jwt.WithLeeway(a.leeway),
		jwt.WithExpirationRequired(),
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}

	claims := jwt.RegisteredClaims{}
	if _, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &claims, a.jwks.Keyfunc, opts...); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}
	return claims.Subject, nil
}
