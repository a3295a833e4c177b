package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

func TestHeaderAuthenticator(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if _, err := (HeaderAuthenticator{}).Authenticate(req); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}

	req.Header.Set(HeaderUserID, " alice ")
	user, err := (HeaderAuthenticator{}).Authenticate(req)
	if err != nil || user != "alice" {
		t.Fatalf("expected alice, got %q (%v)", user, err)
	}
}

func TestJWTAuthenticator(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	jwks := keyfunc.NewGiven(map[string]keyfunc.GivenKey{
		"k1": keyfunc.NewGivenRSA(&key.PublicKey, keyfunc.GivenKeyOptions{Algorithm: "RS256"}),
	})
	a := newJWTAuthenticator(jwks, "https://issuer.test", "relay")

	sign := func(claims jwt.MapClaims) string {
		token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
		token.Header["kid"] = "k1"
		raw, err := token.SignedString(key)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return raw
	}
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"valid", "Bearer " + sign(jwt.MapClaims{"sub": "alice", "iss": "https://issuer.test", "aud": "relay", "exp": exp}), "alice", false},
		{"wrong issuer", "Bearer " + sign(jwt.MapClaims{"sub": "alice", "iss": "https://evil.test", "aud": "relay", "exp": exp}), "", true},
		{"wrong audience", "Bearer " + sign(jwt.MapClaims{"sub": "alice", "iss": "https://issuer.test", "aud": "other", "exp": exp}), "", true},
		{"expired", "Bearer " + sign(jwt.MapClaims{"sub": "alice", "iss": "https://issuer.test", "aud": "relay", "exp": time.Now().Add(-time.Hour).Unix()}), "", true},
		{"no subject", "Bearer " + sign(jwt.MapClaims{"iss": "https://issuer.test", "aud": "relay", "exp": exp}), "", true},
		{"missing header", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			got, err := a.Authenticate(req)
			if tt.wantErr {
				if !errors.Is(err, ErrUnauthenticated) {
					t.Fatalf("expected ErrUnauthenticated, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("got %q (%v), want %q", got, err, tt.want)
			}
		})
	}
}
