package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	jwt "github.com/golang-jwt/jwt/v4"
)

type oidcFixture struct {
	validator *OIDCValidator
	cache     *JWKSCache
	fetches   *atomic.Int32
	sign      func(jwt.MapClaims) string
}

func newOIDCFixture(t *testing.T) oidcFixture {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	jwk := jose.JSONWebKey{Key: &key.PublicKey, KeyID: "svc-key", Algorithm: "RS256", Use: "sig"}

	fetches := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		w.Header().Set("Cache-Control", "public, max-age=600")
		_ = json.NewEncoder(w).Encode(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{jwk}})
	}))
	t.Cleanup(server.Close)

	now := time.Unix(1_700_000_000, 0)
	original := jwt.TimeFunc
	jwt.TimeFunc = func() time.Time { return now }
	t.Cleanup(func() { jwt.TimeFunc = original })

	cache := NewJWKSCache(server.URL, WithJWKSClock(func() time.Time { return now }))
	return oidcFixture{
		validator: NewOIDCValidator(cache, nil),
		cache:     cache,
		fetches:   fetches,
		sign: func(extra jwt.MapClaims) string {
			claims := jwt.MapClaims{
				"aud":   "https://api.personaliza.test",
				"iss":   "https://accounts.google.com",
				"sub":   "scheduler",
				"email": "scheduler@project.iam.gserviceaccount.com",
				"exp":   float64(now.Add(time.Hour).Unix()),
				"iat":   float64(now.Unix()),
			}
			for k, v := range extra {
				claims[k] = v
			}
			token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
			token.Header["kid"] = "svc-key"
			signed, err := token.SignedString(key)
			if err != nil {
				t.Fatalf("sign token: %v", err)
			}
			return signed
		},
	}
}

func serveOIDC(fx oidcFixture, audience, token string) *httptest.ResponseRecorder {
	handler := fx.validator.RequireOIDC(audience, []string{"https://accounts.google.com"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := ServiceIdentityFromContext(r.Context()); !ok {
				w.WriteHeader(http.StatusTeapot)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/payments/reconcile", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRequireOIDC_AcceptsValidToken(t *testing.T) {
	fx := newOIDCFixture(t)
	rec := serveOIDC(fx, "https://api.personaliza.test", fx.sign(nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = serveOIDC(fx, "https://api.personaliza.test", fx.sign(nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on second call, got %d", rec.Code)
	}
	if got := fx.fetches.Load(); got != 1 {
		t.Fatalf("expected keys to be cached, fetched %d times", got)
	}
}

func TestRequireOIDC_RejectsAudienceMismatch(t *testing.T) {
	fx := newOIDCFixture(t)
	rec := serveOIDC(fx, "https://other.service", fx.sign(nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireOIDC_RejectsIssuerMismatch(t *testing.T) {
	fx := newOIDCFixture(t)
	rec := serveOIDC(fx, "https://api.personaliza.test", fx.sign(jwt.MapClaims{"iss": "https://evil.example"}))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireOIDC_MissingToken(t *testing.T) {
	fx := newOIDCFixture(t)
	rec := serveOIDC(fx, "https://api.personaliza.test", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireOIDC_KeysUnavailable(t *testing.T) {
	fx := newOIDCFixture(t)
	token := fx.sign(nil)
	fx.cache.url = "http://127.0.0.1:1/unreachable"

	rec := serveOIDC(fx, "https://api.personaliza.test", token)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestMaxAge(t *testing.T) {
	if got := maxAge("public, max-age=120, must-revalidate"); got != 2*time.Minute {
		t.Fatalf("unexpected max age %s", got)
	}
	if got := maxAge("no-cache"); got != defaultJWKSTTL {
		t.Fatalf("expected default ttl, got %s", got)
	}
}
