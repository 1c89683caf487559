package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/flemzord/scout/internal/security"
	"github.com/flemzord/scout/internal/security/securitytest"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func mustHash(t *testing.T, pass string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

func mustToken(t *testing.T, secret, issuer string, ttl time.Duration) string {
	t.Helper()
	tok, err := IssueToken(secret, issuer, "tester", ttl)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return tok
}

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	hash := mustHash(t, "pass123")
	cfg := AuthConfig{
		BearerToken:   "secret-token",
		JWTSecret:     "jwt-secret",
		JWTIssuer:     "scout",
		BasicUser:     "admin",
		BasicPassHash: hash,
	}

	noneToken := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "tester",
		Issuer:    "scout",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	unsigned, err := noneToken.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	tests := []struct {
		name    string
		prepare func(r *http.Request)
		want    int
	}{
		{name: "missing", prepare: func(*http.Request) {}, want: http.StatusUnauthorized},
		{
			name:    "static bearer",
			prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer secret-token") },
			want:    http.StatusOK,
		},
		{
			name:    "wrong bearer",
			prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer wrong-token") },
			want:    http.StatusUnauthorized,
		},
		{
			name: "valid jwt",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+mustToken(t, "jwt-secret", "scout", time.Hour))
			},
			want: http.StatusOK,
		},
		{
			name: "jwt wrong secret",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+mustToken(t, "other", "scout", time.Hour))
			},
			want: http.StatusUnauthorized,
		},
		{
			name: "jwt wrong issuer",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+mustToken(t, "jwt-secret", "elsewhere", time.Hour))
			},
			want: http.StatusUnauthorized,
		},
		{
			name: "jwt expired",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+mustToken(t, "jwt-secret", "scout", -time.Minute))
			},
			want: http.StatusUnauthorized,
		},
		{
			name:    "jwt alg none",
			prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+unsigned) },
			want:    http.StatusUnauthorized,
		},
		{
			name: "query token",
			prepare: func(r *http.Request) {
				q := r.URL.Query()
				q.Set("access_token", "secret-token")
				r.URL.RawQuery = q.Encode()
			},
			want: http.StatusOK,
		},
		{
			name:    "basic",
			prepare: func(r *http.Request) { r.SetBasicAuth("admin", "pass123") },
			want:    http.StatusOK,
		},
		{
			name:    "basic wrong password",
			prepare: func(r *http.Request) { r.SetBasicAuth("admin", "wrongpass") },
			want:    http.StatusUnauthorized,
		},
		{
			name:    "basic wrong user",
			prepare: func(r *http.Request) { r.SetBasicAuth("root", "pass123") },
			want:    http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := authMiddleware(cfg, nil)(okHandler())
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			tt.prepare(req)
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestAuthMiddleware_BasicChallenge(t *testing.T) {
	t.Parallel()

	cfg := AuthConfig{BasicUser: "admin", BasicPassHash: mustHash(t, "pw")}
	handler := authMiddleware(cfg, nil)(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))

	if rr.Header().Get("WWW-Authenticate") == "" {
		t.Error("expected a basic auth challenge")
	}
}

func TestAuthMiddleware_AuditEvents(t *testing.T) {
	t.Parallel()

	audit, events := securitytest.NewTestAuditLogger()
	handler := authMiddleware(AuthConfig{BearerToken: "tok"}, audit)(okHandler())

	ok := httptest.NewRequest(http.MethodGet, "/api/tools", nil)
	ok.Header.Set("Authorization", "Bearer tok")
	handler.ServeHTTP(httptest.NewRecorder(), ok)

	bad := httptest.NewRequest(http.MethodGet, "/api/tools", nil)
	handler.ServeHTTP(httptest.NewRecorder(), bad)

	got := events()
	if len(got) != 2 {
		t.Fatalf("events = %d, want 2", len(got))
	}
	if got[0].Type != security.EventAuthSuccess || got[0].Detail != "bearer" {
		t.Errorf("first event = %+v", got[0])
	}
	if got[1].Type != security.EventAuthFailure {
		t.Errorf("second event = %+v", got[1])
	}
	if got[1].Metadata["path"] != "/api/tools" {
		t.Errorf("path metadata = %q", got[1].Metadata["path"])
	}
}

func TestIssueToken(t *testing.T) {
	t.Parallel()

	tok := mustToken(t, "s3cret", "", time.Hour)
	sub, err := verifyToken("s3cret", "", tok)
	if err != nil {
		t.Fatalf("verifyToken: %v", err)
	}
	if sub != "tester" {
		t.Errorf("subject = %q, want tester", sub)
	}

	if _, err := IssueToken("", "", "x", time.Hour); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestConstantTimeEqual(t *testing.T) {
	t.Parallel()

	if !constantTimeEqual("abc", "abc") {
		t.Error("equal strings should match")
	}
	if constantTimeEqual("abc", "abd") || constantTimeEqual("abc", "abcd") {
		t.Error("different strings should not match")
	}
}
