package gateway

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/flemzord/scout/internal/security"
)

// ErrInvalidToken is returned for JWTs that fail verification.
var ErrInvalidToken = errors.New("gateway: invalid token")

// authMiddleware returns a chi-compatible middleware that accepts a static
// bearer token, an HS256 JWT or basic auth checked against a bcrypt hash.
// Websocket clients that cannot set headers may pass the bearer value in
// the access_token query parameter.
// If an AuditLogger is provided, auth_success and auth_failure events are emitted.
func authMiddleware(cfg AuthConfig, auditLogger *security.AuditLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if method, ok := authenticate(cfg, r); ok {
				emitAuthEvent(auditLogger, security.EventAuthSuccess, r, method)
				next.ServeHTTP(w, r)
				return
			}
			emitAuthEvent(auditLogger, security.EventAuthFailure, r, "invalid credentials")
			if cfg.BasicUser != "" {
				w.Header().Set("WWW-Authenticate", `Basic realm="scout"`)
			}
			writeError(w, http.StatusUnauthorized, "unauthorized")
		})
	}
}

// authenticate reports which method accepted the request.
func authenticate(cfg AuthConfig, r *http.Request) (string, bool) {
	token, hasBearer := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !hasBearer {
		token = r.URL.Query().Get("access_token")
		hasBearer = token != ""
	}

	if hasBearer {
		if cfg.BearerToken != "" && constantTimeEqual(token, cfg.BearerToken) {
			return "bearer", true
		}
		if cfg.JWTSecret != "" {
			if _, err := verifyToken(cfg.JWTSecret, cfg.JWTIssuer, token); err == nil {
				return "jwt", true
			}
		}
	}

	if cfg.BasicUser != "" && cfg.BasicPassHash != "" {
		user, pass, ok := r.BasicAuth()
		if ok && constantTimeEqual(user, cfg.BasicUser) &&
			bcrypt.CompareHashAndPassword([]byte(cfg.BasicPassHash), []byte(pass)) == nil {
			return "basic", true
		}
	}
	return "", false
}

// IssueToken signs an HS256 JWT for subject, valid for ttl.
func IssueToken(secret, issuer, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("gateway: empty jwt secret")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// verifyToken parses an HS256 JWT and returns its subject.
func verifyToken(secret, issuer, raw string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// emitAuthEvent logs an auth event to the audit logger if available.
func emitAuthEvent(logger *security.AuditLogger, eventType security.EventType, r *http.Request, detail string) {
	if logger == nil {
		return
	}
	logger.Log(security.AuditEvent{
		Type:       eventType,
		RemoteAddr: r.RemoteAddr,
		Detail:     detail,
		Metadata: map[string]string{
			"method": r.Method,
			"path":   r.URL.Path,
		},
	})
}

// constantTimeEqual compares two strings in constant time.
func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
