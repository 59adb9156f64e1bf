// internal/monitor/auth.go
// Authentication helpers for the monitor's HTTP surface. Supports two modes:
//  1. Static bearer token (shared secret) — cheap check for internal use.
//  2. JWT HMAC-SHA256 token — validates signature, issuer and expiry via
//     pkg/auth.Verifier when Config.JWT.Secret is set (takes precedence over
//     the plain AuthToken).
//
// The transport is a single HTTP middleware; there is no separate gRPC
// interceptor to keep in sync with it.
package monitor

import (
	"net/http"
	"strings"

	"github.com/flamecore/flamecore/pkg/auth"
)

// JWTConfig optionally enables JWT auth.
type JWTConfig struct {
	Secret []byte // HMAC secret; if nil JWT auth is disabled
	Issuer string // expected iss claim; empty means any issuer accepted
}

type jwtHelper struct {
	secret   []byte
	verifier *auth.Verifier
}

func newJWTHelper(cfg JWTConfig) jwtHelper {
	if len(cfg.Secret) == 0 {
		return jwtHelper{}
	}
	return jwtHelper{
		secret:   cfg.Secret,
		verifier: auth.NewVerifier(cfg.Secret, cfg.Issuer),
	}
}

// validateBearer validates an Authorization header value against the JWT
// verifier (if configured) or the static AuthToken.
func (s *Server) validateBearer(header string) error {
	token := strings.TrimPrefix(header, "Bearer ")
	if len(s.jwt.secret) > 0 {
		_, err := s.jwt.verifier.ParseAndVerify(token)
		return err
	}
	if s.cfg.AuthToken == "" {
		return nil // auth disabled
	}
	if token != s.cfg.AuthToken {
		return errInvalidToken
	}
	return nil
}

var errInvalidToken = httpError("invalid auth token")

type httpError string

func (e httpError) Error() string { return string(e) }

// HTTPAuthMiddleware wraps an http.Handler and enforces bearer auth on every
// route, including /ws.
func (s *Server) HTTPAuthMiddleware(next http.Handler) http.Handler {
	if s.cfg.AuthToken == "" && len(s.jwt.secret) == 0 {
		return next // auth disabled
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.validateBearer(r.Header.Get("Authorization")); err != nil {
			writeErr(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
