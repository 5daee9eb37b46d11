// Package middleware provides HTTP middleware for identity extraction and
// request logging.
package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/flowgate-ai/flowgate/api/handlers"
	"github.com/flowgate-ai/flowgate/gateway"
	"github.com/flowgate-ai/flowgate/types"
)

// Auth validates Bearer JWTs and attaches the token subject to the request
// context as the rate-limit identity. When disabled, requests pass through
// anonymously.
type Auth struct {
	enabled bool
	secret  []byte
	logger  *zap.Logger
}

// NewAuth creates the auth middleware.
func NewAuth(enabled bool, secret string, logger *zap.Logger) *Auth {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Auth{
		enabled: enabled,
		secret:  []byte(secret),
		logger:  logger.With(zap.String("middleware", "auth")),
	}
}

// Wrap applies the middleware to next.
func (a *Auth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.enabled {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			handlers.WriteError(w, types.NewError(types.ErrUnauthorized, "missing bearer token").
				WithHTTPStatus(http.StatusUnauthorized), a.logger)
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return a.secret, nil
		})
		if err != nil || !token.Valid {
			a.logger.Debug("token rejected", zap.Error(err))
			handlers.WriteError(w, types.NewError(types.ErrUnauthorized, "invalid token").
				WithHTTPStatus(http.StatusUnauthorized), a.logger)
			return
		}

		subject, err := token.Claims.GetSubject()
		if err != nil || subject == "" {
			handlers.WriteError(w, types.NewError(types.ErrUnauthorized, "token has no subject").
				WithHTTPStatus(http.StatusUnauthorized), a.logger)
			return
		}

		ctx := gateway.WithIdentity(r.Context(), subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
