// Package providers holds the wire types and helpers shared by the
// concrete provider adapters.
package providers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flowgate-ai/flowgate/types"
)

// Config is the common adapter configuration.
type Config struct {
	Name         string        `json:"name" yaml:"name"`
	APIKey       string        `json:"api_key" yaml:"api_key"`
	BaseURL      string        `json:"base_url" yaml:"base_url"`
	DefaultModel string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout      time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// RequireAPIKey rejects adapter construction without credentials. Factories
// call this lazily so a missing key fails the request that needs the
// provider, not process start.
func RequireAPIKey(cfg Config) error {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return types.NewError(types.ErrMissingAPIKey, "api key not configured").
			WithProvider(cfg.Name).
			WithHTTPStatus(http.StatusUnauthorized)
	}
	return nil
}

// MapHTTPError converts an upstream HTTP failure into a *types.Error with
// the retryability the retry handler expects.
func MapHTTPError(status int, msg, provider string) *types.Error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return types.NewError(types.ErrUnauthorized, msg).
			WithHTTPStatus(status).WithProvider(provider)
	case http.StatusTooManyRequests:
		return types.NewError(types.ErrRateLimitExceeded, msg).
			WithHTTPStatus(status).WithRetryable(true).WithProvider(provider)
	case http.StatusBadRequest:
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "quota") || strings.Contains(lower, "credit") || strings.Contains(lower, "billing") {
			return types.NewError(types.ErrQuotaExceeded, msg).
				WithHTTPStatus(status).WithProvider(provider)
		}
		if strings.Contains(lower, "safety") || strings.Contains(lower, "blocked") || strings.Contains(lower, "content policy") {
			return types.NewError(types.ErrContentBlocked, msg).
				WithHTTPStatus(status).WithProvider(provider)
		}
		return types.NewError(types.ErrBadRequest, msg).
			WithHTTPStatus(status).WithProvider(provider)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return types.NewError(types.ErrTimeout, msg).
			WithHTTPStatus(status).WithRetryable(true).WithProvider(provider)
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return types.NewError(types.ErrServerError, msg).
			WithHTTPStatus(status).WithRetryable(true).WithProvider(provider)
	default:
		return types.NewError(types.ErrServerError, msg).
			WithHTTPStatus(status).WithRetryable(status >= 500).WithProvider(provider)
	}
}

// TransportError wraps a failed round trip as a retryable connection error.
func TransportError(err error, provider string) *types.Error {
	return types.NewError(types.ErrConnectionError, err.Error()).
		WithCause(err).
		WithHTTPStatus(http.StatusBadGateway).
		WithRetryable(true).
		WithProvider(provider)
}

// ReadErrorMessage extracts a human-readable message from an upstream error
// body, falling back to the raw text.
func ReadErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(body)
	if err != nil {
		return "failed to read error response"
	}

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		if errResp.Error.Type != "" {
			return fmt.Sprintf("%s (type: %s)", errResp.Error.Message, errResp.Error.Type)
		}
		return errResp.Error.Message
	}
	return strings.TrimSpace(string(data))
}

// BearerTokenHeaders is the standard Bearer auth header builder.
func BearerTokenHeaders(r *http.Request, apiKey string) {
	r.Header.Set("Authorization", "Bearer "+apiKey)
	r.Header.Set("Content-Type", "application/json")
}

// Float reads a numeric parameter from a processed values map.
func Float(values map[string]any, key string) (float64, bool) {
	switch v := values[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Int reads an integer parameter from a processed values map.
func Int(values map[string]any, key string) (int, bool) {
	if f, ok := Float(values, key); ok {
		return int(f), true
	}
	return 0, false
}

// String reads a string parameter from a processed values map.
func String(values map[string]any, key string) (string, bool) {
	v, ok := values[key].(string)
	return v, ok
}

// Bool reads a boolean parameter from a processed values map.
func Bool(values map[string]any, key string) (bool, bool) {
	v, ok := values[key].(bool)
	return v, ok
}
