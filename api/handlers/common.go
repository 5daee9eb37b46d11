// Package handlers implements the gateway's HTTP endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/flowgate-ai/flowgate/gateway"
	"github.com/flowgate-ai/flowgate/gateway/params"
	"github.com/flowgate-ai/flowgate/types"
)

// Response is the unified API envelope.
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	RequestID string     `json:"request_id,omitempty"`
}

// ErrorInfo is the serialized error payload.
type ErrorInfo struct {
	Code      string              `json:"code"`
	Message   string              `json:"message"`
	Retryable bool                `json:"retryable,omitempty"`
	Fields    []params.FieldError `json:"fields,omitempty"`
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a success envelope.
func WriteSuccess(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// WriteError maps a pipeline error onto HTTP. Validation failures carry
// their field errors, local rate limit rejections carry Retry-After, and
// provider errors use their mapped status.
func WriteError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var (
		valErr  *params.ValidationError
		nfErr   *gateway.ProviderNotFoundError
		rlErr   *types.RateLimitError
		gwErr   *types.Error
		status  int
		payload *ErrorInfo
	)

	switch {
	case errors.As(err, &valErr):
		status = http.StatusUnprocessableEntity
		payload = &ErrorInfo{
			Code:    "VALIDATION_FAILED",
			Message: valErr.Error(),
			Fields:  valErr.Result.AllErrors(),
		}

	case errors.As(err, &nfErr):
		status = http.StatusNotFound
		payload = &ErrorInfo{
			Code:    "PROVIDER_NOT_FOUND",
			Message: nfErr.Error(),
		}

	case errors.As(err, &rlErr):
		status = http.StatusTooManyRequests
		w.Header().Set("Retry-After", fmt.Sprintf("%d", rlErr.RetryAfterSeconds()))
		payload = &ErrorInfo{
			Code:      string(types.ErrRateLimitExceeded),
			Message:   rlErr.Error(),
			Retryable: true,
		}

	case errors.As(err, &gwErr):
		status = gwErr.HTTPStatus
		if status == 0 {
			status = mapErrorCodeToHTTPStatus(gwErr.Code)
		}
		payload = &ErrorInfo{
			Code:      string(gwErr.Code),
			Message:   gwErr.Message,
			Retryable: gwErr.Retryable,
		}

	default:
		status = http.StatusInternalServerError
		payload = &ErrorInfo{
			Code:    string(types.ErrUnknown),
			Message: err.Error(),
		}
	}

	if logger != nil {
		logger.Error("API error",
			zap.String("code", payload.Code),
			zap.String("message", payload.Message),
			zap.Int("status", status),
		)
	}

	WriteJSON(w, status, Response{
		Success:   false,
		Error:     payload,
		Timestamp: time.Now(),
	})
}

func mapErrorCodeToHTTPStatus(code types.ErrorCode) int {
	switch code {
	case types.ErrBadRequest:
		return http.StatusBadRequest
	case types.ErrMissingAPIKey, types.ErrUnauthorized:
		return http.StatusUnauthorized
	case types.ErrRateLimitExceeded:
		return http.StatusTooManyRequests
	case types.ErrQuotaExceeded:
		return http.StatusPaymentRequired
	case types.ErrContentBlocked:
		return http.StatusUnprocessableEntity
	case types.ErrTimeout:
		return http.StatusGatewayTimeout
	case types.ErrConnectionError, types.ErrServerError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSONBody decodes the request body, rejecting unknown fields.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) error {
	if r.Body == nil {
		err := types.NewError(types.ErrBadRequest, "request body is empty").WithHTTPStatus(http.StatusBadRequest)
		WriteError(w, err, logger)
		return err
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		apiErr := types.NewError(types.ErrBadRequest, "invalid JSON body").
			WithCause(err).
			WithHTTPStatus(http.StatusBadRequest)
		WriteError(w, apiErr, logger)
		return apiErr
	}
	return nil
}

// ValidateContentType requires application/json request bodies.
func ValidateContentType(w http.ResponseWriter, r *http.Request, logger *zap.Logger) bool {
	ct := r.Header.Get("Content-Type")
	if ct != "application/json" && ct != "application/json; charset=utf-8" {
		err := types.NewError(types.ErrBadRequest, "Content-Type must be application/json").
			WithHTTPStatus(http.StatusBadRequest)
		WriteError(w, err, logger)
		return false
	}
	return true
}

// ResponseWriter wraps http.ResponseWriter to capture the status code for
// request logging.
type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
	Written    bool
}

// NewResponseWriter wraps w.
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
}

// WriteHeader records the first status code written.
func (rw *ResponseWriter) WriteHeader(code int) {
	if !rw.Written {
		rw.StatusCode = code
		rw.Written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if !rw.Written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Flush forwards flushes so streaming works through the wrapper.
func (rw *ResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
