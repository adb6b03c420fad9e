// Package httputil centralizes JSON response writing and request decoding
// for the HTTP layer. Keeping error translation here ensures every handler
// emits the same error envelope.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "aurum/pkg/domain-errors"
)

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into an HTTP response. Internal
// errors omit the description so storage details never leak to callers.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := statusFor(code)

	body := map[string]string{"error": string(code)}
	var de *dErrors.Error
	if status < http.StatusInternalServerError && errors.As(err, &de) {
		body["error_description"] = de.Message
	}
	WriteJSON(w, status, body)
}

// statusFor maps domain error codes onto HTTP status codes.
func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidAddress, dErrors.CodeZeroAmount:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeBlacklisted, dErrors.CodeLockedTokenRestriction:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeAlreadyClaimed, dErrors.CodeAlreadyClaimedThisPeriod,
		dErrors.CodeDeviceAlreadyUsed, dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeInvalidProof, dErrors.CodeInvalidSignature,
		dErrors.CodeCooldownNotOver, dErrors.CodeInsufficientBalance,
		dErrors.CodeLockNotOver, dErrors.CodeNoRewards:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Validator is implemented by request types that carry their own
// field-level validation.
type Validator interface {
	Validate() error
}

// DecodeAndPrepare decodes a JSON request body into T and runs its
// validation when present. On failure it writes the error response and
// returns ok=false; handlers just return.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "request decode failed",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed JSON body"))
		return req, false
	}
	if v, ok := any(req).(Validator); ok {
		if err := v.Validate(); err != nil {
			logger.WarnContext(ctx, "request validation failed",
				"request_id", requestID,
				"error", err,
			)
			WriteError(w, err)
			return req, false
		}
	}
	return req, true
}
