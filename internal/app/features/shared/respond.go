// internal/app/features/shared/respond.go
package shared

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mindmatrix/cohorthub/internal/app/system/verifier"
	"go.uber.org/zap"
)

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorBody is the JSON shape of every error response: a stable machine
// code plus a human message the gateway can relay verbatim.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error writes an error response.
func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, ErrorBody{Code: code, Message: message})
}

// DecodeJSON reads a JSON request body into dst, capping the body size.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	return json.NewDecoder(r.Body).Decode(dst)
}

// VerifierError maps the verifier's error taxonomy onto HTTP responses.
// User-correctable outcomes (wrong code, cooldowns, unknown email) are
// not logged at error level; only unexpected failures are.
func VerifierError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, verifier.ErrNotFound):
		Error(w, http.StatusNotFound, "not_found",
			"This email is not on the student list. Check the address you registered with, or contact an admin.")
	case errors.Is(err, verifier.ErrAlreadyVerified):
		Error(w, http.StatusConflict, "already_verified",
			"This member or email is already verified. Unverify first to start over.")
	case errors.Is(err, verifier.ErrUnsupportedOrg):
		Error(w, http.StatusUnprocessableEntity, "unsupported_organization",
			"Your organization is not supported by this community yet.")
	case errors.Is(err, verifier.ErrNoPending):
		Error(w, http.StatusNotFound, "no_pending_code",
			"There is no code outstanding for you. Start verification first.")
	case errors.Is(err, verifier.ErrCodeExpired):
		Error(w, http.StatusGone, "code_expired",
			"That code has expired. Request a new one.")
	case errors.Is(err, verifier.ErrCodeMismatch):
		Error(w, http.StatusBadRequest, "code_mismatch",
			"That code is not correct. Check your email and try again.")
	case errors.Is(err, verifier.ErrTooManyAttempts):
		Error(w, http.StatusTooManyRequests, "too_many_attempts",
			"Too many wrong codes. Request a new code and try again.")
	case errors.Is(err, verifier.ErrRateLimited):
		Error(w, http.StatusTooManyRequests, "rate_limited",
			"A code was sent recently. Please wait before requesting another.")
	case errors.Is(err, verifier.ErrPermissionDenied):
		Error(w, http.StatusBadGateway, "platform_permission_denied",
			"The community platform rejected the operation. An admin has been notified.")
	case errors.Is(err, verifier.ErrExternalUnavailable):
		Error(w, http.StatusServiceUnavailable, "external_unavailable",
			"A required external service is unavailable. Please try again shortly.")
	default:
		log.Error("request failed", zap.Error(err))
		Error(w, http.StatusInternalServerError, "internal_error",
			"Something went wrong on our side.")
	}
}

// TokenHeader carries the shared-secret token for both API surfaces.
const TokenHeader = "X-Api-Token"

// RequireToken guards a route group with a shared-secret token. An empty
// configured token disables the check (dev mode; ValidateConfig refuses
// it in prod).
func RequireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" {
				got := r.Header.Get(TokenHeader)
				if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
					Error(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid API token.")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
