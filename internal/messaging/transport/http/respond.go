package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ghostcrm/messaging/internal/messaging/domain"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeErrorCode(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// statusForError maps the closed domain error set to HTTP statuses and
// stable error codes. This is the only place status codes are decided.
func statusForError(err error) (int, string) {
	var vendorErr *domain.VendorError
	switch {
	case errors.Is(err, domain.ErrMissingFields):
		return http.StatusBadRequest, "missing_fields"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrNoMembership):
		return http.StatusForbidden, "no_membership"
	case errors.Is(err, domain.ErrNoProviderConfigured):
		return http.StatusBadGateway, "no_provider_configured"
	case errors.Is(err, domain.ErrNumberNotFound):
		return http.StatusBadRequest, "number_not_found"
	case errors.Is(err, domain.ErrNumberInUse):
		return http.StatusConflict, "number_in_use"
	case errors.Is(err, domain.ErrUnknownDestination):
		return http.StatusNotFound, "unknown_destination"
	case errors.Is(err, domain.ErrSignatureInvalid):
		return http.StatusForbidden, "invalid_signature"
	case errors.Is(err, domain.ErrDecryptionFailed):
		return http.StatusInternalServerError, "secret_unavailable"
	case errors.Is(err, domain.ErrMessageNotFound):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &vendorErr):
		return http.StatusBadGateway, "vendor_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func handleDomainError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	status, code := statusForError(err)
	if status >= 500 {
		logger.ErrorContext(r.Context(), "request failed", "error", err, "path", r.URL.Path)
	}
	writeErrorCode(w, status, code)
}
