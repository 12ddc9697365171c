package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/luxecommerce/storefront/core"
	"github.com/luxecommerce/storefront/pkg/auth"
	"github.com/luxecommerce/storefront/pkg/orders"
	"github.com/luxecommerce/storefront/pkg/telemetry"
)

var (
	errUnauthorized = errors.New("sign in required")
	errForbidden    = errors.New("admin role required")
	errTooLarge     = errors.New("request body too large")
)

// errorResponse is the body of every failed call.
type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	RequestID string `json:"request_id,omitempty"`
}

// classify maps an error to an HTTP status and a short kind label.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errTooLarge):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, errForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, errUnauthorized),
		errors.Is(err, orders.ErrNotAuthenticated),
		errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, auth.ErrInvalidPassword):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, auth.ErrDuplicateUser):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, orders.ErrWrongStep),
		errors.Is(err, orders.ErrEmptyCart):
		return http.StatusConflict, "conflict"
	case core.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case core.IsValidationError(err):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, core.ErrSessionClosed), core.IsStorageError(err):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal"
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)
	s.metrics.errors.WithLabelValues(kind).Inc()

	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.ErrorWithContext(r.Context(), "Request failed", telemetry.EnrichLogFields(r.Context(), map[string]interface{}{
			"path":  r.URL.Path,
			"error": msg,
		}))
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Kind:      kind,
		RequestID: telemetry.GetRequestID(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
