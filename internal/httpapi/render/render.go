// Package render writes JSON responses and maps domain error kinds to HTTP statuses.
package render

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rpattn/auditdesk/internal/domain"
	"github.com/rpattn/auditdesk/internal/logging"
	"go.uber.org/zap"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// JSON writes payload with status.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

// Status maps an error kind to its HTTP status.
func Status(err error) int {
	switch domain.KindOf(err) {
	case domain.ErrValidation, domain.ErrParse:
		return http.StatusBadRequest
	case domain.ErrConflict, domain.ErrInvalidState:
		return http.StatusConflict
	case domain.ErrPermission:
		return http.StatusForbidden
	case domain.ErrNotFound:
		return http.StatusNotFound
	case domain.ErrStore:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Code is the machine readable kind name.
func Code(err error) string {
	switch domain.KindOf(err) {
	case domain.ErrValidation:
		return "validation"
	case domain.ErrParse:
		return "parse"
	case domain.ErrConflict:
		return "conflict"
	case domain.ErrInvalidState:
		return "invalid_state"
	case domain.ErrPermission:
		return "permission"
	case domain.ErrNotFound:
		return "not_found"
	case domain.ErrStore:
		return "store"
	default:
		return "internal"
	}
}

// Message is the text safe to return to a client. Unclassified errors never leak.
func Message(err error) string {
	var de *domain.Error
	if errors.As(err, &de) {
		return de.UserMessage()
	}
	return "internal server error"
}

// Error logs err with the request logger and writes the mapped response.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := Status(err)
	logger := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		logger.Info("request rejected", zap.Int("status", status), zap.Error(err))
	}
	JSON(w, status, ErrorBody{Error: Message(err), Code: Code(err)})
}

// ErrorWith writes the mapped status with a custom body, used when a partial
// result accompanies the failure.
func ErrorWith(w http.ResponseWriter, r *http.Request, err error, body any) {
	logging.FromContext(r.Context()).Info("request rejected", zap.Error(err))
	JSON(w, Status(err), body)
}

// Unauthorized answers a request whose bearer token could not be resolved.
func Unauthorized(w http.ResponseWriter, err error) {
	JSON(w, http.StatusUnauthorized, ErrorBody{Error: Message(err), Code: "unauthenticated"})
}

// Decode reads a JSON body into dst.
func Decode(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.ParseError("decode request", err)
	}
	return nil
}

// ErrorDetail is Error, except a store failure returns the driver message to the
// client. Only facility creation uses it; the dashboard shows that text verbatim.
func ErrorDetail(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.Error
	if domain.KindOf(err) != domain.ErrStore || !errors.As(err, &de) || de.Err == nil {
		Error(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Error("request failed", zap.Error(err))
	JSON(w, Status(err), ErrorBody{Error: de.Err.Error(), Code: Code(err)})
}
