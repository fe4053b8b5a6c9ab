// Package httperr translates engine errors into HTTP statuses and writes
// the JSON error envelope every API controller shares.
package httperr

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/inforlary/belkys-sub012/pkg/apperr"
)

type BadRequestError struct {
	msg string
}

func (e *BadRequestError) Error() string { return e.msg }

func NewBadRequest(msg string) error { return &BadRequestError{msg: msg} }

func IsBadRequest(err error) bool {
	var target *BadRequestError
	ok := errors.As(err, &target)
	return ok
}

// StatusFor maps the stable error codes onto HTTP statuses. Unknown errors
// report 500 so a surprise never masquerades as a client fault.
func StatusFor(err error) int {
	switch apperr.Code(err) {
	case apperr.CodeValidation:
		return http.StatusUnprocessableEntity
	case apperr.CodeDependencyConflict:
		return http.StatusConflict
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeCollaboratorUnavailable:
		return http.StatusServiceUnavailable
	case apperr.CodeAllocationExhausted:
		return http.StatusConflict
	case apperr.CodeAuthorizationDenied:
		return http.StatusForbidden
	}
	if IsBadRequest(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

type Envelope struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
	TraceID string   `json:"trace_id"`
	Meta    Meta     `json:"meta"`
}

type Meta struct {
	Path   string `json:"path"`
	Method string `json:"method"`
}

// Write emits the envelope with an explicit status and code, for request
// shape problems that never reach a service.
func Write(w http.ResponseWriter, r *http.Request, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{
		Code:    code,
		Message: message,
		TraceID: TraceIDFromRequest(r),
		Meta: Meta{
			Path:   r.URL.Path,
			Method: r.Method,
		},
	})
}

// WriteAppError emits the envelope for a service error, carrying its stable
// code and, for validation failures, every violated field.
func WriteAppError(w http.ResponseWriter, r *http.Request, err error) {
	env := Envelope{
		Code:    apperr.Code(err),
		Message: err.Error(),
		TraceID: TraceIDFromRequest(r),
		Meta: Meta{
			Path:   r.URL.Path,
			Method: r.Method,
		},
	}
	if env.Code == "" {
		env.Code = "INTERNAL"
		if IsBadRequest(err) {
			env.Code = "BAD_REQUEST"
		}
	}
	var vErr *apperr.ValidationError
	if errors.As(err, &vErr) {
		env.Fields = vErr.Fields
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(StatusFor(err))
	_ = json.NewEncoder(w).Encode(env)
}

// TraceIDFromRequest extracts the W3C trace id from a traceparent header,
// empty when absent or malformed.
func TraceIDFromRequest(r *http.Request) string {
	traceparent := strings.TrimSpace(r.Header.Get("traceparent"))
	if traceparent == "" {
		return ""
	}
	parts := strings.Split(traceparent, "-")
	if len(parts) != 4 {
		return ""
	}
	traceID := strings.ToLower(parts[1])
	if len(traceID) != 32 || traceID == "00000000000000000000000000000000" {
		return ""
	}
	for _, ch := range traceID {
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') {
			return ""
		}
	}
	return traceID
}
