// Package respond writes the JSON envelope shared by every endpoint.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/leavend/refgen/internal/domain"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Hint    string         `json:"hint,omitempty"`
}

// JSON writes a success envelope.
func JSON(w http.ResponseWriter, status int, message string, data any) {
	Write(w, status, Envelope{Success: true, Message: message, Data: data})
}

// Error writes the failure envelope for err. Unclassified errors are reported
// as internal errors without their text.
func Error(w http.ResponseWriter, err error) {
	e := domain.As(err)
	Write(w, Status(e), Envelope{
		Success: false,
		Message: e.Message,
		Error:   e.Code(),
		Details: e.Details,
		Hint:    e.Hint,
	})
}

// Fail writes a failure envelope with an explicit status and code.
func Fail(w http.ResponseWriter, status int, code, message string) {
	Write(w, status, Envelope{Success: false, Message: message, Error: code})
}

// Status maps an error kind to its HTTP status.
func Status(e *domain.Error) int {
	switch e.Kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// LogError records err at a level matching its status.
func LogError(l *zerolog.Logger, err error, msg string) {
	e := domain.As(err)
	ev := l.Warn()
	if Status(e) >= http.StatusInternalServerError {
		ev = l.Error()
	}
	ev.Err(err).Str("code", e.Code()).Msg(msg)
}

// Write encodes body with status.
func Write(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
