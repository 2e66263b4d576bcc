package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/hanko-field/storefront/internal/platform/requestctx"
)

const (
	codeLimit    = 80
	messageLimit = 512
	idLimit      = 80
)

// reserved envelope keys that details may not overwrite.
var reserved = map[string]struct{}{
	"error": {}, "message": {}, "status": {}, "request_id": {}, "trace_id": {},
}

// Error is the JSON error envelope every storefront endpoint answers with. It also satisfies
// the error interface so helpers can hand it back to handlers.
type Error struct {
	Code    string
	Message string
	Status  int
	Details map[string]any
	Header  http.Header
}

// NewError returns an Error; a zero status means 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    clean(code, codeLimit),
		Message: clean(message, messageLimit),
		Status:  status,
	}
}

func (e Error) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// WithDetails merges details into the top level of the envelope. Envelope keys are never overwritten.
func (e Error) WithDetails(details map[string]any) Error {
	if len(details) == 0 {
		return e
	}
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		if _, ok := reserved[k]; ok {
			continue
		}
		merged[k] = v
	}
	e.Details = merged
	return e
}

// WithHeader sets a response header written alongside the envelope.
func (e Error) WithHeader(key, value string) Error {
	header := e.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set(key, value)
	e.Header = header
	return e
}

// WriteError writes err as JSON. The request id and trace id are taken from ctx.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	payload := make(map[string]any, len(err.Details)+5)
	for k, v := range err.Details {
		payload[k] = v
	}
	payload["error"] = err.Code
	payload["message"] = err.Message
	payload["status"] = status
	if id := clean(middleware.GetReqID(ctx), idLimit); id != "" {
		payload["request_id"] = id
	}
	if id := clean(requestctx.TraceID(ctx), idLimit); id != "" {
		payload["trace_id"] = id
	}

	for key, values := range err.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	WriteJSON(w, status, payload)
}

// WriteJSON encodes payload with the given status. Responses are per-shopper, so caching is disabled.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// clean folds line breaks into spaces, drops other control runes and truncates to limit runes.
func clean(value string, limit int) string {
	value = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return ' '
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, value)
	value = strings.TrimSpace(value)
	if utf8.RuneCountInString(value) > limit {
		value = string([]rune(value)[:limit])
	}
	return value
}
