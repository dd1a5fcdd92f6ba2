package http

import (
	"encoding/json"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// JSONResponse builds a JSON reply with a fluent API.
type JSONResponse struct {
	statusCode int
	headers    map[string]string
	payload    any
}

func NewJSONResponse() *JSONResponse {
	return &JSONResponse{statusCode: http.StatusOK, headers: map[string]string{}}
}

func (b *JSONResponse) Status(code int) *JSONResponse {
	b.statusCode = code
	return b
}

func (b *JSONResponse) Header(name, value string) *JSONResponse {
	b.headers[name] = value
	return b
}

// Data wraps v as {"data": v}.
func (b *JSONResponse) Data(v any) *JSONResponse {
	b.payload = map[string]any{"data": v}
	return b
}

// Message sets {"message": msg}.
func (b *JSONResponse) Message(msg string) *JSONResponse {
	b.payload = map[string]string{"message": msg}
	return b
}

// Error sets {"error": v}; v is a string or a list of strings.
func (b *JSONResponse) Error(v any) *JSONResponse {
	b.payload = map[string]any{"error": v}
	return b
}

// Raw sets the payload as is.
func (b *JSONResponse) Raw(v any) *JSONResponse {
	b.payload = v
	return b
}

func (b *JSONResponse) Write(w http.ResponseWriter) {
	for k, v := range b.headers {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	if b.payload != nil {
		_ = json.NewEncoder(w).Encode(b.payload)
	}
}

// writeError logs err and sends its mapped status and message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := log.FromContext(r.Context())
	fields := log.NewFields().WithError(err, core.Kind(err))
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", fields.ToSlice()...)
	} else {
		logger.WarnContext(r.Context(), "Request rejected", fields.ToSlice()...)
	}
	NewJSONResponse().Status(status).Error(messageFor(err)).Write(w)
}
