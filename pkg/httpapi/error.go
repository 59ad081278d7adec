// Package httpapi holds the JSON response helpers shared by every API controller.
package httpapi

import (
	"encoding/json"
	"mime"
	"net/http"
)

const RequestIDHeader = "X-Request-Id"

// ErrorEnvelope standardizes JSON error responses for API namespaces.
type ErrorEnvelope struct {
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Meta    map[string]string `json:"meta,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	if w == nil {
		return nil
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, code, message string, meta map[string]string) error {
	return WriteJSON(w, status, &ErrorEnvelope{
		Code:    code,
		Message: message,
		Meta:    meta,
	})
}

// WriteRequestError is WriteError with the request id, when the logging middleware assigned one,
// copied into the envelope's meta.
func WriteRequestError(w http.ResponseWriter, status int, code, message string) error {
	var meta map[string]string
	if id := w.Header().Get(RequestIDHeader); id != "" {
		meta = map[string]string{"request_id": id}
	}
	return WriteError(w, status, code, message, meta)
}

// WriteAttachment sends data as a download named filename.
func WriteAttachment(w http.ResponseWriter, contentType, filename string, data []byte) error {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(data)
	return err
}
