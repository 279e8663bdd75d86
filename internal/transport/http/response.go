package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"invoicepro/internal/domain"
)

const maxBodyBytes = 1 << 20

// Envelope is the body of every /api/auth response. Clients branch on
// Success alone.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		slog.Error("marshal response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"message":"Internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func respond(w http.ResponseWriter, status int, msg string, data any) {
	writeJSON(w, status, Envelope{Success: status < 400, Message: msg, Data: data})
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return &domain.Error{Kind: domain.ErrValidation, Message: "Invalid request body", Cause: err}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return domain.Validation("Invalid request body")
	}
	return nil
}
