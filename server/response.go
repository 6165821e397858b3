package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Message is a human-readable response message in English and Swedish.
type Message struct {
	En string `json:"en"`
	Sv string `json:"sv"`
}

// Status describes the outcome of a request.
type Status struct {
	Type       string `json:"type"`
	StatusCode int    `json:"status_code"`
}

type envelope struct {
	Message          Message  `json:"message"`
	ValidationErrors []string `json:"validation_errors,omitempty"`
	Status           Status   `json:"status"`
}

// respond writes the standard JSON envelope. The status type is derived from
// the code so handlers cannot disagree with themselves.
func respond(w http.ResponseWriter, code int, msg Message, validationErrors ...string) {
	statusType := "success"
	if code >= 400 {
		statusType = "error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(envelope{
		Message:          msg,
		ValidationErrors: validationErrors,
		Status: Status{
			Type:       statusType,
			StatusCode: code,
		},
	}); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
