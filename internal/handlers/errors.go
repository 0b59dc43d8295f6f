package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jubensha-labs/mystery-engine/pkg/game"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, body any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

// writeError maps domain errors to HTTP status codes. Anything that is
// not a known sentinel is a 500 with a generic message.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, game.ErrNotFound):
		writeJSON(w, logger, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, game.ErrInvalidState):
		writeJSON(w, logger, http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, game.ErrMalformedReply):
		logger.Error("Model returned malformed output", "error", err)
		writeJSON(w, logger, http.StatusBadGateway, ErrorResponse{Error: "Model returned malformed output"})
	default:
		logger.Error("Request failed", "error", err)
		writeJSON(w, logger, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
	}
}

func writeBadRequest(w http.ResponseWriter, logger *slog.Logger, msg string) {
	writeJSON(w, logger, http.StatusBadRequest, ErrorResponse{Error: msg})
}

func writeMethodNotAllowed(w http.ResponseWriter, logger *slog.Logger, supported string) {
	logger.Warn("Method not allowed", "supported", supported)
	writeJSON(w, logger, http.StatusMethodNotAllowed, ErrorResponse{Error: "Method not allowed. Supported methods: " + supported})
}
