package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/jubensha-labs/mystery-engine/internal/relay"
	"github.com/jubensha-labs/mystery-engine/internal/storage"
	"github.com/jubensha-labs/mystery-engine/pkg/chat"
)

// GameHandler serves the in-game player surface.
// Routes:
// POST /api/games/{id}/players                          - Join a game, optionally claiming a character
// GET  /api/games/{id}/players/{pid}                    - Read a player and their evidence
// POST /api/games/{id}/players/{pid}/chat/{npc_id}      - Talk to an NPC
// GET  /api/games/{id}/npcs                             - List NPCs
// GET  /api/games/{id}/locations                        - List locations and their objects
type GameHandler struct {
	storage            storage.Storage
	relay              *relay.Service
	logger             *slog.Logger
	defaultModel       string
	defaultTemperature float32
}

func NewGameHandler(st storage.Storage, relaySvc *relay.Service, defaultModel string, defaultTemperature float32, logger *slog.Logger) *GameHandler {
	return &GameHandler{
		storage:            st,
		relay:              relaySvc,
		logger:             logger,
		defaultModel:       defaultModel,
		defaultTemperature: defaultTemperature,
	}
}

// JoinRequest defines the request body for joining a game.
type JoinRequest struct {
	UserID      string `json:"user_id"`
	CharacterID *int64 `json:"character_id,omitempty"`
}

func (h *GameHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/games"), "/")
	parts := strings.Split(path, "/")
	if path == "" || len(parts) < 2 {
		writeJSON(w, h.logger, http.StatusNotFound, ErrorResponse{Error: "Not found"})
		return
	}

	gameID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		h.logger.Warn("Invalid game ID", "id", parts[0], "error", err)
		writeBadRequest(w, h.logger, "Invalid game ID format")
		return
	}

	switch {
	case len(parts) == 2 && parts[1] == "npcs":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, h.logger, "GET")
			return
		}
		h.handleListNPCs(w, r, gameID)

	case len(parts) == 2 && parts[1] == "locations":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, h.logger, "GET")
			return
		}
		h.handleListLocations(w, r, gameID)

	case len(parts) == 2 && parts[1] == "players":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, h.logger, "POST")
			return
		}
		h.handleJoin(w, r, gameID)

	case len(parts) >= 3 && parts[1] == "players":
		playerID, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			h.logger.Warn("Invalid player ID", "id", parts[2], "error", err)
			writeBadRequest(w, h.logger, "Invalid player ID format")
			return
		}

		switch {
		case len(parts) == 3:
			if r.Method != http.MethodGet {
				writeMethodNotAllowed(w, h.logger, "GET")
				return
			}
			h.handleGetPlayer(w, r, gameID, playerID)

		case len(parts) == 5 && parts[3] == "chat":
			if r.Method != http.MethodPost {
				writeMethodNotAllowed(w, h.logger, "POST")
				return
			}
			npcID, err := strconv.ParseInt(parts[4], 10, 64)
			if err != nil {
				h.logger.Warn("Invalid NPC ID", "id", parts[4], "error", err)
				writeBadRequest(w, h.logger, "Invalid NPC ID format")
				return
			}
			h.handleChat(w, r, gameID, playerID, npcID)

		default:
			writeJSON(w, h.logger, http.StatusNotFound, ErrorResponse{Error: "Not found"})
		}

	default:
		writeJSON(w, h.logger, http.StatusNotFound, ErrorResponse{Error: "Not found"})
	}
}

func (h *GameHandler) handleJoin(w http.ResponseWriter, r *http.Request, gameID int64) {
	var req JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid JSON in request body", "error", err)
		writeBadRequest(w, h.logger, "Invalid JSON in request body")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeBadRequest(w, h.logger, "user_id field is required")
		return
	}

	ctx := r.Context()
	if req.CharacterID != nil {
		if _, err := h.storage.GetCharacter(ctx, gameID, *req.CharacterID); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}

	player, err := h.storage.CreatePlayer(ctx, gameID, req.UserID, req.CharacterID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Info("Player joined", "game_id", gameID, "player_id", player.ID, "user_id", req.UserID)
	writeJSON(w, h.logger, http.StatusCreated, player)
}

func (h *GameHandler) handleGetPlayer(w http.ResponseWriter, r *http.Request, gameID, playerID int64) {
	player, err := h.storage.GetPlayer(r.Context(), gameID, playerID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, player)
}

func (h *GameHandler) handleChat(w http.ResponseWriter, r *http.Request, gameID, playerID, npcID int64) {
	var req chat.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid JSON in request body", "error", err)
		writeBadRequest(w, h.logger, "Invalid JSON in request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeBadRequest(w, h.logger, err.Error())
		return
	}

	model := req.Model
	if model == "" {
		model = h.defaultModel
	}
	temperature := h.defaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	reply, err := h.relay.ChatWithNPC(r.Context(), gameID, playerID, npcID, req.Text, model, temperature)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, reply)
}

func (h *GameHandler) handleListNPCs(w http.ResponseWriter, r *http.Request, gameID int64) {
	if _, err := h.storage.GetGame(r.Context(), gameID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	npcs, err := h.storage.ListNPCs(r.Context(), gameID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, npcs)
}

func (h *GameHandler) handleListLocations(w http.ResponseWriter, r *http.Request, gameID int64) {
	if _, err := h.storage.GetGame(r.Context(), gameID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	locations, err := h.storage.ListLocations(r.Context(), gameID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, locations)
}
