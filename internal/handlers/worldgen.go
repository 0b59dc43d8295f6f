package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	genqueue "github.com/jubensha-labs/mystery-engine/internal/services/queue"
	"github.com/jubensha-labs/mystery-engine/internal/storage"
	"github.com/jubensha-labs/mystery-engine/internal/worldgen"
	"github.com/jubensha-labs/mystery-engine/pkg/game"
	"github.com/jubensha-labs/mystery-engine/pkg/queue"
)

// WorldGenHandler serves game creation and world generation.
// Routes:
// POST /api/world/games                          - Create a new game
// GET  /api/world/games/{id}                     - Read the generated world
// POST /api/world/games/{id}/background          - Generate the background
// POST /api/world/games/{id}/characters          - Generate characters and NPCs
// POST /api/world/games/{id}/generate_full       - Generate the full world
// POST /api/world/games/{id}/generate_full/async - Queue full generation
type WorldGenHandler struct {
	storage            storage.Storage
	pipeline           *worldgen.Service
	queue              *genqueue.GenerationQueue
	logger             *slog.Logger
	defaultModel       string
	defaultTemperature float32
}

func NewWorldGenHandler(st storage.Storage, pipeline *worldgen.Service, q *genqueue.GenerationQueue, defaultModel string, defaultTemperature float32, logger *slog.Logger) *WorldGenHandler {
	return &WorldGenHandler{
		storage:            st,
		pipeline:           pipeline,
		queue:              q,
		logger:             logger,
		defaultModel:       defaultModel,
		defaultTemperature: defaultTemperature,
	}
}

// BackgroundRequest defines the request body for background generation.
// Temperature is a pointer so an explicit 0 is distinguishable from unset.
type BackgroundRequest struct {
	Prompt      string   `json:"prompt"`
	Model       string   `json:"model,omitempty"`
	Temperature *float32 `json:"temperature,omitempty"`
}

// GenerationRequest defines the request body for character and full-world
// generation. Omitted fields fall back to the defaults.
type GenerationRequest struct {
	NumCharacters int      `json:"num_characters,omitempty"`
	NumNPCs       int      `json:"num_npcs,omitempty"`
	NumActs       int      `json:"num_acts,omitempty"`
	Model         string   `json:"model,omitempty"`
	Temperature   *float32 `json:"temperature,omitempty"`
}

// WorldResponse is the read view of a generated world.
type WorldResponse struct {
	Game       *game.Game       `json:"game"`
	Characters []game.Character `json:"characters"`
	NPCs       []game.NPC       `json:"npcs"`
	Locations  []game.Location  `json:"locations"`
}

func (h *WorldGenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/world/games"), "/")
	if path == "" {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, h.logger, "POST")
			return
		}
		h.handleCreate(w, r)
		return
	}

	parts := strings.Split(path, "/")
	gameID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		h.logger.Warn("Invalid game ID", "id", parts[0], "error", err)
		writeBadRequest(w, h.logger, "Invalid game ID format")
		return
	}

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, h.logger, "GET")
			return
		}
		h.handleRead(w, r, gameID)

	case len(parts) == 2 && parts[1] == "background":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, h.logger, "POST")
			return
		}
		h.handleBackground(w, r, gameID)

	case len(parts) == 2 && parts[1] == "characters":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, h.logger, "POST")
			return
		}
		h.handleCharacters(w, r, gameID)

	case len(parts) == 2 && parts[1] == "generate_full":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, h.logger, "POST")
			return
		}
		h.handleGenerateFull(w, r, gameID)

	case len(parts) == 3 && parts[1] == "generate_full" && parts[2] == "async":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, h.logger, "POST")
			return
		}
		h.handleGenerateFullAsync(w, r, gameID)

	default:
		writeJSON(w, h.logger, http.StatusNotFound, ErrorResponse{Error: "Not found"})
	}
}

func (h *WorldGenHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	g, err := h.storage.CreateGame(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Info("Game created", "game_id", g.ID)
	writeJSON(w, h.logger, http.StatusCreated, map[string]int64{"game_id": g.ID})
}

func (h *WorldGenHandler) handleRead(w http.ResponseWriter, r *http.Request, gameID int64) {
	ctx := r.Context()
	g, err := h.storage.GetGame(ctx, gameID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	characters, err := h.storage.ListCharacters(ctx, gameID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	npcs, err := h.storage.ListNPCs(ctx, gameID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	locations, err := h.storage.ListLocations(ctx, gameID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, WorldResponse{
		Game:       g,
		Characters: characters,
		NPCs:       npcs,
		Locations:  locations,
	})
}

func (h *WorldGenHandler) handleBackground(w http.ResponseWriter, r *http.Request, gameID int64) {
	var req BackgroundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid JSON in request body", "error", err)
		writeBadRequest(w, h.logger, "Invalid JSON in request body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeBadRequest(w, h.logger, "prompt field is required")
		return
	}

	model, temperature := h.defaults(req.Model, req.Temperature)
	background, err := h.pipeline.GenerateBackground(r.Context(), gameID, req.Prompt, model, temperature)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]string{"background": background})
}

func (h *WorldGenHandler) handleCharacters(w http.ResponseWriter, r *http.Request, gameID int64) {
	params, ok := h.decodeParams(w, r)
	if !ok {
		return
	}
	result, err := h.pipeline.GenerateRoles(r.Context(), gameID, params)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Info("Roles generated", "game_id", gameID, "characters", len(result.Characters), "npcs", len(result.NPCs))
	writeJSON(w, h.logger, http.StatusOK, result)
}

func (h *WorldGenHandler) handleGenerateFull(w http.ResponseWriter, r *http.Request, gameID int64) {
	params, ok := h.decodeParams(w, r)
	if !ok {
		return
	}
	result, err := h.pipeline.GenerateFull(r.Context(), gameID, params)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Info("Full world generated", "game_id", gameID, "acts", len(result.Acts))
	writeJSON(w, h.logger, http.StatusOK, result)
}

func (h *WorldGenHandler) handleGenerateFullAsync(w http.ResponseWriter, r *http.Request, gameID int64) {
	if h.queue == nil {
		writeJSON(w, h.logger, http.StatusServiceUnavailable, ErrorResponse{Error: "Async generation is not available"})
		return
	}
	params, ok := h.decodeParams(w, r)
	if !ok {
		return
	}

	// Validate the game up front so a bad ID fails fast instead of in
	// the worker.
	g, err := h.storage.GetGame(r.Context(), gameID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if g.Background == "" {
		writeJSON(w, h.logger, http.StatusConflict, ErrorResponse{Error: "Game has no background"})
		return
	}

	req := &queue.Request{
		RequestID:  uuid.New().String(),
		Type:       queue.RequestTypeGenerateFull,
		GameID:     gameID,
		Params:     params,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := h.queue.Enqueue(r.Context(), req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Info("Generation request queued", "game_id", gameID, "request_id", req.RequestID)
	writeJSON(w, h.logger, http.StatusAccepted, map[string]string{"request_id": req.RequestID})
}

// decodeParams reads generation parameters from the body, filling unset
// fields from the defaults. An empty body is valid. Reports false after
// writing an error response.
func (h *WorldGenHandler) decodeParams(w http.ResponseWriter, r *http.Request) (game.GenerationParams, bool) {
	var req GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("Invalid JSON in request body", "error", err)
		writeBadRequest(w, h.logger, "Invalid JSON in request body")
		return game.GenerationParams{}, false
	}

	params := game.DefaultGenerationParams()
	if req.NumCharacters != 0 {
		params.NumCharacters = req.NumCharacters
	}
	if req.NumNPCs != 0 {
		params.NumNPCs = req.NumNPCs
	}
	if req.NumActs != 0 {
		params.NumActs = req.NumActs
	}
	params.Model, params.Temperature = h.defaults(req.Model, req.Temperature)

	if err := params.Validate(); err != nil {
		h.logger.Warn("Invalid generation parameters", "error", err)
		writeBadRequest(w, h.logger, err.Error())
		return game.GenerationParams{}, false
	}
	return params, true
}

func (h *WorldGenHandler) defaults(model string, temperature *float32) (string, float32) {
	if model == "" {
		model = h.defaultModel
	}
	t := h.defaultTemperature
	if temperature != nil {
		t = *temperature
	}
	return model, t
}
