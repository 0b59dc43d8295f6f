package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jubensha-labs/mystery-engine/internal/services"
	genqueue "github.com/jubensha-labs/mystery-engine/internal/services/queue"
	"github.com/jubensha-labs/mystery-engine/internal/storage"
	"github.com/jubensha-labs/mystery-engine/internal/worldgen"
)

const (
	charactersJSON = `[
		{"name":"Elena","role":"heiress","public_info":"Hosted the gala.","secret":"Broke.","mission":"Find the will."},
		{"name":"Marcus","role":"butler","public_info":"Served for decades.","secret":"Saw the argument.","mission":"Protect the family."},
		{"name":"Priya","role":"doctor","public_info":"Family physician.","secret":"Forged a certificate.","mission":"Retrieve the file."}
	]`
	npcsJSON = `[
		{"name":"Dora","description":"the cook"},
		{"name":"Stan","description":"the gardener"}
	]`
)

func newWorldGenHandler(st *storage.MockStorage, llm *services.MockLLM, q *genqueue.GenerationQueue) *WorldGenHandler {
	pipeline := worldgen.New(st, llm, testLogger())
	return NewWorldGenHandler(st, pipeline, q, "gemini-2.0-flash", 0.7, testLogger())
}

func seedBackground(t *testing.T, st *storage.MockStorage) int64 {
	t.Helper()
	ctx := context.Background()
	g, err := st.CreateGame(ctx)
	require.NoError(t, err)
	require.NoError(t, st.SaveBackground(ctx, g.ID, "A collector dies at his own gala."))
	return g.ID
}

func TestWorldGenCreateGame(t *testing.T) {
	h := newWorldGenHandler(storage.NewMockStorage(), services.NewMockLLM(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/world/games", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]int64
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, int64(1), resp["game_id"])
}

func TestWorldGenReadWorld(t *testing.T) {
	st := storage.NewMockStorage()
	gameID := seedBackground(t, st)
	h := newWorldGenHandler(st, services.NewMockLLM(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/world/games/1", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp WorldResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, gameID, resp.Game.ID)
	assert.Equal(t, "A collector dies at his own gala.", resp.Game.Background)
	assert.Empty(t, resp.Characters)
}

func TestWorldGenReadMissingGame(t *testing.T) {
	h := newWorldGenHandler(storage.NewMockStorage(), services.NewMockLLM(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/world/games/99", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWorldGenInvalidGameID(t *testing.T) {
	h := newWorldGenHandler(storage.NewMockStorage(), services.NewMockLLM(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/world/games/not-a-number", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWorldGenBackground(t *testing.T) {
	st := storage.NewMockStorage()
	g, err := st.CreateGame(context.Background())
	require.NoError(t, err)

	llm := services.NewMockLLM("A storm traps six guests in a lighthouse hotel.")
	h := newWorldGenHandler(st, llm, nil)

	body := strings.NewReader(`{"prompt":"a lighthouse mystery"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/world/games/1/background", body)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "A storm traps six guests in a lighthouse hotel.", resp["background"])

	stored, err := st.GetGame(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, "A storm traps six guests in a lighthouse hotel.", stored.Background)
}

func TestWorldGenBackgroundMissingPrompt(t *testing.T) {
	st := storage.NewMockStorage()
	_, err := st.CreateGame(context.Background())
	require.NoError(t, err)
	h := newWorldGenHandler(st, services.NewMockLLM(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/world/games/1/background", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWorldGenCharacters(t *testing.T) {
	st := storage.NewMockStorage()
	seedBackground(t, st)
	llm := services.NewMockLLM(charactersJSON, npcsJSON)
	h := newWorldGenHandler(st, llm, nil)

	body := strings.NewReader(`{"num_characters":3,"num_npcs":2}`)
	req := httptest.NewRequest(http.MethodPost, "/api/world/games/1/characters", body)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp worldgen.RolesResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Len(t, resp.Characters, 3)
	assert.Len(t, resp.NPCs, 2)
}

func TestWorldGenCharactersTemperature(t *testing.T) {
	tests := []struct {
		name string
		body string
		want float32
	}{
		{"explicit zero is honored", `{"num_characters":3,"num_npcs":2,"temperature":0}`, 0},
		{"omitted falls back to the default", `{"num_characters":3,"num_npcs":2}`, 0.7},
		{"explicit value wins", `{"num_characters":3,"num_npcs":2,"temperature":0.2}`, 0.2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := storage.NewMockStorage()
			seedBackground(t, st)
			llm := services.NewMockLLM(charactersJSON, npcsJSON)
			h := newWorldGenHandler(st, llm, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/world/games/1/characters", strings.NewReader(tc.body))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			calls := llm.Calls()
			require.NotEmpty(t, calls)
			for _, c := range calls {
				assert.Equal(t, tc.want, c.Temperature)
			}
		})
	}
}

func TestWorldGenCharactersInvalidParams(t *testing.T) {
	st := storage.NewMockStorage()
	seedBackground(t, st)
	llm := services.NewMockLLM()
	h := newWorldGenHandler(st, llm, nil)

	body := strings.NewReader(`{"num_characters":2}`)
	req := httptest.NewRequest(http.MethodPost, "/api/world/games/1/characters", body)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, llm.Calls())
}

func TestWorldGenCharactersWithoutBackground(t *testing.T) {
	st := storage.NewMockStorage()
	_, err := st.CreateGame(context.Background())
	require.NoError(t, err)
	h := newWorldGenHandler(st, services.NewMockLLM(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/world/games/1/characters", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestWorldGenFullMalformedModelOutput(t *testing.T) {
	st := storage.NewMockStorage()
	seedBackground(t, st)
	llm := services.NewMockLLM("this is not json")
	h := newWorldGenHandler(st, llm, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/world/games/1/generate_full", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestWorldGenFullAsync(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := genqueue.NewClient(mr.Addr(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	q := genqueue.NewGenerationQueue(client)

	st := storage.NewMockStorage()
	seedBackground(t, st)
	h := newWorldGenHandler(st, services.NewMockLLM(), q)

	req := httptest.NewRequest(http.MethodPost, "/api/world/games/1/generate_full/async", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var resp map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.NotEmpty(t, resp["request_id"])

	depth, err := q.Depth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func TestWorldGenFullAsyncWithoutBackground(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := genqueue.NewClient(mr.Addr(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	q := genqueue.NewGenerationQueue(client)

	st := storage.NewMockStorage()
	_, err = st.CreateGame(context.Background())
	require.NoError(t, err)
	h := newWorldGenHandler(st, services.NewMockLLM(), q)

	req := httptest.NewRequest(http.MethodPost, "/api/world/games/1/generate_full/async", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)

	depth, err := q.Depth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}

func TestWorldGenMethodNotAllowed(t *testing.T) {
	st := storage.NewMockStorage()
	seedBackground(t, st)
	h := newWorldGenHandler(st, services.NewMockLLM(), nil)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/world/games"},
		{http.MethodDelete, "/api/world/games/1"},
		{http.MethodGet, "/api/world/games/1/background"},
		{http.MethodGet, "/api/world/games/1/generate_full"},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, "%s %s", tc.method, tc.path)
	}
}
