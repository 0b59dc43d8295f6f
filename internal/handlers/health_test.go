package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/jubensha-labs/mystery-engine/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestHealthHandler(t *testing.T) {
	st := storage.NewMockStorage()
	handler := NewHealthHandler(st, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
	if resp.Service != "mystery-engine" {
		t.Errorf("service = %q, want mystery-engine", resp.Service)
	}
	if resp.Components["storage"] != "healthy" {
		t.Errorf("storage component = %q, want healthy", resp.Components["storage"])
	}
}

func TestHealthHandlerDegraded(t *testing.T) {
	st := storage.NewMockStorage()
	st.PingError = errors.New("connection refused")
	handler := NewHealthHandler(st, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "degraded" {
		t.Errorf("status = %q, want degraded", resp.Status)
	}
	if resp.Components["storage"] != "unhealthy" {
		t.Errorf("storage component = %q, want unhealthy", resp.Components["storage"])
	}
}
