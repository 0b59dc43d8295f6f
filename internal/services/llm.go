package services

import (
	"context"

	"github.com/jubensha-labs/mystery-engine/pkg/chat"
)

// GenerateRequest is a single generation call. Messages may start with a
// system message; providers map it to their native system channel. When
// JSONOutput is set, providers request JSON-mode output where the API
// supports it.
type GenerateRequest struct {
	Messages    []chat.Message
	Model       string
	Temperature float32
	JSONOutput  bool
}

// LLMService defines the interface for interacting with an LLM provider.
// Calls carry no retries or internal timeouts; callers bound them via ctx.
type LLMService interface {
	// InitModel verifies the provider is reachable and the model usable.
	// Called once on startup.
	InitModel(ctx context.Context, modelName string) error

	// Generate performs one generation call and returns the raw text output.
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}
