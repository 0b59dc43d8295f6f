package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/jubensha-labs/mystery-engine/pkg/chat"
)

// GeminiService implements LLMService using the Google Gemini API.
type GeminiService struct {
	client       *genai.Client
	defaultModel string
	log          *slog.Logger
}

var _ LLMService = (*GeminiService)(nil)

// NewGeminiService creates a Gemini-backed LLM service.
func NewGeminiService(ctx context.Context, apiKey string, defaultModel string, log *slog.Logger) (*GeminiService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiService{
		client:       client,
		defaultModel: defaultModel,
		log:          log,
	}, nil
}

// InitModel verifies the model exists on the API.
func (s *GeminiService) InitModel(ctx context.Context, modelName string) error {
	if modelName == "" {
		modelName = s.defaultModel
	}
	info, err := s.client.GenerativeModel(modelName).Info(ctx)
	if err != nil {
		return fmt.Errorf("gemini model %q not available: %w", modelName, err)
	}
	s.log.Info("Gemini model ready", "model", info.Name)
	return nil
}

// Generate performs a single chat completion against Gemini.
func (s *GeminiService) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = s.defaultModel
	}

	model := s.client.GenerativeModel(modelName)
	model.SetTemperature(req.Temperature)
	if req.JSONOutput {
		model.ResponseMIMEType = "application/json"
	}

	messages := req.Messages
	if len(messages) > 0 && messages[0].Role == chat.RoleSystem {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(messages[0].Content)},
		}
		messages = messages[1:]
	}
	if len(messages) == 0 {
		return "", fmt.Errorf("no user messages in request")
	}

	// All but the last message become chat history.
	cs := model.StartChat()
	for _, m := range messages[:len(messages)-1] {
		role := "user"
		if m.Role == chat.RoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	resp, err := cs.SendMessage(ctx, genai.Text(messages[len(messages)-1].Content))
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}

// Close releases the underlying client.
func (s *GeminiService) Close() error {
	return s.client.Close()
}
