package services

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jubensha-labs/mystery-engine/pkg/chat"
)

// OpenAIService implements LLMService using the OpenAI chat completion API.
// A custom base URL makes it work against any OpenAI-compatible server.
type OpenAIService struct {
	client       *openai.Client
	defaultModel string
	log          *slog.Logger
}

var _ LLMService = (*OpenAIService)(nil)

// NewOpenAIService creates an OpenAI-backed LLM service. baseURL may be
// empty to use the default API endpoint.
func NewOpenAIService(apiKey, baseURL, defaultModel string, log *slog.Logger) *OpenAIService {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIService{
		client:       openai.NewClientWithConfig(cfg),
		defaultModel: defaultModel,
		log:          log,
	}
}

// InitModel verifies the API is reachable. Model availability is not
// enforced because compatible servers often omit the models endpoint data.
func (s *OpenAIService) InitModel(ctx context.Context, modelName string) error {
	models, err := s.client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("openai API not reachable: %w", err)
	}
	if modelName == "" {
		modelName = s.defaultModel
	}
	for _, m := range models.Models {
		if m.ID == modelName {
			s.log.Info("OpenAI model ready", "model", modelName)
			return nil
		}
	}
	s.log.Warn("Model not listed by API, continuing anyway", "model", modelName)
	return nil
}

// Generate performs a single chat completion.
func (s *OpenAIService) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = s.defaultModel
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case chat.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case chat.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}

	completionReq := openai.ChatCompletionRequest{
		Model:       modelName,
		Messages:    messages,
		Temperature: req.Temperature,
	}
	if req.JSONOutput {
		completionReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := s.client.CreateChatCompletion(ctx, completionReq)
	if err != nil {
		return "", fmt.Errorf("openai generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
