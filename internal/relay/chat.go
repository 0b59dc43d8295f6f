// Package relay forwards player messages to NPC personas and records both
// sides of the conversation.
package relay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jubensha-labs/mystery-engine/internal/services"
	"github.com/jubensha-labs/mystery-engine/internal/storage"
	"github.com/jubensha-labs/mystery-engine/pkg/chat"
	"github.com/jubensha-labs/mystery-engine/pkg/game"
	"github.com/jubensha-labs/mystery-engine/pkg/llmjson"
	"github.com/jubensha-labs/mystery-engine/pkg/prompts"
)

// Service relays chat turns between players and NPCs.
type Service struct {
	storage      storage.Storage
	llm          services.LLMService
	log          *slog.Logger
	historyLimit int
}

func New(st storage.Storage, llm services.LLMService, historyLimit int, log *slog.Logger) *Service {
	if historyLimit <= 0 {
		historyLimit = 20
	}
	return &Service{storage: st, llm: llm, historyLimit: historyLimit, log: log}
}

// ChatWithNPC runs one chat turn: validates the participants, builds the
// persona prompt with the player's recent history, calls the model, parses
// the structured reply and persists both messages. A reply that is not
// valid JSON is not an error; it is returned as plain dialogue.
func (s *Service) ChatWithNPC(ctx context.Context, gameID, playerID, npcID int64, text, model string, temperature float32) (*chat.NPCReply, error) {
	g, err := s.storage.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g.Background == "" {
		return nil, fmt.Errorf("game %d has no background: %w", gameID, game.ErrInvalidState)
	}

	player, err := s.storage.GetPlayer(ctx, gameID, playerID)
	if err != nil {
		return nil, err
	}
	npc, err := s.storage.GetNPC(ctx, gameID, npcID)
	if err != nil {
		return nil, err
	}

	var claimed *game.Character
	if player.CharacterID != nil {
		claimed, err = s.storage.GetCharacter(ctx, gameID, *player.CharacterID)
		if err != nil {
			// A cleared character leaves a dangling claim; chat proceeds
			// anonymously.
			s.log.Warn("Player's claimed character no longer exists",
				"game_id", gameID, "player_id", playerID, "character_id", *player.CharacterID)
			claimed = nil
		}
	}

	history, err := s.storage.RecentMessages(ctx, playerID, s.historyLimit)
	if err != nil {
		return nil, err
	}

	messages, err := prompts.NewChat().
		WithNPC(npc).
		WithBackground(g.Background).
		WithPlayerCharacter(claimed).
		WithHistory(history).
		WithHistoryLimit(s.historyLimit).
		WithUserMessage(text).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build chat prompt: %w", err)
	}

	raw, err := s.llm.Generate(ctx, services.GenerateRequest{
		Messages:    messages,
		Model:       model,
		Temperature: temperature,
		JSONOutput:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("chat generation failed: %w", err)
	}

	reply := parseReply(raw)
	if reply.Hint == nil && reply.Evidence == nil && reply.Dialogue == raw {
		s.log.Debug("NPC reply was not structured JSON, returned as dialogue",
			"game_id", gameID, "npc_id", npcID)
	}

	if err := s.storage.AppendMessage(ctx, playerID, chat.RoleUser, text); err != nil {
		return nil, err
	}
	if err := s.storage.AppendMessage(ctx, playerID, chat.RoleAssistant, reply.Dialogue); err != nil {
		return nil, err
	}

	if reply.Evidence != nil && reply.Evidence.ID != "" {
		if err := s.storage.AddPlayerEvidence(ctx, playerID, reply.Evidence.ID); err != nil {
			return nil, err
		}
		s.log.Info("Evidence discovered",
			"game_id", gameID, "player_id", playerID, "evidence_id", reply.Evidence.ID)
	}

	return reply, nil
}

// parseReply decodes the structured NPC reply. Malformed output degrades
// to plain dialogue rather than failing the turn.
func parseReply(raw string) *chat.NPCReply {
	var reply chat.NPCReply
	if err := llmjson.Decode(raw, &reply); err != nil || reply.Dialogue == "" {
		return &chat.NPCReply{Dialogue: raw}
	}
	return &reply
}
