package chat

import (
	"fmt"

	"github.com/jubensha-labs/mystery-engine/pkg/game"
)

const (
	RoleUser      = "user"      // Player
	RoleAssistant = "assistant" // NPC
	RoleSystem    = "system"    // Persona and rules
)

// Message is a single message in the conversation sent to the LLM.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// ChatRequest is a chat message a player sends to an NPC. Model and
// Temperature override the server defaults when set.
type ChatRequest struct {
	Text        string   `json:"text"`
	Model       string   `json:"model,omitempty"`
	Temperature *float32 `json:"temperature,omitempty"`
}

func (cr *ChatRequest) Validate() error {
	if cr.Text == "" {
		return fmt.Errorf("text cannot be empty")
	}
	if cr.Temperature != nil && (*cr.Temperature < 0 || *cr.Temperature > 1) {
		return fmt.Errorf("temperature must be between 0 and 1, got %g", *cr.Temperature)
	}
	return nil
}

// NPCReply is the structured reply the NPC chat endpoint returns. When the
// model's output cannot be parsed, Dialogue carries the raw text and Hint
// and Evidence are nil.
type NPCReply struct {
	Dialogue string         `json:"dialogue"`
	Hint     *string        `json:"hint"`
	Evidence *game.Evidence `json:"evidence"`
}
