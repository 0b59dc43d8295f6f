package prompts

import (
	"fmt"
	"strings"

	"github.com/jubensha-labs/mystery-engine/pkg/chat"
	"github.com/jubensha-labs/mystery-engine/pkg/game"
)

const npcSystemPromptTemplate = `You are %s, a character in a live murder mystery party game. %s

Game background: %s

Stay in character at every turn. You only know what %s could plausibly know.
Never mention that you are an AI or that this is a game.%s

Reply with a single JSON object and nothing else, with exactly these keys:
- "dialogue": what you say out loud, in character
- "hint": a short nudge toward a lead, or null if you have none to give
- "evidence": a piece of evidence you reveal, or null; when not null it is an
  object with keys "id", "name" and "description"

Reveal evidence sparingly, and only when the player's question earns it.`

const (
	speakingToTemplate    = "\nYou are speaking with %s, one of the guests. This conversation is private."
	playerSecretTemplate  = "\nYou have picked up on %s's secret: %s Never reveal it outright; let it color your answers."
	playerMissionTemplate = "\nYou know what %s is really after: %s Tailor your hints toward or away from it as suits your character."
)

// Builder constructs the message array for an NPC chat turn using a fluent
// interface. It separates prompt assembly from relay logic.
type Builder struct {
	npc          *game.NPC
	background   string
	player       *game.Character
	history      []game.Message
	historyLimit int
	userMessage  string
}

// NewChat creates a chat prompt builder with default settings.
func NewChat() *Builder {
	return &Builder{
		historyLimit: 20, // default history window
	}
}

// WithNPC sets the NPC persona the model plays.
func (b *Builder) WithNPC(npc *game.NPC) *Builder {
	b.npc = npc
	return b
}

// WithBackground sets the game background.
func (b *Builder) WithBackground(background string) *Builder {
	b.background = background
	return b
}

// WithPlayerCharacter sets the character the asking player has claimed.
// Optional; unclaimed players interrogate anonymously.
func (b *Builder) WithPlayerCharacter(c *game.Character) *Builder {
	b.player = c
	return b
}

// WithHistory sets the player's prior conversation, oldest first.
func (b *Builder) WithHistory(history []game.Message) *Builder {
	b.history = history
	return b
}

// WithHistoryLimit sets the history window size.
func (b *Builder) WithHistoryLimit(limit int) *Builder {
	b.historyLimit = limit
	return b
}

// WithUserMessage sets the player's new utterance.
func (b *Builder) WithUserMessage(text string) *Builder {
	b.userMessage = text
	return b
}

// Build constructs the final message array for LLM consumption: system
// persona first, then the windowed history, then the new user message.
func (b *Builder) Build() ([]chat.Message, error) {
	if b.npc == nil {
		return nil, fmt.Errorf("npc is required")
	}
	if b.background == "" {
		return nil, fmt.Errorf("background is required")
	}
	if b.userMessage == "" {
		return nil, fmt.Errorf("user message is required")
	}

	messages := make([]chat.Message, 0, len(b.history)+2)
	messages = append(messages, chat.Message{
		Role:    chat.RoleSystem,
		Content: b.systemPrompt(),
	})

	history := b.history
	if len(history) > b.historyLimit {
		history = history[len(history)-b.historyLimit:]
	}
	for _, m := range history {
		role := m.Role
		if role != chat.RoleUser && role != chat.RoleAssistant {
			role = chat.RoleUser
		}
		messages = append(messages, chat.Message{Role: role, Content: m.Content})
	}

	messages = append(messages, chat.Message{
		Role:    chat.RoleUser,
		Content: b.userMessage,
	})
	return messages, nil
}

func (b *Builder) systemPrompt() string {
	speakingTo := ""
	if b.player != nil {
		speakingTo = fmt.Sprintf(speakingToTemplate, b.player.Name)
		if secret := strings.TrimSpace(b.player.Secret); secret != "" {
			speakingTo += fmt.Sprintf(playerSecretTemplate, b.player.Name, sentence(secret))
		}
		if mission := strings.TrimSpace(b.player.Mission); mission != "" {
			speakingTo += fmt.Sprintf(playerMissionTemplate, b.player.Name, sentence(mission))
		}
	}
	desc := sentence(strings.TrimSpace(b.npc.Description))
	return fmt.Sprintf(npcSystemPromptTemplate,
		b.npc.Name, desc, b.background, b.npc.Name, speakingTo)
}

// sentence terminates a fragment with a period so templates read cleanly.
func sentence(s string) string {
	if s != "" && !strings.HasSuffix(s, ".") {
		return s + "."
	}
	return s
}
