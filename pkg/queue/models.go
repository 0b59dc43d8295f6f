package queue

import (
	"encoding/json"
	"time"

	"github.com/jubensha-labs/mystery-engine/pkg/game"
)

// RequestType identifies the type of request in the queue
type RequestType string

const (
	// RequestTypeGenerateFull regenerates the entire world for a game.
	RequestTypeGenerateFull RequestType = "generate_full"

	// RequestTypeGenerateRoles regenerates characters and NPCs only.
	RequestTypeGenerateRoles RequestType = "generate_roles"
)

// Request represents a queued generation request.
type Request struct {
	RequestID string                `json:"request_id"`
	Type      RequestType           `json:"type"`
	GameID    int64                 `json:"game_id"`
	Params    game.GenerationParams `json:"params"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}

// ToJSON converts the request to JSON bytes for Redis
func (r *Request) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// FromJSON parses a request from JSON bytes
func FromJSON(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
