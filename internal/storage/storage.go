package storage

import (
	"context"

	"github.com/jubensha-labs/mystery-engine/pkg/game"
)

// Storage defines the persistence interface for games, world entities,
// players and conversation logs. Lookups for missing rows return
// game.ErrNotFound. Implementations: PostgresStorage (relational),
// RedisStorage (one session blob per game), MockStorage (tests).
type Storage interface {
	Ping(ctx context.Context) error
	Close() error

	// Games
	CreateGame(ctx context.Context) (*game.Game, error)
	GetGame(ctx context.Context, id int64) (*game.Game, error)
	SaveBackground(ctx context.Context, id int64, background string) error
	// SaveScript overwrites the game's acts and ending.
	SaveScript(ctx context.Context, id int64, acts []game.Act, ending string) error
	// ResetWorld clears characters, NPCs, locations, objects, players and
	// messages for a game in a single atomic step.
	ResetWorld(ctx context.Context, gameID int64) error

	// Characters
	SaveCharacters(ctx context.Context, gameID int64, characters []game.Character) ([]game.Character, error)
	ListCharacters(ctx context.Context, gameID int64) ([]game.Character, error)
	GetCharacter(ctx context.Context, gameID, id int64) (*game.Character, error)

	// NPCs
	SaveNPCs(ctx context.Context, gameID int64, npcs []game.NPC) ([]game.NPC, error)
	ListNPCs(ctx context.Context, gameID int64) ([]game.NPC, error)
	GetNPC(ctx context.Context, gameID, id int64) (*game.NPC, error)
	AssignNPCLocation(ctx context.Context, gameID, npcID, locationID int64) error

	// Locations and objects
	CreateLocation(ctx context.Context, gameID int64, name string) (*game.Location, error)
	CreateGameObjects(ctx context.Context, locationID int64, objects []game.GameObject) ([]game.GameObject, error)
	ListLocations(ctx context.Context, gameID int64) ([]game.Location, error)

	// Players
	// CreatePlayer claims a character for a user. Claiming an already
	// claimed character returns game.ErrInvalidState.
	CreatePlayer(ctx context.Context, gameID int64, userID string, characterID *int64) (*game.Player, error)
	GetPlayer(ctx context.Context, gameID, playerID int64) (*game.Player, error)
	// AddPlayerEvidence records a discovered evidence id. Duplicates are
	// ignored.
	AddPlayerEvidence(ctx context.Context, playerID int64, evidenceID string) error

	// Messages
	AppendMessage(ctx context.Context, playerID int64, role, content string) error
	// RecentMessages returns the newest limit messages, oldest first.
	RecentMessages(ctx context.Context, playerID int64, limit int) ([]game.Message, error)
}
