package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jubensha-labs/mystery-engine/pkg/game"
)

const (
	gameKeyPrefix  = "game:"
	gameCounterKey = "game:next_id"
)

// RedisStorage implements the Storage interface with one JSON session blob
// per game. Every mutation loads the blob, applies the change and writes it
// back; the blob is the unit of atomicity, which makes ResetWorld a single
// write.
type RedisStorage struct {
	client *redis.Client
	logger *slog.Logger
}

var _ Storage = (*RedisStorage)(nil)

// session is the per-game blob layout.
type session struct {
	Game       game.Game                `json:"game"`
	Characters []game.Character         `json:"characters"`
	NPCs       []game.NPC               `json:"npcs"`
	Locations  []game.Location          `json:"locations"`
	Players    []game.Player            `json:"players"`
	Messages   map[int64][]game.Message `json:"messages"` // keyed by player id
	NextID     int64                    `json:"next_id"`  // entity id counter
}

// NewRedisStorage creates a new Redis storage instance. redisURL may be a
// plain host:port or a redis:// URL.
func NewRedisStorage(redisURL string, logger *slog.Logger) *RedisStorage {
	var rdb *redis.Client
	if strings.Contains(redisURL, "://") {
		if opt, err := redis.ParseURL(redisURL); err == nil {
			rdb = redis.NewClient(opt)
		}
	}
	if rdb == nil {
		rdb = redis.NewClient(&redis.Options{Addr: redisURL})
	}
	return &RedisStorage{client: rdb, logger: logger}
}

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

func gameKey(id int64) string {
	return fmt.Sprintf("%s%d", gameKeyPrefix, id)
}

func (r *RedisStorage) load(ctx context.Context, gameID int64) (*session, error) {
	data, err := r.client.Get(ctx, gameKey(gameID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("game %d: %w", gameID, game.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load game %d: %w", gameID, err)
	}
	var s session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game %d: %w", gameID, err)
	}
	if s.Messages == nil {
		s.Messages = make(map[int64][]game.Message)
	}
	return &s, nil
}

func (r *RedisStorage) save(ctx context.Context, s *session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal game %d: %w", s.Game.ID, err)
	}
	if err := r.client.Set(ctx, gameKey(s.Game.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save game %d: %w", s.Game.ID, err)
	}
	return nil
}

// update loads the session, applies fn and writes the result back.
func (r *RedisStorage) update(ctx context.Context, gameID int64, fn func(*session) error) error {
	s, err := r.load(ctx, gameID)
	if err != nil {
		return err
	}
	if err := fn(s); err != nil {
		return err
	}
	return r.save(ctx, s)
}

// Games

func (r *RedisStorage) CreateGame(ctx context.Context) (*game.Game, error) {
	id, err := r.client.Incr(ctx, gameCounterKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate game id: %w", err)
	}
	s := &session{
		Game:     game.Game{ID: id, CreatedAt: time.Now().UTC()},
		Messages: make(map[int64][]game.Message),
	}
	if err := r.save(ctx, s); err != nil {
		return nil, err
	}
	g := s.Game
	return &g, nil
}

func (r *RedisStorage) GetGame(ctx context.Context, id int64) (*game.Game, error) {
	s, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	g := s.Game
	return &g, nil
}

func (r *RedisStorage) SaveBackground(ctx context.Context, id int64, background string) error {
	return r.update(ctx, id, func(s *session) error {
		s.Game.Background = background
		return nil
	})
}

func (r *RedisStorage) SaveScript(ctx context.Context, id int64, acts []game.Act, ending string) error {
	return r.update(ctx, id, func(s *session) error {
		s.Game.Acts = acts
		s.Game.Ending = ending
		return nil
	})
}

func (r *RedisStorage) ResetWorld(ctx context.Context, gameID int64) error {
	return r.update(ctx, gameID, func(s *session) error {
		s.Characters = nil
		s.NPCs = nil
		s.Locations = nil
		s.Players = nil
		s.Messages = make(map[int64][]game.Message)
		return nil
	})
}

// Characters

func (r *RedisStorage) SaveCharacters(ctx context.Context, gameID int64, characters []game.Character) ([]game.Character, error) {
	var saved []game.Character
	err := r.update(ctx, gameID, func(s *session) error {
		for _, c := range characters {
			s.NextID++
			c.ID = s.NextID
			c.GameID = gameID
			s.Characters = append(s.Characters, c)
			saved = append(saved, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (r *RedisStorage) ListCharacters(ctx context.Context, gameID int64) ([]game.Character, error) {
	s, err := r.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return append([]game.Character(nil), s.Characters...), nil
}

func (r *RedisStorage) GetCharacter(ctx context.Context, gameID, id int64) (*game.Character, error) {
	s, err := r.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	for _, c := range s.Characters {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, fmt.Errorf("character %d: %w", id, game.ErrNotFound)
}

// NPCs

func (r *RedisStorage) SaveNPCs(ctx context.Context, gameID int64, npcs []game.NPC) ([]game.NPC, error) {
	var saved []game.NPC
	err := r.update(ctx, gameID, func(s *session) error {
		for _, n := range npcs {
			s.NextID++
			n.ID = s.NextID
			n.GameID = gameID
			n.LocationID = nil
			s.NPCs = append(s.NPCs, n)
			saved = append(saved, n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (r *RedisStorage) ListNPCs(ctx context.Context, gameID int64) ([]game.NPC, error) {
	s, err := r.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return append([]game.NPC(nil), s.NPCs...), nil
}

func (r *RedisStorage) GetNPC(ctx context.Context, gameID, id int64) (*game.NPC, error) {
	s, err := r.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	for _, n := range s.NPCs {
		if n.ID == id {
			return &n, nil
		}
	}
	return nil, fmt.Errorf("npc %d: %w", id, game.ErrNotFound)
}

func (r *RedisStorage) AssignNPCLocation(ctx context.Context, gameID, npcID, locationID int64) error {
	return r.update(ctx, gameID, func(s *session) error {
		for i := range s.NPCs {
			if s.NPCs[i].ID == npcID {
				loc := locationID
				s.NPCs[i].LocationID = &loc
				return nil
			}
		}
		return fmt.Errorf("npc %d: %w", npcID, game.ErrNotFound)
	})
}

// Locations and objects

func (r *RedisStorage) CreateLocation(ctx context.Context, gameID int64, name string) (*game.Location, error) {
	var created game.Location
	err := r.update(ctx, gameID, func(s *session) error {
		s.NextID++
		created = game.Location{ID: s.NextID, GameID: gameID, Name: name}
		s.Locations = append(s.Locations, created)
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Secondary index so object creation can find the owning blob.
	if err := r.client.Set(ctx, fmt.Sprintf("location-game:%d", created.ID), gameID, 0).Err(); err != nil {
		return nil, fmt.Errorf("failed to index location %d: %w", created.ID, err)
	}
	return &created, nil
}

func (r *RedisStorage) CreateGameObjects(ctx context.Context, locationID int64, objects []game.GameObject) ([]game.GameObject, error) {
	var saved []game.GameObject
	gameID, err := r.findGameByLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}
	err = r.update(ctx, gameID, func(s *session) error {
		for i := range s.Locations {
			if s.Locations[i].ID != locationID {
				continue
			}
			for _, o := range objects {
				s.NextID++
				o.ID = s.NextID
				o.LocationID = locationID
				s.Locations[i].Objects = append(s.Locations[i].Objects, o)
				saved = append(saved, o)
			}
			return nil
		}
		return fmt.Errorf("location %d: %w", locationID, game.ErrNotFound)
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (r *RedisStorage) ListLocations(ctx context.Context, gameID int64) ([]game.Location, error) {
	s, err := r.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return append([]game.Location(nil), s.Locations...), nil
}

// findGameByLocation resolves the game owning a location via the index key
// written by CreateLocation.
func (r *RedisStorage) findGameByLocation(ctx context.Context, locationID int64) (int64, error) {
	id, err := r.client.Get(ctx, fmt.Sprintf("location-game:%d", locationID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, fmt.Errorf("location %d: %w", locationID, game.ErrNotFound)
		}
		return 0, fmt.Errorf("failed to resolve location %d: %w", locationID, err)
	}
	return id, nil
}

// Players

func (r *RedisStorage) CreatePlayer(ctx context.Context, gameID int64, userID string, characterID *int64) (*game.Player, error) {
	var created game.Player
	err := r.update(ctx, gameID, func(s *session) error {
		if characterID != nil {
			for _, p := range s.Players {
				if p.CharacterID != nil && *p.CharacterID == *characterID {
					return fmt.Errorf("character %d already claimed: %w", *characterID, game.ErrInvalidState)
				}
			}
		}
		s.NextID++
		created = game.Player{
			ID:                 s.NextID,
			GameID:             gameID,
			UserID:             userID,
			CharacterID:        characterID,
			JoinedAt:           time.Now().UTC(),
			DiscoveredEvidence: []string{},
		}
		s.Players = append(s.Players, created)
		s.Messages[created.ID] = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Secondary index so message and evidence writes can find the blob.
	if err := r.client.Set(ctx, fmt.Sprintf("player-game:%d", created.ID), gameID, 0).Err(); err != nil {
		return nil, fmt.Errorf("failed to index player %d: %w", created.ID, err)
	}
	return &created, nil
}

func (r *RedisStorage) GetPlayer(ctx context.Context, gameID, playerID int64) (*game.Player, error) {
	s, err := r.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	for _, p := range s.Players {
		if p.ID == playerID {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("player %d: %w", playerID, game.ErrNotFound)
}

func (r *RedisStorage) AddPlayerEvidence(ctx context.Context, playerID int64, evidenceID string) error {
	gameID, err := r.findGameByPlayer(ctx, playerID)
	if err != nil {
		return err
	}
	return r.update(ctx, gameID, func(s *session) error {
		for i := range s.Players {
			if s.Players[i].ID != playerID {
				continue
			}
			if s.Players[i].HasEvidence(evidenceID) {
				return nil
			}
			s.Players[i].DiscoveredEvidence = append(s.Players[i].DiscoveredEvidence, evidenceID)
			return nil
		}
		return fmt.Errorf("player %d: %w", playerID, game.ErrNotFound)
	})
}

// Messages

func (r *RedisStorage) AppendMessage(ctx context.Context, playerID int64, role, content string) error {
	gameID, err := r.findGameByPlayer(ctx, playerID)
	if err != nil {
		return err
	}
	return r.update(ctx, gameID, func(s *session) error {
		found := false
		for _, p := range s.Players {
			if p.ID == playerID {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("player %d: %w", playerID, game.ErrNotFound)
		}
		s.NextID++
		s.Messages[playerID] = append(s.Messages[playerID], game.Message{
			ID:        s.NextID,
			PlayerID:  playerID,
			Role:      role,
			Content:   content,
			Timestamp: time.Now().UTC(),
		})
		return nil
	})
}

func (r *RedisStorage) RecentMessages(ctx context.Context, playerID int64, limit int) ([]game.Message, error) {
	gameID, err := r.findGameByPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	s, err := r.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	msgs := s.Messages[playerID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]game.Message(nil), msgs...), nil
}

func (r *RedisStorage) findGameByPlayer(ctx context.Context, playerID int64) (int64, error) {
	id, err := r.client.Get(ctx, fmt.Sprintf("player-game:%d", playerID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, fmt.Errorf("player %d: %w", playerID, game.ErrNotFound)
		}
		return 0, fmt.Errorf("failed to resolve player %d: %w", playerID, err)
	}
	return id, nil
}
