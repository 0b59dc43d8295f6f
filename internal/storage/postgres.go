package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jubensha-labs/mystery-engine/pkg/game"
)

// PostgresStorage implements the Storage interface on a Postgres pool.
type PostgresStorage struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

var _ Storage = (*PostgresStorage)(nil)

// NewPostgresStorage connects to Postgres and verifies the connection.
func NewPostgresStorage(ctx context.Context, databaseURL string, log *slog.Logger) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return &PostgresStorage{pool: pool, log: log}, nil
}

func (s *PostgresStorage) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

func (s *PostgresStorage) Close() error {
	s.pool.Close()
	s.log.Info("Postgres connection pool closed")
	return nil
}

// Games

func (s *PostgresStorage) CreateGame(ctx context.Context) (*game.Game, error) {
	var g game.Game
	err := pgxscan.Get(ctx, s.pool, &g,
		`INSERT INTO games DEFAULT VALUES
		 RETURNING id, created_at, background, acts, ending`)
	if err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}
	return &g, nil
}

func (s *PostgresStorage) GetGame(ctx context.Context, id int64) (*game.Game, error) {
	var g game.Game
	err := pgxscan.Get(ctx, s.pool, &g,
		`SELECT id, created_at, background, acts, ending FROM games WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("game %d: %w", id, game.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get game %d: %w", id, err)
	}
	return &g, nil
}

func (s *PostgresStorage) SaveBackground(ctx context.Context, id int64, background string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE games SET background = $2 WHERE id = $1`, id, background)
	if err != nil {
		return fmt.Errorf("failed to save background: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("game %d: %w", id, game.ErrNotFound)
	}
	return nil
}

func (s *PostgresStorage) SaveScript(ctx context.Context, id int64, acts []game.Act, ending string) error {
	if acts == nil {
		acts = []game.Act{}
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE games SET acts = $2, ending = $3 WHERE id = $1`, id, acts, ending)
	if err != nil {
		return fmt.Errorf("failed to save script: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("game %d: %w", id, game.ErrNotFound)
	}
	return nil
}

// ResetWorld deletes every generated entity of the game in one transaction,
// so regeneration never observes a half-cleared world.
func (s *PostgresStorage) ResetWorld(ctx context.Context, gameID int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin reset transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	statements := []string{
		`DELETE FROM messages USING players
		  WHERE messages.player_id = players.id AND players.game_id = $1`,
		`DELETE FROM players WHERE game_id = $1`,
		`DELETE FROM game_objects USING locations
		  WHERE game_objects.location_id = locations.id AND locations.game_id = $1`,
		`DELETE FROM npcs WHERE game_id = $1`,
		`DELETE FROM locations WHERE game_id = $1`,
		`DELETE FROM characters WHERE game_id = $1`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt, gameID); err != nil {
			return fmt.Errorf("failed to reset world for game %d: %w", gameID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit reset transaction: %w", err)
	}
	return nil
}

// Characters

func (s *PostgresStorage) SaveCharacters(ctx context.Context, gameID int64, characters []game.Character) ([]game.Character, error) {
	saved := make([]game.Character, 0, len(characters))
	for _, c := range characters {
		var stored game.Character
		err := pgxscan.Get(ctx, s.pool, &stored,
			`INSERT INTO characters (game_id, name, role, public_info, secret, mission)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id, game_id, name, role, public_info, secret, mission`,
			gameID, c.Name, c.Role, c.PublicInfo, c.Secret, c.Mission)
		if err != nil {
			return nil, fmt.Errorf("failed to save character %q: %w", c.Name, err)
		}
		saved = append(saved, stored)
	}
	return saved, nil
}

func (s *PostgresStorage) ListCharacters(ctx context.Context, gameID int64) ([]game.Character, error) {
	var characters []game.Character
	err := pgxscan.Select(ctx, s.pool, &characters,
		`SELECT id, game_id, name, role, public_info, secret, mission
		   FROM characters WHERE game_id = $1 ORDER BY id`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list characters: %w", err)
	}
	return characters, nil
}

func (s *PostgresStorage) GetCharacter(ctx context.Context, gameID, id int64) (*game.Character, error) {
	var c game.Character
	err := pgxscan.Get(ctx, s.pool, &c,
		`SELECT id, game_id, name, role, public_info, secret, mission
		   FROM characters WHERE game_id = $1 AND id = $2`, gameID, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("character %d: %w", id, game.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get character %d: %w", id, err)
	}
	return &c, nil
}

// NPCs

func (s *PostgresStorage) SaveNPCs(ctx context.Context, gameID int64, npcs []game.NPC) ([]game.NPC, error) {
	saved := make([]game.NPC, 0, len(npcs))
	for _, n := range npcs {
		var stored game.NPC
		err := pgxscan.Get(ctx, s.pool, &stored,
			`INSERT INTO npcs (game_id, name, description)
			 VALUES ($1, $2, $3)
			 RETURNING id, game_id, name, description, location_id`,
			gameID, n.Name, n.Description)
		if err != nil {
			return nil, fmt.Errorf("failed to save npc %q: %w", n.Name, err)
		}
		saved = append(saved, stored)
	}
	return saved, nil
}

func (s *PostgresStorage) ListNPCs(ctx context.Context, gameID int64) ([]game.NPC, error) {
	var npcs []game.NPC
	err := pgxscan.Select(ctx, s.pool, &npcs,
		`SELECT id, game_id, name, description, location_id
		   FROM npcs WHERE game_id = $1 ORDER BY id`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list npcs: %w", err)
	}
	return npcs, nil
}

func (s *PostgresStorage) GetNPC(ctx context.Context, gameID, id int64) (*game.NPC, error) {
	var n game.NPC
	err := pgxscan.Get(ctx, s.pool, &n,
		`SELECT id, game_id, name, description, location_id
		   FROM npcs WHERE game_id = $1 AND id = $2`, gameID, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("npc %d: %w", id, game.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get npc %d: %w", id, err)
	}
	return &n, nil
}

func (s *PostgresStorage) AssignNPCLocation(ctx context.Context, gameID, npcID, locationID int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE npcs SET location_id = $3 WHERE game_id = $1 AND id = $2`,
		gameID, npcID, locationID)
	if err != nil {
		return fmt.Errorf("failed to assign npc %d to location %d: %w", npcID, locationID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("npc %d: %w", npcID, game.ErrNotFound)
	}
	return nil
}

// Locations and objects

func (s *PostgresStorage) CreateLocation(ctx context.Context, gameID int64, name string) (*game.Location, error) {
	var l game.Location
	err := pgxscan.Get(ctx, s.pool, &l,
		`INSERT INTO locations (game_id, name) VALUES ($1, $2)
		 RETURNING id, game_id, name`, gameID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create location %q: %w", name, err)
	}
	return &l, nil
}

func (s *PostgresStorage) CreateGameObjects(ctx context.Context, locationID int64, objects []game.GameObject) ([]game.GameObject, error) {
	saved := make([]game.GameObject, 0, len(objects))
	for _, o := range objects {
		var stored game.GameObject
		err := pgxscan.Get(ctx, s.pool, &stored,
			`INSERT INTO game_objects (location_id, name, locked, clue, owner_id)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id, location_id, name, locked, clue, owner_id`,
			locationID, o.Name, o.Locked, o.Clue, o.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("failed to create object %q: %w", o.Name, err)
		}
		saved = append(saved, stored)
	}
	return saved, nil
}

func (s *PostgresStorage) ListLocations(ctx context.Context, gameID int64) ([]game.Location, error) {
	var locations []game.Location
	err := pgxscan.Select(ctx, s.pool, &locations,
		`SELECT id, game_id, name FROM locations WHERE game_id = $1 ORDER BY id`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}

	for i := range locations {
		var objects []game.GameObject
		err := pgxscan.Select(ctx, s.pool, &objects,
			`SELECT id, location_id, name, locked, clue, owner_id
			   FROM game_objects WHERE location_id = $1 ORDER BY id`, locations[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects for location %d: %w", locations[i].ID, err)
		}
		locations[i].Objects = objects
	}
	return locations, nil
}

// Players

func (s *PostgresStorage) CreatePlayer(ctx context.Context, gameID int64, userID string, characterID *int64) (*game.Player, error) {
	if characterID != nil {
		var claimed bool
		err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM players WHERE game_id = $1 AND character_id = $2)`,
			gameID, *characterID).Scan(&claimed)
		if err != nil {
			return nil, fmt.Errorf("failed to check character claim: %w", err)
		}
		if claimed {
			return nil, fmt.Errorf("character %d already claimed: %w", *characterID, game.ErrInvalidState)
		}
	}

	var p game.Player
	err := pgxscan.Get(ctx, s.pool, &p,
		`INSERT INTO players (game_id, user_id, character_id)
		 VALUES ($1, $2, $3)
		 RETURNING id, game_id, user_id, character_id, joined_at, discovered_evidence`,
		gameID, userID, characterID)
	if err != nil {
		return nil, fmt.Errorf("failed to create player: %w", err)
	}
	return &p, nil
}

func (s *PostgresStorage) GetPlayer(ctx context.Context, gameID, playerID int64) (*game.Player, error) {
	var p game.Player
	err := pgxscan.Get(ctx, s.pool, &p,
		`SELECT id, game_id, user_id, character_id, joined_at, discovered_evidence
		   FROM players WHERE game_id = $1 AND id = $2`, gameID, playerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("player %d: %w", playerID, game.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get player %d: %w", playerID, err)
	}
	return &p, nil
}

func (s *PostgresStorage) AddPlayerEvidence(ctx context.Context, playerID int64, evidenceID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE players
		    SET discovered_evidence = discovered_evidence || to_jsonb($2::text)
		  WHERE id = $1 AND NOT discovered_evidence ? $2`,
		playerID, evidenceID)
	if err != nil {
		return fmt.Errorf("failed to add evidence %q: %w", evidenceID, err)
	}
	if tag.RowsAffected() == 0 {
		// Either the player does not exist or the evidence is already
		// recorded; distinguish for the caller.
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM players WHERE id = $1)`, playerID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check player %d: %w", playerID, err)
		}
		if !exists {
			return fmt.Errorf("player %d: %w", playerID, game.ErrNotFound)
		}
	}
	return nil
}

// Messages

func (s *PostgresStorage) AppendMessage(ctx context.Context, playerID int64, role, content string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (player_id, role, content) VALUES ($1, $2, $3)`,
		playerID, role, content)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

func (s *PostgresStorage) RecentMessages(ctx context.Context, playerID int64, limit int) ([]game.Message, error) {
	var messages []game.Message
	err := pgxscan.Select(ctx, s.pool, &messages,
		`SELECT id, player_id, role, content, created_at AS timestamp
		   FROM messages WHERE player_id = $1
		  ORDER BY id DESC LIMIT $2`, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent messages: %w", err)
	}

	// Newest-first from the query; callers want oldest-first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
