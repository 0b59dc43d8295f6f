package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jubensha-labs/mystery-engine/pkg/game"
)

// MockStorage is an in-memory implementation of Storage for testing.
// Setting Err makes every subsequent call fail with that error.
type MockStorage struct {
	mu         sync.RWMutex
	games      map[int64]*game.Game
	characters map[int64][]game.Character // by game id
	npcs       map[int64][]game.NPC       // by game id
	locations  map[int64][]game.Location  // by game id
	players    map[int64][]game.Player    // by game id
	messages   map[int64][]game.Message   // by player id
	playerGame map[int64]int64
	locGame    map[int64]int64
	nextID     int64

	Err       error
	PingError error
}

var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage.
func NewMockStorage() *MockStorage {
	return &MockStorage{
		games:      make(map[int64]*game.Game),
		characters: make(map[int64][]game.Character),
		npcs:       make(map[int64][]game.NPC),
		locations:  make(map[int64][]game.Location),
		players:    make(map[int64][]game.Player),
		messages:   make(map[int64][]game.Message),
		playerGame: make(map[int64]int64),
		locGame:    make(map[int64]int64),
	}
}

func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PingError
}

func (m *MockStorage) Close() error { return nil }

func (m *MockStorage) CreateGame(ctx context.Context) (*game.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.nextID++
	g := &game.Game{ID: m.nextID, CreatedAt: time.Now().UTC()}
	m.games[g.ID] = g
	return copyGame(g), nil
}

func (m *MockStorage) GetGame(ctx context.Context, id int64) (*game.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	g, ok := m.games[id]
	if !ok {
		return nil, fmt.Errorf("game %d: %w", id, game.ErrNotFound)
	}
	return copyGame(g), nil
}

func (m *MockStorage) SaveBackground(ctx context.Context, id int64, background string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	g, ok := m.games[id]
	if !ok {
		return fmt.Errorf("game %d: %w", id, game.ErrNotFound)
	}
	g.Background = background
	return nil
}

func (m *MockStorage) SaveScript(ctx context.Context, id int64, acts []game.Act, ending string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	g, ok := m.games[id]
	if !ok {
		return fmt.Errorf("game %d: %w", id, game.ErrNotFound)
	}
	g.Acts = acts
	g.Ending = ending
	return nil
}

func (m *MockStorage) ResetWorld(ctx context.Context, gameID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.games[gameID]; !ok {
		return fmt.Errorf("game %d: %w", gameID, game.ErrNotFound)
	}
	for _, p := range m.players[gameID] {
		delete(m.messages, p.ID)
		delete(m.playerGame, p.ID)
	}
	for _, l := range m.locations[gameID] {
		delete(m.locGame, l.ID)
	}
	delete(m.characters, gameID)
	delete(m.npcs, gameID)
	delete(m.locations, gameID)
	delete(m.players, gameID)
	return nil
}

func (m *MockStorage) SaveCharacters(ctx context.Context, gameID int64, characters []game.Character) ([]game.Character, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	saved := make([]game.Character, 0, len(characters))
	for _, c := range characters {
		m.nextID++
		c.ID = m.nextID
		c.GameID = gameID
		m.characters[gameID] = append(m.characters[gameID], c)
		saved = append(saved, c)
	}
	return saved, nil
}

func (m *MockStorage) ListCharacters(ctx context.Context, gameID int64) ([]game.Character, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]game.Character(nil), m.characters[gameID]...), nil
}

func (m *MockStorage) GetCharacter(ctx context.Context, gameID, id int64) (*game.Character, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, c := range m.characters[gameID] {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, fmt.Errorf("character %d: %w", id, game.ErrNotFound)
}

func (m *MockStorage) SaveNPCs(ctx context.Context, gameID int64, npcs []game.NPC) ([]game.NPC, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	saved := make([]game.NPC, 0, len(npcs))
	for _, n := range npcs {
		m.nextID++
		n.ID = m.nextID
		n.GameID = gameID
		n.LocationID = nil
		m.npcs[gameID] = append(m.npcs[gameID], n)
		saved = append(saved, n)
	}
	return saved, nil
}

func (m *MockStorage) ListNPCs(ctx context.Context, gameID int64) ([]game.NPC, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]game.NPC(nil), m.npcs[gameID]...), nil
}

func (m *MockStorage) GetNPC(ctx context.Context, gameID, id int64) (*game.NPC, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, n := range m.npcs[gameID] {
		if n.ID == id {
			return &n, nil
		}
	}
	return nil, fmt.Errorf("npc %d: %w", id, game.ErrNotFound)
}

func (m *MockStorage) AssignNPCLocation(ctx context.Context, gameID, npcID, locationID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	npcs := m.npcs[gameID]
	for i := range npcs {
		if npcs[i].ID == npcID {
			loc := locationID
			npcs[i].LocationID = &loc
			return nil
		}
	}
	return fmt.Errorf("npc %d: %w", npcID, game.ErrNotFound)
}

func (m *MockStorage) CreateLocation(ctx context.Context, gameID int64, name string) (*game.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.nextID++
	l := game.Location{ID: m.nextID, GameID: gameID, Name: name}
	m.locations[gameID] = append(m.locations[gameID], l)
	m.locGame[l.ID] = gameID
	return &l, nil
}

func (m *MockStorage) CreateGameObjects(ctx context.Context, locationID int64, objects []game.GameObject) ([]game.GameObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	gameID, ok := m.locGame[locationID]
	if !ok {
		return nil, fmt.Errorf("location %d: %w", locationID, game.ErrNotFound)
	}
	locs := m.locations[gameID]
	for i := range locs {
		if locs[i].ID != locationID {
			continue
		}
		saved := make([]game.GameObject, 0, len(objects))
		for _, o := range objects {
			m.nextID++
			o.ID = m.nextID
			o.LocationID = locationID
			locs[i].Objects = append(locs[i].Objects, o)
			saved = append(saved, o)
		}
		return saved, nil
	}
	return nil, fmt.Errorf("location %d: %w", locationID, game.ErrNotFound)
}

func (m *MockStorage) ListLocations(ctx context.Context, gameID int64) ([]game.Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]game.Location(nil), m.locations[gameID]...), nil
}

func (m *MockStorage) CreatePlayer(ctx context.Context, gameID int64, userID string, characterID *int64) (*game.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if _, ok := m.games[gameID]; !ok {
		return nil, fmt.Errorf("game %d: %w", gameID, game.ErrNotFound)
	}
	if characterID != nil {
		for _, p := range m.players[gameID] {
			if p.CharacterID != nil && *p.CharacterID == *characterID {
				return nil, fmt.Errorf("character %d already claimed: %w", *characterID, game.ErrInvalidState)
			}
		}
	}
	m.nextID++
	p := game.Player{
		ID:                 m.nextID,
		GameID:             gameID,
		UserID:             userID,
		CharacterID:        characterID,
		JoinedAt:           time.Now().UTC(),
		DiscoveredEvidence: []string{},
	}
	m.players[gameID] = append(m.players[gameID], p)
	m.playerGame[p.ID] = gameID
	return &p, nil
}

func (m *MockStorage) GetPlayer(ctx context.Context, gameID, playerID int64) (*game.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, p := range m.players[gameID] {
		if p.ID == playerID {
			cp := p
			cp.DiscoveredEvidence = append([]string(nil), p.DiscoveredEvidence...)
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("player %d: %w", playerID, game.ErrNotFound)
}

func (m *MockStorage) AddPlayerEvidence(ctx context.Context, playerID int64, evidenceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	gameID, ok := m.playerGame[playerID]
	if !ok {
		return fmt.Errorf("player %d: %w", playerID, game.ErrNotFound)
	}
	players := m.players[gameID]
	for i := range players {
		if players[i].ID != playerID {
			continue
		}
		if players[i].HasEvidence(evidenceID) {
			return nil
		}
		players[i].DiscoveredEvidence = append(players[i].DiscoveredEvidence, evidenceID)
		return nil
	}
	return fmt.Errorf("player %d: %w", playerID, game.ErrNotFound)
}

func (m *MockStorage) AppendMessage(ctx context.Context, playerID int64, role, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.playerGame[playerID]; !ok {
		return fmt.Errorf("player %d: %w", playerID, game.ErrNotFound)
	}
	m.nextID++
	m.messages[playerID] = append(m.messages[playerID], game.Message{
		ID:        m.nextID,
		PlayerID:  playerID,
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

func (m *MockStorage) RecentMessages(ctx context.Context, playerID int64, limit int) ([]game.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	msgs := m.messages[playerID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]game.Message(nil), msgs...), nil
}

func copyGame(g *game.Game) *game.Game {
	cp := *g
	cp.Acts = append([]game.Act(nil), g.Acts...)
	return &cp
}
