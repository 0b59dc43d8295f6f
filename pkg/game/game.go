package game

import "time"

// Game is the root aggregate for one mystery session. Background is the
// opening scene the whole world is generated from. Acts and Ending hold the
// generated script and are empty until a full generation has run.
type Game struct {
	ID         int64     `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Background string    `json:"background,omitempty"`
	Acts       []Act     `json:"acts,omitempty"`
	Ending     string    `json:"ending,omitempty"`
}

// Act is one act of the generated script.
type Act struct {
	ActNumber int      `json:"act_number"`
	Scripts   []Script `json:"scripts"`
}

// Script is a single scripted line. Character must be the name of one of
// the game's generated characters.
type Script struct {
	Character string `json:"character"`
	Dialogue  string `json:"dialogue"`
}

// Character is a playable role. PublicInfo is shared with the table;
// Secret and Mission are private to the claiming player.
type Character struct {
	ID         int64  `json:"id"`
	GameID     int64  `json:"game_id"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	PublicInfo string `json:"public_info"`
	Secret     string `json:"secret"`
	Mission    string `json:"mission"`
}

// NPC is a non-playable figure players can interrogate. LocationID is nil
// until the location stage of generation places the NPC somewhere.
type NPC struct {
	ID          int64  `json:"id"`
	GameID      int64  `json:"game_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	LocationID  *int64 `json:"location_id,omitempty"`
}

// Location is a searchable scene containing objects.
type Location struct {
	ID      int64        `json:"id"`
	GameID  int64        `json:"game_id"`
	Name    string       `json:"name"`
	Objects []GameObject `json:"objects,omitempty"`
}

// GameObject is an interactable object inside a location. Clue is nil for
// set dressing; OwnerID optionally ties the object to a character.
type GameObject struct {
	ID         int64   `json:"id"`
	LocationID int64   `json:"location_id"`
	Name       string  `json:"name"`
	Locked     bool    `json:"locked"`
	Clue       *string `json:"clue,omitempty"`
	OwnerID    *int64  `json:"owner_id,omitempty"`
}

// Player is a user who joined a game, optionally bound to a claimed
// character. DiscoveredEvidence accumulates evidence ids surfaced in chat.
type Player struct {
	ID                 int64     `json:"id"`
	GameID             int64     `json:"game_id"`
	UserID             string    `json:"user_id"`
	CharacterID        *int64    `json:"character_id,omitempty"`
	JoinedAt           time.Time `json:"joined_at"`
	DiscoveredEvidence []string  `json:"discovered_evidence"`
}

// Message is one turn of a player's private conversation log.
type Message struct {
	ID        int64     `json:"id"`
	PlayerID  int64     `json:"player_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Evidence is a piece of evidence an NPC may reveal during chat.
type Evidence struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// HasEvidence reports whether the player already discovered the given
// evidence id.
func (p *Player) HasEvidence(id string) bool {
	for _, e := range p.DiscoveredEvidence {
		if e == id {
			return true
		}
	}
	return false
}
