package game

import "errors"

var (
	// ErrNotFound indicates the requested game, character, NPC or player
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState indicates the operation is not valid for the game's
	// current state, e.g. generating roles before a background exists or
	// claiming a character twice.
	ErrInvalidState = errors.New("invalid game state")

	// ErrMalformedReply indicates the model returned output that could not
	// be decoded into the expected structure. Pipeline stages that already
	// committed are not rolled back.
	ErrMalformedReply = errors.New("malformed model reply")
)
