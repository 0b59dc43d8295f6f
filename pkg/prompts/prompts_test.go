package prompts

import (
	"strings"
	"testing"

	"github.com/jubensha-labs/mystery-engine/pkg/game"
)

func TestCharactersPrompt(t *testing.T) {
	p := CharactersPrompt("A storm traps six guests in a lighthouse.", 4)

	if !strings.Contains(p, "A storm traps six guests in a lighthouse.") {
		t.Error("prompt should embed the background")
	}
	if !strings.Contains(p, "exactly 4 playable characters") {
		t.Error("prompt should carry the requested count")
	}
}

func TestNPCsPromptListsCharacterNames(t *testing.T) {
	p := NPCsPrompt("bg", []string{"Elena", "Marcus", "Priya"}, 2)

	if !strings.Contains(p, "Elena, Marcus, Priya") {
		t.Errorf("prompt should list character names for disjointness:\n%s", p)
	}
	if !strings.Contains(p, "exactly 2 non-playable characters") {
		t.Error("prompt should carry the requested count")
	}
}

func TestActsPromptEnumeratesCharacters(t *testing.T) {
	characters := []game.Character{
		{ID: 1, Name: "Elena", Role: "heiress"},
		{ID: 2, Name: "Marcus", Role: "butler"},
	}
	npcs := []game.NPC{{ID: 10, Name: "Dora", Description: "the cook"}}
	locations := []game.Location{{ID: 100, Name: "The Study"}}

	p := ActsPrompt("bg", characters, npcs, locations, 3)

	if !strings.Contains(p, `"Elena", "Marcus"`) {
		t.Errorf("prompt should enumerate the legal character names:\n%s", p)
	}
	if !strings.Contains(p, "exactly 3 acts") {
		t.Error("prompt should carry the act count")
	}
	if !strings.Contains(p, "The Study") {
		t.Error("prompt should list locations")
	}
	if !strings.Contains(p, "Dora") {
		t.Error("prompt should list NPCs")
	}
}

func TestLocationsPromptCarriesNPCIDs(t *testing.T) {
	npcs := []game.NPC{
		{ID: 7, Name: "Dora", Description: "the cook"},
		{ID: 8, Name: "Stan", Description: "the gardener"},
	}
	p := LocationsPrompt("bg", nil, npcs)

	if !strings.Contains(p, "[7] Dora") || !strings.Contains(p, "[8] Stan") {
		t.Errorf("prompt should list NPC ids for station assignment:\n%s", p)
	}
}
