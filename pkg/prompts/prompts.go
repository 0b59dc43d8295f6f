package prompts

import (
	"fmt"
	"strings"

	"github.com/jubensha-labs/mystery-engine/pkg/game"
)

// WorldGenSystemPrompt frames every world-generation call. Individual
// stages add their own format contract on top.
const WorldGenSystemPrompt = `You are the game master of a live murder mystery party game. ` +
	`You design tight, playable scenarios: every secret must be discoverable, ` +
	`every character must have a motive, and nothing may contradict the game background. ` +
	`Respond with JSON only. No markdown, no commentary.`

const backgroundPromptTemplate = `Write the opening background for a murder mystery party game.

Player request: %s

Rules:
- A single paragraph of at most 200 characters.
- Plain text on one line. No newlines, no JSON, no markdown.
- Establish the setting and the death, but do not reveal the culprit.`

const charactersPromptTemplate = `Game background:
%s

Create exactly %d playable characters for this mystery.

Return a JSON array. Each element must have exactly these keys:
- "name": a bare given name, distinct from every other name in the array
- "role": the character's role in the setting
- "public_info": what everyone at the table knows about them
- "secret": something only this character knows
- "mission": what this character privately wants to accomplish

Every character must be plausibly suspicious. None of them is the murderer.`

const npcsPromptTemplate = `Game background:
%s

The playable characters are named: %s.

Create exactly %d non-playable characters (NPCs) players can interrogate.

Return a JSON array. Each element must have exactly these keys:
- "name": a bare given name that does NOT appear in the character list above
- "description": who they are and what they might have seen

NPCs are witnesses and bystanders, not suspects.`

const locationsPromptTemplate = `Game background:
%s

Playable characters:
%s

NPCs (with their numeric ids):
%s

Create 2 to 4 searchable locations for this mystery.

Return a JSON array. Each element must have exactly these keys:
- "name": the location name
- "npcs": an array of NPC ids (from the list above) stationed at this location
- "objects": an array of objects, each with keys:
  - "name": the object name
  - "lock": true if the object is locked, otherwise false
  - "clue": a clue text, or null if the object is set dressing
  - "owner_id": the id of the owning character from the list above, or null

Station every NPC at exactly one location. Spread clues across locations.`

const actsPromptTemplate = `Game background:
%s

Playable characters:
%s

NPCs:
%s

Locations:
%s

Write the scripted portion of the mystery as exactly %d acts, then the ending.

Return a JSON object with exactly these keys:
- "acts": an array of %d elements, each with keys:
  - "act_number": the 1-based act number
  - "scripts": an array of lines, each with keys:
    - "character": EXACTLY one of these names and nothing else: %s
    - "dialogue": the line the character reads aloud
- "ending": the full resolution of the mystery

The murderer named in the ending must be an outsider who is not among the
playable characters. Every character must appear in every act.`

// BackgroundPrompt builds the user prompt for the background stage.
func BackgroundPrompt(request string) string {
	return fmt.Sprintf(backgroundPromptTemplate, request)
}

// CharactersPrompt builds the user prompt for the character stage.
func CharactersPrompt(background string, n int) string {
	return fmt.Sprintf(charactersPromptTemplate, background, n)
}

// NPCsPrompt builds the user prompt for the NPC stage. Character names are
// embedded so the model keeps the two name sets disjoint.
func NPCsPrompt(background string, characterNames []string, n int) string {
	return fmt.Sprintf(npcsPromptTemplate, background, strings.Join(characterNames, ", "), n)
}

// LocationsPrompt builds the user prompt for the location stage.
func LocationsPrompt(background string, characters []game.Character, npcs []game.NPC) string {
	return fmt.Sprintf(locationsPromptTemplate, background,
		formatCharacters(characters), formatNPCs(npcs))
}

// ActsPrompt builds the user prompt for the acts-and-ending stage. The
// character name list is repeated verbatim as the only legal values for the
// "character" key, which is the strongest enum constraint available at the
// prompt level.
func ActsPrompt(background string, characters []game.Character, npcs []game.NPC, locations []game.Location, numActs int) string {
	names := make([]string, len(characters))
	for i, c := range characters {
		names[i] = fmt.Sprintf("%q", c.Name)
	}
	return fmt.Sprintf(actsPromptTemplate, background,
		formatCharacters(characters), formatNPCs(npcs), formatLocations(locations),
		numActs, numActs, strings.Join(names, ", "))
}

func formatCharacters(characters []game.Character) string {
	var sb strings.Builder
	for _, c := range characters {
		fmt.Fprintf(&sb, "- [%d] %s (%s): %s\n", c.ID, c.Name, c.Role, c.PublicInfo)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatNPCs(npcs []game.NPC) string {
	var sb strings.Builder
	for _, n := range npcs {
		fmt.Fprintf(&sb, "- [%d] %s: %s\n", n.ID, n.Name, n.Description)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatLocations(locations []game.Location) string {
	var sb strings.Builder
	for _, l := range locations {
		fmt.Fprintf(&sb, "- [%d] %s\n", l.ID, l.Name)
	}
	return strings.TrimRight(sb.String(), "\n")
}
