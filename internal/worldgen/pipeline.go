// Package worldgen runs the staged world-generation pipeline: background,
// characters, NPCs, locations with objects, then acts and ending. Each
// stage persists before the next starts and nothing is rolled back on
// failure, so a partially generated world stays inspectable.
package worldgen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jubensha-labs/mystery-engine/internal/services"
	"github.com/jubensha-labs/mystery-engine/internal/storage"
	"github.com/jubensha-labs/mystery-engine/pkg/chat"
	"github.com/jubensha-labs/mystery-engine/pkg/game"
	"github.com/jubensha-labs/mystery-engine/pkg/llmjson"
	"github.com/jubensha-labs/mystery-engine/pkg/prompts"
)

// Service orchestrates the generation stages.
type Service struct {
	storage storage.Storage
	llm     services.LLMService
	log     *slog.Logger
}

// Result is the assembled output of a full generation run.
type Result struct {
	GameID     int64            `json:"game_id"`
	Background string           `json:"background"`
	Characters []game.Character `json:"characters"`
	NPCs       []game.NPC       `json:"npcs"`
	Locations  []game.Location  `json:"locations"`
	Acts       []game.Act       `json:"acts"`
	Ending     string           `json:"ending"`
}

// RolesResult is the output of a characters-and-NPCs run.
type RolesResult struct {
	GameID     int64            `json:"game_id"`
	Characters []game.Character `json:"characters"`
	NPCs       []game.NPC       `json:"npcs"`
}

func New(st storage.Storage, llm services.LLMService, log *slog.Logger) *Service {
	return &Service{storage: st, llm: llm, log: log}
}

// Raw stage payloads as the model emits them.

type characterSpec struct {
	Name       string `json:"name"`
	Role       string `json:"role"`
	PublicInfo string `json:"public_info"`
	Secret     string `json:"secret"`
	Mission    string `json:"mission"`
}

type npcSpec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type objectSpec struct {
	Name    string  `json:"name"`
	Lock    bool    `json:"lock"`
	Clue    *string `json:"clue"`
	OwnerID *int64  `json:"owner_id"`
}

type locationSpec struct {
	Name    string       `json:"name"`
	NPCs    []int64      `json:"npcs"`
	Objects []objectSpec `json:"objects"`
}

type scriptDoc struct {
	Acts []struct {
		ActNumber int           `json:"act_number"`
		Scripts   []game.Script `json:"scripts"`
	} `json:"acts"`
	Ending string `json:"ending"`
}

// GenerateBackground produces and persists the opening background for an
// existing game. The model is asked for a short single line; newlines are
// stripped defensively because history shows models ignore that rule.
func (s *Service) GenerateBackground(ctx context.Context, gameID int64, request, model string, temperature float32) (string, error) {
	if _, err := s.storage.GetGame(ctx, gameID); err != nil {
		return "", err
	}
	if strings.TrimSpace(request) == "" {
		return "", fmt.Errorf("background request cannot be empty")
	}

	raw, err := s.generate(ctx, prompts.BackgroundPrompt(request), model, temperature, false)
	if err != nil {
		return "", err
	}

	background := strings.Join(strings.Fields(raw), " ")
	if background == "" {
		return "", fmt.Errorf("background stage: %w: empty reply", game.ErrMalformedReply)
	}
	if err := s.storage.SaveBackground(ctx, gameID, background); err != nil {
		return "", err
	}
	s.log.Info("Background generated", "game_id", gameID, "length", len(background))
	return background, nil
}

// GenerateRoles clears the world and regenerates characters and NPCs.
func (s *Service) GenerateRoles(ctx context.Context, gameID int64, p game.GenerationParams) (*RolesResult, error) {
	g, err := s.precondition(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if err := s.storage.ResetWorld(ctx, gameID); err != nil {
		return nil, err
	}
	characters, npcs, err := s.generateCast(ctx, g, p)
	if err != nil {
		return nil, err
	}
	return &RolesResult{GameID: gameID, Characters: characters, NPCs: npcs}, nil
}

// GenerateFull clears the world and regenerates everything: characters,
// NPCs, locations with objects, and the scripted acts with the ending.
func (s *Service) GenerateFull(ctx context.Context, gameID int64, p game.GenerationParams) (*Result, error) {
	g, err := s.precondition(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if err := s.storage.ResetWorld(ctx, gameID); err != nil {
		return nil, err
	}

	characters, npcs, err := s.generateCast(ctx, g, p)
	if err != nil {
		return nil, err
	}

	locations, npcs, err := s.generateLocations(ctx, g, characters, npcs, p)
	if err != nil {
		return nil, err
	}

	acts, ending, err := s.generateScript(ctx, g, characters, npcs, locations, p)
	if err != nil {
		return nil, err
	}
	if err := s.storage.SaveScript(ctx, gameID, acts, ending); err != nil {
		return nil, err
	}

	s.log.Info("Full world generated",
		"game_id", gameID,
		"characters", len(characters),
		"npcs", len(npcs),
		"locations", len(locations),
		"acts", len(acts))

	return &Result{
		GameID:     gameID,
		Background: g.Background,
		Characters: characters,
		NPCs:       npcs,
		Locations:  locations,
		Acts:       acts,
		Ending:     ending,
	}, nil
}

// precondition loads the game and requires a background.
func (s *Service) precondition(ctx context.Context, gameID int64) (*game.Game, error) {
	g, err := s.storage.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g.Background == "" {
		return nil, fmt.Errorf("game %d has no background: %w", gameID, game.ErrInvalidState)
	}
	return g, nil
}

// generateCast runs the character and NPC stages, persisting each.
func (s *Service) generateCast(ctx context.Context, g *game.Game, p game.GenerationParams) ([]game.Character, []game.NPC, error) {
	raw, err := s.generate(ctx, prompts.CharactersPrompt(g.Background, p.NumCharacters), p.Model, p.Temperature, true)
	if err != nil {
		return nil, nil, err
	}
	var charSpecs []characterSpec
	if err := llmjson.Decode(raw, &charSpecs); err != nil {
		return nil, nil, fmt.Errorf("character stage: %w: %v", game.ErrMalformedReply, err)
	}
	if len(charSpecs) != p.NumCharacters {
		return nil, nil, fmt.Errorf("character stage: %w: expected %d characters, got %d",
			game.ErrMalformedReply, p.NumCharacters, len(charSpecs))
	}

	toSave := make([]game.Character, len(charSpecs))
	names := make([]string, len(charSpecs))
	for i, cs := range charSpecs {
		if cs.Name == "" {
			return nil, nil, fmt.Errorf("character stage: %w: character %d has no name", game.ErrMalformedReply, i)
		}
		toSave[i] = game.Character{
			Name:       cs.Name,
			Role:       cs.Role,
			PublicInfo: cs.PublicInfo,
			Secret:     cs.Secret,
			Mission:    cs.Mission,
		}
		names[i] = cs.Name
	}
	characters, err := s.storage.SaveCharacters(ctx, g.ID, toSave)
	if err != nil {
		return nil, nil, err
	}

	raw, err = s.generate(ctx, prompts.NPCsPrompt(g.Background, names, p.NumNPCs), p.Model, p.Temperature, true)
	if err != nil {
		return nil, nil, err
	}
	var npcSpecs []npcSpec
	if err := llmjson.Decode(raw, &npcSpecs); err != nil {
		return nil, nil, fmt.Errorf("npc stage: %w: %v", game.ErrMalformedReply, err)
	}
	if len(npcSpecs) != p.NumNPCs {
		return nil, nil, fmt.Errorf("npc stage: %w: expected %d npcs, got %d",
			game.ErrMalformedReply, p.NumNPCs, len(npcSpecs))
	}

	toSaveNPCs := make([]game.NPC, len(npcSpecs))
	for i, ns := range npcSpecs {
		if ns.Name == "" {
			return nil, nil, fmt.Errorf("npc stage: %w: npc %d has no name", game.ErrMalformedReply, i)
		}
		toSaveNPCs[i] = game.NPC{Name: ns.Name, Description: ns.Description}
	}
	npcs, err := s.storage.SaveNPCs(ctx, g.ID, toSaveNPCs)
	if err != nil {
		return nil, nil, err
	}
	return characters, npcs, nil
}

// generateLocations runs the location stage: creates locations and their
// objects, and stations NPCs. NPC ids the model invents are ignored with a
// warning rather than failing the whole run.
func (s *Service) generateLocations(ctx context.Context, g *game.Game, characters []game.Character, npcs []game.NPC, p game.GenerationParams) ([]game.Location, []game.NPC, error) {
	raw, err := s.generate(ctx, prompts.LocationsPrompt(g.Background, characters, npcs), p.Model, p.Temperature, true)
	if err != nil {
		return nil, nil, err
	}
	var locSpecs []locationSpec
	if err := llmjson.Decode(raw, &locSpecs); err != nil {
		return nil, nil, fmt.Errorf("location stage: %w: %v", game.ErrMalformedReply, err)
	}
	if len(locSpecs) == 0 {
		return nil, nil, fmt.Errorf("location stage: %w: no locations", game.ErrMalformedReply)
	}

	npcByID := make(map[int64]bool, len(npcs))
	for _, n := range npcs {
		npcByID[n.ID] = true
	}
	charByID := make(map[int64]bool, len(characters))
	for _, c := range characters {
		charByID[c.ID] = true
	}

	locations := make([]game.Location, 0, len(locSpecs))
	for _, ls := range locSpecs {
		loc, err := s.storage.CreateLocation(ctx, g.ID, ls.Name)
		if err != nil {
			return nil, nil, err
		}

		objects := make([]game.GameObject, 0, len(ls.Objects))
		for _, os := range ls.Objects {
			owner := os.OwnerID
			if owner != nil && !charByID[*owner] {
				s.log.Warn("Object owner is not a character of this game, dropping owner",
					"game_id", g.ID, "object", os.Name, "owner_id", *owner)
				owner = nil
			}
			objects = append(objects, game.GameObject{
				Name:    os.Name,
				Locked:  os.Lock,
				Clue:    os.Clue,
				OwnerID: owner,
			})
		}
		if len(objects) > 0 {
			if loc.Objects, err = s.storage.CreateGameObjects(ctx, loc.ID, objects); err != nil {
				return nil, nil, err
			}
		}

		for _, npcID := range ls.NPCs {
			if !npcByID[npcID] {
				s.log.Warn("Model stationed an unknown npc id, ignoring",
					"game_id", g.ID, "location", ls.Name, "npc_id", npcID)
				continue
			}
			if err := s.storage.AssignNPCLocation(ctx, g.ID, npcID, loc.ID); err != nil {
				return nil, nil, err
			}
		}
		locations = append(locations, *loc)
	}

	// Re-read NPCs so callers see the assigned locations.
	updated, err := s.storage.ListNPCs(ctx, g.ID)
	if err != nil {
		return nil, nil, err
	}
	return locations, updated, nil
}

// generateScript runs the acts-and-ending stage. Scripts naming a character
// outside the generated cast violate the contract and fail the stage.
func (s *Service) generateScript(ctx context.Context, g *game.Game, characters []game.Character, npcs []game.NPC, locations []game.Location, p game.GenerationParams) ([]game.Act, string, error) {
	raw, err := s.generate(ctx, prompts.ActsPrompt(g.Background, characters, npcs, locations, p.NumActs), p.Model, p.Temperature, true)
	if err != nil {
		return nil, "", err
	}
	var doc scriptDoc
	if err := llmjson.Decode(raw, &doc); err != nil {
		return nil, "", fmt.Errorf("acts stage: %w: %v", game.ErrMalformedReply, err)
	}
	if len(doc.Acts) != p.NumActs {
		return nil, "", fmt.Errorf("acts stage: %w: asked for %d acts, got %d",
			game.ErrMalformedReply, p.NumActs, len(doc.Acts))
	}
	if strings.TrimSpace(doc.Ending) == "" {
		return nil, "", fmt.Errorf("acts stage: %w: empty ending", game.ErrMalformedReply)
	}

	cast := make(map[string]bool, len(characters))
	for _, c := range characters {
		cast[c.Name] = true
	}

	acts := make([]game.Act, len(doc.Acts))
	for i, a := range doc.Acts {
		for _, sc := range a.Scripts {
			if !cast[sc.Character] {
				return nil, "", fmt.Errorf("acts stage: %w: script names unknown character %q",
					game.ErrMalformedReply, sc.Character)
			}
		}
		// Renumber sequentially; models occasionally zero-index.
		acts[i] = game.Act{ActNumber: i + 1, Scripts: a.Scripts}
	}
	return acts, doc.Ending, nil
}

func (s *Service) generate(ctx context.Context, userPrompt, model string, temperature float32, jsonOutput bool) (string, error) {
	return s.llm.Generate(ctx, services.GenerateRequest{
		Messages: []chat.Message{
			{Role: chat.RoleSystem, Content: prompts.WorldGenSystemPrompt},
			{Role: chat.RoleUser, Content: userPrompt},
		},
		Model:       model,
		Temperature: temperature,
		JSONOutput:  jsonOutput,
	})
}
