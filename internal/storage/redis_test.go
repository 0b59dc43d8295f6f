package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/jubensha-labs/mystery-engine/pkg/game"
)

func setupRedisStorage(t *testing.T) *RedisStorage {
	t.Helper()
	mr := miniredis.RunT(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s := NewRedisStorage(mr.Addr(), logger)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRedisStorageGameLifecycle(t *testing.T) {
	s := setupRedisStorage(t)
	ctx := context.Background()

	g, err := s.CreateGame(ctx)
	if err != nil {
		t.Fatalf("CreateGame() error = %v", err)
	}
	if g.ID == 0 {
		t.Fatal("expected a non-zero game id")
	}

	if err := s.SaveBackground(ctx, g.ID, "A diamond vanishes at the gala."); err != nil {
		t.Fatalf("SaveBackground() error = %v", err)
	}
	loaded, err := s.GetGame(ctx, g.ID)
	if err != nil {
		t.Fatalf("GetGame() error = %v", err)
	}
	if loaded.Background != "A diamond vanishes at the gala." {
		t.Errorf("background = %q", loaded.Background)
	}

	acts := []game.Act{{ActNumber: 1, Scripts: []game.Script{{Character: "Elena", Dialogue: "Who turned off the lights?"}}}}
	if err := s.SaveScript(ctx, g.ID, acts, "It was the caterer."); err != nil {
		t.Fatalf("SaveScript() error = %v", err)
	}
	loaded, _ = s.GetGame(ctx, g.ID)
	if len(loaded.Acts) != 1 || loaded.Ending != "It was the caterer." {
		t.Errorf("script not persisted: %+v", loaded)
	}

	_, err = s.GetGame(ctx, 9999)
	if !errors.Is(err, game.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing game, got %v", err)
	}
}

func TestRedisStorageCharactersAndNPCs(t *testing.T) {
	s := setupRedisStorage(t)
	ctx := context.Background()
	g, _ := s.CreateGame(ctx)

	chars, err := s.SaveCharacters(ctx, g.ID, []game.Character{
		{Name: "Elena", Role: "heiress"},
		{Name: "Marcus", Role: "butler"},
	})
	if err != nil {
		t.Fatalf("SaveCharacters() error = %v", err)
	}
	if len(chars) != 2 || chars[0].ID == 0 || chars[1].ID == chars[0].ID {
		t.Fatalf("expected distinct assigned ids, got %+v", chars)
	}

	npcs, err := s.SaveNPCs(ctx, g.ID, []game.NPC{{Name: "Dora", Description: "the cook"}})
	if err != nil {
		t.Fatalf("SaveNPCs() error = %v", err)
	}

	loc, err := s.CreateLocation(ctx, g.ID, "The Study")
	if err != nil {
		t.Fatalf("CreateLocation() error = %v", err)
	}
	if err := s.AssignNPCLocation(ctx, g.ID, npcs[0].ID, loc.ID); err != nil {
		t.Fatalf("AssignNPCLocation() error = %v", err)
	}
	n, err := s.GetNPC(ctx, g.ID, npcs[0].ID)
	if err != nil {
		t.Fatalf("GetNPC() error = %v", err)
	}
	if n.LocationID == nil || *n.LocationID != loc.ID {
		t.Errorf("npc location = %v, want %d", n.LocationID, loc.ID)
	}

	clue := "a torn receipt"
	objs, err := s.CreateGameObjects(ctx, loc.ID, []game.GameObject{
		{Name: "Desk", Locked: true, Clue: &clue},
	})
	if err != nil {
		t.Fatalf("CreateGameObjects() error = %v", err)
	}
	if len(objs) != 1 || objs[0].LocationID != loc.ID {
		t.Fatalf("unexpected objects: %+v", objs)
	}

	locations, err := s.ListLocations(ctx, g.ID)
	if err != nil {
		t.Fatalf("ListLocations() error = %v", err)
	}
	if len(locations) != 1 || len(locations[0].Objects) != 1 {
		t.Errorf("expected one location with one object, got %+v", locations)
	}
}

func TestRedisStorageListLocations(t *testing.T) {
	s := setupRedisStorage(t)
	ctx := context.Background()
	g, _ := s.CreateGame(ctx)

	locations, err := s.ListLocations(ctx, g.ID)
	if err != nil {
		t.Fatalf("ListLocations() error = %v", err)
	}
	if len(locations) != 0 {
		t.Errorf("expected no locations for a fresh game, got %+v", locations)
	}

	study, err := s.CreateLocation(ctx, g.ID, "The Study")
	if err != nil {
		t.Fatalf("CreateLocation() error = %v", err)
	}
	if _, err := s.CreateLocation(ctx, g.ID, "The Kitchen"); err != nil {
		t.Fatalf("CreateLocation() error = %v", err)
	}
	clue := "a torn receipt"
	if _, err := s.CreateGameObjects(ctx, study.ID, []game.GameObject{
		{Name: "Desk", Locked: true, Clue: &clue},
	}); err != nil {
		t.Fatalf("CreateGameObjects() error = %v", err)
	}

	locations, err = s.ListLocations(ctx, g.ID)
	if err != nil {
		t.Fatalf("ListLocations() error = %v", err)
	}
	if len(locations) != 2 {
		t.Fatalf("expected 2 locations, got %d", len(locations))
	}
	if locations[0].Name != "The Study" || locations[1].Name != "The Kitchen" {
		t.Errorf("order not preserved: %q, %q", locations[0].Name, locations[1].Name)
	}
	if len(locations[0].Objects) != 1 || locations[0].Objects[0].Name != "Desk" {
		t.Errorf("objects not returned with their location: %+v", locations[0].Objects)
	}

	_, err = s.ListLocations(ctx, 9999)
	if !errors.Is(err, game.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing game, got %v", err)
	}
}

func TestRedisStoragePlayersAndMessages(t *testing.T) {
	s := setupRedisStorage(t)
	ctx := context.Background()
	g, _ := s.CreateGame(ctx)
	chars, _ := s.SaveCharacters(ctx, g.ID, []game.Character{{Name: "Elena"}})

	p, err := s.CreatePlayer(ctx, g.ID, "user-1", &chars[0].ID)
	if err != nil {
		t.Fatalf("CreatePlayer() error = %v", err)
	}

	// Double claim is rejected.
	_, err = s.CreatePlayer(ctx, g.ID, "user-2", &chars[0].ID)
	if !errors.Is(err, game.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState for double claim, got %v", err)
	}

	for i := 0; i < 25; i++ {
		if err := s.AppendMessage(ctx, p.ID, "user", fmt.Sprintf("msg-%d", i)); err != nil {
			t.Fatalf("AppendMessage() error = %v", err)
		}
	}
	msgs, err := s.RecentMessages(ctx, p.ID, 20)
	if err != nil {
		t.Fatalf("RecentMessages() error = %v", err)
	}
	if len(msgs) != 20 {
		t.Fatalf("expected 20 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "msg-5" || msgs[19].Content != "msg-24" {
		t.Errorf("window wrong: first %q last %q", msgs[0].Content, msgs[19].Content)
	}

	if err := s.AddPlayerEvidence(ctx, p.ID, "ev-1"); err != nil {
		t.Fatalf("AddPlayerEvidence() error = %v", err)
	}
	// Duplicate evidence is ignored.
	if err := s.AddPlayerEvidence(ctx, p.ID, "ev-1"); err != nil {
		t.Fatalf("AddPlayerEvidence() duplicate error = %v", err)
	}
	loaded, _ := s.GetPlayer(ctx, g.ID, p.ID)
	if len(loaded.DiscoveredEvidence) != 1 {
		t.Errorf("discovered evidence = %v, want exactly one entry", loaded.DiscoveredEvidence)
	}
}

func TestRedisStorageResetWorld(t *testing.T) {
	s := setupRedisStorage(t)
	ctx := context.Background()
	g, _ := s.CreateGame(ctx)
	_ = s.SaveBackground(ctx, g.ID, "bg")
	chars, _ := s.SaveCharacters(ctx, g.ID, []game.Character{{Name: "Elena"}})
	_, _ = s.SaveNPCs(ctx, g.ID, []game.NPC{{Name: "Dora"}})
	p, _ := s.CreatePlayer(ctx, g.ID, "user-1", &chars[0].ID)
	_ = s.AppendMessage(ctx, p.ID, "user", "hello")

	if err := s.ResetWorld(ctx, g.ID); err != nil {
		t.Fatalf("ResetWorld() error = %v", err)
	}

	if cs, _ := s.ListCharacters(ctx, g.ID); len(cs) != 0 {
		t.Errorf("characters not cleared: %+v", cs)
	}
	if ns, _ := s.ListNPCs(ctx, g.ID); len(ns) != 0 {
		t.Errorf("npcs not cleared: %+v", ns)
	}
	if _, err := s.GetPlayer(ctx, g.ID, p.ID); !errors.Is(err, game.ErrNotFound) {
		t.Errorf("expected player to be cleared, got %v", err)
	}

	// The background survives a reset.
	loaded, _ := s.GetGame(ctx, g.ID)
	if loaded.Background != "bg" {
		t.Errorf("background should survive reset, got %q", loaded.Background)
	}
}
