package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/jubensha-labs/mystery-engine/internal/config"
	"github.com/jubensha-labs/mystery-engine/internal/logger"
	genqueue "github.com/jubensha-labs/mystery-engine/internal/services/queue"
	"github.com/jubensha-labs/mystery-engine/pkg/game"
	"github.com/jubensha-labs/mystery-engine/pkg/queue"
)

// Developer utility: pushes a generation request onto the queue so the
// worker can be exercised without going through the API.
func main() {
	gameID := flag.Int64("game", 0, "game id to generate for (required)")
	rolesOnly := flag.Bool("roles", false, "generate characters and NPCs only")
	numCharacters := flag.Int("characters", 0, "number of player characters")
	numNPCs := flag.Int("npcs", 0, "number of NPCs")
	numActs := flag.Int("acts", 0, "number of acts")
	flag.Parse()

	if *gameID == 0 {
		log.Fatal("-game is required")
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	client, err := genqueue.NewClient(cfg.RedisURL, logger.Setup(cfg))
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer client.Close()

	params := game.DefaultGenerationParams()
	if *numCharacters != 0 {
		params.NumCharacters = *numCharacters
	}
	if *numNPCs != 0 {
		params.NumNPCs = *numNPCs
	}
	if *numActs != 0 {
		params.NumActs = *numActs
	}
	if err := params.Validate(); err != nil {
		log.Fatal(err)
	}

	reqType := queue.RequestTypeGenerateFull
	if *rolesOnly {
		reqType = queue.RequestTypeGenerateRoles
	}
	req := &queue.Request{
		RequestID:  uuid.New().String(),
		Type:       reqType,
		GameID:     *gameID,
		Params:     params,
		EnqueuedAt: time.Now().UTC(),
	}

	ctx := context.Background()
	q := genqueue.NewGenerationQueue(client)
	if err := q.Enqueue(ctx, req); err != nil {
		log.Fatal("Failed to enqueue request:", err)
	}
	fmt.Printf("Enqueued %s request %s for game %d\n", req.Type, req.RequestID, req.GameID)

	depth, err := q.Depth(ctx)
	if err != nil {
		log.Fatal("Failed to get queue depth:", err)
	}
	fmt.Printf("Queue depth: %d\n", depth)
}
