package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jubensha-labs/mystery-engine/internal/services"
	"github.com/jubensha-labs/mystery-engine/internal/services/queue"
	"github.com/jubensha-labs/mystery-engine/internal/storage"
	"github.com/jubensha-labs/mystery-engine/internal/worldgen"
	"github.com/jubensha-labs/mystery-engine/pkg/game"
	queuePkg "github.com/jubensha-labs/mystery-engine/pkg/queue"
)

const (
	testCharactersJSON = `[
		{"name":"Elena","role":"heiress","public_info":"Hosted the gala.","secret":"Broke.","mission":"Find the will."},
		{"name":"Marcus","role":"butler","public_info":"Served for decades.","secret":"Saw the argument.","mission":"Protect the family."},
		{"name":"Priya","role":"doctor","public_info":"Family physician.","secret":"Forged a certificate.","mission":"Retrieve the file."}
	]`
	testNPCsJSON = `[
		{"name":"Dora","description":"the cook"},
		{"name":"Stan","description":"the gardener"}
	]`
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type harness struct {
	worker  *Worker
	queue   *queue.GenerationQueue
	storage *storage.MockStorage
	llm     *services.MockLLM
	client  *queue.Client
}

func setup(t *testing.T, responses ...string) *harness {
	t.Helper()
	mr := miniredis.RunT(t)

	client, err := queue.NewClient(mr.Addr(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	genQueue := queue.NewGenerationQueue(client)
	st := storage.NewMockStorage()
	llm := services.NewMockLLM(responses...)
	pipeline := worldgen.New(st, llm, testLogger())

	w := New(genQueue, pipeline, client.GetRedisClient(), testLogger(), "worker-test")
	return &harness{worker: w, queue: genQueue, storage: st, llm: llm, client: client}
}

func seedGame(t *testing.T, st storage.Storage) *game.Game {
	t.Helper()
	ctx := context.Background()
	g, err := st.CreateGame(ctx)
	require.NoError(t, err)
	require.NoError(t, st.SaveBackground(ctx, g.ID, "A collector dies at his own gala."))
	return g
}

func TestWorkerProcessesRolesRequest(t *testing.T) {
	h := setup(t, testCharactersJSON, testNPCsJSON)
	ctx := context.Background()
	g := seedGame(t, h.storage)

	req := &queuePkg.Request{
		RequestID: "req-1",
		Type:      queuePkg.RequestTypeGenerateRoles,
		GameID:    g.ID,
		Params:    game.GenerationParams{NumCharacters: 3, NumNPCs: 2, NumActs: 1, Temperature: 0.7},
	}
	require.NoError(t, h.queue.Enqueue(ctx, req))

	require.NoError(t, h.worker.processNextRequest())

	chars, err := h.storage.ListCharacters(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, chars, 3)

	npcs, err := h.storage.ListNPCs(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, npcs, 2)

	depth, err := h.queue.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}

func TestWorkerReleasesLockAfterProcessing(t *testing.T) {
	h := setup(t, testCharactersJSON, testNPCsJSON)
	ctx := context.Background()
	g := seedGame(t, h.storage)

	req := &queuePkg.Request{
		RequestID: "req-1",
		Type:      queuePkg.RequestTypeGenerateRoles,
		GameID:    g.ID,
		Params:    game.GenerationParams{NumCharacters: 3, NumNPCs: 2, NumActs: 1},
	}
	require.NoError(t, h.queue.Enqueue(ctx, req))
	require.NoError(t, h.worker.processNextRequest())

	locked, err := h.worker.acquireGameLock(g.ID)
	require.NoError(t, err)
	assert.True(t, locked, "lock should be free after processing")
	h.worker.releaseGameLock(g.ID)
}

func TestWorkerRequeuesWhenGameLocked(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	g := seedGame(t, h.storage)

	// Simulate another worker holding the lock.
	rdb := h.client.GetRedisClient()
	lockKey := fmt.Sprintf("game-lock:%d", g.ID)
	require.NoError(t, rdb.Set(ctx, lockKey, "other-worker", time.Minute).Err())

	req := &queuePkg.Request{
		RequestID: "req-1",
		Type:      queuePkg.RequestTypeGenerateRoles,
		GameID:    g.ID,
		Params:    game.GenerationParams{NumCharacters: 3, NumNPCs: 2, NumActs: 1},
	}
	require.NoError(t, h.queue.Enqueue(ctx, req))

	require.NoError(t, h.worker.processNextRequest())

	// Request went back on the queue untouched.
	depth, err := h.queue.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
	assert.Empty(t, h.llm.Calls())
}

func TestWorkerDropsFailedGeneration(t *testing.T) {
	h := setup(t, `not json at all`)
	ctx := context.Background()
	g := seedGame(t, h.storage)

	req := &queuePkg.Request{
		RequestID: "req-1",
		Type:      queuePkg.RequestTypeGenerateRoles,
		GameID:    g.ID,
		Params:    game.GenerationParams{NumCharacters: 3, NumNPCs: 2, NumActs: 1},
	}
	require.NoError(t, h.queue.Enqueue(ctx, req))

	// Failures are logged, not retried.
	require.NoError(t, h.worker.processNextRequest())

	depth, err := h.queue.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, depth)

	locked, err := h.worker.acquireGameLock(g.ID)
	require.NoError(t, err)
	assert.True(t, locked, "lock must be released after a failure")
	h.worker.releaseGameLock(g.ID)
}

func TestWorkerRejectsUnknownRequestType(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	g := seedGame(t, h.storage)

	req := &queuePkg.Request{
		RequestID: "req-1",
		Type:      "explode",
		GameID:    g.ID,
	}
	require.NoError(t, h.queue.Enqueue(ctx, req))

	err := h.worker.processNextRequest()
	assert.ErrorContains(t, err, "unknown request type")
}
