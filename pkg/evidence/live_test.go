package evidence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestBus(t *testing.T) *LiveBus {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	bus, err := NewLiveBus(&redis.Options{Addr: mr.Addr()}, "test-root")
	require.NoError(t, err)
	t.Cleanup(func() { bus.Close() })
	return bus
}

func TestNewLiveBus_RejectsEmptyRoot(t *testing.T) {
	_, err := NewLiveBus(&redis.Options{Addr: "localhost:6379"}, "")
	assert.Error(t, err)
}

func TestLiveBus_Ping(t *testing.T) {
	bus := setupTestBus(t)
	assert.NoError(t, bus.Ping(context.Background()))
}

func TestLiveBus_PublishSubscribeAttempt(t *testing.T) {
	bus := setupTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := bus.SubscribeAttempts(ctx)
	defer sub.Close()

	// Give the subscription goroutine a moment to register with miniredis.
	time.Sleep(20 * time.Millisecond)

	attempt := &ExecutionAttempt{
		AttemptID:  "attempt-1",
		RunID:      "run-1",
		StrategyID: "strategy-a",
		Status:     AttemptSucceeded,
	}
	require.NoError(t, bus.PublishAttempt(ctx, attempt))

	select {
	case got := <-sub.Events():
		assert.Equal(t, attempt.AttemptID, got.AttemptID)
		assert.Equal(t, AttemptSucceeded, got.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for attempt event")
	}
}

func TestLiveBus_PublishSubscribeBreakerTransition(t *testing.T) {
	bus := setupTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := bus.SubscribeBreakerTransitions(ctx)
	defer sub.Close()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, bus.PublishBreakerTransition(ctx, &BreakerTransition{
		ToolName: "mcp/fetch",
		From:     "closed",
		To:       "open",
	}))

	select {
	case got := <-sub.Events():
		assert.Equal(t, "mcp/fetch", got.ToolName)
		assert.Equal(t, "open", got.To)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for breaker transition event")
	}
}
