package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// LiveBus publishes and subscribes to run/attempt/breaker events over Redis
// Pub/Sub so that a long-running `observe` invocation can watch the work
// done by a concurrent `submit`/`pipeline` invocation on the same root.
// It is namespaced by root the same way the teacher's blackboard.Client
// namespaced every key by instance name.
type LiveBus struct {
	rdb  *redis.Client
	root string
}

// NewLiveBus creates a live event bus for the given root workspace name.
func NewLiveBus(opts *redis.Options, root string) (*LiveBus, error) {
	if root == "" {
		return nil, fmt.Errorf("root cannot be empty")
	}
	return &LiveBus{rdb: redis.NewClient(opts), root: root}, nil
}

// Close closes the underlying Redis connection.
func (b *LiveBus) Close() error {
	return b.rdb.Close()
}

// Ping verifies Redis connectivity.
func (b *LiveBus) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

// PublishAttempt publishes an ExecutionAttempt to the attempt_events channel.
func (b *LiveBus) PublishAttempt(ctx context.Context, a *ExecutionAttempt) error {
	return b.publish(ctx, AttemptEventsChannel(b.root), a)
}

// PublishRunSummary publishes a RunSummary to the run_events channel.
func (b *LiveBus) PublishRunSummary(ctx context.Context, s *RunSummary) error {
	return b.publish(ctx, RunEventsChannel(b.root), s)
}

// BreakerTransition describes one circuit breaker state change, published for
// live observability.
type BreakerTransition struct {
	ToolName string `json:"tool_name"`
	From     string `json:"from"`
	To       string `json:"to"`
}

// PublishBreakerTransition publishes a circuit breaker state change.
func (b *LiveBus) PublishBreakerTransition(ctx context.Context, t *BreakerTransition) error {
	return b.publish(ctx, BreakerEventsChannel(b.root), t)
}

func (b *LiveBus) publish(ctx context.Context, channel string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event to %s: %w", channel, err)
	}
	return nil
}

// Subscription delivers decoded events of type T on a buffered channel until
// Close is called or the context is cancelled.
type Subscription[T any] struct {
	events <-chan *T
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of decoded events.
func (s *Subscription[T]) Events() <-chan *T { return s.events }

// Errors returns the channel of decode/subscription errors. The subscription
// continues after an error; the offending message is skipped.
func (s *Subscription[T]) Errors() <-chan error { return s.errors }

// Close stops the subscription. Safe to call multiple times.
func (s *Subscription[T]) Close() error {
	s.once.Do(s.cancel)
	return nil
}

func subscribe[T any](ctx context.Context, rdb *redis.Client, channel string) *Subscription[T] {
	pubsub := rdb.Subscribe(ctx, channel)
	eventsChan := make(chan *T, 16)
	errorsChan := make(chan error, 16)
	subCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var v T
				if err := json.Unmarshal([]byte(msg.Payload), &v); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}
				select {
				case eventsChan <- &v:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription[T]{events: eventsChan, errors: errorsChan, cancel: cancel}
}

// SubscribeAttempts subscribes to live ExecutionAttempt events.
func (b *LiveBus) SubscribeAttempts(ctx context.Context) *Subscription[ExecutionAttempt] {
	return subscribe[ExecutionAttempt](ctx, b.rdb, AttemptEventsChannel(b.root))
}

// SubscribeRuns subscribes to live RunSummary events.
func (b *LiveBus) SubscribeRuns(ctx context.Context) *Subscription[RunSummary] {
	return subscribe[RunSummary](ctx, b.rdb, RunEventsChannel(b.root))
}

// SubscribeBreakerTransitions subscribes to live circuit breaker transitions.
func (b *LiveBus) SubscribeBreakerTransitions(ctx context.Context) *Subscription[BreakerTransition] {
	return subscribe[BreakerTransition](ctx, b.rdb, BreakerEventsChannel(b.root))
}
