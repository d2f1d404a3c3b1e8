// Package watch implements the polling loop behind `axon status --wait`,
// adapted from the teacher's claim-polling helper to poll a run's terminal
// outcome instead of a blackboard claim.
package watch

import (
	"context"
	"fmt"
	"time"
)

// Poll type-parameterized over whatever the caller's lookup returns.
type Poll[T any] func(ctx context.Context) (result T, ready bool, err error)

// UntilReady polls fn every interval until it reports ready, errors, the
// context is cancelled, or timeout elapses.
func UntilReady[T any](ctx context.Context, fn Poll[T], interval, timeout time.Duration) (T, error) {
	var zero T
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	deadline := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-deadline:
			return zero, fmt.Errorf("timed out waiting after %v", timeout)
		case <-ticker.C:
			result, ready, err := fn(ctx)
			if err != nil {
				return zero, err
			}
			if ready {
				return result, nil
			}
		}
	}
}
