package evidence

import "fmt"

// Redis channel helpers for the live event bus.
//
// Unlike the teacher's blackboard (which used Redis as the system of record),
// here Redis backs only the ephemeral fan-out that lets a concurrently
// running `axon observe` tail attempts and runs in real time. The durable
// system of record is internal/store's JSON Lines logs. Channels are still
// namespaced by root name so multiple axon workspaces can share one Redis
// instance without cross-talk.
//
// Channel pattern: axon:{root}:{event_type}_events

// AttemptEventsChannel returns the Pub/Sub channel name for attempt events.
func AttemptEventsChannel(root string) string {
	return fmt.Sprintf("axon:%s:attempt_events", root)
}

// RunEventsChannel returns the Pub/Sub channel name for run lifecycle events.
func RunEventsChannel(root string) string {
	return fmt.Sprintf("axon:%s:run_events", root)
}

// BreakerEventsChannel returns the Pub/Sub channel name for circuit breaker
// state transitions, consumed by `axon observe`.
func BreakerEventsChannel(root string) string {
	return fmt.Sprintf("axon:%s:breaker_events", root)
}
