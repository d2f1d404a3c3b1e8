package mcp

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy configures the exponential-backoff retry chain (§4.5).
type RetryPolicy struct {
	MaxRetries     int
	BackoffBase    time.Duration
	BackoffFactor  float64
	JitterFraction float64
	ChainDeadline  time.Duration
}

// Client executes tool calls through the smart router with retries,
// fallback across ranked candidates, per-tool circuit breakers, and a
// whole-chain deadline.
type Client struct {
	router  *Router
	breaker *Registry
	invoker Invoker
	policy  RetryPolicy
	onRecord func(ReplayRecord)
}

// NewClient constructs an MCP Client.
func NewClient(router *Router, breaker *Registry, invoker Invoker, policy RetryPolicy, onRecord func(ReplayRecord)) *Client {
	return &Client{router: router, breaker: breaker, invoker: invoker, policy: policy, onRecord: onRecord}
}

// Call runs the full smart-routing + retry + fallback chain for one logical
// request against a pool of candidate tools, returning the first successful
// result or, on exhaustion, the last error encountered.
func (c *Client) Call(ctx context.Context, candidates []ToolDescriptor, wantIntent string, params map[string]string) (*ToolResult, error) {
	deadline := c.policy.ChainDeadline
	if deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	ranked := c.router.Rank(candidates, wantIntent)
	var lastErr error

	for _, tool := range ranked {
		result, err := c.callWithRetry(ctx, tool, params)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (c *Client) callWithRetry(ctx context.Context, tool ToolDescriptor, params map[string]string) (*ToolResult, error) {
	breaker := c.breaker.For(tool.Name)

	var lastErr error
	for attempt := 0; attempt <= c.policy.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !breaker.Allow() {
			return nil, &TransientError{Err: errBreakerOpen(tool.Name)}
		}

		result, err := c.invoker.Invoke(ctx, tool, params)
		transient := err != nil && IsTransient(err)

		if c.onRecord != nil {
			c.onRecord(ReplayRecord{ToolName: tool.Name, Params: params, Succeeded: err == nil, Transient: transient, AttemptNum: attempt})
		}

		if err == nil {
			breaker.Success()
			return result, nil
		}
		breaker.Failure()
		lastErr = err

		if !transient || attempt == c.policy.MaxRetries {
			return nil, err
		}

		if err := sleepWithJitter(ctx, c.policy, attempt); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func sleepWithJitter(ctx context.Context, policy RetryPolicy, attempt int) error {
	backoff := time.Duration(float64(policy.BackoffBase) * math.Pow(policy.BackoffFactor, float64(attempt)))
	jitter := time.Duration(float64(backoff) * policy.JitterFraction * (2*rand.Float64() - 1))
	wait := backoff + jitter
	if wait < 0 {
		wait = 0
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type breakerOpenError struct{ tool string }

func (e *breakerOpenError) Error() string { return "circuit breaker open for tool " + e.tool }

func errBreakerOpen(tool string) error { return &breakerOpenError{tool: tool} }
