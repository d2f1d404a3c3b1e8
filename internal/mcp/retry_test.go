package mcp

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestClient_SucceedsOnFirstTry(t *testing.T) {
	invoker := InvokerFunc(func(ctx context.Context, tool ToolDescriptor, params map[string]string) (*ToolResult, error) {
		return &ToolResult{ToolName: tool.Name}, nil
	})
	client := NewClient(
		NewRouter(RouterWeights{Success: 1}, func(string) ToolStats { return ToolStats{} }, NewRegistry(3, time.Minute, nil, nil), 3),
		NewRegistry(3, time.Minute, nil, nil),
		invoker,
		RetryPolicy{MaxRetries: 2, BackoffBase: time.Millisecond, BackoffFactor: 2, JitterFraction: 0.1, ChainDeadline: time.Second},
		nil,
	)

	result, err := client.Call(context.Background(), []ToolDescriptor{{Name: "a"}}, "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ToolName != "a" {
		t.Errorf("expected result from tool a, got %s", result.ToolName)
	}
}

func TestClient_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	invoker := InvokerFunc(func(ctx context.Context, tool ToolDescriptor, params map[string]string) (*ToolResult, error) {
		calls++
		if calls < 2 {
			return nil, &TransientError{Err: fmt.Errorf("timeout")}
		}
		return &ToolResult{ToolName: tool.Name}, nil
	})
	client := NewClient(
		NewRouter(RouterWeights{Success: 1}, func(string) ToolStats { return ToolStats{} }, NewRegistry(5, time.Minute, nil, nil), 3),
		NewRegistry(5, time.Minute, nil, nil),
		invoker,
		RetryPolicy{MaxRetries: 2, BackoffBase: time.Millisecond, BackoffFactor: 2, JitterFraction: 0, ChainDeadline: time.Second},
		nil,
	)

	result, err := client.Call(context.Background(), []ToolDescriptor{{Name: "a"}}, "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected exactly 2 calls, got %d", calls)
	}
	if result.ToolName != "a" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestClient_FallsBackToNextCandidateOnExhaustion(t *testing.T) {
	invoker := InvokerFunc(func(ctx context.Context, tool ToolDescriptor, params map[string]string) (*ToolResult, error) {
		if tool.Name == "bad" {
			return nil, &TransientError{Err: fmt.Errorf("timeout")}
		}
		return &ToolResult{ToolName: tool.Name}, nil
	})
	client := NewClient(
		NewRouter(RouterWeights{Success: 1}, func(string) ToolStats { return ToolStats{} }, NewRegistry(5, time.Minute, nil, nil), 3),
		NewRegistry(5, time.Minute, nil, nil),
		invoker,
		RetryPolicy{MaxRetries: 0, BackoffBase: time.Millisecond, BackoffFactor: 2, JitterFraction: 0, ChainDeadline: time.Second},
		nil,
	)

	result, err := client.Call(context.Background(), []ToolDescriptor{{Name: "bad"}, {Name: "good"}}, "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ToolName != "good" {
		t.Errorf("expected fallback to good tool, got %+v", result)
	}
}

func TestClient_NonTransientErrorDoesNotRetry(t *testing.T) {
	calls := 0
	invoker := InvokerFunc(func(ctx context.Context, tool ToolDescriptor, params map[string]string) (*ToolResult, error) {
		calls++
		return nil, fmt.Errorf("permanent failure")
	})
	client := NewClient(
		NewRouter(RouterWeights{Success: 1}, func(string) ToolStats { return ToolStats{} }, NewRegistry(5, time.Minute, nil, nil), 3),
		NewRegistry(5, time.Minute, nil, nil),
		invoker,
		RetryPolicy{MaxRetries: 2, BackoffBase: time.Millisecond, BackoffFactor: 2, JitterFraction: 0, ChainDeadline: time.Second},
		nil,
	)

	_, err := client.Call(context.Background(), []ToolDescriptor{{Name: "a"}}, "", nil)
	if err == nil {
		t.Fatal("expected error for permanent failure")
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 call for a non-transient error, got %d", calls)
	}
}
