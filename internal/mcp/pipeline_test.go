package mcp

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestParsePipeline_JSON(t *testing.T) {
	data := []byte(`{"name":"demo","steps":[{"name":"s1","tool":"fetch","params":{"url":"x"}}]}`)
	p, err := ParsePipeline("demo.json", data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "demo" || len(p.Steps) != 1 || p.Steps[0].Tool != "fetch" {
		t.Fatalf("unexpected pipeline: %+v", p)
	}
}

func TestParsePipeline_TOML(t *testing.T) {
	data := []byte("name = \"demo\"\n\n[[steps]]\nname = \"s1\"\ntool = \"fetch\"\ncontinue_on_error = true\n")
	p, err := ParsePipeline("demo.toml", data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Steps[0].ContinueOnError {
		t.Error("expected continue_on_error to be true")
	}
}

func TestParsePipeline_YAML(t *testing.T) {
	data := []byte("name: demo\nsteps:\n  - name: s1\n    tool: fetch\n")
	p, err := ParsePipeline("demo.yaml", data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Steps[0].Name != "s1" {
		t.Fatalf("unexpected pipeline: %+v", p)
	}
}

func TestParsePipeline_RejectsEmptySteps(t *testing.T) {
	_, err := ParsePipeline("demo.json", []byte(`{"name":"demo","steps":[]}`))
	if err == nil {
		t.Error("expected error for pipeline with no steps")
	}
}

func TestRun_StopsOnRequiredStepFailure(t *testing.T) {
	client := NewClient(
		NewRouter(RouterWeights{Success: 1}, func(string) ToolStats { return ToolStats{} }, NewRegistry(5, time.Minute, nil, nil), 3),
		NewRegistry(5, time.Minute, nil, nil),
		InvokerFunc(func(ctx context.Context, tool ToolDescriptor, params map[string]string) (*ToolResult, error) {
			return nil, fmt.Errorf("boom")
		}),
		RetryPolicy{MaxRetries: 0, BackoffBase: time.Millisecond, BackoffFactor: 2, ChainDeadline: time.Second},
		nil,
	)
	catalog := func(name string) []ToolDescriptor { return []ToolDescriptor{{Name: name}} }

	p := &Pipeline{Name: "demo", Steps: []PipelineStep{
		{Name: "s1", Tool: "fetch"},
		{Name: "s2", Tool: "parse"},
	}}

	results := Run(context.Background(), client, catalog, p)
	if results[0].Err == nil {
		t.Fatal("expected first step to fail")
	}
	if results[1].Err != ErrPipelineAborted {
		t.Errorf("expected second step aborted, got %v", results[1].Err)
	}
}

func TestRun_ContinuesPastOptionalStepFailure(t *testing.T) {
	client := NewClient(
		NewRouter(RouterWeights{Success: 1}, func(string) ToolStats { return ToolStats{} }, NewRegistry(5, time.Minute, nil, nil), 3),
		NewRegistry(5, time.Minute, nil, nil),
		InvokerFunc(func(ctx context.Context, tool ToolDescriptor, params map[string]string) (*ToolResult, error) {
			if tool.Name == "fetch" {
				return nil, fmt.Errorf("boom")
			}
			return &ToolResult{ToolName: tool.Name}, nil
		}),
		RetryPolicy{MaxRetries: 0, BackoffBase: time.Millisecond, BackoffFactor: 2, ChainDeadline: time.Second},
		nil,
	)
	catalog := func(name string) []ToolDescriptor { return []ToolDescriptor{{Name: name}} }

	p := &Pipeline{Name: "demo", Steps: []PipelineStep{
		{Name: "s1", Tool: "fetch", ContinueOnError: true},
		{Name: "s2", Tool: "parse"},
	}}

	results := Run(context.Background(), client, catalog, p)
	if results[1].Err != nil {
		t.Errorf("expected second step to run and succeed, got %v", results[1].Err)
	}
}
