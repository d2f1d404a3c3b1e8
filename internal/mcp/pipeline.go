package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// PipelineStep is one declarative call in a pipeline file.
type PipelineStep struct {
	Name            string            `json:"name" toml:"name" yaml:"name"`
	Tool            string            `json:"tool" toml:"tool" yaml:"tool"`
	Intent          string            `json:"intent" toml:"intent" yaml:"intent"`
	Params          map[string]string `json:"params" toml:"params" yaml:"params"`
	ContinueOnError bool              `json:"continue_on_error" toml:"continue_on_error" yaml:"continue_on_error"`
}

// Pipeline is an ordered sequence of tool-call steps loaded from a
// declarative file. Format is inferred from the file extension: .json,
// .toml, or .yaml/.yml.
type Pipeline struct {
	Name  string         `json:"name" toml:"name" yaml:"name"`
	Steps []PipelineStep `json:"steps" toml:"steps" yaml:"steps"`
}

// ParsePipeline decodes a pipeline definition according to the format
// implied by fileName's extension.
func ParsePipeline(fileName string, data []byte) (*Pipeline, error) {
	var p Pipeline
	switch ext := strings.ToLower(filepath.Ext(fileName)); ext {
	case ".json":
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to parse pipeline as JSON: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to parse pipeline as TOML: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to parse pipeline as YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported pipeline file extension %q (want .json, .toml, .yaml)", ext)
	}
	if len(p.Steps) == 0 {
		return nil, fmt.Errorf("pipeline %q declares no steps", fileName)
	}
	return &p, nil
}

// StepResult is the outcome of running one pipeline step.
type StepResult struct {
	Step   PipelineStep
	Result *ToolResult
	Err    error
}

// ToolCatalog resolves a logical tool name to its candidate ToolDescriptors,
// since a pipeline step names one tool but the client still routes among
// that tool's registered candidates (e.g. multiple servers backing the same
// capability).
type ToolCatalog func(toolName string) []ToolDescriptor

// Run executes every step in order. A step whose ContinueOnError is false
// and which fails stops the pipeline; the remaining steps are reported as
// unattempted (Err set to ErrPipelineAborted).
func Run(ctx context.Context, client *Client, catalog ToolCatalog, p *Pipeline) []StepResult {
	results := make([]StepResult, 0, len(p.Steps))
	aborted := false

	for _, step := range p.Steps {
		if aborted {
			results = append(results, StepResult{Step: step, Err: ErrPipelineAborted})
			continue
		}

		candidates := catalog(step.Tool)
		result, err := client.Call(ctx, candidates, step.Intent, step.Params)
		results = append(results, StepResult{Step: step, Result: result, Err: err})

		if err != nil && !step.ContinueOnError {
			aborted = true
		}
	}
	return results
}

// ErrPipelineAborted marks a step that was never attempted because an
// earlier required step failed.
var ErrPipelineAborted = fmt.Errorf("pipeline aborted by earlier required step failure")
