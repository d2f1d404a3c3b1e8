package app

import (
	"context"
	"fmt"
	"time"

	"github.com/opsloop/axon/internal/axonerr"
	"github.com/opsloop/axon/internal/config"
	"github.com/opsloop/axon/internal/mcp"
	"github.com/opsloop/axon/internal/registry"
	"github.com/opsloop/axon/internal/store"
	"github.com/opsloop/axon/pkg/evidence"
)

// registerServices converts every declared capability pack entry into a
// registry.Descriptor and registers it. Sandboxed descriptors delegate
// execution to the registry's own Sandboxer (bound at construction); every
// other descriptor delegates to the MCP smart-routing client, treating its
// own name as the logical tool name a capability pack's [[tools]] entries
// bind against.
func registerServices(reg *registry.Registry, services []config.ServiceDescriptorConfig, mcpClient *mcp.Client, tools []config.ToolDescriptorConfig, st *store.Store) error {
	catalog := toolCatalogFor(tools)

	for _, svc := range services {
		d := &registry.Descriptor{
			Name:          svc.Name,
			Description:   svc.Description,
			MatchTerms:    svc.MatchTerms,
			RiskLevel:     evidence.RiskLevel(svc.RiskLevel),
			Maturity:      evidence.Maturity(svc.Maturity),
			RequiredLayer: svc.RequiredLayer,
			ExecutionMode: registry.ExecutionMode(svc.ExecutionMode),
			SideEffects:   svc.SideEffects,
			Sandbox:       svc.Sandbox,
			Fallback:      svc.Fallback,
			Acceptance: []registry.AcceptanceCheck{
				{Name: "produces-artifact-or-advisory", Check: acceptAnyArtifactOrAdvisory},
			},
		}
		for _, kind := range svc.TaskKinds {
			d.TaskKinds = append(d.TaskKinds, evidence.TaskKind(kind))
		}
		for _, name := range svc.RequiredInputs {
			d.Inputs = append(d.Inputs, registry.InputSpec{Name: name, Required: true})
		}
		for _, name := range svc.OptionalInputs {
			d.Inputs = append(d.Inputs, registry.InputSpec{Name: name, Required: false})
		}

		var invoke registry.Invoke
		if svc.Sandbox {
			// registry.Call never runs this for a sandboxed descriptor — it
			// calls the registry's Sandboxer directly — but Lint requires a
			// non-nil invoke regardless.
			invoke = func(ctx context.Context, inputs map[string]string, rc *evidence.RunContext) (*registry.ServiceResult, error) {
				return nil, axonerr.New(axonerr.Internal, "service %q is sandbox-only; direct invoke should never be called", svc.Name)
			}
		} else {
			name := svc.Name
			invoke = mcpPassthroughInvoke(mcpClient, catalog, name, st)
		}

		if err := reg.Register(d, invoke); err != nil {
			return fmt.Errorf("failed to register service %q: %w", svc.Name, err)
		}
	}
	return nil
}

func acceptAnyArtifactOrAdvisory(r *registry.ServiceResult) bool {
	return len(r.Artifacts) > 0 || r.Advisory
}

func toolCatalogFor(tools []config.ToolDescriptorConfig) mcp.ToolCatalog {
	byName := map[string][]mcp.ToolDescriptor{}
	for _, t := range tools {
		byName[t.Name] = append(byName[t.Name], mcp.ToolDescriptor{
			Name: t.Name, Server: t.Server, Cost: t.Cost, IntentTag: t.IntentTag,
		})
	}
	return func(toolName string) []mcp.ToolDescriptor { return byName[toolName] }
}

// mcpPassthroughInvoke adapts a non-sandboxed capability service onto the
// MCP smart-routing client: the service's own name is the logical tool
// name, and its result payload is persisted as a single binary artifact.
func mcpPassthroughInvoke(client *mcp.Client, catalog mcp.ToolCatalog, serviceName string, st *store.Store) registry.Invoke {
	return func(ctx context.Context, inputs map[string]string, rc *evidence.RunContext) (*registry.ServiceResult, error) {
		candidates := catalog(serviceName)
		if len(candidates) == 0 {
			return nil, axonerr.New(axonerr.ServiceUnavailable, "no MCP tool candidates bound to service %q", serviceName)
		}

		result, err := client.Call(ctx, candidates, "", inputs)
		if err != nil {
			return nil, classifyMCPError(err)
		}

		hash, err := st.Artifacts().Put(result.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to persist artifact for %q: %w", serviceName, err)
		}
		return &registry.ServiceResult{
			Artifacts: []evidence.ArtifactRef{{
				URI:        "artifact://" + hash,
				Kind:       evidence.ArtifactBinary,
				SHA256:     hash,
				SizeBytes:  int64(len(result.Payload)),
				ProducedBy: serviceName,
			}},
		}, nil
	}
}

func classifyMCPError(err error) error {
	if mcp.IsTransient(err) {
		return axonerr.New(axonerr.ServiceUnavailable, "%v", err)
	}
	return axonerr.New(axonerr.Internal, "%v", err)
}

// toolInvoker is the MCP Client's leaf Invoker: every MCP tool candidate
// ultimately runs as a sandboxed Docker invocation keyed by its declared
// Server name, the same sandbox Runner the registry uses for sandbox:true
// services.
func toolInvoker(sb registry.Sandboxer) mcp.Invoker {
	return mcp.InvokerFunc(func(ctx context.Context, tool mcp.ToolDescriptor, params map[string]string) (*mcp.ToolResult, error) {
		if sb == nil {
			return nil, &mcp.TransientError{Err: fmt.Errorf("no sandbox runner available to invoke tool %q", tool.Name)}
		}
		start := time.Now()
		result, err := sb.Run(ctx, tool.Server, params, 60*time.Second)
		if err != nil {
			if axonerr.CodeOf(err).Retryable() {
				return nil, &mcp.TransientError{Err: err}
			}
			return nil, err
		}
		payload := []byte{}
		if len(result.Artifacts) > 0 {
			payload = []byte(result.Artifacts[0].URI)
		}
		return &mcp.ToolResult{Payload: payload, Latency: float64(time.Since(start).Milliseconds()), ToolName: tool.Name}, nil
	})
}
