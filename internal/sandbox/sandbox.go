// Package sandbox runs a single operator-mode, side-effecting capability
// invocation inside an ephemeral Docker container, giving governance a hard
// isolation boundary for the riskiest capability class (§4.4). Grounded on
// cmd/sett/commands/up.go's container create/start/label/rollback sequence
// and internal/docker's client/label helpers, repurposed from "run an agent
// container for the run's lifetime" to "run one capability call with a
// deadline, capture its output, then remove the container."
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/opsloop/axon/internal/axonerr"
	dockerpkg "github.com/opsloop/axon/internal/docker"
	"github.com/opsloop/axon/internal/registry"
)

// ImageResolver maps a service name to the Docker image that implements it.
// Capability packs declare this mapping; there is no single universal
// sandbox image because different capabilities need different runtimes.
type ImageResolver func(serviceName string) (image string, cmd []string, err error)

// ArtifactPersister saves a sandboxed invocation's captured output and
// returns the content-addressed reference to attach to the ServiceResult.
// A nil persister means output is captured but discarded, useful for
// advisory-only sandboxed probes.
type ArtifactPersister func(serviceName string, content []byte) (registry.ServiceResult, error)

// Runner executes sandboxed capability invocations against a Docker daemon.
type Runner struct {
	cli     *client.Client
	image   ImageResolver
	labels  func(serviceName string) map[string]string
	persist ArtifactPersister
	timeout time.Duration
}

// NewRunner constructs a sandbox Runner. ctx is used only to validate daemon
// connectivity at construction time. persist may be nil to discard captured
// output instead of turning it into an artifact.
func NewRunner(ctx context.Context, image ImageResolver, persist ArtifactPersister) (*Runner, error) {
	cli, err := dockerpkg.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("sandbox requires a reachable Docker daemon: %w", err)
	}
	return &Runner{cli: cli, image: image, labels: dockerpkg.BuildAxonLabels, persist: persist}, nil
}

// Run creates a container for serviceName, starts it, waits up to deadline,
// captures combined stdout/stderr as the result payload, and always removes
// the container afterward — success or failure.
func (r *Runner) Run(ctx context.Context, serviceName string, inputs map[string]string, deadline time.Duration) (*registry.ServiceResult, error) {
	image, cmd, err := r.image(serviceName)
	if err != nil {
		return nil, axonerr.New(axonerr.ContractViolation, "no sandbox image mapped for service %q: %v", serviceName, err)
	}

	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	name := fmt.Sprintf("axon-sandbox-%s-%d", serviceName, time.Now().UnixNano())
	resp, err := r.cli.ContainerCreate(runCtx, &container.Config{
		Image:  image,
		Cmd:    cmd,
		Env:    envFromInputs(inputs),
		Labels: r.labels(serviceName),
	}, &container.HostConfig{
		AutoRemove: false, // removed explicitly below so we can read logs first
	}, nil, nil, name)
	if err != nil {
		return nil, axonerr.New(axonerr.ServiceUnavailable, "failed to create sandbox container for %q: %v", serviceName, err)
	}
	defer r.remove(context.Background(), resp.ID)

	if err := r.cli.ContainerStart(runCtx, resp.ID, container.StartOptions{}); err != nil {
		return nil, axonerr.New(axonerr.ServiceUnavailable, "failed to start sandbox container for %q: %v", serviceName, err)
	}

	statusCh, errCh := r.cli.ContainerWait(runCtx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return nil, axonerr.New(axonerr.ToolTimeout, "sandbox wait failed for %q: %v", serviceName, err)
		}
	case status := <-statusCh:
		if status.StatusCode != 0 {
			return nil, axonerr.New(axonerr.ServiceUnavailable, "sandboxed service %q exited with status %d", serviceName, status.StatusCode)
		}
	case <-runCtx.Done():
		return nil, axonerr.New(axonerr.ToolTimeout, "sandboxed service %q exceeded its deadline", serviceName)
	}

	output, err := r.readLogs(context.Background(), resp.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read sandbox output: %w", err)
	}

	if r.persist == nil {
		return &registry.ServiceResult{Advisory: true}, nil
	}
	result, err := r.persist(serviceName, output)
	if err != nil {
		return nil, fmt.Errorf("failed to persist sandbox output for %q: %w", serviceName, err)
	}
	return &result, nil
}

func (r *Runner) readLogs(ctx context.Context, containerID string) ([]byte, error) {
	reader, err := r.cli.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, reader); err != nil && err != io.EOF {
		return nil, err
	}
	return append(stdout.Bytes(), stderr.Bytes()...), nil
}

func (r *Runner) remove(ctx context.Context, containerID string) {
	_ = r.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true})
}

func envFromInputs(inputs map[string]string) []string {
	env := make([]string, 0, len(inputs))
	for k, v := range inputs {
		env = append(env, fmt.Sprintf("AXON_INPUT_%s=%s", k, v))
	}
	return env
}
