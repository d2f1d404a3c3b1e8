package docker

import (
	"fmt"

	"github.com/google/uuid"
)

// Label keys attached to every container axon creates, so orphaned sandbox
// containers from a crashed run can be found and reaped.
const (
	LabelProject     = "axon.project"
	LabelRunID       = "axon.run.id"
	LabelService     = "axon.service.name"
	LabelComponent   = "axon.component"
)

// BuildAxonLabels returns the label set for a sandboxed capability
// invocation container.
func BuildAxonLabels(serviceName string) map[string]string {
	return map[string]string{
		LabelProject:   "true",
		LabelService:   serviceName,
		LabelComponent: "sandbox",
	}
}

// GenerateRunID creates a new UUID for an autonomy run.
func GenerateRunID() string {
	return uuid.New().String()
}

// SandboxContainerName returns the container name for a sandboxed
// invocation of serviceName under runID.
func SandboxContainerName(serviceName, runID string) string {
	return fmt.Sprintf("axon-sandbox-%s-%s", serviceName, runID)
}
