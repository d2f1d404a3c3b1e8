// Package scaffold implements `axon init`, laying down axon.toml and an
// example sandboxed capability service, grounded on the teacher's
// holt-init template-embedding pattern adapted to axon's config shape.
package scaffold

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

//go:embed templates/*
var templatesFS embed.FS

// FileInfo is one file Initialize writes to disk.
type FileInfo struct {
	Path        string
	Content     []byte
	Permissions os.FileMode
}

// Initialize creates the axon project structure in the current directory.
// If force is true, axon.toml and capabilities/ are removed first.
func Initialize(force bool) error {
	if force {
		if err := handleForce(); err != nil {
			return err
		}
	}

	files, err := getTemplateFiles()
	if err != nil {
		return err
	}
	if err := createDirectories(); err != nil {
		return err
	}
	if err := writeFiles(files); err != nil {
		return err
	}
	return validateCreatedFiles()
}

func handleForce() error {
	if _, err := os.Stat("axon.toml"); err == nil {
		fmt.Println("removing existing axon.toml...")
		if err := os.Remove("axon.toml"); err != nil {
			return fmt.Errorf("failed to remove axon.toml: %w", err)
		}
	}
	if info, err := os.Stat("capabilities"); err == nil && info.IsDir() {
		fmt.Println("removing existing capabilities/ directory...")
		if err := os.RemoveAll("capabilities"); err != nil {
			return fmt.Errorf("failed to remove capabilities/ directory: %w", err)
		}
	}
	return nil
}

func getTemplateFiles() ([]FileInfo, error) {
	var files []FileInfo

	axonToml, err := templatesFS.ReadFile("templates/axon.toml.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to read axon.toml template: %w", err)
	}
	files = append(files, FileInfo{Path: "axon.toml", Content: axonToml, Permissions: 0644})

	dockerfile, err := templatesFS.ReadFile("templates/Dockerfile.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to read Dockerfile template: %w", err)
	}
	files = append(files, FileInfo{
		Path:        filepath.Join("capabilities", "example-service", "Dockerfile"),
		Content:     dockerfile,
		Permissions: 0644,
	})

	runSh, err := templatesFS.ReadFile("templates/run.sh.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to read run.sh template: %w", err)
	}
	files = append(files, FileInfo{
		Path:        filepath.Join("capabilities", "example-service", "run.sh"),
		Content:     runSh,
		Permissions: 0755,
	})

	readme, err := templatesFS.ReadFile("templates/README.md.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to read README.md template: %w", err)
	}
	files = append(files, FileInfo{
		Path:        filepath.Join("capabilities", "example-service", "README.md"),
		Content:     readme,
		Permissions: 0644,
	})

	return files, nil
}

func createDirectories() error {
	dirs := []string{"capabilities", filepath.Join("capabilities", "example-service"), ".axon", filepath.Join(".axon", "approvals")}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

func writeFiles(files []FileInfo) error {
	for _, file := range files {
		if err := os.WriteFile(file.Path, file.Content, file.Permissions); err != nil {
			return fmt.Errorf("failed to write %s: %w", file.Path, err)
		}
	}
	return nil
}

func validateCreatedFiles() error {
	content, err := os.ReadFile("axon.toml")
	if err != nil {
		return fmt.Errorf("failed to read created axon.toml: %w", err)
	}
	var parsed map[string]any
	if err := toml.Unmarshal(content, &parsed); err != nil {
		return fmt.Errorf("created axon.toml is not valid TOML: %w", err)
	}
	return nil
}

// PrintSuccess prints the post-init summary.
func PrintSuccess() {
	fmt.Println("\ninitialized axon project")
	fmt.Println("\ncreated:")
	fmt.Println("  axon.toml")
	fmt.Println("  capabilities/example-service/Dockerfile")
	fmt.Println("  capabilities/example-service/run.sh")
	fmt.Println("  capabilities/example-service/README.md")
	fmt.Println("\nnext steps:")
	fmt.Println("  1. register capability services against internal/registry")
	fmt.Println("  2. run 'axon submit \"<task>\"' to try the kernel end to end")
}
