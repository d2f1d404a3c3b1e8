package scaffold

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name      string
		force     bool
		setupFunc func(dir string)
	}{
		{
			name:      "fresh initialization",
			force:     false,
			setupFunc: func(dir string) {},
		},
		{
			name:  "force initialization removes existing files",
			force: true,
			setupFunc: func(dir string) {
				os.WriteFile(filepath.Join(dir, "axon.toml"), []byte("old content"), 0644)
				os.MkdirAll(filepath.Join(dir, "capabilities", "old-service"), 0755)
				os.WriteFile(filepath.Join(dir, "capabilities", "old-service", "old.txt"), []byte("old"), 0644)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			originalDir, err := os.Getwd()
			if err != nil {
				t.Fatal(err)
			}
			defer os.Chdir(originalDir)
			if err := os.Chdir(tmpDir); err != nil {
				t.Fatal(err)
			}

			tt.setupFunc(tmpDir)

			if err := Initialize(tt.force); err != nil {
				t.Fatalf("Initialize() error = %v", err)
			}

			expectedFiles := []struct {
				path       string
				executable bool
			}{
				{"axon.toml", false},
				{filepath.Join("capabilities", "example-service", "Dockerfile"), false},
				{filepath.Join("capabilities", "example-service", "run.sh"), true},
				{filepath.Join("capabilities", "example-service", "README.md"), false},
			}
			for _, ef := range expectedFiles {
				info, err := os.Stat(filepath.Join(tmpDir, ef.path))
				if err != nil {
					t.Errorf("expected file %s to exist: %v", ef.path, err)
					continue
				}
				if ef.executable && info.Mode()&0111 == 0 {
					t.Errorf("file %s should be executable, mode is %v", ef.path, info.Mode())
				}
			}

			content, err := os.ReadFile(filepath.Join(tmpDir, "axon.toml"))
			if err != nil {
				t.Fatalf("failed to read axon.toml: %v", err)
			}
			var parsed map[string]any
			if err := toml.Unmarshal(content, &parsed); err != nil {
				t.Errorf("axon.toml is not valid TOML: %v", err)
			}

			if tt.force {
				if _, err := os.Stat(filepath.Join(tmpDir, "capabilities", "old-service")); err == nil {
					t.Error("expected old-service to be removed")
				}
			}
		})
	}
}

func TestHandleForce(t *testing.T) {
	tests := []struct {
		name      string
		setupFunc func(dir string)
	}{
		{
			name: "removes existing axon.toml",
			setupFunc: func(dir string) {
				os.WriteFile(filepath.Join(dir, "axon.toml"), []byte("content"), 0644)
			},
		},
		{
			name: "removes existing capabilities directory",
			setupFunc: func(dir string) {
				os.MkdirAll(filepath.Join(dir, "capabilities", "test-service"), 0755)
				os.WriteFile(filepath.Join(dir, "capabilities", "test-service", "file.txt"), []byte("test"), 0644)
			},
		},
		{
			name:      "handles when files don't exist",
			setupFunc: func(dir string) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			originalDir, err := os.Getwd()
			if err != nil {
				t.Fatal(err)
			}
			defer os.Chdir(originalDir)
			if err := os.Chdir(tmpDir); err != nil {
				t.Fatal(err)
			}

			tt.setupFunc(tmpDir)

			if err := handleForce(); err != nil {
				t.Fatalf("handleForce() error = %v", err)
			}

			if _, err := os.Stat(filepath.Join(tmpDir, "axon.toml")); err == nil {
				t.Error("axon.toml should have been removed")
			}
			if _, err := os.Stat(filepath.Join(tmpDir, "capabilities")); err == nil {
				t.Error("capabilities/ should have been removed")
			}
		})
	}
}

func TestGetTemplateFiles(t *testing.T) {
	files, err := getTemplateFiles()
	if err != nil {
		t.Fatalf("getTemplateFiles() error = %v", err)
	}

	expected := map[string]os.FileMode{
		"axon.toml": 0644,
		filepath.Join("capabilities", "example-service", "Dockerfile"): 0644,
		filepath.Join("capabilities", "example-service", "run.sh"):     0755,
		filepath.Join("capabilities", "example-service", "README.md"):  0644,
	}
	if len(files) != len(expected) {
		t.Errorf("getTemplateFiles() returned %d files, want %d", len(files), len(expected))
	}
	for _, f := range files {
		perm, ok := expected[f.Path]
		if !ok {
			t.Errorf("unexpected file in template set: %s", f.Path)
			continue
		}
		if f.Permissions != perm {
			t.Errorf("file %s has permissions %v, want %v", f.Path, f.Permissions, perm)
		}
		if len(f.Content) == 0 {
			t.Errorf("file %s has empty content", f.Path)
		}
	}
}

func TestCreateDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(originalDir)
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatal(err)
	}

	if err := createDirectories(); err != nil {
		t.Fatalf("createDirectories() error = %v", err)
	}

	for _, dir := range []string{"capabilities", filepath.Join("capabilities", "example-service"), ".axon"} {
		info, err := os.Stat(filepath.Join(tmpDir, dir))
		if err != nil {
			t.Errorf("expected directory %s to exist: %v", dir, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("expected %s to be a directory", dir)
		}
	}
}

func TestWriteFiles(t *testing.T) {
	tmpDir := t.TempDir()
	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(originalDir)
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatal(err)
	}

	files := []FileInfo{
		{Path: "test.txt", Content: []byte("test content"), Permissions: 0644},
		{Path: "script.sh", Content: []byte("#!/bin/sh\n"), Permissions: 0755},
	}
	if err := writeFiles(files); err != nil {
		t.Fatalf("writeFiles() error = %v", err)
	}
	for _, f := range files {
		content, err := os.ReadFile(filepath.Join(tmpDir, f.Path))
		if err != nil {
			t.Fatalf("failed to read %s: %v", f.Path, err)
		}
		if string(content) != string(f.Content) {
			t.Errorf("file %s content mismatch", f.Path)
		}
	}
}
