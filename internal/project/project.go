// Package project reads and writes TPC project configuration.
//
// A project is any directory with a .tpc/project.json file. The snapshot
// engine takes its settings (root, retention limit, ignore patterns) as
// explicit parameters; this package is the collaborator that resolves them.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tpc-app/tpc/internal/snapshot"
)

// ErrNotFound is returned when a directory holds no TPC project.
var ErrNotFound = errors.New("no TPC project found")

// Project is the persisted configuration in .tpc/project.json. Fields the
// GUI layers own (description, main file, python version) are carried
// through untouched so saving from the CLI does not lose them.
type Project struct {
	Name           string   `json:"name"`
	MainFile       string   `json:"main_file,omitempty"`
	Description    string   `json:"description,omitempty"`
	PythonVersion  string   `json:"python_version,omitempty"`
	Created        string   `json:"created,omitempty"`
	SnapshotLimit  int      `json:"snapshot_limit"`
	IgnorePatterns []string `json:"ignore_patterns"`

	// Path is the project root directory, not persisted.
	Path string `json:"-"`
}

// configPath returns root/.tpc/project.json.
func configPath(root string) string {
	return filepath.Join(root, snapshot.ControlDir, "project.json")
}

// Exists reports whether root contains a TPC project.
func Exists(root string) bool {
	_, err := os.Stat(configPath(root))
	return err == nil
}

// Load reads the project configuration from root. Missing optional fields
// get their defaults; a missing config file returns ErrNotFound.
func Load(root string) (*Project, error) {
	data, err := os.ReadFile(configPath(root))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrNotFound, root)
		}
		return nil, fmt.Errorf("read project config: %w", err)
	}

	p := &Project{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse project config at %s: %w", configPath(root), err)
	}
	p.Path = root
	if p.SnapshotLimit <= 0 {
		p.SnapshotLimit = snapshot.DefaultLimit
	}
	return p, nil
}

// Save writes the project configuration, creating the control directory
// if needed.
func (p *Project) Save() error {
	dir := filepath.Join(p.Path, snapshot.ControlDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create control directory: %w", err)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal project config: %w", err)
	}
	if err := os.WriteFile(configPath(p.Path), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write project config: %w", err)
	}
	return nil
}

// Create initializes a new project at root.
func Create(root, name string) (*Project, error) {
	if Exists(root) {
		return nil, fmt.Errorf("a TPC project already exists at %s", root)
	}
	if name == "" {
		name = filepath.Base(root)
	}
	p := &Project{
		Name:           name,
		Created:        time.Now().Format(time.RFC3339),
		SnapshotLimit:  snapshot.DefaultLimit,
		IgnorePatterns: []string{},
		Path:           root,
	}
	if err := p.Save(); err != nil {
		return nil, err
	}
	return p, nil
}

// Find walks up from start looking for a project root.
func Find(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		if Exists(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w in %s or any parent directory", ErrNotFound, start)
		}
		dir = parent
	}
}

// SnapshotOptions builds the engine options for this project, appending
// the global extra ignore patterns after the project's own.
func (p *Project) SnapshotOptions(global *GlobalConfig) snapshot.Options {
	limit := p.SnapshotLimit
	patterns := append([]string{}, p.IgnorePatterns...)
	if global != nil {
		if limit <= 0 {
			limit = global.SnapshotLimit
		}
		patterns = append(patterns, global.IgnorePatterns...)
	}
	return snapshot.Options{Limit: limit, IgnorePatterns: patterns}
}
