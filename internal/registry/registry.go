// Package registry tracks known TPC projects in a SQLite database under
// the user's tpc directory, so the CLI can list projects without scanning
// the filesystem.
package registry

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration

	"github.com/tpc-app/tpc/internal/project"
)

// ErrNotFound is returned when a project is not in the registry.
var ErrNotFound = errors.New("project not registered")

// Entry is one registered project.
type Entry struct {
	Path           string    `json:"path"`
	Name           string    `json:"name"`
	LastSnapshotAt time.Time `json:"last_snapshot_at"`
	SnapshotCount  int       `json:"snapshot_count"`
}

// Registry is a SQLite-backed store of known projects.
type Registry struct {
	db *sql.DB
}

// DefaultPath returns the registry database location, ~/.tpc/registry.db.
func DefaultPath() string {
	return filepath.Join(project.GlobalConfigDir(), "registry.db")
}

// Open opens or creates the registry at the given path.
func Open(path string) (*Registry, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening registry database: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Registry{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS projects (
			path             TEXT PRIMARY KEY,
			name             TEXT NOT NULL,
			last_snapshot_at TEXT NOT NULL DEFAULT '',
			snapshot_count   INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_projects_last_snapshot ON projects(last_snapshot_at);
	`)
	if err != nil {
		return fmt.Errorf("creating registry tables: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Record upserts a project after a snapshot operation.
func (r *Registry) Record(e Entry) error {
	ts := ""
	if !e.LastSnapshotAt.IsZero() {
		ts = e.LastSnapshotAt.UTC().Format(time.RFC3339)
	}
	_, err := r.db.Exec(`
		INSERT INTO projects (path, name, last_snapshot_at, snapshot_count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			name             = excluded.name,
			last_snapshot_at = excluded.last_snapshot_at,
			snapshot_count   = excluded.snapshot_count
	`, e.Path, e.Name, ts, e.SnapshotCount)
	if err != nil {
		return fmt.Errorf("recording project %s: %w", e.Path, err)
	}
	return nil
}

// Remove deletes a project from the registry.
func (r *Registry) Remove(path string) error {
	res, err := r.db.Exec(`DELETE FROM projects WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("removing project %s: %w", path, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns a single registered project.
func (r *Registry) Get(path string) (Entry, error) {
	row := r.db.QueryRow(`
		SELECT path, name, last_snapshot_at, snapshot_count
		FROM projects WHERE path = ?
	`, path)
	e, err := scanEntry(row.Scan)
	if err == sql.ErrNoRows {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("loading project %s: %w", path, err)
	}
	return e, nil
}

// List returns all registered projects, most recently snapshotted first.
func (r *Registry) List() ([]Entry, error) {
	rows, err := r.db.Query(`
		SELECT path, name, last_snapshot_at, snapshot_count
		FROM projects ORDER BY last_snapshot_at DESC, name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning project row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(scan func(...any) error) (Entry, error) {
	var e Entry
	var ts string
	if err := scan(&e.Path, &e.Name, &ts, &e.SnapshotCount); err != nil {
		return Entry{}, err
	}
	if ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			e.LastSnapshotAt = t
		}
	}
	return e, nil
}
