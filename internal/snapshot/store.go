package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tpc-app/tpc/internal/log"
)

// ErrNotExist is returned by Store.Delete when the snapshot directory is
// already gone, so callers can tell "deleted nothing" from a failed delete.
var ErrNotExist = errors.New("snapshot does not exist")

// Store owns the on-disk snapshot layout under <root>/.tpc/snapshots. It
// enumerates, stats, and deletes snapshot directories; business rules
// (retention, restore protocol) live in the Manager.
type Store struct {
	root string
}

// NewStore returns a Store for the project rooted at root.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Dir returns the snapshot storage directory for the project.
func (s *Store) Dir() string {
	return filepath.Join(s.root, ControlDir, "snapshots")
}

// EnsureDir creates the snapshot storage directory if absent.
func (s *Store) EnsureDir() error {
	if err := os.MkdirAll(s.Dir(), 0o755); err != nil {
		return fmt.Errorf("create snapshot directory %s: %w", s.Dir(), err)
	}
	return nil
}

// ListDirs returns the names of the immediate snapshot subdirectories,
// skipping reserved entries (anything starting with an underscore, which
// covers safety backups). A missing storage directory yields an empty
// list, not an error.
func (s *Store) ListDirs() ([]string, error) {
	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot directory %s: %w", s.Dir(), err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if entry.Name()[0] == '_' {
			continue // reserved: safety backups and future internal dirs
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

// Stats walks dir and returns its total size in bytes and regular file
// count, excluding the reserved metadata files. Individual unreadable
// entries are skipped, not fatal.
func (s *Store) Stats(dir string) (totalSize int64, fileCount int) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		name := d.Name()
		if name == metadataFile || name == checksumFile {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		totalSize += info.Size()
		fileCount++
		return nil
	})
	return totalSize, fileCount
}

// Delete removes a snapshot directory recursively. Deleting a directory
// that is already gone returns ErrNotExist.
func (s *Store) Delete(dir string) error {
	if _, err := os.Lstat(dir); err != nil {
		if os.IsNotExist(err) {
			return ErrNotExist
		}
		return fmt.Errorf("stat snapshot %s: %w", dir, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove snapshot %s: %w", dir, err)
	}
	log.Debug("deleted snapshot directory", "dir", dir)
	return nil
}
