package snapshot

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/tpc-app/tpc/internal/ignore"
	"github.com/tpc-app/tpc/internal/log"
)

// Options configures a Manager. Configuration is passed in explicitly;
// the engine discovers nothing from ambient state.
type Options struct {
	// Limit is the retention limit for ordinary snapshots. Values <= 0
	// fall back to DefaultLimit.
	Limit int
	// IgnorePatterns are project-supplied exclusion globs, appended after
	// the built-in defaults.
	IgnorePatterns []string
}

// Manager orchestrates snapshot operations for one project. Operations
// are synchronous transactions on the calling goroutine; callers must
// serialize concurrent use externally.
type Manager struct {
	root    string
	limit   int
	matcher *ignore.Matcher
	store   *Store
}

// NewManager returns a Manager for the project rooted at root.
func NewManager(root string, opts Options) *Manager {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Manager{
		root:    root,
		limit:   limit,
		matcher: ignore.NewMatcher(root, opts.IgnorePatterns),
		store:   NewStore(root),
	}
}

// Root returns the live project directory the manager operates on.
func (m *Manager) Root() string { return m.root }

// Create saves a new snapshot of the current project state. Per-file copy
// failures are skipped and logged; the persisted counts reflect only files
// actually captured. When the retention limit is reached the single oldest
// snapshot is evicted first and named in the result.
func (m *Manager) Create(note string, progress Progress) (Result, error) {
	progress.report("Preparing snapshot...")

	if err := m.store.EnsureDir(); err != nil {
		return Result{}, structuralErr(err, "Couldn't prepare the snapshot folder")
	}

	name := m.generateName(note, time.Now())
	snapshotPath := filepath.Join(m.store.Dir(), name)

	// Eviction precheck: never exceed the limit, and never delete an old
	// snapshot without reporting it.
	deletedOld := ""
	existing, err := m.List()
	if err != nil {
		return Result{}, err
	}
	if len(existing) >= m.limit {
		oldest := existing[len(existing)-1]
		if err := m.store.Delete(oldest.Path); err != nil {
			return Result{}, preconditionErr(err, "Couldn't remove old snapshot %q", oldest.DisplayName())
		}
		deletedOld = oldest.DisplayName()
		progress.report("Removed old snapshot: " + deletedOld)
	}

	progress.report("Copying files...")

	if err := os.MkdirAll(snapshotPath, 0o755); err != nil {
		return Result{}, structuralErr(err, "Couldn't create snapshot folder %s", snapshotPath)
	}

	sums := make(map[string]string)
	fileCount, totalSize, err := m.captureTree(snapshotPath, sums)
	if err != nil {
		m.discardPartial(snapshotPath)
		return Result{}, structuralErr(err, "Snapshot failed")
	}

	created := time.Now()
	meta := Metadata{
		Created:     created,
		Note:        note,
		ProjectPath: m.root,
		FileCount:   fileCount,
		TotalSize:   totalSize,
	}
	if err := writeMetadata(snapshotPath, meta); err != nil {
		m.discardPartial(snapshotPath)
		return Result{}, structuralErr(err, "Couldn't save snapshot details")
	}
	if err := writeChecksums(snapshotPath, sums); err != nil {
		// Verification is an extra; the snapshot itself is complete.
		log.Warn("could not write snapshot checksums", "snapshot", name, "error", err)
	}

	progress.report("Snapshot complete!")

	snap := Snapshot{
		Name:      name,
		Path:      snapshotPath,
		Created:   created,
		Note:      note,
		FileCount: fileCount,
		TotalSize: totalSize,
	}
	return Result{
		Message:    fmt.Sprintf("Saved snapshot with %d files", fileCount),
		Snapshot:   &snap,
		DeletedOld: deletedOld,
	}, nil
}

// List returns all ordinary snapshots, newest first. Snapshots without
// readable metadata still appear: created falls back to the directory's
// modification time, the note to the directory name, and the stats to a
// fresh walk.
func (m *Manager) List() ([]Snapshot, error) {
	names, err := m.store.ListDirs()
	if err != nil {
		return nil, structuralErr(err, "Couldn't read the snapshot folder")
	}

	snapshots := make([]Snapshot, 0, len(names))
	for _, name := range names {
		dir := filepath.Join(m.store.Dir(), name)
		snap := Snapshot{Name: name, Path: dir}

		if meta, ok := readMetadata(dir); ok {
			snap.Created = meta.Created
			snap.Note = meta.Note
			snap.FileCount = meta.FileCount
			snap.TotalSize = meta.TotalSize
		} else {
			if info, err := os.Stat(dir); err == nil {
				snap.Created = info.ModTime()
			}
			snap.Note = noteFromName(name)
			snap.TotalSize, snap.FileCount = m.store.Stats(dir)
		}
		snapshots = append(snapshots, snap)
	}

	// Newest first; equal timestamps fall back to the directory name so
	// that the eviction candidate (the last element) is stable.
	sort.Slice(snapshots, func(i, j int) bool {
		if !snapshots[i].Created.Equal(snapshots[j].Created) {
			return snapshots[i].Created.After(snapshots[j].Created)
		}
		return snapshots[i].Name > snapshots[j].Name
	})
	return snapshots, nil
}

// GetByName finds a snapshot by its directory name.
func (m *Manager) GetByName(name string) (Snapshot, bool) {
	snapshots, err := m.List()
	if err != nil {
		return Snapshot{}, false
	}
	for _, s := range snapshots {
		if s.Name == name {
			return s, true
		}
	}
	return Snapshot{}, false
}

// Restore replaces the live project tree with the snapshot's contents.
//
// The order of operations is load-bearing: verify the snapshot exists,
// write a safety backup of the current state, clear the live tree (keeping
// the control directory), then copy the snapshot back. A failure during
// copy-back triggers a best-effort recovery from the safety backup before
// the failure is reported.
func (m *Manager) Restore(snap Snapshot, progress Progress) (Result, error) {
	if _, err := os.Stat(snap.Path); err != nil {
		return Result{}, preconditionErr(nil, "Snapshot no longer exists")
	}

	progress.report("Creating safety backup...")

	safetyName := SafetyPrefix + time.Now().Format("20060102_150405")
	safetyPath := filepath.Join(m.store.Dir(), safetyName)
	if err := os.MkdirAll(safetyPath, 0o755); err != nil {
		return Result{}, structuralErr(err, "Couldn't create safety backup")
	}
	if _, _, err := m.captureTree(safetyPath, nil); err != nil {
		return Result{}, structuralErr(err, "Couldn't create safety backup")
	}

	progress.report("Clearing current files...")

	entries, err := os.ReadDir(m.root)
	if err != nil {
		return Result{}, structuralErr(err, "Couldn't clear current files")
	}
	for _, entry := range entries {
		if entry.Name() == ControlDir {
			continue // never delete the config folder
		}
		if err := os.RemoveAll(filepath.Join(m.root, entry.Name())); err != nil {
			return Result{}, structuralErr(err, "Couldn't clear current files")
		}
	}

	progress.report("Restoring snapshot...")

	if err := copyBack(snap.Path, m.root); err != nil {
		// Best-effort recovery: put the just-captured state back before
		// surfacing the original failure. There is no further fallback, so
		// failures inside the recovery are swallowed.
		progress.report("Restore failed, recovering from safety backup...")
		recoverTree(safetyPath, m.root)
		return Result{}, &Error{
			Kind:    KindRestoreRecovered,
			Message: "Restore failed. Your files have been recovered from the safety backup",
			Err:     err,
		}
	}

	progress.report("Restore complete!")
	return Result{Message: fmt.Sprintf("Restored to %q", snap.DisplayName())}, nil
}

// Delete removes one snapshot. It has no effect on other snapshots.
func (m *Manager) Delete(snap Snapshot) (Result, error) {
	if err := m.store.Delete(snap.Path); err != nil {
		if err == ErrNotExist {
			return Result{}, preconditionErr(nil, "Snapshot doesn't exist")
		}
		return Result{}, structuralErr(err, "Couldn't delete snapshot %q", snap.DisplayName())
	}
	return Result{Message: fmt.Sprintf("Deleted %q", snap.DisplayName())}, nil
}

// CleanupSafetyBackups removes safety backups older than maxAge (by
// modification time) and returns the number removed. Failures on
// individual backups are skipped.
func (m *Manager) CleanupSafetyBackups(maxAge time.Duration) int {
	entries, err := os.ReadDir(m.store.Dir())
	if err != nil {
		return 0
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), SafetyPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(m.store.Dir(), entry.Name())); err != nil {
			log.Warn("could not remove safety backup", "dir", entry.Name(), "error", err)
			continue
		}
		removed++
	}
	return removed
}

// generateName derives a directory-safe snapshot name from the timestamp
// and the sanitized note, appending a numeric suffix when a snapshot with
// the same name already exists (rapid saves within one minute).
func (m *Manager) generateName(note string, now time.Time) string {
	base := now.Format("2006-01-02_1504")
	if safe := sanitizeNote(note); safe != "" {
		base = base + "_" + safe
	}

	name := base
	for i := 2; ; i++ {
		if _, err := os.Lstat(filepath.Join(m.store.Dir(), name)); os.IsNotExist(err) {
			return name
		}
		name = fmt.Sprintf("%s_%d", base, i)
	}
}

// sanitizeNote strips a note down to characters that are safe in a
// directory name on every supported platform.
func sanitizeNote(note string) string {
	var b strings.Builder
	for _, r := range note {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	safe := strings.TrimSpace(b.String())
	safe = strings.ReplaceAll(safe, " ", "-")
	if runes := []rune(safe); len(runes) > 50 {
		safe = string(runes[:50])
	}
	return safe
}

// noteFromName recovers the note from a snapshot directory name
// (YYYY-MM-DD_HHMM_note) when metadata is missing.
func noteFromName(name string) string {
	parts := strings.SplitN(name, "_", 3)
	if len(parts) < 3 {
		return ""
	}
	return strings.ReplaceAll(parts[2], "-", " ")
}

// captureTree copies every non-ignored regular file under the project
// root into dstDir at the same relative path. Per-file failures are
// logged and skipped; the returned counts cover only files that actually
// copied. When sums is non-nil it collects an xxh3 digest per file. A
// failure to enumerate the project root itself is fatal.
func (m *Manager) captureTree(dstDir string, sums map[string]string) (int, int64, error) {
	fileCount := 0
	var totalSize int64

	err := filepath.WalkDir(m.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == m.root {
				return fmt.Errorf("enumerate project at %s: %w", m.root, err)
			}
			// Unreadable subtree: skip it, keep the snapshot going.
			log.Warn("skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path == m.root {
			return nil
		}
		if m.matcher.Match(path) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(m.root, path)
		if err != nil {
			return nil
		}
		dst := filepath.Join(dstDir, rel)
		size, sum, err := copyFile(path, dst)
		if err != nil {
			log.Warn("skipping file during snapshot", "path", rel, "error", err)
			return nil
		}
		fileCount++
		totalSize += size
		if sums != nil {
			sums[filepath.ToSlash(rel)] = sum
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return fileCount, totalSize, nil
}

// copyBack copies every file from a snapshot directory into the live
// project tree, recreating structure as needed and skipping the reserved
// metadata files. Any failure is fatal to the restore.
func copyBack(snapshotDir, root string) error {
	return filepath.WalkDir(snapshotDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if name := d.Name(); name == metadataFile || name == checksumFile {
			return nil
		}
		rel, err := filepath.Rel(snapshotDir, path)
		if err != nil {
			return err
		}
		// Snapshots written by earlier versions may carry control-dir
		// files; never restore those over the live configuration.
		if first, _, _ := strings.Cut(filepath.ToSlash(rel), "/"); first == ControlDir {
			return nil
		}
		if _, _, err := copyFile(path, filepath.Join(root, rel)); err != nil {
			return err
		}
		return nil
	})
}

// recoverTree copies the safety backup over the live tree, swallowing all
// errors. It runs only after a failed restore, when there is no further
// fallback.
func recoverTree(safetyDir, root string) {
	_ = filepath.WalkDir(safetyDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d == nil || d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, relErr := filepath.Rel(safetyDir, path)
		if relErr != nil {
			return nil
		}
		_, _, _ = copyFile(path, filepath.Join(root, rel))
		return nil
	})
}

// copyFile copies src to dst, creating parent directories and preserving
// the mode and modification time where the platform allows. It returns the
// copied byte count and the content's xxh3 digest.
func copyFile(src, dst string) (int64, string, error) {
	info, err := os.Stat(src)
	if err != nil {
		return 0, "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, "", err
	}

	in, err := os.Open(src)
	if err != nil {
		return 0, "", err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return 0, "", err
	}

	hasher := newHasher()
	written, err := io.Copy(io.MultiWriter(out, hasher), in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return 0, "", err
	}

	// Best-effort timestamp preservation; some filesystems refuse it.
	_ = os.Chtimes(dst, info.ModTime(), info.ModTime())

	return written, hasher.sumHex(), nil
}

// discardPartial removes a half-populated snapshot directory after a hard
// failure so it is never listed as if it were complete.
func (m *Manager) discardPartial(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		log.Warn("could not remove partial snapshot", "dir", dir, "error", err)
	}
}
