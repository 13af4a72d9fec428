package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestManager(t *testing.T, opts Options) *Manager {
	t.Helper()
	root := t.TempDir()
	return NewManager(root, opts)
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func errKind(t *testing.T, err error) Kind {
	t.Helper()
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("error %v is not a *snapshot.Error", err)
	}
	return e.Kind
}

func TestCreateRoundTrip(t *testing.T) {
	m := newTestManager(t, Options{})
	writeFile(t, m.Root(), "main.py", "print('hello')\n")
	writeFile(t, m.Root(), "lib/util.py", "x = 1\n")

	res, err := m.Create("first", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Snapshot == nil {
		t.Fatal("Create returned nil Snapshot")
	}
	if res.Snapshot.FileCount != 2 {
		t.Errorf("FileCount = %d, want 2", res.Snapshot.FileCount)
	}
	if res.Snapshot.Note != "first" {
		t.Errorf("Note = %q, want %q", res.Snapshot.Note, "first")
	}
	if res.DeletedOld != "" {
		t.Errorf("DeletedOld = %q, want empty", res.DeletedOld)
	}

	// The snapshot holds copies at the same relative paths.
	if got := readFile(t, res.Snapshot.Path, "main.py"); got != "print('hello')\n" {
		t.Errorf("snapshot main.py = %q", got)
	}
	if got := readFile(t, res.Snapshot.Path, "lib/util.py"); got != "x = 1\n" {
		t.Errorf("snapshot lib/util.py = %q", got)
	}

	// Snapshots are copies: editing the live file leaves the snapshot alone.
	writeFile(t, m.Root(), "main.py", "print('changed')\n")
	if got := readFile(t, res.Snapshot.Path, "main.py"); got != "print('hello')\n" {
		t.Errorf("snapshot main.py after live edit = %q", got)
	}
}

func TestCreateAppliesIgnorePatterns(t *testing.T) {
	m := newTestManager(t, Options{IgnorePatterns: []string{"*.secret"}})
	writeFile(t, m.Root(), "main.py", "code")
	writeFile(t, m.Root(), "__pycache__/main.cpython-312.pyc", "bytecode")
	writeFile(t, m.Root(), "venv/lib/site.py", "venv")
	writeFile(t, m.Root(), "key.secret", "hunter2")
	writeFile(t, m.Root(), "debug.log", "log line")

	res, err := m.Create("", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Snapshot.FileCount != 1 {
		t.Errorf("FileCount = %d, want 1", res.Snapshot.FileCount)
	}
	for _, rel := range []string{"__pycache__", "venv", "key.secret", "debug.log"} {
		if _, err := os.Lstat(filepath.Join(res.Snapshot.Path, rel)); !os.IsNotExist(err) {
			t.Errorf("%s present in snapshot, want excluded", rel)
		}
	}
	if _, err := os.Stat(filepath.Join(res.Snapshot.Path, "main.py")); err != nil {
		t.Errorf("main.py missing from snapshot: %v", err)
	}
}

func TestCreateNeverCapturesControlDir(t *testing.T) {
	m := newTestManager(t, Options{})
	writeFile(t, m.Root(), "main.py", "code")
	writeFile(t, m.Root(), ".tpc/project.json", `{"name":"demo"}`)

	res, err := m.Create("", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Lstat(filepath.Join(res.Snapshot.Path, ControlDir)); !os.IsNotExist(err) {
		t.Error(".tpc captured into snapshot, want excluded")
	}
	if res.Snapshot.FileCount != 1 {
		t.Errorf("FileCount = %d, want 1", res.Snapshot.FileCount)
	}
}

func TestCreateEnforcesRetentionLimit(t *testing.T) {
	const limit = 3
	m := newTestManager(t, Options{Limit: limit})
	writeFile(t, m.Root(), "main.py", "v0")

	var deleted []string
	for i := 0; i < limit+2; i++ {
		writeFile(t, m.Root(), "main.py", "v"+string(rune('0'+i)))
		res, err := m.Create("", nil)
		if err != nil {
			t.Fatal(err)
		}
		if res.DeletedOld != "" {
			deleted = append(deleted, res.DeletedOld)
		}
		// Metadata timestamps order the listing; keep creations apart.
		time.Sleep(5 * time.Millisecond)

		snapshots, err := m.List()
		if err != nil {
			t.Fatal(err)
		}
		want := i + 1
		if want > limit {
			want = limit
		}
		if len(snapshots) != want {
			t.Fatalf("after save %d: %d snapshots, want %d", i+1, len(snapshots), want)
		}
	}

	// Two saves past the limit, so exactly two evictions.
	if len(deleted) != 2 {
		t.Errorf("evictions = %d (%v), want 2", len(deleted), deleted)
	}
}

func TestCreateReportsEvictedName(t *testing.T) {
	m := newTestManager(t, Options{Limit: 1})
	writeFile(t, m.Root(), "main.py", "v1")

	first, err := m.Create("keep me", nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := m.Create("replacement", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.DeletedOld != first.Snapshot.DisplayName() {
		t.Errorf("DeletedOld = %q, want %q", res.DeletedOld, first.Snapshot.DisplayName())
	}
	if _, err := os.Stat(first.Snapshot.Path); !os.IsNotExist(err) {
		t.Error("evicted snapshot still on disk")
	}
}

func TestCreateNameCollisionSuffix(t *testing.T) {
	m := newTestManager(t, Options{})
	if err := m.store.EnsureDir(); err != nil {
		t.Fatal(err)
	}

	now := time.Date(2026, 8, 24, 14, 30, 0, 0, time.UTC)
	first := m.generateName("fix bug", now)
	if first != "2026-08-24_1430_fix-bug" {
		t.Fatalf("generateName = %q", first)
	}
	if err := os.Mkdir(filepath.Join(m.store.Dir(), first), 0o755); err != nil {
		t.Fatal(err)
	}
	if got := m.generateName("fix bug", now); got != first+"_2" {
		t.Errorf("second name = %q, want %q", got, first+"_2")
	}
	if err := os.Mkdir(filepath.Join(m.store.Dir(), first+"_2"), 0o755); err != nil {
		t.Fatal(err)
	}
	if got := m.generateName("fix bug", now); got != first+"_3" {
		t.Errorf("third name = %q, want %q", got, first+"_3")
	}
}

func TestSanitizeNote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"fix login bug", "fix-login-bug"},
		{"fix: login bug!", "fix-login-bug"},
		{"v1.2.3", "v123"},
		{"  padded  ", "padded"},
		{"éclair für alle", "éclair-für-alle"},
		{"///", ""},
		{strings.Repeat("a", 60), strings.Repeat("a", 50)},
	}
	for _, tt := range tests {
		if got := sanitizeNote(tt.in); got != tt.want {
			t.Errorf("sanitizeNote(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNoteFromName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"2026-08-24_1430", ""},
		{"2026-08-24_1430_fix-login-bug", "fix login bug"},
		{"2026-08-24_1430_single", "single"},
	}
	for _, tt := range tests {
		if got := noteFromName(tt.name); got != tt.want {
			t.Errorf("noteFromName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestListNewestFirst(t *testing.T) {
	m := newTestManager(t, Options{})
	writeFile(t, m.Root(), "main.py", "code")

	var names []string
	for i := 0; i < 3; i++ {
		res, err := m.Create("", nil)
		if err != nil {
			t.Fatal(err)
		}
		names = append(names, res.Snapshot.Name)
		time.Sleep(5 * time.Millisecond)
	}

	snapshots, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(snapshots) != 3 {
		t.Fatalf("got %d snapshots, want 3", len(snapshots))
	}
	for i := range snapshots {
		if want := names[len(names)-1-i]; snapshots[i].Name != want {
			t.Errorf("snapshots[%d] = %q, want %q", i, snapshots[i].Name, want)
		}
	}
	for i := 1; i < len(snapshots); i++ {
		if snapshots[i].Created.After(snapshots[i-1].Created) {
			t.Errorf("snapshots[%d] newer than snapshots[%d]", i, i-1)
		}
	}
}

func TestListSkipsSafetyBackups(t *testing.T) {
	m := newTestManager(t, Options{})
	writeFile(t, m.Root(), "main.py", "code")

	if _, err := m.Create("", nil); err != nil {
		t.Fatal(err)
	}
	backup := filepath.Join(m.store.Dir(), SafetyPrefix+"20260824_143000")
	if err := os.MkdirAll(backup, 0o755); err != nil {
		t.Fatal(err)
	}

	snapshots, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(snapshots) != 1 {
		t.Errorf("got %d snapshots, want 1 (safety backup must be hidden)", len(snapshots))
	}
}

func TestListMetadataFallback(t *testing.T) {
	m := newTestManager(t, Options{})
	writeFile(t, m.Root(), "main.py", "code here")
	writeFile(t, m.Root(), "other.py", "more")

	res, err := m.Create("my note", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(res.Snapshot.Path, metadataFile)); err != nil {
		t.Fatal(err)
	}

	snapshots, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(snapshots) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(snapshots))
	}
	got := snapshots[0]
	if got.Note != "my note" {
		t.Errorf("fallback note = %q, want %q", got.Note, "my note")
	}
	if got.FileCount != 2 {
		t.Errorf("fallback file count = %d, want 2", got.FileCount)
	}
	if got.TotalSize == 0 {
		t.Error("fallback total size = 0, want > 0")
	}
	if got.Created.IsZero() {
		t.Error("fallback created time is zero")
	}
}

func TestListEmptyStore(t *testing.T) {
	m := newTestManager(t, Options{})
	snapshots, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(snapshots) != 0 {
		t.Errorf("got %d snapshots, want 0", len(snapshots))
	}
}

func TestGetByName(t *testing.T) {
	m := newTestManager(t, Options{})
	writeFile(t, m.Root(), "main.py", "code")

	res, err := m.Create("tagged", nil)
	if err != nil {
		t.Fatal(err)
	}

	snap, ok := m.GetByName(res.Snapshot.Name)
	if !ok {
		t.Fatalf("GetByName(%q) not found", res.Snapshot.Name)
	}
	if snap.Note != "tagged" {
		t.Errorf("Note = %q, want %q", snap.Note, "tagged")
	}
	if _, ok := m.GetByName("2000-01-01_0000"); ok {
		t.Error("GetByName found a snapshot that doesn't exist")
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	m := newTestManager(t, Options{})
	writeFile(t, m.Root(), "main.py", "v1")
	writeFile(t, m.Root(), "lib/util.py", "u1")
	writeFile(t, m.Root(), ".tpc/project.json", `{"name":"demo"}`)

	res, err := m.Create("v1", nil)
	if err != nil {
		t.Fatal(err)
	}

	// Mutate the live tree: edit, add, nest.
	writeFile(t, m.Root(), "main.py", "v2")
	writeFile(t, m.Root(), "new_since.py", "added later")
	if err := os.Remove(filepath.Join(m.Root(), "lib", "util.py")); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Restore(*res.Snapshot, nil); err != nil {
		t.Fatal(err)
	}

	if got := readFile(t, m.Root(), "main.py"); got != "v1" {
		t.Errorf("main.py after restore = %q, want v1", got)
	}
	if got := readFile(t, m.Root(), "lib/util.py"); got != "u1" {
		t.Errorf("lib/util.py after restore = %q, want u1", got)
	}
	if _, err := os.Lstat(filepath.Join(m.Root(), "new_since.py")); !os.IsNotExist(err) {
		t.Error("file created after the snapshot survived restore")
	}

	// The control directory is untouched.
	if got := readFile(t, m.Root(), ".tpc/project.json"); got != `{"name":"demo"}` {
		t.Errorf("project.json after restore = %q", got)
	}

	// The snapshot's reserved files never land in the project root.
	for _, name := range []string{metadataFile, checksumFile} {
		if _, err := os.Lstat(filepath.Join(m.Root(), name)); !os.IsNotExist(err) {
			t.Errorf("%s copied into project root", name)
		}
	}
}

func TestRestoreWritesSafetyBackup(t *testing.T) {
	m := newTestManager(t, Options{})
	writeFile(t, m.Root(), "main.py", "v1")

	res, err := m.Create("v1", nil)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, m.Root(), "main.py", "v2")

	if _, err := m.Restore(*res.Snapshot, nil); err != nil {
		t.Fatal(err)
	}

	backups := safetyBackupDirs(t, m)
	if len(backups) != 1 {
		t.Fatalf("got %d safety backups, want 1", len(backups))
	}
	// The backup holds the pre-restore state.
	if got := readFile(t, backups[0], "main.py"); got != "v2" {
		t.Errorf("safety backup main.py = %q, want v2", got)
	}
}

func TestRestoreMissingSnapshot(t *testing.T) {
	m := newTestManager(t, Options{})
	writeFile(t, m.Root(), "main.py", "v1")

	snap := Snapshot{Name: "gone", Path: filepath.Join(m.store.Dir(), "gone")}
	_, err := m.Restore(snap, nil)
	if err == nil {
		t.Fatal("Restore of a missing snapshot succeeded")
	}
	if kind := errKind(t, err); kind != KindPrecondition {
		t.Errorf("Kind = %v, want %v", kind, KindPrecondition)
	}
	// Nothing was mutated: no safety backup, live file intact.
	if backups := safetyBackupDirs(t, m); len(backups) != 0 {
		t.Errorf("got %d safety backups, want 0", len(backups))
	}
	if got := readFile(t, m.Root(), "main.py"); got != "v1" {
		t.Errorf("main.py = %q, want v1", got)
	}
}

func TestRestoreFailureRecoversFromBackup(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission-based failure injection does not work as root")
	}

	m := newTestManager(t, Options{})
	writeFile(t, m.Root(), "main.py", "v1")

	res, err := m.Create("v1", nil)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, m.Root(), "main.py", "v2")
	writeFile(t, m.Root(), "work.py", "in progress")

	// Make one snapshot file unreadable so copy-back fails mid-restore.
	locked := filepath.Join(res.Snapshot.Path, "main.py")
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(locked, 0o644) })

	_, err = m.Restore(*res.Snapshot, nil)
	if err == nil {
		t.Fatal("Restore succeeded despite unreadable snapshot file")
	}
	if kind := errKind(t, err); kind != KindRestoreRecovered {
		t.Errorf("Kind = %v, want %v", kind, KindRestoreRecovered)
	}

	// The pre-restore state came back from the safety backup.
	if got := readFile(t, m.Root(), "main.py"); got != "v2" {
		t.Errorf("main.py after recovery = %q, want v2", got)
	}
	if got := readFile(t, m.Root(), "work.py"); got != "in progress" {
		t.Errorf("work.py after recovery = %q, want restored", got)
	}

	// The control directory and snapshot history survive a failed restore.
	if _, err := os.Stat(res.Snapshot.Path); err != nil {
		t.Errorf("snapshot store damaged by failed restore: %v", err)
	}
}

func TestRecoverTree(t *testing.T) {
	safety := t.TempDir()
	root := t.TempDir()
	writeFile(t, safety, "main.py", "saved")
	writeFile(t, safety, "lib/util.py", "saved too")
	writeFile(t, root, "main.py", "half-restored garbage")

	recoverTree(safety, root)

	if got := readFile(t, root, "main.py"); got != "saved" {
		t.Errorf("main.py = %q, want saved", got)
	}
	if got := readFile(t, root, "lib/util.py"); got != "saved too" {
		t.Errorf("lib/util.py = %q, want saved too", got)
	}
}

func TestDeleteSnapshot(t *testing.T) {
	m := newTestManager(t, Options{})
	writeFile(t, m.Root(), "main.py", "v1")

	first, err := m.Create("first", nil)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	second, err := m.Create("second", nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.Delete(*first.Snapshot); err != nil {
		t.Fatal(err)
	}
	snapshots, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(snapshots) != 1 || snapshots[0].Name != second.Snapshot.Name {
		t.Errorf("after delete: %+v, want only %q", snapshots, second.Snapshot.Name)
	}

	// Deleting again is a precondition failure, not a crash.
	_, err = m.Delete(*first.Snapshot)
	if err == nil {
		t.Fatal("second Delete succeeded")
	}
	if kind := errKind(t, err); kind != KindPrecondition {
		t.Errorf("Kind = %v, want %v", kind, KindPrecondition)
	}
}

func TestCleanupSafetyBackups(t *testing.T) {
	m := newTestManager(t, Options{})
	writeFile(t, m.Root(), "main.py", "v1")
	if _, err := m.Create("keep", nil); err != nil {
		t.Fatal(err)
	}

	old := filepath.Join(m.store.Dir(), SafetyPrefix+"20260820_120000")
	recent := filepath.Join(m.store.Dir(), SafetyPrefix+"20260824_120000")
	for _, dir := range []string{old, recent} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	stale := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatal(err)
	}

	if removed := m.CleanupSafetyBackups(24 * time.Hour); removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := os.Lstat(old); !os.IsNotExist(err) {
		t.Error("stale backup still present")
	}
	if _, err := os.Lstat(recent); err != nil {
		t.Errorf("recent backup removed: %v", err)
	}

	// Ordinary snapshots are never touched.
	snapshots, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(snapshots) != 1 {
		t.Errorf("got %d snapshots after cleanup, want 1", len(snapshots))
	}
}

func TestVerify(t *testing.T) {
	m := newTestManager(t, Options{})
	writeFile(t, m.Root(), "main.py", "v1")
	writeFile(t, m.Root(), "lib/util.py", "u1")

	res, err := m.Create("", nil)
	if err != nil {
		t.Fatal(err)
	}
	snap := *res.Snapshot

	result, err := m.Verify(snap)
	if err != nil {
		t.Fatal(err)
	}
	if !result.HasChecksums || !result.OK() || result.Checked != 2 {
		t.Errorf("clean verify = %+v, want 2 checked, ok", result)
	}

	// Corrupt one file, remove another.
	writeFile(t, snap.Path, "main.py", "tampered")
	if err := os.Remove(filepath.Join(snap.Path, "lib", "util.py")); err != nil {
		t.Fatal(err)
	}

	result, err = m.Verify(snap)
	if err != nil {
		t.Fatal(err)
	}
	if result.OK() {
		t.Error("verify of a damaged snapshot reported ok")
	}
	if len(result.Modified) != 1 || result.Modified[0] != "main.py" {
		t.Errorf("Modified = %v, want [main.py]", result.Modified)
	}
	if len(result.Missing) != 1 || result.Missing[0] != "lib/util.py" {
		t.Errorf("Missing = %v, want [lib/util.py]", result.Missing)
	}
}

func TestVerifyWithoutChecksums(t *testing.T) {
	m := newTestManager(t, Options{})
	writeFile(t, m.Root(), "main.py", "v1")

	res, err := m.Create("", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(res.Snapshot.Path, checksumFile)); err != nil {
		t.Fatal(err)
	}

	result, err := m.Verify(*res.Snapshot)
	if err != nil {
		t.Fatal(err)
	}
	if result.HasChecksums {
		t.Error("HasChecksums = true for a snapshot without a checksum file")
	}
}

func TestProgressReporting(t *testing.T) {
	m := newTestManager(t, Options{})
	writeFile(t, m.Root(), "main.py", "v1")

	var stages []string
	res, err := m.Create("", func(msg string) { stages = append(stages, msg) })
	if err != nil {
		t.Fatal(err)
	}
	if len(stages) == 0 {
		t.Fatal("no progress reported during Create")
	}
	if last := stages[len(stages)-1]; last != "Snapshot complete!" {
		t.Errorf("final stage = %q", last)
	}

	stages = nil
	if _, err := m.Restore(*res.Snapshot, func(msg string) { stages = append(stages, msg) }); err != nil {
		t.Fatal(err)
	}
	if last := stages[len(stages)-1]; last != "Restore complete!" {
		t.Errorf("final restore stage = %q", last)
	}
}

func safetyBackupDirs(t *testing.T, m *Manager) []string {
	t.Helper()
	entries, err := os.ReadDir(m.store.Dir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatal(err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), SafetyPrefix) {
			dirs = append(dirs, filepath.Join(m.store.Dir(), e.Name()))
		}
	}
	return dirs
}
