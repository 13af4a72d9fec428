package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/zeebo/xxh3"
)

// Snapshots created by this version carry a _checksums.json mapping each
// copied file's slash-relative path to the xxh3 digest of its content.
// Verify re-hashes the snapshot against it. Snapshots from older versions
// have no checksum file; that is not an error.

type hasher struct {
	h *xxh3.Hasher
}

func newHasher() *hasher {
	return &hasher{h: xxh3.New()}
}

func (h *hasher) Write(p []byte) (int, error) {
	return h.h.Write(p)
}

func (h *hasher) sumHex() string {
	return fmt.Sprintf("%016x", h.h.Sum64())
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := newHasher()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return h.sumHex(), nil
}

func writeChecksums(snapshotDir string, sums map[string]string) error {
	data, err := json.MarshalIndent(sums, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(snapshotDir, checksumFile), data, 0o644)
}

func readChecksums(snapshotDir string) (map[string]string, bool) {
	data, err := os.ReadFile(filepath.Join(snapshotDir, checksumFile))
	if err != nil {
		return nil, false
	}
	var sums map[string]string
	if err := json.Unmarshal(data, &sums); err != nil {
		return nil, false
	}
	return sums, true
}

// VerifyResult reports the outcome of a snapshot integrity check.
type VerifyResult struct {
	// HasChecksums is false when the snapshot predates checksum recording;
	// nothing was checked in that case.
	HasChecksums bool
	Checked      int
	// Missing lists recorded files no longer present in the snapshot.
	Missing []string
	// Modified lists files whose content no longer matches its digest.
	Modified []string
}

// OK reports whether every recorded file is present and unmodified.
func (r VerifyResult) OK() bool {
	return len(r.Missing) == 0 && len(r.Modified) == 0
}

// Verify re-hashes a snapshot's files against its recorded checksums.
func (m *Manager) Verify(snap Snapshot) (VerifyResult, error) {
	if _, err := os.Stat(snap.Path); err != nil {
		return VerifyResult{}, preconditionErr(nil, "Snapshot no longer exists")
	}

	sums, ok := readChecksums(snap.Path)
	if !ok {
		return VerifyResult{}, nil
	}

	result := VerifyResult{HasChecksums: true}
	for rel, want := range sums {
		path := filepath.Join(snap.Path, filepath.FromSlash(rel))
		got, err := hashFile(path)
		if err != nil {
			result.Missing = append(result.Missing, rel)
			continue
		}
		result.Checked++
		if got != want {
			result.Modified = append(result.Modified, rel)
		}
	}
	sort.Strings(result.Missing)
	sort.Strings(result.Modified)
	return result, nil
}
