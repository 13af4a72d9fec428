package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Metadata is the persisted companion record inside each snapshot
// directory. It is a read optimization: listings fall back to directory
// stats and filesystem timestamps when it is missing or unparseable.
type Metadata struct {
	Created     time.Time `json:"created"`
	Note        string    `json:"note"`
	ProjectPath string    `json:"project_path"`
	FileCount   int       `json:"file_count"`
	TotalSize   int64     `json:"total_size"`
}

// readMetadata parses the metadata file in snapshotDir. A missing file,
// truncated content, or any parse failure returns ok=false, never an
// error: callers always have a fallback path.
func readMetadata(snapshotDir string) (Metadata, bool) {
	data, err := os.ReadFile(filepath.Join(snapshotDir, metadataFile))
	if err != nil {
		return Metadata{}, false
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return Metadata{}, false
	}
	if m.Created.IsZero() {
		return Metadata{}, false
	}
	return m, true
}

// writeMetadata persists the metadata file via write-to-temp-then-rename.
// Rename is atomic on POSIX filesystems; on Windows the replace leaves a
// sub-millisecond window, which is acceptable for a single-user local
// tool. A crash mid-write leaves a snapshot directory without metadata,
// which listings treat as suspect rather than corrupt.
func writeMetadata(snapshotDir string, m Metadata) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	tmp, err := os.CreateTemp(snapshotDir, metadataFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("create metadata temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close metadata temp file: %w", err)
	}

	target := filepath.Join(snapshotDir, metadataFile)
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace metadata file: %w", err)
	}
	return nil
}
