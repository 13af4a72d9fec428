// Package snapshot implements folder-copy versioning for TPC projects.
//
// A snapshot is a timestamped copy of the project tree stored under
// .tpc/snapshots/. No git, no branches: just folders a user can open,
// understand, and restore. The Manager orchestrates creation (with ignore
// filtering and retention eviction), listing, and restore-with-rollback;
// the Store owns the on-disk layout.
package snapshot

import (
	"fmt"
	"time"
)

// ControlDir is the hidden per-project directory holding configuration and
// the snapshot store. It is never snapshotted and never deleted by restore.
const ControlDir = ".tpc"

// SafetyPrefix names the transient backups taken immediately before a
// restore. Directories with this prefix are excluded from listings and are
// not subject to the retention limit.
const SafetyPrefix = "_pre_restore_"

// metadataFile is the per-snapshot metadata companion file.
const metadataFile = "_snapshot.json"

// checksumFile holds per-file content digests for verification.
const checksumFile = "_checksums.json"

// DefaultLimit is the retention limit applied when a project does not
// configure one.
const DefaultLimit = 10

// Snapshot is one saved copy of a project tree. Immutable once written:
// restore reads it but never mutates it.
type Snapshot struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Created   time.Time `json:"created"`
	Note      string    `json:"note"`
	FileCount int       `json:"file_count"`
	TotalSize int64     `json:"total_size"`
}

// DisplayName returns the note if present, otherwise a timestamp label.
func (s Snapshot) DisplayName() string {
	if s.Note != "" {
		return s.Note
	}
	return "Snapshot " + s.Created.Format("2006-01-02 15:04")
}

// Result reports the outcome of a successful Manager operation.
type Result struct {
	// Message is suitable for showing verbatim to a non-technical user.
	Message string
	// Snapshot is the snapshot created by Create, nil otherwise.
	Snapshot *Snapshot
	// DeletedOld names the snapshot evicted by the retention limit during
	// Create, empty when nothing was evicted.
	DeletedOld string
}

// Kind classifies an operation failure.
type Kind int

const (
	// KindStructural marks failures of required directory or metadata
	// operations; partial artifacts are cleaned up best-effort.
	KindStructural Kind = iota
	// KindPrecondition marks failures detected before any mutation (target
	// snapshot missing, eviction of the oldest snapshot failed).
	KindPrecondition
	// KindRestoreRecovered marks a restore that failed mid copy-back after
	// recovery from the safety backup was attempted.
	KindRestoreRecovered
)

func (k Kind) String() string {
	switch k {
	case KindStructural:
		return "structural"
	case KindPrecondition:
		return "precondition"
	case KindRestoreRecovered:
		return "restore-recovered"
	default:
		return "unknown"
	}
}

// Error is the failure type crossing the package boundary. Message is
// user-presentable and names the failing path where one exists.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func structuralErr(err error, format string, args ...any) *Error {
	return &Error{Kind: KindStructural, Message: fmt.Sprintf(format, args...), Err: err}
}

func preconditionErr(err error, format string, args ...any) *Error {
	return &Error{Kind: KindPrecondition, Message: fmt.Sprintf(format, args...), Err: err}
}

// Progress receives human-readable status lines at stage boundaries. It is
// invoked synchronously, zero or more times, and must not block for long.
type Progress func(msg string)

func (p Progress) report(msg string) {
	if p != nil {
		p(msg)
	}
}
