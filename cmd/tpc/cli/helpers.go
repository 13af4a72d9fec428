package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tpc-app/tpc/internal/log"
	"github.com/tpc-app/tpc/internal/project"
	"github.com/tpc-app/tpc/internal/registry"
	"github.com/tpc-app/tpc/internal/snapshot"
	"github.com/tpc-app/tpc/internal/ui"
)

// resolveProjectRoot resolves the project root from --project or by
// searching upward from the current directory.
func resolveProjectRoot() (string, error) {
	if projectFlag != "" {
		abs, err := filepath.Abs(projectFlag)
		if err != nil {
			return "", fmt.Errorf("resolving project path: %w", err)
		}
		if !project.Exists(abs) {
			return "", fmt.Errorf("no TPC project at %s (run 'tpc init' to create one)", abs)
		}
		return abs, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	root, err := project.Find(cwd)
	if err != nil {
		return "", fmt.Errorf("%w (run 'tpc init' to create one)", err)
	}
	return root, nil
}

// openManager loads the project at the resolved root and builds its
// snapshot manager with global defaults applied.
func openManager() (*project.Project, *snapshot.Manager, error) {
	root, err := resolveProjectRoot()
	if err != nil {
		return nil, nil, err
	}
	proj, err := project.Load(root)
	if err != nil {
		return nil, nil, err
	}
	globalCfg, _ := project.LoadGlobal()
	mgr := snapshot.NewManager(root, proj.SnapshotOptions(globalCfg))
	return proj, mgr, nil
}

// progressPrinter reports engine stage messages to stderr unless JSON
// output was requested.
func progressPrinter() snapshot.Progress {
	if jsonOut {
		return nil
	}
	return func(msg string) {
		ui.Info(msg)
	}
}

// recordProject updates the known-projects registry after a snapshot
// operation. Registry failures never fail the command.
func recordProject(proj *project.Project, mgr *snapshot.Manager) {
	reg, err := registry.Open(registry.DefaultPath())
	if err != nil {
		log.Debug("registry unavailable", "error", err)
		return
	}
	defer reg.Close()

	snapshots, err := mgr.List()
	if err != nil {
		log.Debug("could not count snapshots for registry", "error", err)
		return
	}
	entry := registry.Entry{
		Path:          proj.Path,
		Name:          proj.Name,
		SnapshotCount: len(snapshots),
	}
	if len(snapshots) > 0 {
		entry.LastSnapshotAt = snapshots[0].Created
	}
	if err := reg.Record(entry); err != nil {
		log.Debug("could not update registry", "error", err)
	}
}

func formatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	if d < time.Minute {
		return "just now"
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(d.Hours()/24))
}

// formatSize renders a byte count for humans.
func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGT"[exp])
}
