package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tpc-app/tpc/internal/ui"
)

var saveNote string

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save a snapshot of the project",
	Long: `Copy the project's current files into a new timestamped snapshot
under .tpc/snapshots/, skipping ignored paths (caches, virtual
environments, build output, and anything in the project's ignore list).

When the project is at its snapshot limit, the oldest snapshot is removed
to make room.

Examples:
  tpc save                            # Snapshot with no note
  tpc save --note "before refactor"   # Snapshot with a note`,
	Args: cobra.NoArgs,
	RunE: runSave,
}

func init() {
	rootCmd.AddCommand(saveCmd)
	saveCmd.Flags().StringVarP(&saveNote, "note", "n", "", "optional description for the snapshot")
}

func runSave(cmd *cobra.Command, args []string) error {
	proj, mgr, err := openManager()
	if err != nil {
		return err
	}

	result, err := mgr.Create(saveNote, progressPrinter())
	if err != nil {
		return err
	}

	recordProject(proj, mgr)

	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(result.Snapshot)
	}

	fmt.Printf("%s %s (%s, %s)\n", ui.OKTag(), result.Message,
		result.Snapshot.Name, formatSize(result.Snapshot.TotalSize))
	if result.DeletedOld != "" {
		fmt.Printf("Removed old snapshot: %s\n", result.DeletedOld)
	}
	return nil
}
