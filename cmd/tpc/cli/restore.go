package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tpc-app/tpc/internal/ui"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <snapshot-name>",
	Short: "Restore the project to a snapshot",
	Long: `Replace the project's files with the contents of a snapshot.

A safety backup of the current state is written first, so a restore can
itself be undone. The .tpc/ folder (configuration and snapshot history) is
never touched.

Examples:
  tpc snapshots                        # Find the snapshot name
  tpc restore 2026-08-20_1412_v2       # Restore it`,
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

func init() {
	rootCmd.AddCommand(restoreCmd)
}

func runRestore(cmd *cobra.Command, args []string) error {
	proj, mgr, err := openManager()
	if err != nil {
		return err
	}

	snap, ok := mgr.GetByName(args[0])
	if !ok {
		return fmt.Errorf("snapshot not found: %s", args[0])
	}

	result, err := mgr.Restore(snap, progressPrinter())
	if err != nil {
		return err
	}

	recordProject(proj, mgr)

	fmt.Printf("%s %s\n", ui.OKTag(), result.Message)
	fmt.Println("The replaced state was kept as a safety backup; remove old backups with: tpc clean")
	return nil
}
