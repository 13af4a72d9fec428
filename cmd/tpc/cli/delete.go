package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tpc-app/tpc/internal/ui"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <snapshot-name>",
	Short: "Delete a snapshot",
	Long: `Delete one snapshot permanently. Other snapshots are unaffected.

Examples:
  tpc delete 2026-08-20_1412_v2`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	proj, mgr, err := openManager()
	if err != nil {
		return err
	}

	snap, ok := mgr.GetByName(args[0])
	if !ok {
		return fmt.Errorf("snapshot not found: %s", args[0])
	}

	result, err := mgr.Delete(snap)
	if err != nil {
		return err
	}

	recordProject(proj, mgr)

	fmt.Printf("%s %s\n", ui.OKTag(), result.Message)
	return nil
}
