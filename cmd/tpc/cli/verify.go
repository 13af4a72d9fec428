package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tpc-app/tpc/internal/ui"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <snapshot-name>",
	Short: "Check a snapshot's files against its recorded checksums",
	Long: `Re-hash every file in a snapshot and compare against the checksums
recorded when it was saved, reporting files that are missing or modified.

Snapshots saved by older versions have no checksums; verify reports that
and checks nothing.

Examples:
  tpc verify 2026-08-20_1412_v2`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	_, mgr, err := openManager()
	if err != nil {
		return err
	}

	snap, ok := mgr.GetByName(args[0])
	if !ok {
		return fmt.Errorf("snapshot not found: %s", args[0])
	}

	result, err := mgr.Verify(snap)
	if err != nil {
		return err
	}

	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(result)
	}

	if !result.HasChecksums {
		fmt.Println("This snapshot has no recorded checksums; nothing to verify.")
		return nil
	}

	if result.OK() {
		fmt.Printf("%s %d files verified\n", ui.OKTag(), result.Checked)
		return nil
	}

	for _, rel := range result.Missing {
		fmt.Printf("%s missing: %s\n", ui.FailTag(), rel)
	}
	for _, rel := range result.Modified {
		fmt.Printf("%s modified: %s\n", ui.FailTag(), rel)
	}
	return fmt.Errorf("snapshot verification failed: %d missing, %d modified",
		len(result.Missing), len(result.Modified))
}
