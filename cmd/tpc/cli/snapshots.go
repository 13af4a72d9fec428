package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tpc-app/tpc/internal/snapshot"
)

var snapshotsCmd = &cobra.Command{
	Use:     "snapshots",
	Aliases: []string{"list", "ls"},
	Short:   "List the project's snapshots",
	Long: `List all snapshots for the project, newest first.

Safety backups created automatically before a restore are internal and do
not appear here; remove old ones with 'tpc clean'.

Examples:
  tpc snapshots          # Table of snapshots
  tpc snapshots --json   # Output as JSON`,
	Args: cobra.NoArgs,
	RunE: listSnapshots,
}

func init() {
	rootCmd.AddCommand(snapshotsCmd)
}

func listSnapshots(cmd *cobra.Command, args []string) error {
	_, mgr, err := openManager()
	if err != nil {
		return err
	}

	snapshots, err := mgr.List()
	if err != nil {
		return err
	}

	if jsonOut {
		if snapshots == nil {
			snapshots = []snapshot.Snapshot{}
		}
		return json.NewEncoder(os.Stdout).Encode(snapshots)
	}

	if len(snapshots) == 0 {
		fmt.Println("No snapshots yet. Save one with: tpc save")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tNOTE\tCREATED\tFILES\tSIZE")
	for _, s := range snapshots {
		note := s.Note
		if note == "" {
			note = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			s.Name,
			note,
			formatAge(s.Created),
			s.FileCount,
			formatSize(s.TotalSize),
		)
	}
	w.Flush()

	fmt.Printf("\n%d snapshots\n", len(snapshots))
	return nil
}
