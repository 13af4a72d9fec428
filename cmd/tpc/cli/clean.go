package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var cleanMaxAgeHours int

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove old safety backups",
	Long: `Remove safety backups left behind by restore operations.

Every restore writes a safety backup of the replaced state into the
snapshot store. They are not subject to the snapshot limit, so old ones
accumulate until cleaned.

Examples:
  tpc clean                 # Remove backups older than 24 hours
  tpc clean --max-age 168   # Remove backups older than a week`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().IntVar(&cleanMaxAgeHours, "max-age", 24, "remove safety backups older than this many hours")
}

func runClean(cmd *cobra.Command, args []string) error {
	_, mgr, err := openManager()
	if err != nil {
		return err
	}

	removed := mgr.CleanupSafetyBackups(time.Duration(cleanMaxAgeHours) * time.Hour)
	if removed == 0 {
		fmt.Println("No old safety backups to remove")
		return nil
	}
	fmt.Printf("Removed %d safety backups\n", removed)
	return nil
}
