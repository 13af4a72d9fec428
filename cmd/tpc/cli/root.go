// Package cli implements the tpc command-line interface using Cobra.
// It provides commands for managing project snapshots: saving, listing,
// restoring, verifying, and cleaning up.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/tpc-app/tpc/internal/log"
	"github.com/tpc-app/tpc/internal/project"
)

var (
	verbose     bool
	jsonOut     bool
	projectFlag string
)

var rootCmd = &cobra.Command{
	Use:   "tpc",
	Short: "TPC - folder-based snapshot versioning for small projects",
	Long: `TPC keeps timestamped snapshots of a project folder. No git, no
branches, no merge conflicts: save a snapshot before a risky change and
restore it if things go wrong.

Snapshots live in .tpc/snapshots/ inside the project and are plain folders
you can open and inspect.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		globalCfg, _ := project.LoadGlobal()

		if err := log.Init(log.Options{
			Verbose:       verbose,
			JSONFormat:    jsonOut,
			DebugDir:      project.LogDir(),
			RetentionDays: globalCfg.LogRetentionDays,
		}); err != nil {
			// Log init failure is non-fatal - fall back to default logger
			cmd.PrintErrf("Warning: failed to initialize debug logging: %v\n", err)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	defer log.Close()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVarP(&projectFlag, "project", "C", "", "project directory (default: search upward from the current directory)")
}
