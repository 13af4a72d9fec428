package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tpc-app/tpc/internal/project"
)

var initName string

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Turn a directory into a TPC project",
	Long: `Create a .tpc/project.json in the given directory (default: the
current directory), enabling snapshots for it.

Examples:
  tpc init                       # Initialize the current directory
  tpc init ~/code/my-script      # Initialize another directory
  tpc init --name "My Script"    # Set a display name`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&initName, "name", "", "project display name (default: directory name)")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving project path: %w", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return fmt.Errorf("not a directory: %s", root)
	}

	proj, err := project.Create(root, initName)
	if err != nil {
		return err
	}

	fmt.Printf("Initialized TPC project %q at %s\n", proj.Name, root)
	fmt.Println("Save your first snapshot with: tpc save --note \"first version\"")
	return nil
}
