package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tpc-app/tpc/internal/registry"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List known TPC projects",
	Long: `List projects recorded in the registry. A project is registered the
first time a snapshot is saved for it.

Examples:
  tpc projects          # Table of known projects
  tpc projects --json   # Output as JSON`,
	Args: cobra.NoArgs,
	RunE: listProjects,
}

var projectsForgetCmd = &cobra.Command{
	Use:   "forget <path>",
	Short: "Remove a project from the registry",
	Long: `Remove a project from the registry. The project's files and
snapshots are untouched; it only disappears from 'tpc projects'.`,
	Args: cobra.ExactArgs(1),
	RunE: forgetProject,
}

func init() {
	rootCmd.AddCommand(projectsCmd)
	projectsCmd.AddCommand(projectsForgetCmd)
}

func listProjects(cmd *cobra.Command, args []string) error {
	reg, err := registry.Open(registry.DefaultPath())
	if err != nil {
		return err
	}
	defer reg.Close()

	entries, err := reg.List()
	if err != nil {
		return err
	}

	if jsonOut {
		if entries == nil {
			entries = []registry.Entry{}
		}
		return json.NewEncoder(os.Stdout).Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Println("No known projects. Save a snapshot in one with: tpc save")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPATH\tSNAPSHOTS\tLAST SAVED")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			e.Name,
			e.Path,
			e.SnapshotCount,
			formatAge(e.LastSnapshotAt),
		)
	}
	w.Flush()
	return nil
}

func forgetProject(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}

	reg, err := registry.Open(registry.DefaultPath())
	if err != nil {
		return err
	}
	defer reg.Close()

	if err := reg.Remove(path); err != nil {
		return err
	}
	fmt.Printf("Forgot project at %s\n", path)
	return nil
}
