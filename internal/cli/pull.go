package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pullOut string

var pullCmd = &cobra.Command{
	Use:   "pull <graph>",
	Short: "Fetch an archived graph into the workspace",
	Long: `Loads a graph from the workspace's archive and writes it to the file the
workspace declares for that name, or to --out. The document is validated
before anything is written.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		name := args[0]

		target := pullOut
		if target == "" {
			file, ok := a.Workspace().GraphFile(name)
			if !ok {
				return fmt.Errorf("graph '%s' is not declared in the workspace; use --out to pick a file", name)
			}
			target = file
		}

		store, cleanup, err := openArchive(ctx, a)
		if err != nil {
			return err
		}
		defer cleanup()

		g, err := store.Load(ctx, name)
		if err != nil {
			return fmt.Errorf("fetching '%s' failed: %w", name, err)
		}
		if err := g.SaveFile(target); err != nil {
			return err
		}
		fmt.Printf("pulled '%s' (%d nodes) into %s\n", name, len(g.Nodes), target)
		return nil
	},
}

func init() {
	pullCmd.Flags().StringVarP(&pullOut, "out", "o", "", "Write the graph document to this file")
	rootCmd.AddCommand(pullCmd)
}
