package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/csso/fngraph/internal/app"
	"github.com/csso/fngraph/internal/archive"
	"github.com/csso/fngraph/internal/graph"
)

var pushCmd = &cobra.Command{
	Use:   "push <graph>",
	Short: "Archive a graph document in the shared store",
	Long: `Saves a declared graph under its workspace name in the archive the
workspace's archive block points at. Pushing a name again replaces the
archived document.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		name := args[0]

		file, ok := a.Workspace().GraphFile(name)
		if !ok {
			return fmt.Errorf("graph '%s' is not declared in the workspace", name)
		}
		g, err := graph.LoadFile(ctx, file)
		if err != nil {
			return err
		}

		store, cleanup, err := openArchive(ctx, a)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := store.Save(ctx, name, g); err != nil {
			return fmt.Errorf("archiving '%s' failed: %w", name, err)
		}
		fmt.Printf("pushed '%s' (%d nodes)\n", name, len(g.Nodes))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pushCmd)
}

// openArchive connects to the workspace's archive. The cleanup func closes
// the underlying driver.
func openArchive(ctx context.Context, a *app.App) (*archive.Neo4j, func(), error) {
	arc := a.Workspace().Archive
	if arc == nil {
		return nil, nil, errors.New("workspace declares no archive block")
	}

	exec, err := archive.NewExecutor(arc.URI, arc.Username, arc.Password, arc.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := exec.Verify(ctx); err != nil {
		exec.Close(ctx)
		return nil, nil, fmt.Errorf("archive at %s is unreachable: %w", arc.URI, err)
	}

	store := archive.NewNeo4j(exec)
	cleanup := func() {
		if err := store.Close(context.Background()); err != nil {
			a.Logger().Warn("Failed to close archive connection.", "error", err)
		}
	}
	return store, cleanup, nil
}
