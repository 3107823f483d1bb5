package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/csso/fngraph/internal/app"
	"github.com/csso/fngraph/internal/engine"
)

var runCmd = &cobra.Command{
	Use:   "run <graph>",
	Short: "Execute a graph once",
	Long: `Executes a graph and prints everything its nodes logged. The argument is
a graph name declared in the workspace, or a path to a graph document.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		sess, err := openSession(ctx, a, args[0])
		if err != nil {
			return err
		}

		result, err := sess.Run(ctx)
		if err != nil {
			return fmt.Errorf("run of '%s' failed: %w", args[0], err)
		}
		for _, line := range a.Engine().Output() {
			fmt.Println(line)
		}
		a.Logger().Info("Run finished.",
			"graph", args[0],
			"planned", result.Planned,
			"executed", result.Executed,
			"skipped", result.Skipped,
			"duration", result.Duration,
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// openSession loads the named graph into a fresh session. Workspace graph
// names win; anything else is treated as a document path.
func openSession(ctx context.Context, a *app.App, name string) (*engine.Session, error) {
	file, ok := a.Workspace().GraphFile(name)
	if !ok {
		if _, err := os.Stat(name); err != nil {
			return nil, fmt.Errorf("'%s' is neither a declared graph nor a graph document", name)
		}
		file = name
	}

	sess, err := a.Engine().NewSession()
	if err != nil {
		return nil, err
	}
	if err := sess.LoadGraph(ctx, file); err != nil {
		return nil, err
	}
	return sess, nil
}
