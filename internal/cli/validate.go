package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the workspace, its manifests, and every declared graph",
	Long: `Loads the workspace, initializes the engine (which binds manifests to Go
handlers), and plans every declared graph. Unknown functions, dangling
bindings, and type mismatches all surface here instead of at run time.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		for _, g := range a.Workspace().Graphs {
			sess, err := openSession(ctx, a, g.Name)
			if err != nil {
				return fmt.Errorf("graph '%s': %w", g.Name, err)
			}
			if _, err := sess.Plan(ctx); err != nil {
				return fmt.Errorf("graph '%s': %w", g.Name, err)
			}
		}

		fmt.Printf("workspace OK: %d functions, %d graphs, %d schedules\n",
			a.Model().Len(), len(a.Workspace().Graphs), len(a.Workspace().Schedules))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
