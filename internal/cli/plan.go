package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan <graph>",
	Short: "Show what a run would execute",
	Long: `Plans a graph without executing it and prints the resolved plan as YAML:
which nodes are in, their effective behaviors, and whether each would
execute, reuse cached outputs, or be skipped for missing inputs.`,
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

		p, err := sess.Plan(ctx)
		if err != nil {
			return fmt.Errorf("planning '%s' failed: %w", args[0], err)
		}
		data, err := p.Encode()
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
}
