package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/csso/fngraph/internal/graph"
)

var traceOut string

var traceCmd = &cobra.Command{
	Use:   "trace [script]",
	Short: "Trace a script's graph() into a graph document",
	Long: `Replays the graph() function of a workspace script against the function
registry and emits the captured graph as YAML. With one script in the
workspace the argument may be omitted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		g, err := a.Engine().Trace(ctx, name)
		if err != nil {
			return err
		}

		if traceOut != "" {
			if err := g.SaveFile(traceOut); err != nil {
				return err
			}
			a.Logger().Info("Graph document written.", "file", traceOut, "nodes", len(g.Nodes))
			return nil
		}

		data, err := graph.Encode(g)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

func init() {
	traceCmd.Flags().StringVarP(&traceOut, "out", "o", "", "Write the graph document to a file instead of stdout")
	rootCmd.AddCommand(traceCmd)
}
