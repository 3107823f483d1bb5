package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/csso/fngraph/internal/app"
	"github.com/csso/fngraph/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch <graph>",
	Short: "Rerun a graph whenever workspace files change",
	Long: `Runs the graph once, then watches the workspace's scripts, manifests, and
graph documents. Every change builds a fresh engine and runs again, so
each run sees a clean snapshot of the registered functions.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		name := args[0]

		// The current app is replaced wholesale on every rebuild.
		var mu sync.Mutex
		var current *app.App

		build := func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			if current != nil {
				current.Close()
				current = nil
			}
			a, err := newApp(ctx)
			if err != nil {
				return err
			}

			sess, err := openSession(ctx, a, name)
			if err != nil {
				a.Close()
				return err
			}
			result, err := sess.Run(ctx)
			if err != nil {
				a.Close()
				return err
			}
			for _, line := range a.Engine().Output() {
				fmt.Println(line)
			}
			a.Logger().Info("Run finished.", "graph", name, "executed", result.Executed, "skipped", result.Skipped)
			current = a
			return nil
		}

		if err := build(ctx); err != nil {
			return err
		}
		defer func() {
			mu.Lock()
			defer mu.Unlock()
			if current != nil {
				current.Close()
			}
		}()

		mu.Lock()
		dirs := watch.DirsFor(current.Workspace())
		logger := current.Logger()
		mu.Unlock()

		w, err := watch.New(watch.Config{
			Dirs:   dirs,
			Logger: logger,
			OnChange: func(ctx context.Context) {
				if err := build(ctx); err != nil {
					fmt.Fprintln(os.Stderr, "rebuild failed:", err)
				}
			},
		})
		if err != nil {
			return err
		}
		defer w.Close()

		return w.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
