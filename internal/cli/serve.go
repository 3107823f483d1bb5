package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/csso/fngraph/internal/schedule"
	"github.com/csso/fngraph/internal/serve"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the editor API and run workspace schedules",
	Long: `Starts the HTTP surface: function and type catalogs, graph runs, metrics,
and the WebSocket run-event stream. Schedule blocks in the workspace run
alongside it, with their events on the same stream.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		addr := serveAddr
		if addr == "" && a.Workspace().Serve != nil {
			addr = a.Workspace().Serve.Addr
		}

		srv := serve.New(serve.Config{
			Addr:      addr,
			Engine:    a.Engine(),
			Model:     a.Model(),
			Workspace: a.Workspace(),
			Metrics:   a.Metrics(),
			Logger:    a.Logger(),
		})

		if len(a.Workspace().Schedules) > 0 {
			sched, err := schedule.New(ctx, schedule.Config{
				Engine:    a.Engine(),
				Workspace: a.Workspace(),
				Logger:    a.Logger(),
				Notify:    srv.Hub().Broadcast,
			})
			if err != nil {
				return err
			}
			sched.Start()
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := sched.Stop(stopCtx); err != nil {
					a.Logger().Warn("Scheduler did not stop cleanly.", "error", err)
				}
			}()
		}

		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (defaults to the workspace serve block, then "+serve.DefaultAddr+")")
	rootCmd.AddCommand(serveCmd)
}
