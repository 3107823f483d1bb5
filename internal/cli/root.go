package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/csso/fngraph/internal/app"
)

var rootCmd = &cobra.Command{
	Use:   "fngraph",
	Short: "A function-graph pipeline engine.",
	Long: `fngraph builds executable graphs out of registered functions: Go packs
declared by HCL manifests and JavaScript pipelines traced into graph
documents. A workspace file ties scripts, manifests, graphs, schedules,
and the editor server together.`,
	SilenceUsage: true,
}

var (
	workspacePath string
	logLevel      string
	logFormat     string
)

// Execute runs the command tree.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workspacePath, "workspace", "w", "workspace.hcl", "Path to the workspace file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Logging level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log output format: text or json")
}

// newApp assembles an App from the global flags. The caller owns Close.
func newApp(ctx context.Context) (*app.App, error) {
	cfg, err := app.NewConfig(app.Config{
		WorkspacePath: workspacePath,
		LogLevel:      logLevel,
		LogFormat:     logFormat,
	})
	if err != nil {
		return nil, err
	}
	return app.New(ctx, os.Stderr, cfg)
}
