package main

import (
	"log/slog"
	"os"

	"github.com/csso/fngraph/internal/cli"
)

// main is the entrypoint for the fngraph binary.
func main() {
	// Minimal logger until a command configures the app's own.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cli.Execute()
}
