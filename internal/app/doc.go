// Package app assembles a workspace into a running engine: logger, workspace
// config, core Go packs, and runtime metrics, decoupled from any specific
// entrypoint like the CLI or the HTTP server.
package app
