// Package cli defines the fngraph command tree. Each command builds an App
// from the global flags, drives one flow (run, plan, trace, serve, watch,
// push, pull), and translates failures into exit codes.
package cli
