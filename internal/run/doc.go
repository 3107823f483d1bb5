// Package run executes plans. A Runtime owns the state that survives between
// runs of the same session: cached node outputs and per-node call contexts.
// Execution is sequential in plan order; the concurrency story lives a level
// up, where each session gets its own Runtime.
package run
