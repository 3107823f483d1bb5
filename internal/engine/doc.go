// Package engine assembles the runnable system: built-in Go function packs
// validated against their HCL manifests, script packs that describe
// themselves, one registry over all of it, and invocation routing by function
// ID. An initialized engine hands out independent sessions, each owning a
// graph and the state its repeated runs accumulate.
//
// The lifecycle is strict: New captures configuration and does nothing else,
// Init builds everything and may fail cleanly, Close tears down exactly once.
// Using an engine after Close is a programmer error and panics.
package engine
