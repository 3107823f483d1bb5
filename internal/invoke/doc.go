// Package invoke defines the calling convention between the runtime and the
// things that implement functions: positional cty argument lists, a per-node
// call context that survives across runs, and the Invoker interface that Go
// packs and script VMs plug into.
package invoke
