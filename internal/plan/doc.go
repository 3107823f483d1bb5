// Package plan turns a graph document into an execution plan: which nodes a
// run touches, in what order, and which of them actually execute given the
// caches left by earlier runs. Planning starts from the output nodes and
// works backward through bindings, so nodes nothing depends on never enter
// the plan.
package plan
