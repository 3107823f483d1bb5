// Package graph holds the document model for a function graph: nodes that
// instantiate functions, typed input and output pins, bindings that wire an
// input pin to another node's output, and subgraphs that group nodes behind
// boundary pins. The model is what the YAML files on disk describe; execution
// planning lives in the plan package.
package graph
