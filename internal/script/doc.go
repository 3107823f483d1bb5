// Package script executes JavaScript function packs on embedded VMs.
//
// A pack is a single source file that appends entries to a global `functions`
// array; each entry names the function, declares its typed pins, and supplies
// the implementation:
//
//	functions.push({
//	    name: "sum",
//	    description: "Adds two integers.",
//	    inputs: [["a", "int"], ["b", "int"]],
//	    outputs: [["result", "int"]],
//	    func: function(a, b) { return a + b; },
//	});
//
// One Invoker owns one VM, and every call into it is serialized. console.log
// output is buffered for the host to drain through Output. A script may also
// define a global graph() function that wires registered functions together
// by calling them; Trace replays it against recording stubs and materializes
// the resulting node graph.
package script
