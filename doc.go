// Package codecell is a sandboxed execution engine for untrusted JavaScript
// cells.
//
// # Overview
//
// A cell is a piece of untrusted source text. The engine compiles it to an
// executable form with advisory diagnostics, runs it inside a fresh isolated
// execution context, captures everything the cell emits, and enforces a hard
// execution deadline. The host receives a single normalized event stream.
//
// # Basic Usage
//
//	eng := engine.New(engine.WithDeadline(5 * time.Second))
//
//	for ev := range eng.Invoke(ctx, `console.log(1 + 1)`) {
//	    switch ev.Kind {
//	    case engine.EventOutput:
//	        fmt.Println(ev.Data) // "2"
//	    case engine.EventFailure:
//	        fmt.Println("failed:", ev.Message)
//	    }
//	}
//
// Each invocation gets its own context; nothing survives a run. Diagnostics
// never block execution: syntactically valid code runs even when the
// compiler complains.
//
// See the [codecell/engine], [codecell/compiler] and [codecell/sandbox]
// packages for detailed API documentation.
package codecell
