// Package bytegoto retrofits goto and label onto compiled block-stack
// routines.
//
// A routine marks jump sites and destinations with sentinel attribute
// loads. The engine finds them, reconstructs the block stack at every
// offset, and rewrites each goto in place into the exact sequence that
// unwinds the blocks it leaves and rebuilds the blocks it enters.
//
// # Architecture Overview
//
// The module is organized into several packages with distinct responsibilities:
//
//	bytegoto/            Package documentation
//	├── code/            Opcodes, dialects, instruction codec, routines, CBOR wire form
//	├── asm/             Text assembler producing routines and marker idioms
//	├── vm/              Reference interpreter with block stack and exceptions
//	├── patch/           Public API: Apply, Patcher with identity cache, Function
//	├── internal/scan    Block-stack scanner
//	├── internal/resolve Exit and entry sequence synthesis
//	├── internal/rewrite NOP sleds, inline patches and trampolines
//	├── internal/engine  Pipeline driver, constant and slot pool
//	├── errors/          Structured error types
//	└── cmd/bytegoto     CLI and interactive viewer
//
// # Quick Start
//
//	r, err := asm.Assemble(`
//	    SETUP_LOOP @after
//	    LOAD_GLOBAL range
//	    LOAD_CONST 10
//	    CALL_FUNCTION 1
//	    GET_ITER
//	top:
//	    FOR_ITER @done
//	    STORE_FAST i
//	    goto .end
//	    JUMP_ABSOLUTE @top
//	done:
//	    POP_BLOCK
//	after:
//	    label .end
//	    LOAD_FAST i
//	    RETURN_VALUE
//	`, code.Wordcode)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	out, err := patch.Apply(r)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	v, err := vm.New(nil).Run(ctx, out)
//	fmt.Println(v) // 0
//
// # Dialects
//
// Three encodings are supported: Wordcode (two-byte instructions), Legacy
// (one-byte opcodes with two-byte operands where present) and Compact
// (wordcode with jump operands counted in instructions and no loop
// blocks). Operands wider than a slot are carried by EXTENDED_ARG
// prefixes; the rewriter sizes them to a fixed point.
//
// # Thread Safety
//
// Patchers are safe for concurrent use. Patching the same routine from
// several goroutines runs the pipeline once and returns the same result
// to every caller. Routines handed out by a Patcher must not be mutated.
package bytegoto
