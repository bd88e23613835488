// Package patch retrofits goto and label markers in block-stack routines.
//
// A routine marks jump destinations with the idiom
//
//	LOAD_GLOBAL label
//	LOAD_ATTR   name
//	POP_TOP
//
// and jumps with the same idiom on "goto". A jump that enters blocks the
// destination sits in carries a value, stored with
// "goto.param .name" (one value for every entered block) or
// "goto.params .name" (a sequence indexed per entered block).
//
// Apply rewrites the markers into real control flow:
//
//	r := asm.MustAssemble(src, code.Wordcode)
//	patched, err := patch.Apply(r)
//	if err != nil {
//	    return err
//	}
//	result, err := vm.New(globals).Run(ctx, patched)
//
// Leaving a block pops it the way normal completion would, without
// running finally bodies or scope exits. Entering a loop rebuilds its
// iterator from the supplied value; entering a resource scope calls the
// supplied object's Enter.
//
// Results are cached per routine identity. The cache holds routines
// weakly, so a patched routine is dropped together with its original.
package patch
