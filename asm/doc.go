// Package asm assembles a line-oriented text form into compiled routines.
//
// Each line holds at most one statement. Comments start with ';'.
//
//	.name    first_exit
//	.args    n
//	.locals  i
//	        SETUP_LOOP @after
//	        LOAD_GLOBAL range
//	        LOAD_FAST n
//	        CALL_FUNCTION 1
//	        GET_ITER
//	top:    FOR_ITER @done
//	        STORE_FAST i
//	        goto .end
//	        JUMP_ABSOLUTE @top
//	done:   POP_BLOCK
//	after:  label .end
//	        LOAD_FAST i
//	        RETURN_VALUE
//
// Directives set routine metadata: .name, .args, .locals and .dialect.
// Anchors ("name:") mark offsets and are referenced as "@name" by jump
// instructions. Operands are integers, floats, quoted strings, None, True,
// False, bare identifiers (resolved against the name or local tables
// depending on the opcode) and comparison symbols for COMPARE_OP.
//
// The pseudo statements "label .N", "goto .N", "goto.param .N" and
// "goto.params .N" expand to the marker idioms the patcher recognizes.
// Operand widths are chosen by iterating layout to a fixed point, so jumps
// that need EXTENDED_ARG prefixes are encoded correctly.
package asm
