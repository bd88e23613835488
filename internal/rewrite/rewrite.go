// Package rewrite writes resolved patches into a routine's code buffer.
package rewrite

import (
	"slices"

	"github.com/wippyai/bytegoto/code"
	"github.com/wippyai/bytegoto/errors"
	"github.com/wippyai/bytegoto/internal/resolve"
	"github.com/wippyai/bytegoto/internal/scan"
)

// Stats summarizes one rewrite.
type Stats struct {
	Labels      int
	Inline      int
	Trampolines int

	// Grown is the number of bytes appended to the buffer.
	Grown int
}

// Rewrite returns a copy of r's code with every label span turned into
// NOPs and every goto span replaced by its patch. Patches that do not fit
// their span are moved to trampolines appended at the end of the buffer.
// No offset inside the original buffer moves.
func Rewrite(r *code.Routine, labels map[string]*scan.Label, patches []resolve.Patch) ([]byte, Stats, error) {
	d := r.Dialect
	buf := slices.Clone(r.Code)
	var st Stats

	for _, l := range labels {
		code.PutNops(d, buf, l.Start, l.End)
		st.Labels++
	}

	size := len(buf)
	for _, p := range patches {
		start, end := p.Goto.Start, p.Goto.End
		enc := Encode(d, p.Ops, start)
		if start+len(enc) <= end {
			copy(buf[start:], enc)
			code.PutNops(d, buf, start+len(enc), end)
			st.Inline++
			continue
		}

		tramp := len(buf)
		jump := code.Encode(d, code.OpJumpAbsolute, code.JumpArg(d, tramp))
		if start+len(jump) > end {
			return nil, st, errors.NoSpace(r.Name, start, len(jump), end-start)
		}
		copy(buf[start:], jump)
		code.PutNops(d, buf, start+len(jump), end)

		ops := append(slices.Clip(p.Ops), resolve.Op{Op: code.OpJumpAbsolute, Arg: code.JumpArg(d, end), Local: resolve.NoLocal})
		buf = append(buf, Encode(d, ops, tramp)...)
		st.Trampolines++
	}
	st.Grown = len(buf) - size
	return buf, st, nil
}

// Encode lays ops out starting at byte offset base. Operands that refer
// to other ops are resolved by iterating until every instruction width
// is stable; widths only grow, so the loop terminates.
func Encode(d code.Dialect, ops []resolve.Op, base int) []byte {
	args := make([]uint32, len(ops))
	for i, o := range ops {
		if o.Local == resolve.NoLocal {
			args[i] = o.Arg
		}
	}
	offsets := make([]int, len(ops))
	for {
		pos := base
		for i, o := range ops {
			offsets[i] = pos
			pos += code.Size(d, o.Op, args[i])
		}
		changed := false
		for i, o := range ops {
			if o.Local == resolve.NoLocal {
				continue
			}
			if a := code.JumpArg(d, offsets[o.Local]); a != args[i] {
				args[i] = a
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	var out []byte
	for i, o := range ops {
		out = code.AppendInstruction(d, out, o.Op, args[i])
	}
	return out
}
