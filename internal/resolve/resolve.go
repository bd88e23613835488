// Package resolve turns each goto into the instruction sequence that
// leaves the blocks it must exit and rebuilds the blocks it must enter.
package resolve

import (
	"github.com/wippyai/bytegoto/code"
	"github.com/wippyai/bytegoto/errors"
	"github.com/wippyai/bytegoto/internal/scan"
)

// NoLocal marks an Op whose operand is final.
const NoLocal = -1

// Op is one synthesized instruction. When Local is not NoLocal the
// operand is the jump operand of the patch-relative instruction at that
// index, known only once the patch is placed.
type Op struct {
	Arg   uint32
	Local int
	Op    code.Opcode
}

func op(o code.Opcode, arg uint32) Op {
	return Op{Op: o, Arg: arg, Local: NoLocal}
}

// Patch replaces one goto span.
type Patch struct {
	Goto  scan.Goto
	Label *scan.Label
	Ops   []Op

	// Exits and Entries count the blocks left and rebuilt.
	Exits   int
	Entries int
}

// Pool supplies table slots the synthesized code refers to. Slots are
// appended on first use so existing operands stay valid.
type Pool interface {
	Const(v any) uint32
	Temp() uint32
}

// Resolve synthesizes one patch per goto in scan order.
func Resolve(r *code.Routine, res *scan.Result, pool Pool) ([]Patch, error) {
	patches := make([]Patch, 0, len(res.Gotos))
	for _, g := range res.Gotos {
		p, err := resolveOne(r, res, pool, g)
		if err != nil {
			return nil, err
		}
		patches = append(patches, p)
	}
	return patches, nil
}

func resolveOne(r *code.Routine, res *scan.Result, pool Pool, g scan.Goto) (Patch, error) {
	label, ok := res.Labels[g.Label]
	if !ok {
		return Patch{}, errors.UnknownLabel(r.Name, g.Label, g.Start)
	}
	depth := scan.CommonDepth(g.Stack, label.Stack)
	entered := label.Stack[depth:]

	if !g.HasParams && len(entered) > 0 {
		return Patch{}, errors.MissingParams(r.Name, g.Label, g.Start, res.Block(entered[0]).Kind.String())
	}

	s := synth{d: r.Dialect, pool: pool}
	if g.HasParams {
		s.tmp = pool.Temp()
		s.multi = g.Multi
		s.emit(op(code.OpStoreFast, s.tmp))
	}

	exited := g.Stack[depth:]
	for i := len(exited) - 1; i >= 0; i-- {
		s.exit(res.Block(exited[i]))
	}
	for _, h := range entered {
		b := res.Block(h)
		if err := s.enter(b, res); err != nil {
			return Patch{}, errors.BlockCrossing(r.Name, g.Label, g.Start, err.Error())
		}
	}
	s.emit(op(code.OpJumpAbsolute, code.JumpArg(r.Dialect, label.Start)))

	return Patch{
		Goto:    g,
		Label:   label,
		Ops:     s.ops,
		Exits:   len(exited),
		Entries: len(entered),
	}, nil
}
