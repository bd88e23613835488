package resolve

import (
	"fmt"

	"github.com/wippyai/bytegoto/code"
	"github.com/wippyai/bytegoto/internal/scan"
)

type synth struct {
	pool  Pool
	ops   []Op
	d     code.Dialect
	tmp   uint32
	next  int
	multi bool
}

func (s *synth) emit(ops ...Op) {
	s.ops = append(s.ops, ops...)
}

// value pushes the jump parameter for the next block that consumes one.
func (s *synth) value() {
	s.emit(op(code.OpLoadFast, s.tmp))
	if s.multi {
		s.emit(op(code.OpLoadConst, s.pool.Const(int64(s.next))), op(code.OpBinarySubscr, 0))
	}
	s.next++
}

// iter pushes the iterator that drives an entered loop.
func (s *synth) iter(b *scan.Block) {
	s.value()
	if b.Async {
		s.emit(op(code.OpGetAIter, 0))
	} else {
		s.emit(op(code.OpGetIter, 0))
	}
}

func (s *synth) setup(o code.Opcode, target int) Op {
	return op(o, code.JumpArg(s.d, target))
}

// exit leaves one block as if control had reached its normal end.
func (s *synth) exit(b *scan.Block) {
	switch b.Kind {
	case scan.KindForIter:
		s.emit(op(code.OpPopTop, 0))
	case scan.KindExcept:
		s.emit(op(code.OpPopExcept, 0))
	case scan.KindFinally:
		s.emit(op(code.OpPopFinally, 0))
	case scan.KindScope, scan.KindAsyncScope:
		s.emit(op(code.OpPopBlock, 0), op(code.OpPopTop, 0))
	default:
		s.emit(op(code.OpPopBlock, 0))
	}
}

// enter rebuilds one block the label sits in.
func (s *synth) enter(b *scan.Block, res *scan.Result) error {
	switch b.Kind {
	case scan.KindLoop:
		if s.d.LoopBlocks {
			s.emit(s.setup(code.OpSetupLoop, b.Target))
		}
		if b.Iterates {
			s.iter(b)
		}

	case scan.KindForIter:
		s.iter(b)

	case scan.KindTryExcept, scan.KindTryFinally:
		s.emit(s.setup(b.Origin, b.Target))

	case scan.KindExcept:
		// Raise and catch a throwaway exception so the runtime pushes a
		// real handler block, then drop the exception triple.
		catch := len(s.ops) + 3
		s.emit(
			Op{Op: b.Origin, Local: catch},
			op(code.OpLoadConst, s.pool.Const(nil)),
			op(code.OpRaiseVarargs, 1),
			op(code.OpPopTop, 0),
			op(code.OpPopTop, 0),
			op(code.OpPopTop, 0),
		)

	case scan.KindFinally:
		if b.Region != scan.NoHandle {
			if k := res.Block(b.Region).Kind; k == scan.KindScope || k == scan.KindAsyncScope {
				return fmt.Errorf("cannot enter the cleanup of a %s block", k)
			}
		}
		s.emit(op(code.OpLoadConst, s.pool.Const(nil)))

	case scan.KindScope:
		s.value()
		if b.Generic() {
			s.emit(op(code.OpBeforeWith, 0), op(code.OpPopTop, 0), s.setup(code.OpSetupFinally, b.Target))
		} else {
			s.emit(s.setup(code.OpSetupWith, b.Target), op(code.OpPopTop, 0))
		}

	case scan.KindAsyncScope:
		s.value()
		if b.Generic() {
			s.emit(op(code.OpBeforeAsyncWith, 0), op(code.OpPopTop, 0), s.setup(code.OpSetupFinally, b.Target))
		} else {
			s.emit(s.setup(code.OpSetupAsyncWith, b.Target), op(code.OpPopTop, 0))
		}

	default:
		return fmt.Errorf("cannot enter a %s block", b.Kind)
	}
	return nil
}
