// Package scan reconstructs the static block stack of a routine and finds
// its label and goto markers.
package scan

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/wippyai/bytegoto/code"
	"github.com/wippyai/bytegoto/errors"
)

// Marker names recognised in the name table.
const (
	NameLabel  = "label"
	NameGoto   = "goto"
	NameParam  = "param"
	NameParams = "params"
)

// Label is a jump destination.
type Label struct {
	Name  string
	Stack Stack
	Start int
	End   int
}

// Goto is a jump request.
type Goto struct {
	Label string
	Stack Stack
	Start int
	End   int

	// HasParams is set when the jump carries a value for entered blocks.
	HasParams bool

	// Multi is set when the value is a sequence indexed per entered block.
	// Only entered blocks that consume a value are counted: iterating
	// loops and resource scopes. Try regions and handler bodies take no
	// element.
	Multi bool
}

// Warning is a recoverable block accounting inconsistency.
type Warning struct {
	Message string
	Offset  int
}

func (w Warning) String() string {
	return fmt.Sprintf("@%d: %s", w.Offset, w.Message)
}

// Result holds everything one scan learned about a routine.
type Result struct {
	Labels   map[string]*Label
	Targets  *Targets
	Gotos    []Goto
	Warnings []Warning
	arena
}

// Block returns the block behind h. Blocks may be relabelled during the
// scan; the returned pointer always reflects the final kind.
func (r *Result) Block(h Handle) *Block {
	return r.get(h)
}

// Kinds maps a stack snapshot to block kinds.
func (r *Result) Kinds(s Stack) []Kind {
	out := make([]Kind, len(s))
	for i, h := range s {
		out[i] = r.get(h).Kind
	}
	return out
}

// Describe renders a stack snapshot for diagnostics.
func (r *Result) Describe(s Stack) string {
	return r.describe(s)
}

// Len returns the number of blocks allocated during the scan.
func (r *Result) Len() int {
	return len(r.blocks)
}

type scanner struct {
	res      *Result
	routine  *code.Routine
	log      *zap.Logger
	entries  map[int]Stack
	handlers map[int]Stack
	exits    map[int][]Handle
	live     Stack
	window   [4]code.Instruction
	filled   int
	dead     bool

	// prev is the opcode stepped before the current one.
	prev code.Opcode
}

// Scan walks r once from the start and returns its labels, gotos and
// the block stacks around them. A nil logger uses the package logger.
func Scan(r *code.Routine, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = Logger()
	}
	targets, err := collectTargets(r)
	if err != nil {
		return nil, err
	}
	s := &scanner{
		res: &Result{
			Labels:  make(map[string]*Label),
			Targets: targets,
		},
		routine:  r,
		log:      log,
		entries:  make(map[int]Stack),
		handlers: make(map[int]Stack),
		exits:    make(map[int][]Handle),
	}

	it := code.NewIter(r.Dialect, r.Code)
	for it.Next() {
		ins := it.Instruction()
		s.arrive(ins.Offset)
		if s.dead {
			s.filled = 0
			s.prev = 0
			continue
		}
		s.slide(ins)
		if err := s.marker(); err != nil {
			return nil, err
		}
		s.step(ins)
		s.prev = ins.Op
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	if len(s.live) > 0 {
		s.warn(len(r.Code), "block stack not empty at end: "+s.res.describe(s.live))
	}
	return s.res, nil
}

func collectTargets(r *code.Routine) (*Targets, error) {
	targets := NewTargets(len(r.Code) + 1)
	it := code.NewIter(r.Dialect, r.Code)
	for it.Next() {
		if t, ok := code.Target(r.Dialect, it.Instruction()); ok {
			targets.Add(t)
		}
	}
	return targets, it.Err()
}

// arrive adopts recorded stacks at off. Handler entries always win since
// the fallthrough stack never matches what the runtime pushes there.
func (s *scanner) arrive(off int) {
	if st, ok := s.handlers[off]; ok {
		s.live = slices.Clone(st)
		s.dead = false
	} else if s.dead && s.res.Targets.Has(off) {
		if st, ok := s.entries[off]; ok {
			s.live = slices.Clone(st)
		}
		s.dead = false
	}
	if s.dead {
		return
	}
	hs := s.exits[off]
	for i := len(hs) - 1; i >= 0; i-- {
		if s.live.Top() == hs[i] {
			s.pop()
		}
	}
}

func (s *scanner) slide(ins code.Instruction) {
	copy(s.window[:], s.window[1:])
	s.window[len(s.window)-1] = ins
	if s.filled < len(s.window) {
		s.filled++
	}
}

// marker matches the three most recent instructions against the label
// and goto idioms.
func (s *scanner) marker() error {
	if s.filled < 3 {
		return nil
	}
	load, attr, last := s.window[1], s.window[2], s.window[3]
	if load.Op != code.OpLoadGlobal && load.Op != code.OpLoadName {
		return nil
	}
	if attr.Op != code.OpLoadAttr {
		return nil
	}
	r := s.routine
	kind := r.NameAt(load.Arg)
	name := r.NameAt(attr.Arg)
	start, end := load.Offset, last.End()

	switch {
	case kind == NameLabel && last.Op == code.OpPopTop:
		if _, ok := s.res.Labels[name]; ok {
			return errors.DuplicateLabel(r.Name, name, start)
		}
		s.res.Labels[name] = &Label{Name: name, Start: start, End: end, Stack: slices.Clone(s.live)}
		s.filled = 0
	case kind == NameGoto && last.Op == code.OpPopTop:
		s.res.Gotos = append(s.res.Gotos, Goto{Label: name, Start: start, End: end, Stack: slices.Clone(s.live)})
		s.filled = 0
	case kind == NameGoto && last.Op == code.OpStoreAttr && (name == NameParam || name == NameParams):
		s.res.Gotos = append(s.res.Gotos, Goto{
			Label:     r.NameAt(last.Arg),
			Start:     start,
			End:       end,
			Stack:     slices.Clone(s.live),
			HasParams: true,
			Multi:     name == NameParams,
		})
		s.filled = 0
	}
	return nil
}

func (s *scanner) step(ins code.Instruction) {
	d := s.routine.Dialect
	target, isJump := code.Target(d, ins)

	switch ins.Op {
	case code.OpSetupLoop:
		s.record(target)
		s.push(Block{Kind: KindLoop, Origin: ins.Op, Target: target, Offset: ins.Offset, Region: NoHandle})

	case code.OpSetupExcept, code.OpSetupFinally, code.OpSetupWith, code.OpSetupAsyncWith:
		region, handler := setupKinds(ins.Op)
		rh := s.res.add(Block{Kind: region, Origin: ins.Op, Target: target, Offset: ins.Offset, Region: NoHandle})
		hh := s.res.add(Block{Kind: handler, Origin: ins.Op, Target: target, Offset: ins.Offset, Region: rh})
		if _, ok := s.handlers[target]; ok {
			s.warn(ins.Offset, fmt.Sprintf("handler %d shared by several blocks", target))
		}
		s.handlers[target] = append(slices.Clone(s.live), hh)
		s.live = append(s.live, rh)

	case code.OpForIter:
		s.record(target)
		async := s.prev == code.OpGetAIter
		if d.LoopBlocks {
			if top := s.live.Top(); top != NoHandle && s.res.get(top).Kind == KindLoop {
				s.res.get(top).Iterates = true
				s.res.get(top).Async = async
			}
			break
		}
		h := s.push(Block{Kind: KindForIter, Origin: ins.Op, Target: target, Offset: ins.Offset, Region: NoHandle, Async: async})
		s.exits[target] = append(s.exits[target], h)

	case code.OpPopBlock:
		if len(s.live) == 0 {
			s.warn(ins.Offset, "POP_BLOCK on empty block stack")
			break
		}
		s.pop()

	case code.OpPopExcept:
		top := s.live.Top()
		if top == NoHandle {
			s.warn(ins.Offset, "POP_EXCEPT on empty block stack")
			break
		}
		b := s.res.get(top)
		switch b.Kind {
		case KindExcept:
		case KindFinally:
			b.Kind = KindExcept
			if b.Region != NoHandle {
				if region := s.res.get(b.Region); region.Kind == KindTryFinally {
					region.Kind = KindTryExcept
				}
			}
			s.log.Debug("relabelled handler",
				zap.String("routine", s.routine.Name),
				zap.Int("offset", b.Offset),
				zap.Stringer("kind", b.Kind))
		default:
			s.warn(ins.Offset, fmt.Sprintf("POP_EXCEPT with %s block on top", b.Kind))
		}
		s.pop()

	case code.OpPopFinally:
		s.popHandler(ins, KindFinally)

	case code.OpEndFinally:
		s.popHandler(ins, 0)

	case code.OpWithCleanup, code.OpAsyncWithCleanup:
		top := s.live.Top()
		if top == NoHandle || s.res.get(top).Kind != KindFinally || s.res.get(top).Region == NoHandle {
			s.warn(ins.Offset, ins.Op.String()+" outside a cleanup handler")
			break
		}
		region := s.res.get(s.res.get(top).Region)
		if region.Kind == KindTryFinally {
			region.Kind = KindScope
			if ins.Op == code.OpAsyncWithCleanup {
				region.Kind = KindAsyncScope
			}
		}

	default:
		if isJump {
			s.record(target)
		}
	}

	if ins.Op.IsTerminal() {
		s.dead = true
	}
}

func setupKinds(op code.Opcode) (region, handler Kind) {
	switch op {
	case code.OpSetupExcept:
		return KindTryExcept, KindExcept
	case code.OpSetupWith:
		return KindScope, KindFinally
	case code.OpSetupAsyncWith:
		return KindAsyncScope, KindFinally
	default:
		return KindTryFinally, KindFinally
	}
}

// popHandler pops a handler block, warning when the top is not of kind
// want. A zero want accepts either handler kind.
func (s *scanner) popHandler(ins code.Instruction, want Kind) {
	top := s.live.Top()
	if top == NoHandle {
		s.warn(ins.Offset, ins.Op.String()+" on empty block stack")
		return
	}
	k := s.res.get(top).Kind
	if (want == 0 && !k.Handler()) || (want != 0 && k != want) {
		s.warn(ins.Offset, fmt.Sprintf("%s with %s block on top", ins.Op, k))
	}
	s.pop()
}

// record remembers the live stack for a forward jump target. The first
// recording wins.
func (s *scanner) record(target int) {
	if _, ok := s.entries[target]; !ok {
		s.entries[target] = slices.Clone(s.live)
	}
}

func (s *scanner) push(b Block) Handle {
	h := s.res.add(b)
	s.live = append(s.live, h)
	return h
}

func (s *scanner) pop() {
	s.live = s.live[:len(s.live)-1]
}

func (s *scanner) warn(off int, msg string) {
	s.res.Warnings = append(s.res.Warnings, Warning{Offset: off, Message: msg})
	s.log.Warn("block stack inconsistency",
		zap.String("routine", s.routine.Name),
		zap.Int("offset", off),
		zap.String("detail", msg))
}
