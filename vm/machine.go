package vm

import (
	"context"
	stderrors "errors"

	"github.com/wippyai/bytegoto/code"
	"github.com/wippyai/bytegoto/errors"
)

// Machine executes routines against a global namespace.
type Machine struct {
	Globals map[string]any

	// MaxSteps bounds the number of executed instructions per Run.
	// Zero means unbounded.
	MaxSteps int
}

// New returns a machine over globals. Names missing from globals fall
// back to Builtins.
func New(globals map[string]any) *Machine {
	if globals == nil {
		globals = make(map[string]any)
	}
	return &Machine{Globals: globals}
}

// Run executes r with args bound to its first ArgCount locals.
func (m *Machine) Run(ctx context.Context, r *code.Routine, args ...any) (any, error) {
	if len(args) != r.ArgCount {
		return nil, NewException(TypeError, "%s() takes %d arguments but %d were given", r.Name, r.ArgCount, len(args))
	}
	f := &frame{
		m:      m,
		r:      r,
		d:      r.Dialect,
		locals: make([]any, len(r.VarNames)),
		bound:  make([]bool, len(r.VarNames)),
	}
	for i, a := range args {
		f.locals[i] = a
		f.bound[i] = true
	}
	return f.run(ctx)
}

// corrupt converts a panic caused by malformed bytecode, such as a
// stack underflow or a table operand out of range, into a fault.
func (f *frame) corrupt(result *any, err *error) {
	if p := recover(); p != nil {
		*result = nil
		*err = errors.New(errors.PhaseRuntime, errors.KindInvalidData).
			Path(f.r.Name).
			Offset(f.pc).
			Detail("malformed routine: %v", p).
			Build()
	}
}

type blockType uint8

const (
	blockLoop blockType = iota
	blockTry
	blockHandler
)

type block struct {
	exc     *Exception
	handler int
	level   int
	typ     blockType
}

type frame struct {
	m      *Machine
	r      *code.Routine
	stack  []any
	blocks []block
	locals []any
	bound  []bool
	d      code.Dialect
	pc     int
}

func (f *frame) push(v ...any) {
	f.stack = append(f.stack, v...)
}

func (f *frame) pop() any {
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v
}

func (f *frame) top() any {
	return f.stack[len(f.stack)-1]
}

func (f *frame) unwind(level int) {
	if len(f.stack) > level {
		clear(f.stack[level:])
		f.stack = f.stack[:level]
	}
}

func (f *frame) popBlock() (block, bool) {
	if len(f.blocks) == 0 {
		return block{}, false
	}
	b := f.blocks[len(f.blocks)-1]
	f.blocks = f.blocks[:len(f.blocks)-1]
	return b, true
}

func (f *frame) fault(ins code.Instruction, format string, args ...any) error {
	return errors.New(errors.PhaseRuntime, errors.KindInvalidData).
		Path(f.r.Name).
		Offset(ins.Offset).
		Op(ins.Op.String()).
		Detail(format, args...).
		Build()
}

func (f *frame) run(ctx context.Context) (result any, err error) {
	defer f.corrupt(&result, &err)
	steps := 0
	for {
		if f.pc >= len(f.r.Code) {
			return nil, errors.New(errors.PhaseRuntime, errors.KindInvalidData).
				Path(f.r.Name).
				Offset(f.pc).
				Detail("execution ran past the end of the routine").
				Build()
		}
		if f.m.MaxSteps > 0 {
			if steps++; steps > f.m.MaxSteps {
				return nil, errors.New(errors.PhaseRuntime, errors.KindOverflow).
					Path(f.r.Name).
					Offset(f.pc).
					Detail("step limit %d exceeded", f.m.MaxSteps).
					Build()
			}
		}

		ins, next, err := code.Decode(f.d, f.r.Code, f.pc)
		if err != nil {
			return nil, err
		}
		f.pc = next

		result, done, err := f.step(ctx, ins)
		if err != nil {
			exc, ok := f.exception(ins, err)
			if !ok {
				return nil, err
			}
			if !f.raise(exc) {
				return nil, exc
			}
			continue
		}
		if done {
			return result, nil
		}
		if f.pc <= ins.Offset {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	}
}

// exception converts err into a catchable exception. Machine faults and
// context cancellation are not catchable.
func (f *frame) exception(ins code.Instruction, err error) (*Exception, bool) {
	var exc *Exception
	if stderrors.As(err, &exc) {
		if exc.Traceback == nil {
			exc.Traceback = &Traceback{Routine: f.r.Name, Offset: ins.Offset}
		}
		return exc, true
	}
	var fault *errors.Error
	if stderrors.As(err, &fault) || stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return nil, false
	}
	return &Exception{
		Class:     RuntimeError,
		Args:      []any{err.Error()},
		Cause:     err,
		Traceback: &Traceback{Routine: f.r.Name, Offset: ins.Offset},
	}, true
}

// raise unwinds to the nearest TRY block. It reports false when no
// handler exists.
func (f *frame) raise(exc *Exception) bool {
	for {
		b, ok := f.popBlock()
		if !ok {
			return false
		}
		f.unwind(b.level)
		if b.typ != blockTry {
			continue
		}
		f.blocks = append(f.blocks, block{typ: blockHandler, handler: -1, level: len(f.stack), exc: exc})
		f.push(exc.Traceback, exc, exc.Class)
		f.pc = b.handler
		return true
	}
}

func (f *frame) jump(ins code.Instruction) {
	t, _ := code.Target(f.d, ins)
	f.pc = t
}

func (f *frame) name(ins code.Instruction) string {
	return f.r.NameAt(ins.Arg)
}

func (f *frame) lookup(name string) (any, error) {
	if v, ok := f.m.Globals[name]; ok {
		return v, nil
	}
	if v, ok := Builtins[name]; ok {
		return v, nil
	}
	return nil, NewException(NameError, "name '%s' is not defined", name)
}

func (f *frame) step(ctx context.Context, ins code.Instruction) (any, bool, error) {
	switch ins.Op {
	case code.OpNop:

	case code.OpPopTop:
		f.pop()

	case code.OpRotTwo:
		n := len(f.stack)
		f.stack[n-1], f.stack[n-2] = f.stack[n-2], f.stack[n-1]

	case code.OpDupTop:
		f.push(f.top())

	case code.OpBinaryAdd, code.OpBinarySubtract, code.OpBinaryMultiply, code.OpBinaryTrueDivide:
		b := f.pop()
		a := f.pop()
		v, err := binary(ins.Op, a, b)
		if err != nil {
			return nil, false, err
		}
		f.push(v)

	case code.OpBinarySubscr:
		idx := f.pop()
		seq := f.pop()
		v, err := subscript(seq, idx)
		if err != nil {
			return nil, false, err
		}
		f.push(v)

	case code.OpGetIter:
		it, err := Iter(f.pop())
		if err != nil {
			return nil, false, err
		}
		f.push(it)

	case code.OpGetAIter:
		it, err := AIter(ctx, f.pop())
		if err != nil {
			return nil, false, err
		}
		f.push(it)

	case code.OpForIter:
		var (
			v    any
			more bool
		)
		switch it := f.top().(type) {
		case Iterator:
			v, more = it.Next()
		case AsyncIterator:
			var err error
			if v, more, err = it.ANext(ctx); err != nil {
				return nil, false, err
			}
		default:
			return nil, false, f.fault(ins, "FOR_ITER on non-iterator %s", TypeName(f.top()))
		}
		if more {
			f.push(v)
		} else {
			f.pop()
			f.jump(ins)
		}

	case code.OpJumpForward, code.OpJumpAbsolute:
		f.jump(ins)

	case code.OpPopJumpIfFalse:
		if !Truth(f.pop()) {
			f.jump(ins)
		}

	case code.OpPopJumpIfTrue:
		if Truth(f.pop()) {
			f.jump(ins)
		}

	case code.OpReturnValue:
		return f.pop(), true, nil

	case code.OpLoadConst:
		f.push(f.r.Consts[ins.Arg])

	case code.OpLoadName, code.OpLoadGlobal:
		v, err := f.lookup(f.name(ins))
		if err != nil {
			return nil, false, err
		}
		f.push(v)

	case code.OpStoreName, code.OpStoreGlobal:
		f.m.Globals[f.name(ins)] = f.pop()

	case code.OpLoadFast:
		if !f.bound[ins.Arg] {
			return nil, false, NewException(UnboundLocalError,
				"local variable '%s' referenced before assignment", f.r.VarNames[ins.Arg])
		}
		f.push(f.locals[ins.Arg])

	case code.OpStoreFast:
		f.locals[ins.Arg] = f.pop()
		f.bound[ins.Arg] = true

	case code.OpLoadAttr:
		v, err := getAttr(f.pop(), f.name(ins))
		if err != nil {
			return nil, false, err
		}
		f.push(v)

	case code.OpStoreAttr:
		obj := f.pop()
		v := f.pop()
		if err := setAttr(obj, f.name(ins), v); err != nil {
			return nil, false, err
		}

	case code.OpBuildTuple, code.OpBuildList:
		n := int(ins.Arg)
		items := make([]any, n)
		copy(items, f.stack[len(f.stack)-n:])
		f.unwind(len(f.stack) - n)
		if ins.Op == code.OpBuildTuple {
			f.push(Tuple(items))
		} else {
			f.push(NewList(items...))
		}

	case code.OpCompareOp:
		b := f.pop()
		a := f.pop()
		v, err := compare(ins.Arg, a, b)
		if err != nil {
			return nil, false, err
		}
		f.push(v)

	case code.OpCallFunction:
		n := int(ins.Arg)
		args := make([]any, n)
		copy(args, f.stack[len(f.stack)-n:])
		f.unwind(len(f.stack) - n)
		fn := f.pop()
		c, ok := fn.(Callable)
		if !ok {
			return nil, false, NewException(TypeError, "'%s' object is not callable", TypeName(fn))
		}
		v, err := c.Call(ctx, args)
		if err != nil {
			return nil, false, err
		}
		f.push(v)

	case code.OpRaiseVarargs:
		return nil, false, f.raiseVarargs(ins)

	case code.OpSetupLoop:
		t, _ := code.Target(f.d, ins)
		f.blocks = append(f.blocks, block{typ: blockLoop, handler: t, level: len(f.stack)})

	case code.OpSetupExcept, code.OpSetupFinally:
		t, _ := code.Target(f.d, ins)
		f.blocks = append(f.blocks, block{typ: blockTry, handler: t, level: len(f.stack)})

	case code.OpSetupWith, code.OpSetupAsyncWith, code.OpBeforeWith, code.OpBeforeAsyncWith:
		mgr := f.pop()
		res, err := f.enter(ctx, ins.Op, mgr)
		if err != nil {
			return nil, false, err
		}
		f.push(mgr)
		if ins.Op == code.OpSetupWith || ins.Op == code.OpSetupAsyncWith {
			t, _ := code.Target(f.d, ins)
			f.blocks = append(f.blocks, block{typ: blockTry, handler: t, level: len(f.stack)})
		}
		f.push(res)

	case code.OpWithCleanup, code.OpAsyncWithCleanup:
		return nil, false, f.cleanup(ctx, ins)

	case code.OpPopBlock:
		b, ok := f.popBlock()
		if !ok {
			return nil, false, f.fault(ins, "POP_BLOCK with empty block stack")
		}
		f.unwind(b.level)

	case code.OpPopExcept:
		b, ok := f.popBlock()
		if !ok || b.typ != blockHandler {
			return nil, false, f.fault(ins, "popped block is not an except handler")
		}
		f.unwind(b.level)

	case code.OpPopFinally:
		if len(f.stack) == 0 {
			return nil, false, f.fault(ins, "POP_FINALLY on empty stack")
		}
		if f.top() == nil {
			f.pop()
			break
		}
		b, ok := f.popBlock()
		if !ok || b.typ != blockHandler {
			return nil, false, f.fault(ins, "POP_FINALLY outside a finally clause")
		}
		f.unwind(b.level)

	case code.OpEndFinally:
		if len(f.stack) == 0 {
			return nil, false, f.fault(ins, "END_FINALLY on empty stack")
		}
		switch v := f.top().(type) {
		case nil:
			f.pop()
		case *Class:
			f.pop()
			exc, _ := f.pop().(*Exception)
			f.pop()
			b, ok := f.popBlock()
			if !ok || b.typ != blockHandler || exc == nil {
				return nil, false, f.fault(ins, "END_FINALLY without an active handler")
			}
			f.unwind(b.level)
			return nil, false, exc
		default:
			return nil, false, f.fault(ins, "END_FINALLY on %s", TypeName(v))
		}

	default:
		return nil, false, errors.UnknownOpcode(errors.PhaseRuntime, ins.Offset, byte(ins.Op))
	}
	return nil, false, nil
}

func (f *frame) raiseVarargs(ins code.Instruction) error {
	switch ins.Arg {
	case 0:
		for i := len(f.blocks) - 1; i >= 0; i-- {
			if f.blocks[i].typ == blockHandler && f.blocks[i].exc != nil {
				return f.blocks[i].exc
			}
		}
		return NewException(RuntimeError, "no active exception to reraise")
	case 1:
		return toException(f.pop())
	case 2:
		cause := f.pop()
		exc := toException(f.pop())
		if c, ok := cause.(error); ok {
			exc.Cause = c
		}
		return exc
	}
	return f.fault(ins, "bad RAISE_VARARGS operand %d", ins.Arg)
}

func toException(v any) *Exception {
	switch x := v.(type) {
	case *Exception:
		return x
	case *Class:
		return &Exception{Class: x}
	}
	return NewException(TypeError, "exceptions must derive from BaseException")
}

func (f *frame) enter(ctx context.Context, op code.Opcode, mgr any) (any, error) {
	if op == code.OpSetupAsyncWith || op == code.OpBeforeAsyncWith {
		s, ok := mgr.(AsyncScope)
		if !ok {
			return nil, NewException(TypeError, "'%s' object does not support the asynchronous context manager protocol", TypeName(mgr))
		}
		return s.AEnter(ctx)
	}
	s, ok := mgr.(Scope)
	if !ok {
		return nil, NewException(TypeError, "'%s' object does not support the context manager protocol", TypeName(mgr))
	}
	return s.Enter()
}

func exitScope(ctx context.Context, op code.Opcode, mgr any, exc *Exception) (bool, error) {
	if op == code.OpAsyncWithCleanup {
		if s, ok := mgr.(AsyncScope); ok {
			return s.AExit(ctx, exc)
		}
	} else if s, ok := mgr.(Scope); ok {
		return s.Exit(exc)
	}
	return false, NewException(TypeError, "'%s' object is not a context manager", TypeName(mgr))
}

// cleanup runs the exit half of a resource scope. TOS is None on normal
// exit or the exception triple above the manager otherwise.
func (f *frame) cleanup(ctx context.Context, ins code.Instruction) error {
	if f.top() == nil {
		f.pop()
		mgr := f.pop()
		if _, err := exitScope(ctx, ins.Op, mgr, nil); err != nil {
			return err
		}
		f.push(nil)
		return nil
	}

	n := len(f.stack)
	if n < 4 {
		return f.fault(ins, "cleanup without a pending exception")
	}
	exc, ok := f.stack[n-2].(*Exception)
	if !ok {
		return f.fault(ins, "cleanup without a pending exception")
	}
	mgr := f.stack[n-4]
	suppress, err := exitScope(ctx, ins.Op, mgr, exc)
	if err != nil {
		return err
	}
	if suppress {
		f.unwind(n - 3)
		b, ok := f.popBlock()
		if !ok || b.typ != blockHandler {
			return f.fault(ins, "cleanup without a handler block")
		}
		f.unwind(b.level)
		f.pop()
		f.push(nil)
		return nil
	}
	copy(f.stack[n-4:], f.stack[n-3:])
	f.stack[n-1] = nil
	f.stack = f.stack[:n-1]
	if len(f.blocks) > 0 && f.blocks[len(f.blocks)-1].typ == blockHandler {
		f.blocks[len(f.blocks)-1].level--
	}
	return nil
}
