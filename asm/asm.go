package asm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/bytegoto/code"
	"github.com/wippyai/bytegoto/errors"
)

// Assemble compiles source into a routine for dialect d. A .dialect
// directive in the source takes precedence over d.
func Assemble(source string, d code.Dialect) (*code.Routine, error) {
	lines, err := Tokenize(source)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseAssemble, errors.KindInvalidInput, err, "tokenize")
	}
	a := newAssembler(d)
	for _, toks := range lines {
		if err := a.line(toks); err != nil {
			return nil, err
		}
	}
	return a.finish()
}

// MustAssemble is like Assemble but panics on error.
func MustAssemble(source string, d code.Dialect) *code.Routine {
	r, err := Assemble(source, d)
	if err != nil {
		panic(err)
	}
	return r
}

type stmt struct {
	ref  string
	line int
	size int
	arg  uint32
	op   code.Opcode
}

type assembler struct {
	r       *code.Routine
	anchors map[string]int
	consts  map[any]int
	names   map[string]int
	locals  map[string]int
	stmts   []stmt
}

func newAssembler(d code.Dialect) *assembler {
	return &assembler{
		r:       &code.Routine{Name: "main", Dialect: d},
		anchors: make(map[string]int),
		consts:  make(map[any]int),
		names:   make(map[string]int),
		locals:  make(map[string]int),
	}
}

func (a *assembler) line(toks []Token) error {
	ln := toks[0].Line
	if toks[0].Type == Directive {
		return a.directive(toks)
	}
	if toks[0].Type == Anchor {
		name := toks[0].Value
		if _, dup := a.anchors[name]; dup {
			return errors.AssembleFailed(ln, fmt.Sprintf("anchor %q redefined", name))
		}
		a.anchors[name] = len(a.stmts)
		toks = toks[1:]
		if len(toks) == 0 {
			return nil
		}
	}
	if toks[0].Type != Ident {
		return errors.AssembleFailed(ln, fmt.Sprintf("expected instruction, got %s %q", toks[0].Type, toks[0].Value))
	}

	mnemonic := toks[0].Value
	switch mnemonic {
	case "label", "goto", "goto.param", "goto.params":
		return a.marker(mnemonic, toks[1:], ln)
	}

	op, ok := code.Lookup(strings.ToUpper(mnemonic))
	if !ok {
		return errors.AssembleFailed(ln, fmt.Sprintf("unknown instruction %q", mnemonic))
	}
	if op == code.OpExtendedArg {
		return errors.AssembleFailed(ln, "EXTENDED_ARG is inserted automatically")
	}
	s := stmt{op: op, line: ln}
	operands := toks[1:]
	if !op.HasArg() {
		if len(operands) > 0 {
			return errors.AssembleFailed(ln, fmt.Sprintf("%s takes no operand", op))
		}
		a.stmts = append(a.stmts, s)
		return nil
	}
	if len(operands) != 1 {
		return errors.AssembleFailed(ln, fmt.Sprintf("%s takes exactly one operand", op))
	}
	if err := a.operand(&s, operands[0]); err != nil {
		return err
	}
	a.stmts = append(a.stmts, s)
	return nil
}

func (a *assembler) directive(toks []Token) error {
	ln := toks[0].Line
	args := toks[1:]
	switch toks[0].Value {
	case "name":
		if len(args) != 1 || (args[0].Type != Ident && args[0].Type != String) {
			return errors.AssembleFailed(ln, ".name takes one name")
		}
		if args[0].Type == String {
			s, err := strconv.Unquote(args[0].Value)
			if err != nil {
				return errors.AssembleFailed(ln, "bad string literal")
			}
			a.r.Name = s
		} else {
			a.r.Name = args[0].Value
		}
	case "args", "locals":
		if toks[0].Value == "args" && len(a.r.VarNames) > a.r.ArgCount {
			return errors.AssembleFailed(ln, ".args must precede .locals")
		}
		for _, t := range args {
			if t.Type != Ident {
				return errors.AssembleFailed(ln, fmt.Sprintf("expected local name, got %q", t.Value))
			}
			if _, dup := a.locals[t.Value]; dup {
				return errors.AssembleFailed(ln, fmt.Sprintf("local %q redeclared", t.Value))
			}
			a.local(t.Value)
			if toks[0].Value == "args" {
				a.r.ArgCount++
			}
		}
	case "dialect":
		if len(a.stmts) > 0 {
			return errors.AssembleFailed(ln, ".dialect must precede instructions")
		}
		if len(args) != 1 {
			return errors.AssembleFailed(ln, ".dialect takes one name")
		}
		d, err := code.DialectByName(args[0].Value)
		if err != nil {
			return errors.New(errors.PhaseAssemble, errors.KindNotFound).
				Path("line " + strconv.Itoa(ln)).
				Cause(err).
				Detail("unknown dialect").
				Build()
		}
		a.r.Dialect = d
	default:
		return errors.AssembleFailed(ln, fmt.Sprintf("unknown directive .%s", toks[0].Value))
	}
	return nil
}

// marker expands a pseudo statement into its three-instruction idiom.
func (a *assembler) marker(kind string, toks []Token, ln int) error {
	if len(toks) != 1 || toks[0].Type != Marker {
		return errors.AssembleFailed(ln, fmt.Sprintf("%s expects .NAME", kind))
	}
	target := a.name(toks[0].Value)
	switch kind {
	case "label", "goto":
		a.emit(code.OpLoadGlobal, a.name(kind), ln)
		a.emit(code.OpLoadAttr, target, ln)
		a.emit(code.OpPopTop, 0, ln)
	case "goto.param", "goto.params":
		a.emit(code.OpLoadGlobal, a.name("goto"), ln)
		a.emit(code.OpLoadAttr, a.name(strings.TrimPrefix(kind, "goto.")), ln)
		a.emit(code.OpStoreAttr, target, ln)
	}
	return nil
}

func (a *assembler) emit(op code.Opcode, arg uint32, ln int) {
	a.stmts = append(a.stmts, stmt{op: op, arg: arg, line: ln})
}

func (a *assembler) operand(s *stmt, t Token) error {
	switch s.op {
	case code.OpLoadConst:
		v, err := constant(t)
		if err != nil {
			return err
		}
		s.arg = a.constant(v)
		return nil
	case code.OpLoadName, code.OpStoreName, code.OpLoadGlobal, code.OpStoreGlobal, code.OpLoadAttr, code.OpStoreAttr:
		switch t.Type {
		case Ident:
			s.arg = a.name(t.Value)
		case String:
			v, err := strconv.Unquote(t.Value)
			if err != nil {
				return errors.AssembleFailed(t.Line, "bad string literal")
			}
			s.arg = a.name(v)
		default:
			return errors.AssembleFailed(t.Line, fmt.Sprintf("%s expects a name", s.op))
		}
		return nil
	case code.OpLoadFast, code.OpStoreFast:
		if t.Type != Ident {
			return errors.AssembleFailed(t.Line, fmt.Sprintf("%s expects a local name", s.op))
		}
		s.arg = a.local(t.Value)
		return nil
	case code.OpCompareOp:
		if t.Type == Symbol || t.Type == Ident {
			for arg, sym := range code.CompareSymbols {
				if sym == t.Value {
					s.arg = arg
					return nil
				}
			}
			return errors.AssembleFailed(t.Line, fmt.Sprintf("unknown comparison %q", t.Value))
		}
	}
	if s.op.IsJump() && t.Type == Ref {
		s.ref = t.Value
		return nil
	}
	if t.Type != Number {
		return errors.AssembleFailed(t.Line, fmt.Sprintf("%s expects an integer operand, got %s", s.op, t.Type))
	}
	n, err := strconv.ParseUint(strings.ReplaceAll(t.Value, "_", ""), 0, 32)
	if err != nil {
		return errors.AssembleFailed(t.Line, fmt.Sprintf("bad operand %q", t.Value))
	}
	s.arg = uint32(n)
	return nil
}

func constant(t Token) (any, error) {
	switch t.Type {
	case String:
		s, err := strconv.Unquote(t.Value)
		if err != nil {
			return nil, errors.AssembleFailed(t.Line, "bad string literal")
		}
		return s, nil
	case Ident:
		switch t.Value {
		case "None":
			return nil, nil
		case "True":
			return true, nil
		case "False":
			return false, nil
		}
	case Number:
		lit := strings.ReplaceAll(t.Value, "_", "")
		if n, err := strconv.ParseInt(lit, 0, 64); err == nil {
			return n, nil
		}
		if f, err := strconv.ParseFloat(lit, 64); err == nil {
			return f, nil
		}
	}
	return nil, errors.AssembleFailed(t.Line, fmt.Sprintf("bad constant %q", t.Value))
}

func (a *assembler) constant(v any) uint32 {
	if i, ok := a.consts[v]; ok {
		return uint32(i)
	}
	i := len(a.r.Consts)
	a.r.Consts = append(a.r.Consts, v)
	a.consts[v] = i
	return uint32(i)
}

func (a *assembler) name(n string) uint32 {
	if i, ok := a.names[n]; ok {
		return uint32(i)
	}
	i := len(a.r.Names)
	a.r.Names = append(a.r.Names, n)
	a.names[n] = i
	return uint32(i)
}

func (a *assembler) local(n string) uint32 {
	if i, ok := a.locals[n]; ok {
		return uint32(i)
	}
	i := len(a.r.VarNames)
	a.r.VarNames = append(a.r.VarNames, n)
	a.locals[n] = i
	return uint32(i)
}

func (a *assembler) finish() (*code.Routine, error) {
	if err := a.r.Dialect.Validate(); err != nil {
		return nil, err
	}
	for _, s := range a.stmts {
		if s.ref == "" {
			continue
		}
		if _, ok := a.anchors[s.ref]; !ok {
			return nil, errors.AssembleFailed(s.line, fmt.Sprintf("undefined anchor %q", s.ref))
		}
	}
	offsets, err := a.layout()
	if err != nil {
		return nil, err
	}

	d := a.r.Dialect
	buf := make([]byte, 0, offsets[len(a.stmts)])
	for _, s := range a.stmts {
		enc := code.Encode(d, s.op, s.arg)
		for pad := s.size - len(enc); pad > 0; pad -= code.Size(d, code.OpExtendedArg, 0) {
			buf = code.AppendInstruction(d, buf, code.OpExtendedArg, 0)
		}
		buf = append(buf, enc...)
	}
	a.r.Code = buf
	if err := a.r.Validate(); err != nil {
		return nil, err
	}
	return a.r, nil
}

// layout assigns sizes and jump operands. Sizes only grow between rounds,
// so the iteration reaches a fixed point.
func (a *assembler) layout() ([]int, error) {
	d := a.r.Dialect
	for i := range a.stmts {
		a.stmts[i].size = code.Size(d, a.stmts[i].op, a.stmts[i].arg)
	}
	offsets := make([]int, len(a.stmts)+1)
	for {
		for i, s := range a.stmts {
			offsets[i+1] = offsets[i] + s.size
		}
		changed := false
		for i := range a.stmts {
			s := &a.stmts[i]
			if s.ref == "" {
				continue
			}
			target := offsets[a.anchors[s.ref]]
			if target%d.JumpUnit != 0 {
				return nil, errors.AssembleFailed(s.line, fmt.Sprintf("anchor %q is not aligned to the jump unit", s.ref))
			}
			if s.op.IsRelJump() {
				delta := target - offsets[i] - s.size
				if delta < 0 {
					return nil, errors.AssembleFailed(s.line, fmt.Sprintf("%s cannot jump backwards to %q", s.op, s.ref))
				}
				s.arg = uint32(delta / d.JumpUnit)
			} else {
				s.arg = code.JumpArg(d, target)
			}
			if need := code.Size(d, s.op, s.arg); need > s.size {
				s.size = need
				changed = true
			}
		}
		if !changed {
			return offsets, nil
		}
	}
}
