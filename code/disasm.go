package code

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Repr formats a constant the way the assembler reads it back.
func Repr(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case string:
		return strconv.Quote(x)
	case float64:
		s := strconv.FormatFloat(x, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEnN") {
			s += ".0"
		}
		return s
	default:
		return fmt.Sprint(x)
	}
}

// Disassemble renders a listing of the routine.
func Disassemble(r *Routine) (string, error) {
	var b strings.Builder
	err := Fprint(&b, r)
	return b.String(), err
}

// Fprint writes a listing of the routine to w. Jump targets are marked
// with ">>" and operands are annotated with the table entry they select.
func Fprint(w io.Writer, r *Routine) error {
	instrs, err := Instructions(r.Dialect, r.Code)
	if err != nil {
		return err
	}

	targets := make(map[int]bool)
	for _, ins := range instrs {
		if t, ok := Target(r.Dialect, ins); ok {
			targets[t] = true
		}
	}

	fmt.Fprintf(w, "routine %s (%s, %d bytes)\n", r.Name, r.Dialect, len(r.Code))
	for _, ins := range instrs {
		mark := "  "
		if targets[ins.Offset] {
			mark = ">>"
		}
		line := fmt.Sprintf("%s %5d  %-20s", mark, ins.Offset, ins.Op)
		if r.Dialect.carriesArg(ins.Op) && ins.Op.HasArg() {
			line += fmt.Sprintf(" %5d", ins.Arg)
			if note := annotate(r, ins); note != "" {
				line += " (" + note + ")"
			}
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(line, " ")); err != nil {
			return err
		}
	}
	return nil
}

func annotate(r *Routine, ins Instruction) string {
	switch ins.Op {
	case OpLoadConst:
		if int(ins.Arg) < len(r.Consts) {
			return Repr(r.Consts[ins.Arg])
		}
	case OpLoadName, OpStoreName, OpLoadGlobal, OpStoreGlobal, OpLoadAttr, OpStoreAttr:
		return r.NameAt(ins.Arg)
	case OpLoadFast, OpStoreFast:
		if int(ins.Arg) < len(r.VarNames) {
			return r.VarNames[ins.Arg]
		}
	case OpCompareOp:
		return CompareSymbols[ins.Arg]
	default:
		if t, ok := Target(r.Dialect, ins); ok {
			return "to " + strconv.Itoa(t)
		}
	}
	return ""
}
