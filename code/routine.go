package code

import (
	"fmt"
	"slices"

	"github.com/wippyai/bytegoto/errors"
)

// Routine is a compiled executable unit: an instruction buffer plus the
// constant pool, name table and local slot table its operands index.
type Routine struct {
	Name     string
	Dialect  Dialect
	Code     []byte
	Consts   []any
	Names    []string
	VarNames []string
	ArgCount int
}

// Clone returns a copy whose slices do not alias r.
func (r *Routine) Clone() *Routine {
	return &Routine{
		Name:     r.Name,
		Dialect:  r.Dialect,
		Code:     slices.Clone(r.Code),
		Consts:   slices.Clone(r.Consts),
		Names:    slices.Clone(r.Names),
		VarNames: slices.Clone(r.VarNames),
		ArgCount: r.ArgCount,
	}
}

// Validate checks that the buffer decodes to whole instructions, that
// table operands are in range and that constants have supported types.
func (r *Routine) Validate() error {
	if err := r.Dialect.Validate(); err != nil {
		return err
	}
	if r.ArgCount < 0 || r.ArgCount > len(r.VarNames) {
		return errors.InvalidData(errors.PhaseLoad, []string{r.Name},
			fmt.Sprintf("argument count %d exceeds %d locals", r.ArgCount, len(r.VarNames)))
	}
	for i, c := range r.Consts {
		if !IsConst(c) {
			return errors.TypeMismatch(errors.PhaseLoad, []string{r.Name, fmt.Sprintf("consts[%d]", i)}, "constant", c)
		}
	}
	it := NewIter(r.Dialect, r.Code)
	for it.Next() {
		ins := it.Instruction()
		if err := r.checkOperand(ins); err != nil {
			return err
		}
	}
	return it.Err()
}

func (r *Routine) checkOperand(ins Instruction) error {
	var limit int
	switch ins.Op {
	case OpLoadConst:
		limit = len(r.Consts)
	case OpLoadName, OpStoreName, OpLoadGlobal, OpStoreGlobal, OpLoadAttr, OpStoreAttr:
		limit = len(r.Names)
	case OpLoadFast, OpStoreFast:
		limit = len(r.VarNames)
	default:
		if t, ok := Target(r.Dialect, ins); ok && t > len(r.Code) {
			return errors.New(errors.PhaseLoad, errors.KindInvalidData).
				Path(r.Name).
				Offset(ins.Offset).
				Op(ins.Op.String()).
				Detail("jump target %d outside buffer of %d bytes", t, len(r.Code)).
				Build()
		}
		return nil
	}
	if int(ins.Arg) >= limit {
		return errors.New(errors.PhaseLoad, errors.KindInvalidData).
			Path(r.Name).
			Offset(ins.Offset).
			Op(ins.Op.String()).
			Detail("operand %d out of range (table size %d)", ins.Arg, limit).
			Build()
	}
	return nil
}

// NameAt returns the name table entry i, or "" when out of range.
func (r *Routine) NameAt(i uint32) string {
	if int(i) < len(r.Names) {
		return r.Names[i]
	}
	return ""
}

// IsConst reports whether v is a supported constant value.
func IsConst(v any) bool {
	switch v.(type) {
	case nil, bool, int64, float64, string:
		return true
	}
	return false
}
