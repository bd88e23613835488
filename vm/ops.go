package vm

import (
	"github.com/wippyai/bytegoto/code"
)

func binary(op code.Opcode, a, b any) (any, error) {
	ia, aInt := a.(int64)
	ib, bInt := b.(int64)
	if aInt && bInt {
		switch op {
		case code.OpBinaryAdd:
			return ia + ib, nil
		case code.OpBinarySubtract:
			return ia - ib, nil
		case code.OpBinaryMultiply:
			return ia * ib, nil
		}
	}
	fa, aNum := toFloat(a)
	fb, bNum := toFloat(b)
	if aNum && bNum {
		switch op {
		case code.OpBinaryAdd:
			return fa + fb, nil
		case code.OpBinarySubtract:
			return fa - fb, nil
		case code.OpBinaryMultiply:
			return fa * fb, nil
		case code.OpBinaryTrueDivide:
			if fb == 0 {
				return nil, NewException(ZeroDivisionError, "division by zero")
			}
			return fa / fb, nil
		}
	}
	if op == code.OpBinaryAdd {
		switch x := a.(type) {
		case string:
			if y, ok := b.(string); ok {
				return x + y, nil
			}
		case Tuple:
			if y, ok := b.(Tuple); ok {
				out := make(Tuple, 0, len(x)+len(y))
				return append(append(out, x...), y...), nil
			}
		case *List:
			if y, ok := b.(*List); ok {
				items := make([]any, 0, len(x.Items)+len(y.Items))
				return NewList(append(append(items, x.Items...), y.Items...)...), nil
			}
		}
	}
	return nil, NewException(TypeError, "unsupported operand type(s) for %s: '%s' and '%s'",
		binarySymbol(op), TypeName(a), TypeName(b))
}

func binarySymbol(op code.Opcode) string {
	switch op {
	case code.OpBinaryAdd:
		return "+"
	case code.OpBinarySubtract:
		return "-"
	case code.OpBinaryMultiply:
		return "*"
	case code.OpBinaryTrueDivide:
		return "/"
	}
	return op.String()
}

func compare(cmp uint32, a, b any) (any, error) {
	switch cmp {
	case code.CmpEq:
		return Equal(a, b), nil
	case code.CmpNe:
		return !Equal(a, b), nil
	case code.CmpExcMatch:
		return exceptionMatch(a, b)
	}

	var c int
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return nil, orderError(cmp, a, b)
		}
		switch {
		case fa < fb:
			c = -1
		case fa > fb:
			c = 1
		}
	} else if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		if !ok {
			return nil, orderError(cmp, a, b)
		}
		switch {
		case sa < sb:
			c = -1
		case sa > sb:
			c = 1
		}
	} else {
		return nil, orderError(cmp, a, b)
	}

	switch cmp {
	case code.CmpLt:
		return c < 0, nil
	case code.CmpLe:
		return c <= 0, nil
	case code.CmpGt:
		return c > 0, nil
	case code.CmpGe:
		return c >= 0, nil
	}
	return nil, NewException(RuntimeError, "unknown comparison %d", cmp)
}

func orderError(cmp uint32, a, b any) *Exception {
	return NewException(TypeError, "'%s' not supported between instances of '%s' and '%s'",
		code.CompareSymbols[cmp], TypeName(a), TypeName(b))
}

// exceptionMatch implements COMPARE_OP exc: v is an exception or class,
// match is a class or a tuple of classes.
func exceptionMatch(v, match any) (bool, error) {
	var cls *Class
	switch x := v.(type) {
	case *Class:
		cls = x
	case *Exception:
		cls = x.Class
	}
	switch s := match.(type) {
	case *Class:
		return cls != nil && cls.IsSubclass(s), nil
	case Tuple:
		for _, e := range s {
			ok, err := exceptionMatch(v, e)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	}
	return false, NewException(TypeError, "catching classes that do not inherit from BaseException is not allowed")
}

func subscript(seq, idx any) (any, error) {
	var items []any
	switch x := seq.(type) {
	case Tuple:
		items = x
	case *List:
		items = x.Items
	case string:
		items = make([]any, 0, len(x))
		for _, r := range x {
			items = append(items, string(r))
		}
	default:
		return nil, NewException(TypeError, "'%s' object is not subscriptable", TypeName(seq))
	}
	i, ok := idx.(int64)
	if !ok {
		return nil, NewException(TypeError, "indices must be integers, not '%s'", TypeName(idx))
	}
	if i < 0 {
		i += int64(len(items))
	}
	if i < 0 || i >= int64(len(items)) {
		return nil, NewException(IndexError, "index out of range")
	}
	return items[i], nil
}

func getAttr(obj any, name string) (any, error) {
	if o, ok := obj.(Object); ok {
		if v, ok := o.GetAttr(name); ok {
			return v, nil
		}
	}
	return nil, NewException(AttributeError, "'%s' object has no attribute '%s'", TypeName(obj), name)
}

func setAttr(obj any, name string, v any) error {
	if o, ok := obj.(AttrSetter); ok {
		return o.SetAttr(name, v)
	}
	return NewException(AttributeError, "'%s' object attribute '%s' is read-only", TypeName(obj), name)
}
