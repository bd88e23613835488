package vm

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/wippyai/bytegoto/code"
)

// Tuple is an immutable sequence.
type Tuple []any

// List is a mutable sequence.
type List struct {
	Items []any
}

// NewList returns a list holding items.
func NewList(items ...any) *List {
	return &List{Items: items}
}

// Iterator produces values until exhausted.
type Iterator interface {
	Next() (any, bool)
}

// Iterable produces a fresh Iterator.
type Iterable interface {
	Iter() Iterator
}

// AsyncIterator produces values through an awaited call. ANext reports
// false once the iterator is exhausted.
type AsyncIterator interface {
	ANext(ctx context.Context) (any, bool, error)
}

// AsyncIterable produces a fresh AsyncIterator.
type AsyncIterable interface {
	AIter(ctx context.Context) (AsyncIterator, error)
}

// Sized reports a length.
type Sized interface {
	Len() int
}

// Callable is anything CALL_FUNCTION can invoke.
type Callable interface {
	Call(ctx context.Context, args []any) (any, error)
}

// GoFunc adapts a Go function to Callable.
type GoFunc func(ctx context.Context, args []any) (any, error)

// Call invokes f.
func (f GoFunc) Call(ctx context.Context, args []any) (any, error) {
	return f(ctx, args)
}

// Object exposes attributes to LOAD_ATTR.
type Object interface {
	GetAttr(name string) (any, bool)
}

// AttrSetter accepts STORE_ATTR.
type AttrSetter interface {
	SetAttr(name string, v any) error
}

// Scope is a synchronous resource scope.
// Exit receives the pending exception, or nil on normal exit, and
// returns true to suppress it.
type Scope interface {
	Enter() (any, error)
	Exit(exc *Exception) (bool, error)
}

// AsyncScope is an asynchronous resource scope. The machine awaits both
// calls before continuing.
type AsyncScope interface {
	AEnter(ctx context.Context) (any, error)
	AExit(ctx context.Context, exc *Exception) (bool, error)
}

// Traceback records where an exception was raised.
type Traceback struct {
	Routine string
	Offset  int
}

// Len returns the number of items.
func (l *List) Len() int { return len(l.Items) }

// Len returns the number of items.
func (t Tuple) Len() int { return len(t) }

// GetAttr exposes append and pop.
func (l *List) GetAttr(name string) (any, bool) {
	switch name {
	case "append":
		return GoFunc(func(_ context.Context, args []any) (any, error) {
			if len(args) != 1 {
				return nil, NewException(TypeError, "append() takes exactly one argument (%d given)", len(args))
			}
			l.Items = append(l.Items, args[0])
			return nil, nil
		}), true
	case "pop":
		return GoFunc(func(_ context.Context, args []any) (any, error) {
			if len(l.Items) == 0 {
				return nil, NewException(IndexError, "pop from empty list")
			}
			v := l.Items[len(l.Items)-1]
			l.Items = l.Items[:len(l.Items)-1]
			return v, nil
		}), true
	}
	return nil, false
}

type seqIterator struct {
	items []any
	pos   int
}

func (it *seqIterator) Next() (any, bool) {
	if it.pos >= len(it.items) {
		return nil, false
	}
	v := it.items[it.pos]
	it.pos++
	return v, true
}

func (it *seqIterator) Len() int { return len(it.items) - it.pos }

// Truth reports the truthiness of v.
func Truth(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != ""
	case Sized:
		return x.Len() != 0
	}
	return true
}

// Equal reports value equality: numbers compare numerically, sequences
// element-wise, everything else by identity.
func Equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	switch x := a.(type) {
	case Tuple:
		y, ok := b.(Tuple)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case *List:
		y, ok := b.(*List)
		if !ok {
			return false
		}
		if x == y {
			return true
		}
		return Equal(Tuple(x.Items), Tuple(y.Items))
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if !reflect.TypeOf(a).Comparable() || !reflect.TypeOf(b).Comparable() {
		return false
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// TypeName returns the runtime type name of v.
func TypeName(v any) string {
	switch x := v.(type) {
	case nil:
		return "NoneType"
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "str"
	case Tuple:
		return "tuple"
	case *List:
		return "list"
	case *Class:
		return "type"
	case *Exception:
		return x.Class.Name
	case *Function:
		return "function"
	case *Range:
		return "range"
	case Iterator:
		return "iterator"
	case Callable:
		return "builtin_function"
	}
	return fmt.Sprintf("%T", v)
}

// Repr formats v for display.
func Repr(v any) string {
	switch x := v.(type) {
	case float64:
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return strings.ToLower(strconv.FormatFloat(x, 'g', -1, 64))
		}
		return code.Repr(x)
	case nil, bool, string:
		return code.Repr(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case Tuple:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = Repr(e)
		}
		if len(x) == 1 {
			return "(" + parts[0] + ",)"
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case *List:
		parts := make([]string, len(x.Items))
		for i, e := range x.Items {
			parts[i] = Repr(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Class:
		return "<class " + x.Name + ">"
	case *Exception:
		parts := make([]string, len(x.Args))
		for i, e := range x.Args {
			parts[i] = Repr(e)
		}
		return x.Class.Name + "(" + strings.Join(parts, ", ") + ")"
	case *Function:
		return "<function " + x.Name + ">"
	case *Range:
		return fmt.Sprintf("range(%d, %d, %d)", x.Start, x.Stop, x.Step)
	}
	return fmt.Sprintf("<%s>", TypeName(v))
}
