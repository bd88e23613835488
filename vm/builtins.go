package vm

import "context"

// Range is the lazy integer sequence returned by range().
type Range struct {
	Start, Stop, Step int64
}

// Len returns the number of values in the range.
func (r *Range) Len() int {
	switch {
	case r.Step > 0 && r.Start < r.Stop:
		return int((r.Stop - r.Start + r.Step - 1) / r.Step)
	case r.Step < 0 && r.Start > r.Stop:
		return int((r.Start - r.Stop - r.Step - 1) / -r.Step)
	}
	return 0
}

// Iter returns a fresh iterator over the range.
func (r *Range) Iter() Iterator {
	return &RangeIterator{next: r.Start, stop: r.Stop, step: r.Step}
}

// RangeIterator walks a Range.
type RangeIterator struct {
	next, stop, step int64
}

// Next returns the next value.
func (it *RangeIterator) Next() (any, bool) {
	if it.Len() == 0 {
		return nil, false
	}
	v := it.next
	it.next += it.step
	return v, true
}

// Len returns the number of values left.
func (it *RangeIterator) Len() int {
	return (&Range{Start: it.next, Stop: it.stop, Step: it.step}).Len()
}

// Iter converts v to an iterator. Iterators are returned unchanged.
func Iter(v any) (Iterator, error) {
	switch x := v.(type) {
	case Iterator:
		return x, nil
	case Iterable:
		return x.Iter(), nil
	case Tuple:
		return &seqIterator{items: x}, nil
	case *List:
		return &seqIterator{items: x.Items}, nil
	case string:
		items := make([]any, 0, len(x))
		for _, r := range x {
			items = append(items, string(r))
		}
		return &seqIterator{items: items}, nil
	}
	return nil, NewException(TypeError, "'%s' object is not iterable", TypeName(v))
}

// AIter converts v to an asynchronous iterator.
func AIter(ctx context.Context, v any) (AsyncIterator, error) {
	switch x := v.(type) {
	case AsyncIterator:
		return x, nil
	case AsyncIterable:
		return x.AIter(ctx)
	}
	return nil, NewException(TypeError, "'async for' requires an object with __aiter__ method, got %s", TypeName(v))
}

func collect(v any) ([]any, error) {
	it, err := Iter(v)
	if err != nil {
		return nil, err
	}
	var out []any
	for {
		x, ok := it.Next()
		if !ok {
			return out, nil
		}
		out = append(out, x)
	}
}

func intArg(name string, v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	}
	return 0, NewException(TypeError, "%s() expects integer arguments, got '%s'", name, TypeName(v))
}

func builtinRange(_ context.Context, args []any) (any, error) {
	r := &Range{Step: 1}
	var err error
	switch len(args) {
	case 1:
		r.Stop, err = intArg("range", args[0])
	case 2, 3:
		if r.Start, err = intArg("range", args[0]); err != nil {
			return nil, err
		}
		if r.Stop, err = intArg("range", args[1]); err != nil {
			return nil, err
		}
		if len(args) == 3 {
			r.Step, err = intArg("range", args[2])
			if err == nil && r.Step == 0 {
				err = NewException(ValueError, "range() arg 3 must not be zero")
			}
		}
	default:
		err = NewException(TypeError, "range expected 1 to 3 arguments, got %d", len(args))
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func builtinIter(_ context.Context, args []any) (any, error) {
	if len(args) != 1 {
		return nil, NewException(TypeError, "iter expected 1 argument, got %d", len(args))
	}
	return Iter(args[0])
}

func builtinNext(_ context.Context, args []any) (any, error) {
	if len(args) != 1 && len(args) != 2 {
		return nil, NewException(TypeError, "next expected 1 or 2 arguments, got %d", len(args))
	}
	it, ok := args[0].(Iterator)
	if !ok {
		return nil, NewException(TypeError, "'%s' object is not an iterator", TypeName(args[0]))
	}
	if v, ok := it.Next(); ok {
		return v, nil
	}
	if len(args) == 2 {
		return args[1], nil
	}
	return nil, &Exception{Class: StopIteration}
}

func builtinLen(_ context.Context, args []any) (any, error) {
	if len(args) != 1 {
		return nil, NewException(TypeError, "len expected 1 argument, got %d", len(args))
	}
	switch x := args[0].(type) {
	case string:
		return int64(len([]rune(x))), nil
	case Sized:
		return int64(x.Len()), nil
	}
	return nil, NewException(TypeError, "object of type '%s' has no len()", TypeName(args[0]))
}

func builtinList(_ context.Context, args []any) (any, error) {
	if len(args) == 0 {
		return NewList(), nil
	}
	items, err := collect(args[0])
	if err != nil {
		return nil, err
	}
	return NewList(items...), nil
}

func builtinTuple(_ context.Context, args []any) (any, error) {
	if len(args) == 0 {
		return Tuple{}, nil
	}
	items, err := collect(args[0])
	if err != nil {
		return nil, err
	}
	return Tuple(items), nil
}

func builtinIsInstance(_ context.Context, args []any) (any, error) {
	if len(args) != 2 {
		return nil, NewException(TypeError, "isinstance expected 2 arguments, got %d", len(args))
	}
	ok, err := exceptionMatch(args[0], args[1])
	if err != nil {
		return nil, err
	}
	return ok, nil
}

// Builtins is the fallback namespace for LOAD_NAME and LOAD_GLOBAL.
var Builtins = map[string]any{
	"range":      GoFunc(builtinRange),
	"iter":       GoFunc(builtinIter),
	"next":       GoFunc(builtinNext),
	"len":        GoFunc(builtinLen),
	"list":       GoFunc(builtinList),
	"tuple":      GoFunc(builtinTuple),
	"isinstance": GoFunc(builtinIsInstance),
}

func init() {
	for _, c := range []*Class{
		BaseException, ExceptionClass, TypeError, ValueError, IndexError, NameError,
		UnboundLocalError, AttributeError, ZeroDivisionError, RuntimeError, StopIteration,
	} {
		Builtins[c.Name] = c
	}
}
