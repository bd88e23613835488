package vm

import (
	"context"
	"testing"
)

func TestRangeLen(t *testing.T) {
	tests := []struct {
		r    Range
		want int
	}{
		{Range{0, 5, 1}, 5},
		{Range{2, 5, 1}, 3},
		{Range{0, 10, 3}, 4},
		{Range{5, 0, -1}, 5},
		{Range{5, 0, -2}, 3},
		{Range{5, 5, 1}, 0},
		{Range{5, 0, 1}, 0},
	}
	for _, tt := range tests {
		if got := tt.r.Len(); got != tt.want {
			t.Errorf("%v: got %d, want %d", Repr(&tt.r), got, tt.want)
		}
	}
}

func TestRangeIterator(t *testing.T) {
	it := (&Range{Start: 0, Stop: 5, Step: 1}).Iter().(*RangeIterator)
	for want := int64(0); want < 4; want++ {
		v, ok := it.Next()
		if !ok || v != want {
			t.Fatalf("got (%v, %t), want %d", v, ok, want)
		}
	}
	if it.Len() != 1 {
		t.Errorf("remaining %d, want 1", it.Len())
	}
	same, err := Iter(it)
	if err != nil || same != Iterator(it) {
		t.Error("iterators must convert to themselves")
	}
}

func TestBuiltins(t *testing.T) {
	ctx := context.Background()
	call := func(name string, args ...any) any {
		t.Helper()
		v, err := Builtins[name].(Callable).Call(ctx, args)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		return v
	}

	r := call("range", int64(1), int64(7), int64(2))
	if got := call("len", r); got != int64(3) {
		t.Errorf("len(range) = %v", got)
	}
	if got := call("tuple", r); !Equal(got, Tuple{int64(1), int64(3), int64(5)}) {
		t.Errorf("tuple(range) = %s", Repr(got))
	}
	it := call("iter", NewList("a", "b"))
	if got := call("next", it); got != "a" {
		t.Errorf("next = %v", got)
	}
	call("next", it)
	if got := call("next", it, "done"); got != "done" {
		t.Errorf("next default = %v", got)
	}
	if _, err := Builtins["next"].(Callable).Call(ctx, []any{it}); err == nil {
		t.Error("expected StopIteration")
	}
	if got := call("isinstance", NewException(ValueError, "x"), ExceptionClass); got != true {
		t.Errorf("isinstance = %v", got)
	}
	if _, err := Builtins["range"].(Callable).Call(ctx, []any{int64(0), int64(1), int64(0)}); err == nil {
		t.Error("expected zero step error")
	}
}

func TestTruthAndEqual(t *testing.T) {
	falsy := []any{nil, false, int64(0), 0.0, "", Tuple{}, NewList()}
	for _, v := range falsy {
		if Truth(v) {
			t.Errorf("%s should be falsy", Repr(v))
		}
	}
	truthy := []any{true, int64(-1), 0.5, "x", Tuple{nil}, &Range{0, 1, 1}, TypeError}
	for _, v := range truthy {
		if !Truth(v) {
			t.Errorf("%s should be truthy", Repr(v))
		}
	}

	if !Equal(int64(2), 2.0) || Equal(int64(2), "2") {
		t.Error("numeric equality")
	}
	if !Equal(Tuple{int64(1), "a"}, Tuple{1.0, "a"}) {
		t.Error("tuple equality")
	}
	if Equal(GoFunc(nil), GoFunc(nil)) {
		t.Error("functions compare by identity only")
	}
	if !Equal(nil, nil) || Equal(nil, false) {
		t.Error("None equality")
	}
}

func TestRepr(t *testing.T) {
	tests := []struct {
		v    any
		want string
	}{
		{Tuple{int64(1)}, "(1,)"},
		{Tuple{int64(1), "a", nil}, `(1, "a", None)`},
		{NewList(true, 1.5), "[True, 1.5]"},
		{NewException(ValueError, "bad"), `ValueError("bad")`},
		{ValueError, "<class ValueError>"},
	}
	for _, tt := range tests {
		if got := Repr(tt.v); got != tt.want {
			t.Errorf("got %s, want %s", got, tt.want)
		}
	}
}

func TestExceptionHierarchy(t *testing.T) {
	if !UnboundLocalError.IsSubclass(NameError) || !UnboundLocalError.IsSubclass(BaseException) {
		t.Error("UnboundLocalError hierarchy")
	}
	if TypeError.IsSubclass(ValueError) {
		t.Error("TypeError is not a ValueError")
	}
	custom := NewClass("Custom", ValueError)
	exc := &Exception{Class: custom}
	ok, err := exceptionMatch(exc, Tuple{TypeError, ValueError})
	if err != nil || !ok {
		t.Error("tuple match")
	}
	if _, err := exceptionMatch(exc, int64(1)); err == nil {
		t.Error("expected TypeError for non-class match")
	}
	if exc.Error() != "Custom" {
		t.Errorf("message %q", exc.Error())
	}
}
