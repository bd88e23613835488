package vm

import (
	"context"
	"fmt"
	"strings"
)

// Class is an exception class.
type Class struct {
	Base *Class
	Name string
}

// Built-in exception hierarchy.
var (
	BaseException     = &Class{Name: "BaseException"}
	ExceptionClass    = &Class{Name: "Exception", Base: BaseException}
	TypeError         = &Class{Name: "TypeError", Base: ExceptionClass}
	ValueError        = &Class{Name: "ValueError", Base: ExceptionClass}
	IndexError        = &Class{Name: "IndexError", Base: ExceptionClass}
	NameError         = &Class{Name: "NameError", Base: ExceptionClass}
	UnboundLocalError = &Class{Name: "UnboundLocalError", Base: NameError}
	AttributeError    = &Class{Name: "AttributeError", Base: ExceptionClass}
	ZeroDivisionError = &Class{Name: "ZeroDivisionError", Base: ExceptionClass}
	RuntimeError      = &Class{Name: "RuntimeError", Base: ExceptionClass}
	StopIteration     = &Class{Name: "StopIteration", Base: ExceptionClass}
)

// NewClass declares a subclass of base.
func NewClass(name string, base *Class) *Class {
	return &Class{Name: name, Base: base}
}

// IsSubclass reports whether c is base or derives from it.
func (c *Class) IsSubclass(base *Class) bool {
	for k := c; k != nil; k = k.Base {
		if k == base {
			return true
		}
	}
	return false
}

// Call instantiates the class.
func (c *Class) Call(_ context.Context, args []any) (any, error) {
	return &Exception{Class: c, Args: args}, nil
}

// Exception is a raised exception instance.
type Exception struct {
	Cause     error
	Class     *Class
	Traceback *Traceback
	Args      []any
}

// NewException builds an exception with a formatted message argument.
func NewException(cls *Class, format string, args ...any) *Exception {
	return &Exception{Class: cls, Args: []any{fmt.Sprintf(format, args...)}}
}

// Error implements error.
func (e *Exception) Error() string {
	var b strings.Builder
	b.WriteString(e.Class.Name)
	if msg := e.Message(); msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}
	return b.String()
}

// Message renders the exception arguments.
func (e *Exception) Message() string {
	switch len(e.Args) {
	case 0:
		return ""
	case 1:
		if s, ok := e.Args[0].(string); ok {
			return s
		}
		return Repr(e.Args[0])
	}
	return Repr(Tuple(e.Args))
}

// Unwrap returns the Go error this exception wraps, if any.
func (e *Exception) Unwrap() error {
	return e.Cause
}

// Is matches exceptions of the same class or a subclass.
func (e *Exception) Is(target error) bool {
	t, ok := target.(*Exception)
	return ok && e.Class.IsSubclass(t.Class)
}

// GetAttr exposes args.
func (e *Exception) GetAttr(name string) (any, bool) {
	if name == "args" {
		return Tuple(e.Args), true
	}
	return nil, false
}
