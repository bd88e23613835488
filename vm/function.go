package vm

import (
	"context"
	"maps"

	"github.com/wippyai/bytegoto/code"
)

// Function binds a routine to a global namespace with call metadata.
type Function struct {
	Code     *code.Routine
	Globals  map[string]any
	Attrs    map[string]any
	Name     string
	Doc      string
	Defaults []any
}

// NewFunction wraps r. The function shares globals with its caller.
func NewFunction(r *code.Routine, globals map[string]any) *Function {
	if globals == nil {
		globals = make(map[string]any)
	}
	return &Function{
		Code:    r,
		Globals: globals,
		Attrs:   make(map[string]any),
		Name:    r.Name,
	}
}

// WithCode returns a copy of f running r instead of f.Code. Name, doc,
// defaults, globals and attributes are preserved.
func (f *Function) WithCode(r *code.Routine) *Function {
	return &Function{
		Code:     r,
		Globals:  f.Globals,
		Attrs:    maps.Clone(f.Attrs),
		Name:     f.Name,
		Doc:      f.Doc,
		Defaults: f.Defaults,
	}
}

// Call binds args, filling trailing parameters from Defaults, and runs
// the routine.
func (f *Function) Call(ctx context.Context, args []any) (any, error) {
	want := f.Code.ArgCount
	if len(args) > want {
		return nil, NewException(TypeError, "%s() takes %d positional arguments but %d were given", f.Name, want, len(args))
	}
	if missing := want - len(args); missing > 0 {
		if missing > len(f.Defaults) {
			return nil, NewException(TypeError, "%s() missing %d required positional arguments", f.Name, missing-len(f.Defaults))
		}
		bound := make([]any, 0, want)
		bound = append(bound, args...)
		args = append(bound, f.Defaults[len(f.Defaults)-missing:]...)
	}
	return New(f.Globals).Run(ctx, f.Code, args...)
}

// GetAttr exposes user attributes and __name__/__doc__.
func (f *Function) GetAttr(name string) (any, bool) {
	switch name {
	case "__name__":
		return f.Name, true
	case "__doc__":
		if f.Doc == "" {
			return nil, true
		}
		return f.Doc, true
	}
	v, ok := f.Attrs[name]
	return v, ok
}

// SetAttr stores a user attribute.
func (f *Function) SetAttr(name string, v any) error {
	if f.Attrs == nil {
		f.Attrs = make(map[string]any)
	}
	f.Attrs[name] = v
	return nil
}
