package errors

import (
	"fmt"
	"strconv"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseDecode   Phase = "decode"   // bytes to instructions
	PhaseEncode   Phase = "encode"   // instructions to bytes
	PhaseAssemble Phase = "assemble" // text to routine
	PhaseScan     Phase = "scan"     // block stack reconstruction
	PhaseResolve  Phase = "resolve"  // goto/label resolution
	PhaseRewrite  Phase = "rewrite"  // in-place patching
	PhaseRuntime  Phase = "runtime"  // reference interpreter
	PhaseLoad     Phase = "load"     // routine loading
	PhaseConfig   Phase = "config"   // configuration
)

// Kind categorizes the error
type Kind string

const (
	KindTruncated      Kind = "truncated"
	KindUnknownOpcode  Kind = "unknown_opcode"
	KindUnknownLabel   Kind = "unknown_label"
	KindDuplicateLabel Kind = "duplicate_label"
	KindMissingParams  Kind = "missing_params"
	KindBlockCrossing  Kind = "block_crossing"
	KindNoSpace        Kind = "no_space"
	KindInvalidInput   Kind = "invalid_input"
	KindInvalidData    Kind = "invalid_data"
	KindTypeMismatch   Kind = "type_mismatch"
	KindNotFound       Kind = "not_found"
	KindUnsupported    Kind = "unsupported"
	KindOverflow       Kind = "overflow"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Op     string
	Detail string
	Path   []string
	Offset int
}

// noOffset marks errors that do not refer to a byte offset.
const noOffset = -1

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Offset >= 0 {
		b.WriteString(" @")
		b.WriteString(strconv.Itoa(e.Offset))
	}

	if e.Op != "" {
		b.WriteString(" (")
		b.WriteString(e.Op)
		b.WriteByte(')')
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase:  phase,
			Kind:   kind,
			Offset: noOffset,
		},
	}
}

// Path sets the routine/label path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Offset sets the byte offset the error refers to
func (b *Builder) Offset(off int) *Builder {
	b.err.Offset = off
	return b
}

// Op sets the opcode name involved
func (b *Builder) Op(name string) *Builder {
	b.err.Op = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Truncated reports an instruction whose operand runs past the buffer end.
func Truncated(phase Phase, offset, length int) *Error {
	return New(phase, KindTruncated).
		Offset(offset).
		Value(offset).
		Detail("instruction operand crosses buffer end (length %d)", length).
		Build()
}

// UnknownOpcode reports a byte that names no opcode.
func UnknownOpcode(phase Phase, offset int, op byte) *Error {
	return New(phase, KindUnknownOpcode).
		Offset(offset).
		Value(op).
		Detail("unknown opcode 0x%02x", op).
		Build()
}

// UnknownLabel is raised for a goto whose label is never defined.
func UnknownLabel(routine, label string, offset int) *Error {
	return New(PhaseResolve, KindUnknownLabel).
		Path(routine, label).
		Offset(offset).
		Detail("unknown label %q", label).
		Build()
}

// DuplicateLabel is raised for a label defined twice in one routine.
func DuplicateLabel(routine, label string, offset int) *Error {
	return New(PhaseScan, KindDuplicateLabel).
		Path(routine, label).
		Offset(offset).
		Detail("ambiguous label %q", label).
		Build()
}

// MissingParams is raised for a parameterless goto into block.
func MissingParams(routine, label string, offset int, block string) *Error {
	return New(PhaseResolve, KindMissingParams).
		Path(routine, label).
		Offset(offset).
		Detail("jump into %s block without the necessary params", block).
		Build()
}

// BlockCrossing is raised when the target stack cannot be rebuilt.
func BlockCrossing(routine, label string, offset int, detail string) *Error {
	return New(PhaseResolve, KindBlockCrossing).
		Path(routine, label).
		Offset(offset).
		Detail(detail).
		Build()
}

// NoSpace is raised when a goto span cannot hold even a trampoline jump.
func NoSpace(routine string, offset, need, have int) *Error {
	return New(PhaseRewrite, KindNoSpace).
		Path(routine).
		Offset(offset).
		Detail("goto in an incredibly huge function: need %d bytes, have %d", need, have).
		Build()
}

// Unsupported reports a feature or input the module does not handle.
func Unsupported(phase Phase, what string) *Error {
	return New(phase, KindUnsupported).Detail(what).Build()
}

// TypeMismatch reports a value of the wrong Go type at path.
func TypeMismatch(phase Phase, path []string, want string, got any) *Error {
	return New(phase, KindTypeMismatch).
		Path(path...).
		Value(got).
		Detail("expected %s, got %T", want, got).
		Build()
}

// InvalidData reports malformed content at path.
func InvalidData(phase Phase, path []string, detail string) *Error {
	return New(phase, KindInvalidData).Path(path...).Detail(detail).Build()
}

// InvalidInput reports a bad argument.
func InvalidInput(phase Phase, detail string) *Error {
	return New(phase, KindInvalidInput).Detail(detail).Build()
}

// NotFound reports a missing named entity.
func NotFound(phase Phase, what, name string) *Error {
	return New(phase, KindNotFound).Detail("%s %q not found", what, name).Build()
}

// Wrap attaches phase and kind to an error from elsewhere.
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return New(phase, kind).Cause(cause).Detail(detail).Build()
}

// Load reports a routine that could not be read.
func Load(detail string, cause error) *Error {
	return Wrap(PhaseLoad, KindInvalidData, cause, detail)
}

// AssembleFailed reports a bad assembler source line.
func AssembleFailed(line int, detail string) *Error {
	return New(PhaseAssemble, KindInvalidInput).
		Path("line " + strconv.Itoa(line)).
		Detail(detail).
		Build()
}
