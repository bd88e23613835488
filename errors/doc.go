// Package errors provides structured error types for the bytegoto library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the routine/label path, the byte offset the error refers to,
// the opcode involved and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseResolve, errors.KindUnknownLabel).
//		Path("main", "end").
//		Offset(42).
//		Detail("unknown label %q", "end").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.UnknownLabel("main", "end", 42)
//	err := errors.Truncated(errors.PhaseDecode, 10, 12)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
