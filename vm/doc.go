// Package vm is a reference interpreter for routines in the code package.
//
// The machine keeps a value stack and a block stack of LOOP, TRY and
// HANDLER entries. Raising unwinds blocks until a TRY is found, turns it
// into a HANDLER and pushes (traceback, exception, class) before jumping
// to the handler. Resource scopes call Scope.Enter on setup and Scope.Exit
// from WITH_CLEANUP; asynchronous scopes are awaited eagerly, as is
// AsyncIterator.ANext when FOR_ITER drives an iterator from GET_AITER.
//
// Values are int64, float64, string, bool, nil (None), Tuple, *List,
// *Class, *Exception, Iterator, Iterable, AsyncIterator, AsyncIterable,
// Callable and any object that implements Object for attribute access.
//
// Uncaught exceptions are returned from Run as *Exception, which
// implements error. Failures of the machine itself (bad bytecode, step
// limit, cancelled context) are returned as plain errors and cannot be
// caught by the running routine.
package vm
