// Package boundary contains panics raised while rendering or handling a UI
// event, reporting each one once and returning a displayable fallback.
package boundary

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/fyrsmithlabs/reqtrace/internal/rum"
	"github.com/fyrsmithlabs/reqtrace/internal/tracecontext"
)

// FallbackMessage is shown in place of the failed view.
const FallbackMessage = "Something went wrong"

// PanicError is returned by Guard after recovering a panic.
type PanicError struct {
	Boundary string
	ErrorID  string
	Value    any
	Stack    []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s (error id %s)", FallbackMessage, e.ErrorID)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Hint is the user-facing instruction shown with the fallback.
func (e *PanicError) Hint() string {
	id := e.ErrorID
	if id == "" {
		id = "unknown"
	}
	return fmt.Sprintf("Try again. If this keeps happening, include error id %s.", id)
}

// Guard runs fn. A panic inside fn is recovered, reported to reporter with a
// fresh error id, and returned as a *PanicError. Errors returned by fn pass
// through untouched.
func Guard(ctx context.Context, reporter rum.Reporter, name string, fn func() error) (err error) {
	defer func() {
		v := recover()
		if v == nil {
			return
		}
		pe := &PanicError{
			Boundary: name,
			ErrorID:  tracecontext.NewErrorID(),
			Value:    v,
			Stack:    debug.Stack(),
		}
		if reporter != nil {
			reporter.ReportError(ctx, panicCause(v), rum.Context{
				"boundary": name,
				"errorId":  pe.ErrorID,
				"stack":    string(pe.Stack),
			})
		}
		err = pe
	}()
	return fn()
}

func panicCause(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", v)
}
