package submission

import "fmt"

// Kind is the state of a submission.
type Kind int

const (
	KindIdle Kind = iota
	KindSubmitting
	KindSuccess
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindIdle:
		return "idle"
	case KindSubmitting:
		return "submitting"
	case KindSuccess:
		return "success"
	case KindFailed:
		return "error"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// State is one point in the submission lifecycle. Every state after Idle
// carries the traceparent of the attempt.
type State struct {
	Kind        Kind
	Traceparent string
	Status      int    // HTTP status; 0 when no response was received
	Message     string // failure message, Failed only
}

// Idle is the initial state.
func Idle() State { return State{Kind: KindIdle} }

func submitting(tp string) State { return State{Kind: KindSubmitting, Traceparent: tp} }

func succeeded(tp string, status int) State {
	return State{Kind: KindSuccess, Traceparent: tp, Status: status}
}

func failedStatus(tp string, status int) State {
	return State{
		Kind:        KindFailed,
		Traceparent: tp,
		Status:      status,
		Message:     fmt.Sprintf("Request failed (%d).", status),
	}
}

func failedErr(tp string, err error) State {
	msg := "Request failed."
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return State{Kind: KindFailed, Traceparent: tp, Message: msg}
}

// Busy reports whether a request is outstanding.
func (s State) Busy() bool { return s.Kind == KindSubmitting }

// Done reports a terminal state.
func (s State) Done() bool { return s.Kind == KindSuccess || s.Kind == KindFailed }

// CanSubmit reports whether the submit control is enabled for f in s.
func CanSubmit(f Form, s State) bool {
	return f.Validate().Valid() && !s.Busy()
}
