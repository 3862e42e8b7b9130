// Package submission implements the request form and its submission state
// machine: idle, submitting, then success or failed.
package submission

import (
	"fmt"
	"strings"
	"time"
)

// Operation is the kind of change a request asks for.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// Operations lists every operation in display order.
var Operations = []Operation{OperationCreate, OperationUpdate, OperationDelete}

// ParseOperation validates s as an Operation.
func ParseOperation(s string) (Operation, error) {
	for _, op := range Operations {
		if string(op) == s {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown operation %q (want create, update or delete)", s)
}

// Priority is the requested handling priority.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Priorities lists every priority in display order.
var Priorities = []Priority{PriorityLow, PriorityNormal, PriorityHigh}

// ParsePriority validates s as a Priority.
func ParsePriority(s string) (Priority, error) {
	for _, p := range Priorities {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown priority %q (want low, normal or high)", s)
}

// Form is the user-editable request.
type Form struct {
	RequestName          string
	Operation            Operation
	Priority             Priority
	IncludeDebugMetadata bool
	Notes                string
}

// NewForm returns an empty form with default operation and priority.
func NewForm() Form {
	return Form{Operation: OperationCreate, Priority: PriorityNormal}
}

// Field names used in FieldErrors.
const (
	FieldRequestName = "requestName"
)

// MsgRequestNameRequired is shown when the request name is blank.
const MsgRequestNameRequired = "Request name is required."

// FieldErrors maps a field name to its validation message.
type FieldErrors map[string]string

// Valid reports whether there are no errors.
func (e FieldErrors) Valid() bool { return len(e) == 0 }

// Validate checks the form. The request name must not be blank.
func (f Form) Validate() FieldErrors {
	errs := FieldErrors{}
	if strings.TrimSpace(f.RequestName) == "" {
		errs[FieldRequestName] = MsgRequestNameRequired
	}
	return errs
}

// TimestampLayout is ISO-8601 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Payload is the JSON body sent to the receiver.
type Payload struct {
	Name                 string    `json:"name"`
	Operation            Operation `json:"operation"`
	Priority             Priority  `json:"priority"`
	IncludeDebugMetadata bool      `json:"includeDebugMetadata"`
	Notes                string    `json:"notes"`
	ClientTimestamp      string    `json:"clientTimestamp"`
}

// NewPayload builds the request body for f at time now.
func NewPayload(f Form, now time.Time) Payload {
	return Payload{
		Name:                 strings.TrimSpace(f.RequestName),
		Operation:            f.Operation,
		Priority:             f.Priority,
		IncludeDebugMetadata: f.IncludeDebugMetadata,
		Notes:                f.Notes,
		ClientTimestamp:      now.UTC().Format(TimestampLayout),
	}
}

// Validate checks a received payload: a non-blank name, known enums and a
// parseable timestamp when one is present.
func (p Payload) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if _, err := ParseOperation(string(p.Operation)); err != nil {
		return err
	}
	if _, err := ParsePriority(string(p.Priority)); err != nil {
		return err
	}
	if p.ClientTimestamp != "" {
		if _, err := time.Parse(time.RFC3339Nano, p.ClientTimestamp); err != nil {
			return fmt.Errorf("invalid clientTimestamp: %w", err)
		}
	}
	return nil
}
