package logging

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Fields is the structured context of a façade call. It is only recognised
// as the final argument; a plain map[string]any there is treated the same.
type Fields map[string]any

// splitContext separates a trailing Fields argument from the message args.
func splitContext(args []any) ([]any, Fields) {
	if len(args) == 0 {
		return args, nil
	}
	switch f := args[len(args)-1].(type) {
	case Fields:
		return args[:len(args)-1], f
	case map[string]any:
		return args[:len(args)-1], Fields(f)
	}
	return args, nil
}

func stringifyArg(arg any) string {
	switch v := arg.(type) {
	case string:
		return v
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	}
	b, err := json.Marshal(arg)
	if err != nil {
		return fmt.Sprintf("%v", arg)
	}
	return string(b)
}

// formatMessage joins the stringified args with a single space.
func formatMessage(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = stringifyArg(a)
	}
	return strings.Join(parts, " ")
}

func hasError(args []any) bool {
	for _, a := range args {
		if _, ok := a.(error); ok {
			return true
		}
	}
	return false
}

// remoteContext returns the context sent with a remote record. When the call
// carried context or an error argument, the stringified args are attached
// under "args" without touching the caller's map.
func remoteContext(rec Record) Fields {
	if rec.Fields == nil && !hasError(rec.Args) {
		return nil
	}
	out := make(Fields, len(rec.Fields)+1)
	for k, v := range rec.Fields {
		out[k] = v
	}
	args := make([]string, len(rec.Args))
	for i, a := range rec.Args {
		args[i] = stringifyArg(a)
	}
	out["args"] = args
	return out
}

// zapFields flattens f into one zap field per key so that key-based
// redaction applies to each entry.
func zapFields(f Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, v))
	}
	return out
}
