// Package tracecontext generates and parses W3C Trace Context traceparent values.
//
// A traceparent has the form
//
//	00-<32 hex trace id>-<16 hex parent id>-<2 hex flags>
//
// Generated values always use version 00 and the sampled flag (01). Trace and
// parent ids come from a cryptographically strong source and are redrawn when
// the draw is all zeros, which W3C Trace Context reserves as invalid. The redraw is
// bounded: a source that keeps returning zeros yields ErrEntropyExhausted
// instead of spinning forever.
//
// # Usage
//
//	tp, err := tracecontext.Generate()
//	if err != nil {
//	    return err
//	}
//	req.Header.Set(tracecontext.HeaderName, tp.String())
//
// The value can also be attached to a context so log lines carry trace_id:
//
//	ctx = tp.ContextWith(ctx)
package tracecontext
