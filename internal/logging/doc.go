// Package logging is the application's logging façade.
//
// A Facade fans every call out to a list of sinks. The console sink writes
// every record through a zap Logger; the remote sink forwards records at or
// above a configurable level to a RemoteLogger unless local-only mode is on.
//
//	f := logging.NewFacade(logging.NewConsoleSink(logger), remote)
//	f.Info(ctx, "request sent", logging.Fields{"id": id})
//
// The trailing argument of a call is treated as structured context when it
// is a Fields value. Every other argument is rendered into the message.
//
// Logger itself wraps zap with context-aware methods, a Trace level below
// Debug, key and pattern based redaction, and sampling that never drops
// Error entries.
package logging
