// Package logx wraps zerolog behind a small, service-friendly API.
//
// Components receive a Logger value and tag themselves with a fixed
// "comp" field via With(). The Service owns the sinks (console, file)
// and can swap levels/outputs at runtime without invalidating loggers
// already handed out.
package logx
