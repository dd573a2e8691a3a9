// Package logger is the structured logging surface of the payment
// pipeline. Components receive a Logger at construction; nothing logs
// through ambient package state.
package logger

// Fields carries structured context: authorization fields, request ids,
// facilitator status. Never log private keys or full payment headers.
type Fields = map[string]any

// Logger is implemented by ZapLogger for the service process and by
// NoopLogger for tests and optional collaborators.
type Logger interface {
	Debug(msg string, fields Fields)
	Info(msg string, fields Fields)
	Warn(msg string, fields Fields)
	Error(msg string, fields Fields)
}

// NoopLogger discards everything.
type NoopLogger struct{}

func (NoopLogger) Debug(string, Fields) {}
func (NoopLogger) Info(string, Fields)  {}
func (NoopLogger) Warn(string, Fields)  {}
func (NoopLogger) Error(string, Fields) {}
