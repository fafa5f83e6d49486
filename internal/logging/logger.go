// Package logging wraps github.com/rs/zerolog behind a small structured
// interface, replacing ad hoc log.Printf calls with leveled, structured
// logging.
//
// Author: aaron-michaux
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is a thin structured-logging facade over zerolog.Logger.
type Logger struct {
	z zerolog.Logger
}

// New constructs a Logger writing to w (os.Stderr's console writer when w
// is nil), at the given minimum level.
func New(w io.Writer, level zerolog.Level) Logger {
	if w == nil {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}
	z := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return Logger{z: z}
}

// Field is one structured key/value pair attached to a log event.
type Field struct {
	Key   string
	Value any
}

// F constructs a Field; a small convenience so call sites read
// logging.F("request_id", id) rather than a bare struct literal.
func F(key string, value any) Field { return Field{Key: key, Value: value} }

func (l Logger) event(e *zerolog.Event, msg string, fields ...Field) {
	for _, f := range fields {
		e = e.Interface(f.Key, f.Value)
	}
	e.Msg(msg)
}

// Info logs at info level with structured fields.
func (l Logger) Info(msg string, fields ...Field) { l.event(l.z.Info(), msg, fields...) }

// Warn logs at warn level with structured fields.
func (l Logger) Warn(msg string, fields ...Field) { l.event(l.z.Warn(), msg, fields...) }

// Error logs at error level with structured fields.
func (l Logger) Error(msg string, fields ...Field) { l.event(l.z.Error(), msg, fields...) }

// With returns a child Logger with fields attached to every subsequent
// event, mirroring zerolog's context-builder idiom.
func (l Logger) With(fields ...Field) Logger {
	ctx := l.z.With()
	for _, f := range fields {
		ctx = ctx.Interface(f.Key, f.Value)
	}
	return Logger{z: ctx.Logger()}
}

// LogFrameError implements internal/rpc.Logger: every localized frame send
// error is emitted as a structured event carrying the request id it belongs
// to.
func (l Logger) LogFrameError(requestID uint64, op string, err error) {
	l.Error("rpc frame error",
		F("request_id", requestID),
		F("op", op),
		F("error", err.Error()),
	)
}

// LogRequestDispatch implements internal/rpc.Logger's observability-only
// correlation id trace: it never affects protocol semantics.
func (l Logger) LogRequestDispatch(requestID uint64, correlationID string, callID uint32) {
	l.Info("rpc request dispatched",
		F("request_id", requestID),
		F("correlation_id", correlationID),
		F("call_id", callID),
	)
}
