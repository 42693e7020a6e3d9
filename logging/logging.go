// Package logging defines the structured logging sink injected into every
// client component, with a zerolog-backed implementation.
package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the interface for structured logging.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

// F creates a new Field with the given key and value.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Nop discards all log entries.
var Nop Logger = nopLogger{}

type nopLogger struct{}

func (nopLogger) Debug(string, ...Field) {}
func (nopLogger) Info(string, ...Field)  {}
func (nopLogger) Warn(string, ...Field)  {}
func (nopLogger) Error(string, ...Field) {}

// OrNop returns l, or Nop when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop
	}
	return l
}

type zerologLogger struct {
	zl zerolog.Logger
}

// NewZerolog adapts a zerolog.Logger to Logger.
func NewZerolog(zl zerolog.Logger) Logger {
	return zerologLogger{zl: zl}
}

// NewConsole builds a human-readable zerolog logger writing to w at level.
// Unknown level names fall back to info.
func NewConsole(w io.Writer, level string) Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zl := zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(lvl).
		With().Timestamp().Logger()
	return NewZerolog(zl)
}

func (z zerologLogger) Debug(msg string, fields ...Field) { write(z.zl.Debug(), msg, fields) }
func (z zerologLogger) Info(msg string, fields ...Field)  { write(z.zl.Info(), msg, fields) }
func (z zerologLogger) Warn(msg string, fields ...Field)  { write(z.zl.Warn(), msg, fields) }
func (z zerologLogger) Error(msg string, fields ...Field) { write(z.zl.Error(), msg, fields) }

func write(e *zerolog.Event, msg string, fields []Field) {
	if e == nil {
		return
	}
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			e = e.Str(f.Key, v)
		case error:
			e = e.AnErr(f.Key, v)
		case time.Duration:
			e = e.Dur(f.Key, v)
		case time.Time:
			e = e.Time(f.Key, v)
		default:
			e = e.Interface(f.Key, v)
		}
	}
	e.Msg(msg)
}
