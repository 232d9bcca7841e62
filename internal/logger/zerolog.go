package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ZerologAdapter implements Logger on top of a zerolog.Logger. Every event
// carries a "component" field; durations in fields are written as integer
// milliseconds under the key they were given.
type ZerologAdapter struct {
	zl zerolog.Logger
}

// NewZerolog writes JSON lines to w, dropping events below level.
func NewZerolog(w io.Writer, level zerolog.Level) *ZerologAdapter {
	return &ZerologAdapter{
		zl: zerolog.New(w).Level(level).With().Timestamp().Logger(),
	}
}

// NewConsoleLogger writes human-readable lines to stderr.
func NewConsoleLogger(level zerolog.Level) *ZerologAdapter {
	return NewZerolog(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}, level)
}

// New picks a JSON or console logger; verbose lowers the level to debug.
func New(jsonOutput, verbose bool) *ZerologAdapter {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	if jsonOutput {
		return NewZerolog(os.Stderr, level)
	}
	return NewConsoleLogger(level)
}

// With returns a child logger carrying an extra field on every event.
func (z *ZerologAdapter) With(key string, value interface{}) *ZerologAdapter {
	return &ZerologAdapter{zl: z.zl.With().Interface(key, value).Logger()}
}

func (z *ZerologAdapter) Info(component, message string, fields map[string]interface{}) {
	emit(z.zl.Info(), component, fields, message)
}

func (z *ZerologAdapter) Warning(component, message string, fields map[string]interface{}) {
	emit(z.zl.Warn(), component, fields, message)
}

func (z *ZerologAdapter) Debug(component, message string, fields map[string]interface{}) {
	emit(z.zl.Debug(), component, fields, message)
}

func (z *ZerologAdapter) Error(component string, err error, fields map[string]interface{}) {
	emit(z.zl.Error().Err(err), component, fields, "operation failed")
}

// emit finishes e; zerolog hands out a nil event for disabled levels.
func emit(e *zerolog.Event, component string, fields map[string]interface{}, message string) {
	if e == nil {
		return
	}
	e.Str("component", component)
	for k, v := range fields {
		switch v := v.(type) {
		case time.Duration:
			e.Int64(k, v.Milliseconds())
		case error:
			e.AnErr(k, v)
		default:
			e.Interface(k, v)
		}
	}
	e.Msg(message)
}
