// Package log provides the process-wide logging sink used by every other
// package. Call sites use the small Log/Logf/With API; the backing
// implementation is zerolog.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var logger zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

// SetLogWriter redirects log output to w. Callers that want both stderr and
// a file should pass an io.MultiWriter.
func SetLogWriter(w io.Writer) {
	if w == nil {
		return
	}
	logger = zerolog.New(w).With().Timestamp().Logger()
}

// SetLevel parses level ("debug", "info", "warn", "error") and applies it
// globally. Unknown levels are treated as "info".
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// Log prints an info-level message built from a.
func Log(a ...any) {
	logger.Info().Msg(strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
}

// Logf prints a formatted info-level message.
func Logf(format string, a ...any) {
	logger.Info().Msgf(format, a...)
}

// Warn prints a warn-level message.
func Warn(a ...any) {
	logger.Warn().Msg(strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
}

// Warnf prints a formatted warn-level message.
func Warnf(format string, a ...any) {
	logger.Warn().Msgf(format, a...)
}

// Error prints an error-level message.
func Error(a ...any) {
	logger.Error().Msg(strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
}

// Errorf prints a formatted error-level message.
func Errorf(format string, a ...any) {
	logger.Error().Msgf(format, a...)
}

// Fields is a logger bound to a fixed set of structured fields (session id,
// node name, job id, ...) attached to every line it emits.
type Fields struct {
	l zerolog.Logger
}

// With returns a field-scoped logger for call sites that want structured
// context attached to every subsequent line.
func With(fields map[string]any) *Fields {
	ctx := logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Fields{l: ctx.Logger()}
}

func (f *Fields) Log(a ...any) {
	f.l.Info().Msg(strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
}

func (f *Fields) Logf(format string, a ...any) { f.l.Info().Msgf(format, a...) }

func (f *Fields) Warn(a ...any) {
	f.l.Warn().Msg(strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
}

func (f *Fields) Warnf(format string, a ...any) { f.l.Warn().Msgf(format, a...) }

func (f *Fields) Error(a ...any) {
	f.l.Error().Msg(strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
}

func (f *Fields) Errorf(format string, a ...any) { f.l.Error().Msgf(format, a...) }
