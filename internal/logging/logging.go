// Package logging configures the global zerolog logger: a console writer on
// stderr and a daily rotated log file.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options describes logger construction parameters.
type Options struct {
	Level         string
	File          string
	RetentionDays int
	Console       io.Writer
}

// Setup installs the global logger. The returned rotator is nil when no file
// output is configured.
func Setup(opts Options) *lumberjack.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	writers := []io.Writer{newConsoleWriter(console)}

	var rotator *lumberjack.Logger
	if opts.File != "" {
		rotator = &lumberjack.Logger{
			Filename:  opts.File,
			MaxAge:    opts.RetentionDays,
			LocalTime: false,
		}
		writers = append(writers, rotator)
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseLevel(opts.Level)).
		With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &log.Logger

	return rotator
}

func newConsoleWriter(out io.Writer) zerolog.ConsoleWriter {
	noColor := true
	if f, ok := out.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
	}
	return zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    noColor,
		TimeFormat: "2006-01-02 15:04:05",
	}
}

// ParseLevel maps a config level name to a zerolog level, defaulting to debug.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "critical", "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.DebugLevel
	}
}

// Component returns a child of the global logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// RotateDaily rotates the log file at every UTC midnight until ctx is done.
func RotateDaily(ctx context.Context, rotator *lumberjack.Logger) error {
	if rotator == nil {
		return nil
	}
	for {
		timer := time.NewTimer(untilMidnight(time.Now().UTC()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			if err := rotator.Rotate(); err != nil {
				log.Error().Err(err).Msg("log rotation failed")
			}
		}
	}
}

func untilMidnight(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	return next.Sub(now)
}
