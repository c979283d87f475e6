// Package telemetry provides the scheduler's structured logging and metrics,
// kept separate from the dispatch logic so a caller embedding the pool in a
// larger service can swap in their own sink without touching internal/source
// or internal/supervisor.
package telemetry

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog for the loader and worker lifecycle events: dispatch
// round summaries, slot panics, job start/completion.
type Logger struct {
	logger zerolog.Logger
}

// LoggerConfig configures a Logger.
type LoggerConfig struct {
	Level   zerolog.Level
	Console bool
	Writer  io.Writer
}

// DefaultLoggerConfig returns an info-level console logger configuration.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Level:   zerolog.InfoLevel,
		Console: true,
	}
}

// NewLogger builds a Logger from the given configuration.
func NewLogger(cfg LoggerConfig) *Logger {
	var output io.Writer = os.Stdout
	if cfg.Writer != nil {
		output = cfg.Writer
	} else if cfg.Console {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(output).Level(cfg.Level).With().
		Timestamp().
		Str("component", "jobrunner").
		Logger()

	return &Logger{logger: logger}
}

// NewNop returns a Logger that discards everything, for tests and callers
// who don't want log output.
func NewNop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

// DispatchRound logs one loader iteration: how many jobs were waiting and
// how many of those were dispatched to a free slot.
func (l *Logger) DispatchRound(queued, dispatched int) {
	l.logger.Debug().
		Int("queued", queued).
		Int("dispatched", dispatched).
		Msg("dispatch round")
}

// JobStarted logs a worker picking up a job.
func (l *Logger) JobStarted(worker int, priority, exclusionKey any) {
	l.logger.Debug().
		Int("worker", worker).
		Interface("priority", priority).
		Interface("exclusion_key", exclusionKey).
		Msg("job started")
}

// JobCompleted logs a worker finishing a job.
func (l *Logger) JobCompleted(worker int, duration time.Duration) {
	l.logger.Debug().
		Int("worker", worker).
		Dur("duration", duration).
		Msg("job completed")
}

// JobPanicked logs a recovered panic from a job's Execute method.
func (l *Logger) JobPanicked(worker int, recovered any) {
	l.logger.Error().
		Int("worker", worker).
		Interface("panic", recovered).
		Msg("job panicked, slot cleared")
}

// RecurringEmitted logs a recurring entry coming due.
func (l *Logger) RecurringEmitted(count int) {
	if count == 0 {
		return
	}
	l.logger.Debug().Int("count", count).Msg("recurring jobs emitted")
}
