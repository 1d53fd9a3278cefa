package log

import (
	"github.com/rs/zerolog"
)

// Option configures a Logger.
type Option func(*Logger)

// WithLevel sets the logger's level.
func WithLevel(level zerolog.Level) Option {
	return func(l *Logger) {
		l.Logger = l.Logger.Level(level)
	}
}

// WithCaller annotates events with the calling file and line.
func WithCaller() Option {
	return func(l *Logger) {
		l.Logger = l.Logger.With().Caller().Logger()
	}
}

// WithCallerSkip annotates events with the caller, skipping extra frames.
func WithCallerSkip(skip int) Option {
	return func(l *Logger) {
		l.Logger = l.Logger.With().CallerWithSkipFrameCount(skip).Logger()
	}
}
