// Package logging sets up the process-wide zerolog logger and hands out
// per-component child loggers.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel is a level name as written in config files, flags and
// MLBAM_LOG_LEVEL.
type LogLevel string

const (
	LevelTrace LogLevel = "trace"
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Component names carried in the "component" field.
const (
	ComponentPage      = "page-cache"
	ComponentRequester = "requester"
	ComponentClient    = "mlbam-client"
	ComponentBatch     = "batch"
	ComponentServer    = "server"
)

// Config holds logger configuration.
type Config struct {
	Level LogLevel

	// Pretty switches from JSON lines to zerolog's console writer.
	Pretty bool

	// Output defaults to os.Stderr when nil.
	Output io.Writer
}

// DefaultConfig returns info-level JSON logging to stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// Setup installs the global logger and level and returns the logger.
// An unknown level logs at info.
func Setup(cfg Config) zerolog.Logger {
	level, _ := ParseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return log.Logger
}

// ParseLevel maps a level name to a zerolog.Level, case-insensitively.
// The empty name means info. Unknown names return info with ok false.
func ParseLevel(level LogLevel) (lvl zerolog.Level, ok bool) {
	switch LogLevel(strings.ToLower(string(level))) {
	case LevelTrace:
		return zerolog.TraceLevel, true
	case LevelDebug:
		return zerolog.DebugLevel, true
	case LevelInfo, "":
		return zerolog.InfoLevel, true
	case LevelWarn, "warning":
		return zerolog.WarnLevel, true
	case LevelError:
		return zerolog.ErrorLevel, true
	}
	return zerolog.InfoLevel, false
}

// NewLogger returns a child of the current global logger tagged with
// component. Call it after Setup; the child does not follow later Setup
// calls.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Levels in use:
//
//	trace/debug  conditional requests, fetched pages (bytes, digest,
//	             changed), evictions, batch worker progress
//	info         verbose 304 notices, server start and stop, batch summaries
//	warn         unexpected status, transport failures, retries
//	error        response encoding failures
//
// Common fields: component, url, status, error_class, duration, digest,
// bytes.
