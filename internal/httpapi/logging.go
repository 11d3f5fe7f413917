package httpapi

import (
	"net/http"

	"github.com/rs/zerolog"
)

// zlog is an optional structured logger. If unset, falls back to log.Printf.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer and derives
// the default request log level from it, so the level configured in main is
// the only source; this package never reads the environment.
func SetLogger(l zerolog.Logger) {
	zlog = &l
	switch l.GetLevel() {
	case zerolog.TraceLevel, zerolog.DebugLevel:
		defaultLogLevel = LevelDebug
	case zerolog.InfoLevel:
		defaultLogLevel = LevelInfo
	case zerolog.WarnLevel, zerolog.ErrorLevel:
		defaultLogLevel = LevelError
	default:
		defaultLogLevel = LevelOff
	}
}

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch s {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// defaultLogLevel applies when a request carries no override. SetLogger
// keeps it in step with the configured logger level.
var defaultLogLevel = LevelInfo

func requestLogLevel(r *http.Request) LogLevel {
	// Per-request overrides
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}
