package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelNone silences every record.
const LevelNone = slog.Level(12)

// Options configures a logger.
type Options struct {
	Level    string
	File     string
	Location *time.Location
}

// ParseLevel maps debug|info|error|none to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "error":
		return slog.LevelError, nil
	case "none":
		return LevelNone, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// New builds a JSON logger writing to stdout and, when opts.File is set, to a rotated file.
func New(opts Options) (*slog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	var w io.Writer = os.Stdout
	if opts.File != "" {
		w = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    128,
			MaxBackups: 5,
			MaxAge:     16,
		})
	}
	return NewWithWriter(w, level, opts.Location), nil
}

// NewWithWriter builds a JSON logger on w. Records carry ts, level and msg keys.
func NewWithWriter(w io.Writer, level slog.Level, loc *time.Location) *slog.Logger {
	if loc == nil {
		loc = time.UTC
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				return slog.String("ts", a.Value.Time().In(loc).Format(time.RFC3339Nano))
			case slog.LevelKey:
				return slog.String(slog.LevelKey, strings.ToLower(a.Value.String()))
			}
			return a
		},
	})
	return slog.New(h)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return NewWithWriter(io.Discard, LevelNone, time.UTC)
}
