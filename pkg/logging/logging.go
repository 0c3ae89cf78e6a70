// Package logging configures the process-wide slog logger for the
// Databyte client.
//
// Logs default to stderr so command output on stdout stays pipeable.
// Levels from most to least verbose: DEBUG, INFO, WARN, ERROR.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options selects the level, format, and destination of the global logger.
type Options struct {
	Level  string    // "debug", "info", "warn", "error" (default: "info")
	Format string    // "text" or "json" (default: "text")
	Output io.Writer // default: os.Stderr
}

// levels maps accepted level names to slog levels.
var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// ParseLevel resolves a level name. Unknown names and the empty string
// resolve to info.
func ParseLevel(name string) slog.Level {
	if lvl, ok := levels[strings.ToLower(strings.TrimSpace(name))]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// Validate returns an error if the level name is not recognized. The empty
// string is accepted and means the default.
func Validate(name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil
	}
	if _, ok := levels[name]; !ok {
		return fmt.Errorf("unknown log level %q (valid: %s)", name, LevelNames())
	}
	return nil
}

// LevelNames lists the accepted level names for flag help text.
func LevelNames() string {
	return "debug, info, warn, error"
}

// Setup installs the global slog logger. Call it once, early in main,
// before any logging occurs.
func Setup(opts Options) error {
	if err := Validate(opts.Level); err != nil {
		return err
	}
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	switch format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (valid: text, json)", opts.Format)
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	level := ParseLevel(opts.Level)
	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // include file:line in debug mode
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}
