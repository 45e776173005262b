// Package logging configures the logrus logger shared by all components.
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Formats supported by New.
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatPlain = "plain"
)

const timestampFormat = "2006-01-02 15:04:05"

// Options configures a logger.
type Options struct {
	Level  string    // trace, debug, info, warn, error; default info
	Format string    // text, json or plain; default text
	Output io.Writer // default os.Stdout
}

// New builds a logger from opts.
func New(opts Options) (*log.Logger, error) {
	logger := log.New()

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	logger.SetOutput(out)

	level := opts.Level
	if level == "" {
		level = "info"
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	logger.SetLevel(lvl)

	switch strings.ToLower(opts.Format) {
	case "", FormatText:
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: timestampFormat})
	case FormatJSON:
		logger.SetFormatter(&log.JSONFormatter{TimestampFormat: timestampFormat})
	case FormatPlain:
		logger.SetFormatter(&PlainFormatter{TimestampFormat: timestampFormat})
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	return logger, nil
}

// Discard returns a logger that drops everything. Used in tests.
func Discard() *log.Logger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}

// Component returns a child logger tagged with the component name.
func Component(logger log.FieldLogger, name string) log.FieldLogger {
	if logger == nil {
		logger = Discard()
	}
	return logger.WithField("component", name)
}

// PlainFormatter writes "LEVEL timestamp message key=value..." lines.
type PlainFormatter struct {
	TimestampFormat string
}

// Format implements logrus.Formatter.
func (f *PlainFormatter) Format(entry *log.Entry) ([]byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%-5s %s %s", strings.ToUpper(entry.Level.String()), entry.Time.Format(f.TimestampFormat), entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}
