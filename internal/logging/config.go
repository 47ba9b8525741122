package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Config holds the configuration for the logger.
type Config struct {
	// Level is the minimum level: debug, info, warn, error or fatal.
	Level string `yaml:"level" json:"level"`
	// Format is json or text.
	Format string `yaml:"format" json:"format"`
	// Output is stdout, stderr, discard or a file path.
	Output string `yaml:"output" json:"output"`
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: "json",
		Output: "stderr",
	}
}

// NewLogger creates a logger from cfg. Empty fields take their defaults.
func NewLogger(cfg *Config) (*Logger, error) {
	def := DefaultConfig()
	if cfg == nil {
		cfg = def
	}

	level, err := ParseLevel(orDefault(cfg.Level, def.Level))
	if err != nil {
		return nil, err
	}
	format, err := parseFormat(orDefault(cfg.Format, def.Format))
	if err != nil {
		return nil, err
	}
	output, err := openOutput(orDefault(cfg.Output, def.Output))
	if err != nil {
		return nil, err
	}

	logger := New(level, output)
	logger.format = format
	return logger, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// ParseLevel converts a level name, in any case, to a LogLevel.
func ParseLevel(level string) (LogLevel, error) {
	l := LogLevel(strings.ToUpper(strings.TrimSpace(level)))
	if _, ok := levelRank[l]; !ok {
		return "", fmt.Errorf("unknown log level %q", level)
	}
	return l, nil
}

func parseFormat(format string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(format))); f {
	case JSONFormat, TextFormat:
		return f, nil
	default:
		return "", fmt.Errorf("unknown log format %q", format)
	}
}

// openOutput returns the writer for an output destination. Files are opened
// for appending.
func openOutput(output string) (io.Writer, error) {
	switch output {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	case "discard":
		return io.Discard, nil
	default:
		file, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log output: %w", err)
		}
		return file, nil
	}
}
