package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Config is the optional YAML config file. Flags given on the command line
// override its values.
type Config struct {
	// Database is the SQLite database path.
	Database string `yaml:"database"`

	// LogLevel is one of debug, info, warn or error.
	LogLevel string `yaml:"log_level"`

	// Format is the output format, json or text.
	Format string `yaml:"format"`
}

// LoadConfig reads a config file. Unknown fields are rejected so typos
// surface instead of being ignored.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.LogLevel != "" {
		if _, err := parseLogLevel(cfg.LogLevel); err != nil {
			return nil, err
		}
	}
	if cfg.Format != "" && !isValidFormat(cfg.Format) {
		return nil, fmt.Errorf("invalid format %q in config: must be one of %v", cfg.Format, ValidFormats)
	}
	return &cfg, nil
}

// applyConfig copies config values into opts for every flag the user did
// not set explicitly.
func applyConfig(cmd *cobra.Command, opts *RootOptions, cfg *Config) {
	flags := cmd.Flags()
	if cfg.Database != "" && !flags.Changed("db") {
		opts.Database = cfg.Database
	}
	if cfg.Format != "" && !flags.Changed("format") {
		opts.Format = cfg.Format
	}
	if cfg.LogLevel != "" && !flags.Changed("log-level") {
		opts.LogLevel = cfg.LogLevel
	}
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", s)
}

// newLogger builds the text logger used by every command. --verbose
// forces debug level.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	// Invalid levels are rejected before any command runs.
	level, _ := parseLogLevel(opts.LogLevel)
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
