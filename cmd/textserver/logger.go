package main

import (
	"fmt"
	"os"

	"github.com/dieharders/ai-text-server-sub000/pkg/config"
	"github.com/dieharders/ai-text-server-sub000/pkg/logger"
)

const (
	LogLevelEnvVar   = "LOG_LEVEL"
	LogFileEnvVar    = "LOG_FILE"
	LogFormatEnvVar  = "LOG_FORMAT"
	DefaultLogFormat = logger.FormatSimple
)

// logSettings remembers which logger settings came from the command line
// or environment, so the config file only fills in the rest.
type logSettings struct {
	level, file, format string
	pinnedLevel         bool
	pinnedFile          bool
	pinnedFormat        bool

	output  *os.File
	cleanup func()
}

// initLoggerFromCLI installs the logger from flags and env vars.
// Priority: CLI flags > env vars > defaults.
func initLoggerFromCLI(cliLevel, cliFile, cliFormat string) (*logSettings, error) {
	s := &logSettings{}
	s.level, s.pinnedLevel = firstSet(cliLevel, os.Getenv(LogLevelEnvVar))
	s.file, s.pinnedFile = firstSet(cliFile, os.Getenv(LogFileEnvVar))
	s.format, s.pinnedFormat = firstSet(cliFormat, os.Getenv(LogFormatEnvVar))
	if s.level == "" {
		s.level = "info"
	}
	if s.format == "" {
		s.format = DefaultLogFormat
	}
	if err := s.install(); err != nil {
		return nil, err
	}
	return s, nil
}

// applyConfig re-initializes the logger with config file values for every
// setting the command line did not pin. It is also called on hot reload.
func (s *logSettings) applyConfig(cfg *config.LoggerConfig) error {
	if cfg == nil {
		return nil
	}
	changed := false
	if !s.pinnedLevel && cfg.Level != "" && cfg.Level != s.level {
		s.level, changed = cfg.Level, true
	}
	if !s.pinnedFormat && cfg.Format != "" && cfg.Format != s.format {
		s.format, changed = cfg.Format, true
	}
	if !s.pinnedFile && cfg.File != s.file {
		s.file, changed = cfg.File, true
	}
	if !changed {
		return nil
	}
	return s.install()
}

func (s *logSettings) install() error {
	level, err := logger.ParseLevel(s.level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	output, cleanup := os.Stderr, func() {}
	if s.file != "" {
		file, closeFn, err := logger.OpenLogFile(s.file)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		output, cleanup = file, closeFn
	}

	logger.Init(level, output, s.format)
	if s.cleanup != nil {
		s.cleanup()
	}
	s.output, s.cleanup = output, cleanup
	return nil
}

func (s *logSettings) Close() {
	if s != nil && s.cleanup != nil {
		s.cleanup()
		s.cleanup = nil
	}
}

func firstSet(values ...string) (string, bool) {
	for _, v := range values {
		if v != "" {
			return v, true
		}
	}
	return "", false
}
