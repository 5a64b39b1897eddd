package cmd

import (
	"io"
	"os"
	"path/filepath"

	"timelock-backend/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// setupLogger configures the global zerolog logger and returns a func that
// closes the log file, if any
func setupLogger(cfg config.LogConfig) func() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var out io.Writer = os.Stderr
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	closeFn := func() {}
	if cfg.Filename != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Filename), 0o755); err != nil {
			log.Error().Err(err).Str("filename", cfg.Filename).Msg("Failed to create log directory")
		} else {
			file := &lumberjack.Logger{
				Filename:   cfg.Filename,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   cfg.Compress,
			}
			// Files always get JSON lines.
			out = zerolog.MultiLevelWriter(out, file)
			closeFn = func() { file.Close() }
		}
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	return closeFn
}
