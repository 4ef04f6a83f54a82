package obs

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger configures slog logger with colorful dev output and JSON for
// production-like envs. A non-empty file also receives JSON lines through a
// rotating writer.
func NewLogger(env, file string) *slog.Logger {
	level := slog.LevelInfo
	var console slog.Handler
	if env == "dev" || env == "local" {
		level = slog.LevelDebug
		console = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.RFC3339,
			AddSource:  true,
		})
	} else {
		console = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level, AddSource: true})
	}
	if file == "" {
		return slog.New(console)
	}
	rotating := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    10,
		MaxBackups: 7,
		MaxAge:     28,
		Compress:   true,
	}
	return slog.New(fanout{console, slog.NewJSONHandler(rotating, &slog.HandlerOptions{Level: level})})
}

// Discard is a logger for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fanout []slog.Handler
