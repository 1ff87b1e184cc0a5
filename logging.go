package djvu

import (
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewRotatingLogger builds a structured logger that writes to a
// size-rotated file, for long-running batch encode processes that want
// their own log file rather than the process's default logger.
//
// Grounded on jpfielding-dicos.go's cmd/ctl wiring: log/slog as the
// facade, lumberjack as the rotating io.Writer underneath it.
func NewRotatingLogger(path string, level slog.Level) *slog.Logger {
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// loggerOrDefault returns l, or the process-wide default logger if l is nil.
func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

var _ io.Writer = (*lumberjack.Logger)(nil)
