package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nhle/jira-import/internal/model"
)

// OpenLog installs a text logger writing to the configured log file as the
// default slog logger. The terminal belongs to the UI, so nothing is logged
// there. The returned closer flushes and closes the file.
func OpenLog(cfg *model.AppConfig) (io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.Log.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	handler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: cfg.LogLevel()})
	slog.SetDefault(slog.New(handler))
	return f, nil
}
