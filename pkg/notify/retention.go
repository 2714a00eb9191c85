package notify

import (
	"context"
	"log/slog"
	"time"
)

// RetentionWorker periodically prunes old recent-edit records.
type RetentionWorker struct {
	log    *EditLog
	cfg    *RetentionConfig
	logger *slog.Logger
}

// NewRetentionWorker creates a new RetentionWorker.
func NewRetentionWorker(log *EditLog, cfg *RetentionConfig, logger *slog.Logger) *RetentionWorker {
	if cfg == nil {
		cfg = DefaultRetentionConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetentionWorker{log: log, cfg: cfg, logger: logger}
}

// Run starts the retention worker. It runs until the context is cancelled.
func (w *RetentionWorker) Run(ctx context.Context) {
	if w.log == nil || w.cfg.MaxAge <= 0 {
		w.logger.Info("edit retention worker disabled",
			"hasLog", w.log != nil,
			"maxAge", w.cfg.MaxAge.String())
		return
	}

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.logger.Info("edit retention worker started",
		"maxAge", w.cfg.MaxAge.String(),
		"interval", w.cfg.Interval.String())

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("edit retention worker stopped")
			return
		case <-ticker.C:
			w.prune()
		}
	}
}

// prune performs a single retention pass.
func (w *RetentionWorker) prune() {
	cutoff := time.Now().Add(-w.cfg.MaxAge)
	deleted, err := w.log.DeleteOlderThan(cutoff)
	if err != nil {
		w.logger.Error("edit retention pass failed", "error", err)
	} else if deleted > 0 {
		w.logger.Info("edit retention pass completed",
			"deleted", deleted,
			"cutoff", cutoff.Format(time.RFC3339))
	}
}
