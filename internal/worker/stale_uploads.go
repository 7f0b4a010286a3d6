package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// UploadExpirer marks uploads stuck in "uploading" as failed. *radiograph.Service implements it.
type UploadExpirer interface {
	ExpireStale(ctx context.Context, after time.Duration) (int, error)
}

// StaleUploadsWorker periodically fails radiograph uploads the browser never finished, so the
// patient file offers a retry instead of a spinner that never ends.
type StaleUploadsWorker struct {
	expirer  UploadExpirer
	after    time.Duration
	interval time.Duration
	logger   zerolog.Logger
}

func NewStaleUploadsWorker(expirer UploadExpirer, after, interval time.Duration, logger zerolog.Logger) *StaleUploadsWorker {
	return &StaleUploadsWorker{
		expirer:  expirer,
		after:    after,
		interval: interval,
		logger:   logger.With().Str("worker", "stale_uploads").Logger(),
	}
}

// Start runs one sweep right away, then one per interval until ctx is done.
func (w *StaleUploadsWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info().Dur("after", w.after).Dur("interval", w.interval).Msg("starting")
	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("stopping")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *StaleUploadsWorker) sweep(ctx context.Context) {
	n, err := w.expirer.ExpireStale(ctx, w.after)
	if err != nil {
		w.logger.Error().Err(err).Msg("sweep failed")
		return
	}
	if n > 0 {
		w.logger.Info().Int("expired", n).Msg("marked stale uploads as failed")
	}
}
