package stats

import (
	"context"
	"fmt"
	"log/slog"

	"marketplace/internal/logging"
	"marketplace/internal/queue"
	"marketplace/internal/services"
	"marketplace/internal/store"
	"marketplace/internal/worker"
)

// Indexer copies raw rows into the stats index.
type Indexer interface {
	IndexStatsRows(ctx context.Context, kind store.StatsKind, ids []int64) (int, error)
}

// IndexHandler executes index_stats tasks.
type IndexHandler struct {
	indexer Indexer
	logger  *slog.Logger
}

// NewIndexHandler returns a worker handler backed by indexer.
func NewIndexHandler(indexer Indexer, logger *slog.Logger) *IndexHandler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &IndexHandler{indexer: indexer, logger: logger}
}

// Execute indexes the rows named by the task payload.
func (h *IndexHandler) Execute(ctx context.Context, task *queue.Task) error {
	var payload IndexPayload
	if err := task.Decode(&payload); err != nil {
		return services.Wrap(services.ErrValidation, "stats", "decode", "malformed payload", err)
	}
	switch payload.Kind {
	case store.StatsUpdateCounts, store.StatsDownloadCounts, store.StatsInstalled, store.StatsCollectionCounts:
	default:
		return services.Wrap(services.ErrValidation, "stats", "index", fmt.Sprintf("unknown stats kind %q", payload.Kind), nil)
	}
	n, err := h.indexer.IndexStatsRows(ctx, payload.Kind, payload.IDs)
	if err != nil {
		return err
	}
	logging.WithContext(ctx, h.logger).Debug("stats rows indexed",
		logging.String("kind", string(payload.Kind)),
		logging.Int("requested", len(payload.IDs)),
		logging.Int("indexed", n),
	)
	return nil
}

// HealthCheck reports the handler as ready once an indexer is wired.
func (h *IndexHandler) HealthCheck(context.Context) worker.Health {
	if h.indexer == nil {
		return worker.Unhealthy("stats", "no stats store configured")
	}
	return worker.Healthy("stats")
}
