package scheduler

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"

	"github.com/gerritevents/gerrit-events/internal/domain/entity"
	"github.com/gerritevents/gerrit-events/internal/domain/repo"
	"github.com/gerritevents/gerrit-events/pkg/pipeline"
)

// HistoryRecorder reports the outcome of every fetch to the fetch history.
// Failing to write the history never fails the fetch.
type HistoryRecorder struct {
	fetch  pipeline.Processing[entity.Repository]
	writer repo.FetchHistoryWriter
	clock  clockwork.Clock
	host   string

	logger *logr.Logger
}

func NewHistoryRecorder(fetch pipeline.Processing[entity.Repository], writer repo.FetchHistoryWriter, clock clockwork.Clock, host string) HistoryRecorder {
	return HistoryRecorder{
		fetch:  fetch,
		writer: writer,
		clock:  clock,
		host:   host,
	}
}

func (h HistoryRecorder) WithLogger(logger logr.Logger) HistoryRecorder {
	h.logger = &logger

	return h
}

func (h HistoryRecorder) Process(ctx context.Context, repository entity.Repository) error {
	start := h.clock.Now()

	fetchErr := h.fetch.Process(ctx, repository)

	record := entity.FetchRecord{
		Project:   repository.Name,
		Host:      h.host,
		StartedAt: start.UTC(),
		Duration:  h.clock.Since(start),
		ExitCode:  ExitCode(fetchErr),
	}

	if fetchErr != nil {
		record.Error = fetchErr.Error()
	}

	err := h.writer.WriteFetchRecord(ctx, record)
	if err != nil && h.logger != nil {
		h.logger.Error(err, "Failed to record fetch", "project", repository.Name)
	}

	return fetchErr
}
