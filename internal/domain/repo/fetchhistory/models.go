package fetchhistory

import (
	"time"

	"github.com/gerritevents/gerrit-events/internal/domain/entity"
)

// Record is the value stored per scheduler host.
type Record struct {
	StartedAt time.Time
	Duration  time.Duration
	ExitCode  int
	Error     string `json:",omitempty"`
}

func mapToModels(record entity.FetchRecord) Record {
	return Record{
		StartedAt: record.StartedAt,
		Duration:  record.Duration,
		ExitCode:  record.ExitCode,
		Error:     record.Error,
	}
}

func mapToEntity(project, host string, record Record) entity.FetchRecord {
	return entity.FetchRecord{
		Project:   project,
		Host:      host,
		StartedAt: record.StartedAt,
		Duration:  record.Duration,
		ExitCode:  record.ExitCode,
		Error:     record.Error,
	}
}
