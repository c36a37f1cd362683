package repo

import (
	"context"

	"github.com/gerritevents/gerrit-events/internal/domain/entity"
	"github.com/gerritevents/gerrit-events/pkg/pipeline"
)

//go:generate mockgen -source=interfaces.go -package=mock -destination=./mock/mock_repo.go

type DeadLetterWriter interface {
	WriteDeadLetter(ctx context.Context, pErr pipeline.ErrProcessingError) error
}

type FetchHistoryWriter interface {
	WriteFetchRecord(ctx context.Context, record entity.FetchRecord) error
}

type FetchHistoryReader interface {
	GetFetchRecords(ctx context.Context, project string) ([]entity.FetchRecord, error)
}

type FetchHistory interface {
	FetchHistoryWriter
	FetchHistoryReader
}
