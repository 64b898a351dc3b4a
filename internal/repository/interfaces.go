package repository

import (
	"context"
	"time"

	"github.com/corpwatch/corpwatch/internal/domain"
)

// ChangeLogRepository persists classified change sets and serves historical
// change queries. Record writes the whole batch under one commit boundary:
// if it reports success, every record in the set is retrievable by Query, and
// partial writes are never observable.
type ChangeLogRepository interface {
	Record(ctx context.Context, changeSet domain.ChangeSet) error
	Query(ctx context.Context, start, end time.Time, typeFilter *domain.ChangeType) ([]domain.ChangeRecord, error)
	QueryByCIN(ctx context.Context, cin string) ([]domain.ChangeRecord, error)
	Recent(ctx context.Context, limit int) ([]domain.ChangeRecord, error)
	CountByType(ctx context.Context, start, end time.Time) (map[domain.ChangeType]int, error)
}

// SnapshotMetaRepository tracks capture runs in the durable store.
type SnapshotMetaRepository interface {
	Create(ctx context.Context, meta domain.SnapshotMeta) (int64, error)
	Finish(ctx context.Context, id int64, status domain.SnapshotStatus, filePath string, totalRecords int, errorMessage string) error
	List(ctx context.Context, limit int) ([]domain.SnapshotMeta, error)
}
