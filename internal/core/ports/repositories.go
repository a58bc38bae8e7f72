package ports

import (
	"context"
	"time"

	"github.com/apache/bigtop-manager-sub000/internal/domain"
)

type SnapshotRepository interface {
	Save(ctx context.Context, snapshot *domain.ConfigSnapshot) error
	GetBySession(ctx context.Context, sessionID string) ([]domain.ConfigSnapshot, error)
	DeleteBySession(ctx context.Context, sessionID string) error
}

type JobRepository interface {
	Upsert(ctx context.Context, record *domain.JobRecord) error
	GetByJobID(ctx context.Context, jobID uint) (*domain.JobRecord, error)
	GetAll(ctx context.Context, limit int) ([]domain.JobRecord, error)
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type TimelineRepository interface {
	Create(ctx context.Context, event *domain.TimelineEvent) error
	GetByResource(ctx context.Context, resourceType string, resourceID string) ([]domain.TimelineEvent, error)
	GetAll(ctx context.Context, limit int) ([]domain.TimelineEvent, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
