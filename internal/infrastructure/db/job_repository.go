package db

import (
	"context"
	"errors"
	"time"

	"github.com/apache/bigtop-manager-sub000/internal/core/ports"
	"github.com/apache/bigtop-manager-sub000/internal/domain"
	"github.com/apache/bigtop-manager-sub000/internal/infrastructure/logger"
	"gorm.io/gorm"
)

type jobRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRepository(db *gorm.DB, log *logger.Logger) ports.JobRepository {
	return &jobRepository{db: db, log: log}
}

// Upsert creates the record for a job id or overwrites its progress fields.
func (r *jobRepository) Upsert(ctx context.Context, record *domain.JobRecord) error {
	var existing domain.JobRecord
	err := r.db.WithContext(ctx).Where("job_id = ?", record.JobID).First(&existing).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			r.log.Errorw("job_repo_get_for_upsert_failed", "job_id", record.JobID, "error", err)
			return err
		}
		if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
			r.log.Errorw("job_repo_create_failed", "job_id", record.JobID, "error", err)
			return err
		}
		r.log.Infow("job_repo_create_ok", "id", record.ID, "job_id", record.JobID, "status", record.Status)
		return nil
	}

	existing.ClusterID = record.ClusterID
	existing.Name = record.Name
	existing.Status = record.Status
	existing.Percent = record.Percent
	existing.State = record.State
	existing.Error = record.Error
	existing.Retries = record.Retries
	if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
		r.log.Errorw("job_repo_update_failed", "job_id", record.JobID, "error", err)
		return err
	}
	*record = existing
	r.log.Infow("job_repo_update_ok", "job_id", record.JobID, "status", record.Status)
	return nil
}

func (r *jobRepository) GetByJobID(ctx context.Context, jobID uint) (*domain.JobRecord, error) {
	var record domain.JobRecord
	if err := r.db.WithContext(ctx).Where("job_id = ?", jobID).First(&record).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			r.log.Errorw("job_repo_get_failed", "job_id", jobID, "error", err)
		}
		return nil, err
	}
	return &record, nil
}

func (r *jobRepository) GetAll(ctx context.Context, limit int) ([]domain.JobRecord, error) {
	var records []domain.JobRecord
	err := r.db.WithContext(ctx).
		Order("updated_at desc").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		r.log.Errorw("job_repo_list_failed", "error", err)
		return nil, err
	}
	return records, nil
}

// DeleteFinishedBefore permanently removes terminal records last updated before cutoff.
func (r *jobRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Unscoped().
		Where("updated_at < ? AND status IN ?", cutoff, []domain.JobStatus{domain.JobStatusSuccess, domain.JobStatusFailed}).
		Delete(&domain.JobRecord{})
	if res.Error != nil {
		r.log.Errorw("job_repo_cleanup_failed", "error", res.Error)
		return 0, res.Error
	}
	r.log.Infow("job_repo_cleanup_ok", "count", res.RowsAffected)
	return res.RowsAffected, nil
}
