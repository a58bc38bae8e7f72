package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/apache/bigtop-manager-sub000/internal/core/ports"
	"github.com/apache/bigtop-manager-sub000/internal/domain"
	"github.com/apache/bigtop-manager-sub000/internal/infrastructure/logger"
	"github.com/apache/bigtop-manager-sub000/pkg/utils/crypto"
	"gorm.io/gorm"
)

type snapshotRepository struct {
	db     *gorm.DB
	sealer *crypto.Sealer
	log    *logger.Logger
}

// NewSnapshotRepository stores config snapshots, sealing secret property values with sealer.
func NewSnapshotRepository(db *gorm.DB, sealer *crypto.Sealer, log *logger.Logger) ports.SnapshotRepository {
	return &snapshotRepository{db: db, sealer: sealer, log: log}
}

// Save replaces the stored snapshot of the same session and service.
func (r *snapshotRepository) Save(ctx context.Context, snapshot *domain.ConfigSnapshot) error {
	sealed, err := r.transform(snapshot.Sections, r.sealer.Seal)
	if err != nil {
		r.log.Errorw("snapshot_repo_seal_failed", "session_id", snapshot.SessionID, "service", snapshot.ServiceName, "error", err)
		return err
	}

	var existing domain.ConfigSnapshot
	err = r.db.WithContext(ctx).
		Where("session_id = ? AND service_name = ?", snapshot.SessionID, snapshot.ServiceName).
		First(&existing).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			r.log.Errorw("snapshot_repo_get_for_save_failed", "session_id", snapshot.SessionID, "service", snapshot.ServiceName, "error", err)
			return err
		}
		row := *snapshot
		row.Sections = sealed
		if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
			r.log.Errorw("snapshot_repo_create_failed", "session_id", snapshot.SessionID, "service", snapshot.ServiceName, "error", err)
			return err
		}
		snapshot.ID, snapshot.CreatedAt, snapshot.UpdatedAt = row.ID, row.CreatedAt, row.UpdatedAt
		r.log.Infow("snapshot_repo_create_ok", "id", row.ID, "session_id", snapshot.SessionID, "service", snapshot.ServiceName)
		return nil
	}

	existing.Sections = sealed
	if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
		r.log.Errorw("snapshot_repo_update_failed", "id", existing.ID, "error", err)
		return err
	}
	snapshot.ID, snapshot.CreatedAt, snapshot.UpdatedAt = existing.ID, existing.CreatedAt, existing.UpdatedAt
	r.log.Infow("snapshot_repo_update_ok", "id", existing.ID, "session_id", snapshot.SessionID, "service", snapshot.ServiceName)
	return nil
}

func (r *snapshotRepository) GetBySession(ctx context.Context, sessionID string) ([]domain.ConfigSnapshot, error) {
	var rows []domain.ConfigSnapshot
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("service_name asc").
		Find(&rows).Error; err != nil {
		r.log.Errorw("snapshot_repo_get_by_session_failed", "session_id", sessionID, "error", err)
		return nil, err
	}
	for i := range rows {
		opened, err := r.transform(rows[i].Sections, r.sealer.Open)
		if err != nil {
			r.log.Errorw("snapshot_repo_open_failed", "id", rows[i].ID, "error", err)
			return nil, err
		}
		rows[i].Sections = opened
	}
	return rows, nil
}

func (r *snapshotRepository) DeleteBySession(ctx context.Context, sessionID string) error {
	res := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&domain.ConfigSnapshot{})
	if res.Error != nil {
		r.log.Errorw("snapshot_repo_delete_failed", "session_id", sessionID, "error", res.Error)
		return res.Error
	}
	r.log.Infow("snapshot_repo_delete_ok", "session_id", sessionID, "count", res.RowsAffected)
	return nil
}

// transform applies fn to the value of every secret property, returning a copy.
func (r *snapshotRepository) transform(in domain.Sections, fn func(string) (string, error)) (domain.Sections, error) {
	out := domain.Sections(domain.CloneSections(in))
	for i := range out {
		for j := range out[i].Properties {
			p := &out[i].Properties[j]
			if !crypto.IsSecret(p.Name) {
				continue
			}
			v, err := fn(p.Value)
			if err != nil {
				return nil, fmt.Errorf("%s/%s: %w", out[i].Name, p.Name, err)
			}
			p.Value = v
		}
	}
	return out, nil
}
