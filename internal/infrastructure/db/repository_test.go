package db

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/apache/bigtop-manager-sub000/internal/domain"
	"github.com/apache/bigtop-manager-sub000/internal/infrastructure/logger"
	"github.com/apache/bigtop-manager-sub000/pkg/utils/crypto"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := database.DB()
	require.NoError(t, err)
	// every connection to :memory: is a fresh database
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, RunMigrations(database))
	t.Cleanup(func() { _ = Close(database) })
	return database
}

func hiveSections(port, password string) domain.Sections {
	return domain.Sections{{
		Name: "hive-site",
		Properties: []domain.Property{
			{Name: "hive.metastore.port", Value: port},
			{Name: "javax.jdo.option.ConnectionPassword", Value: password},
		},
	}}
}

func TestSnapshotRepository_SealsSecrets(t *testing.T) {
	database := newTestDB(t)
	repo := NewSnapshotRepository(database, crypto.NewSealer("test-key"), logger.NewNop())
	ctx := context.Background()

	snap := &domain.ConfigSnapshot{SessionID: "s1", ServiceName: "hive", Sections: hiveSections("9083", "hunter2")}
	require.NoError(t, repo.Save(ctx, snap))
	assert.NotZero(t, snap.ID)
	assert.Equal(t, "hunter2", snap.Sections[0].Properties[1].Value, "the caller's copy stays plain")

	var raw domain.ConfigSnapshot
	require.NoError(t, database.First(&raw, snap.ID).Error)
	assert.Equal(t, "9083", raw.Sections[0].Properties[0].Value)
	assert.True(t, strings.HasPrefix(raw.Sections[0].Properties[1].Value, "enc:"))

	got, err := repo.GetBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, hiveSections("9083", "hunter2"), got[0].Sections)
}

func TestSnapshotRepository_SaveReplaces(t *testing.T) {
	database := newTestDB(t)
	repo := NewSnapshotRepository(database, crypto.NewSealer(""), logger.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &domain.ConfigSnapshot{SessionID: "s1", ServiceName: "hive", Sections: hiveSections("9083", "a")}))
	require.NoError(t, repo.Save(ctx, &domain.ConfigSnapshot{SessionID: "s1", ServiceName: "hive", Sections: hiveSections("9084", "a")}))
	require.NoError(t, repo.Save(ctx, &domain.ConfigSnapshot{SessionID: "s1", ServiceName: "hadoop"}))
	require.NoError(t, repo.Save(ctx, &domain.ConfigSnapshot{SessionID: "s2", ServiceName: "hive"}))

	got, err := repo.GetBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "hadoop", got[0].ServiceName)
	assert.Equal(t, "hive", got[1].ServiceName)
	assert.Equal(t, "9084", got[1].Sections[0].Properties[0].Value)
}

func TestSnapshotRepository_DeleteBySession(t *testing.T) {
	database := newTestDB(t)
	repo := NewSnapshotRepository(database, crypto.NewSealer(""), logger.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &domain.ConfigSnapshot{SessionID: "s1", ServiceName: "hive"}))
	require.NoError(t, repo.DeleteBySession(ctx, "s1"))

	got, err := repo.GetBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, got)

	// the unique index only covers live rows
	require.NoError(t, repo.Save(ctx, &domain.ConfigSnapshot{SessionID: "s1", ServiceName: "hive"}))
}

func TestSnapshotRepository_SealedWithoutKey(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	sealed := NewSnapshotRepository(database, crypto.NewSealer("test-key"), logger.NewNop())
	require.NoError(t, sealed.Save(ctx, &domain.ConfigSnapshot{SessionID: "s1", ServiceName: "hive", Sections: hiveSections("1", "pw")}))

	plain := NewSnapshotRepository(database, crypto.NewSealer(""), logger.NewNop())
	_, err := plain.GetBySession(ctx, "s1")

	assert.ErrorIs(t, err, crypto.ErrInvalidKey)
}

func TestJobRepository_Upsert(t *testing.T) {
	database := newTestDB(t)
	repo := NewJobRepository(database, logger.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &domain.JobRecord{JobID: 5, ClusterID: 1, Name: "Add", Status: domain.JobStatusProcessing}))
	require.NoError(t, repo.Upsert(ctx, &domain.JobRecord{JobID: 5, ClusterID: 1, Name: "Add", Status: domain.JobStatusFailed, Percent: 100, Error: "boom", Retries: 1}))

	rec, err := repo.GetByJobID(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, rec.Status)
	assert.Equal(t, 100, rec.Percent)
	assert.Equal(t, "boom", rec.Error)
	assert.Equal(t, 1, rec.Retries)

	all, err := repo.GetAll(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = repo.GetByJobID(ctx, 99)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestJobRepository_DeleteFinishedBefore(t *testing.T) {
	database := newTestDB(t)
	repo := NewJobRepository(database, logger.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &domain.JobRecord{JobID: 1, Status: domain.JobStatusSuccess}))
	require.NoError(t, repo.Upsert(ctx, &domain.JobRecord{JobID: 2, Status: domain.JobStatusFailed}))
	require.NoError(t, repo.Upsert(ctx, &domain.JobRecord{JobID: 3, Status: domain.JobStatusProcessing}))

	n, err := repo.DeleteFinishedBefore(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = repo.DeleteFinishedBefore(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	all, err := repo.GetAll(ctx, 10)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, uint(3), all[0].JobID)

	// pruned job ids can be tracked again
	require.NoError(t, repo.Upsert(ctx, &domain.JobRecord{JobID: 1, Status: domain.JobStatusProcessing}))
}

func TestTimelineRepository(t *testing.T) {
	database := newTestDB(t)
	repo := NewTimelineRepository(database, logger.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.TimelineEvent{
		Type: domain.EventTypeWizardStarted, Status: domain.EventStatusSuccess,
		ResourceType: domain.ResourceTypeWizard, ResourceID: "s1",
		Meta: domain.JSONB{"cluster_id": 1},
	}))
	require.NoError(t, repo.Create(ctx, &domain.TimelineEvent{
		Type: domain.EventTypeCommandSubmit, Status: domain.EventStatusPending,
		ResourceType: domain.ResourceTypeJob, ResourceID: "7",
	}))

	byResource, err := repo.GetByResource(ctx, domain.ResourceTypeWizard, "s1")
	require.NoError(t, err)
	require.Len(t, byResource, 1)
	assert.Equal(t, domain.EventTypeWizardStarted, byResource[0].Type)
	assert.Equal(t, float64(1), byResource[0].Meta["cluster_id"])

	limited, err := repo.GetAll(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	n, err := repo.DeleteBefore(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	all, err := repo.GetAll(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, all)
}
