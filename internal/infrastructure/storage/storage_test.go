package storage

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"genderage/internal/domain/entity"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenDB(DBConfig{SQLiteFile: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	return db
}

func record(owner, gender, age string, at time.Time) entity.DetectionRecord {
	return entity.DetectionRecord{
		CreatedAt: at,
		Owner:     owner,
		Channel:   entity.ChannelAPI,
		Face: entity.FaceRecord{
			BoxX: 1, BoxY: 2, BoxW: 30, BoxH: 30,
			Gender: gender, GenderConfidence: 91.5,
			AgeGroup: age, AgeConfidence: 60.25,
			Source: entity.SourceModel,
		},
		SnapshotKey: "api/x.jpg",
	}
}

func TestOpenDB_RequiresTarget(t *testing.T) {
	_, err := OpenDB(DBConfig{})
	require.Error(t, err)
}

func TestDetectionRepository_SaveAndList(t *testing.T) {
	repo := NewDetectionRepository(openTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Save(ctx, []entity.DetectionRecord{
		record("alice", "Male", "25-32", base),
		record("alice", "Female", "0-2", base.Add(time.Minute)),
		record("bob", "Male", "60+", base),
	}))
	require.NoError(t, repo.Save(ctx, nil))

	records, err := repo.List(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "Female", records[0].Face.Gender)
	require.Equal(t, "Male", records[1].Face.Gender)
	require.Equal(t, 91.5, records[1].Face.GenderConfidence)
	require.Equal(t, entity.SourceModel, records[1].Face.Source)
	require.Equal(t, "api/x.jpg", records[1].SnapshotKey)
	require.NotZero(t, records[1].ID)

	records, err = repo.List(ctx, "alice", 1)
	require.NoError(t, err)
	require.Len(t, records, 1)

	records, err = repo.List(ctx, "nobody", 10)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestDetectionRepository_HasSnapshot(t *testing.T) {
	repo := NewDetectionRepository(openTestDB(t))
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, []entity.DetectionRecord{
		record("alice", "Male", "25-32", time.Now()),
		record("alice", "Female", "0-2", time.Now()),
	}))

	ok, err := repo.HasSnapshot(ctx, "alice", "api/x.jpg")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.HasSnapshot(ctx, "bob", "api/x.jpg")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = repo.HasSnapshot(ctx, "alice", "")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDetectionRepository_Stats(t *testing.T) {
	repo := NewDetectionRepository(openTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Save(ctx, []entity.DetectionRecord{
		record("alice", "Male", "25-32", now),
		record("alice", "Male", "0-2", now),
		record("alice", "Female", "25-32", now),
		record("bob", "Female", "60+", now),
	}))

	stats, err := repo.Stats(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, 3, stats.Total)
	require.Equal(t, map[string]int{"Male": 2, "Female": 1}, stats.ByGender)
	require.Equal(t, map[string]int{"25-32": 2, "0-2": 1}, stats.ByAge)
	require.Equal(t, 3, stats.BySource[entity.SourceModel])

	stats, err = repo.Stats(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 4, stats.Total)
	require.Equal(t, 2, stats.ByGender["Female"])
}

func TestAccountRepository(t *testing.T) {
	repo := NewAccountRepository(openTestDB(t))
	ctx := context.Background()

	account := &entity.Account{Username: "admin", PasswordHash: "h", PassSalt: "s", APIKey: "k1", CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.Create(ctx, account))
	require.NotZero(t, account.ID)

	got, err := repo.ByUsername(ctx, "admin")
	require.NoError(t, err)
	require.Equal(t, "k1", got.APIKey)

	got, err = repo.ByAPIKey(ctx, "k1")
	require.NoError(t, err)
	require.Equal(t, account.ID, got.ID)

	require.NoError(t, repo.UpdateAPIKey(ctx, account.ID, "k2"))
	_, err = repo.ByAPIKey(ctx, "k1")
	require.ErrorIs(t, err, entity.ErrNotFound)

	require.ErrorIs(t, repo.UpdateAPIKey(ctx, 999, "k3"), entity.ErrNotFound)

	_, err = repo.ByUsername(ctx, "ghost")
	require.ErrorIs(t, err, entity.ErrNotFound)

	dup := &entity.Account{Username: "admin", APIKey: "other"}
	require.Error(t, repo.Create(ctx, dup))
}

func TestDiskSnapshotStore(t *testing.T) {
	store := NewDiskSnapshotStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "api/2024/01/01/a.jpg", []byte("jpeg")))
	rc, err := store.Open(ctx, "api/2024/01/01/a.jpg")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, []byte("jpeg"), data)

	_, err = store.Open(ctx, "api/missing.jpg")
	require.ErrorIs(t, err, entity.ErrNotFound)

	require.Error(t, store.Save(ctx, "../escape.jpg", []byte("x")))
	_, err = store.Open(ctx, "../../etc/passwd")
	require.ErrorIs(t, err, entity.ErrNotFound)
}

func TestS3SnapshotStore_RemotePath(t *testing.T) {
	_, err := NewS3SnapshotStore(S3Config{})
	require.Error(t, err)

	store, err := NewS3SnapshotStore(S3Config{Bucket: "b", Region: "us-east-1", Prefix: "snaps/"})
	require.NoError(t, err)
	require.Equal(t, "snaps/api/a.jpg", store.remotePath("/api/a.jpg"))

	store.cfg.Prefix = ""
	require.Equal(t, "api/a.jpg", store.remotePath("api/a.jpg"))
}

func TestMemoryUserRepository(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	user, err := repo.Get(ctx, 7, 70)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)
	require.Equal(t, 1, repo.Count())

	require.NoError(t, repo.UpdateState(ctx, 7, entity.StateAwaitingPhoto))
	user, err = repo.Get(ctx, 7, 70)
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingPhoto, user.State)

	require.NoError(t, repo.UpdateState(ctx, 8, entity.StateProcessing))
	require.Equal(t, 1, repo.Count())
}
