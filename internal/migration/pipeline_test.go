package migration

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/faceit-stats-bot/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) CheckDatabaseReady(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *RepoMock) AcquireMigrationLock(ctx context.Context, attempts int, delay time.Duration) (func() error, error) {
	args := m.Called(ctx, attempts, delay)
	release, _ := args.Get(0).(func() error)
	return release, args.Error(1)
}

func (m *RepoMock) CreateUserWithSubscription(ctx context.Context, user models.User, sub models.Subscription) (string, error) {
	args := m.Called(ctx, user, sub)
	return args.String(0), args.Error(1)
}

func (m *RepoMock) TruncateUserData(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *RepoMock) CountUsers(ctx context.Context) (int, int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *RepoMock) TierDistribution(ctx context.Context) (map[models.Tier]int, error) {
	args := m.Called(ctx)
	dist, _ := args.Get(0).(map[models.Tier]int)
	return dist, args.Error(1)
}

func (m *RepoMock) InsertMigrationLog(ctx context.Context, entry models.MigrationLog) (string, error) {
	args := m.Called(ctx, entry)
	return args.String(0), args.Error(1)
}

func (m *RepoMock) ListMigrationLogs(ctx context.Context, limit int) ([]*models.MigrationLog, error) {
	args := m.Called(ctx, limit)
	logs, _ := args.Get(0).([]*models.MigrationLog)
	return logs, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const threeUsers = `{"users":[
	{"user_id":1,"subscription":{"tier":"premium"}},
	{"user_id":2,"faceit_player_id":"fp-2","faceit_nickname":"two"},
	{"user_id":3}
]}`

func lockMocks(repo *RepoMock) {
	repo.On("AcquireMigrationLock", mock.Anything, lockAttempts, lockDelay).
		Return(func() error { return nil }, nil).Once()
}

func TestRun_Success(t *testing.T) {
	repo := new(RepoMock)
	lockMocks(repo)
	repo.On("CheckDatabaseReady", mock.Anything).Return(nil).Once()
	repo.On("CreateUserWithSubscription", mock.Anything, mock.Anything, mock.Anything).
		Return("id", nil).Times(3)
	repo.On("CountUsers", mock.Anything).Return(3, 1, nil).Once()
	repo.On("TierDistribution", mock.Anything).
		Return(map[models.Tier]int{models.TierFree: 2, models.TierPremium: 1}, nil).Once()
	repo.On("InsertMigrationLog", mock.Anything, mock.MatchedBy(func(e models.MigrationLog) bool {
		return e.Success && e.MigratedCount == 3 && e.FailedCount == 0
	})).Return("log-1", nil).Once()

	p := New(repo, newNoopLogger(), Options{SkipBackup: true, BatchSize: 2, Concurrency: 2})
	result, err := p.Run(context.Background(), writeSource(t, threeUsers))

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.TotalRecords)
	assert.Equal(t, 3, result.MigratedCount)
	assert.Zero(t, result.FailedCount)
	assert.Nil(t, result.BackupPath)
	repo.AssertExpectations(t)
}

func TestRun_BadRecordSkipped(t *testing.T) {
	source := `{"users":[
		{"user_id":1},
		{"faceit_nickname":"no-id"},
		{"user_id":3}
	]}`

	repo := new(RepoMock)
	lockMocks(repo)
	repo.On("CheckDatabaseReady", mock.Anything).Return(nil).Once()
	repo.On("CreateUserWithSubscription", mock.Anything, mock.Anything, mock.Anything).
		Return("id", nil).Times(2)
	repo.On("CountUsers", mock.Anything).Return(2, 0, nil).Once()
	repo.On("TierDistribution", mock.Anything).
		Return(map[models.Tier]int{models.TierFree: 2}, nil).Once()
	repo.On("InsertMigrationLog", mock.Anything, mock.MatchedBy(func(e models.MigrationLog) bool {
		return !e.Success && e.MigratedCount == 2 && e.FailedCount == 1
	})).Return("log-1", nil).Once()

	p := New(repo, newNoopLogger(), Options{SkipBackup: true})
	result, err := p.Run(context.Background(), writeSource(t, source))

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 2, result.MigratedCount)
	assert.Equal(t, 1, result.FailedCount)
	assert.NotEmpty(t, result.Errors)
	repo.AssertExpectations(t)
}

func TestRun_DryRun(t *testing.T) {
	repo := new(RepoMock)
	lockMocks(repo)
	repo.On("CheckDatabaseReady", mock.Anything).Return(nil).Once()

	p := New(repo, newNoopLogger(), Options{SkipBackup: true, DryRun: true})
	result, err := p.Run(context.Background(), writeSource(t, threeUsers))

	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.True(t, result.Success)
	assert.Zero(t, result.MigratedCount)
	repo.AssertNotCalled(t, "CreateUserWithSubscription")
	repo.AssertExpectations(t)
}

func TestRun_TruncateAndBackup(t *testing.T) {
	repo := new(RepoMock)
	lockMocks(repo)
	repo.On("CheckDatabaseReady", mock.Anything).Return(nil).Once()
	repo.On("TruncateUserData", mock.Anything).Return(nil).Once()
	repo.On("CreateUserWithSubscription", mock.Anything, mock.Anything, mock.Anything).
		Return("id", nil).Times(3)
	repo.On("CountUsers", mock.Anything).Return(3, 1, nil).Once()
	repo.On("TierDistribution", mock.Anything).
		Return(map[models.Tier]int{models.TierFree: 2, models.TierPremium: 1}, nil).Once()
	repo.On("InsertMigrationLog", mock.Anything, mock.Anything).Return("log-1", nil).Once()

	sourcePath := writeSource(t, threeUsers)
	p := New(repo, newNoopLogger(), Options{Truncate: true, BackupDir: t.TempDir()})
	result, err := p.Run(context.Background(), sourcePath)

	require.NoError(t, err)
	require.NotNil(t, result.BackupPath)
	backup, err := os.ReadFile(*result.BackupPath)
	require.NoError(t, err)
	assert.JSONEq(t, threeUsers, string(backup))
	repo.AssertExpectations(t)
}

func TestRun_IntegrityMismatch(t *testing.T) {
	repo := new(RepoMock)
	lockMocks(repo)
	repo.On("CheckDatabaseReady", mock.Anything).Return(nil).Once()
	repo.On("TruncateUserData", mock.Anything).Return(nil).Once()
	repo.On("CreateUserWithSubscription", mock.Anything, mock.Anything, mock.Anything).
		Return("id", nil).Times(3)
	repo.On("CountUsers", mock.Anything).Return(5, 1, nil).Once()
	repo.On("TierDistribution", mock.Anything).
		Return(map[models.Tier]int{models.TierFree: 2, models.TierPremium: 1}, nil).Once()
	repo.On("InsertMigrationLog", mock.Anything, mock.MatchedBy(func(e models.MigrationLog) bool {
		return !e.Success
	})).Return("log-1", nil).Once()

	p := New(repo, newNoopLogger(), Options{SkipBackup: true, Truncate: true})
	result, err := p.Run(context.Background(), writeSource(t, threeUsers))

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Errors)
	repo.AssertExpectations(t)
}

func TestRun_MissingSource(t *testing.T) {
	p := New(new(RepoMock), newNoopLogger(), Options{SkipBackup: true})
	_, err := p.Run(context.Background(), filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestRollback(t *testing.T) {
	repo := new(RepoMock)
	lockMocks(repo)
	repo.On("TruncateUserData", mock.Anything).Return(nil).Once()

	dir := t.TempDir()
	backupPath := filepath.Join(dir, "users.json.backup")
	restoreTo := filepath.Join(dir, "users.json")
	require.NoError(t, os.WriteFile(backupPath, []byte(threeUsers), 0o644))

	p := New(repo, newNoopLogger(), Options{})
	err := p.Rollback(context.Background(), backupPath, restoreTo)

	require.NoError(t, err)
	restored, err := os.ReadFile(restoreTo)
	require.NoError(t, err)
	assert.JSONEq(t, threeUsers, string(restored))
	repo.AssertExpectations(t)
}

func TestLoad(t *testing.T) {
	t.Run("missing users key", func(t *testing.T) {
		_, err := Load(writeSource(t, `{"accounts":[]}`))
		assert.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := Load(writeSource(t, `{"users":`))
		assert.Error(t, err)
	})

	t.Run("empty users is valid", func(t *testing.T) {
		src, err := Load(writeSource(t, `{"users":[]}`))
		require.NoError(t, err)
		assert.Empty(t, src.Users)
	})
}
