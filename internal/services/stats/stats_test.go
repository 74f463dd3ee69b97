package stats

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/faceit-stats-bot/internal/faceit"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/lib/errs"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	args := m.Called(ctx, telegramID)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *RepoMock) GetPlayerStats(ctx context.Context, nickname, game string, now time.Time) (*models.PlayerStatsEntry, error) {
	args := m.Called(ctx, nickname, game, now)
	entry, _ := args.Get(0).(*models.PlayerStatsEntry)
	return entry, args.Error(1)
}

func (m *RepoMock) UpsertPlayerStats(ctx context.Context, entry models.PlayerStatsEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *RepoMock) GetMatch(ctx context.Context, matchID string, now time.Time) (*models.MatchEntry, error) {
	args := m.Called(ctx, matchID, now)
	entry, _ := args.Get(0).(*models.MatchEntry)
	return entry, args.Error(1)
}

func (m *RepoMock) UpsertMatch(ctx context.Context, entry models.MatchEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *RepoMock) PurgeExpiredStats(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *RepoMock) CreateMatchAnalysis(ctx context.Context, a models.MatchAnalysis) (string, error) {
	args := m.Called(ctx, a)
	return args.String(0), args.Error(1)
}

func (m *RepoMock) ListMatchAnalyses(ctx context.Context, userID string, opts models.ListOptions) ([]*models.MatchAnalysis, error) {
	args := m.Called(ctx, userID, opts)
	list, _ := args.Get(0).([]*models.MatchAnalysis)
	return list, args.Error(1)
}

func (m *RepoMock) InsertMetric(ctx context.Context, metric models.Metric) error {
	return m.Called(ctx, metric).Error(0)
}

func (m *RepoMock) PruneMetrics(ctx context.Context, olderThan time.Time) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

type FaceitMock struct{ mock.Mock }

func (m *FaceitMock) GetPlayerByNickname(ctx context.Context, nickname string) (*faceit.Player, error) {
	args := m.Called(ctx, nickname)
	player, _ := args.Get(0).(*faceit.Player)
	return player, args.Error(1)
}

func (m *FaceitMock) GetMatch(ctx context.Context, matchID string) (*faceit.Match, error) {
	args := m.Called(ctx, matchID)
	match, _ := args.Get(0).(*faceit.Match)
	return match, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestGetPlayerStats(t *testing.T) {
	raw := json.RawMessage(`{"player_id":"fp-1","nickname":"s1mple"}`)

	t.Run("served from database cache", func(t *testing.T) {
		repo := new(RepoMock)
		fc := new(FaceitMock)
		entry := &models.PlayerStatsEntry{
			PlayerID: "fp-1", Nickname: "s1mple", Game: "cs2", Data: raw,
		}
		repo.On("GetPlayerStats", mock.Anything, "s1mple", "cs2", mock.Anything).Return(entry, nil).Once()
		repo.On("InsertMetric", mock.Anything, mock.Anything).Return(nil).Once()

		svc := New(repo, fc, newNoopLogger())
		got, err := svc.GetPlayerStats(context.Background(), "s1mple", "")

		require.NoError(t, err)
		assert.True(t, got.FromCache)
		assert.Equal(t, "fp-1", got.PlayerID)
		repo.AssertExpectations(t)
		fc.AssertNotCalled(t, "GetPlayerByNickname")
	})

	t.Run("miss falls through to API and fills cache", func(t *testing.T) {
		repo := new(RepoMock)
		fc := new(FaceitMock)
		player := &faceit.Player{PlayerID: "fp-1", Nickname: "s1mple", Raw: raw}
		repo.On("GetPlayerStats", mock.Anything, "s1mple", "cs2", mock.Anything).
			Return(nil, errs.ErrNotFound).Once()
		fc.On("GetPlayerByNickname", mock.Anything, "s1mple").Return(player, nil).Once()
		repo.On("UpsertPlayerStats", mock.Anything, mock.MatchedBy(func(e models.PlayerStatsEntry) bool {
			return e.PlayerID == "fp-1" && e.Game == "cs2" && e.ExpiresAt.After(time.Now())
		})).Return(nil).Once()
		repo.On("InsertMetric", mock.Anything, mock.Anything).Return(nil).Once()

		svc := New(repo, fc, newNoopLogger())
		got, err := svc.GetPlayerStats(context.Background(), "s1mple", "cs2")

		require.NoError(t, err)
		assert.False(t, got.FromCache)
		assert.Equal(t, raw, got.Data)
		repo.AssertExpectations(t)
		fc.AssertExpectations(t)
	})

	t.Run("unknown nickname", func(t *testing.T) {
		repo := new(RepoMock)
		fc := new(FaceitMock)
		repo.On("GetPlayerStats", mock.Anything, "ghost", "cs2", mock.Anything).
			Return(nil, errs.ErrNotFound).Once()
		fc.On("GetPlayerByNickname", mock.Anything, "ghost").Return(nil, faceit.ErrPlayerNotFound).Once()

		svc := New(repo, fc, newNoopLogger())
		_, err := svc.GetPlayerStats(context.Background(), "ghost", "cs2")

		var vErr *errs.ValidationError
		assert.ErrorAs(t, err, &vErr)
		repo.AssertExpectations(t)
		fc.AssertExpectations(t)
	})
}

func TestAnalyzeMatch(t *testing.T) {
	user := &models.User{ID: "u-1", TelegramID: 100}
	matchRaw := json.RawMessage(`{"match_id":"m-1","status":"FINISHED"}`)

	t.Run("uses cached match data", func(t *testing.T) {
		repo := new(RepoMock)
		fc := new(FaceitMock)
		repo.On("GetUserByTelegramID", mock.Anything, int64(100)).Return(user, nil).Once()
		repo.On("GetMatch", mock.Anything, "m-1", mock.Anything).
			Return(&models.MatchEntry{MatchID: "m-1", Data: matchRaw}, nil).Once()
		repo.On("CreateMatchAnalysis", mock.Anything, mock.MatchedBy(func(a models.MatchAnalysis) bool {
			return a.UserID == "u-1" && a.MatchID == "m-1" &&
				a.Status == models.MatchFinished && a.CachedDataUsed
		})).Return("a-1", nil).Once()
		repo.On("InsertMetric", mock.Anything, mock.Anything).Return(nil).Once()

		svc := New(repo, fc, newNoopLogger())
		got, err := svc.AnalyzeMatch(context.Background(), 100, "m-1")

		require.NoError(t, err)
		assert.Equal(t, "a-1", got.ID)
		assert.True(t, got.CachedDataUsed)
		repo.AssertExpectations(t)
		fc.AssertNotCalled(t, "GetMatch")
	})

	t.Run("fetches match from API on miss", func(t *testing.T) {
		repo := new(RepoMock)
		fc := new(FaceitMock)
		match := &faceit.Match{MatchID: "m-1", Status: "ongoing", Raw: matchRaw}
		repo.On("GetUserByTelegramID", mock.Anything, int64(100)).Return(user, nil).Once()
		repo.On("GetMatch", mock.Anything, "m-1", mock.Anything).Return(nil, errs.ErrNotFound).Once()
		fc.On("GetMatch", mock.Anything, "m-1").Return(match, nil).Once()
		repo.On("UpsertMatch", mock.Anything, mock.MatchedBy(func(e models.MatchEntry) bool {
			return e.MatchID == "m-1"
		})).Return(nil).Once()
		repo.On("CreateMatchAnalysis", mock.Anything, mock.MatchedBy(func(a models.MatchAnalysis) bool {
			return a.Status == models.MatchOngoing && !a.CachedDataUsed
		})).Return("a-2", nil).Once()
		repo.On("InsertMetric", mock.Anything, mock.Anything).Return(nil).Once()

		svc := New(repo, fc, newNoopLogger())
		got, err := svc.AnalyzeMatch(context.Background(), 100, "m-1")

		require.NoError(t, err)
		assert.False(t, got.CachedDataUsed)
		repo.AssertExpectations(t)
		fc.AssertExpectations(t)
	})

	t.Run("unknown match", func(t *testing.T) {
		repo := new(RepoMock)
		fc := new(FaceitMock)
		repo.On("GetUserByTelegramID", mock.Anything, int64(100)).Return(user, nil).Once()
		repo.On("GetMatch", mock.Anything, "m-404", mock.Anything).Return(nil, errs.ErrNotFound).Once()
		fc.On("GetMatch", mock.Anything, "m-404").Return(nil, faceit.ErrMatchNotFound).Once()

		svc := New(repo, fc, newNoopLogger())
		_, err := svc.AnalyzeMatch(context.Background(), 100, "m-404")

		var vErr *errs.ValidationError
		assert.ErrorAs(t, err, &vErr)
		repo.AssertExpectations(t)
	})
}

func TestPurgeExpired(t *testing.T) {
	repo := new(RepoMock)
	repo.On("PurgeExpiredStats", mock.Anything, mock.Anything).Return(int64(7), nil).Once()

	svc := New(repo, new(FaceitMock), newNoopLogger())
	n, err := svc.PurgeExpired(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	repo.AssertExpectations(t)
}
