package user

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/faceit-stats-bot/internal/faceit"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/lib/errs"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) CreateUserWithSubscription(ctx context.Context, user models.User, sub models.Subscription) (string, error) {
	args := m.Called(ctx, user, sub)
	return args.String(0), args.Error(1)
}

func (m *RepoMock) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	args := m.Called(ctx, telegramID)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *RepoMock) GetUserByFaceitNickname(ctx context.Context, nickname string) (*models.User, error) {
	args := m.Called(ctx, nickname)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *RepoMock) LinkFaceitAccount(ctx context.Context, userID, playerID, nickname string) error {
	return m.Called(ctx, userID, playerID, nickname).Error(0)
}

func (m *RepoMock) UpdateUserSettings(ctx context.Context, userID, language string, notifications bool) error {
	return m.Called(ctx, userID, language, notifications).Error(0)
}

func (m *RepoMock) GetSubscriptionByUserID(ctx context.Context, userID string) (*models.Subscription, error) {
	args := m.Called(ctx, userID)
	sub, _ := args.Get(0).(*models.Subscription)
	return sub, args.Error(1)
}

type FaceitMock struct{ mock.Mock }

func (m *FaceitMock) GetPlayerByNickname(ctx context.Context, nickname string) (*faceit.Player, error) {
	args := m.Called(ctx, nickname)
	player, _ := args.Get(0).(*faceit.Player)
	return player, args.Error(1)
}

type CacheMock struct{ mock.Mock }

func (m *CacheMock) Invalidate(key string) error {
	return m.Called(key).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestRegister(t *testing.T) {
	user := &models.User{ID: "u-1", TelegramID: 100, Language: "en"}

	t.Run("new user gets free subscription", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("CreateUserWithSubscription", mock.Anything,
			mock.MatchedBy(func(u models.User) bool {
				return u.TelegramID == 100 && u.Language == "en" && u.NotificationsEnabled
			}),
			mock.MatchedBy(func(s models.Subscription) bool {
				return s.Tier == models.TierFree && !s.LastResetDate.IsZero()
			})).Return("u-1", nil).Once()
		repo.On("GetUserByTelegramID", mock.Anything, int64(100)).Return(user, nil).Once()

		svc := New(repo, new(FaceitMock), new(CacheMock), newNoopLogger())
		got, err := svc.Register(context.Background(), models.DummyRegisterUser{TelegramID: 100})

		require.NoError(t, err)
		assert.Equal(t, user, got)
		repo.AssertExpectations(t)
	})

	t.Run("repeated registration returns existing user", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("CreateUserWithSubscription", mock.Anything, mock.Anything, mock.Anything).
			Return("", errs.ErrAlreadyExists).Once()
		repo.On("GetUserByTelegramID", mock.Anything, int64(100)).Return(user, nil).Once()

		svc := New(repo, new(FaceitMock), new(CacheMock), newNoopLogger())
		got, err := svc.Register(context.Background(), models.DummyRegisterUser{TelegramID: 100})

		require.NoError(t, err)
		assert.Equal(t, user, got)
		repo.AssertExpectations(t)
	})
}

func TestLinkAccount(t *testing.T) {
	user := &models.User{ID: "u-1", TelegramID: 100}
	player := &faceit.Player{PlayerID: "fp-1", Nickname: "s1mple"}

	tests := []struct {
		name       string
		setupMocks func(repo *RepoMock, fc *FaceitMock)
		wantErr    error
	}{
		{
			name: "success",
			setupMocks: func(repo *RepoMock, fc *FaceitMock) {
				repo.On("GetUserByTelegramID", mock.Anything, int64(100)).Return(user, nil).Once()
				fc.On("GetPlayerByNickname", mock.Anything, "s1mple").Return(player, nil).Once()
				repo.On("GetUserByFaceitNickname", mock.Anything, "s1mple").Return(nil, errs.ErrNotFound).Once()
				repo.On("LinkFaceitAccount", mock.Anything, "u-1", "fp-1", "s1mple").Return(nil).Once()
			},
		},
		{
			name: "relink same nickname by same user",
			setupMocks: func(repo *RepoMock, fc *FaceitMock) {
				repo.On("GetUserByTelegramID", mock.Anything, int64(100)).Return(user, nil).Once()
				fc.On("GetPlayerByNickname", mock.Anything, "s1mple").Return(player, nil).Once()
				repo.On("GetUserByFaceitNickname", mock.Anything, "s1mple").Return(user, nil).Once()
				repo.On("LinkFaceitAccount", mock.Anything, "u-1", "fp-1", "s1mple").Return(nil).Once()
			},
		},
		{
			name: "nickname taken by another user",
			setupMocks: func(repo *RepoMock, fc *FaceitMock) {
				other := &models.User{ID: "u-2", TelegramID: 200}
				repo.On("GetUserByTelegramID", mock.Anything, int64(100)).Return(user, nil).Once()
				fc.On("GetPlayerByNickname", mock.Anything, "s1mple").Return(player, nil).Once()
				repo.On("GetUserByFaceitNickname", mock.Anything, "s1mple").Return(other, nil).Once()
			},
			wantErr: errs.ErrAccountAlreadyLinked,
		},
		{
			name: "unknown telegram user",
			setupMocks: func(repo *RepoMock, fc *FaceitMock) {
				repo.On("GetUserByTelegramID", mock.Anything, int64(100)).Return(nil, errs.ErrNotFound).Once()
			},
			wantErr: errs.ErrUserNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			fc := new(FaceitMock)
			tt.setupMocks(repo, fc)

			svc := New(repo, fc, new(CacheMock), newNoopLogger())
			got, err := svc.LinkAccount(context.Background(), 100, "s1mple")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "fp-1", *got.FaceitPlayerID)
				assert.Equal(t, "s1mple", *got.FaceitNickname)
			}
			repo.AssertExpectations(t)
			fc.AssertExpectations(t)
		})
	}
}

func TestLinkAccount_PlayerNotFound(t *testing.T) {
	repo := new(RepoMock)
	fc := new(FaceitMock)
	user := &models.User{ID: "u-1", TelegramID: 100}
	repo.On("GetUserByTelegramID", mock.Anything, int64(100)).Return(user, nil).Once()
	fc.On("GetPlayerByNickname", mock.Anything, "ghost").Return(nil, faceit.ErrPlayerNotFound).Once()

	svc := New(repo, fc, new(CacheMock), newNoopLogger())
	_, err := svc.LinkAccount(context.Background(), 100, "ghost")

	var vErr *errs.ValidationError
	assert.ErrorAs(t, err, &vErr)
	repo.AssertExpectations(t)
	fc.AssertExpectations(t)
}

func TestProfile(t *testing.T) {
	repo := new(RepoMock)
	user := &models.User{ID: "u-1", TelegramID: 100}
	sub := &models.Subscription{ID: "s-1", UserID: "u-1", Tier: models.TierPremium}
	repo.On("GetUserByTelegramID", mock.Anything, int64(100)).Return(user, nil).Once()
	repo.On("GetSubscriptionByUserID", mock.Anything, "u-1").Return(sub, nil).Once()

	svc := New(repo, new(FaceitMock), new(CacheMock), newNoopLogger())
	got, err := svc.Profile(context.Background(), 100)

	require.NoError(t, err)
	assert.Equal(t, user, got.User)
	assert.Equal(t, sub, got.Subscription)
	repo.AssertExpectations(t)
}

func TestUpdateSettings(t *testing.T) {
	repo := new(RepoMock)
	cache := new(CacheMock)
	user := &models.User{ID: "u-1", TelegramID: 100, Language: "en"}
	repo.On("GetUserByTelegramID", mock.Anything, int64(100)).Return(user, nil).Once()
	repo.On("UpdateUserSettings", mock.Anything, "u-1", "ru", false).Return(nil).Once()
	cache.On("Invalidate", "subscription:user:u-1").Return(nil).Once()

	svc := New(repo, new(FaceitMock), cache, newNoopLogger())
	got, err := svc.UpdateSettings(context.Background(), 100, models.DummyUpdateSettings{
		Language:             "ru",
		NotificationsEnabled: false,
	})

	require.NoError(t, err)
	assert.Equal(t, "ru", got.Language)
	assert.False(t, got.NotificationsEnabled)
	repo.AssertExpectations(t)
	cache.AssertExpectations(t)
}
