// Package user содержит бизнес-логику пользователей: регистрацию,
// привязку аккаунта FACEIT, профиль и настройки.
package user

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/faceit-stats-bot/internal/faceit"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/lib/errs"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/lib/sl"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/models"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/services/subscription"
)

const defaultLanguage = "en"

// Repository методы хранилища, нужные сервису пользователей.
type Repository interface {
	CreateUserWithSubscription(ctx context.Context, user models.User, sub models.Subscription) (string, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	GetUserByFaceitNickname(ctx context.Context, nickname string) (*models.User, error)
	LinkFaceitAccount(ctx context.Context, userID, playerID, nickname string) error
	UpdateUserSettings(ctx context.Context, userID, language string, notifications bool) error
	GetSubscriptionByUserID(ctx context.Context, userID string) (*models.Subscription, error)
}

// FaceitClient разрешает ники игроков через FACEIT Data API.
type FaceitClient interface {
	GetPlayerByNickname(ctx context.Context, nickname string) (*faceit.Player, error)
}

// Cache кеш подписок, инвалидируется при изменениях профиля.
type Cache interface {
	Invalidate(key string) error
}

// Service реализует операции с пользователями.
type Service struct {
	repo   Repository
	faceit FaceitClient
	cache  Cache
	log    *slog.Logger
}

// New создает сервис пользователей.
func New(repo Repository, faceitClient FaceitClient, cache Cache, log *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		faceit: faceitClient,
		cache:  cache,
		log:    log,
	}
}

// Register регистрирует пользователя с подпиской free. Повторная
// регистрация возвращает существующего пользователя без изменений.
func (s *Service) Register(ctx context.Context, req models.DummyRegisterUser) (*models.User, error) {
	language := req.Language
	if language == "" {
		language = defaultLanguage
	}

	y, m, d := time.Now().UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	_, err := s.repo.CreateUserWithSubscription(ctx,
		models.User{
			TelegramID:           req.TelegramID,
			Language:             language,
			NotificationsEnabled: true,
		},
		models.Subscription{
			Tier:          models.TierFree,
			LastResetDate: today,
		})
	if err != nil && !errors.Is(err, errs.ErrAlreadyExists) {
		return nil, err
	}
	if err == nil {
		s.log.Info("user registered", slog.Int64("telegram_id", req.TelegramID))
	}

	user, err := s.repo.GetUserByTelegramID(ctx, req.TelegramID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// LinkAccount привязывает ник FACEIT к пользователю. Ник проверяется
// через FACEIT Data API и не может быть привязан к двум аккаунтам.
func (s *Service) LinkAccount(ctx context.Context, telegramID int64, nickname string) (*models.User, error) {
	user, err := s.repo.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrUserNotFound
		}
		return nil, err
	}

	player, err := s.faceit.GetPlayerByNickname(ctx, nickname)
	if err != nil {
		if errors.Is(err, faceit.ErrPlayerNotFound) {
			return nil, errs.NewValidation("nickname", "faceit player not found")
		}
		return nil, err
	}

	owner, err := s.repo.GetUserByFaceitNickname(ctx, player.Nickname)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}
	if owner != nil && owner.ID != user.ID {
		return nil, errs.ErrAccountAlreadyLinked
	}

	if err := s.repo.LinkFaceitAccount(ctx, user.ID, player.PlayerID, player.Nickname); err != nil {
		return nil, err
	}

	user.FaceitPlayerID = &player.PlayerID
	user.FaceitNickname = &player.Nickname
	s.log.Info("faceit account linked",
		slog.Int64("telegram_id", telegramID),
		slog.String("nickname", player.Nickname))
	return user, nil
}

// Profile возвращает пользователя вместе с его подпиской.
func (s *Service) Profile(ctx context.Context, telegramID int64) (*models.Profile, error) {
	user, err := s.repo.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrUserNotFound
		}
		return nil, err
	}
	sub, err := s.repo.GetSubscriptionByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &models.Profile{User: user, Subscription: sub}, nil
}

// UpdateSettings обновляет язык интерфейса и флаг уведомлений.
// Пустой язык в запросе оставляет текущий.
func (s *Service) UpdateSettings(ctx context.Context, telegramID int64, req models.DummyUpdateSettings) (*models.User, error) {
	user, err := s.repo.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrUserNotFound
		}
		return nil, err
	}
	language := req.Language
	if language == "" {
		language = user.Language
	}
	if err := s.repo.UpdateUserSettings(ctx, user.ID, language, req.NotificationsEnabled); err != nil {
		return nil, err
	}

	key := subscription.CacheKey(user.ID)
	if err := s.cache.Invalidate(key); err != nil {
		s.log.Warn("failed to invalidate cache", slog.String("key", key), sl.Err(err))
	}

	user.Language = language
	user.NotificationsEnabled = req.NotificationsEnabled
	return user, nil
}
