// Package subscription содержит бизнес-логику уровней подписки:
// дневные квоты, апгрейды, реферальную программу и очистку истекших.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/faceit-stats-bot/internal/lib/errs"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/lib/sl"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/models"
)

// UnlimitedRequests специальное значение дневного лимита: запросы не ограничены.
// Значение нельзя сравнивать с счетчиком как число.
const UnlimitedRequests = -1

// Limits возможности уровня подписки.
type Limits struct {
	DailyRequests  int  // Дневной лимит запросов, UnlimitedRequests для безлимита
	HistoryMatches int  // Глубина истории матчей
	Notifications  bool // Доступны ли уведомления о матчах
	Advanced       bool // Доступна ли расширенная статистика
}

// TierLimits возможности каждого уровня подписки.
var TierLimits = map[models.Tier]Limits{
	models.TierFree:    {DailyRequests: 10, HistoryMatches: 20},
	models.TierPremium: {DailyRequests: 100, HistoryMatches: 50, Notifications: true, Advanced: true},
	models.TierPro:     {DailyRequests: UnlimitedRequests, HistoryMatches: 200, Notifications: true, Advanced: true},
}

// Бонусы реферальной программы. Оба участника получают premium.
const (
	refereeBonusDays  = 7
	referrerBonusDays = 30
)

const cacheTTL = 5 * time.Minute

// Repository методы хранилища, нужные сервису подписок.
type Repository interface {
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	IncrementTotalRequests(ctx context.Context, userID string) error

	GetSubscriptionByUserID(ctx context.Context, userID string) (*models.Subscription, error)
	GetSubscriptionByReferralCode(ctx context.Context, code string) (*models.Subscription, error)
	UpdateSubscriptionTier(ctx context.Context, subID string, tier models.Tier, expiresAt *time.Time, autoRenew bool) error
	ResetDailyCounter(ctx context.Context, subID string, resetDate time.Time) error
	IncrementDailyRequests(ctx context.Context, subID string) error
	SetReferralCode(ctx context.Context, subID, code string) error
	MarkReferredBy(ctx context.Context, subID string, referrerTelegramID int64) (bool, error)
	IncrementReferralsCount(ctx context.Context, subID string) error
	ExpireLapsed(ctx context.Context, now time.Time) ([]models.ExpiredSubscription, error)
}

// Cache кеш подписок. Промах не является ошибкой.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// EventPublisher публикует события для фронтенда бота.
type EventPublisher interface {
	Publish(routingKey string, message any) error
}

// Service реализует операции над подписками.
type Service struct {
	repo      Repository
	cache     Cache
	publisher EventPublisher
	log       *slog.Logger
}

// New создает сервис подписок. publisher может быть nil,
// тогда события не публикуются.
func New(repo Repository, cache Cache, publisher EventPublisher, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		log:       log,
	}
}

// CacheKey ключ кеша подписки пользователя. Единая точка для всех
// сервисов, инвалидирующих подписку.
func CacheKey(userID string) string {
	return fmt.Sprintf("subscription:user:%s", userID)
}

// getSubscription читает подписку через кеш.
func (s *Service) getSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	var sub *models.Subscription
	key := CacheKey(userID)
	found, err := s.cache.Get(key, &sub)
	if err != nil {
		s.log.Warn("failed to read cache", slog.String("key", key), sl.Err(err))
	}
	if found && sub != nil {
		return sub, nil
	}

	sub, err = s.repo.GetSubscriptionByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(key, sub, cacheTTL); err != nil {
		s.log.Warn("failed to cache subscription", slog.String("key", key), sl.Err(err))
	}
	return sub, nil
}

func (s *Service) invalidate(userID string) {
	key := CacheKey(userID)
	if err := s.cache.Invalidate(key); err != nil {
		s.log.Warn("failed to invalidate cache", slog.String("key", key), sl.Err(err))
	}
}

func (s *Service) userByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	user, err := s.repo.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// utcDay возвращает границу суток UTC для момента t.
func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// secondsToMidnight возвращает число секунд до следующей полуночи UTC, не менее 1.
func secondsToMidnight(now time.Time) int {
	next := utcDay(now).Add(24 * time.Hour)
	sec := int(next.Sub(now.UTC()).Seconds())
	if sec < 1 {
		sec = 1
	}
	return sec
}

// CanMakeRequest проверяет дневную квоту пользователя. Если наступили новые
// сутки UTC, счетчик сначала сбрасывается, затем читается. Возвращает
// разрешение и состояние квоты; отказ не является ошибкой.
func (s *Service) CanMakeRequest(ctx context.Context, telegramID int64) (bool, *models.QuotaInfo, error) {
	user, err := s.userByTelegramID(ctx, telegramID)
	if err != nil {
		return false, nil, err
	}
	sub, err := s.getSubscription(ctx, user.ID)
	if err != nil {
		return false, nil, err
	}

	now := time.Now()
	today := utcDay(now)
	if utcDay(sub.LastResetDate).Before(today) {
		if err := s.repo.ResetDailyCounter(ctx, sub.ID, today); err != nil {
			return false, nil, err
		}
		sub.DailyRequests = 0
		sub.LastResetDate = today
		s.invalidate(user.ID)
	}

	limits, ok := TierLimits[sub.Tier]
	if !ok {
		limits = TierLimits[models.TierFree]
	}
	info := &models.QuotaInfo{Tier: sub.Tier, Limit: limits.DailyRequests}

	if limits.DailyRequests == UnlimitedRequests {
		info.Remaining = UnlimitedRequests
		return true, info, nil
	}

	if sub.DailyRequests >= limits.DailyRequests {
		info.Remaining = 0
		info.RetryAfterSec = secondsToMidnight(now)
		return false, info, nil
	}

	info.Remaining = limits.DailyRequests - sub.DailyRequests
	return true, info, nil
}

// RegisterRequest учитывает выполненный запрос: увеличивает дневной
// и общий счетчики. Вызывается после успешной обработки запроса.
func (s *Service) RegisterRequest(ctx context.Context, telegramID int64) error {
	user, err := s.userByTelegramID(ctx, telegramID)
	if err != nil {
		return err
	}
	sub, err := s.getSubscription(ctx, user.ID)
	if err != nil {
		return err
	}

	if err := s.repo.IncrementDailyRequests(ctx, sub.ID); err != nil {
		return err
	}
	if err := s.repo.IncrementTotalRequests(ctx, user.ID); err != nil {
		return err
	}
	s.invalidate(user.ID)
	return nil
}

// StackedExpiry вычисляет новую дату окончания платного периода.
// Неистекший остаток сохраняется: дни прибавляются к старой дате.
func StackedExpiry(sub *models.Subscription, days int, now time.Time) time.Time {
	base := now
	if sub.ExpiresAt != nil && sub.ExpiresAt.After(now) {
		base = *sub.ExpiresAt
	}
	return base.Add(time.Duration(days) * 24 * time.Hour)
}

// Upgrade переводит подписку пользователя на уровень tier на days дней.
// Возвращает подписку после обновления.
func (s *Service) Upgrade(ctx context.Context, userID string, tier models.Tier, days int) (*models.Subscription, error) {
	if !tier.Valid() {
		return nil, errs.NewValidation("tier", "unknown subscription tier")
	}
	sub, err := s.repo.GetSubscriptionByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	expiresAt := StackedExpiry(sub, days, time.Now())
	if err := s.repo.UpdateSubscriptionTier(ctx, sub.ID, tier, &expiresAt, sub.AutoRenew); err != nil {
		return nil, err
	}
	s.invalidate(userID)

	sub.Tier = tier
	sub.ExpiresAt = &expiresAt
	s.log.Info("subscription upgraded",
		slog.String("user_id", userID),
		slog.String("tier", string(tier)),
		slog.Time("expires_at", expiresAt))
	return sub, nil
}

// GenerateReferralCode возвращает реферальный код пользователя,
// создавая его при первом обращении. Повторные вызовы возвращают тот же код.
func (s *Service) GenerateReferralCode(ctx context.Context, telegramID int64) (string, error) {
	user, err := s.userByTelegramID(ctx, telegramID)
	if err != nil {
		return "", err
	}
	sub, err := s.repo.GetSubscriptionByUserID(ctx, user.ID)
	if err != nil {
		return "", err
	}
	if sub.ReferralCode != nil {
		return *sub.ReferralCode, nil
	}

	// Уникальный индекс на referral_code разрешает коллизии: при
	// совпадении генерируем новый код и повторяем.
	for attempt := 0; attempt < 3; attempt++ {
		code := newReferralCode()
		err := s.repo.SetReferralCode(ctx, sub.ID, code)
		if err == nil {
			s.invalidate(user.ID)
			return code, nil
		}
		if !errors.Is(err, errs.ErrAlreadyExists) {
			return "", err
		}
	}
	return "", fmt.Errorf("failed to generate unique referral code: %w", errs.ErrAlreadyExists)
}

func newReferralCode() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "REF" + strings.ToUpper(raw[:9])
}

// ApplyReferral применяет реферальный код к пользователю telegramID.
// Код применяется не более одного раза за всю жизнь аккаунта: приглашенный
// получает premium на 7 дней, пригласивший premium на 30 дней.
func (s *Service) ApplyReferral(ctx context.Context, telegramID int64, code string) error {
	referee, err := s.userByTelegramID(ctx, telegramID)
	if err != nil {
		return err
	}
	refereeSub, err := s.repo.GetSubscriptionByUserID(ctx, referee.ID)
	if err != nil {
		return err
	}
	if refereeSub.ReferredByUserID != nil {
		return errs.ErrReferralAlreadyApplied
	}

	referrerSub, err := s.repo.GetSubscriptionByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.ErrReferralCodeUnknown
		}
		return err
	}
	if referrerSub.UserID == referee.ID {
		return errs.ErrSelfReferral
	}
	referrer, err := s.repo.GetUserByID(ctx, referrerSub.UserID)
	if err != nil {
		return err
	}

	applied, err := s.repo.MarkReferredBy(ctx, refereeSub.ID, referrer.TelegramID)
	if err != nil {
		return err
	}
	if !applied {
		return errs.ErrReferralAlreadyApplied
	}

	if _, err := s.Upgrade(ctx, referee.ID, models.TierPremium, refereeBonusDays); err != nil {
		return err
	}
	if _, err := s.Upgrade(ctx, referrer.ID, models.TierPremium, referrerBonusDays); err != nil {
		return err
	}
	if err := s.repo.IncrementReferralsCount(ctx, referrerSub.ID); err != nil {
		return err
	}

	s.log.Info("referral applied",
		slog.Int64("referee_telegram_id", telegramID),
		slog.Int64("referrer_telegram_id", referrer.TelegramID))
	return nil
}

// CheckAndExpireSubscriptions переводит истекшие платные подписки на free
// и публикует событие для каждого затронутого пользователя.
// Повторный запуск ничего не находит. Возвращает число истекших подписок.
func (s *Service) CheckAndExpireSubscriptions(ctx context.Context) (int, error) {
	expired, err := s.repo.ExpireLapsed(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	for _, item := range expired {
		s.invalidate(item.UserID)
		if s.publisher == nil {
			continue
		}
		if err := s.publisher.Publish("expired", item); err != nil {
			s.log.Warn("failed to publish expiration event",
				slog.Int64("telegram_id", item.TelegramID), sl.Err(err))
		}
	}

	if len(expired) > 0 {
		s.log.Info("expired subscriptions downgraded", slog.Int("count", len(expired)))
	}
	return len(expired), nil
}
