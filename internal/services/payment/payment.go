// Package payment содержит бизнес-логику платежей: выставление счетов,
// подтверждение и отклонение платежей, историю платежей пользователя.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/magabrotheeeer/faceit-stats-bot/internal/lib/errs"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/lib/sl"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/models"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/services/subscription"
)

// Price стоимость и длительность оплачиваемого периода.
type Price struct {
	Amount int // Сумма в минимальных единицах валюты
	Days   int // Длительность периода в днях
}

// Prices прайс-лист платных уровней. Free не продается.
var Prices = map[models.Tier]map[models.Duration]Price{
	models.TierPremium: {
		models.DurationMonthly: {Amount: 199, Days: 30},
		models.DurationYearly:  {Amount: 1999, Days: 365},
	},
	models.TierPro: {
		models.DurationMonthly: {Amount: 299, Days: 30},
		models.DurationYearly:  {Amount: 2999, Days: 365},
	},
}

// Repository методы хранилища, нужные сервису платежей.
type Repository interface {
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	GetSubscriptionByUserID(ctx context.Context, userID string) (*models.Subscription, error)

	CreatePayment(ctx context.Context, p models.Payment) (string, error)
	FindLatestPendingPayment(ctx context.Context, userID string, tier models.Tier, duration models.Duration) (*models.Payment, error)
	FindPaymentByProviderChargeID(ctx context.Context, chargeID string) (*models.Payment, error)
	CompletePaymentAndUpgrade(ctx context.Context, paymentID, telegramChargeID, providerChargeID string,
		subID string, tier models.Tier, expiresAt *time.Time) error
	MarkPaymentFailed(ctx context.Context, paymentID, providerChargeID string) error
	ListPayments(ctx context.Context, userID string, opts models.ListOptions) ([]*models.Payment, error)
}

// Cache кеш подписок, инвалидируется после апгрейда.
type Cache interface {
	Invalidate(key string) error
}

// EventPublisher публикует события для фронтенда бота.
type EventPublisher interface {
	Publish(routingKey string, message any) error
}

// Service реализует операции с платежами.
type Service struct {
	repo      Repository
	cache     Cache
	publisher EventPublisher
	log       *slog.Logger
}

// New создает сервис платежей. publisher может быть nil,
// тогда события не публикуются.
func New(repo Repository, cache Cache, publisher EventPublisher, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		log:       log,
	}
}

// CompletedEvent событие успешного платежа для фронтенда бота.
type CompletedEvent struct {
	TelegramID int64           `json:"telegram_id"`
	Tier       models.Tier     `json:"tier"`
	Duration   models.Duration `json:"duration"`
	Amount     int             `json:"amount"`
	ExpiresAt  time.Time       `json:"expires_at"`
}

// encodePayload кодирует намерение платежа в строку вида
// "{tier}_{duration}_{telegram_id}".
func encodePayload(tier models.Tier, duration models.Duration, telegramID int64) string {
	return fmt.Sprintf("%s_%s_%d", tier, duration, telegramID)
}

// decodePayload разбирает payload счета. Строка из трех частей,
// разделенных подчеркиванием.
func decodePayload(payload string) (models.Tier, models.Duration, int64, error) {
	parts := strings.Split(payload, "_")
	if len(parts) != 3 {
		return "", "", 0, errs.NewValidation("payload", "malformed payment payload")
	}
	tier := models.Tier(parts[0])
	duration := models.Duration(parts[1])
	if !tier.Valid() || !duration.Valid() {
		return "", "", 0, errs.NewValidation("payload", "malformed payment payload")
	}
	telegramID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", "", 0, errs.NewValidation("payload", "malformed payment payload")
	}
	return tier, duration, telegramID, nil
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

// CreateInvoice создает pending-платеж и возвращает данные счета
// для выставления через телеграм.
func (s *Service) CreateInvoice(ctx context.Context, telegramID int64, req models.DummyInvoice) (*models.Invoice, error) {
	tier := models.Tier(req.Tier)
	duration := models.Duration(req.Duration)
	price, ok := Prices[tier][duration]
	if !ok {
		return nil, errs.NewValidation("tier", "no price for this tier and duration")
	}

	user, err := s.userByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}

	payload := encodePayload(tier, duration, telegramID)
	paymentID, err := s.repo.CreatePayment(ctx, models.Payment{
		UserID:               user.ID,
		Amount:               price.Amount,
		Status:               models.PaymentPending,
		SubscriptionTier:     tier,
		SubscriptionDuration: duration,
		DurationDays:         price.Days,
		PaymentPayload:       payload,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("invoice created",
		slog.String("payment_id", paymentID),
		slog.Int64("telegram_id", telegramID),
		slog.String("tier", string(tier)),
		slog.String("duration", string(duration)))

	return &models.Invoice{
		PaymentID:    paymentID,
		Amount:       price.Amount,
		Tier:         tier,
		Duration:     duration,
		DurationDays: price.Days,
		Payload:      payload,
	}, nil
}

// ProcessSuccessfulPayment подтверждает платеж по вебхуку провайдера.
// Повторная доставка того же provider_charge_id распознается и не
// приводит ко второму продлению подписки.
func (s *Service) ProcessSuccessfulPayment(ctx context.Context, req models.DummyWebhook) error {
	tier, duration, payloadTelegramID, err := decodePayload(req.Payload)
	if err != nil {
		return err
	}
	if payloadTelegramID != req.TelegramID {
		return errs.ErrPaymentUserMismatch
	}

	existing, err := s.repo.FindPaymentByProviderChargeID(ctx, req.ProviderChargeID)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return err
	}
	if existing != nil {
		if existing.Status == models.PaymentCompleted {
			s.log.Info("duplicate webhook ignored",
				slog.String("provider_charge_id", req.ProviderChargeID))
			return nil
		}
		return errs.ErrPaymentAlreadySettled
	}

	user, err := s.userByTelegramID(ctx, req.TelegramID)
	if err != nil {
		return err
	}

	pending, err := s.repo.FindLatestPendingPayment(ctx, user.ID, tier, duration)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.ErrPaymentNotFound
		}
		return err
	}

	sub, err := s.repo.GetSubscriptionByUserID(ctx, user.ID)
	if err != nil {
		return err
	}
	expiresAt := subscription.StackedExpiry(sub, pending.DurationDays, time.Now())

	err = s.repo.CompletePaymentAndUpgrade(ctx, pending.ID, req.TelegramChargeID, req.ProviderChargeID,
		sub.ID, tier, &expiresAt)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.ErrPaymentAlreadySettled
		}
		return err
	}

	key := subscription.CacheKey(user.ID)
	if err := s.cache.Invalidate(key); err != nil {
		s.log.Warn("failed to invalidate cache", slog.String("key", key), sl.Err(err))
	}

	if s.publisher != nil {
		event := CompletedEvent{
			TelegramID: req.TelegramID,
			Tier:       tier,
			Duration:   duration,
			Amount:     pending.Amount,
			ExpiresAt:  expiresAt,
		}
		if err := s.publisher.Publish("payment", event); err != nil {
			s.log.Warn("failed to publish payment event",
				slog.Int64("telegram_id", req.TelegramID), sl.Err(err))
		}
	}

	s.log.Info("payment completed",
		slog.String("payment_id", pending.ID),
		slog.Int64("telegram_id", req.TelegramID),
		slog.String("tier", string(tier)),
		slog.Time("expires_at", expiresAt))
	return nil
}

// ProcessFailedPayment помечает платеж отклоненным. Подписка не меняется.
// Повторная доставка вебхука безвредна.
func (s *Service) ProcessFailedPayment(ctx context.Context, req models.DummyWebhook) error {
	tier, duration, payloadTelegramID, err := decodePayload(req.Payload)
	if err != nil {
		return err
	}
	if payloadTelegramID != req.TelegramID {
		return errs.ErrPaymentUserMismatch
	}

	existing, err := s.repo.FindPaymentByProviderChargeID(ctx, req.ProviderChargeID)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return err
	}
	if existing != nil {
		// Этот charge id уже обработан ранее.
		return nil
	}

	user, err := s.userByTelegramID(ctx, req.TelegramID)
	if err != nil {
		return err
	}

	pending, err := s.repo.FindLatestPendingPayment(ctx, user.ID, tier, duration)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.ErrPaymentNotFound
		}
		return err
	}

	if err := s.repo.MarkPaymentFailed(ctx, pending.ID, req.ProviderChargeID); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.ErrPaymentAlreadySettled
		}
		return err
	}

	s.log.Info("payment failed",
		slog.String("payment_id", pending.ID),
		slog.Int64("telegram_id", req.TelegramID))
	return nil
}

// ListPayments возвращает платежи пользователя по предикатам фильтра.
func (s *Service) ListPayments(ctx context.Context, telegramID int64, opts models.ListOptions) ([]*models.Payment, error) {
	user, err := s.userByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, user.ID, opts)
}
