package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/faceit-stats-bot/internal/models"
)

const subscriptionColumns = `id, user_id, tier, expires_at, auto_renew, daily_requests,
			      last_reset_date, referral_code, referrals_count, referred_by_user_id,
			      created_at, updated_at`

func scanSubscription(row interface{ Scan(...any) error }) (*models.Subscription, error) {
	sub := &models.Subscription{}
	var tier string
	var expiresAt sql.NullTime
	var referralCode sql.NullString
	var referredBy sql.NullInt64
	if err := row.Scan(&sub.ID, &sub.UserID, &tier, &expiresAt, &sub.AutoRenew,
		&sub.DailyRequests, &sub.LastResetDate, &referralCode, &sub.ReferralsCount,
		&referredBy, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return nil, err
	}
	sub.Tier = models.Tier(tier)
	if expiresAt.Valid {
		sub.ExpiresAt = &expiresAt.Time
	}
	if referralCode.Valid {
		sub.ReferralCode = &referralCode.String
	}
	if referredBy.Valid {
		sub.ReferredByUserID = &referredBy.Int64
	}
	return sub, nil
}

// CreateSubscription создает подписку для пользователя и возвращает её UUID.
// Уникальный индекс на user_id гарантирует не более одной подписки.
func (s *Storage) CreateSubscription(ctx context.Context, sub models.Subscription) (string, error) {
	const op = "storage.CreateSubscription"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newID string
	query := `INSERT INTO user_subscriptions (user_id, tier, expires_at, auto_renew,
			      daily_requests, last_reset_date, referral_code, referrals_count,
			      referred_by_user_id)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			  RETURNING id`
	if err := s.DB.QueryRowContext(ctx, query,
		sub.UserID, string(sub.Tier), sub.ExpiresAt, sub.AutoRenew,
		sub.DailyRequests, sub.LastResetDate, sub.ReferralCode, sub.ReferralsCount,
		sub.ReferredByUserID).Scan(&newID); err != nil {
		return "", wrapErr(op, err)
	}
	return newID, nil
}

// GetSubscriptionByUserID возвращает подписку пользователя.
func (s *Storage) GetSubscriptionByUserID(ctx context.Context, userID string) (*models.Subscription, error) {
	const op = "storage.GetSubscriptionByUserID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM user_subscriptions
			  WHERE user_id = $1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return sub, nil
}

// GetSubscriptionByReferralCode возвращает подписку по реферальному коду.
func (s *Storage) GetSubscriptionByReferralCode(ctx context.Context, code string) (*models.Subscription, error) {
	const op = "storage.GetSubscriptionByReferralCode"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM user_subscriptions
			  WHERE referral_code = $1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, code))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return sub, nil
}

// UpdateSubscriptionTier обновляет уровень, дату окончания и автопродление.
func (s *Storage) UpdateSubscriptionTier(ctx context.Context, subID string, tier models.Tier, expiresAt *time.Time, autoRenew bool) error {
	const op = "storage.UpdateSubscriptionTier"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE user_subscriptions
			  SET tier = $1, expires_at = $2, auto_renew = $3, updated_at = now()
			  WHERE id = $4`
	res, err := s.DB.ExecContext(ctx, query, string(tier), expiresAt, autoRenew, subID)
	if err != nil {
		return wrapErr(op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return wrapErr(op, sql.ErrNoRows)
	}
	return nil
}

// ResetDailyCounter обнуляет дневной счетчик и фиксирует дату сброса.
func (s *Storage) ResetDailyCounter(ctx context.Context, subID string, resetDate time.Time) error {
	const op = "storage.ResetDailyCounter"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE user_subscriptions
			  SET daily_requests = 0, last_reset_date = $1, updated_at = now()
			  WHERE id = $2`
	if _, err := s.DB.ExecContext(ctx, query, resetDate, subID); err != nil {
		return wrapErr(op, err)
	}
	return nil
}

// IncrementDailyRequests атомарно увеличивает дневной счетчик на единицу.
func (s *Storage) IncrementDailyRequests(ctx context.Context, subID string) error {
	const op = "storage.IncrementDailyRequests"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE user_subscriptions
			  SET daily_requests = daily_requests + 1, updated_at = now()
			  WHERE id = $1`
	if _, err := s.DB.ExecContext(ctx, query, subID); err != nil {
		return wrapErr(op, err)
	}
	return nil
}

// SetReferralCode записывает собственный реферальный код подписки.
func (s *Storage) SetReferralCode(ctx context.Context, subID, code string) error {
	const op = "storage.SetReferralCode"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE user_subscriptions
			  SET referral_code = $1, updated_at = now()
			  WHERE id = $2`
	if _, err := s.DB.ExecContext(ctx, query, code, subID); err != nil {
		return wrapErr(op, err)
	}
	return nil
}

// MarkReferredBy помечает подписку как приглашенную пользователем referrerTelegramID.
// Условие referred_by_user_id IS NULL защищает от повторного применения кода.
func (s *Storage) MarkReferredBy(ctx context.Context, subID string, referrerTelegramID int64) (bool, error) {
	const op = "storage.MarkReferredBy"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE user_subscriptions
			  SET referred_by_user_id = $1, updated_at = now()
			  WHERE id = $2 AND referred_by_user_id IS NULL`
	res, err := s.DB.ExecContext(ctx, query, referrerTelegramID, subID)
	if err != nil {
		return false, wrapErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapErr(op, err)
	}
	return n == 1, nil
}

// IncrementReferralsCount увеличивает счетчик приглашенных у подписки.
func (s *Storage) IncrementReferralsCount(ctx context.Context, subID string) error {
	const op = "storage.IncrementReferralsCount"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE user_subscriptions
			  SET referrals_count = referrals_count + 1, updated_at = now()
			  WHERE id = $1`
	if _, err := s.DB.ExecContext(ctx, query, subID); err != nil {
		return wrapErr(op, err)
	}
	return nil
}

// ExpireLapsed переводит все подписки с истекшей датой на free одним запросом
// и возвращает затронутые подписки. Повторный вызов ничего не находит.
func (s *Storage) ExpireLapsed(ctx context.Context, now time.Time) ([]models.ExpiredSubscription, error) {
	const op = "storage.ExpireLapsed"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE user_subscriptions us
			  SET tier = 'free', expires_at = NULL, auto_renew = FALSE, updated_at = now()
			  FROM users u
			  WHERE us.user_id = u.id
			    AND us.tier <> 'free'
			    AND us.expires_at IS NOT NULL
			    AND us.expires_at < $1
			  RETURNING us.id, us.user_id, u.telegram_id, 'free'`
	rows, err := s.DB.QueryContext(ctx, query, now)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.ExpiredSubscription
	for rows.Next() {
		var item models.ExpiredSubscription
		var tier string
		if err := rows.Scan(&item.SubscriptionID, &item.UserID, &item.TelegramID, &tier); err != nil {
			return nil, wrapErr(op, err)
		}
		item.Tier = models.Tier(tier)
		result = append(result, item)
	}
	if err = rows.Err(); err != nil {
		return nil, wrapErr(op, err)
	}
	return result, nil
}

// TierDistribution возвращает распределение подписок по уровням.
// Используется проверкой целостности миграции.
func (s *Storage) TierDistribution(ctx context.Context) (map[models.Tier]int, error) {
	const op = "storage.TierDistribution"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT tier, COUNT(*) FROM user_subscriptions GROUP BY tier`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make(map[models.Tier]int)
	for rows.Next() {
		var tier string
		var count int
		if err := rows.Scan(&tier, &count); err != nil {
			return nil, wrapErr(op, err)
		}
		result[models.Tier(tier)] = count
	}
	if err = rows.Err(); err != nil {
		return nil, wrapErr(op, err)
	}
	return result, nil
}
