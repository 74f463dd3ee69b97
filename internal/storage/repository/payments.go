package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/faceit-stats-bot/internal/models"
)

const paymentColumns = `id, user_id, amount, status, subscription_tier, subscription_duration,
			      duration_days, telegram_charge_id, provider_charge_id, payment_payload,
			      created_at, completed_at`

func scanPayment(row interface{ Scan(...any) error }) (*models.Payment, error) {
	p := &models.Payment{}
	var status, tier, duration string
	var telegramChargeID, providerChargeID sql.NullString
	var completedAt sql.NullTime
	if err := row.Scan(&p.ID, &p.UserID, &p.Amount, &status, &tier, &duration,
		&p.DurationDays, &telegramChargeID, &providerChargeID, &p.PaymentPayload,
		&p.CreatedAt, &completedAt); err != nil {
		return nil, err
	}
	p.Status = models.PaymentStatus(status)
	p.SubscriptionTier = models.Tier(tier)
	p.SubscriptionDuration = models.Duration(duration)
	if telegramChargeID.Valid {
		p.TelegramChargeID = &telegramChargeID.String
	}
	if providerChargeID.Valid {
		p.ProviderChargeID = &providerChargeID.String
	}
	if completedAt.Valid {
		p.CompletedAt = &completedAt.Time
	}
	return p, nil
}

// CreatePayment сохраняет платеж в статусе pending и возвращает его UUID.
func (s *Storage) CreatePayment(ctx context.Context, p models.Payment) (string, error) {
	const op = "storage.CreatePayment"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newID string
	query := `INSERT INTO payments (user_id, amount, status, subscription_tier,
			      subscription_duration, duration_days, payment_payload)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING id`
	if err := s.DB.QueryRowContext(ctx, query,
		p.UserID, p.Amount, string(p.Status), string(p.SubscriptionTier),
		string(p.SubscriptionDuration), p.DurationDays, p.PaymentPayload).Scan(&newID); err != nil {
		return "", wrapErr(op, err)
	}
	return newID, nil
}

// FindLatestPendingPayment находит последний pending-платеж пользователя
// с данным уровнем и длительностью.
func (s *Storage) FindLatestPendingPayment(ctx context.Context, userID string, tier models.Tier, duration models.Duration) (*models.Payment, error) {
	const op = "storage.FindLatestPendingPayment"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + paymentColumns + `
			  FROM payments
			  WHERE user_id = $1 AND status = 'pending'
			    AND subscription_tier = $2 AND subscription_duration = $3
			  ORDER BY created_at DESC
			  LIMIT 1`
	p, err := scanPayment(s.DB.QueryRowContext(ctx, query, userID, string(tier), string(duration)))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return p, nil
}

// FindPaymentByProviderChargeID находит платеж по идентификатору списания.
// Используется для распознавания повторной доставки вебхука.
func (s *Storage) FindPaymentByProviderChargeID(ctx context.Context, chargeID string) (*models.Payment, error) {
	const op = "storage.FindPaymentByProviderChargeID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + paymentColumns + `
			  FROM payments
			  WHERE provider_charge_id = $1`
	p, err := scanPayment(s.DB.QueryRowContext(ctx, query, chargeID))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return p, nil
}

// CompletePaymentAndUpgrade в одной транзакции помечает платеж завершенным
// и применяет новый уровень подписки. Условие status = 'pending' не дает
// завершить платеж дважды: при нуле затронутых строк транзакция откатывается.
func (s *Storage) CompletePaymentAndUpgrade(ctx context.Context, paymentID, telegramChargeID, providerChargeID string,
	subID string, tier models.Tier, expiresAt *time.Time) error {
	const op = "storage.CompletePaymentAndUpgrade"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE payments
			SET status = 'completed', telegram_charge_id = $1, provider_charge_id = $2,
			    completed_at = now()
			WHERE id = $3 AND status = 'pending'`,
			telegramChargeID, providerChargeID, paymentID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return sql.ErrNoRows
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE user_subscriptions
			SET tier = $1, expires_at = $2, updated_at = now()
			WHERE id = $3`,
			string(tier), expiresAt, subID)
		return err
	})
	if err != nil {
		return wrapErr(op, err)
	}
	return nil
}

// MarkPaymentFailed переводит pending-платеж в статус failed.
func (s *Storage) MarkPaymentFailed(ctx context.Context, paymentID, providerChargeID string) error {
	const op = "storage.MarkPaymentFailed"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE payments
			  SET status = 'failed', provider_charge_id = $1, completed_at = now()
			  WHERE id = $2 AND status = 'pending'`
	res, err := s.DB.ExecContext(ctx, query, providerChargeID, paymentID)
	if err != nil {
		return wrapErr(op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return wrapErr(op, sql.ErrNoRows)
	}
	return nil
}

// ListPayments возвращает платежи пользователя по предикатам фильтра.
func (s *Storage) ListPayments(ctx context.Context, userID string, opts models.ListOptions) ([]*models.Payment, error) {
	const op = "storage.ListPayments"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	allowed := map[string]bool{
		"status": true, "subscription_tier": true, "subscription_duration": true,
		"amount": true, "created_at": true,
	}
	opts.Filters = append(opts.Filters, models.Filter{Field: "user_id", Op: models.OpEq, Value: userID})
	allowed["user_id"] = true

	query, args, err := buildListQuery(`SELECT `+paymentColumns+` FROM payments`, opts, allowed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, wrapErr(op, err)
		}
		result = append(result, p)
	}
	if err = rows.Err(); err != nil {
		return nil, wrapErr(op, err)
	}
	return result, nil
}
