package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/faceit-stats-bot/internal/models"
)

const userColumns = `id, telegram_id, faceit_player_id, faceit_nickname, language,
			      notifications_enabled, total_requests, created_at, updated_at, last_active_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	u := &models.User{}
	var playerID, nickname sql.NullString
	var lastActive sql.NullTime
	if err := row.Scan(&u.ID, &u.TelegramID, &playerID, &nickname, &u.Language,
		&u.NotificationsEnabled, &u.TotalRequests, &u.CreatedAt, &u.UpdatedAt, &lastActive); err != nil {
		return nil, err
	}
	if playerID.Valid {
		u.FaceitPlayerID = &playerID.String
	}
	if nickname.Valid {
		u.FaceitNickname = &nickname.String
	}
	if lastActive.Valid {
		u.LastActiveAt = &lastActive.Time
	}
	return u, nil
}

// CreateUser сохраняет нового пользователя и возвращает его UUID.
func (s *Storage) CreateUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.CreateUser"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newID string
	query := `INSERT INTO users (telegram_id, faceit_player_id, faceit_nickname, language,
			      notifications_enabled)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING id`
	if err := s.DB.QueryRowContext(ctx, query,
		user.TelegramID, user.FaceitPlayerID, user.FaceitNickname, user.Language,
		user.NotificationsEnabled).Scan(&newID); err != nil {
		return "", wrapErr(op, err)
	}
	return newID, nil
}

// GetUserByTelegramID возвращает пользователя по идентификатору телеграма.
func (s *Storage) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	const op = "storage.GetUserByTelegramID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE telegram_id = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, telegramID))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return u, nil
}

// GetUserByID возвращает пользователя по его UUID.
func (s *Storage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	const op = "storage.GetUserByID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE id = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return u, nil
}

// GetUserByFaceitNickname возвращает пользователя, к которому привязан данный ник.
func (s *Storage) GetUserByFaceitNickname(ctx context.Context, nickname string) (*models.User, error) {
	const op = "storage.GetUserByFaceitNickname"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE faceit_nickname = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, nickname))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return u, nil
}

// LinkFaceitAccount привязывает аккаунт FACEIT к пользователю.
func (s *Storage) LinkFaceitAccount(ctx context.Context, userID, playerID, nickname string) error {
	const op = "storage.LinkFaceitAccount"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET faceit_player_id = $1, faceit_nickname = $2, updated_at = now()
			  WHERE id = $3`
	res, err := s.DB.ExecContext(ctx, query, playerID, nickname, userID)
	if err != nil {
		return wrapErr(op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return wrapErr(op, sql.ErrNoRows)
	}
	return nil
}

// IncrementTotalRequests увеличивает общий счетчик запросов пользователя
// и отмечает его активность.
func (s *Storage) IncrementTotalRequests(ctx context.Context, userID string) error {
	const op = "storage.IncrementTotalRequests"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET total_requests = total_requests + 1, last_active_at = now()
			  WHERE id = $1`
	if _, err := s.DB.ExecContext(ctx, query, userID); err != nil {
		return wrapErr(op, err)
	}
	return nil
}

// UpdateUserSettings обновляет язык и флаг уведомлений.
func (s *Storage) UpdateUserSettings(ctx context.Context, userID, language string, notifications bool) error {
	const op = "storage.UpdateUserSettings"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET language = $1, notifications_enabled = $2, updated_at = now()
			  WHERE id = $3`
	if _, err := s.DB.ExecContext(ctx, query, language, notifications, userID); err != nil {
		return wrapErr(op, err)
	}
	return nil
}

// DeleteUser удаляет пользователя, подписка, платежи и разборы
// удаляются каскадно на уровне схемы. Используется только админом.
func (s *Storage) DeleteUser(ctx context.Context, userID string) (int64, error) {
	const op = "storage.DeleteUser"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return 0, wrapErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapErr(op, err)
	}
	return n, nil
}

// ListUsers возвращает пользователей по предикатам фильтра с пагинацией.
func (s *Storage) ListUsers(ctx context.Context, opts models.ListOptions) ([]*models.User, error) {
	const op = "storage.ListUsers"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	allowed := map[string]bool{
		"telegram_id": true, "faceit_nickname": true, "language": true,
		"total_requests": true, "created_at": true, "last_active_at": true,
	}
	query, args, err := buildListQuery(`SELECT `+userColumns+` FROM users`, opts, allowed)
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

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, wrapErr(op, err)
		}
		result = append(result, u)
	}
	if err = rows.Err(); err != nil {
		return nil, wrapErr(op, err)
	}
	return result, nil
}

// CreateUserWithSubscription в одной транзакции создает пользователя
// и его подписку. Используется при регистрации и переносе записей миграцией:
// пара либо записывается целиком, либо не записывается вовсе.
func (s *Storage) CreateUserWithSubscription(ctx context.Context, user models.User, sub models.Subscription) (string, error) {
	const op = "storage.CreateUserWithSubscription"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var userID string
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO users (telegram_id, faceit_player_id, faceit_nickname, language,
			    notifications_enabled, total_requests, created_at, last_active_at)
			VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()), $8)
			RETURNING id`,
			user.TelegramID, user.FaceitPlayerID, user.FaceitNickname, user.Language,
			user.NotificationsEnabled, user.TotalRequests, nullableTime(user.CreatedAt),
			user.LastActiveAt).Scan(&userID)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO user_subscriptions (user_id, tier, expires_at, auto_renew,
			    daily_requests, last_reset_date, referral_code, referrals_count,
			    referred_by_user_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			userID, string(sub.Tier), sub.ExpiresAt, sub.AutoRenew,
			sub.DailyRequests, sub.LastResetDate, sub.ReferralCode, sub.ReferralsCount,
			sub.ReferredByUserID)
		return err
	})
	if err != nil {
		return "", wrapErr(op, err)
	}
	return userID, nil
}

// nullableTime отдает nil для нулевого времени, чтобы сработал DEFAULT.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// CountUsers возвращает общее число пользователей и число пользователей
// с привязанным аккаунтом FACEIT. Используется проверкой целостности миграции.
func (s *Storage) CountUsers(ctx context.Context) (total int, linked int, err error) {
	const op = "storage.CountUsers"
	select {
	case <-ctx.Done():
		return 0, 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT COUNT(*), COUNT(faceit_player_id) FROM users`
	if err := s.DB.QueryRowContext(ctx, query).Scan(&total, &linked); err != nil {
		return 0, 0, wrapErr(op, err)
	}
	return total, linked, nil
}
