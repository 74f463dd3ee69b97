package repository

import (
	"context"
	"fmt"
	"time"
)

// Ключ advisory-блокировки запуска миграции. Общий для всех операторов,
// работающих с одной базой.
const migrationLockKey = 724011001

// AcquireMigrationLock берет advisory-блокировку запуска миграции
// с ограниченным числом попыток и удвоением задержки между ними.
// Блокировка живет на выделенном соединении, release обязателен.
func (s *Storage) AcquireMigrationLock(ctx context.Context, attempts int, delay time.Duration) (release func() error, err error) {
	const op = "storage.AcquireMigrationLock"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	conn, err := s.DB.Conn(ctx)
	if err != nil {
		return nil, wrapErr(op, err)
	}

	for i := 0; i < attempts; i++ {
		var locked bool
		if err := conn.QueryRowContext(ctx,
			`SELECT pg_try_advisory_lock($1)`, migrationLockKey).Scan(&locked); err != nil {
			_ = conn.Close()
			return nil, wrapErr(op, err)
		}
		if locked {
			return func() error {
				_, unlockErr := conn.ExecContext(context.Background(),
					`SELECT pg_advisory_unlock($1)`, migrationLockKey)
				closeErr := conn.Close()
				if unlockErr != nil {
					return fmt.Errorf("%s: %w", op, unlockErr)
				}
				return closeErr
			}, nil
		}

		select {
		case <-ctx.Done():
			_ = conn.Close()
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}

	_ = conn.Close()
	return nil, fmt.Errorf("%s: migration lock is held by another run", op)
}
