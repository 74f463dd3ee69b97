package repository

import (
	"context"
	"encoding/json"
	"fmt"
)

// GetSetting возвращает значение системной настройки по ключу.
func (s *Storage) GetSetting(ctx context.Context, key string) (json.RawMessage, error) {
	const op = "storage.GetSetting"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var value []byte
	query := `SELECT value FROM system_settings WHERE key = $1`
	if err := s.DB.QueryRowContext(ctx, query, key).Scan(&value); err != nil {
		return nil, wrapErr(op, err)
	}
	return json.RawMessage(value), nil
}

// SetSetting записывает значение системной настройки, создавая ключ
// при первом обращении.
func (s *Storage) SetSetting(ctx context.Context, key string, value json.RawMessage) error {
	const op = "storage.SetSetting"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO system_settings (key, value)
			  VALUES ($1, $2)
			  ON CONFLICT (key) DO UPDATE
			  SET value = EXCLUDED.value, updated_at = now()`
	if _, err := s.DB.ExecContext(ctx, query, key, []byte(value)); err != nil {
		return wrapErr(op, err)
	}
	return nil
}
