package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/faceit-stats-bot/internal/models"
)

// InsertMigrationLog записывает строку аудита запуска миграции.
func (s *Storage) InsertMigrationLog(ctx context.Context, entry models.MigrationLog) (string, error) {
	const op = "storage.InsertMigrationLog"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newID string
	query := `INSERT INTO migration_logs (source_file, total_records, migrated_count,
			      failed_count, success, elapsed_ms, backup_path, errors)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  RETURNING id`
	if err := s.DB.QueryRowContext(ctx, query,
		entry.SourceFile, entry.TotalRecords, entry.MigratedCount, entry.FailedCount,
		entry.Success, entry.ElapsedMs, entry.BackupPath, entry.ErrorsJSON).Scan(&newID); err != nil {
		return "", wrapErr(op, err)
	}
	return newID, nil
}

// ListMigrationLogs возвращает последние запуски миграции, новые первыми.
func (s *Storage) ListMigrationLogs(ctx context.Context, limit int) ([]*models.MigrationLog, error) {
	const op = "storage.ListMigrationLogs"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, source_file, total_records, migrated_count, failed_count,
			      success, elapsed_ms, backup_path, errors, created_at
			  FROM migration_logs
			  ORDER BY created_at DESC
			  LIMIT $1`
	rows, err := s.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.MigrationLog
	for rows.Next() {
		var entry models.MigrationLog
		if err := rows.Scan(&entry.ID, &entry.SourceFile, &entry.TotalRecords,
			&entry.MigratedCount, &entry.FailedCount, &entry.Success,
			&entry.ElapsedMs, &entry.BackupPath, &entry.ErrorsJSON, &entry.CreatedAt); err != nil {
			return nil, wrapErr(op, err)
		}
		result = append(result, &entry)
	}
	if err = rows.Err(); err != nil {
		return nil, wrapErr(op, err)
	}
	return result, nil
}

// TruncateUserData очищает пользовательские таблицы в порядке зависимостей:
// сначала дочерние, затем users. Кеши и аналитика не трогаются.
func (s *Storage) TruncateUserData(ctx context.Context) error {
	const op = "storage.TruncateUserData"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tables := []string{"match_analyses", "payments", "user_subscriptions", "users"}
	for _, table := range tables {
		if _, err := s.DB.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return wrapErr(op, err)
		}
	}
	return nil
}
