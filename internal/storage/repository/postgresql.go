// Package repository реализует хранилище данных на основе PostgreSQL
// для пользователей бота, их подписок, платежей и кешей статистики.
// Предоставляет методы создания, чтения, обновления, удаления
// и агрегирования записей.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/magabrotheeeer/faceit-stats-bot/internal/lib/errs"
)

// Storage инкапсулирует соединение с базой данных PostgreSQL
// и реализует методы работы со всеми таблицами системы.
type Storage struct {
	DB  *sql.DB
	log *slog.Logger
}

// New создаёт подключение к PostgreSQL с ограниченным числом повторов пинга.
func New(storageConnectionString string, log *slog.Logger) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	delay := time.Second
	for attempt := 1; ; attempt++ {
		err = db.PingContext(context.Background())
		if err == nil {
			break
		}
		if attempt == 5 {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		time.Sleep(delay)
		delay *= 2
	}

	return &Storage{DB: db, log: log}, nil
}

// CheckDatabaseReady проверяет готовность базы данных.
func (s *Storage) CheckDatabaseReady(ctx context.Context) error {
	var exists bool
	err := s.DB.QueryRowContext(ctx, `SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'users'
    )`).Scan(&exists)
	if err != nil || !exists {
		return fmt.Errorf("required table users missing or query error: %w", err)
	}
	return nil
}

// WithTx выполняет fn внутри транзакции: commit при успехе,
// rollback с записью в лог при любой ошибке.
func (s *Storage) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	const op = "storage.WithTx"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Error("transaction rollback failed", "error", rbErr.Error())
		} else {
			s.log.Warn("transaction rolled back", "error", err.Error())
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// wrapErr переводит ошибку драйвера в доменную. Текст исходной ошибки
// сохраняется только внутри ErrOperation и не показывается пользователю.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, errs.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", op, errs.ErrAlreadyExists)
	}
	return fmt.Errorf("%s: %w: %v", op, errs.ErrOperation, err)
}
