package migration

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/magabrotheeeer/faceit-stats-bot/internal/lib/sl"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/models"
)

// Значения по умолчанию для пакетного переноса.
const (
	DefaultBatchSize   = 100
	DefaultConcurrency = 5

	lockAttempts = 5
	lockDelay    = time.Second
)

// Repository методы хранилища, нужные конвейеру миграции.
type Repository interface {
	CheckDatabaseReady(ctx context.Context) error
	AcquireMigrationLock(ctx context.Context, attempts int, delay time.Duration) (release func() error, err error)
	CreateUserWithSubscription(ctx context.Context, user models.User, sub models.Subscription) (string, error)
	TruncateUserData(ctx context.Context) error
	CountUsers(ctx context.Context) (total int, linked int, err error)
	TierDistribution(ctx context.Context) (map[models.Tier]int, error)
	InsertMigrationLog(ctx context.Context, entry models.MigrationLog) (string, error)
	ListMigrationLogs(ctx context.Context, limit int) ([]*models.MigrationLog, error)
}

// Options параметры запуска конвейера.
type Options struct {
	BatchSize   int    // Размер пакета, DefaultBatchSize при нуле
	Concurrency int    // Потолок конкурентности внутри пакета, DefaultConcurrency при нуле
	DryRun      bool   // Остановиться перед переносом
	Truncate    bool   // Очистить целевые таблицы перед переносом
	SkipBackup  bool   // Не делать резервную копию источника
	BackupDir   string // Каталог для резервной копии, по умолчанию каталог источника
}

// Result итог одного запуска конвейера.
type Result struct {
	SourceFile    string        `json:"source_file"`
	TotalRecords  int           `json:"total_records"`
	MigratedCount int           `json:"migrated_count"`
	FailedCount   int           `json:"failed_count"`
	Errors        []string      `json:"errors,omitempty"`
	Warnings      []string      `json:"warnings,omitempty"`
	BackupPath    *string       `json:"backup_path,omitempty"`
	Elapsed       time.Duration `json:"elapsed"`
	DryRun        bool          `json:"dry_run"`
	Success       bool          `json:"success"`
}

// Pipeline конвейер переноса JSON-снимка в PostgreSQL.
type Pipeline struct {
	repo Repository
	log  *slog.Logger
	opts Options
}

// New создает конвейер миграции.
func New(repo Repository, log *slog.Logger, opts Options) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Pipeline{repo: repo, log: log, opts: opts}
}

// Run выполняет все стадии конвейера над файлом sourcePath.
// Ошибки отдельных записей считаются и пропускаются, фатальны только
// ошибки стадий до переноса. Запуски взаимно исключаются блокировкой.
func (p *Pipeline) Run(ctx context.Context, sourcePath string) (*Result, error) {
	const op = "migration.Run"
	started := time.Now()
	result := &Result{SourceFile: sourcePath, DryRun: p.opts.DryRun}

	// Стадия 1: предусловия.
	if _, err := os.Stat(sourcePath); err != nil {
		return nil, fmt.Errorf("%s: source file: %w", op, err)
	}
	if err := p.repo.CheckDatabaseReady(ctx); err != nil {
		return nil, fmt.Errorf("%s: target store: %w", op, err)
	}

	release, err := p.repo.AcquireMigrationLock(ctx, lockAttempts, lockDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if err := release(); err != nil {
			p.log.Warn("failed to release migration lock", sl.Err(err))
		}
	}()

	// Стадия 2: загрузка и структурная валидация.
	src, err := Load(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	report := Validate(src)
	result.TotalRecords = len(src.Users)
	result.Errors = append(result.Errors, report.Errors...)
	result.Warnings = append(result.Warnings, report.Warnings...)
	result.FailedCount = len(report.BadRecords)

	// Стадия 3: резервная копия.
	if !p.opts.SkipBackup {
		backupPath, err := Backup(sourcePath, p.opts.BackupDir)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result.BackupPath = &backupPath
		p.log.Info("source backed up", slog.String("path", backupPath))
	}

	if p.opts.DryRun {
		result.Success = result.FailedCount == 0
		result.Elapsed = time.Since(started)
		p.log.Info("dry run finished",
			slog.Int("total", result.TotalRecords),
			slog.Int("invalid", result.FailedCount))
		return result, nil
	}

	// Стадия 4: очистка целевых таблиц.
	if p.opts.Truncate {
		if err := p.repo.TruncateUserData(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		p.log.Info("destination tables truncated")
	}

	// Стадия 5: пакетный перенос.
	p.transfer(ctx, src, report, result)

	// Стадия 6: проверка целостности.
	consistent := p.verify(ctx, src, report, result)

	result.Elapsed = time.Since(started)
	result.Success = result.FailedCount == 0 && consistent && ctx.Err() == nil

	// Стадия 7: строка аудита.
	if err := p.audit(ctx, result); err != nil {
		p.log.Warn("failed to record migration log", sl.Err(err))
	}

	p.log.Info("migration finished",
		slog.Int("total", result.TotalRecords),
		slog.Int("migrated", result.MigratedCount),
		slog.Int("failed", result.FailedCount),
		slog.Bool("success", result.Success),
		slog.Duration("elapsed", result.Elapsed))
	return result, nil
}

// transfer переносит записи пакетами, внутри пакета конкурентно
// до потолка Concurrency. Ошибка записи не прерывает пакет.
func (p *Pipeline) transfer(ctx context.Context, src *SourceFile, report *Report, result *Result) {
	var mu sync.Mutex
	now := time.Now()

	for start := 0; start < len(src.Users); start += p.opts.BatchSize {
		end := start + p.opts.BatchSize
		if end > len(src.Users) {
			end = len(src.Users)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.opts.Concurrency)
		for i := start; i < end; i++ {
			if report.BadRecords[i] {
				continue
			}
			index, rec := i, src.Users[i]
			g.Go(func() error {
				user, sub, err := MapRecord(rec, now)
				if err == nil {
					_, err = p.repo.CreateUserWithSubscription(gctx, user, sub)
				}

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					result.FailedCount++
					result.Errors = append(result.Errors,
						fmt.Sprintf("record %d (user_id %d): %v", index, rec.UserID, err))
					return nil
				}
				result.MigratedCount++
				return nil
			})
		}
		// Горутины не возвращают ошибок, Wait только дожидается пакета.
		_ = g.Wait()

		p.log.Debug("batch transferred",
			slog.Int("from", start), slog.Int("to", end))
	}
}

// verify сравнивает агрегаты источника и целевой базы. Расхождение
// является ошибкой отчета, но не прерывает запуск. Без очистки целевых
// таблиц старые строки ожидаемы, поэтому расхождение только предупреждение.
func (p *Pipeline) verify(ctx context.Context, src *SourceFile, report *Report, result *Result) bool {
	wantTotal, wantLinked := 0, 0
	wantTiers := make(map[models.Tier]int)
	for i, rec := range src.Users {
		if report.BadRecords[i] {
			continue
		}
		wantTotal++
		if rec.FaceitPlayerID != nil && rec.FaceitNickname != nil {
			wantLinked++
		}
		tier := models.TierFree
		if rec.Subscription != nil && rec.Subscription.Tier != "" {
			tier = models.Tier(rec.Subscription.Tier)
		}
		wantTiers[tier]++
	}

	consistent := true
	mismatch := func(format string, args ...any) {
		message := fmt.Sprintf(format, args...)
		if p.opts.Truncate {
			result.Errors = append(result.Errors, message)
			consistent = false
		} else {
			result.Warnings = append(result.Warnings, message)
		}
	}

	gotTotal, gotLinked, err := p.repo.CountUsers(ctx)
	if err != nil {
		mismatch("integrity check: count users: %v", err)
		return consistent
	}
	if gotTotal != wantTotal {
		mismatch("integrity check: total users: source %d, destination %d", wantTotal, gotTotal)
	}
	if gotLinked != wantLinked {
		mismatch("integrity check: linked users: source %d, destination %d", wantLinked, gotLinked)
	}

	gotTiers, err := p.repo.TierDistribution(ctx)
	if err != nil {
		mismatch("integrity check: tier distribution: %v", err)
		return consistent
	}
	for tier, want := range wantTiers {
		if gotTiers[tier] != want {
			mismatch("integrity check: tier %s: source %d, destination %d", tier, want, gotTiers[tier])
		}
	}
	return consistent
}

func (p *Pipeline) audit(ctx context.Context, result *Result) error {
	errorsJSON, err := json.Marshal(result.Errors)
	if err != nil {
		return err
	}
	_, err = p.repo.InsertMigrationLog(ctx, models.MigrationLog{
		SourceFile:    result.SourceFile,
		TotalRecords:  result.TotalRecords,
		MigratedCount: result.MigratedCount,
		FailedCount:   result.FailedCount,
		Success:       result.Success,
		ElapsedMs:     result.Elapsed.Milliseconds(),
		BackupPath:    result.BackupPath,
		ErrorsJSON:    string(errorsJSON),
	})
	return err
}

// Rollback очищает целевые таблицы и, если указана резервная копия,
// возвращает ее на место источника. Безопасен при повторном вызове
// и после частично неудавшейся миграции.
func (p *Pipeline) Rollback(ctx context.Context, backupPath, restoreTo string) error {
	const op = "migration.Rollback"

	release, err := p.repo.AcquireMigrationLock(ctx, lockAttempts, lockDelay)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if err := release(); err != nil {
			p.log.Warn("failed to release migration lock", sl.Err(err))
		}
	}()

	if err := p.repo.TruncateUserData(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	p.log.Info("destination tables truncated")

	if backupPath != "" && restoreTo != "" {
		if err := Restore(backupPath, restoreTo); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		p.log.Info("source restored from backup",
			slog.String("backup", backupPath), slog.String("to", restoreTo))
	}
	return nil
}

// Status возвращает последние запуски миграции, новые первыми.
func (p *Pipeline) Status(ctx context.Context, limit int) ([]*models.MigrationLog, error) {
	if limit <= 0 {
		limit = 10
	}
	return p.repo.ListMigrationLogs(ctx, limit)
}
