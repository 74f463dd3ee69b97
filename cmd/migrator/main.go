// Утилита переноса JSON-снимка пользователей в PostgreSQL.
//
// Подкоманды:
//
//	migrate <file>   перенос снимка, флаги --dry-run --batch-size --truncate --no-backup
//	validate <file>  только загрузка и валидация снимка
//	status           последние запуски миграции
//	rollback         очистка целевых таблиц, флаги --backup --restore-to
//	backup <file>    резервная копия снимка без переноса
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/magabrotheeeer/faceit-stats-bot/internal/config"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/lib/sl"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/migration"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/migrations"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/storage/repository"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		return fmt.Errorf("usage: migrator <migrate|validate|status|rollback|backup> [flags]")
	}
	command, args := os.Args[1], os.Args[2:]

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := context.Background()

	switch command {
	case "validate":
		return runValidate(args)
	case "backup":
		return runBackup(args)
	}

	cfg := config.MustLoad()
	db, err := repository.New(cfg.StorageConnectionString, logger)
	if err != nil {
		return err
	}
	defer func() { _ = db.DB.Close() }()
	if err := migrations.Run(db.DB, "./migrations"); err != nil {
		return err
	}

	switch command {
	case "migrate":
		return runMigrate(ctx, args, db, logger)
	case "status":
		return runStatus(ctx, args, db, logger)
	case "rollback":
		return runRollback(ctx, args, db, logger)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func runMigrate(ctx context.Context, args []string, db *repository.Storage, logger *slog.Logger) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "validate and stop before transfer")
	batchSize := fs.Int("batch-size", migration.DefaultBatchSize, "records per batch")
	concurrency := fs.Int("concurrency", migration.DefaultConcurrency, "concurrent inserts per batch")
	truncate := fs.Bool("truncate", false, "truncate destination tables before transfer")
	noBackup := fs.Bool("no-backup", false, "skip source backup")
	backupDir := fs.String("backup-dir", "", "directory for the source backup")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: migrator migrate [flags] <file>")
	}

	pipeline := migration.New(db, logger, migration.Options{
		BatchSize:   *batchSize,
		Concurrency: *concurrency,
		DryRun:      *dryRun,
		Truncate:    *truncate,
		SkipBackup:  *noBackup,
		BackupDir:   *backupDir,
	})
	result, err := pipeline.Run(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	printJSON(result)
	if !result.Success {
		return fmt.Errorf("migration finished with %d failed records", result.FailedCount)
	}
	return nil
}

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: migrator validate <file>")
	}

	src, err := migration.Load(fs.Arg(0))
	if err != nil {
		return err
	}
	report := migration.Validate(src)
	printJSON(map[string]any{
		"total_records": len(src.Users),
		"bad_records":   len(report.BadRecords),
		"errors":        report.Errors,
		"warnings":      report.Warnings,
	})
	if len(report.Errors) > 0 {
		return fmt.Errorf("snapshot has %d invalid records", len(report.BadRecords))
	}
	return nil
}

func runStatus(ctx context.Context, args []string, db *repository.Storage, logger *slog.Logger) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	limit := fs.Int("limit", 10, "number of runs to show")
	_ = fs.Parse(args)

	pipeline := migration.New(db, logger, migration.Options{})
	logs, err := pipeline.Status(ctx, *limit)
	if err != nil {
		return err
	}
	printJSON(logs)
	return nil
}

func runRollback(ctx context.Context, args []string, db *repository.Storage, logger *slog.Logger) error {
	fs := flag.NewFlagSet("rollback", flag.ExitOnError)
	backupPath := fs.String("backup", "", "backup file to restore the source from")
	restoreTo := fs.String("restore-to", "", "path to restore the source to")
	_ = fs.Parse(args)

	pipeline := migration.New(db, logger, migration.Options{})
	if err := pipeline.Rollback(ctx, *backupPath, *restoreTo); err != nil {
		return err
	}
	logger.Info("rollback finished")
	return nil
}

func runBackup(args []string) error {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	backupDir := fs.String("backup-dir", "", "directory for the backup")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: migrator backup [flags] <file>")
	}

	path, err := migration.Backup(fs.Arg(0), *backupDir)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		slog.Error("failed to render result", sl.Err(err))
		return
	}
	fmt.Println(string(data))
}
