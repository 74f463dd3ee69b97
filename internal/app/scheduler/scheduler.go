// Package scheduler содержит фоновое приложение обслуживания: перевод
// истекших подписок на free, чистку кешей статистики и старых метрик.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/faceit-stats-bot/internal/cache"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/config"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/faceit"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/lib/sl"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/rabbitmq"
	statsservice "github.com/magabrotheeeer/faceit-stats-bot/internal/services/stats"
	subscriptionservice "github.com/magabrotheeeer/faceit-stats-bot/internal/services/subscription"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/storage/repository"
)

const (
	sweepInterval      = time.Hour
	analyticsRetention = 30 * 24 * time.Hour
	lastSweepKey       = "last_expiry_sweep"
)

// App представляет приложение планировщика.
type App struct {
	subscriptionService *subscriptionservice.Service
	statsService        *statsservice.Service
	db                  *repository.Storage
	conn                *amqp.Connection
	ch                  *amqp.Channel
	logger              *slog.Logger
}

func waitForDB(ctx context.Context, db *repository.Storage) error {
	for range 10 {
		err := db.CheckDatabaseReady(ctx)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	queues := rabbitmq.GetNotificationQueues()
	ch, err := rabbitmq.SetupChannel(conn, queues)
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	db, err := repository.New(cfg.StorageConnectionString, logger)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err := waitForDB(ctx, db); err != nil {
		closeResources(ch, conn, logger)
		return nil, err
	}

	var c cache.Cache
	if cfg.RedisConnection.Enabled {
		redisCache, err := cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			closeResources(ch, conn, logger)
			return nil, fmt.Errorf("cache not initialized: %w", err)
		}
		c = redisCache
	} else {
		c = cache.NewNoop()
	}

	publisher := rabbitmq.NewChannelPublisher(ch)
	subscriptionService := subscriptionservice.New(db, c, publisher, logger)
	statsService := statsservice.New(db, faceit.NewClient(cfg.FaceitAPI), logger)

	return &App{
		subscriptionService: subscriptionService,
		statsService:        statsService,
		db:                  db,
		conn:                conn,
		ch:                  ch,
		logger:              logger,
	}, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", "error", err)
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", "error", err)
		}
	}
}

// Run запускает периодическую чистку и блокируется до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	a.sweep(ctx)
	for {
		select {
		case <-ticker.C:
			a.sweep(ctx)
		case <-ctx.Done():
			a.logger.Info("shutting down scheduler service")
			closeResources(a.ch, a.conn, a.logger)
			_ = a.db.DB.Close()
			return nil
		}
	}
}

// sweep выполняет один проход обслуживания. Ошибки отдельных шагов
// логируются и не прерывают остальные.
func (a *App) sweep(ctx context.Context) {
	expired, err := a.subscriptionService.CheckAndExpireSubscriptions(ctx)
	if err != nil {
		a.logger.Error("failed to expire subscriptions", sl.Err(err))
	} else {
		a.logger.Info("expiry sweep done", slog.Int("expired", expired))
	}

	purged, err := a.statsService.PurgeExpired(ctx)
	if err != nil {
		a.logger.Error("failed to purge stats caches", sl.Err(err))
	} else {
		a.logger.Info("stats caches purged", slog.Int64("rows", purged))
	}

	pruned, err := a.statsService.PruneAnalytics(ctx, time.Now().Add(-analyticsRetention))
	if err != nil {
		a.logger.Error("failed to prune analytics", sl.Err(err))
	} else {
		a.logger.Info("analytics pruned", slog.Int64("rows", pruned))
	}

	stamp, _ := json.Marshal(time.Now().UTC().Format(time.RFC3339))
	if err := a.db.SetSetting(ctx, lastSweepKey, stamp); err != nil {
		a.logger.Error("failed to record sweep timestamp", sl.Err(err))
	}
}
