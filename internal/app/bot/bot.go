// Package bot собирает HTTP-бэкенд бота: хранилище, кеш, брокер,
// клиент FACEIT, сервисы и маршруты.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/faceit-stats-bot/internal/cache"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/config"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/faceit"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/lib/jwt"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/migrations"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/rabbitmq"
	paymentservice "github.com/magabrotheeeer/faceit-stats-bot/internal/services/payment"
	statsservice "github.com/magabrotheeeer/faceit-stats-bot/internal/services/stats"
	subscriptionservice "github.com/magabrotheeeer/faceit-stats-bot/internal/services/subscription"
	userservice "github.com/magabrotheeeer/faceit-stats-bot/internal/services/user"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/storage/repository"
)

// App HTTP-приложение бота со всеми зависимостями.
type App struct {
	server   *http.Server
	logger   *slog.Logger
	db       *repository.Storage
	amqpConn *amqp.Connection
}

// New собирает приложение: подключается к PostgreSQL, применяет миграции,
// инициализирует кеш, брокер и клиента FACEIT, регистрирует маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString, logger)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, "./migrations"); err != nil {
		return nil, err
	}

	var c cache.Cache
	if cfg.RedisConnection.Enabled {
		redisCache, err := cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			return nil, err
		}
		c = redisCache
	} else {
		logger.Warn("redis is disabled, using no-op cache")
		c = cache.NewNoop()
	}

	var amqpConn *amqp.Connection
	var subPublisher subscriptionservice.EventPublisher
	var payPublisher paymentservice.EventPublisher
	if cfg.RabbitMQURL != "" {
		amqpConn, err = rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq connect: %w", err)
		}
		ch, err := rabbitmq.SetupChannel(amqpConn, rabbitmq.GetNotificationQueues())
		if err != nil {
			return nil, fmt.Errorf("rabbitmq setup: %w", err)
		}
		publisher := rabbitmq.NewChannelPublisher(ch)
		subPublisher = publisher
		payPublisher = publisher
	} else {
		logger.Warn("rabbitmq url is empty, event publishing is disabled")
	}

	faceitClient := faceit.NewClient(cfg.FaceitAPI)
	tokenMaker := jwt.NewJWTMaker(cfg.TokenSecretKey, cfg.TokenTTL)

	subscriptionService := subscriptionservice.New(db, c, subPublisher, logger)
	userService := userservice.New(db, faceitClient, c, logger)
	paymentService := paymentservice.New(db, c, payPublisher, logger)
	statsService := statsservice.New(db, faceitClient, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, tokenMaker, db,
		userService, subscriptionService, paymentService, statsService)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:   srv,
		logger:   logger,
		db:       db,
		amqpConn: amqpConn,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его при отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if a.amqpConn != nil {
			_ = a.amqpConn.Close()
		}
		_ = a.db.DB.Close()
		return err
	}
}
