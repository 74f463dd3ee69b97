package bot

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/faceit-stats-bot/internal/http/handlers/health"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/http/handlers/payment/invoicecreate"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/http/handlers/payment/paymentlist"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/http/handlers/payment/webhook"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/http/handlers/quota/check"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/http/handlers/quota/consume"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/http/handlers/referral/apply"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/http/handlers/referral/code"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/http/handlers/stats/analyseslist"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/http/handlers/stats/analyze"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/http/handlers/stats/player"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/http/handlers/user/link"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/http/handlers/user/profile"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/http/handlers/user/register"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/http/handlers/user/settings"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/http/middlewarectx"
	paymentservice "github.com/magabrotheeeer/faceit-stats-bot/internal/services/payment"
	statsservice "github.com/magabrotheeeer/faceit-stats-bot/internal/services/stats"
	subscriptionservice "github.com/magabrotheeeer/faceit-stats-bot/internal/services/subscription"
	userservice "github.com/magabrotheeeer/faceit-stats-bot/internal/services/user"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/storage/repository"
)

// Общий лимит запросов к серверу, дневные квоты пользователей проверяются сервисами.
const (
	rateLimitRPS   = 50
	rateLimitBurst = 100
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, tokenMaker middlewarectx.Maker,
	db *repository.Storage,
	userService *userservice.Service,
	subscriptionService *subscriptionservice.Service,
	paymentService *paymentservice.Service,
	statsService *statsservice.Service,
) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/users/register", register.New(logger, userService).ServeHTTP)
		r.Get("/health", health.New(logger, db).ServeHTTP)

		// Группа с сервисным токеном фронтенда бота
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(tokenMaker, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger, rateLimitRPS, rateLimitBurst))

			r.Get("/users/{telegram_id}", profile.New(logger, userService).ServeHTTP)
			r.Post("/users/{telegram_id}/link", link.New(logger, userService).ServeHTTP)
			r.Put("/users/{telegram_id}/settings", settings.New(logger, userService).ServeHTTP)

			r.Get("/quota/{telegram_id}", check.New(logger, subscriptionService).ServeHTTP)
			r.Post("/quota/{telegram_id}", consume.New(logger, subscriptionService).ServeHTTP)

			r.Post("/referrals/{telegram_id}/code", code.New(logger, subscriptionService).ServeHTTP)
			r.Post("/referrals/{telegram_id}/apply", apply.New(logger, subscriptionService).ServeHTTP)

			r.Post("/payments/{telegram_id}/invoice", invoicecreate.New(logger, paymentService).ServeHTTP)
			r.Get("/payments/{telegram_id}", paymentlist.New(logger, paymentService).ServeHTTP)

			r.Get("/stats/{telegram_id}/player", player.New(logger, statsService, subscriptionService).ServeHTTP)
			r.Post("/stats/{telegram_id}/analyze", analyze.New(logger, statsService, subscriptionService).ServeHTTP)
			r.Get("/stats/{telegram_id}/analyses", analyseslist.New(logger, statsService).ServeHTTP)
		})

		// Webhook endpoint (без аутентификации)
		r.Post("/payments/webhook", webhook.New(logger, paymentService).ServeHTTP)
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
