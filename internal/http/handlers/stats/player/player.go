// Package player реализует HTTP-обработчик выдачи статистики игрока FACEIT.
//
// Запрос расходует дневную квоту пользователя: перед обращением к данным
// проверяется остаток, при успехе счетчик увеличивается.
package player

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/faceit-stats-bot/internal/http/response"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/lib/errs"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/lib/sl"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/models"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/services/stats"
)

// Handler управляет HTTP-запросами на получение статистики игрока.
type Handler struct {
	log     *slog.Logger
	service Service
	quota   Quota
}

// Service описывает интерфейс бизнес-логики статистики.
type Service interface {
	GetPlayerStats(ctx context.Context, nickname, game string) (*stats.PlayerStats, error)
}

// Quota описывает интерфейс проверки и списания дневной квоты.
type Quota interface {
	CanMakeRequest(ctx context.Context, telegramID int64) (bool, *models.QuotaInfo, error)
	RegisterRequest(ctx context.Context, telegramID int64) error
}

// New создает новый Handler с переданными логгером, сервисом и квотами.
func New(log *slog.Logger, service Service, quota Quota) *Handler {
	return &Handler{
		log:     log,
		service: service,
		quota:   quota,
	}
}

// ServeHTTP godoc
// @Summary Получить статистику игрока
// @Description Возвращает статистику игрока FACEIT, из кеша либо из Data API. Списывает один запрос из дневной квоты.
// @Tags Stats
// @Produce  json
// @Param telegram_id path int true "Идентификатор телеграма"
// @Param nickname query string true "Ник игрока FACEIT"
// @Param game query string false "Игра, по умолчанию cs2"
// @Success 200 {object} response.Response "Статистика игрока"
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 422 {object} response.ErrorResponse "Игрок FACEIT не найден"
// @Failure 429 {object} response.Response "Квота исчерпана, в данных указано retry_after_sec"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /stats/{telegram_id}/player [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.stats.player"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	telegramID, err := strconv.ParseInt(chi.URLParam(r, "telegram_id"), 10, 64)
	if err != nil {
		log.Error("invalid telegram id", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid telegram id"))
		return
	}

	nickname := r.URL.Query().Get("nickname")
	if nickname == "" {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("nickname is required"))
		return
	}
	game := r.URL.Query().Get("game")

	allowed, info, err := h.quota.CanMakeRequest(r.Context(), telegramID)
	if err != nil {
		if errors.Is(err, errs.ErrUserNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		log.Error("failed to check quota", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not check quota"))
		return
	}
	if !allowed {
		log.Info("quota exhausted", slog.Int64("telegram_id", telegramID))
		w.WriteHeader(http.StatusTooManyRequests)
		render.JSON(w, r, response.OKWithData(info))
		return
	}

	playerStats, err := h.service.GetPlayerStats(r.Context(), nickname, game)
	if err != nil {
		var vErr *errs.ValidationError
		if errors.As(err, &vErr) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		log.Error("failed to get player stats", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not get player stats"))
		return
	}

	if err := h.quota.RegisterRequest(r.Context(), telegramID); err != nil {
		log.Error("failed to register request", sl.Err(err))
	}

	log.Info("player stats served",
		slog.Int64("telegram_id", telegramID),
		slog.String("nickname", nickname),
		slog.Bool("from_cache", playerStats.FromCache))
	render.JSON(w, r, response.OKWithData(playerStats))
}
