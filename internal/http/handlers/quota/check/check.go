// Package check реализует HTTP-обработчик проверки дневной квоты.
package check

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
)

// Handler управляет HTTP-запросами на проверку квоты.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики квот.
type Service interface {
	CanMakeRequest(ctx context.Context, telegramID int64) (bool, *models.QuotaInfo, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Проверить дневную квоту
// @Description Возвращает уровень подписки, лимит и остаток запросов на текущие сутки UTC. Счетчик не изменяется.
// @Tags Quota
// @Produce  json
// @Param telegram_id path int true "Идентификатор телеграма"
// @Success 200 {object} response.Response "Состояние квоты"
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 429 {object} response.Response "Квота исчерпана, в данных указано retry_after_sec"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /quota/{telegram_id} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.quota.check"
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

	allowed, info, err := h.service.CanMakeRequest(r.Context(), telegramID)
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
		log.Info("quota exhausted",
			slog.Int64("telegram_id", telegramID),
			slog.Int("retry_after_sec", info.RetryAfterSec))
		w.WriteHeader(http.StatusTooManyRequests)
		render.JSON(w, r, response.OKWithData(info))
		return
	}

	log.Info("quota checked",
		slog.Int64("telegram_id", telegramID),
		slog.Int("remaining", info.Remaining))
	render.JSON(w, r, response.OKWithData(info))
}
