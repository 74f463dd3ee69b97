// Package analyseslist реализует HTTP-обработчик выдачи истории разборов матчей.
package analyseslist

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

const defaultLimit = 20

// Handler управляет HTTP-запросами на получение истории разборов.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики разбора матчей.
type Service interface {
	ListAnalyses(ctx context.Context, telegramID int64, opts models.ListOptions) ([]*models.MatchAnalysis, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Получить историю разборов
// @Description Возвращает разборы матчей пользователя, отсортированные по дате создания по убыванию.
// @Tags Stats
// @Produce  json
// @Param telegram_id path int true "Идентификатор телеграма"
// @Param match_id query string false "Фильтр по идентификатору матча"
// @Param limit query int false "Максимум записей в ответе"
// @Param offset query int false "Смещение выборки"
// @Success 200 {object} response.Response "Список разборов"
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /stats/{telegram_id}/analyses [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.stats.analyseslist"
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

	opts := models.ListOptions{Limit: defaultLimit}
	query := r.URL.Query()
	if matchID := query.Get("match_id"); matchID != "" {
		opts.Filters = append(opts.Filters, models.Filter{
			Field: "match_id",
			Op:    models.OpEq,
			Value: matchID,
		})
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid limit"))
			return
		}
		opts.Limit = limit
	}
	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid offset"))
			return
		}
		opts.Offset = offset
	}

	analyses, err := h.service.ListAnalyses(r.Context(), telegramID, opts)
	if err != nil {
		if errors.Is(err, errs.ErrUserNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		log.Error("failed to list analyses", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list analyses"))
		return
	}

	log.Info("analyses listed",
		slog.Int64("telegram_id", telegramID),
		slog.Int("count", len(analyses)))
	render.JSON(w, r, response.OKWithData(analyses))
}
