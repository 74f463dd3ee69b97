// Package analyze реализует HTTP-обработчик разбора матча FACEIT.
//
// Запрос расходует дневную квоту пользователя.
package analyze

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/faceit-stats-bot/internal/http/response"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/lib/errs"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/lib/sl"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/models"
)

// Handler управляет HTTP-запросами на разбор матча.
type Handler struct {
	log      *slog.Logger
	service  Service
	quota    Quota
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики разбора матчей.
type Service interface {
	AnalyzeMatch(ctx context.Context, telegramID int64, matchID string) (*models.MatchAnalysis, error)
}

// Quota описывает интерфейс проверки и списания дневной квоты.
type Quota interface {
	CanMakeRequest(ctx context.Context, telegramID int64) (bool, *models.QuotaInfo, error)
	RegisterRequest(ctx context.Context, telegramID int64) error
}

// New создает новый Handler с переданными логгером, сервисом и квотами.
func New(log *slog.Logger, service Service, quota Quota) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		quota:    quota,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Разобрать матч
// @Description Строит разбор матча FACEIT и сохраняет его в историю пользователя. Списывает один запрос из дневной квоты.
// @Tags Stats
// @Accept  json
// @Produce  json
// @Param telegram_id path int true "Идентификатор телеграма"
// @Param request body models.DummyAnalyzeMatch true "Идентификатор матча"
// @Success 200 {object} response.Response "Разбор матча"
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации или матч не найден"
// @Failure 429 {object} response.Response "Квота исчерпана, в данных указано retry_after_sec"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /stats/{telegram_id}/analyze [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.stats.analyze"
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

	var req models.DummyAnalyzeMatch
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

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

	analysis, err := h.service.AnalyzeMatch(r.Context(), telegramID, req.MatchID)
	if err != nil {
		var vErr *errs.ValidationError
		switch {
		case errors.Is(err, errs.ErrUserNotFound):
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(err.Error()))
		case errors.As(err, &vErr):
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error(err.Error()))
		default:
			log.Error("failed to analyze match", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not analyze match"))
		}
		return
	}

	if err := h.quota.RegisterRequest(r.Context(), telegramID); err != nil {
		log.Error("failed to register request", sl.Err(err))
	}

	log.Info("match analyzed",
		slog.Int64("telegram_id", telegramID),
		slog.String("match_id", req.MatchID))
	render.JSON(w, r, response.OKWithData(analysis))
}
