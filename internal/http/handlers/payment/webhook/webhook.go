// Package webhook реализует HTTP-обработчик подтверждения платежа провайдером.
//
// Обработчик идемпотентен: повторная доставка уже обработанного
// подтверждения не меняет состояние и возвращает успех.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/faceit-stats-bot/internal/http/response"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/lib/errs"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/lib/sl"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/models"
)

// Handler управляет HTTP-запросами от платежного провайдера.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики платежей.
type Service interface {
	ProcessSuccessfulPayment(ctx context.Context, req models.DummyWebhook) error
	ProcessFailedPayment(ctx context.Context, req models.DummyWebhook) error
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Подтвердить результат платежа
// @Description Переводит платеж в терминальный статус и при успехе продлевает подписку. Повторная доставка не изменяет состояние.
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param request body models.DummyWebhook true "Подтверждение платежа"
// @Success 200 {object} response.Response "Платеж обработан"
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос или payload"
// @Failure 404 {object} response.ErrorResponse "Платеж не найден"
// @Failure 409 {object} response.ErrorResponse "Платеж уже в терминальном статусе"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /payments/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyWebhook
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

	var err error
	if req.Status == "success" {
		err = h.service.ProcessSuccessfulPayment(r.Context(), req)
	} else {
		err = h.service.ProcessFailedPayment(r.Context(), req)
	}
	if err != nil {
		var vErr *errs.ValidationError
		switch {
		case errors.Is(err, errs.ErrPaymentNotFound), errors.Is(err, errs.ErrUserNotFound):
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(err.Error()))
		case errors.Is(err, errs.ErrPaymentAlreadySettled):
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(err.Error()))
		case errors.Is(err, errs.ErrPaymentUserMismatch):
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(err.Error()))
		case errors.As(err, &vErr):
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(err.Error()))
		default:
			log.Error("failed to process webhook", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not process payment"))
		}
		return
	}

	log.Info("webhook processed",
		slog.Int64("telegram_id", req.TelegramID),
		slog.String("status", req.Status))
	render.JSON(w, r, response.OK())
}
