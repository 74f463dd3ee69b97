// Package invoicecreate реализует HTTP-обработчик создания счета на оплату подписки.
package invoicecreate

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

// Handler управляет HTTP-запросами на создание счета.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики платежей.
type Service interface {
	CreateInvoice(ctx context.Context, telegramID int64, req models.DummyInvoice) (*models.Invoice, error)
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
// @Summary Создать счет на оплату подписки
// @Description Создает платеж в статусе pending по прайс-листу и возвращает данные для выставления счета.
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param telegram_id path int true "Идентификатор телеграма"
// @Param request body models.DummyInvoice true "Уровень и длительность подписки"
// @Success 200 {object} response.Response "Счет на оплату"
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /payments/{telegram_id}/invoice [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.invoicecreate"
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

	var req models.DummyInvoice
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

	invoice, err := h.service.CreateInvoice(r.Context(), telegramID, req)
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
			log.Error("failed to create invoice", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not create invoice"))
		}
		return
	}

	log.Info("invoice created",
		slog.Int64("telegram_id", telegramID),
		slog.String("tier", req.Tier),
		slog.Int("amount", invoice.Amount))
	render.JSON(w, r, response.OKWithData(invoice))
}
