// Package verify реализует HTTP-обработчик сканирования QR-кода пропуска.
//
// Handler принимает токен из QR-кода, проверяет пропуск и возвращает его
// данные вместе с 4-значным кодом подтверждения для администратора.
package verify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/campus-pass/internal/http/response"
	"github.com/magabrotheeeer/campus-pass/internal/lib/sl"
	"github.com/magabrotheeeer/campus-pass/internal/services/pass"
)

// Request — отсканированное содержимое QR-кода.
type Request struct {
	QRToken string `json:"qrToken" validate:"required"`
}

// Handler управляет HTTP-запросами на проверку пропусков.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс проверки пропуска.
type Service interface {
	Verify(ctx context.Context, token string) (pass.VerifyResult, error)
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
// @Summary Проверить QR-код пропуска
// @Description Проверяет подпись и срок токена, состояние пропуска и выдаёт код подтверждения на 5 минут.
// @Tags Passes
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Токен из QR-кода"
// @Success 200 {object} pass.VerifyResult
// @Failure 400 {object} response.ErrorResponse "Неверный QR-код, пропуск уже использован или истёк"
// @Failure 403 {object} response.ErrorResponse "Доступ только для администратора"
// @Failure 404 {object} response.ErrorResponse "Пропуск не найден"
// @Failure 429 {object} response.ErrorResponse "Слишком много запросов"
// @Router /api/passes/verify [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.pass.verify"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Info("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ErrorWithCode(response.CodeInvalidRequest, "invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Info("validation failed", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	res, err := h.service.Verify(r.Context(), req.QRToken)
	if err != nil {
		response.RenderError(w, r, log, err)
		return
	}

	log.Info("approval code issued", slog.String("pass_id", res.PassID))
	render.JSON(w, r, res)
}
