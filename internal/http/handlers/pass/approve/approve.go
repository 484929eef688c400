// Package approve реализует HTTP-обработчик подтверждения пропуска кодом.
package approve

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
	"github.com/magabrotheeeer/campus-pass/internal/models"
)

// Request — идентификатор пропуска и введённый администратором код.
type Request struct {
	PassID string `json:"passId" validate:"required"`
	Code   string `json:"code" validate:"required"`
}

// Response — подтверждённый пропуск.
type Response struct {
	Message string      `json:"message" example:"Pass approved successfully"`
	Pass    models.Pass `json:"pass"`
}

// Handler управляет HTTP-запросами на подтверждение пропусков.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс подтверждения пропуска.
type Service interface {
	Approve(ctx context.Context, passID, code string) (models.Pass, error)
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
// @Summary Подтвердить пропуск
// @Description Подтверждает пропуск кодом, выданным при сканировании. Неверный код аннулируется, пропуск нужно сканировать заново.
// @Tags Passes
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Пропуск и код"
// @Success 200 {object} Response
// @Failure 400 {object} response.ErrorResponse "Неверный или истёкший код"
// @Failure 403 {object} response.ErrorResponse "Доступ только для администратора"
// @Failure 404 {object} response.ErrorResponse "Пропуск не найден"
// @Failure 429 {object} response.ErrorResponse "Слишком много запросов"
// @Router /api/passes/approve [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.pass.approve"
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

	p, err := h.service.Approve(r.Context(), req.PassID, req.Code)
	if err != nil {
		response.RenderError(w, r, log, err)
		return
	}

	log.Info("pass approved", slog.String("pass_id", p.ID))
	render.JSON(w, r, Response{Message: "Pass approved successfully", Pass: p})
}
