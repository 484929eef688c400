// Package create реализует HTTP-обработчик выпуска нового пропуска.
//
// Handler принимает направление и тип пропуска, берёт владельца из сессии
// и возвращает созданный пропуск вместе с QR-кодом.
package create

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/campus-pass/internal/http/middlewarectx"
	"github.com/magabrotheeeer/campus-pass/internal/http/response"
	"github.com/magabrotheeeer/campus-pass/internal/lib/sl"
	"github.com/magabrotheeeer/campus-pass/internal/models"
	"github.com/magabrotheeeer/campus-pass/internal/services/pass"
)

// Request — тело запроса на выпуск пропуска.
type Request struct {
	Purpose string `json:"purpose" example:"Library"`
	Type    string `json:"type,omitempty" example:"standard"`
}

// Handler управляет HTTP-запросами на выпуск пропусков.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики выпуска пропуска.
type Service interface {
	CreatePass(ctx context.Context, owner pass.Owner, purpose string, passType models.PassType) (models.Pass, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Выпустить пропуск
// @Description Выпускает пропуск на 3 часа для текущего пользователя. У пользователя может быть только один ожидающий пропуск.
// @Tags Passes
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Направление и тип пропуска"
// @Success 201 {object} models.Pass
// @Failure 400 {object} response.ErrorResponse "Неверное направление или уже есть активный пропуск"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /api/passes [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.pass.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	session, ok := middlewarectx.SessionFrom(r.Context())
	if !ok {
		log.Error("session not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.ErrorWithCode(response.CodeUnauthorized, "unauthorized"))
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Info("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ErrorWithCode(response.CodeInvalidRequest, "invalid request body"))
		return
	}

	p, err := h.service.CreatePass(r.Context(),
		pass.Owner{ID: session.UserID, Name: session.Name},
		req.Purpose, models.PassType(req.Type))
	if err != nil {
		response.RenderError(w, r, log, err)
		return
	}

	log.Info("pass created", slog.String("pass_id", p.ID), slog.String("user_id", session.UserID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, p)
}
