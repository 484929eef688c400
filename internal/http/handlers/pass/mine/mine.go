// Package mine реализует HTTP-обработчик списка пропусков текущего пользователя.
package mine

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/campus-pass/internal/http/middlewarectx"
	"github.com/magabrotheeeer/campus-pass/internal/http/response"
	"github.com/magabrotheeeer/campus-pass/internal/models"
)

// Handler отдаёт пропуска владельца сессии.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает чтение пропусков пользователя.
type Service interface {
	ListMine(ctx context.Context, userID string) ([]models.Pass, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Мои пропуска
// @Description Возвращает пропуска текущего пользователя, новые первыми. Просроченные ожидающие пропуска помечаются истёкшими.
// @Tags Passes
// @Produce  json
// @Security BearerAuth
// @Success 200 {array} models.Pass
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /api/passes/mine [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.pass.mine"
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

	passes, err := h.service.ListMine(r.Context(), session.UserID)
	if err != nil {
		response.RenderError(w, r, log, err)
		return
	}
	if passes == nil {
		passes = []models.Pass{}
	}
	render.JSON(w, r, passes)
}
