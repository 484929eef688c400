// Package drop реализует HTTP-обработчик отмены ожидающего пропуска владельцем.
package drop

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/campus-pass/internal/http/middlewarectx"
	"github.com/magabrotheeeer/campus-pass/internal/http/response"
)

type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс отмены пропуска.
type Service interface {
	DropPass(ctx context.Context, passID, userID string) error
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Отменить пропуск
// @Description Удаляет ожидающий пропуск текущего пользователя.
// @Tags Passes
// @Produce  json
// @Security BearerAuth
// @Param id path string true "ID пропуска"
// @Success 200 {object} response.Message
// @Failure 400 {object} response.ErrorResponse "Пропуск уже не ожидает сканирования"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Пропуск не найден или принадлежит другому пользователю"
// @Router /api/passes/{id} [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.pass.drop"
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

	passID := chi.URLParam(r, "id")
	if passID == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ErrorWithCode(response.CodeInvalidRequest, "invalid id"))
		return
	}

	if err := h.service.DropPass(r.Context(), passID, session.UserID); err != nil {
		response.RenderError(w, r, log, err)
		return
	}

	log.Info("pass dropped", slog.String("pass_id", passID), slog.String("user_id", session.UserID))
	render.JSON(w, r, response.Message{Message: "Pass dropped successfully"})
}
