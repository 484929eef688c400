// Package list реализует HTTP-обработчик списка всех пропусков для администратора.
package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/campus-pass/internal/http/response"
	"github.com/magabrotheeeer/campus-pass/internal/models"
)

type Handler struct {
	log     *slog.Logger
	service Service
}

type Service interface {
	ListAll(ctx context.Context) ([]models.Pass, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Все пропуска
// @Description Возвращает все пропуска, новые первыми. Только для администратора.
// @Tags Passes
// @Produce  json
// @Security BearerAuth
// @Success 200 {array} models.Pass
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Доступ только для администратора"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /api/passes [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.pass.list"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	passes, err := h.service.ListAll(r.Context())
	if err != nil {
		response.RenderError(w, r, log, err)
		return
	}
	if passes == nil {
		passes = []models.Pass{}
	}
	log.Debug("passes listed", slog.Int("count", len(passes)))
	render.JSON(w, r, passes)
}
