// Package register реализует HTTP-обработчик регистрации новых пользователей.
package register

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/campus-pass/internal/http/response"
	"github.com/magabrotheeeer/campus-pass/internal/lib/sl"
	"github.com/magabrotheeeer/campus-pass/internal/models"
)

// Request — данные для регистрации.
type Request struct {
	Name     string `json:"name" example:"Alice"`
	Email    string `json:"email" example:"alice@example.com"`
	Password string `json:"password" example:"secret"`
}

// Handler обрабатывает HTTP-запросы регистрации.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс регистрации.
type Service interface {
	Register(ctx context.Context, name, email, password string) (models.User, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Регистрация пользователя
// @Description Создаёт учётную запись с ролью user.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Имя, e-mail и пароль"
// @Success 201 {object} response.Message
// @Failure 400 {object} response.ErrorResponse "Не заполнены поля или e-mail уже занят"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/auth/register [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Info("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ErrorWithCode(response.CodeInvalidRequest, "invalid request body"))
		return
	}

	user, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		response.RenderError(w, r, log, err)
		return
	}

	log.Info("user registered", slog.String("user_id", user.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.Message{Message: "User registered successfully"})
}
