// Package login реализует HTTP-обработчик входа пользователей и администраторов.
//
// Обработчик декодирует учётные данные и выбранную роль, делегирует вход
// сервису аутентификации и возвращает сессионный JWT вместе с публичными
// данными пользователя.
package login

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

// Request — структура входных данных для авторизации.
type Request struct {
	Email    string `json:"email" example:"alice@example.com"`
	Password string `json:"password" example:"secret"`
	Role     string `json:"role" example:"user"`
}

// Response — сессионный токен и данные пользователя.
type Response struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Handler обрабатывает HTTP-запросы для авторизации.
type Handler struct {
	log     *slog.Logger // Логгер для записи операций и ошибок
	service Service      // Сервис аутентификации
}

// Service описывает интерфейс бизнес-логики аутентификации.
type Service interface {
	Login(ctx context.Context, email, password string, role models.Role) (string, models.User, error)
}

// New создает новый экземпляр Handler с указанными логгером и сервисом аутентификации.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Авторизация пользователя
// @Description Аутентифицирует пользователя по e-mail, паролю и выбранной роли. Возвращает JWT на 24 часа.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Учетные данные пользователя"
// @Success 200 {object} Response
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или неверные учетные данные"
// @Failure 403 {object} response.ErrorResponse "Выбранная роль не совпадает с ролью учётной записи"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/auth/login [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"

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

	token, user, err := h.service.Login(r.Context(), req.Email, req.Password, models.Role(req.Role))
	if err != nil {
		response.RenderError(w, r, log, err)
		return
	}

	log.Info("login success", slog.String("user_id", user.ID), slog.String("role", string(user.Role)))
	render.JSON(w, r, Response{Token: token, User: user})
}
