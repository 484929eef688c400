// Package middlewarectx содержит HTTP middleware для обработки и проверки JWT токенов.
//
// JWTMiddleware проверяет наличие и валидность JWT токена в заголовке Authorization
// и в случае успеха добавляет в контекст идентификатор, роль и имя пользователя
// для дальнейшего использования в обработчиках.
//
// В случае ошибки проверки возвращает HTTP 401 Unauthorized с сообщением об ошибке.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/campus-pass/internal/http/response"
	"github.com/magabrotheeeer/campus-pass/internal/lib/sl"
	"github.com/magabrotheeeer/campus-pass/internal/models"
	"github.com/magabrotheeeer/campus-pass/internal/services/auth"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// UserID — ключ для идентификатора пользователя в контексте
	UserID Key = "user_id"
	// Role — ключ для роли пользователя в контексте
	Role Key = "role"
	// Name — ключ для имени пользователя в контексте
	Name Key = "name"
)

// Service описывает интерфейс сервиса для валидации JWT токена.
type Service interface {
	ParseToken(token string) (auth.Session, error)
}

// BearerToken извлекает токен из заголовка Authorization.
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	return token, token != ""
}

// WithSession кладёт данные сессии в контекст.
func WithSession(ctx context.Context, s auth.Session) context.Context {
	ctx = context.WithValue(ctx, UserID, s.UserID)
	ctx = context.WithValue(ctx, Role, s.Role)
	return context.WithValue(ctx, Name, s.Name)
}

// SessionFrom возвращает данные сессии, сохранённые JWTMiddleware.
func SessionFrom(ctx context.Context) (auth.Session, bool) {
	id, ok := ctx.Value(UserID).(string)
	if !ok || id == "" {
		return auth.Session{}, false
	}
	role, _ := ctx.Value(Role).(models.Role)
	name, _ := ctx.Value(Name).(string)
	return auth.Session{UserID: id, Role: role, Name: name}, true
}

// JWTMiddleware возвращает HTTP middleware, который проверяет JWT в заголовке Authorization.
//
// Если токен валиден, добавляет данные сессии в контекст запроса,
// иначе возвращает ошибку с HTTP статусом 401 Unauthorized.
func JWTMiddleware(authService Service, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			tokenStr, ok := BearerToken(r)
			if !ok {
				log.Info("missing or invalid authorization header")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.ErrorWithCode(response.CodeUnauthorized, "missing or invalid authorization header"))
				return
			}

			session, err := authService.ParseToken(tokenStr)
			if err != nil {
				log.Info("invalid or expired token", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.ErrorWithCode(response.CodeUnauthorized, "invalid or expired token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}
