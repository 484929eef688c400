package middlewarectx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/campus-pass/internal/http/response"
	"github.com/magabrotheeeer/campus-pass/internal/models"
)

var deniedMessages = map[models.Role]string{
	models.RoleAdmin: "Access denied. Admin only.",
	models.RoleUser:  "Access denied. Users only.",
}

// RequireRole пропускает только запросы с указанной ролью в сессии.
// Должен стоять после JWTMiddleware.
func RequireRole(role models.Role, log *slog.Logger) func(http.Handler) http.Handler {
	msg, ok := deniedMessages[role]
	if !ok {
		msg = "Access denied."
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := SessionFrom(r.Context())
			if !ok {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.ErrorWithCode(response.CodeUnauthorized, "user identification missing"))
				return
			}
			if session.Role != role {
				log.Info("access denied",
					slog.String("op", "middlewarectx.RequireRole"),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("user_id", session.UserID),
					slog.String("role", string(session.Role)),
				)
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.ErrorWithCode(response.CodeForbidden, msg))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
