// Package response содержит вспомогательные типы и функции для формирования
// JSON‑ответов HTTP‑обработчиков: ошибок сервиса и сообщений валидации
// в едином формате.
package response

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/campus-pass/internal/lib/apperr"
	"github.com/magabrotheeeer/campus-pass/internal/lib/sl"
)

// ErrorResponse описывает тело ответа с ошибкой. Поле Status всегда "Error",
// Code содержит машинный код ошибки.
type ErrorResponse struct {
	Status string `json:"status" example:"Error"`
	Error  string `json:"error" example:"invalid request body"`
	Code   string `json:"code,omitempty" example:"invalid_request"`
}

// Message — ответ с единственным сообщением.
type Message struct {
	Message string `json:"message" example:"Pass dropped successfully"`
}

const (
	// StatusOK — значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError — значение статуса для ответа с ошибкой.
	StatusError = "Error"
)

// Машинные коды ошибок уровня HTTP.
const (
	CodeInvalidRequest = "invalid_request"
	CodeUnauthorized   = "unauthorized"
	CodeForbidden      = "forbidden"
	CodeRateLimited    = "rate_limited"
	CodeInternal       = "internal"
)

// ErrorWithCode возвращает ошибку с машинным кодом.
func ErrorWithCode(code, msg string) ErrorResponse {
	return ErrorResponse{
		Status: StatusError,
		Error:  msg,
		Code:   code,
	}
}

// RenderError отображает ошибку сервиса на HTTP-статус и тело ответа.
// Внутренние ошибки логируются, клиент получает обобщённое сообщение.
func RenderError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		log.Error("internal error", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorWithCode(CodeInternal, "internal server error"))
		return
	}
	log.Info("request rejected", slog.String("code", apperr.CodeOf(err)), sl.Err(err))
	render.Status(r, apperr.HTTPStatus(kind))
	render.JSON(w, r, ErrorWithCode(apperr.CodeOf(err), err.Error()))
}

// ValidationError формирует ErrorResponse на основе ошибок валидации.
// Каждое нарушение формируется в человеко‑читаемый текст, объединённый через запятую.
func ValidationError(errs validator.ValidationErrors) ErrorResponse {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "email":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be a valid email", err.Field()))
		case "numeric":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s can contain only numbers", err.Field()))
		case "len":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be %s characters long", err.Field(), err.Param()))
		case "oneof":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be one of: %s", err.Field(), err.Param()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return ErrorResponse{
		Status: StatusError,
		Error:  strings.Join(errsMsgs, ", "),
		Code:   CodeInvalidRequest,
	}
}
