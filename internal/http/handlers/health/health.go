// Package health реализует проверку живости сервиса.
package health

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/campus-pass/internal/http/response"
	"github.com/magabrotheeeer/campus-pass/internal/lib/sl"
)

// Pinger — зависимость, доступность которой входит в проверку.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler отвечает {"status":"OK"}, если все зависимости доступны.
type Handler struct {
	log     *slog.Logger
	pingers map[string]Pinger
}

// New создаёт Handler. pingers может быть пустым.
func New(log *slog.Logger, pingers map[string]Pinger) *Handler {
	return &Handler{
		log:     log,
		pingers: pingers,
	}
}

// ServeHTTP godoc
// @Summary Проверка живости
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} response.ErrorResponse
// @Router /healthz [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"
	for name, p := range h.pingers {
		if err := p.Ping(r.Context()); err != nil {
			h.log.Warn("dependency unavailable", slog.String("op", op), slog.String("dependency", name), sl.Err(err))
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, response.ErrorWithCode("unavailable", name+" unavailable"))
			return
		}
	}
	render.JSON(w, r, map[string]string{"status": response.StatusOK})
}
