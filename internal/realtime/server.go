package realtime

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"

	"github.com/magabrotheeeer/campus-pass/internal/http/middlewarectx"
	"github.com/magabrotheeeer/campus-pass/internal/http/response"
	"github.com/magabrotheeeer/campus-pass/internal/lib/sl"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Handler принимает WebSocket-соединения. Сессионный токен передаётся в
// заголовке Authorization или в параметре token.
type Handler struct {
	hub    *Hub
	auth   middlewarectx.Service
	log    *slog.Logger
	buffer int
}

// NewHandler создаёт обработчик /ws.
func NewHandler(hub *Hub, auth middlewarectx.Service, log *slog.Logger) *Handler {
	return &Handler{
		hub:    hub,
		auth:   auth,
		log:    log,
		buffer: DefaultSendBuffer,
	}
}

// ServeHTTP godoc
// @Summary WebSocket уведомлений
// @Description После подключения клиент отправляет {"event":"join","data":"<userId>"} и получает события passUpdate.
// @Tags Realtime
// @Param token query string false "Сессионный JWT, если не передан заголовок Authorization"
// @Success 101
// @Failure 401 {object} response.ErrorResponse
// @Router /ws [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "realtime.Handler"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	token, ok := middlewarectx.BearerToken(r)
	if !ok {
		token = r.URL.Query().Get("token")
	}
	session, err := h.auth.ParseToken(token)
	if token == "" || err != nil {
		log.Info("websocket auth failed", sl.Err(err))
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.ErrorWithCode(response.CodeUnauthorized, "invalid or expired token"))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Info("websocket upgrade failed", sl.Err(err))
		return
	}

	c := newClient(h.hub, conn, session.UserID, h.buffer, h.log.With(slog.String("user_id", session.UserID)))
	log.Debug("websocket connected", slog.String("user_id", session.UserID))

	go c.writePump()
	go c.readPump()
}
