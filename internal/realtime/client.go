package realtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/magabrotheeeer/campus-pass/internal/lib/sl"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// client — одно WebSocket-соединение аутентифицированного пользователя.
// rooms изменяется только под мьютексом хаба.
type client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan Message
	userID string
	rooms  []string
	log    *slog.Logger
}

func newClient(h *Hub, conn *websocket.Conn, userID string, buffer int, log *slog.Logger) *client {
	return &client{
		hub:    h,
		conn:   conn,
		send:   make(chan Message, buffer),
		userID: userID,
		log:    log,
	}
}

// reply ставит служебный ответ в очередь без блокировки.
func (c *client) reply(msg Message) {
	select {
	case c.send <- msg:
	default:
	}
}

func (c *client) handle(msg Message) {
	switch msg.Event {
	case EventJoin:
		var room string
		if err := json.Unmarshal(msg.Data, &room); err != nil || room == "" {
			c.replyError("join requires a user id")
			return
		}
		if room != c.userID {
			c.log.Warn("join rejected", slog.String("user_id", c.userID), slog.String("room", room))
			c.replyError("cannot join another user's channel")
			return
		}
		c.hub.join(c, room)
	default:
		c.log.Debug("unknown event", slog.String("event", msg.Event))
	}
}

func (c *client) replyError(text string) {
	msg, err := newMessage(EventError, text)
	if err != nil {
		return
	}
	c.reply(msg)
}

// readPump читает кадры клиента до разрыва соединения.
func (c *client) readPump() {
	defer func() {
		c.hub.leave(c)
		close(c.send)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Info("connection closed", sl.Err(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.replyError("malformed message")
			continue
		}
		c.handle(msg)
	}
}

// writePump отправляет сообщения из очереди и пинги.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					c.log.Info("websocket write failed", sl.Err(err))
				}
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
