// Package realtime доставляет уведомления о пропусках в открытые
// WebSocket-сессии их владельцев.
//
// Каждое соединение после рукопожатия join входит в группу своего
// пользователя. Emit рассылает сообщение всем соединениям группы через
// буферизованную очередь; при переполнении очереди сообщение теряется.
package realtime

import (
	"log/slog"
	"sync"

	"github.com/magabrotheeeer/campus-pass/internal/lib/sl"
	"github.com/magabrotheeeer/campus-pass/internal/metrics"
)

// DefaultSendBuffer — размер очереди исходящих сообщений соединения.
const DefaultSendBuffer = 16

// Hub хранит группы соединений по идентификатору пользователя.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}
	log   *slog.Logger
}

// NewHub создаёт пустой Hub.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		rooms: make(map[string]map[*client]struct{}),
		log:   log,
	}
}

func (h *Hub) join(c *client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*client]struct{})
		h.rooms[room] = members
	}
	if _, dup := members[c]; dup {
		return
	}
	members[c] = struct{}{}
	c.rooms = append(c.rooms, room)
	h.log.Debug("client joined", slog.String("room", room), slog.Int("size", len(members)))
}

func (h *Hub) leave(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, room := range c.rooms {
		members := h.rooms[room]
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	c.rooms = nil
}

// RoomSize возвращает число соединений в группе пользователя.
func (h *Hub) RoomSize(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID])
}

// Emit отправляет событие всем соединениям пользователя userID. Отправка
// не блокируется: нет группы или очередь полна, сообщение отбрасывается.
func (h *Hub) Emit(userID, event string, data any) {
	msg, err := newMessage(event, data)
	if err != nil {
		h.log.Error("failed to encode realtime message", slog.String("event", event), sl.Err(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	members := h.rooms[userID]
	if len(members) == 0 {
		h.log.Debug("no live session for user", slog.String("user_id", userID), slog.String("event", event))
		return
	}
	for c := range members {
		select {
		case c.send <- msg:
		default:
			metrics.PushDropped.Inc()
			h.log.Warn("client queue full, message dropped",
				slog.String("user_id", userID), slog.String("event", event))
		}
	}
}
