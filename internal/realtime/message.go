package realtime

import "encoding/json"

// Имена событий протокола.
const (
	EventJoin  = "join"
	EventError = "error"
)

// Message — кадр протокола: имя события и произвольные данные.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func newMessage(event string, data any) (Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, err
	}
	return Message{Event: event, Data: raw}, nil
}
