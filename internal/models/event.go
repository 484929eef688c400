package models

import "time"

// Типы событий жизненного цикла пропуска; совпадают с routing key в брокере.
const (
	EventPassCreated   = "pass.created"
	EventPassCompleted = "pass.completed"
	EventPassExpired   = "pass.expired"
	EventPassDropped   = "pass.dropped"
)

// PassEvent — сообщение, публикуемое в брокер при переходе пропуска.
type PassEvent struct {
	Type       string     `json:"type"`
	PassID     string     `json:"passId"`
	UserID     string     `json:"userId"`
	UserName   string     `json:"userName"`
	UserEmail  string     `json:"userEmail,omitempty"`
	Purpose    string     `json:"purpose"`
	PassType   PassType   `json:"passType"`
	Status     PassStatus `json:"status"`
	OccurredAt time.Time  `json:"occurredAt"`
}

// NewPassEvent собирает событие из текущего состояния пропуска.
func NewPassEvent(eventType string, p Pass, at time.Time) PassEvent {
	return PassEvent{
		Type:       eventType,
		PassID:     p.ID,
		UserID:     p.UserID,
		UserName:   p.UserName,
		Purpose:    p.Purpose,
		PassType:   p.Type,
		Status:     p.Status,
		OccurredAt: at,
	}
}
