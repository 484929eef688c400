// Package models содержит доменные структуры сервиса пропусков:
// пропуск, пользователя и событие жизненного цикла пропуска.
package models

import (
	"slices"
	"time"
)

// PassValidity — фиксированное окно действия пропуска с момента создания.
const PassValidity = 3 * time.Hour

// ApprovalCodeTTL — время жизни кода подтверждения после сканирования.
const ApprovalCodeTTL = 5 * time.Minute

// PassStatus описывает состояние пропуска.
type PassStatus string

const (
	// StatusPending — пропуск выдан и ждёт сканирования.
	StatusPending PassStatus = "pending"
	// StatusCompleted — пропуск подтверждён администратором.
	StatusCompleted PassStatus = "completed"
	// StatusExpired — окно действия истекло до подтверждения.
	StatusExpired PassStatus = "expired"
)

// PassType — вид пропуска.
type PassType string

const (
	TypeStandard  PassType = "standard"
	TypeEmergency PassType = "emergency"
	TypeOneTime   PassType = "one-time"
)

// Destinations — фиксированный набор направлений, для которых выдаются пропуска.
var Destinations = []string{
	"Library",
	"Food Court",
	"Sports Complex",
	"Main Gate",
	"Auditorium",
	"Hostel",
}

// IsValidDestination сообщает, входит ли направление в фиксированный набор.
func IsValidDestination(purpose string) bool {
	return slices.Contains(Destinations, purpose)
}

// Valid сообщает, является ли тип пропуска одним из известных.
func (t PassType) Valid() bool {
	switch t {
	case TypeStandard, TypeEmergency, TypeOneTime:
		return true
	}
	return false
}

// Pass представляет цифровой пропуск пользователя.
type Pass struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	UserName    string     `json:"userName"`
	Purpose     string     `json:"purpose"`
	Type        PassType   `json:"type"`
	Status      PassStatus `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	QRCode      string     `json:"qrCode,omitempty"`
}

// IsPending сообщает, ожидает ли пропуск сканирования.
func (p Pass) IsPending() bool {
	return p.Status == StatusPending
}

// Lapsed сообщает, истекло ли окно действия пропуска к моменту now.
func (p Pass) Lapsed(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
