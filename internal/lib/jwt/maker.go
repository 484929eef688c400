// Package jwt реализует выпуск и разбор сессионных JWT с идентификатором,
// ролью и именем пользователя.
package jwt

import (
	"time"
)

// Maker описывает выпуск и разбор сессионных токенов.
type Maker interface {
	GenerateToken(userID, role, name string) (string, error)
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl подписывает токены секретным ключом и выдаёт их на tokenTTL.
type MakerImpl struct {
	secretKey string
	tokenTTL  time.Duration
	now       func() time.Time
}

// NewJWTMaker создаёт MakerImpl на основе секретного ключа и TTL.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
		now:       time.Now,
	}
}
