// Package passtoken выпускает и проверяет подписанные токены пропусков,
// которые кодируются в QR-изображение. Токен содержит только идентификатор
// пропуска и срок действия, совпадающий со сроком самого пропуска.
package passtoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Audience отличает токены пропусков от сессионных токенов.
const Audience = "campus-pass:qr"

// DefaultLeeway — допустимое расхождение часов при проверке срока.
const DefaultLeeway = time.Minute

var (
	// ErrNoPassID — токен корректен, но не содержит идентификатора пропуска.
	ErrNoPassID = errors.New("token has no pass id")
	// ErrExpired — токен подлинный, но его срок истёк. Parse возвращает
	// вместе с ней идентификатор пропуска.
	ErrExpired = errors.New("pass token expired")
)

// Claims — полезная нагрузка токена пропуска.
type Claims struct {
	PassID string `json:"passId"`
	jwt.RegisteredClaims
}

// Codec подписывает и проверяет токены пропусков.
type Codec struct {
	secret []byte
	leeway time.Duration
	now    func() time.Time
}

// Option настраивает Codec.
type Option func(*Codec)

// WithLeeway задаёт допуск на расхождение часов.
func WithLeeway(d time.Duration) Option {
	return func(c *Codec) { c.leeway = d }
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// New создаёт Codec с секретом подписи.
func New(secret string, opts ...Option) *Codec {
	c := &Codec{
		secret: []byte(secret),
		leeway: DefaultLeeway,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Issue подписывает токен, связывающий passID со сроком expiresAt.
func (c *Codec) Issue(passID string, expiresAt time.Time) (string, error) {
	const op = "passtoken.Issue"
	if passID == "" {
		return "", fmt.Errorf("%s: %w", op, ErrNoPassID)
	}
	claims := Claims{
		PassID: passID,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(c.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return token, nil
}

// Parse проверяет подпись, аудиторию и срок токена и возвращает passID.
// Для подлинного, но просроченного токена возвращается passID и ошибка,
// удовлетворяющая errors.Is(err, ErrExpired).
func (c *Codec) Parse(token string) (string, error) {
	const op = "passtoken.Parse"

	claims, err := c.parse(token, c.now)
	if err == nil {
		return claims.PassID, nil
	}
	if !errors.Is(err, jwt.ErrTokenExpired) {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	// остальные утверждения проверяются на момент за секунду до истечения
	var unverified Claims
	if _, _, uerr := jwt.NewParser().ParseUnverified(token, &unverified); uerr != nil || unverified.ExpiresAt == nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	at := unverified.ExpiresAt.Add(-time.Second)
	claims, verr := c.parse(token, func() time.Time { return at })
	if verr != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return claims.PassID, fmt.Errorf("%s: %w: %w", op, ErrExpired, err)
}

func (c *Codec) parse(token string, now func() time.Time) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(_ *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(c.leeway),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.PassID == "" {
		return nil, ErrNoPassID
	}
	return claims, nil
}
