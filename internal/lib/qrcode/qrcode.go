// Package qrcode рендерит токен пропуска в PNG-изображение QR-кода,
// закодированное как data URL.
package qrcode

import (
	"encoding/base64"
	"fmt"

	goqrcode "github.com/skip2/go-qrcode"
)

const dataURLPrefix = "data:image/png;base64,"

// DefaultSize — сторона изображения в пикселях.
const DefaultSize = 256

// Renderer превращает строку в data URL с QR-кодом.
type Renderer struct {
	size int
}

// New создаёт Renderer; неположительный size заменяется на DefaultSize.
func New(size int) *Renderer {
	if size <= 0 {
		size = DefaultSize
	}
	return &Renderer{size: size}
}

// Render кодирует content в PNG и возвращает data URL.
func (r *Renderer) Render(content string) (string, error) {
	const op = "qrcode.Render"
	png, err := goqrcode.Encode(content, goqrcode.Medium, r.size)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(png), nil
}
