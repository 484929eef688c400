package sl

import (
	"io"
	"log/slog"
)

// EnvProd — окружение, в котором логи пишутся в JSON.
const EnvProd = "prod"

// New создаёт логгер: JSON уровня Info для prod, текстовый уровня Debug для остальных окружений.
func New(env string, w io.Writer) *slog.Logger {
	if env == EnvProd {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
