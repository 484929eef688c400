package middlewarectx

import (
	"io"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/middleware"
)

// redacted подставляется вместо значений секретных параметров запроса.
const redacted = "REDACTED"

// secretQueryParams — параметры запроса, которые не попадают в access-лог.
var secretQueryParams = []string{"token"}

type redactingFormatter struct {
	base middleware.LogFormatter
}

// NewLogEntry передаёт базовому форматтеру копию запроса со скрытыми секретами.
func (f redactingFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	return f.base.NewLogEntry(redactRequest(r))
}

func redactRequest(r *http.Request) *http.Request {
	q := r.URL.Query()
	found := false
	for _, name := range secretQueryParams {
		if q.Has(name) {
			q.Set(name, redacted)
			found = true
		}
	}
	if !found {
		return r
	}

	u := *r.URL
	u.RawQuery = q.Encode()
	cp := r.WithContext(r.Context())
	cp.URL = &u
	cp.RequestURI = u.RequestURI()
	return cp
}

// AccessLogger пишет access-лог в формате chi middleware.Logger, скрывая
// сессионный токен из строки запроса. При nil пишет в stdout.
func AccessLogger(w io.Writer) func(http.Handler) http.Handler {
	if w == nil {
		w = os.Stdout
	}
	return middleware.RequestLogger(redactingFormatter{
		base: &middleware.DefaultLogFormatter{
			Logger:  log.New(w, "", log.LstdFlags),
			NoColor: w != os.Stdout,
		},
	})
}
