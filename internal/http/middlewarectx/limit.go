package middlewarectx

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/render"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/campus-pass/internal/http/response"
)

// idleLimiterTTL — через сколько неиспользуемый лимитер вызывающего удаляется.
const idleLimiterTTL = 10 * time.Minute

type callerLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter ограничивает частоту запросов отдельно для каждого вызывающего.
// Вызывающий определяется по сессии, без сессии по адресу клиента.
type RateLimiter struct {
	mu      sync.Mutex
	callers map[string]*callerLimiter
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

// NewRateLimiter создаёт лимитер с rps запросами в секунду и всплеском burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		callers: make(map[string]*callerLimiter),
		limit:   rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
	}
}

// Allow сообщает, можно ли пропустить очередной запрос вызывающего key.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, c := range l.callers {
		if now.Sub(c.lastSeen) > idleLimiterTTL {
			delete(l.callers, k)
		}
	}

	c, ok := l.callers[key]
	if !ok {
		c = &callerLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.callers[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

func callerKey(r *http.Request) string {
	if s, ok := SessionFrom(r.Context()); ok {
		return "user:" + s.UserID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}

// RateLimitMiddleware отвечает 429, когда вызывающий превысил свой лимит.
func RateLimitMiddleware(l *RateLimiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := callerKey(r)
			if !l.Allow(key) {
				log.Warn("too many requests", slog.String("caller", key))
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, response.ErrorWithCode(response.CodeRateLimited, "too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
