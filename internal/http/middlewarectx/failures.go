package middlewarectx

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/marketplace-backend/internal/http/response"
)

// FailureGuard блокирует адрес, набравший limit неудачных попыток за окно window.
// Неудачей считается любой ответ 4xx, кроме 429. Успешный ответ счётчик не
// сбрасывает: блокировка снимается только по истечении окна.
type FailureGuard struct {
	mu          sync.Mutex
	limit       int
	window      time.Duration
	entries     map[string]*failures
	lastCleanup time.Time
	now         func() time.Time
}

type failures struct {
	count int
	since time.Time
}

// NewFailureGuard создаёт счётчик неудач. При limit <= 0 возвращает nil,
// и Middleware пропускает все запросы.
func NewFailureGuard(limit int, window time.Duration) *FailureGuard {
	if limit <= 0 {
		return nil
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &FailureGuard{
		limit:   limit,
		window:  window,
		entries: make(map[string]*failures),
		now:     time.Now,
	}
}

// Blocked сообщает, исчерпал ли адрес key попытки.
func (g *FailureGuard) Blocked(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	e := g.current(key, g.now())
	return e != nil && e.count >= g.limit
}

// Fail засчитывает неудачную попытку адресу key.
func (g *FailureGuard) Fail(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.maybeCleanup(now)
	e := g.current(key, now)
	if e == nil {
		e = &failures{since: now}
		g.entries[key] = e
	}
	e.count++
}

// current возвращает запись key, если окно ещё не истекло. Вызывается под g.mu.
func (g *FailureGuard) current(key string, now time.Time) *failures {
	e, ok := g.entries[key]
	if !ok {
		return nil
	}
	if now.Sub(e.since) >= g.window {
		delete(g.entries, key)
		return nil
	}
	return e
}

func (g *FailureGuard) maybeCleanup(now time.Time) {
	if now.Sub(g.lastCleanup) < cleanupInterval {
		return
	}
	g.lastCleanup = now
	for k, e := range g.entries {
		if now.Sub(e.since) >= g.window {
			delete(g.entries, k)
		}
	}
}

// Middleware отвечает 429 заблокированным адресам и считает неудачные ответы.
func (g *FailureGuard) Middleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if g == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if g.Blocked(ip) {
				log.Warn("too many failed attempts", slog.String("ip", ip), slog.String("path", r.URL.Path))
				response.Fail(w, r, http.StatusTooManyRequests, "Too many failed attempts. Try again later.", nil)
				return
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if status := ww.Status(); status >= 400 && status < 500 && status != http.StatusTooManyRequests {
				g.Fail(ip)
			}
		})
	}
}
