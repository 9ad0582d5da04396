// logging.go — журнал запросов dispatcher через slog.
//
// Каждый запрос пишется одной записью: маршрут, статус, длительность.
// Для /create и /login добавляется login клиента (password не логируется никогда).
// Уровень: INFO для успешных, WARN для отказов клиенту (4xx), ERROR для 5xx.
package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// RequestLogger возвращает middleware журнала запросов.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := recorderFor(w)
			ctx, info := withRequestInfo(r.Context())

			next.ServeHTTP(rec, r.WithContext(ctx))

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("route", routeLabel(r.URL.Path)),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", rec.written),
				slog.String("remote_addr", r.RemoteAddr),
			}
			if routeLabel(r.URL.Path) == "other" {
				attrs = append(attrs, slog.String("path", r.URL.Path))
			}
			if login := info.loginValue(); login != "" {
				attrs = append(attrs, slog.String("login", login))
			}

			logger.LogAttrs(r.Context(), levelForStatus(rec.status), "HTTP запрос", attrs...)
		})
	}
}

func levelForStatus(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
