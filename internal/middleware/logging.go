package middleware

import (
	"net/http"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger returns the request-scoped logger installed by Logging, or the
// global logger outside of it.
func Logger(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}

// Logging attaches a logger carrying the request id to the request context
// and writes one access line per request. Health probes log at debug.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		l := log.With().
			Str("request_id", GetRequestID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()
		r = r.WithContext(l.WithContext(r.Context()))

		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		var evt *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			evt = l.Error()
		case status >= http.StatusBadRequest:
			evt = l.Warn()
		case r.URL.Path == "/health":
			evt = l.Debug()
		default:
			evt = l.Info()
		}
		evt.Int("status", status).
			Int("size", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("remote_addr", r.RemoteAddr).
			Msg("request")
	})
}
