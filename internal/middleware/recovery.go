package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/cortexai/cortexbi/internal/models"
)

// Recovery turns a handler panic into a 500. http.ErrAbortHandler is
// re-raised so the server can abort the response as intended.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}
			Logger(r).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")
			models.WriteError(w, http.StatusInternalServerError, "internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}
