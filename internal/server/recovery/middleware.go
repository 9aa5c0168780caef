// Package recovery turns handler panics into the vault's JSON error response.
package recovery

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/memoryvault/memory-vault/internal/server/respond"
)

// trackingWriter remembers whether the handler already started its response.
type trackingWriter struct {
	http.ResponseWriter
	started bool
}

func (t *trackingWriter) WriteHeader(code int) {
	t.started = true
	t.ResponseWriter.WriteHeader(code)
}

func (t *trackingWriter) Write(b []byte) (int, error) {
	t.started = true
	return t.ResponseWriter.Write(b)
}

// Middleware recovers panics in chat handlers, logs them with the route and
// chat id, and answers 500 unless the handler had already begun writing
// (an export half way through), in which case the connection is left to close.
func Middleware(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tw := &trackingWriter{ResponseWriter: w}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				ev := log.Error().
					Interface("panic", rec).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Bool("response_started", tw.started).
					Bytes("stack", debug.Stack())
				if id := mux.Vars(r)["id"]; id != "" {
					ev = ev.Str("chat_id", id)
				}
				ev.Msg("panic recovered")

				if !tw.started {
					respond.WriteInternalError(tw, "unexpected server error")
				}
			}()
			next.ServeHTTP(tw, r)
		})
	}
}
