package errors

import (
	"encoding/json"
	"net/http"

	"github.com/copyleftdev/hypersearch/internal/logging"
)

// RecoveryMiddleware answers a panicking request with a JSON 500 and logs the
// panic with the stack of the handler that raised it.
func RecoveryMiddleware(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				e := FromPanic(rec).WithComponent("http").WithOperation(r.Method + " " + r.URL.Path)
				logger.Error("Recovered from panic", map[string]interface{}{
					"error":  e.Error(),
					"origin": e.Origin(),
					"stack":  e.StackTrace(),
					"query":  r.URL.RawQuery,
				})

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error": http.StatusText(http.StatusInternalServerError),
				})
			}()

			next.ServeHTTP(w, r)
		})
	}
}
