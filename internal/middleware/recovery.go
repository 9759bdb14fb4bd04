package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"
)

// Recovery returns HTTP middleware that recovers from panics.
// It logs the stack trace and returns a 500 Internal Server Error.
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					subject := ""
					if authCtx := GetAuthContext(r.Context()); authCtx != nil {
						subject = authCtx.Subject
					}
					logger.Error("panic recovered",
						zap.String("type", "security"),
						zap.String("event", "panic_recovered"),
						zap.String("request_id", GetRequestID(r.Context())),
						zap.String("subject", subject),
						zap.String("error", fmt.Sprintf("%v", err)),
						zap.ByteString("stack", debug.Stack()),
					)

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					fmt.Fprintf(w, `{"error":"internal_server_error","message":"An unexpected error occurred"}`)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
