package stubapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const headerRequestID = "X-Request-ID"

type infoKey struct{}

// requestInfo is filled in as a request moves through the stack so the
// access log can report who made it.
type requestInfo struct {
	id       string
	username string
}

func infoFrom(ctx context.Context) *requestInfo {
	info, _ := ctx.Value(infoKey{}).(*requestInfo)
	return info
}

// Observe assigns a request ID (reusing the caller's X-Request-ID when it
// sent a sane one), turns panics into a JSON 500 and writes one access log
// line per request.
func Observe(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := &requestInfo{id: r.Header.Get(headerRequestID)}
			if info.id == "" || len(info.id) > 64 {
				info.id = uuid.NewString()
			}
			w.Header().Set(headerRequestID, info.id)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				if p := recover(); p != nil {
					logger.Error("handler panic", "request_id", info.id, "path", r.URL.Path, "panic", p)
					if ww.Status() == 0 {
						writeError(ww, http.StatusInternalServerError, "internal server error")
					}
				}
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				logger.Info("request",
					"request_id", info.id,
					"method", r.Method,
					"path", r.URL.Path,
					"user", info.username,
					"status", status,
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
				)
			}()

			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), infoKey{}, info)))
		})
	}
}

// BearerAuth accepts only requests carrying a valid "Authorization: Bearer
// <jwt>" and records the token's subject on the request.
func BearerAuth(tokens *tokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			username, err := tokens.Verify(raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			info := infoFrom(r.Context())
			if info == nil {
				info = &requestInfo{}
				r = r.WithContext(context.WithValue(r.Context(), infoKey{}, info))
			}
			info.username = username
			next.ServeHTTP(w, r)
		})
	}
}

// usernameFrom returns the user BearerAuth admitted, or "".
func usernameFrom(ctx context.Context) string {
	if info := infoFrom(ctx); info != nil {
		return info.username
	}
	return ""
}
