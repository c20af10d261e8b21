package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// UserIdHeader carries the user id established by the upstream gateway.
const UserIdHeader = "X-User-Id"

type ctxKey int

const userIdKey ctxKey = iota

func userIdFrom(ctx context.Context) string {
	v, _ := ctx.Value(userIdKey).(string)
	return v
}

// withUser rejects requests that carry no trusted user id.
func withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userId := strings.TrimSpace(r.Header.Get(UserIdHeader))
		if userId == "" {
			zap.L().Warn("Unauthenticated request", zap.String("path", r.URL.Path))
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized", Message: UserIdHeader + " header is required"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIdKey, userId)))
	})
}

// requestLogger writes one zap line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			zap.L().Info("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		}()
		next.ServeHTTP(ww, r)
	})
}
