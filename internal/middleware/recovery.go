package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// NewRecoveryMiddleware はpanicを捕捉して500の統一エラーレスポンスを返すミドルウェアを生成する。
// ログにはリクエストIDと、判明していればユーザーIDを含める。
func NewRecoveryMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// ストリーミング中断はnet/httpに処理させる
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				attrs := []any{
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("request_id", chimw.GetReqID(r.Context())),
				}
				if info, ok := r.Context().Value(requestInfoContextKey).(*requestInfo); ok && info.userID != "" {
					attrs = append(attrs, slog.String("user_id", info.userID))
				}
				attrs = append(attrs, slog.String("stack", string(debug.Stack())))
				slog.Error("panic recovered", attrs...)

				WriteInternalServerError(w)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
