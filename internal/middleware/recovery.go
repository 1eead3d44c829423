package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/Diouf7AH/jewellery-management-sub001/internal/resp"
	"go.uber.org/zap"
)

// Recovery 捕获处理器panic，记录堆栈并返回统一的500响应
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.ByteString("stack", debug.Stack()),
				)
				reqID := RequestIDFromContext(r.Context())
				resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "internal server error", reqID, "")
			}()
			next.ServeHTTP(w, r)
		})
	}
}
