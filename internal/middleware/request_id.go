package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// HeaderRequestID 透传请求ID的标准头
const HeaderRequestID = "X-Request-ID"

// RequestID 为每个请求保证存在请求ID：
// 优先沿用调用方传入的X-Request-ID，缺失时生成UUID，
// 最终写回响应头并放入请求上下文供日志与事件关联使用。
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if rid == "" {
			rid = uuid.New().String()
		}
		w.Header().Set(HeaderRequestID, rid)
		next.ServeHTTP(w, r.WithContext(withRequestID(r.Context(), rid)))
	})
}
