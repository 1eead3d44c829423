package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/Diouf7AH/jewellery-management-sub001/internal/resp"
)

// Timeout 基于http.TimeoutHandler限制单个请求的处理时长。
// 注意TimeoutHandler在独立goroutine中运行下游处理器，
// 因此该中间件只能放在处理链的最外层。
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "")
	}
}

// HandleTimeout 在上下文超时或取消时写出统一的超时响应，
// 处理器在长操作后调用以避免向已放弃的连接写业务数据
func HandleTimeout(w http.ResponseWriter, r *http.Request) bool {
	err := r.Context().Err()
	if err != context.DeadlineExceeded && err != context.Canceled {
		return false
	}
	reqID := RequestIDFromContext(r.Context())
	resp.Error(w, resp.HTTPStatusFromCode(resp.CodeTimeout), resp.CodeTimeout, "request timeout", reqID, "")
	return true
}
