package limiter

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Diouf7AH/jewellery-management-sub001/internal/resp"
)

// KeyFunc 根据请求生成限流键
type KeyFunc func(c *gin.Context) string

// PerIPKey 按客户端IP限流
func PerIPKey(scope string) KeyFunc {
	return func(c *gin.Context) string {
		return fmt.Sprintf("%s:%s", scope, c.ClientIP())
	}
}

// Middleware 返回限流Gin中间件。
// 限流器不可用时放行请求，保护机制不应成为故障点。
func Middleware(l Limiter, keyFn KeyFunc, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := l.Allow(c.Request.Context(), keyFn(c))
		if err != nil {
			logger.Warn("rate limiter unavailable, allowing request", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))

		if !result.Allowed {
			c.Header("Retry-After", strconv.FormatInt(int64(result.RetryAfter.Seconds()), 10))
			requestID := c.GetString("request_id")
			resp.Error(c.Writer, resp.HTTPStatusFromCode(resp.CodeTooManyReqs),
				resp.CodeTooManyReqs, "too many requests", requestID, "")
			c.Abort()
			return
		}

		c.Next()
	}
}
