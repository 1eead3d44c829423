// Package middleware 提供HTTP中间件：请求ID、认证、恢复、超时、CORS、访问日志等
package middleware

import "context"

// contextKey 自定义上下文键类型，避免与其他包的键冲突
type contextKey string

const contextKeyRequestID contextKey = "request_id"

// withRequestID 将请求ID写入上下文
func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, id)
}

// RequestIDFromContext 读取当前请求ID，未设置时返回空串
func RequestIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(contextKeyRequestID).(string); ok {
		return s
	}
	return ""
}
