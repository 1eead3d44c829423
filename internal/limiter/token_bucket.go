package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBucketLimiter 基于Redis的令牌桶限流器，多实例部署时共享配额
type TokenBucketLimiter struct {
	client redis.Cmdable
	config *Config
}

// NewTokenBucketLimiter 创建令牌桶限流器
func NewTokenBucketLimiter(client redis.Cmdable, config *Config) *TokenBucketLimiter {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "limiter:tb"
	}
	if config.Burst <= 0 {
		config.Burst = config.Rate
	}

	return &TokenBucketLimiter{
		client: client,
		config: config,
	}
}

// 令牌桶补充与扣减必须是原子操作，放在单个Lua脚本里执行
const tokenBucketScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local window = tonumber(ARGV[3])
local now = tonumber(ARGV[4])

local bucket = redis.call('HMGET', key, 'tokens', 'last_refill')
local tokens = tonumber(bucket[1]) or capacity
local last_refill = tonumber(bucket[2]) or now

local time_passed = math.max(0, now - last_refill)
local tokens_to_add = math.floor(time_passed * rate / window)
tokens = math.min(capacity, tokens + tokens_to_add)

if tokens >= 1 then
    tokens = tokens - 1
    redis.call('HMSET', key, 'tokens', tokens, 'last_refill', now)
    redis.call('EXPIRE', key, window * 2)
    return {1, tokens, 0}
else
    redis.call('HMSET', key, 'tokens', tokens, 'last_refill', now)
    redis.call('EXPIRE', key, window * 2)
    local retry_after = math.ceil(window / rate)
    return {0, 0, retry_after}
end
`

// Allow 检查是否允许请求通过
func (l *TokenBucketLimiter) Allow(ctx context.Context, key string) (*LimitResult, error) {
	fullKey := fmt.Sprintf("%s:%s", l.config.KeyPrefix, key)
	windowSec := int64(l.config.Window / time.Second)
	if windowSec <= 0 {
		windowSec = 1
	}

	result, err := l.client.Eval(ctx, tokenBucketScript,
		[]string{fullKey},
		l.config.Burst,
		l.config.Rate,
		windowSec,
		time.Now().Unix(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to run token bucket script: %w", err)
	}

	values, ok := result.([]any)
	if !ok || len(values) != 3 {
		return nil, fmt.Errorf("unexpected token bucket script result: %v", result)
	}

	allowed, _ := values[0].(int64)
	remaining, _ := values[1].(int64)
	retryAfter, _ := values[2].(int64)

	return &LimitResult{
		Allowed:    allowed == 1,
		Remaining:  remaining,
		RetryAfter: time.Duration(retryAfter) * time.Second,
	}, nil
}

// Reset 重置限流状态
func (l *TokenBucketLimiter) Reset(ctx context.Context, key string) error {
	fullKey := fmt.Sprintf("%s:%s", l.config.KeyPrefix, key)
	if err := l.client.Del(ctx, fullKey).Err(); err != nil {
		return fmt.Errorf("failed to reset limiter key: %w", err)
	}
	return nil
}
