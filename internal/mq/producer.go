package mq

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Producer 发布消息到RabbitMQ，支持发布确认与失败重试
type Producer struct {
	cm     *ConnectionManager
	config *ProducerConfig
	logger *zap.Logger

	confirmMode    bool
	confirmTimeout time.Duration

	closed bool
	mutex  sync.RWMutex
}

// PublishOptions 发布选项
type PublishOptions struct {
	Mandatory  bool
	Immediate  bool
	Headers    map[string]interface{}
	Priority   uint8
	Expiration string
	MessageID  string
	Timestamp  time.Time
	Type       string
	AppID      string
}

// NewProducer 创建生产者，config为nil时使用默认配置
func NewProducer(cm *ConnectionManager, config *ProducerConfig, logger *zap.Logger) *Producer {
	if config == nil {
		config = DefaultConfig().Producer
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Producer{
		cm:             cm,
		config:         config,
		logger:         logger,
		confirmMode:    config.EnableConfirm,
		confirmTimeout: config.ConfirmTimeout,
	}
}

// Publish 发布一条消息，按配置重试直到成功或次数耗尽
func (p *Producer) Publish(ctx context.Context, exchange, routingKey string, body []byte, options *PublishOptions) error {
	if p.isClosed() {
		return fmt.Errorf("producer is closed")
	}

	publishing := p.buildPublishing(body, options)

	maxAttempts := 1
	if p.config.EnableRetry {
		maxAttempts = p.config.MaxRetryAttempts + 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := p.publishOnce(ctx, exchange, routingKey, publishing, options)
		if err == nil {
			return nil
		}

		lastErr = err
		p.logger.Warn("failed to publish message",
			zap.String("exchange", exchange),
			zap.String("routing_key", routingKey),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Error(err))

		if attempt == maxAttempts {
			break
		}

		select {
		case <-time.After(p.config.RetryInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("failed to publish message after %d attempts: %w", maxAttempts, lastErr)
}

// publishOnce 借出通道完成一次发布，确认模式下等待broker ack
func (p *Producer) publishOnce(ctx context.Context, exchange, routingKey string, publishing amqp.Publishing, options *PublishOptions) error {
	ch, err := p.cm.GetChannel()
	if err != nil {
		return fmt.Errorf("failed to get channel: %w", err)
	}
	defer p.cm.ReturnChannel(ch)

	var confirmCh chan amqp.Confirmation
	if p.confirmMode {
		if err := ch.Confirm(false); err != nil {
			return fmt.Errorf("failed to set confirm mode: %w", err)
		}
		confirmCh = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	}

	publishCtx, cancel := context.WithTimeout(ctx, p.config.PublishTimeout)
	defer cancel()

	mandatory := false
	immediate := false
	if options != nil {
		mandatory = options.Mandatory
		immediate = options.Immediate
	}

	if err := ch.PublishWithContext(publishCtx, exchange, routingKey, mandatory, immediate, publishing); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	if p.confirmMode {
		select {
		case confirmation := <-confirmCh:
			if confirmation.Ack {
				return nil
			}
			return fmt.Errorf("message was nacked by broker")
		case <-time.After(p.confirmTimeout):
			return fmt.Errorf("publish confirmation timeout")
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// buildPublishing 将发布选项转换为amqp.Publishing
func (p *Producer) buildPublishing(body []byte, options *PublishOptions) amqp.Publishing {
	publishing := amqp.Publishing{
		Body:        body,
		ContentType: "application/octet-stream",
		Timestamp:   time.Now(),
	}

	if options == nil {
		return publishing
	}

	if options.Headers != nil {
		publishing.Headers = options.Headers
		if ct, ok := options.Headers["content-type"].(string); ok {
			publishing.ContentType = ct
		}
	}
	if options.Priority > 0 {
		publishing.Priority = options.Priority
	}
	if options.Expiration != "" {
		publishing.Expiration = options.Expiration
	}
	if options.MessageID != "" {
		publishing.MessageId = options.MessageID
	}
	if !options.Timestamp.IsZero() {
		publishing.Timestamp = options.Timestamp
	}
	if options.Type != "" {
		publishing.Type = options.Type
	}
	if options.AppID != "" {
		publishing.AppId = options.AppID
	}

	return publishing
}

// Close 关闭生产者，后续Publish返回错误
func (p *Producer) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.closed = true
	return nil
}

func (p *Producer) isClosed() bool {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.closed
}
