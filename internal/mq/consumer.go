package mq

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// MessageHandler 消息处理函数
type MessageHandler func(ctx context.Context, delivery amqp.Delivery) error

// Consumer 从指定队列消费消息，支持并发工作器、有限重试与死信投递
type Consumer struct {
	cm      *ConnectionManager
	config  *ConsumerConfig
	logger  *zap.Logger
	handler MessageHandler

	queueName   string
	consumerTag string

	workers []*consumerWorker

	running int32
	closed  int32
}

// consumerWorker 单个消费协程，持有独立通道
type consumerWorker struct {
	id       int
	consumer *Consumer
	ch       *amqp.Channel
	delivery <-chan amqp.Delivery
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewConsumer 创建消费者，config为nil时使用默认配置
func NewConsumer(cm *ConnectionManager, config *ConsumerConfig, logger *zap.Logger) *Consumer {
	if config == nil {
		config = DefaultConfig().Consumer
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Consumer{
		cm:     cm,
		config: config,
		logger: logger,
	}
}

// SetHandler 设置消息处理函数，必须在StartConsuming之前调用
func (c *Consumer) SetHandler(handler MessageHandler) {
	c.handler = handler
}

// StartConsuming 启动配置数量的工作器开始消费指定队列
func (c *Consumer) StartConsuming(ctx context.Context, queueName string) error {
	if !atomic.CompareAndSwapInt32(&c.running, 0, 1) {
		return fmt.Errorf("consumer is already running")
	}

	if c.handler == nil {
		atomic.StoreInt32(&c.running, 0)
		return fmt.Errorf("message handler is not set")
	}

	c.queueName = queueName
	c.consumerTag = fmt.Sprintf("consumer-%s-%d", queueName, time.Now().Unix())

	c.logger.Info("start consuming",
		zap.String("queue", queueName),
		zap.String("consumer_tag", c.consumerTag),
		zap.Int("concurrent_consumers", c.config.ConcurrentConsumers))

	c.workers = make([]*consumerWorker, c.config.ConcurrentConsumers)
	for i := 0; i < c.config.ConcurrentConsumers; i++ {
		worker, err := c.createWorker(ctx, i)
		if err != nil {
			c.stopWorkers()
			atomic.StoreInt32(&c.running, 0)
			return fmt.Errorf("failed to create worker %d: %w", i, err)
		}
		c.workers[i] = worker
		go worker.run()
	}

	return nil
}

// StopConsuming 停止所有工作器并等待退出
func (c *Consumer) StopConsuming() error {
	if !atomic.CompareAndSwapInt32(&c.running, 1, 0) {
		return fmt.Errorf("consumer is not running")
	}

	c.logger.Info("stop consuming", zap.String("queue", c.queueName))

	c.stopWorkers()
	return nil
}

// Close 关闭消费者，幂等
func (c *Consumer) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	if atomic.LoadInt32(&c.running) == 1 {
		return c.StopConsuming()
	}
	return nil
}

func (c *Consumer) createWorker(ctx context.Context, id int) (*consumerWorker, error) {
	ch, err := c.cm.GetChannel()
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}

	if err := ch.Qos(c.config.PrefetchCount, c.config.PrefetchSize, false); err != nil {
		c.cm.ReturnChannel(ch)
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveryCh, err := ch.Consume(
		c.queueName,
		fmt.Sprintf("%s-%d", c.consumerTag, id),
		c.config.AutoAck,
		c.config.Exclusive,
		c.config.NoLocal,
		c.config.NoWait,
		nil,
	)
	if err != nil {
		c.cm.ReturnChannel(ch)
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	workerCtx, cancel := context.WithCancel(ctx)

	return &consumerWorker{
		id:       id,
		consumer: c,
		ch:       ch,
		delivery: deliveryCh,
		ctx:      workerCtx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}, nil
}

func (c *Consumer) stopWorkers() {
	for _, worker := range c.workers {
		if worker != nil {
			worker.cancel()
		}
	}
	for _, worker := range c.workers {
		if worker != nil {
			<-worker.done
		}
	}
}

func (w *consumerWorker) run() {
	defer close(w.done)
	defer w.consumer.cm.ReturnChannel(w.ch)

	w.consumer.logger.Info("consumer worker started",
		zap.Int("worker_id", w.id),
		zap.String("queue", w.consumer.queueName))

	for {
		select {
		case delivery, ok := <-w.delivery:
			if !ok {
				w.consumer.logger.Info("delivery channel closed", zap.Int("worker_id", w.id))
				return
			}
			w.processMessage(delivery)

		case <-w.ctx.Done():
			w.consumer.logger.Info("consumer worker stopped", zap.Int("worker_id", w.id))
			return
		}
	}
}

// processMessage 执行处理函数，可重试错误按配置重试，
// 耗尽后Nack进死信队列（未启用DLX时直接丢弃）
func (w *consumerWorker) processMessage(delivery amqp.Delivery) {
	ctx, cancel := context.WithTimeout(w.ctx, w.consumer.config.ConsumeTimeout)
	defer cancel()

	maxRetries := 0
	if w.consumer.config.EnableRetry {
		maxRetries = w.consumer.config.MaxRetryAttempts
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = w.consumer.handler(ctx, delivery)
		if err == nil {
			if !w.consumer.config.AutoAck {
				if ackErr := delivery.Ack(false); ackErr != nil {
					w.consumer.logger.Error("failed to ack message",
						zap.Error(ackErr),
						zap.String("message_id", delivery.MessageId))
				}
			}
			return
		}

		w.consumer.logger.Error("failed to process message",
			zap.Error(err),
			zap.String("message_id", delivery.MessageId),
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries))

		if attempt >= maxRetries || IsNonRetryableError(err) {
			break
		}

		select {
		case <-time.After(w.consumer.config.RetryInterval):
		case <-ctx.Done():
			goto reject
		}
	}

reject:
	if w.consumer.config.AutoAck {
		return
	}
	if w.consumer.config.EnableDLX {
		if nackErr := delivery.Nack(false, false); nackErr != nil {
			w.consumer.logger.Error("failed to nack message",
				zap.Error(nackErr),
				zap.String("message_id", delivery.MessageId))
		}
	} else {
		if rejectErr := delivery.Reject(false); rejectErr != nil {
			w.consumer.logger.Error("failed to reject message",
				zap.Error(rejectErr),
				zap.String("message_id", delivery.MessageId))
		}
	}
}

// NonRetryableError 标记不应重试的处理错误，
// 消费者遇到该错误立即走死信路径
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("non-retryable error: %v", e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// IsNonRetryableError 判断错误是否不应重试
func IsNonRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nonRetryable *NonRetryableError
	return errors.As(err, &nonRetryable)
}
