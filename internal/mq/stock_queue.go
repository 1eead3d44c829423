// Package mq 提供库存事件相关的队列定义和拓扑管理
package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// 库存事件相关的交换机和队列常量
const (
	// 交换机
	StockExchange    = "stock.exchange"     // 库存事件主交换机
	StockDLXExchange = "stock.dlx.exchange" // 死信交换机

	// 队列
	StockSummaryQueue = "stock.summary.queue" // 门店库存汇总队列
	StockDLXQueue     = "stock.dlx.queue"     // 死信队列

	// 路由键
	StockMovementRoutingKey  = "stock.movement.recorded"
	StockFulfilledRoutingKey = "stock.sale.fulfilled"
	StockCancelledRoutingKey = "stock.sale.cancelled"
)

// StockQueueManager 库存事件队列管理器
type StockQueueManager struct {
	cm     *ConnectionManager
	logger *zap.Logger
}

// NewStockQueueManager 创建库存事件队列管理器
func NewStockQueueManager(cm *ConnectionManager, logger *zap.Logger) *StockQueueManager {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &StockQueueManager{
		cm:     cm,
		logger: logger,
	}
}

// SetupQueues 设置所有队列和交换机
func (qm *StockQueueManager) SetupQueues(ctx context.Context) error {
	ch, err := qm.cm.GetChannel()
	if err != nil {
		return fmt.Errorf("failed to get channel: %w", err)
	}
	defer qm.cm.ReturnChannel(ch)

	if err := qm.declareExchanges(ch); err != nil {
		return fmt.Errorf("failed to declare exchanges: %w", err)
	}

	if err := qm.declareQueues(ch); err != nil {
		return fmt.Errorf("failed to declare queues: %w", err)
	}

	if err := qm.bindQueues(ch); err != nil {
		return fmt.Errorf("failed to bind queues: %w", err)
	}

	qm.logger.Info("库存事件队列设置完成")
	return nil
}

// declareExchanges 声明交换机
func (qm *StockQueueManager) declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name string
		kind string
	}{
		{name: StockExchange, kind: "topic"},
		{name: StockDLXExchange, kind: "topic"},
	}

	for _, exchange := range exchanges {
		err := ch.ExchangeDeclare(
			exchange.name,
			exchange.kind,
			true,  // durable
			false, // autoDelete
			false, // internal
			false, // noWait
			nil,
		)
		if err != nil {
			return fmt.Errorf("failed to declare exchange %s: %w", exchange.name, err)
		}
		qm.logger.Debug("声明交换机", zap.String("exchange", exchange.name))
	}

	return nil
}

// declareQueues 声明队列
func (qm *StockQueueManager) declareQueues(ch *amqp.Channel) error {
	queues := []struct {
		name string
		args amqp.Table
	}{
		{
			name: StockSummaryQueue,
			args: amqp.Table{
				"x-dead-letter-exchange":    StockDLXExchange,
				"x-dead-letter-routing-key": "failed.summary",
			},
		},
		{
			name: StockDLXQueue,
			args: nil,
		},
	}

	for _, queue := range queues {
		_, err := ch.QueueDeclare(
			queue.name,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			queue.args,
		)
		if err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", queue.name, err)
		}
		qm.logger.Debug("声明队列", zap.String("queue", queue.name))
	}

	return nil
}

// bindQueues 绑定队列
func (qm *StockQueueManager) bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      string
		routingKey string
		exchange   string
	}{
		// 汇总队列订阅全部库存事件
		{queue: StockSummaryQueue, routingKey: "stock.#", exchange: StockExchange},
		{queue: StockDLXQueue, routingKey: "failed.#", exchange: StockDLXExchange},
	}

	for _, binding := range bindings {
		err := ch.QueueBind(
			binding.queue,
			binding.routingKey,
			binding.exchange,
			false, // noWait
			nil,
		)
		if err != nil {
			return fmt.Errorf("failed to bind queue %s to %s: %w", binding.queue, binding.exchange, err)
		}
	}

	return nil
}
