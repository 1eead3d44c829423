// Package mq 提供库存事件生产者服务
package mq

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// StockEventPublisher 库存事件生产者
type StockEventPublisher struct {
	producer *Producer
	qm       *StockQueueManager
	logger   *zap.Logger
}

// NewStockEventPublisher 创建库存事件生产者
func NewStockEventPublisher(cm *ConnectionManager, config *ProducerConfig, logger *zap.Logger) *StockEventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &StockEventPublisher{
		producer: NewProducer(cm, config, logger),
		qm:       NewStockQueueManager(cm, logger),
		logger:   logger,
	}
}

// SetupTopology 声明交换机、队列和绑定关系
func (p *StockEventPublisher) SetupTopology(ctx context.Context) error {
	return p.qm.SetupQueues(ctx)
}

// PublishMovementRecorded 发布手工流水入账事件
func (p *StockEventPublisher) PublishMovementRecorded(ctx context.Context, data *MovementRecordedData, correlationID string) error {
	event := NewMovementRecordedEvent(data, correlationID)

	return p.publishEvent(ctx, event, &PublishOptions{
		MessageID: event.ID,
		Type:      string(event.Type),
		Timestamp: event.Timestamp,
		Headers: map[string]interface{}{
			"content-type":   "application/json",
			"correlation-id": correlationID,
			"movement-id":    data.MovementID,
			"product-id":     data.ProductID,
		},
	})
}

// PublishSaleFulfilled 发布销售出库事件
func (p *StockEventPublisher) PublishSaleFulfilled(ctx context.Context, data *SaleFulfilledData, correlationID string) error {
	event := NewSaleFulfilledEvent(data, correlationID)

	return p.publishEvent(ctx, event, &PublishOptions{
		MessageID: event.ID,
		Type:      string(event.Type),
		Timestamp: event.Timestamp,
		Headers: map[string]interface{}{
			"content-type":   "application/json",
			"correlation-id": correlationID,
			"sale-id":        data.SaleID,
			"shop-id":        data.ShopID,
		},
	})
}

// PublishSaleCancelled 发布销售取消事件
func (p *StockEventPublisher) PublishSaleCancelled(ctx context.Context, data *SaleCancelledData, correlationID string) error {
	event := NewSaleCancelledEvent(data, correlationID)

	return p.publishEvent(ctx, event, &PublishOptions{
		MessageID: event.ID,
		Type:      string(event.Type),
		Timestamp: event.Timestamp,
		Headers: map[string]interface{}{
			"content-type":   "application/json",
			"correlation-id": correlationID,
			"sale-id":        data.SaleID,
		},
	})
}

// publishEvent 发布事件的通用方法
func (p *StockEventPublisher) publishEvent(ctx context.Context, event *StockEvent, options *PublishOptions) error {
	body, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	if err := p.producer.Publish(ctx, StockExchange, event.RoutingKey(), body, options); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.Type, err)
	}

	p.logger.Debug("stock event published",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("routing_key", event.RoutingKey()),
	)
	return nil
}

// Close 关闭生产者
func (p *StockEventPublisher) Close() error {
	return p.producer.Close()
}
