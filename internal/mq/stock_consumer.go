// Package mq 提供库存事件消费者服务
package mq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/Diouf7AH/jewellery-management-sub001/internal/cache"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/domain"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/repo"
)

// ShopStockSummary 门店库存汇总，由消费者维护在缓存中供看板查询
type ShopStockSummary struct {
	ShopID    int64     `json:"shop_id"`
	ProductID int64     `json:"product_id"`
	OnHand    int64     `json:"on_hand"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StockSummaryConsumer 库存事件消费者，维护门店维度的库存汇总缓存
type StockSummaryConsumer struct {
	cm           *ConnectionManager
	movementRepo repo.MovementRepository
	summaryCache cache.Cache
	summaryTTL   time.Duration
	consumer     *Consumer
	logger       *zap.Logger
}

// NewStockSummaryConsumer 创建库存事件消费者
func NewStockSummaryConsumer(
	cm *ConnectionManager,
	movementRepo repo.MovementRepository,
	summaryCache cache.Cache,
	summaryTTL time.Duration,
	logger *zap.Logger,
) *StockSummaryConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &StockSummaryConsumer{
		cm:           cm,
		movementRepo: movementRepo,
		summaryCache: summaryCache,
		summaryTTL:   summaryTTL,
		logger:       logger,
	}
}

// Start 启动消费者
func (sc *StockSummaryConsumer) Start(ctx context.Context) error {
	config := &ConsumerConfig{
		PrefetchCount:       10,
		AutoAck:             false,
		EnableRetry:         true,
		MaxRetryAttempts:    3,
		RetryInterval:       2 * time.Second,
		EnableDLX:           true,
		DLXExchange:         StockDLXExchange,
		DLXRoutingKey:       "failed.summary",
		ConsumeTimeout:      15 * time.Second,
		ConcurrentConsumers: 2,
	}

	consumer := NewConsumer(sc.cm, config, sc.logger)
	consumer.SetHandler(sc.handleEvent)

	if err := consumer.StartConsuming(ctx, StockSummaryQueue); err != nil {
		return fmt.Errorf("failed to start stock summary consumer: %w", err)
	}

	sc.consumer = consumer
	sc.logger.Info("库存汇总消费者启动成功")
	return nil
}

// Stop 停止消费者
func (sc *StockSummaryConsumer) Stop() error {
	if sc.consumer == nil {
		return nil
	}
	return sc.consumer.Close()
}

// handleEvent 处理库存事件
func (sc *StockSummaryConsumer) handleEvent(ctx context.Context, delivery amqp.Delivery) error {
	var event StockEvent
	if err := event.FromJSON(delivery.Body); err != nil {
		sc.logger.Error("解析库存事件失败", zap.Error(err), zap.ByteString("body", delivery.Body))
		return &NonRetryableError{Err: fmt.Errorf("invalid event format: %w", err)}
	}

	sc.logger.Debug("处理库存事件",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("correlation_id", event.CorrelationID))

	switch event.Type {
	case EventTypeMovementRecorded:
		return sc.handleMovementRecorded(ctx, &event)
	case EventTypeSaleFulfilled:
		return sc.handleSaleEvent(ctx, &event)
	case EventTypeSaleCancelled:
		return sc.handleCancelEvent(ctx, &event)
	default:
		sc.logger.Warn("未知的库存事件类型", zap.String("type", string(event.Type)))
		return &NonRetryableError{Err: fmt.Errorf("unknown event type: %s", event.Type)}
	}
}

// handleMovementRecorded 处理手工流水入账事件，刷新受影响门店的汇总
func (sc *StockSummaryConsumer) handleMovementRecorded(ctx context.Context, event *StockEvent) error {
	var data MovementRecordedData
	if err := event.DecodeData(&data); err != nil {
		return &NonRetryableError{Err: err}
	}

	if data.SrcShopID != nil {
		if err := sc.refreshSummary(ctx, *data.SrcShopID, data.ProductID); err != nil {
			return err
		}
	}
	if data.DstShopID != nil {
		if err := sc.refreshSummary(ctx, *data.DstShopID, data.ProductID); err != nil {
			return err
		}
	}
	return nil
}

// handleSaleEvent 处理销售出库事件，刷新出库门店涉及的全部商品
func (sc *StockSummaryConsumer) handleSaleEvent(ctx context.Context, event *StockEvent) error {
	var data SaleFulfilledData
	if err := event.DecodeData(&data); err != nil {
		return &NonRetryableError{Err: err}
	}
	return sc.refreshSaleProducts(ctx, data.SaleID)
}

// handleCancelEvent 处理销售取消事件
func (sc *StockSummaryConsumer) handleCancelEvent(ctx context.Context, event *StockEvent) error {
	var data SaleCancelledData
	if err := event.DecodeData(&data); err != nil {
		return &NonRetryableError{Err: err}
	}
	return sc.refreshSaleProducts(ctx, data.SaleID)
}

// refreshSaleProducts 根据销售单的流水条目刷新受影响门店商品的汇总
func (sc *StockSummaryConsumer) refreshSaleProducts(ctx context.Context, saleID int64) error {
	movements, err := sc.movementRepo.GetBySaleID(saleID)
	if err != nil {
		return fmt.Errorf("load movements for sale %d: %w", saleID, err)
	}

	// 同一商品可能出现在多行，去重后逐个刷新
	type key struct {
		shopID    int64
		productID int64
	}
	seen := make(map[key]struct{})
	for _, m := range movements {
		for _, shopID := range []*int64{m.SrcShopID, m.DstShopID} {
			if shopID == nil {
				continue
			}
			k := key{shopID: *shopID, productID: m.ProductID}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			if err := sc.refreshSummary(ctx, k.shopID, k.productID); err != nil {
				return err
			}
		}
	}
	return nil
}

// refreshSummary 重算单个门店商品的在店余额并写入缓存
func (sc *StockSummaryConsumer) refreshSummary(ctx context.Context, shopID, productID int64) error {
	onHand, err := sc.movementRepo.BucketBalance(productID, domain.BucketShop, &shopID)
	if err != nil {
		return fmt.Errorf("compute shop balance: %w", err)
	}

	summary := &ShopStockSummary{
		ShopID:    shopID,
		ProductID: productID,
		OnHand:    onHand,
		UpdatedAt: time.Now(),
	}

	if err := sc.summaryCache.Set(ctx, ShopStockSummaryKey(shopID, productID), summary, sc.summaryTTL); err != nil {
		// 缓存失败只告警，事件本身已消费成功
		sc.logger.Warn("写入库存汇总缓存失败",
			zap.Int64("shop_id", shopID),
			zap.Int64("product_id", productID),
			zap.Error(err))
	}
	return nil
}

// ShopStockSummaryKey 门店库存汇总的缓存键
func ShopStockSummaryKey(shopID, productID int64) string {
	return fmt.Sprintf("stock:summary:shop:%d:product:%d", shopID, productID)
}
