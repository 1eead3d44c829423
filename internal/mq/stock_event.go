// Package mq 提供库存事件的消息定义和处理
package mq

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType 库存事件类型
type EventType string

const (
	EventTypeMovementRecorded EventType = "stock_movement_recorded" // 手工流水入账
	EventTypeSaleFulfilled    EventType = "sale_fulfilled"          // 销售出库完成
	EventTypeSaleCancelled    EventType = "sale_cancelled"          // 销售取消冲销
)

// StockEvent 库存事件基础结构
type StockEvent struct {
	ID            string    `json:"id"`             // 事件唯一ID
	Type          EventType `json:"type"`           // 事件类型
	Version       string    `json:"version"`        // 事件版本
	Timestamp     time.Time `json:"timestamp"`      // 事件时间戳
	Source        string    `json:"source"`         // 事件源
	CorrelationID string    `json:"correlation_id"` // 关联业务批次ID

	// 业务数据
	Data interface{} `json:"data"`
}

// MovementRecordedData 手工流水入账事件数据
type MovementRecordedData struct {
	MovementID int64  `json:"movement_id"` // 流水条目ID
	ProductID  int64  `json:"product_id"`  // 商品ID
	Type       string `json:"type"`        // 流水类型
	Quantity   int    `json:"quantity"`    // 数量
	SrcBucket  string `json:"src_bucket"`  // 来源库位
	SrcShopID  *int64 `json:"src_shop_id"` // 来源门店ID
	DstBucket  string `json:"dst_bucket"`  // 去向库位
	DstShopID  *int64 `json:"dst_shop_id"` // 去向门店ID
	RecordedBy int64  `json:"recorded_by"` // 记账人
}

// SaleFulfilledData 销售出库事件数据
type SaleFulfilledData struct {
	SaleID         int64     `json:"sale_id"`         // 销售单ID
	ShopID         int64     `json:"shop_id"`         // 出库门店ID
	CreatedEntries int       `json:"created_entries"` // 本次新建的流水条目数
	SkippedLines   int       `json:"skipped_lines"`   // 幂等跳过的行数
	FulfilledBy    int64     `json:"fulfilled_by"`    // 操作人
	FulfilledAt    time.Time `json:"fulfilled_at"`    // 出库时间
}

// SaleCancelledData 销售取消事件数据
type SaleCancelledData struct {
	SaleID        int64     `json:"sale_id"`        // 销售单ID
	ReturnedCount int       `json:"returned_count"` // 本次新建反向条目的行数
	CancelledBy   int64     `json:"cancelled_by"`   // 操作人
	CancelledAt   time.Time `json:"cancelled_at"`   // 取消时间
}

// newStockEvent 创建事件基础结构
func newStockEvent(eventType EventType, correlationID string, data interface{}) *StockEvent {
	return &StockEvent{
		ID:            uuid.New().String(),
		Type:          eventType,
		Version:       "1.0",
		Timestamp:     time.Now(),
		Source:        "jewellery-backoffice",
		CorrelationID: correlationID,
		Data:          data,
	}
}

// NewMovementRecordedEvent 创建手工流水入账事件
func NewMovementRecordedEvent(data *MovementRecordedData, correlationID string) *StockEvent {
	return newStockEvent(EventTypeMovementRecorded, correlationID, data)
}

// NewSaleFulfilledEvent 创建销售出库事件
func NewSaleFulfilledEvent(data *SaleFulfilledData, correlationID string) *StockEvent {
	return newStockEvent(EventTypeSaleFulfilled, correlationID, data)
}

// NewSaleCancelledEvent 创建销售取消事件
func NewSaleCancelledEvent(data *SaleCancelledData, correlationID string) *StockEvent {
	return newStockEvent(EventTypeSaleCancelled, correlationID, data)
}

// ToJSON 将事件转换为JSON字节数组
func (e *StockEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON 从JSON字节数组解析事件
func (e *StockEvent) FromJSON(data []byte) error {
	return json.Unmarshal(data, e)
}

// RoutingKey 获取事件的路由键
func (e *StockEvent) RoutingKey() string {
	switch e.Type {
	case EventTypeMovementRecorded:
		return StockMovementRoutingKey
	case EventTypeSaleFulfilled:
		return StockFulfilledRoutingKey
	case EventTypeSaleCancelled:
		return StockCancelledRoutingKey
	default:
		return fmt.Sprintf("stock.unknown.%s", e.Type)
	}
}

// DecodeData 将事件数据解析到目标结构
func (e *StockEvent) DecodeData(dest interface{}) error {
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal event data: %w", err)
	}
	return nil
}
