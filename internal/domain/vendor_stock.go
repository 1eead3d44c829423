// Package domain 定义供应商库存台账相关的业务领域模型。
package domain

import (
	"time"
)

// VendorStockLine 表示供应商在某个采购批次行上的库存台账：
// allocated 为已分配数量，sold 为已售数量，可售数量为二者之差。
// 不变量 0 <= sold <= allocated 由仓储层的条件更新保证，而非读后写。
type VendorStockLine struct {
	ID             int64     `json:"id"`
	VendorID       int64     `json:"vendor_id"`
	ProductID      int64     `json:"product_id"`
	PurchaseLineID int64     `json:"purchase_line_id"`
	ReceivedAt     time.Time `json:"received_at"` // 来自采购批次行，决定FIFO/LIFO顺序
	Allocated      int       `json:"allocated"`
	Sold           int       `json:"sold"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Available 返回该批次行的可售数量
func (l *VendorStockLine) Available() int {
	return l.Allocated - l.Sold
}

// ConsumedLot 表示一次消耗操作中从单个批次行实际扣减的数量，
// 返回给调用方用于追溯。
type ConsumedLot struct {
	LineID   int64 `json:"line_id"`
	QtyTaken int   `json:"qty_taken"`
}

// AllocateStockRequest 表示把采购批次行分配给供应商的请求
type AllocateStockRequest struct {
	VendorID       int64 `json:"vendor_id" binding:"required"`
	PurchaseLineID int64 `json:"purchase_line_id" binding:"required"`
	Quantity       int   `json:"quantity" binding:"required,gt=0"`
	ShopID         int64 `json:"shop_id" binding:"required"`
}

// VendorStockListRequest 表示供应商库存查询请求
type VendorStockListRequest struct {
	VendorID  *int64 `json:"vendor_id"`
	ProductID *int64 `json:"product_id"`
	OnlyOpen  bool   `json:"only_open"` // 仅展示尚有可售数量的行
	Page      int    `json:"page"`
	PageSize  int    `json:"page_size"`
}

// VendorStockListResponse 表示供应商库存查询响应
type VendorStockListResponse struct {
	Lines    []*VendorStockLine `json:"lines"`
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
}
