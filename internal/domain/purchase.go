// Package domain 定义采购单相关的业务领域模型。
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase 表示采购单领域模型。
// 采购单聚合若干批次行；批次行的到货时间决定供应商库存的FIFO顺序。
type Purchase struct {
	ID         int64     `json:"id"`
	Reference  string    `json:"reference"`
	SupplierID *int64    `json:"supplier_id"`
	CreatedBy  int64     `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`

	Lines []*PurchaseLine `json:"lines,omitempty"`
}

// PurchaseLine 表示采购批次行（lot line）
type PurchaseLine struct {
	ID         int64           `json:"id"`
	PurchaseID int64           `json:"purchase_id"`
	ProductID  int64           `json:"product_id"`
	Quantity   int             `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	ReceivedAt time.Time       `json:"received_at"`
	CreatedAt  time.Time       `json:"created_at"`
}

// CreatePurchaseRequest 表示采购入库请求
type CreatePurchaseRequest struct {
	Reference  string                       `json:"reference" binding:"required"`
	SupplierID *int64                       `json:"supplier_id"`
	Lines      []*CreatePurchaseLineRequest `json:"lines" binding:"required,min=1"`
}

// CreatePurchaseLineRequest 表示采购批次行请求；
// 省略到货时间时取当前时刻。
type CreatePurchaseLineRequest struct {
	ProductID  int64           `json:"product_id" binding:"required"`
	Quantity   int             `json:"quantity" binding:"required,gt=0"`
	UnitCost   decimal.Decimal `json:"unit_cost" binding:"required"`
	ReceivedAt *time.Time      `json:"received_at"`
}

// PurchaseListResponse 表示采购单列表查询响应
type PurchaseListResponse struct {
	Purchases []*Purchase `json:"purchases"`
	Total     int64       `json:"total"`
	Page      int         `json:"page"`
	PageSize  int         `json:"page_size"`
}
