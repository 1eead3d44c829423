// Package domain 定义销售单相关的业务领域模型和核心业务规则。
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleStatus 定义销售单状态类型
type SaleStatus string

const (
	SaleStatusDraft     SaleStatus = "draft"     // 草稿
	SaleStatusConfirmed SaleStatus = "confirmed" // 已确认，待出库
	SaleStatusDelivered SaleStatus = "delivered" // 已出库交付
	SaleStatusCancelled SaleStatus = "cancelled" // 已取消
)

// Sale 表示销售单领域模型。
// 销售单聚合若干行，每行指定商品、数量和供应商；
// 出库和取消的编排服务把销售单视为既定输入，不负责定价。
type Sale struct {
	ID          int64      `json:"id"`
	Number      string     `json:"number"`
	ClientID    *int64     `json:"client_id"`
	InvoiceID   *int64     `json:"invoice_id"`
	Status      SaleStatus `json:"status"`
	DeliveredAt *time.Time `json:"delivered_at"`
	CancelledAt *time.Time `json:"cancelled_at"`
	CreatedBy   int64      `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Lines []*SaleLine `json:"lines,omitempty"`
}

// IsCancelled 判断销售单是否已取消
func (s *Sale) IsCancelled() bool {
	return s.CancelledAt != nil || s.Status == SaleStatusCancelled
}

// IsDelivered 判断销售单是否已交付
func (s *Sale) IsDelivered() bool {
	return s.Status == SaleStatusDelivered
}

// SaleLine 表示销售单行
type SaleLine struct {
	ID        int64               `json:"id"`
	SaleID    int64               `json:"sale_id"`
	ProductID int64               `json:"product_id"`
	VendorID  *int64              `json:"vendor_id"`
	Quantity  int                 `json:"quantity"`
	UnitPrice decimal.Decimal     `json:"unit_price"`
	Amount    decimal.Decimal     `json:"amount"`
	UnitCost  decimal.NullDecimal `json:"unit_cost"`
	CreatedAt time.Time           `json:"created_at"`
}

// Fulfillable 判断该行是否参与出库：数量为正且已指定供应商
func (l *SaleLine) Fulfillable() bool {
	return l.Quantity > 0 && l.VendorID != nil
}

// Invoice 表示发票领域模型；发票决定销售出库的门店位置。
type Invoice struct {
	ID          int64           `json:"id"`
	Number      string          `json:"number"`
	SaleID      int64           `json:"sale_id"`
	ShopID      *int64          `json:"shop_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CancelledAt *time.Time      `json:"cancelled_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

// FulfillResult 表示一次出库调用的结果
type FulfillResult struct {
	SaleID         int64 `json:"sale_id"`
	CreatedEntries int   `json:"created_entries"` // 本次调用新建的流水条目数，纯重试为0
	SkippedLines   int   `json:"skipped_lines"`   // 因已出库而跳过的行数
}

// CancelResult 表示一次取消调用的结果
type CancelResult struct {
	SaleID           int64 `json:"sale_id"`
	ReturnedCount    int   `json:"returned_count"`    // 本次新建反向条目的行数
	SkippedCount     int   `json:"skipped_count"`     // 已有反向条目而跳过的行数
	AlreadyCancelled bool  `json:"already_cancelled"` // 整单已取消，本次为幂等空操作
}

// CreateSaleRequest 表示创建销售单请求
type CreateSaleRequest struct {
	Number   string                   `json:"number" binding:"required"`
	ClientID *int64                   `json:"client_id"`
	Lines    []*CreateSaleLineRequest `json:"lines" binding:"required,min=1"`
}

// CreateSaleLineRequest 表示销售单行请求；
// 未指定供应商的行在出库时被跳过。
type CreateSaleLineRequest struct {
	ProductID int64           `json:"product_id" binding:"required"`
	VendorID  *int64          `json:"vendor_id"`
	Quantity  int             `json:"quantity" binding:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price" binding:"required"`
}

// CreateInvoiceRequest 表示为销售单开具发票的请求；
// 发票上的门店决定出库时商品扣减的门店位置。
type CreateInvoiceRequest struct {
	Number string `json:"number" binding:"required"`
	SaleID int64  `json:"sale_id" binding:"required"`
	ShopID *int64 `json:"shop_id"`
}

// SaleListRequest 表示销售单列表查询请求
type SaleListRequest struct {
	Page      int         `json:"page"`
	PageSize  int         `json:"page_size"`
	Status    *SaleStatus `json:"status"`
	ClientID  *int64      `json:"client_id"`
	SortOrder *string     `json:"sort_order"`
}

// SaleListResponse 表示销售单列表查询响应
type SaleListResponse struct {
	Sales    []*Sale `json:"sales"`
	Total    int64   `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
}
