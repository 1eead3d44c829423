// Package domain 定义珠宝商品相关的业务领域模型和核心业务规则。
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductStatus 定义商品状态类型
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"   // 正常销售
	ProductStatusInactive ProductStatus = "inactive" // 暂停销售
	ProductStatusDeleted  ProductStatus = "deleted"  // 已删除
)

// Purity 表示贵金属纯度标识，如 "24K"、"22K"、"18K"、"925"
type Purity string

// Product 表示珠宝商品领域模型。
// 商品自身持有克重，名义单价由 (品牌, 纯度) 对应的金价牌价乘以克重得出。
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	SKU         string          `json:"sku"`
	Brand       string          `json:"brand"`
	Purity      Purity          `json:"purity"`
	WeightGrams decimal.Decimal `json:"weight_grams"`
	Status      ProductStatus   `json:"status"`
	ImageURL    string          `json:"image_url"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// IsAvailable 判断商品是否可售
func (p *Product) IsAvailable() bool {
	return p.Status == ProductStatusActive
}

// NominalPrice 按给定克单价计算商品名义价格
func (p *Product) NominalPrice(pricePerGram decimal.Decimal) decimal.Decimal {
	return p.WeightGrams.Mul(pricePerGram)
}

// GoldRate 表示 (品牌, 纯度) 维度的克单价牌价
type GoldRate struct {
	ID           int64           `json:"id"`
	Brand        string          `json:"brand"`
	Purity       Purity          `json:"purity"`
	PricePerGram decimal.Decimal `json:"price_per_gram"`
	UpdatedBy    int64           `json:"updated_by"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// CreateProductRequest 表示创建商品请求
type CreateProductRequest struct {
	Name        string          `json:"name" binding:"required,min=1,max=255"`
	Description string          `json:"description"`
	SKU         string          `json:"sku" binding:"required,min=1,max=100"`
	Brand       string          `json:"brand" binding:"required"`
	Purity      Purity          `json:"purity" binding:"required"`
	WeightGrams decimal.Decimal `json:"weight_grams" binding:"required"`
	ImageURL    string          `json:"image_url"`
}

// UpdateProductRequest 表示更新商品请求
type UpdateProductRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Brand       *string          `json:"brand"`
	Purity      *Purity          `json:"purity"`
	WeightGrams *decimal.Decimal `json:"weight_grams"`
	Status      *ProductStatus   `json:"status"`
	ImageURL    *string          `json:"image_url"`
}

// ProductListRequest 表示商品列表查询请求
type ProductListRequest struct {
	Page      int            `json:"page"`       // 页码，从1开始
	PageSize  int            `json:"page_size"`  // 每页大小
	Status    *ProductStatus `json:"status"`     // 商品状态过滤
	Brand     *string        `json:"brand"`      // 品牌过滤
	Purity    *Purity        `json:"purity"`     // 纯度过滤
	Keyword   *string        `json:"keyword"`    // 关键词搜索
	SortBy    *string        `json:"sort_by"`    // 排序字段: weight_grams, created_at, name
	SortOrder *string        `json:"sort_order"` // 排序顺序: asc, desc
}

// ProductListResponse 表示商品列表查询响应
type ProductListResponse struct {
	Products []*Product `json:"products"`
	Total    int64      `json:"total"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
}

// ProductWithPrice 表示带名义价格的商品
type ProductWithPrice struct {
	*Product
	PricePerGram decimal.Decimal `json:"price_per_gram"`
	NominalPrice decimal.Decimal `json:"nominal_price"`
}
