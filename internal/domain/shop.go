// Package domain 定义门店与供应商领域模型。
package domain

import (
	"time"
)

// Shop 表示门店领域模型；SHOP桶的流水条目必须引用具体门店。
type Shop struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateShopRequest 表示创建门店请求
type CreateShopRequest struct {
	Code    string `json:"code" binding:"required"`
	Name    string `json:"name" binding:"required"`
	Address string `json:"address"`
}

// CreateVendorRequest 表示创建供应商请求
type CreateVendorRequest struct {
	Code  string `json:"code" binding:"required"`
	Name  string `json:"name" binding:"required"`
	Phone string `json:"phone"`
}

// Vendor 表示供应商（代销商）领域模型；
// 供应商持有按采购批次行拆分的库存台账。
type Vendor struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
