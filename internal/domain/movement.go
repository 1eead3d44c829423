// Package domain 定义库存流水账相关的业务领域模型和核心业务规则。
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bucket 表示库存的归属分类（非物理容器）
type Bucket string

const (
	BucketExternal Bucket = "EXTERNAL" // 系统外部：供应商或客户
	BucketReserved Bucket = "RESERVED" // 企业持有但尚未分配到门店
	BucketShop     Bucket = "SHOP"     // 具体门店持有，必须附带门店ID
)

// Valid 判断桶取值是否合法
func (b Bucket) Valid() bool {
	switch b {
	case BucketExternal, BucketReserved, BucketShop:
		return true
	}
	return false
}

// RequiresShop 判断该桶是否要求配套的门店ID
func (b Bucket) RequiresShop() bool {
	return b == BucketShop
}

// MovementType 定义流水账条目类型
type MovementType string

const (
	MovementPurchaseIn     MovementType = "PURCHASE_IN"     // 采购入库
	MovementCancelPurchase MovementType = "CANCEL_PURCHASE" // 采购退回
	MovementAllocate       MovementType = "ALLOCATE"        // 预留库存分配到门店
	MovementTransfer       MovementType = "TRANSFER"        // 门店间调拨
	MovementAdjustment     MovementType = "ADJUSTMENT"      // 人工盘点调整
	MovementSaleOut        MovementType = "SALE_OUT"        // 销售出库
	MovementReturnIn       MovementType = "RETURN_IN"       // 销售退货入库
)

// Valid 判断流水类型是否合法
func (t MovementType) Valid() bool {
	switch t {
	case MovementPurchaseIn, MovementCancelPurchase, MovementAllocate,
		MovementTransfer, MovementAdjustment, MovementSaleOut, MovementReturnIn:
		return true
	}
	return false
}

// Movement 表示一条不可变的库存移动事实：
// “N件商品P于时刻S从桶A移动到桶B，类型为T”。
// 持久化并锁定后不允许修改，纠错只能追加反向条目。
type Movement struct {
	ID        int64        `json:"id"`
	ProductID int64        `json:"product_id"`
	Type      MovementType `json:"type"`
	Quantity  int          `json:"quantity"`

	UnitCost decimal.NullDecimal `json:"unit_cost"`

	SrcBucket *Bucket `json:"src_bucket"`
	SrcShopID *int64  `json:"src_shop_id"`
	DstBucket *Bucket `json:"dst_bucket"`
	DstShopID *int64  `json:"dst_shop_id"`

	Reason string `json:"reason"`

	// 来源单据关联
	PurchaseID     *int64 `json:"purchase_id"`
	PurchaseLineID *int64 `json:"purchase_line_id"`
	SaleID         *int64 `json:"sale_id"`
	SaleLineID     *int64 `json:"sale_line_id"`
	InvoiceID      *int64 `json:"invoice_id"`
	VendorID       *int64 `json:"vendor_id"`

	StockConsumed bool `json:"stock_consumed"` // 对应的供应商库存扣减是否已执行
	IsLocked      bool `json:"is_locked"`      // 锁定后不可变

	OccurredAt    time.Time `json:"occurred_at"`
	CreatedBy     int64     `json:"created_by"`
	CorrelationID string    `json:"correlation_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// Validate 在持久化前校验条目的全部不变量。
// 校验失败返回 *ValidationError；通过校验的条目才允许写入流水账。
func (m *Movement) Validate() error {
	if !m.Type.Valid() {
		return Validationf("unknown movement type %q", m.Type)
	}
	if m.Quantity <= 0 {
		return Validationf("movement quantity must be positive, got %d", m.Quantity)
	}
	if m.ProductID <= 0 {
		return Validationf("movement requires a product reference")
	}

	if err := m.validateSides(); err != nil {
		return err
	}

	return validateTransition(m.Type, m.SrcBucket, m.DstBucket, m.SrcShopID, m.DstShopID)
}

// validateSides 校验桶取值与门店ID的配对关系
func (m *Movement) validateSides() error {
	if m.SrcBucket != nil {
		if !m.SrcBucket.Valid() {
			return Validationf("invalid source bucket %q", *m.SrcBucket)
		}
		if m.SrcBucket.RequiresShop() && m.SrcShopID == nil {
			return Validationf("source bucket SHOP requires a shop id")
		}
		if !m.SrcBucket.RequiresShop() && m.SrcShopID != nil {
			return Validationf("source bucket %s must not carry a shop id", *m.SrcBucket)
		}
	} else if m.SrcShopID != nil {
		return Validationf("source shop id set without a source bucket")
	}

	if m.DstBucket != nil {
		if !m.DstBucket.Valid() {
			return Validationf("invalid destination bucket %q", *m.DstBucket)
		}
		if m.DstBucket.RequiresShop() && m.DstShopID == nil {
			return Validationf("destination bucket SHOP requires a shop id")
		}
		if !m.DstBucket.RequiresShop() && m.DstShopID != nil {
			return Validationf("destination bucket %s must not carry a shop id", *m.DstBucket)
		}
	} else if m.DstShopID != nil {
		return Validationf("destination shop id set without a destination bucket")
	}

	return nil
}

// validateTransition 校验 (类型, 源桶, 目标桶) 组合的合法性。
// 每种物理移动都必须能解释为封闭集合内的一种归属转移，
// 新增流水类型时编译器会强制补全此处的分支。
func validateTransition(t MovementType, src, dst *Bucket, srcShop, dstShop *int64) error {
	switch t {
	case MovementPurchaseIn:
		// EXTERNAL -> RESERVED | SHOP
		if !bucketIs(src, BucketExternal) {
			return Validationf("%s requires source bucket EXTERNAL", t)
		}
		if !bucketIs(dst, BucketReserved) && !bucketIs(dst, BucketShop) {
			return Validationf("%s requires destination bucket RESERVED or SHOP", t)
		}

	case MovementCancelPurchase:
		// RESERVED | SHOP -> EXTERNAL
		if !bucketIs(src, BucketReserved) && !bucketIs(src, BucketShop) {
			return Validationf("%s requires source bucket RESERVED or SHOP", t)
		}
		if !bucketIs(dst, BucketExternal) {
			return Validationf("%s requires destination bucket EXTERNAL", t)
		}

	case MovementAllocate:
		// RESERVED -> SHOP
		if !bucketIs(src, BucketReserved) {
			return Validationf("%s requires source bucket RESERVED", t)
		}
		if !bucketIs(dst, BucketShop) {
			return Validationf("%s requires destination bucket SHOP", t)
		}

	case MovementTransfer:
		// SHOP -> SHOP，且两侧门店必须不同
		if !bucketIs(src, BucketShop) || !bucketIs(dst, BucketShop) {
			return Validationf("%s requires SHOP buckets on both sides", t)
		}
		if srcShop != nil && dstShop != nil && *srcShop == *dstShop {
			return Validationf("%s source and destination shops must differ", t)
		}

	case MovementAdjustment:
		// 恰好一侧有值
		if (src == nil) == (dst == nil) {
			return Validationf("%s requires exactly one of source or destination", t)
		}

	case MovementSaleOut:
		// SHOP -> EXTERNAL
		if !bucketIs(src, BucketShop) {
			return Validationf("%s requires source bucket SHOP", t)
		}
		if !bucketIs(dst, BucketExternal) {
			return Validationf("%s requires destination bucket EXTERNAL", t)
		}

	case MovementReturnIn:
		// EXTERNAL -> SHOP | RESERVED
		if !bucketIs(src, BucketExternal) {
			return Validationf("%s requires source bucket EXTERNAL", t)
		}
		if !bucketIs(dst, BucketShop) && !bucketIs(dst, BucketReserved) {
			return Validationf("%s requires destination bucket SHOP or RESERVED", t)
		}

	default:
		return Validationf("unknown movement type %q", t)
	}

	return nil
}

func bucketIs(b *Bucket, want Bucket) bool {
	return b != nil && *b == want
}

// SignedQuantityFor 返回该条目对指定桶位的带符号数量贡献：
// 目标侧为 +quantity，源侧为 -quantity，两侧都不匹配为 0。
// 按桶累加全体条目即可重建桶位余额（对账用途）。
func (m *Movement) SignedQuantityFor(bucket Bucket, shopID *int64) int {
	total := 0
	if m.SrcBucket != nil && *m.SrcBucket == bucket && shopMatches(m.SrcShopID, shopID) {
		total -= m.Quantity
	}
	if m.DstBucket != nil && *m.DstBucket == bucket && shopMatches(m.DstShopID, shopID) {
		total += m.Quantity
	}
	return total
}

func shopMatches(entryShop, wantShop *int64) bool {
	if wantShop == nil {
		return true
	}
	return entryShop != nil && *entryShop == *wantShop
}

// RecordMovementRequest 表示手工记录流水请求（采购入库、调拨、盘点等）
type RecordMovementRequest struct {
	ProductID      int64               `json:"product_id" binding:"required"`
	Type           MovementType        `json:"type" binding:"required"`
	Quantity       int                 `json:"quantity" binding:"required,gt=0"`
	UnitCost       decimal.NullDecimal `json:"unit_cost"`
	SrcBucket      *Bucket             `json:"src_bucket"`
	SrcShopID      *int64              `json:"src_shop_id"`
	DstBucket      *Bucket             `json:"dst_bucket"`
	DstShopID      *int64              `json:"dst_shop_id"`
	Reason         string              `json:"reason"`
	PurchaseID     *int64              `json:"purchase_id"`
	PurchaseLineID *int64              `json:"purchase_line_id"`
	VendorID       *int64              `json:"vendor_id"`
	OccurredAt     *time.Time          `json:"occurred_at"`
}

// MovementListRequest 表示流水列表查询请求
type MovementListRequest struct {
	Page      int           `json:"page"`
	PageSize  int           `json:"page_size"`
	ProductID *int64        `json:"product_id"`
	Type      *MovementType `json:"type"`
	SaleID    *int64        `json:"sale_id"`
	ShopID    *int64        `json:"shop_id"`
	SortOrder *string       `json:"sort_order"` // asc, desc（按发生时间）
}

// MovementListResponse 表示流水列表查询响应
type MovementListResponse struct {
	Movements []*Movement `json:"movements"`
	Total     int64       `json:"total"`
	Page      int         `json:"page"`
	PageSize  int         `json:"page_size"`
}

// BucketBalance 表示某商品在某桶位的汇总余额
type BucketBalance struct {
	ProductID int64  `json:"product_id"`
	Bucket    Bucket `json:"bucket"`
	ShopID    *int64 `json:"shop_id"`
	Quantity  int64  `json:"quantity"`
}
