package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Diouf7AH/jewellery-management-sub001/internal/domain"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/repo"
)

// TxRunner 在单个数据库事务中执行回调，由 database.DB 满足。
// 编排服务通过它保证多表写入全有或全无。
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// 定义分配业务错误
var (
	ErrPurchaseNotFound     = errors.New("purchase not found")
	ErrPurchaseLineNotFound = errors.New("purchase line not found")
)

// AllocationService 定义采购入库与供应商库存分配业务接口。
// 入库在预留桶记账；分配把预留库存划给供应商并落到门店桶。
type AllocationService interface {
	ReceivePurchase(ctx context.Context, req *domain.CreatePurchaseRequest, createdBy int64) (*domain.Purchase, error)
	GetPurchase(id int64) (*domain.Purchase, error)
	ListPurchases(page, pageSize int) (*domain.PurchaseListResponse, error)

	Allocate(ctx context.Context, req *domain.AllocateStockRequest, createdBy int64) (*domain.VendorStockLine, error)
	ListVendorStock(req *domain.VendorStockListRequest) (*domain.VendorStockListResponse, error)
}

// allocationService 实现AllocationService接口
type allocationService struct {
	tx              TxRunner
	purchaseRepo    repo.PurchaseRepository
	vendorStockRepo repo.VendorStockRepository
	movementRepo    repo.MovementRepository
	logger          *zap.Logger
}

// NewAllocationService 创建分配服务实例
func NewAllocationService(
	tx TxRunner,
	purchaseRepo repo.PurchaseRepository,
	vendorStockRepo repo.VendorStockRepository,
	movementRepo repo.MovementRepository,
	logger *zap.Logger,
) AllocationService {
	return &allocationService{
		tx:              tx,
		purchaseRepo:    purchaseRepo,
		vendorStockRepo: vendorStockRepo,
		movementRepo:    movementRepo,
		logger:          logger,
	}
}

// ReceivePurchase 登记采购单并为每个批次行追加 PURCHASE_IN 流水。
// 入库落在预留桶：货物归企业持有但尚未分配到门店。
func (s *allocationService) ReceivePurchase(ctx context.Context, req *domain.CreatePurchaseRequest, createdBy int64) (*domain.Purchase, error) {
	purchase := &domain.Purchase{
		Reference:  req.Reference,
		SupplierID: req.SupplierID,
		CreatedBy:  createdBy,
	}
	for _, lr := range req.Lines {
		receivedAt := time.Now()
		if lr.ReceivedAt != nil {
			receivedAt = *lr.ReceivedAt
		}
		purchase.Lines = append(purchase.Lines, &domain.PurchaseLine{
			ProductID:  lr.ProductID,
			Quantity:   lr.Quantity,
			UnitCost:   lr.UnitCost,
			ReceivedAt: receivedAt,
		})
	}

	// 先校验每行对应的流水条目，不合法的请求连采购单都不落库
	correlationID := uuid.NewString()
	movements := make([]*domain.Movement, 0, len(purchase.Lines))
	for _, line := range purchase.Lines {
		m := purchaseInMovement(line, createdBy, correlationID)
		if err := m.Validate(); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}

	// 采购单与流水条目在同一事务提交，不留没有流水的采购单
	err := s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		if err := s.purchaseRepo.CreateInTx(tx, purchase); err != nil {
			return fmt.Errorf("create purchase: %w", err)
		}
		for i, line := range purchase.Lines {
			m := movements[i]
			m.PurchaseID = &purchase.ID
			m.PurchaseLineID = &line.ID
			if err := s.movementRepo.CreateInTx(tx, m); err != nil {
				return fmt.Errorf("record purchase movement: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to receive purchase",
			zap.String("reference", purchase.Reference),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("purchase received",
		zap.Int64("purchase_id", purchase.ID),
		zap.String("reference", purchase.Reference),
		zap.Int("lines", len(purchase.Lines)),
	)
	return purchase, nil
}

// purchaseInMovement 构造批次行对应的采购入库流水
func purchaseInMovement(line *domain.PurchaseLine, createdBy int64, correlationID string) *domain.Movement {
	src := domain.BucketExternal
	dst := domain.BucketReserved
	return &domain.Movement{
		ProductID:     line.ProductID,
		Type:          domain.MovementPurchaseIn,
		Quantity:      line.Quantity,
		UnitCost:      decimalNull(line.UnitCost),
		SrcBucket:     &src,
		DstBucket:     &dst,
		Reason:        "purchase receipt",
		IsLocked:      true,
		OccurredAt:    line.ReceivedAt,
		CreatedBy:     createdBy,
		CorrelationID: correlationID,
	}
}

// decimalNull 把确定取值的金额包装成可空金额
func decimalNull(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// GetPurchase 获取采购单及其批次行
func (s *allocationService) GetPurchase(id int64) (*domain.Purchase, error) {
	purchase, err := s.purchaseRepo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("get purchase: %w", err)
	}
	if purchase == nil {
		return nil, ErrPurchaseNotFound
	}
	return purchase, nil
}

// ListPurchases 查询采购单列表
func (s *allocationService) ListPurchases(page, pageSize int) (*domain.PurchaseListResponse, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	purchases, total, err := s.purchaseRepo.List(page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}

	return &domain.PurchaseListResponse{
		Purchases: purchases,
		Total:     total,
		Page:      page,
		PageSize:  pageSize,
	}, nil
}

// Allocate 把采购批次行的库存分配给供应商，同时落门店桶。
// 单个事务内完成：
// 1. 行锁采购批次行，并发分配由此串行化
// 2. 持锁复核预留余额充足
// 3. 供应商在该批次行上的台账行累加（不存在则创建）
// 4. 追加 ALLOCATE 流水（RESERVED -> SHOP）
func (s *allocationService) Allocate(ctx context.Context, req *domain.AllocateStockRequest, createdBy int64) (*domain.VendorStockLine, error) {
	var stockLine *domain.VendorStockLine
	err := s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		line, err := s.purchaseRepo.GetLineByIDForUpdateInTx(tx, req.PurchaseLineID)
		if err != nil {
			return fmt.Errorf("lock purchase line: %w", err)
		}
		if line == nil {
			return ErrPurchaseLineNotFound
		}

		reserved, err := s.movementRepo.BucketBalanceInTx(tx, line.ProductID, domain.BucketReserved, nil)
		if err != nil {
			return fmt.Errorf("check reserved balance: %w", err)
		}
		if reserved < int64(req.Quantity) {
			return domain.Validationf(
				"insufficient reserved stock for product %d: requested %d, available %d",
				line.ProductID, req.Quantity, reserved,
			)
		}

		src := domain.BucketReserved
		dst := domain.BucketShop
		m := &domain.Movement{
			ProductID:      line.ProductID,
			Type:           domain.MovementAllocate,
			Quantity:       req.Quantity,
			UnitCost:       decimalNull(line.UnitCost),
			SrcBucket:      &src,
			DstBucket:      &dst,
			DstShopID:      &req.ShopID,
			Reason:         "vendor stock allocation",
			PurchaseID:     &line.PurchaseID,
			PurchaseLineID: &line.ID,
			VendorID:       &req.VendorID,
			IsLocked:       true,
			OccurredAt:     time.Now(),
			CreatedBy:      createdBy,
			CorrelationID:  uuid.NewString(),
		}
		if err := m.Validate(); err != nil {
			return err
		}

		stockLine, err = s.vendorStockRepo.GetByVendorAndPurchaseLine(req.VendorID, req.PurchaseLineID)
		if err != nil {
			return fmt.Errorf("get vendor stock line: %w", err)
		}

		if stockLine == nil {
			stockLine = &domain.VendorStockLine{
				VendorID:       req.VendorID,
				ProductID:      line.ProductID,
				PurchaseLineID: line.ID,
				ReceivedAt:     line.ReceivedAt,
				Allocated:      req.Quantity,
			}
			if err := s.vendorStockRepo.CreateInTx(tx, stockLine); err != nil {
				return fmt.Errorf("create vendor stock line: %w", err)
			}
		} else {
			if err := s.vendorStockRepo.AddAllocatedInTx(tx, stockLine.ID, req.Quantity); err != nil {
				return fmt.Errorf("add allocated quantity: %w", err)
			}
			stockLine.Allocated += req.Quantity
		}

		if err := s.movementRepo.CreateInTx(tx, m); err != nil {
			return fmt.Errorf("record allocate movement: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("vendor stock allocated",
		zap.Int64("vendor_id", req.VendorID),
		zap.Int64("purchase_line_id", req.PurchaseLineID),
		zap.Int("quantity", req.Quantity),
		zap.Int64("shop_id", req.ShopID),
	)
	return stockLine, nil
}

// ListVendorStock 查询供应商库存台账
func (s *allocationService) ListVendorStock(req *domain.VendorStockListRequest) (*domain.VendorStockListResponse, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 || req.PageSize > 100 {
		req.PageSize = 20
	}

	lines, total, err := s.vendorStockRepo.List(req)
	if err != nil {
		return nil, fmt.Errorf("list vendor stock: %w", err)
	}

	return &domain.VendorStockListResponse{
		Lines:    lines,
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	}, nil
}
