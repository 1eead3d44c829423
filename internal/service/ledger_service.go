// Package service 提供业务逻辑层实现。
// 服务层负责协调领域对象和仓储，实现具体的业务用例。
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Diouf7AH/jewellery-management-sub001/internal/domain"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/mq"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/repo"
)

// 定义流水账业务错误
var (
	ErrMovementNotFound = errors.New("movement not found")
	ErrMovementLocked   = errors.New("movement is locked")
	// ErrRestrictedMovementType 销售相关流水只能由出库/取消编排产生
	ErrRestrictedMovementType = errors.New("movement type is reserved for sale orchestration")
)

// LedgerService 定义库存流水账业务接口。
// 流水账是唯一事实来源：所有库存数量都由条目聚合推导，不单独存计数。
type LedgerService interface {
	Record(req *domain.RecordMovementRequest, createdBy int64) (*domain.Movement, error)
	GetMovement(id int64) (*domain.Movement, error)
	ListMovements(req *domain.MovementListRequest) (*domain.MovementListResponse, error)
	BucketBalance(productID int64, bucket domain.Bucket, shopID *int64) (*domain.BucketBalance, error)

	// 纠错路径：解锁后修改，修改完成自动重新上锁。
	// 正常纠错应追加反向条目，此路径仅限管理员。
	Unlock(id int64) error
	Amend(id int64, req *domain.RecordMovementRequest) (*domain.Movement, error)
}

// ledgerService 实现LedgerService接口
type ledgerService struct {
	movementRepo repo.MovementRepository
	events       *mq.StockEventPublisher // 可为nil表示不发布事件
	logger       *zap.Logger
}

// NewLedgerService 创建流水账服务实例
func NewLedgerService(movementRepo repo.MovementRepository, events *mq.StockEventPublisher, logger *zap.Logger) LedgerService {
	return &ledgerService{movementRepo: movementRepo, events: events, logger: logger}
}

// Record 记录一条手工流水（采购入库、调拨、盘点调整等）。
// 业务规则：
// 1. SALE_OUT和RETURN_IN只能由销售出库/取消编排产生，手工入口拒绝
// 2. 条目必须通过全部领域校验才允许写入
// 3. 条目持久化即锁定，后续不可修改
func (s *ledgerService) Record(req *domain.RecordMovementRequest, createdBy int64) (*domain.Movement, error) {
	if req.Type == domain.MovementSaleOut || req.Type == domain.MovementReturnIn {
		return nil, ErrRestrictedMovementType
	}

	m := movementFromRequest(req, createdBy)
	if err := m.Validate(); err != nil {
		return nil, err
	}

	if err := s.movementRepo.Create(m); err != nil {
		s.logger.Error("failed to record movement", zap.Error(err))
		return nil, fmt.Errorf("record movement: %w", err)
	}

	s.logger.Info("movement recorded",
		zap.Int64("movement_id", m.ID),
		zap.String("type", string(m.Type)),
		zap.Int64("product_id", m.ProductID),
		zap.Int("quantity", m.Quantity),
	)

	s.publishRecorded(m)
	return m, nil
}

// publishRecorded 发布入账事件，失败只告警不影响已落库的条目
func (s *ledgerService) publishRecorded(m *domain.Movement) {
	if s.events == nil {
		return
	}

	data := &mq.MovementRecordedData{
		MovementID: m.ID,
		ProductID:  m.ProductID,
		Type:       string(m.Type),
		Quantity:   m.Quantity,
		RecordedBy: m.CreatedBy,
	}
	if m.SrcBucket != nil {
		data.SrcBucket = string(*m.SrcBucket)
		data.SrcShopID = m.SrcShopID
	}
	if m.DstBucket != nil {
		data.DstBucket = string(*m.DstBucket)
		data.DstShopID = m.DstShopID
	}

	if err := s.events.PublishMovementRecorded(context.Background(), data, m.CorrelationID); err != nil {
		s.logger.Warn("failed to publish movement event",
			zap.Int64("movement_id", m.ID), zap.Error(err))
	}
}

// movementFromRequest 由请求构造锁定状态的流水条目
func movementFromRequest(req *domain.RecordMovementRequest, createdBy int64) *domain.Movement {
	occurredAt := time.Now()
	if req.OccurredAt != nil {
		occurredAt = *req.OccurredAt
	}

	return &domain.Movement{
		ProductID:      req.ProductID,
		Type:           req.Type,
		Quantity:       req.Quantity,
		UnitCost:       req.UnitCost,
		SrcBucket:      req.SrcBucket,
		SrcShopID:      req.SrcShopID,
		DstBucket:      req.DstBucket,
		DstShopID:      req.DstShopID,
		Reason:         req.Reason,
		PurchaseID:     req.PurchaseID,
		PurchaseLineID: req.PurchaseLineID,
		VendorID:       req.VendorID,
		IsLocked:       true,
		OccurredAt:     occurredAt,
		CreatedBy:      createdBy,
		CorrelationID:  uuid.NewString(),
	}
}

// GetMovement 获取单条流水
func (s *ledgerService) GetMovement(id int64) (*domain.Movement, error) {
	m, err := s.movementRepo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("get movement: %w", err)
	}
	if m == nil {
		return nil, ErrMovementNotFound
	}
	return m, nil
}

// ListMovements 查询流水列表
func (s *ledgerService) ListMovements(req *domain.MovementListRequest) (*domain.MovementListResponse, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 || req.PageSize > 100 {
		req.PageSize = 20
	}

	movements, total, err := s.movementRepo.List(req)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}

	return &domain.MovementListResponse{
		Movements: movements,
		Total:     total,
		Page:      req.Page,
		PageSize:  req.PageSize,
	}, nil
}

// BucketBalance 聚合某商品在指定桶位的余额。
// shopID为nil时，SHOP桶聚合所有门店。
func (s *ledgerService) BucketBalance(productID int64, bucket domain.Bucket, shopID *int64) (*domain.BucketBalance, error) {
	if !bucket.Valid() {
		return nil, domain.Validationf("invalid bucket %q", bucket)
	}

	qty, err := s.movementRepo.BucketBalance(productID, bucket, shopID)
	if err != nil {
		return nil, fmt.Errorf("bucket balance: %w", err)
	}

	return &domain.BucketBalance{
		ProductID: productID,
		Bucket:    bucket,
		ShopID:    shopID,
		Quantity:  qty,
	}, nil
}

// Unlock 解锁流水条目，仅限管理员路由调用
func (s *ledgerService) Unlock(id int64) error {
	err := s.movementRepo.Unlock(id)
	if errors.Is(err, repo.ErrMovementNotFound) {
		return ErrMovementNotFound
	}
	if err != nil {
		return fmt.Errorf("unlock movement: %w", err)
	}

	s.logger.Warn("movement unlocked for correction", zap.Int64("movement_id", id))
	return nil
}

// Amend 修改一条已解锁的流水条目并重新上锁。
// 针对锁定条目的修改返回 ErrMovementLocked。
func (s *ledgerService) Amend(id int64, req *domain.RecordMovementRequest) (*domain.Movement, error) {
	existing, err := s.movementRepo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("get movement: %w", err)
	}
	if existing == nil {
		return nil, ErrMovementNotFound
	}

	m := movementFromRequest(req, existing.CreatedBy)
	m.ID = existing.ID
	m.SaleID = existing.SaleID
	m.SaleLineID = existing.SaleLineID
	m.InvoiceID = existing.InvoiceID
	m.StockConsumed = existing.StockConsumed
	m.CorrelationID = existing.CorrelationID
	if err := m.Validate(); err != nil {
		return nil, err
	}

	err = s.movementRepo.Update(m)
	if errors.Is(err, repo.ErrMovementLocked) {
		return nil, ErrMovementLocked
	}
	if err != nil {
		return nil, fmt.Errorf("amend movement: %w", err)
	}

	s.logger.Warn("movement amended",
		zap.Int64("movement_id", m.ID),
		zap.String("type", string(m.Type)),
	)
	return m, nil
}
