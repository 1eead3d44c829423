package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Diouf7AH/jewellery-management-sub001/internal/domain"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/mq"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/repo"
)

// FulfillmentService 定义销售出库与取消编排接口。
// 两个操作都在单个数据库事务中完成，靠销售单行锁串行化并发调用；
// 重试安全：重复调用不产生重复的库存影响。
type FulfillmentService interface {
	Fulfill(ctx context.Context, saleID, actorID int64) (*domain.FulfillResult, error)
	Cancel(ctx context.Context, saleID, actorID int64) (*domain.CancelResult, error)
}

// fulfillmentService 实现FulfillmentService接口
type fulfillmentService struct {
	tx              TxRunner
	saleRepo        repo.SaleRepository
	movementRepo    repo.MovementRepository
	vendorStockRepo repo.VendorStockRepository
	events          *mq.StockEventPublisher // 可为nil表示不发布事件
	logger          *zap.Logger
}

// NewFulfillmentService 创建出库编排服务实例
func NewFulfillmentService(
	tx TxRunner,
	saleRepo repo.SaleRepository,
	movementRepo repo.MovementRepository,
	vendorStockRepo repo.VendorStockRepository,
	events *mq.StockEventPublisher,
	logger *zap.Logger,
) FulfillmentService {
	return &fulfillmentService{
		tx:              tx,
		saleRepo:        saleRepo,
		movementRepo:    movementRepo,
		vendorStockRepo: vendorStockRepo,
		events:          events,
		logger:          logger,
	}
}

// Fulfill 执行销售出库。
// 单个事务内按顺序：
// 1. 行锁销售单；已取消的单据拒绝出库
// 2. 要求已开发票且发票带门店，门店决定扣减位置
// 3. 逐行创建 SALE_OUT 流水（SHOP -> EXTERNAL）；
//    每个销售行至多一条SALE_OUT由数据库唯一键保证，
//    唯一键冲突意味着该行已出库，跳过
// 4. 新建条目对应的供应商库存按FIFO扣减，任一行不足则整体回滚
// 5. 销售单置为已交付
// 纯重试（所有行都已出库）返回 CreatedEntries 为 0。
func (s *fulfillmentService) Fulfill(ctx context.Context, saleID, actorID int64) (*domain.FulfillResult, error) {
	result := &domain.FulfillResult{SaleID: saleID}
	correlationID := uuid.NewString()
	var shopID int64

	err := s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		sale, err := s.saleRepo.GetByIDForUpdateInTx(tx, saleID)
		if err != nil {
			return fmt.Errorf("lock sale: %w", err)
		}
		if sale == nil {
			return ErrSaleNotFound
		}
		if sale.IsCancelled() {
			return domain.Validationf("sale %d is cancelled and cannot be fulfilled", saleID)
		}
		if !sale.IsDelivered() && sale.Status != domain.SaleStatusConfirmed {
			return domain.Validationf("sale %d must be confirmed before fulfillment, status is %s", saleID, sale.Status)
		}

		invoice, err := s.saleRepo.GetInvoiceBySaleIDInTx(tx, saleID)
		if err != nil {
			return fmt.Errorf("get invoice: %w", err)
		}
		if invoice == nil {
			return domain.Validationf("sale %d has no invoice, fulfillment requires one", saleID)
		}
		if invoice.CancelledAt != nil {
			return domain.Validationf("invoice %d is cancelled", invoice.ID)
		}
		if invoice.ShopID == nil {
			return domain.Validationf("invoice %d carries no shop, cannot locate stock", invoice.ID)
		}
		shopID = *invoice.ShopID

		lines, err := s.saleRepo.GetLinesInTx(tx, saleID)
		if err != nil {
			return fmt.Errorf("get sale lines: %w", err)
		}

		now := time.Now()
		for _, line := range lines {
			if !line.Fulfillable() {
				continue
			}

			m := saleOutMovement(line, invoice, actorID, correlationID, now)
			if err := m.Validate(); err != nil {
				return err
			}

			err := s.movementRepo.CreateInTx(tx, m)
			if errors.Is(err, repo.ErrDuplicateSaleLineMovement) {
				// 该行已由先前调用出库
				result.SkippedLines++
				continue
			}
			if err != nil {
				return fmt.Errorf("record sale out movement: %w", err)
			}

			_, err = s.vendorStockRepo.ConsumeInTx(tx, *line.VendorID, line.ProductID, line.Quantity)
			if errors.Is(err, repo.ErrInsufficientVendorStock) {
				available, availErr := s.availableInTx(line)
				if availErr != nil {
					available = 0
				}
				return domain.Validationf(
					"insufficient vendor stock for product %d: requested %d, available %d",
					line.ProductID, line.Quantity, available,
				)
			}
			if err != nil {
				return fmt.Errorf("consume vendor stock: %w", err)
			}

			if err := s.movementRepo.SetStockConsumedInTx(tx, m.ID, true); err != nil {
				return fmt.Errorf("mark stock consumed: %w", err)
			}
			result.CreatedEntries++
		}

		if !sale.IsDelivered() {
			if err := s.saleRepo.MarkDeliveredInTx(tx, saleID, now); err != nil {
				return fmt.Errorf("mark sale delivered: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("sale fulfilled",
		zap.Int64("sale_id", saleID),
		zap.Int("created_entries", result.CreatedEntries),
		zap.Int("skipped_lines", result.SkippedLines),
		zap.String("correlation_id", correlationID),
	)

	if s.events != nil && result.CreatedEntries > 0 {
		data := &mq.SaleFulfilledData{
			SaleID:         saleID,
			ShopID:         shopID,
			CreatedEntries: result.CreatedEntries,
			SkippedLines:   result.SkippedLines,
			FulfilledBy:    actorID,
			FulfilledAt:    time.Now(),
		}
		if pubErr := s.events.PublishSaleFulfilled(ctx, data, correlationID); pubErr != nil {
			s.logger.Warn("failed to publish fulfillment event",
				zap.Int64("sale_id", saleID), zap.Error(pubErr))
		}
	}
	return result, nil
}

// availableInTx 读取行对应供应商的可售余量，仅用于错误信息
func (s *fulfillmentService) availableInTx(line *domain.SaleLine) (int, error) {
	return s.vendorStockRepo.AvailableQuantity(*line.VendorID, line.ProductID)
}

// saleOutMovement 构造销售行对应的出库流水
func saleOutMovement(line *domain.SaleLine, invoice *domain.Invoice, actorID int64, correlationID string, occurredAt time.Time) *domain.Movement {
	src := domain.BucketShop
	dst := domain.BucketExternal
	return &domain.Movement{
		ProductID:     line.ProductID,
		Type:          domain.MovementSaleOut,
		Quantity:      line.Quantity,
		UnitCost:      line.UnitCost,
		SrcBucket:     &src,
		SrcShopID:     invoice.ShopID,
		DstBucket:     &dst,
		Reason:        "sale fulfillment",
		SaleID:        &line.SaleID,
		SaleLineID:    &line.ID,
		InvoiceID:     &invoice.ID,
		VendorID:      line.VendorID,
		IsLocked:      true,
		OccurredAt:    occurredAt,
		CreatedBy:     actorID,
		CorrelationID: correlationID,
	}
}

// Cancel 取消销售单并冲销已出库的行。
// 幂等语义：
// 1. 整单已取消时直接返回 AlreadyCancelled，不做任何修改
// 2. 行级别以RETURN_IN唯一键判定，已冲销的行跳过
// 每个冲销行按LIFO回补供应商库存，并清除原SALE_OUT的扣减标志。
func (s *fulfillmentService) Cancel(ctx context.Context, saleID, actorID int64) (*domain.CancelResult, error) {
	result := &domain.CancelResult{SaleID: saleID}
	correlationID := uuid.NewString()

	err := s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		sale, err := s.saleRepo.GetByIDForUpdateInTx(tx, saleID)
		if err != nil {
			return fmt.Errorf("lock sale: %w", err)
		}
		if sale == nil {
			return ErrSaleNotFound
		}
		if sale.IsCancelled() {
			result.AlreadyCancelled = true
			return nil
		}

		movements, err := s.movementRepo.GetBySaleIDInTx(tx, saleID)
		if err != nil {
			return fmt.Errorf("get sale movements: %w", err)
		}

		saleOuts := make(map[int64]*domain.Movement)
		returned := make(map[int64]bool)
		for _, m := range movements {
			if m.SaleLineID == nil {
				continue
			}
			switch m.Type {
			case domain.MovementSaleOut:
				saleOuts[*m.SaleLineID] = m
			case domain.MovementReturnIn:
				returned[*m.SaleLineID] = true
			}
		}

		now := time.Now()
		for lineID, saleOut := range saleOuts {
			if returned[lineID] {
				result.SkippedCount++
				continue
			}

			m := returnInMovement(saleOut, actorID, correlationID, now)
			if err := m.Validate(); err != nil {
				return err
			}

			err := s.movementRepo.CreateInTx(tx, m)
			if errors.Is(err, repo.ErrDuplicateSaleLineMovement) {
				result.SkippedCount++
				continue
			}
			if err != nil {
				return fmt.Errorf("record return movement: %w", err)
			}

			if saleOut.StockConsumed && saleOut.VendorID != nil {
				_, err := s.vendorStockRepo.RestoreInTx(tx, *saleOut.VendorID, saleOut.ProductID, saleOut.Quantity)
				if errors.Is(err, repo.ErrNothingToRestore) {
					return domain.Validationf(
						"cannot restore %d units of product %d to vendor %d: sold quantity insufficient",
						saleOut.Quantity, saleOut.ProductID, *saleOut.VendorID,
					)
				}
				if err != nil {
					return fmt.Errorf("restore vendor stock: %w", err)
				}
				if err := s.movementRepo.SetStockConsumedInTx(tx, saleOut.ID, false); err != nil {
					return fmt.Errorf("clear stock consumed: %w", err)
				}
			}
			result.ReturnedCount++
		}

		if err := s.saleRepo.MarkCancelledInTx(tx, saleID, now); err != nil {
			return fmt.Errorf("mark sale cancelled: %w", err)
		}

		invoice, err := s.saleRepo.GetInvoiceBySaleIDInTx(tx, saleID)
		if err != nil {
			return fmt.Errorf("get invoice: %w", err)
		}
		if invoice != nil && invoice.CancelledAt == nil {
			if err := s.saleRepo.CancelInvoiceInTx(tx, invoice.ID, now); err != nil {
				return fmt.Errorf("cancel invoice: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.AlreadyCancelled {
		s.logger.Info("sale already cancelled", zap.Int64("sale_id", saleID))
		return result, nil
	}

	s.logger.Info("sale cancelled",
		zap.Int64("sale_id", saleID),
		zap.Int("returned", result.ReturnedCount),
		zap.Int("skipped", result.SkippedCount),
		zap.String("correlation_id", correlationID),
	)

	if s.events != nil {
		data := &mq.SaleCancelledData{
			SaleID:        saleID,
			ReturnedCount: result.ReturnedCount,
			CancelledBy:   actorID,
			CancelledAt:   time.Now(),
		}
		if pubErr := s.events.PublishSaleCancelled(ctx, data, correlationID); pubErr != nil {
			s.logger.Warn("failed to publish cancellation event",
				zap.Int64("sale_id", saleID), zap.Error(pubErr))
		}
	}
	return result, nil
}

// returnInMovement 构造SALE_OUT的反向冲销流水：
// 原条目的来源门店成为退货目的地。
func returnInMovement(saleOut *domain.Movement, actorID int64, correlationID string, occurredAt time.Time) *domain.Movement {
	src := domain.BucketExternal
	dst := domain.BucketShop
	dstShop := saleOut.SrcShopID

	return &domain.Movement{
		ProductID:     saleOut.ProductID,
		Type:          domain.MovementReturnIn,
		Quantity:      saleOut.Quantity,
		UnitCost:      saleOut.UnitCost,
		SrcBucket:     &src,
		DstBucket:     &dst,
		DstShopID:     dstShop,
		Reason:        "sale cancellation",
		SaleID:        saleOut.SaleID,
		SaleLineID:    saleOut.SaleLineID,
		InvoiceID:     saleOut.InvoiceID,
		VendorID:      saleOut.VendorID,
		IsLocked:      true,
		OccurredAt:    occurredAt,
		CreatedBy:     actorID,
		CorrelationID: correlationID,
	}
}
