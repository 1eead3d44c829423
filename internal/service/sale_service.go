package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Diouf7AH/jewellery-management-sub001/internal/domain"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/repo"
)

// 定义销售单业务错误
var (
	ErrSaleNotFound  = errors.New("sale not found")
	ErrInvoiceExists = errors.New("sale already has an invoice")
)

// SaleService 定义销售单业务接口。
// 销售单本身不动库存；库存变化只发生在出库与取消编排中。
type SaleService interface {
	CreateSale(req *domain.CreateSaleRequest, createdBy int64) (*domain.Sale, error)
	GetSale(id int64) (*domain.Sale, error)
	ListSales(req *domain.SaleListRequest) (*domain.SaleListResponse, error)

	CreateInvoice(req *domain.CreateInvoiceRequest) (*domain.Invoice, error)
	GetInvoice(saleID int64) (*domain.Invoice, error)
}

// saleService 实现SaleService接口
type saleService struct {
	saleRepo repo.SaleRepository
	logger   *zap.Logger
}

// NewSaleService 创建销售单服务实例
func NewSaleService(saleRepo repo.SaleRepository, logger *zap.Logger) SaleService {
	return &saleService{saleRepo: saleRepo, logger: logger}
}

// CreateSale 创建销售单及其行。
// 行金额由单价乘数量计算；未指定供应商的行出库时被跳过。
func (s *saleService) CreateSale(req *domain.CreateSaleRequest, createdBy int64) (*domain.Sale, error) {
	sale := &domain.Sale{
		Number:    req.Number,
		ClientID:  req.ClientID,
		Status:    domain.SaleStatusConfirmed,
		CreatedBy: createdBy,
	}
	for _, lr := range req.Lines {
		if lr.Quantity <= 0 {
			return nil, domain.Validationf("sale line quantity must be positive, got %d", lr.Quantity)
		}
		sale.Lines = append(sale.Lines, &domain.SaleLine{
			ProductID: lr.ProductID,
			VendorID:  lr.VendorID,
			Quantity:  lr.Quantity,
			UnitPrice: lr.UnitPrice,
			Amount:    lr.UnitPrice.Mul(decimal.NewFromInt(int64(lr.Quantity))),
		})
	}

	if err := s.saleRepo.Create(sale); err != nil {
		s.logger.Error("failed to create sale", zap.Error(err))
		return nil, fmt.Errorf("create sale: %w", err)
	}

	s.logger.Info("sale created",
		zap.Int64("sale_id", sale.ID),
		zap.String("number", sale.Number),
		zap.Int("lines", len(sale.Lines)),
	)
	return sale, nil
}

// GetSale 获取销售单及其行
func (s *saleService) GetSale(id int64) (*domain.Sale, error) {
	sale, err := s.saleRepo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("get sale: %w", err)
	}
	if sale == nil {
		return nil, ErrSaleNotFound
	}

	lines, err := s.saleRepo.GetLines(id)
	if err != nil {
		return nil, fmt.Errorf("get sale lines: %w", err)
	}
	sale.Lines = lines
	return sale, nil
}

// ListSales 查询销售单列表
func (s *saleService) ListSales(req *domain.SaleListRequest) (*domain.SaleListResponse, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 || req.PageSize > 100 {
		req.PageSize = 20
	}

	sales, total, err := s.saleRepo.List(req)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}

	return &domain.SaleListResponse{
		Sales:    sales,
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	}, nil
}

// CreateInvoice 为销售单开具发票。
// 发票上的门店决定出库扣减的门店位置；已取消的销售单不能开票。
func (s *saleService) CreateInvoice(req *domain.CreateInvoiceRequest) (*domain.Invoice, error) {
	sale, err := s.saleRepo.GetByID(req.SaleID)
	if err != nil {
		return nil, fmt.Errorf("get sale: %w", err)
	}
	if sale == nil {
		return nil, ErrSaleNotFound
	}
	if sale.IsCancelled() {
		return nil, domain.Validationf("cannot invoice cancelled sale %d", sale.ID)
	}

	existing, err := s.saleRepo.GetInvoiceBySaleID(req.SaleID)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if existing != nil {
		return nil, ErrInvoiceExists
	}

	lines, err := s.saleRepo.GetLines(req.SaleID)
	if err != nil {
		return nil, fmt.Errorf("get sale lines: %w", err)
	}

	invoice := &domain.Invoice{
		Number: req.Number,
		SaleID: req.SaleID,
		ShopID: req.ShopID,
	}
	for _, line := range lines {
		invoice.TotalAmount = invoice.TotalAmount.Add(line.Amount)
	}

	if err := s.saleRepo.CreateInvoice(invoice); err != nil {
		s.logger.Error("failed to create invoice", zap.Error(err))
		return nil, fmt.Errorf("create invoice: %w", err)
	}

	s.logger.Info("invoice created",
		zap.Int64("invoice_id", invoice.ID),
		zap.Int64("sale_id", invoice.SaleID),
		zap.String("number", invoice.Number),
	)
	return invoice, nil
}

// GetInvoice 获取销售单对应的发票
func (s *saleService) GetInvoice(saleID int64) (*domain.Invoice, error) {
	invoice, err := s.saleRepo.GetInvoiceBySaleID(saleID)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if invoice == nil {
		return nil, ErrSaleNotFound
	}
	return invoice, nil
}
