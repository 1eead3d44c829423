package service

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Diouf7AH/jewellery-management-sub001/internal/domain"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/repo"
)

// 定义门店与供应商业务错误
var (
	ErrShopNotFound   = errors.New("shop not found")
	ErrVendorNotFound = errors.New("vendor not found")
)

// ShopService 定义门店与供应商主数据接口
type ShopService interface {
	CreateShop(req *domain.CreateShopRequest) (*domain.Shop, error)
	GetShop(id int64) (*domain.Shop, error)
	ListShops() ([]*domain.Shop, error)

	CreateVendor(req *domain.CreateVendorRequest) (*domain.Vendor, error)
	GetVendor(id int64) (*domain.Vendor, error)
	ListVendors() ([]*domain.Vendor, error)
}

// shopService 实现ShopService接口
type shopService struct {
	shopRepo   repo.ShopRepository
	vendorRepo repo.VendorRepository
	logger     *zap.Logger
}

// NewShopService 创建门店服务实例
func NewShopService(shopRepo repo.ShopRepository, vendorRepo repo.VendorRepository, logger *zap.Logger) ShopService {
	return &shopService{shopRepo: shopRepo, vendorRepo: vendorRepo, logger: logger}
}

// CreateShop 创建门店
func (s *shopService) CreateShop(req *domain.CreateShopRequest) (*domain.Shop, error) {
	shop := &domain.Shop{
		Code:     req.Code,
		Name:     req.Name,
		Address:  req.Address,
		IsActive: true,
	}

	if err := s.shopRepo.Create(shop); err != nil {
		s.logger.Error("failed to create shop", zap.Error(err))
		return nil, fmt.Errorf("create shop: %w", err)
	}
	return shop, nil
}

// GetShop 获取门店
func (s *shopService) GetShop(id int64) (*domain.Shop, error) {
	shop, err := s.shopRepo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("get shop: %w", err)
	}
	if shop == nil {
		return nil, ErrShopNotFound
	}
	return shop, nil
}

// ListShops 列出全部门店
func (s *shopService) ListShops() ([]*domain.Shop, error) {
	shops, err := s.shopRepo.List()
	if err != nil {
		return nil, fmt.Errorf("list shops: %w", err)
	}
	return shops, nil
}

// CreateVendor 创建供应商
func (s *shopService) CreateVendor(req *domain.CreateVendorRequest) (*domain.Vendor, error) {
	vendor := &domain.Vendor{
		Code:     req.Code,
		Name:     req.Name,
		Phone:    req.Phone,
		IsActive: true,
	}

	if err := s.vendorRepo.Create(vendor); err != nil {
		s.logger.Error("failed to create vendor", zap.Error(err))
		return nil, fmt.Errorf("create vendor: %w", err)
	}
	return vendor, nil
}

// GetVendor 获取供应商
func (s *shopService) GetVendor(id int64) (*domain.Vendor, error) {
	vendor, err := s.vendorRepo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("get vendor: %w", err)
	}
	if vendor == nil {
		return nil, ErrVendorNotFound
	}
	return vendor, nil
}

// ListVendors 列出全部供应商
func (s *shopService) ListVendors() ([]*domain.Vendor, error) {
	vendors, err := s.vendorRepo.List()
	if err != nil {
		return nil, fmt.Errorf("list vendors: %w", err)
	}
	return vendors, nil
}
