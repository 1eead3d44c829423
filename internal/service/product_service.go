package service

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Diouf7AH/jewellery-management-sub001/internal/domain"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/repo"
)

// 定义商品业务错误
var (
	ErrProductNotFound  = errors.New("product not found")
	ErrProductExists    = errors.New("product with this sku already exists")
	ErrGoldRateNotFound = errors.New("gold rate not found")
)

// ProductService 定义商品业务逻辑接口
type ProductService interface {
	CreateProduct(req *domain.CreateProductRequest) (*domain.Product, error)
	GetProduct(id int64) (*domain.Product, error)
	GetProductBySKU(sku string) (*domain.Product, error)
	UpdateProduct(id int64, req *domain.UpdateProductRequest) (*domain.Product, error)
	DeleteProduct(id int64) error
	ListProducts(req *domain.ProductListRequest) (*domain.ProductListResponse, error)

	// 名义价格由 (品牌, 纯度) 牌价乘以克重得出
	GetProductWithPrice(id int64) (*domain.ProductWithPrice, error)
	GetGoldRate(brand string, purity domain.Purity) (*domain.GoldRate, error)
	SetGoldRate(brand string, purity domain.Purity, rate *domain.GoldRate) (*domain.GoldRate, error)
}

// productService 实现ProductService接口
type productService struct {
	productRepo repo.ProductRepository
	logger      *zap.Logger
}

// NewProductService 创建商品服务实例
func NewProductService(productRepo repo.ProductRepository, logger *zap.Logger) ProductService {
	return &productService{productRepo: productRepo, logger: logger}
}

// CreateProduct 创建商品
func (s *productService) CreateProduct(req *domain.CreateProductRequest) (*domain.Product, error) {
	existing, err := s.productRepo.GetBySKU(req.SKU)
	if err != nil {
		return nil, fmt.Errorf("check sku: %w", err)
	}
	if existing != nil {
		return nil, ErrProductExists
	}

	if req.WeightGrams.Sign() <= 0 {
		return nil, domain.Validationf("product weight must be positive")
	}

	product := &domain.Product{
		Name:        req.Name,
		Description: req.Description,
		SKU:         req.SKU,
		Brand:       req.Brand,
		Purity:      req.Purity,
		WeightGrams: req.WeightGrams,
		Status:      domain.ProductStatusActive,
		ImageURL:    req.ImageURL,
	}

	if err := s.productRepo.Create(product); err != nil {
		s.logger.Error("failed to create product", zap.Error(err))
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.logger.Info("product created",
		zap.Int64("product_id", product.ID),
		zap.String("sku", product.SKU),
	)
	return product, nil
}

// GetProduct 获取商品
func (s *productService) GetProduct(id int64) (*domain.Product, error) {
	product, err := s.productRepo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

// GetProductBySKU 根据SKU获取商品
func (s *productService) GetProductBySKU(sku string) (*domain.Product, error) {
	product, err := s.productRepo.GetBySKU(sku)
	if err != nil {
		return nil, fmt.Errorf("get product by sku: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

// UpdateProduct 更新商品
func (s *productService) UpdateProduct(id int64, req *domain.UpdateProductRequest) (*domain.Product, error) {
	product, err := s.productRepo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Brand != nil {
		product.Brand = *req.Brand
	}
	if req.Purity != nil {
		product.Purity = *req.Purity
	}
	if req.WeightGrams != nil {
		if req.WeightGrams.Sign() <= 0 {
			return nil, domain.Validationf("product weight must be positive")
		}
		product.WeightGrams = *req.WeightGrams
	}
	if req.Status != nil {
		product.Status = *req.Status
	}
	if req.ImageURL != nil {
		product.ImageURL = *req.ImageURL
	}

	if err := s.productRepo.Update(product); err != nil {
		s.logger.Error("failed to update product", zap.Error(err))
		return nil, fmt.Errorf("update product: %w", err)
	}
	return product, nil
}

// DeleteProduct 删除商品（软删除）
func (s *productService) DeleteProduct(id int64) error {
	product, err := s.productRepo.GetByID(id)
	if err != nil {
		return fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return ErrProductNotFound
	}

	if err := s.productRepo.Delete(id); err != nil {
		s.logger.Error("failed to delete product", zap.Error(err))
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

// ListProducts 查询商品列表
func (s *productService) ListProducts(req *domain.ProductListRequest) (*domain.ProductListResponse, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 || req.PageSize > 100 {
		req.PageSize = 20
	}

	products, total, err := s.productRepo.List(req)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	return &domain.ProductListResponse{
		Products: products,
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	}, nil
}

// GetProductWithPrice 获取商品及其名义价格。
// 牌价缺失时返回 ErrGoldRateNotFound，调用方应先维护牌价。
func (s *productService) GetProductWithPrice(id int64) (*domain.ProductWithPrice, error) {
	product, err := s.GetProduct(id)
	if err != nil {
		return nil, err
	}

	rate, err := s.productRepo.GetGoldRate(product.Brand, product.Purity)
	if err != nil {
		return nil, fmt.Errorf("get gold rate: %w", err)
	}
	if rate == nil {
		return nil, ErrGoldRateNotFound
	}

	return &domain.ProductWithPrice{
		Product:      product,
		PricePerGram: rate.PricePerGram,
		NominalPrice: product.NominalPrice(rate.PricePerGram),
	}, nil
}

// GetGoldRate 获取 (品牌, 纯度) 牌价
func (s *productService) GetGoldRate(brand string, purity domain.Purity) (*domain.GoldRate, error) {
	rate, err := s.productRepo.GetGoldRate(brand, purity)
	if err != nil {
		return nil, fmt.Errorf("get gold rate: %w", err)
	}
	if rate == nil {
		return nil, ErrGoldRateNotFound
	}
	return rate, nil
}

// SetGoldRate 维护 (品牌, 纯度) 牌价，存在则覆盖
func (s *productService) SetGoldRate(brand string, purity domain.Purity, rate *domain.GoldRate) (*domain.GoldRate, error) {
	if rate.PricePerGram.Sign() <= 0 {
		return nil, domain.Validationf("price per gram must be positive")
	}

	rate.Brand = brand
	rate.Purity = purity
	if err := s.productRepo.UpsertGoldRate(rate); err != nil {
		s.logger.Error("failed to upsert gold rate", zap.Error(err))
		return nil, fmt.Errorf("upsert gold rate: %w", err)
	}

	s.logger.Info("gold rate updated",
		zap.String("brand", brand),
		zap.String("purity", string(purity)),
		zap.String("price_per_gram", rate.PricePerGram.String()),
	)
	return rate, nil
}
