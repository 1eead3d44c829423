package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Diouf7AH/jewellery-management-sub001/internal/domain"
)

// mockProductRepo 内存版商品仓储，仅覆盖商品与牌价
type mockProductRepo struct {
	products map[int64]*domain.Product
	rates    map[string]*domain.GoldRate
	nextID   int64
}

func newMockProductRepo() *mockProductRepo {
	return &mockProductRepo{
		products: make(map[int64]*domain.Product),
		rates:    make(map[string]*domain.GoldRate),
		nextID:   1,
	}
}

func rateKey(brand string, purity domain.Purity) string {
	return fmt.Sprintf("%s/%s", brand, purity)
}

func (m *mockProductRepo) Create(product *domain.Product) error {
	product.ID = m.nextID
	m.nextID++
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepo) GetByID(id int64) (*domain.Product, error) {
	return m.products[id], nil
}

func (m *mockProductRepo) GetBySKU(sku string) (*domain.Product, error) {
	for _, p := range m.products {
		if p.SKU == sku {
			return p, nil
		}
	}
	return nil, nil
}

func (m *mockProductRepo) Update(product *domain.Product) error {
	if _, ok := m.products[product.ID]; !ok {
		return errors.New("product not found")
	}
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepo) Delete(id int64) error {
	delete(m.products, id)
	return nil
}

func (m *mockProductRepo) List(req *domain.ProductListRequest) ([]*domain.Product, int64, error) {
	var products []*domain.Product
	for _, p := range m.products {
		products = append(products, p)
	}
	return products, int64(len(products)), nil
}

func (m *mockProductRepo) GetByIDs(ids []int64) ([]*domain.Product, error) {
	var products []*domain.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			products = append(products, p)
		}
	}
	return products, nil
}

func (m *mockProductRepo) GetGoldRate(brand string, purity domain.Purity) (*domain.GoldRate, error) {
	return m.rates[rateKey(brand, purity)], nil
}

func (m *mockProductRepo) UpsertGoldRate(rate *domain.GoldRate) error {
	m.rates[rateKey(rate.Brand, rate.Purity)] = rate
	return nil
}

func newTestProductService() (ProductService, *mockProductRepo) {
	repo := newMockProductRepo()
	return NewProductService(repo, zap.NewNop()), repo
}

func TestProductService_CreateProduct(t *testing.T) {
	svc, _ := newTestProductService()

	product, err := svc.CreateProduct(&domain.CreateProductRequest{
		Name:        "素金手镯",
		SKU:         "BR-001",
		Brand:       "周大福",
		Purity:      domain.Purity("24K"),
		WeightGrams: decimal.NewFromFloat(12.500),
	})
	if err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	if product.Status != domain.ProductStatusActive {
		t.Errorf("expected active status, got %s", product.Status)
	}

	// 重复SKU拒绝
	_, err = svc.CreateProduct(&domain.CreateProductRequest{
		Name:        "another",
		SKU:         "BR-001",
		Brand:       "周大福",
		Purity:      domain.Purity("24K"),
		WeightGrams: decimal.NewFromFloat(8),
	})
	if !errors.Is(err, ErrProductExists) {
		t.Errorf("expected ErrProductExists, got %v", err)
	}

	// 非正克重拒绝
	_, err = svc.CreateProduct(&domain.CreateProductRequest{
		Name:        "bad weight",
		SKU:         "BR-002",
		Brand:       "周大福",
		Purity:      domain.Purity("24K"),
		WeightGrams: decimal.Zero,
	})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestProductService_SetGoldRate(t *testing.T) {
	svc, _ := newTestProductService()

	rate, err := svc.SetGoldRate("周大福", domain.Purity("24K"), &domain.GoldRate{
		PricePerGram: decimal.NewFromInt(618),
		UpdatedBy:    1,
	})
	if err != nil {
		t.Fatalf("SetGoldRate failed: %v", err)
	}
	if rate.Brand != "周大福" || rate.Purity != domain.Purity("24K") {
		t.Errorf("rate key not filled from arguments: %s/%s", rate.Brand, rate.Purity)
	}

	// 覆盖旧牌价
	if _, err := svc.SetGoldRate("周大福", domain.Purity("24K"), &domain.GoldRate{
		PricePerGram: decimal.NewFromInt(625),
		UpdatedBy:    1,
	}); err != nil {
		t.Fatalf("SetGoldRate overwrite failed: %v", err)
	}

	got, err := svc.GetGoldRate("周大福", domain.Purity("24K"))
	if err != nil {
		t.Fatalf("GetGoldRate failed: %v", err)
	}
	if !got.PricePerGram.Equal(decimal.NewFromInt(625)) {
		t.Errorf("expected price 625, got %s", got.PricePerGram)
	}

	// 非正牌价拒绝
	_, err = svc.SetGoldRate("周大福", domain.Purity("24K"), &domain.GoldRate{
		PricePerGram: decimal.NewFromInt(-1),
	})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestProductService_GetGoldRate_NotFound(t *testing.T) {
	svc, _ := newTestProductService()

	if _, err := svc.GetGoldRate("周六福", domain.Purity("22K")); !errors.Is(err, ErrGoldRateNotFound) {
		t.Errorf("expected ErrGoldRateNotFound, got %v", err)
	}
}

func TestProductService_GetProductWithPrice(t *testing.T) {
	svc, _ := newTestProductService()

	product, err := svc.CreateProduct(&domain.CreateProductRequest{
		Name:        "足金戒指",
		SKU:         "RG-001",
		Brand:       "老凤祥",
		Purity:      domain.Purity("24K"),
		WeightGrams: decimal.NewFromFloat(4.20),
	})
	if err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}

	// 无牌价时报未找到
	if _, err := svc.GetProductWithPrice(product.ID); !errors.Is(err, ErrGoldRateNotFound) {
		t.Errorf("expected ErrGoldRateNotFound, got %v", err)
	}

	if _, err := svc.SetGoldRate("老凤祥", domain.Purity("24K"), &domain.GoldRate{
		PricePerGram: decimal.NewFromInt(600),
		UpdatedBy:    1,
	}); err != nil {
		t.Fatalf("SetGoldRate failed: %v", err)
	}

	priced, err := svc.GetProductWithPrice(product.ID)
	if err != nil {
		t.Fatalf("GetProductWithPrice failed: %v", err)
	}

	want := decimal.NewFromFloat(4.20).Mul(decimal.NewFromInt(600))
	if !priced.NominalPrice.Equal(want) {
		t.Errorf("expected nominal price %s, got %s", want, priced.NominalPrice)
	}
	if !priced.PricePerGram.Equal(decimal.NewFromInt(600)) {
		t.Errorf("expected price per gram 600, got %s", priced.PricePerGram)
	}
}
