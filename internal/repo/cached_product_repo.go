package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Diouf7AH/jewellery-management-sub001/internal/cache"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/domain"
)

// CachedProductRepository 带缓存的商品仓储。
// 商品与牌价读多写少，按键缓存；流水和台账永远不走缓存。
type CachedProductRepository struct {
	repo  ProductRepository
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedProductRepository 创建带缓存的商品仓储
func NewCachedProductRepository(repo ProductRepository, cache cache.Cache, ttl time.Duration) ProductRepository {
	return &CachedProductRepository{
		repo:  repo,
		cache: cache,
		ttl:   ttl,
	}
}

// Create 创建商品（清除相关缓存）
func (r *CachedProductRepository) Create(product *domain.Product) error {
	if err := r.repo.Create(product); err != nil {
		return err
	}

	ctx := context.Background()
	r.cache.Del(ctx, r.productCacheKey(product.ID))
	r.cache.Del(ctx, r.productSKUCacheKey(product.SKU))

	return nil
}

// GetByID 根据ID获取商品（带缓存）
func (r *CachedProductRepository) GetByID(id int64) (*domain.Product, error) {
	ctx := context.Background()
	cacheKey := r.productCacheKey(id)

	var product domain.Product
	if err := r.cache.Get(ctx, cacheKey, &product); err == nil {
		return &product, nil
	}

	// 缓存未命中，从数据库获取
	result, err := r.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	r.cache.Set(ctx, cacheKey, result, r.ttl)

	return result, nil
}

// GetBySKU 根据SKU获取商品（带缓存）
func (r *CachedProductRepository) GetBySKU(sku string) (*domain.Product, error) {
	ctx := context.Background()
	cacheKey := r.productSKUCacheKey(sku)

	var product domain.Product
	if err := r.cache.Get(ctx, cacheKey, &product); err == nil {
		return &product, nil
	}

	result, err := r.repo.GetBySKU(sku)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	r.cache.Set(ctx, cacheKey, result, r.ttl)
	// 同时缓存ID索引
	r.cache.Set(ctx, r.productCacheKey(result.ID), result, r.ttl)

	return result, nil
}

// Update 更新商品（清除相关缓存）
func (r *CachedProductRepository) Update(product *domain.Product) error {
	if err := r.repo.Update(product); err != nil {
		return err
	}

	ctx := context.Background()
	r.cache.Del(ctx, r.productCacheKey(product.ID))
	r.cache.Del(ctx, r.productSKUCacheKey(product.SKU))

	return nil
}

// Delete 删除商品（清除相关缓存）
func (r *CachedProductRepository) Delete(id int64) error {
	// 先获取商品信息以便清除SKU缓存
	product, err := r.repo.GetByID(id)
	if err != nil {
		return err
	}

	if err := r.repo.Delete(id); err != nil {
		return err
	}

	ctx := context.Background()
	r.cache.Del(ctx, r.productCacheKey(id))
	if product != nil {
		r.cache.Del(ctx, r.productSKUCacheKey(product.SKU))
	}

	return nil
}

// List 获取商品列表（不缓存，参数组合太多）
func (r *CachedProductRepository) List(req *domain.ProductListRequest) ([]*domain.Product, int64, error) {
	return r.repo.List(req)
}

// GetByIDs 批量获取商品（部分缓存）
func (r *CachedProductRepository) GetByIDs(ids []int64) ([]*domain.Product, error) {
	ctx := context.Background()
	var cachedProducts []*domain.Product
	var missingIDs []int64

	for _, id := range ids {
		var product domain.Product
		if err := r.cache.Get(ctx, r.productCacheKey(id), &product); err == nil {
			cachedProducts = append(cachedProducts, &product)
		} else {
			missingIDs = append(missingIDs, id)
		}
	}

	if len(missingIDs) == 0 {
		return cachedProducts, nil
	}

	dbProducts, err := r.repo.GetByIDs(missingIDs)
	if err != nil {
		return nil, err
	}

	for _, product := range dbProducts {
		r.cache.Set(ctx, r.productCacheKey(product.ID), product, r.ttl)
	}

	return append(cachedProducts, dbProducts...), nil
}

// GetGoldRate 获取牌价（带缓存，牌价变动频率以小时计）
func (r *CachedProductRepository) GetGoldRate(brand string, purity domain.Purity) (*domain.GoldRate, error) {
	ctx := context.Background()
	cacheKey := r.goldRateCacheKey(brand, purity)

	var rate domain.GoldRate
	if err := r.cache.Get(ctx, cacheKey, &rate); err == nil {
		return &rate, nil
	}

	result, err := r.repo.GetGoldRate(brand, purity)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	r.cache.Set(ctx, cacheKey, result, r.ttl)

	return result, nil
}

// UpsertGoldRate 写入牌价（清除相关缓存）
func (r *CachedProductRepository) UpsertGoldRate(rate *domain.GoldRate) error {
	if err := r.repo.UpsertGoldRate(rate); err != nil {
		return err
	}

	r.cache.Del(context.Background(), r.goldRateCacheKey(rate.Brand, rate.Purity))
	return nil
}

// 缓存键生成方法
func (r *CachedProductRepository) productCacheKey(id int64) string {
	return fmt.Sprintf("product:id:%d", id)
}

func (r *CachedProductRepository) productSKUCacheKey(sku string) string {
	return fmt.Sprintf("product:sku:%s", sku)
}

func (r *CachedProductRepository) goldRateCacheKey(brand string, purity domain.Purity) string {
	return fmt.Sprintf("goldrate:%s:%s", brand, purity)
}
