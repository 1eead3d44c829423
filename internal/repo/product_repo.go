package repo

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/Diouf7AH/jewellery-management-sub001/internal/domain"
)

// ProductRepository 定义商品数据访问接口
type ProductRepository interface {
	// 基本CRUD操作
	Create(product *domain.Product) error
	GetByID(id int64) (*domain.Product, error)
	GetBySKU(sku string) (*domain.Product, error)
	Update(product *domain.Product) error
	Delete(id int64) error

	// 查询操作
	List(req *domain.ProductListRequest) ([]*domain.Product, int64, error)
	GetByIDs(ids []int64) ([]*domain.Product, error)

	// 金价牌价
	GetGoldRate(brand string, purity domain.Purity) (*domain.GoldRate, error)
	UpsertGoldRate(rate *domain.GoldRate) error
}

// productRepo 实现ProductRepository接口
type productRepo struct {
	db *sql.DB
}

// NewProductRepository 创建商品仓储实例
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepo{db: db}
}

const productColumns = `id, name, description, sku, brand, purity, weight_grams, status, image_url, created_at, updated_at`

// Create 创建商品
func (r *productRepo) Create(product *domain.Product) error {
	query := `
		INSERT INTO products (name, description, sku, brand, purity, weight_grams, status, image_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Exec(query,
		product.Name,
		product.Description,
		product.SKU,
		product.Brand,
		product.Purity,
		product.WeightGrams,
		product.Status,
		product.ImageURL,
	)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	product.ID = id
	return nil
}

// GetByID 根据ID获取商品
func (r *productRepo) GetByID(id int64) (*domain.Product, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM products
		WHERE id = ? AND status != 'deleted'
	`, productColumns)

	product, err := scanProduct(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product by id: %w", err)
	}
	return product, nil
}

// GetBySKU 根据SKU获取商品
func (r *productRepo) GetBySKU(sku string) (*domain.Product, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM products
		WHERE sku = ? AND status != 'deleted'
	`, productColumns)

	product, err := scanProduct(r.db.QueryRow(query, sku))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product by sku: %w", err)
	}
	return product, nil
}

// Update 更新商品
func (r *productRepo) Update(product *domain.Product) error {
	query := `
		UPDATE products
		SET name = ?, description = ?, brand = ?, purity = ?, weight_grams = ?, status = ?, image_url = ?
		WHERE id = ?
	`

	_, err := r.db.Exec(query,
		product.Name,
		product.Description,
		product.Brand,
		product.Purity,
		product.WeightGrams,
		product.Status,
		product.ImageURL,
		product.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	return nil
}

// Delete 软删除商品
func (r *productRepo) Delete(id int64) error {
	query := `UPDATE products SET status = 'deleted' WHERE id = ?`

	_, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

// List 获取商品列表
func (r *productRepo) List(req *domain.ProductListRequest) ([]*domain.Product, int64, error) {
	where, args := r.buildListWhereClause(req)

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM products %s", where)
	var total int64
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	orderBy := r.buildOrderClause(req)
	limit := req.PageSize
	offset := (req.Page - 1) * req.PageSize

	query := fmt.Sprintf(`
		SELECT %s FROM products %s %s LIMIT ? OFFSET ?
	`, productColumns, where, orderBy)

	args = append(args, limit, offset)
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate products: %w", err)
	}

	return products, total, nil
}

// GetByIDs 根据ID列表批量获取商品
func (r *productRepo) GetByIDs(ids []int64) ([]*domain.Product, error) {
	if len(ids) == 0 {
		return []*domain.Product{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	query := fmt.Sprintf(`
		SELECT %s FROM products
		WHERE id IN (%s) AND status != 'deleted'
		ORDER BY id
	`, productColumns, placeholders)

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products by ids: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}

	return products, nil
}

// GetGoldRate 获取 (品牌, 纯度) 的克单价牌价
func (r *productRepo) GetGoldRate(brand string, purity domain.Purity) (*domain.GoldRate, error) {
	query := `
		SELECT id, brand, purity, price_per_gram, updated_by, updated_at
		FROM gold_rates
		WHERE brand = ? AND purity = ?
	`

	rate := &domain.GoldRate{}
	err := r.db.QueryRow(query, brand, purity).Scan(
		&rate.ID,
		&rate.Brand,
		&rate.Purity,
		&rate.PricePerGram,
		&rate.UpdatedBy,
		&rate.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get gold rate: %w", err)
	}
	return rate, nil
}

// UpsertGoldRate 写入或更新牌价，以 (品牌, 纯度) 唯一键去重
func (r *productRepo) UpsertGoldRate(rate *domain.GoldRate) error {
	query := `
		INSERT INTO gold_rates (brand, purity, price_per_gram, updated_by)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE price_per_gram = VALUES(price_per_gram), updated_by = VALUES(updated_by)
	`

	if _, err := r.db.Exec(query, rate.Brand, rate.Purity, rate.PricePerGram, rate.UpdatedBy); err != nil {
		return fmt.Errorf("failed to upsert gold rate: %w", err)
	}
	return nil
}

// buildListWhereClause 构建查询条件子句
func (r *productRepo) buildListWhereClause(req *domain.ProductListRequest) (string, []any) {
	var conditions []string
	var args []any

	// 默认排除已删除的商品
	conditions = append(conditions, "status != 'deleted'")

	if req.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *req.Status)
	}

	if req.Brand != nil && *req.Brand != "" {
		conditions = append(conditions, "brand = ?")
		args = append(args, *req.Brand)
	}

	if req.Purity != nil && *req.Purity != "" {
		conditions = append(conditions, "purity = ?")
		args = append(args, *req.Purity)
	}

	if req.Keyword != nil && *req.Keyword != "" {
		conditions = append(conditions, "(name LIKE ? OR description LIKE ? OR sku LIKE ?)")
		keyword := "%" + *req.Keyword + "%"
		args = append(args, keyword, keyword, keyword)
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

// buildOrderClause 构建排序子句
func (r *productRepo) buildOrderClause(req *domain.ProductListRequest) string {
	sortBy := "created_at"
	sortOrder := "DESC"

	if req.SortBy != nil {
		switch *req.SortBy {
		case "weight_grams", "created_at", "name", "updated_at":
			sortBy = *req.SortBy
		}
	}

	if req.SortOrder != nil {
		if strings.ToUpper(*req.SortOrder) == "ASC" {
			sortOrder = "ASC"
		}
	}

	return fmt.Sprintf("ORDER BY %s %s", sortBy, sortOrder)
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	product := &domain.Product{}
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.SKU,
		&product.Brand,
		&product.Purity,
		&product.WeightGrams,
		&product.Status,
		&product.ImageURL,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return product, nil
}
