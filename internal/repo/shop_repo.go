package repo

import (
	"database/sql"
	"fmt"

	"github.com/Diouf7AH/jewellery-management-sub001/internal/domain"
)

// ShopRepository 定义门店数据访问接口
type ShopRepository interface {
	Create(shop *domain.Shop) error
	GetByID(id int64) (*domain.Shop, error)
	List() ([]*domain.Shop, error)
	Update(shop *domain.Shop) error
}

// shopRepo 实现ShopRepository接口
type shopRepo struct {
	db *sql.DB
}

// NewShopRepository 创建门店仓储实例
func NewShopRepository(db *sql.DB) ShopRepository {
	return &shopRepo{db: db}
}

// Create 创建门店
func (r *shopRepo) Create(shop *domain.Shop) error {
	query := `INSERT INTO shops (code, name, address, is_active) VALUES (?, ?, ?, ?)`

	result, err := r.db.Exec(query, shop.Code, shop.Name, shop.Address, shop.IsActive)
	if err != nil {
		return fmt.Errorf("failed to create shop: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	shop.ID = id
	return nil
}

// GetByID 根据ID获取门店
func (r *shopRepo) GetByID(id int64) (*domain.Shop, error) {
	query := `SELECT id, code, name, address, is_active, created_at, updated_at FROM shops WHERE id = ?`

	shop := &domain.Shop{}
	err := r.db.QueryRow(query, id).Scan(
		&shop.ID,
		&shop.Code,
		&shop.Name,
		&shop.Address,
		&shop.IsActive,
		&shop.CreatedAt,
		&shop.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shop by id: %w", err)
	}
	return shop, nil
}

// List 获取全部门店
func (r *shopRepo) List() ([]*domain.Shop, error) {
	query := `SELECT id, code, name, address, is_active, created_at, updated_at FROM shops ORDER BY id`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query shops: %w", err)
	}
	defer rows.Close()

	var shops []*domain.Shop
	for rows.Next() {
		shop := &domain.Shop{}
		err := rows.Scan(
			&shop.ID,
			&shop.Code,
			&shop.Name,
			&shop.Address,
			&shop.IsActive,
			&shop.CreatedAt,
			&shop.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shop: %w", err)
		}
		shops = append(shops, shop)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shops: %w", err)
	}
	return shops, nil
}

// Update 更新门店
func (r *shopRepo) Update(shop *domain.Shop) error {
	query := `UPDATE shops SET code = ?, name = ?, address = ?, is_active = ? WHERE id = ?`

	_, err := r.db.Exec(query, shop.Code, shop.Name, shop.Address, shop.IsActive, shop.ID)
	if err != nil {
		return fmt.Errorf("failed to update shop: %w", err)
	}
	return nil
}
