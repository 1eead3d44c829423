package repo

import (
	"database/sql"
	"fmt"

	"github.com/Diouf7AH/jewellery-management-sub001/internal/domain"
)

// VendorRepository 定义供应商数据访问接口
type VendorRepository interface {
	Create(vendor *domain.Vendor) error
	GetByID(id int64) (*domain.Vendor, error)
	List() ([]*domain.Vendor, error)
	Update(vendor *domain.Vendor) error
}

// vendorRepo 实现VendorRepository接口
type vendorRepo struct {
	db *sql.DB
}

// NewVendorRepository 创建供应商仓储实例
func NewVendorRepository(db *sql.DB) VendorRepository {
	return &vendorRepo{db: db}
}

// Create 创建供应商
func (r *vendorRepo) Create(vendor *domain.Vendor) error {
	query := `INSERT INTO vendors (code, name, phone, is_active) VALUES (?, ?, ?, ?)`

	result, err := r.db.Exec(query, vendor.Code, vendor.Name, vendor.Phone, vendor.IsActive)
	if err != nil {
		return fmt.Errorf("failed to create vendor: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	vendor.ID = id
	return nil
}

// GetByID 根据ID获取供应商
func (r *vendorRepo) GetByID(id int64) (*domain.Vendor, error) {
	query := `SELECT id, code, name, phone, is_active, created_at, updated_at FROM vendors WHERE id = ?`

	vendor := &domain.Vendor{}
	err := r.db.QueryRow(query, id).Scan(
		&vendor.ID,
		&vendor.Code,
		&vendor.Name,
		&vendor.Phone,
		&vendor.IsActive,
		&vendor.CreatedAt,
		&vendor.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vendor by id: %w", err)
	}
	return vendor, nil
}

// List 获取全部供应商
func (r *vendorRepo) List() ([]*domain.Vendor, error) {
	query := `SELECT id, code, name, phone, is_active, created_at, updated_at FROM vendors ORDER BY id`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query vendors: %w", err)
	}
	defer rows.Close()

	var vendors []*domain.Vendor
	for rows.Next() {
		vendor := &domain.Vendor{}
		err := rows.Scan(
			&vendor.ID,
			&vendor.Code,
			&vendor.Name,
			&vendor.Phone,
			&vendor.IsActive,
			&vendor.CreatedAt,
			&vendor.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vendor: %w", err)
		}
		vendors = append(vendors, vendor)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vendors: %w", err)
	}
	return vendors, nil
}

// Update 更新供应商
func (r *vendorRepo) Update(vendor *domain.Vendor) error {
	query := `UPDATE vendors SET code = ?, name = ?, phone = ?, is_active = ? WHERE id = ?`

	_, err := r.db.Exec(query, vendor.Code, vendor.Name, vendor.Phone, vendor.IsActive, vendor.ID)
	if err != nil {
		return fmt.Errorf("failed to update vendor: %w", err)
	}
	return nil
}
