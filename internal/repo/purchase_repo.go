package repo

import (
	"database/sql"
	"fmt"

	"github.com/Diouf7AH/jewellery-management-sub001/internal/domain"
)

// PurchaseRepository 定义采购单数据访问接口
type PurchaseRepository interface {
	Create(purchase *domain.Purchase) error
	CreateInTx(tx *sql.Tx, purchase *domain.Purchase) error
	GetByID(id int64) (*domain.Purchase, error)
	GetLineByID(lineID int64) (*domain.PurchaseLine, error)
	GetLineByIDForUpdateInTx(tx *sql.Tx, lineID int64) (*domain.PurchaseLine, error)
	List(page, pageSize int) ([]*domain.Purchase, int64, error)
}

// purchaseRepo 实现PurchaseRepository接口
type purchaseRepo struct {
	db *sql.DB
}

// NewPurchaseRepository 创建采购单仓储实例
func NewPurchaseRepository(db *sql.DB) PurchaseRepository {
	return &purchaseRepo{db: db}
}

// Create 在独立事务中创建采购单及其批次行
func (r *purchaseRepo) Create(purchase *domain.Purchase) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.CreateInTx(tx, purchase); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateInTx 在调用方事务中创建采购单及其批次行，
// 供编排服务把采购单与流水条目绑定在同一事务提交。
func (r *purchaseRepo) CreateInTx(tx *sql.Tx, purchase *domain.Purchase) error {
	result, err := tx.Exec(`
		INSERT INTO purchases (reference, supplier_id, created_by)
		VALUES (?, ?, ?)
	`, purchase.Reference, purchase.SupplierID, purchase.CreatedBy)
	if err != nil {
		return fmt.Errorf("failed to create purchase: %w", err)
	}

	purchaseID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	purchase.ID = purchaseID

	for _, line := range purchase.Lines {
		line.PurchaseID = purchaseID
		lineResult, err := tx.Exec(`
			INSERT INTO purchase_lines (purchase_id, product_id, quantity, unit_cost, received_at)
			VALUES (?, ?, ?, ?, ?)
		`, line.PurchaseID, line.ProductID, line.Quantity, line.UnitCost, line.ReceivedAt)
		if err != nil {
			return fmt.Errorf("failed to create purchase line: %w", err)
		}
		line.ID, err = lineResult.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
	}
	return nil
}

// GetByID 根据ID获取采购单及其批次行
func (r *purchaseRepo) GetByID(id int64) (*domain.Purchase, error) {
	purchase := &domain.Purchase{}
	err := r.db.QueryRow(`
		SELECT id, reference, supplier_id, created_by, created_at
		FROM purchases WHERE id = ?
	`, id).Scan(
		&purchase.ID,
		&purchase.Reference,
		&purchase.SupplierID,
		&purchase.CreatedBy,
		&purchase.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase by id: %w", err)
	}

	rows, err := r.db.Query(`
		SELECT id, purchase_id, product_id, quantity, unit_cost, received_at, created_at
		FROM purchase_lines WHERE purchase_id = ? ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchase lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		line := &domain.PurchaseLine{}
		err := rows.Scan(
			&line.ID,
			&line.PurchaseID,
			&line.ProductID,
			&line.Quantity,
			&line.UnitCost,
			&line.ReceivedAt,
			&line.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purchase line: %w", err)
		}
		purchase.Lines = append(purchase.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate purchase lines: %w", err)
	}

	return purchase, nil
}

// GetLineByID 根据ID获取单个采购批次行
func (r *purchaseRepo) GetLineByID(lineID int64) (*domain.PurchaseLine, error) {
	row := r.db.QueryRow(`
		SELECT id, purchase_id, product_id, quantity, unit_cost, received_at, created_at
		FROM purchase_lines WHERE id = ?
	`, lineID)
	return scanPurchaseLine(row)
}

// GetLineByIDForUpdateInTx 行锁获取采购批次行，
// 并发分配以该行锁串行化，余额复核在持锁后进行。
func (r *purchaseRepo) GetLineByIDForUpdateInTx(tx *sql.Tx, lineID int64) (*domain.PurchaseLine, error) {
	row := tx.QueryRow(`
		SELECT id, purchase_id, product_id, quantity, unit_cost, received_at, created_at
		FROM purchase_lines WHERE id = ? FOR UPDATE
	`, lineID)
	return scanPurchaseLine(row)
}

func scanPurchaseLine(row *sql.Row) (*domain.PurchaseLine, error) {
	line := &domain.PurchaseLine{}
	err := row.Scan(
		&line.ID,
		&line.PurchaseID,
		&line.ProductID,
		&line.Quantity,
		&line.UnitCost,
		&line.ReceivedAt,
		&line.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase line by id: %w", err)
	}
	return line, nil
}

// List 分页查询采购单（不含批次行）
func (r *purchaseRepo) List(page, pageSize int) ([]*domain.Purchase, int64, error) {
	var total int64
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM purchases`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count purchases: %w", err)
	}

	rows, err := r.db.Query(`
		SELECT id, reference, supplier_id, created_by, created_at
		FROM purchases ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query purchases: %w", err)
	}
	defer rows.Close()

	var purchases []*domain.Purchase
	for rows.Next() {
		purchase := &domain.Purchase{}
		err := rows.Scan(
			&purchase.ID,
			&purchase.Reference,
			&purchase.SupplierID,
			&purchase.CreatedBy,
			&purchase.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan purchase: %w", err)
		}
		purchases = append(purchases, purchase)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate purchases: %w", err)
	}

	return purchases, total, nil
}
