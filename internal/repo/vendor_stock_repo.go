package repo

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Diouf7AH/jewellery-management-sub001/internal/domain"
)

var (
	// ErrInsufficientVendorStock 表示可售数量不足以覆盖请求数量
	ErrInsufficientVendorStock = errors.New("insufficient vendor stock")
	// ErrNothingToRestore 表示已售数量不足以覆盖回补数量
	ErrNothingToRestore = errors.New("insufficient sold quantity to restore")
	// ErrVendorStockConflict 表示条件更新因并发修改而失效
	ErrVendorStockConflict = errors.New("vendor stock concurrently modified")
)

// VendorStockRepository 定义供应商库存台账数据访问接口。
// 计数器更新一律采用守卫条件的单语句UPDATE，杜绝读后写竞态。
type VendorStockRepository interface {
	Create(line *domain.VendorStockLine) error
	GetByID(id int64) (*domain.VendorStockLine, error)
	GetByVendorAndPurchaseLine(vendorID, purchaseLineID int64) (*domain.VendorStockLine, error)
	List(req *domain.VendorStockListRequest) ([]*domain.VendorStockLine, int64, error)
	AvailableQuantity(vendorID, productID int64) (int, error)

	// 事务内操作：创建、加锁、消耗、回补
	CreateInTx(tx *sql.Tx, line *domain.VendorStockLine) error
	AddAllocatedInTx(tx *sql.Tx, lineID int64, quantity int) error
	ConsumeInTx(tx *sql.Tx, vendorID, productID int64, quantity int) ([]domain.ConsumedLot, error)
	RestoreInTx(tx *sql.Tx, vendorID, productID int64, quantity int) ([]domain.ConsumedLot, error)
}

// vendorStockRepo 实现VendorStockRepository接口
type vendorStockRepo struct {
	db *sql.DB
}

// NewVendorStockRepository 创建供应商库存仓储实例
func NewVendorStockRepository(db *sql.DB) VendorStockRepository {
	return &vendorStockRepo{db: db}
}

const vendorStockColumns = `id, vendor_id, product_id, purchase_line_id, received_at, allocated, sold, created_at, updated_at`

// Create 创建台账行
func (r *vendorStockRepo) Create(line *domain.VendorStockLine) error {
	return r.create(r.db, line)
}

// CreateInTx 在事务内创建台账行，分配编排与ALLOCATE流水共用一个事务
func (r *vendorStockRepo) CreateInTx(tx *sql.Tx, line *domain.VendorStockLine) error {
	return r.create(tx, line)
}

func (r *vendorStockRepo) create(q execer, line *domain.VendorStockLine) error {
	query := `
		INSERT INTO vendor_stock (vendor_id, product_id, purchase_line_id, received_at, allocated, sold)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := q.Exec(query,
		line.VendorID,
		line.ProductID,
		line.PurchaseLineID,
		line.ReceivedAt,
		line.Allocated,
		line.Sold,
	)
	if err != nil {
		return fmt.Errorf("failed to create vendor stock line: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	line.ID = id
	return nil
}

// GetByID 根据ID获取台账行
func (r *vendorStockRepo) GetByID(id int64) (*domain.VendorStockLine, error) {
	query := fmt.Sprintf(`SELECT %s FROM vendor_stock WHERE id = ?`, vendorStockColumns)

	line, err := scanVendorStockLine(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vendor stock line by id: %w", err)
	}
	return line, nil
}

// GetByVendorAndPurchaseLine 根据供应商与采购行获取台账行
func (r *vendorStockRepo) GetByVendorAndPurchaseLine(vendorID, purchaseLineID int64) (*domain.VendorStockLine, error) {
	query := fmt.Sprintf(`SELECT %s FROM vendor_stock WHERE vendor_id = ? AND purchase_line_id = ?`, vendorStockColumns)

	line, err := scanVendorStockLine(r.db.QueryRow(query, vendorID, purchaseLineID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vendor stock line: %w", err)
	}
	return line, nil
}

// List 查询台账行列表
func (r *vendorStockRepo) List(req *domain.VendorStockListRequest) ([]*domain.VendorStockLine, int64, error) {
	var conditions []string
	var args []any

	if req.VendorID != nil {
		conditions = append(conditions, "vendor_id = ?")
		args = append(args, *req.VendorID)
	}
	if req.ProductID != nil {
		conditions = append(conditions, "product_id = ?")
		args = append(args, *req.ProductID)
	}
	if req.OnlyOpen {
		conditions = append(conditions, "allocated > sold")
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM vendor_stock %s", where)
	var total int64
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count vendor stock lines: %w", err)
	}

	limit := req.PageSize
	offset := (req.Page - 1) * req.PageSize

	query := fmt.Sprintf(`
		SELECT %s FROM vendor_stock %s
		ORDER BY received_at ASC, id ASC
		LIMIT ? OFFSET ?
	`, vendorStockColumns, where)

	args = append(args, limit, offset)
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query vendor stock lines: %w", err)
	}
	defer rows.Close()

	var lines []*domain.VendorStockLine
	for rows.Next() {
		line, err := scanVendorStockLine(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan vendor stock line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate vendor stock lines: %w", err)
	}

	return lines, total, nil
}

// AvailableQuantity 汇总某供应商某商品的可售数量
func (r *vendorStockRepo) AvailableQuantity(vendorID, productID int64) (int, error) {
	query := `
		SELECT COALESCE(SUM(allocated - sold), 0)
		FROM vendor_stock
		WHERE vendor_id = ? AND product_id = ?
	`

	var available int
	if err := r.db.QueryRow(query, vendorID, productID).Scan(&available); err != nil {
		return 0, fmt.Errorf("failed to sum available vendor stock: %w", err)
	}
	return available, nil
}

// AddAllocatedInTx 在事务内为台账行增加已分配数量
func (r *vendorStockRepo) AddAllocatedInTx(tx *sql.Tx, lineID int64, quantity int) error {
	result, err := tx.Exec(`UPDATE vendor_stock SET allocated = allocated + ? WHERE id = ?`, quantity, lineID)
	if err != nil {
		return fmt.Errorf("failed to add allocated quantity: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("vendor stock line %d not found", lineID)
	}
	return nil
}

// ConsumeInTx 在事务内按先进先出跨批次消耗可售数量。
// 候选行先用 FOR UPDATE 锁定，逐行用守卫条件 allocated >= sold + n 扣减；
// 守卫失效说明锁定快照后有并发修改，直接报冲突让整个事务回滚。
// 总可售不足时返回 ErrInsufficientVendorStock，不做部分扣减。
func (r *vendorStockRepo) ConsumeInTx(tx *sql.Tx, vendorID, productID int64, quantity int) ([]domain.ConsumedLot, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM vendor_stock
		WHERE vendor_id = ? AND product_id = ? AND allocated > sold
		ORDER BY received_at ASC, id ASC
		FOR UPDATE
	`, vendorStockColumns)

	lines, err := r.lockLines(tx, query, vendorID, productID)
	if err != nil {
		return nil, err
	}

	remaining := quantity
	var lots []domain.ConsumedLot
	for _, line := range lines {
		if remaining == 0 {
			break
		}

		take := line.Available()
		if take > remaining {
			take = remaining
		}

		if err := r.addSoldInTx(tx, line.ID, take); err != nil {
			return nil, err
		}

		lots = append(lots, domain.ConsumedLot{LineID: line.ID, QtyTaken: take})
		remaining -= take
	}

	if remaining > 0 {
		return nil, ErrInsufficientVendorStock
	}
	return lots, nil
}

// RestoreInTx 在事务内按后进先出跨批次回补已售数量（取消销售时调用）。
// 已售总量不足以覆盖回补数量时返回 ErrNothingToRestore。
func (r *vendorStockRepo) RestoreInTx(tx *sql.Tx, vendorID, productID int64, quantity int) ([]domain.ConsumedLot, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM vendor_stock
		WHERE vendor_id = ? AND product_id = ? AND sold > 0
		ORDER BY received_at DESC, id DESC
		FOR UPDATE
	`, vendorStockColumns)

	lines, err := r.lockLines(tx, query, vendorID, productID)
	if err != nil {
		return nil, err
	}

	remaining := quantity
	var lots []domain.ConsumedLot
	for _, line := range lines {
		if remaining == 0 {
			break
		}

		give := line.Sold
		if give > remaining {
			give = remaining
		}

		if err := r.subtractSoldInTx(tx, line.ID, give); err != nil {
			return nil, err
		}

		lots = append(lots, domain.ConsumedLot{LineID: line.ID, QtyTaken: give})
		remaining -= give
	}

	if remaining > 0 {
		return nil, ErrNothingToRestore
	}
	return lots, nil
}

// lockLines 锁定并读取候选台账行
func (r *vendorStockRepo) lockLines(tx *sql.Tx, query string, vendorID, productID int64) ([]*domain.VendorStockLine, error) {
	rows, err := tx.Query(query, vendorID, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock vendor stock lines: %w", err)
	}
	defer rows.Close()

	var lines []*domain.VendorStockLine
	for rows.Next() {
		line, err := scanVendorStockLine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vendor stock line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vendor stock lines: %w", err)
	}
	return lines, nil
}

// addSoldInTx 守卫条件扣减：sold 增加后仍不得超过 allocated
func (r *vendorStockRepo) addSoldInTx(tx *sql.Tx, lineID int64, quantity int) error {
	query := `
		UPDATE vendor_stock
		SET sold = sold + ?
		WHERE id = ? AND allocated >= sold + ?
	`

	result, err := tx.Exec(query, quantity, lineID, quantity)
	if err != nil {
		return fmt.Errorf("failed to consume vendor stock: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrVendorStockConflict
	}
	return nil
}

// subtractSoldInTx 守卫条件回补：sold 减少后仍不得为负
func (r *vendorStockRepo) subtractSoldInTx(tx *sql.Tx, lineID int64, quantity int) error {
	query := `
		UPDATE vendor_stock
		SET sold = sold - ?
		WHERE id = ? AND sold >= ?
	`

	result, err := tx.Exec(query, quantity, lineID, quantity)
	if err != nil {
		return fmt.Errorf("failed to restore vendor stock: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrVendorStockConflict
	}
	return nil
}

func scanVendorStockLine(row rowScanner) (*domain.VendorStockLine, error) {
	line := &domain.VendorStockLine{}
	err := row.Scan(
		&line.ID,
		&line.VendorID,
		&line.ProductID,
		&line.PurchaseLineID,
		&line.ReceivedAt,
		&line.Allocated,
		&line.Sold,
		&line.CreatedAt,
		&line.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return line, nil
}
