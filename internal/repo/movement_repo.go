// Package repo 实现数据访问层，负责与数据库的交互。
package repo

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/Diouf7AH/jewellery-management-sub001/internal/domain"
)

var (
	// ErrDuplicateSaleLineMovement 表示该销售行已存在同类型流水条目（幂等键冲突）
	ErrDuplicateSaleLineMovement = errors.New("movement for this sale line already exists")
	// ErrMovementLocked 表示目标条目处于锁定状态，禁止修改
	ErrMovementLocked = errors.New("movement is locked")
	// ErrMovementNotFound 表示流水条目不存在
	ErrMovementNotFound = errors.New("movement not found")
)

// mysqlDuplicateEntry MySQL 唯一键冲突错误码
const mysqlDuplicateEntry = 1062

// isDuplicateEntry 判断是否为唯一键冲突
func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry
}

// MovementRepository 定义库存流水账数据访问接口。
// 流水是追加型账本：条目一经锁定不可修改，纠错通过解锁或追加反向条目完成。
type MovementRepository interface {
	Create(m *domain.Movement) error
	CreateInTx(tx *sql.Tx, m *domain.Movement) error
	GetByID(id int64) (*domain.Movement, error)
	GetBySaleLine(movementType domain.MovementType, saleLineID int64) (*domain.Movement, error)
	GetBySaleID(saleID int64) ([]*domain.Movement, error)
	GetBySaleIDInTx(tx *sql.Tx, saleID int64) ([]*domain.Movement, error)
	List(req *domain.MovementListRequest) ([]*domain.Movement, int64, error)
	BucketBalance(productID int64, bucket domain.Bucket, shopID *int64) (int64, error)
	BucketBalanceInTx(tx *sql.Tx, productID int64, bucket domain.Bucket, shopID *int64) (int64, error)

	// SetStockConsumedInTx 标记SALE_OUT条目的供应商库存扣减状态；
	// 该标志位不受条目锁定约束。
	SetStockConsumedInTx(tx *sql.Tx, id int64, consumed bool) error

	// 锁定控制：Update 仅对未锁定条目生效并重新上锁
	Unlock(id int64) error
	Update(m *domain.Movement) error
}

// movementRepo 实现MovementRepository接口
type movementRepo struct {
	db *sql.DB
}

// NewMovementRepository 创建流水账仓储实例
func NewMovementRepository(db *sql.DB) MovementRepository {
	return &movementRepo{db: db}
}

const movementColumns = `id, product_id, movement_type, quantity, unit_cost,
	src_bucket, src_shop_id, dst_bucket, dst_shop_id, reason,
	purchase_id, purchase_line_id, sale_id, sale_line_id, invoice_id, vendor_id,
	stock_consumed, is_locked, occurred_at, created_by, correlation_id, created_at`

// Create 追加一条流水条目
func (r *movementRepo) Create(m *domain.Movement) error {
	return r.create(r.db, m)
}

// CreateInTx 在事务内追加一条流水条目
func (r *movementRepo) CreateInTx(tx *sql.Tx, m *domain.Movement) error {
	return r.create(tx, m)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

func (r *movementRepo) create(q execer, m *domain.Movement) error {
	query := `
		INSERT INTO stock_movements (
			product_id, movement_type, quantity, unit_cost,
			src_bucket, src_shop_id, dst_bucket, dst_shop_id, reason,
			purchase_id, purchase_line_id, sale_id, sale_line_id, invoice_id, vendor_id,
			stock_consumed, is_locked, occurred_at, created_by, correlation_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := q.Exec(query,
		m.ProductID,
		m.Type,
		m.Quantity,
		m.UnitCost,
		m.SrcBucket,
		m.SrcShopID,
		m.DstBucket,
		m.DstShopID,
		m.Reason,
		m.PurchaseID,
		m.PurchaseLineID,
		m.SaleID,
		m.SaleLineID,
		m.InvoiceID,
		m.VendorID,
		m.StockConsumed,
		m.IsLocked,
		m.OccurredAt,
		m.CreatedBy,
		m.CorrelationID,
	)
	if err != nil {
		// (movement_type, sale_line_id) 唯一键冲突是销售出库/退货的幂等信号
		if isDuplicateEntry(err) {
			return ErrDuplicateSaleLineMovement
		}
		return fmt.Errorf("failed to create movement: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	m.ID = id
	return nil
}

// GetByID 根据ID获取流水条目
func (r *movementRepo) GetByID(id int64) (*domain.Movement, error) {
	query := fmt.Sprintf(`SELECT %s FROM stock_movements WHERE id = ?`, movementColumns)

	m, err := scanMovement(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get movement by id: %w", err)
	}
	return m, nil
}

// GetBySaleLine 根据销售行与类型获取流水条目，用于幂等检查与对账
func (r *movementRepo) GetBySaleLine(movementType domain.MovementType, saleLineID int64) (*domain.Movement, error) {
	query := fmt.Sprintf(`SELECT %s FROM stock_movements WHERE movement_type = ? AND sale_line_id = ?`, movementColumns)

	m, err := scanMovement(r.db.QueryRow(query, movementType, saleLineID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get movement by sale line: %w", err)
	}
	return m, nil
}

// GetBySaleID 获取销售单关联的全部流水条目
func (r *movementRepo) GetBySaleID(saleID int64) ([]*domain.Movement, error) {
	return r.getBySaleID(r.db, saleID)
}

// GetBySaleIDInTx 在事务内获取销售单关联的全部流水条目
func (r *movementRepo) GetBySaleIDInTx(tx *sql.Tx, saleID int64) ([]*domain.Movement, error) {
	return r.getBySaleID(tx, saleID)
}

func (r *movementRepo) getBySaleID(q execer, saleID int64) ([]*domain.Movement, error) {
	query := fmt.Sprintf(`SELECT %s FROM stock_movements WHERE sale_id = ? ORDER BY id`, movementColumns)

	rows, err := q.Query(query, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements by sale id: %w", err)
	}
	defer rows.Close()

	return scanMovements(rows)
}

// List 查询流水列表
func (r *movementRepo) List(req *domain.MovementListRequest) ([]*domain.Movement, int64, error) {
	where, args := r.buildListWhereClause(req)

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM stock_movements %s", where)
	var total int64
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count movements: %w", err)
	}

	sortOrder := "DESC"
	if req.SortOrder != nil && strings.ToUpper(*req.SortOrder) == "ASC" {
		sortOrder = "ASC"
	}

	limit := req.PageSize
	offset := (req.Page - 1) * req.PageSize

	query := fmt.Sprintf(`
		SELECT %s FROM stock_movements %s
		ORDER BY occurred_at %s, id %s
		LIMIT ? OFFSET ?
	`, movementColumns, where, sortOrder, sortOrder)

	args = append(args, limit, offset)
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	movements, err := scanMovements(rows)
	if err != nil {
		return nil, 0, err
	}
	return movements, total, nil
}

// BucketBalance 通过流水带符号求和重建某商品在某桶位的余额：
// 目标侧计 +quantity，源侧计 -quantity。
func (r *movementRepo) BucketBalance(productID int64, bucket domain.Bucket, shopID *int64) (int64, error) {
	return r.bucketBalance(r.db, productID, bucket, shopID)
}

// BucketBalanceInTx 在事务内重建桶位余额，供分配等编排在持锁状态下复核
func (r *movementRepo) BucketBalanceInTx(tx *sql.Tx, productID int64, bucket domain.Bucket, shopID *int64) (int64, error) {
	return r.bucketBalance(tx, productID, bucket, shopID)
}

func (r *movementRepo) bucketBalance(q execer, productID int64, bucket domain.Bucket, shopID *int64) (int64, error) {
	var conditionsIn, conditionsOut []string
	argsIn := []any{productID, bucket}
	argsOut := []any{productID, bucket}

	conditionsIn = append(conditionsIn, "product_id = ?", "dst_bucket = ?")
	conditionsOut = append(conditionsOut, "product_id = ?", "src_bucket = ?")
	if shopID != nil {
		conditionsIn = append(conditionsIn, "dst_shop_id = ?")
		argsIn = append(argsIn, *shopID)
		conditionsOut = append(conditionsOut, "src_shop_id = ?")
		argsOut = append(argsOut, *shopID)
	}

	query := fmt.Sprintf(`
		SELECT COALESCE((
			SELECT COALESCE(SUM(quantity), 0) FROM stock_movements WHERE %s
		) - (
			SELECT COALESCE(SUM(quantity), 0) FROM stock_movements WHERE %s
		), 0)
	`, strings.Join(conditionsIn, " AND "), strings.Join(conditionsOut, " AND "))

	var balance int64
	args := append(argsIn, argsOut...)
	if err := q.QueryRow(query, args...).Scan(&balance); err != nil {
		return 0, fmt.Errorf("failed to compute bucket balance: %w", err)
	}
	return balance, nil
}

// SetStockConsumedInTx 更新stock_consumed标志位
func (r *movementRepo) SetStockConsumedInTx(tx *sql.Tx, id int64, consumed bool) error {
	result, err := tx.Exec(`UPDATE stock_movements SET stock_consumed = ? WHERE id = ?`, consumed, id)
	if err != nil {
		return fmt.Errorf("failed to set stock consumed flag: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrMovementNotFound
	}
	return nil
}

// Unlock 解除条目锁定，仅管理员操作路径可达
func (r *movementRepo) Unlock(id int64) error {
	result, err := r.db.Exec(`UPDATE stock_movements SET is_locked = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to unlock movement: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrMovementNotFound
	}
	return nil
}

// Update 修改未锁定的条目并重新上锁。
// 条件更新保证已锁定的条目永远不会被改写。
func (r *movementRepo) Update(m *domain.Movement) error {
	query := `
		UPDATE stock_movements
		SET quantity = ?, unit_cost = ?, reason = ?, occurred_at = ?, is_locked = 1
		WHERE id = ? AND is_locked = 0
	`

	result, err := r.db.Exec(query, m.Quantity, m.UnitCost, m.Reason, m.OccurredAt, m.ID)
	if err != nil {
		return fmt.Errorf("failed to update movement: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrMovementLocked
	}

	m.IsLocked = true
	return nil
}

// buildListWhereClause 构建流水查询条件子句
func (r *movementRepo) buildListWhereClause(req *domain.MovementListRequest) (string, []any) {
	var conditions []string
	var args []any

	if req.ProductID != nil {
		conditions = append(conditions, "product_id = ?")
		args = append(args, *req.ProductID)
	}

	if req.Type != nil {
		conditions = append(conditions, "movement_type = ?")
		args = append(args, *req.Type)
	}

	if req.SaleID != nil {
		conditions = append(conditions, "sale_id = ?")
		args = append(args, *req.SaleID)
	}

	// 门店过滤同时匹配源侧和目标侧
	if req.ShopID != nil {
		conditions = append(conditions, "(src_shop_id = ? OR dst_shop_id = ?)")
		args = append(args, *req.ShopID, *req.ShopID)
	}

	if len(conditions) > 0 {
		return "WHERE " + strings.Join(conditions, " AND "), args
	}
	return "", args
}

// rowScanner 统一 *sql.Row 与 *sql.Rows 的扫描入口
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMovement(row rowScanner) (*domain.Movement, error) {
	m := &domain.Movement{}
	err := row.Scan(
		&m.ID,
		&m.ProductID,
		&m.Type,
		&m.Quantity,
		&m.UnitCost,
		&m.SrcBucket,
		&m.SrcShopID,
		&m.DstBucket,
		&m.DstShopID,
		&m.Reason,
		&m.PurchaseID,
		&m.PurchaseLineID,
		&m.SaleID,
		&m.SaleLineID,
		&m.InvoiceID,
		&m.VendorID,
		&m.StockConsumed,
		&m.IsLocked,
		&m.OccurredAt,
		&m.CreatedBy,
		&m.CorrelationID,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func scanMovements(rows *sql.Rows) ([]*domain.Movement, error) {
	var movements []*domain.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate movements: %w", err)
	}
	return movements, nil
}
