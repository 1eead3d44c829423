package repo

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Diouf7AH/jewellery-management-sub001/internal/domain"
)

var (
	// ErrSaleNotFound 表示销售单不存在
	ErrSaleNotFound = errors.New("sale not found")
	// ErrSaleStateConflict 表示状态变更的守卫条件失效
	ErrSaleStateConflict = errors.New("sale state conflict")
)

// SaleRepository 定义销售单数据访问接口
type SaleRepository interface {
	Create(sale *domain.Sale) error
	GetByID(id int64) (*domain.Sale, error)
	GetByIDForUpdateInTx(tx *sql.Tx, id int64) (*domain.Sale, error)
	GetLines(saleID int64) ([]*domain.SaleLine, error)
	GetLinesInTx(tx *sql.Tx, saleID int64) ([]*domain.SaleLine, error)
	List(req *domain.SaleListRequest) ([]*domain.Sale, int64, error)

	GetInvoiceBySaleID(saleID int64) (*domain.Invoice, error)
	GetInvoiceBySaleIDInTx(tx *sql.Tx, saleID int64) (*domain.Invoice, error)
	CreateInvoice(invoice *domain.Invoice) error

	MarkDeliveredInTx(tx *sql.Tx, saleID int64, deliveredAt time.Time) error
	MarkCancelledInTx(tx *sql.Tx, saleID int64, cancelledAt time.Time) error
	CancelInvoiceInTx(tx *sql.Tx, invoiceID int64, cancelledAt time.Time) error
}

// saleRepo 实现SaleRepository接口
type saleRepo struct {
	db *sql.DB
}

// NewSaleRepository 创建销售单仓储实例
func NewSaleRepository(db *sql.DB) SaleRepository {
	return &saleRepo{db: db}
}

const saleColumns = `id, number, client_id, invoice_id, status, delivered_at, cancelled_at, created_by, created_at, updated_at`

const saleLineColumns = `id, sale_id, product_id, vendor_id, quantity, unit_price, amount, unit_cost, created_at`

// Create 创建销售单及其行，单条事务保证整体写入
func (r *saleRepo) Create(sale *domain.Sale) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		INSERT INTO sales (number, client_id, status, created_by)
		VALUES (?, ?, ?, ?)
	`, sale.Number, sale.ClientID, sale.Status, sale.CreatedBy)
	if err != nil {
		return fmt.Errorf("failed to create sale: %w", err)
	}

	saleID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	sale.ID = saleID

	for _, line := range sale.Lines {
		line.SaleID = saleID
		lineResult, err := tx.Exec(`
			INSERT INTO sale_lines (sale_id, product_id, vendor_id, quantity, unit_price, amount, unit_cost)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, line.SaleID, line.ProductID, line.VendorID, line.Quantity, line.UnitPrice, line.Amount, line.UnitCost)
		if err != nil {
			return fmt.Errorf("failed to create sale line: %w", err)
		}
		line.ID, err = lineResult.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetByID 根据ID获取销售单（不含行）
func (r *saleRepo) GetByID(id int64) (*domain.Sale, error) {
	query := fmt.Sprintf(`SELECT %s FROM sales WHERE id = ?`, saleColumns)

	sale, err := scanSale(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sale by id: %w", err)
	}
	return sale, nil
}

// GetByIDForUpdateInTx 在事务内加行级锁获取销售单。
// 出库与取消编排以此锁串行化针对同一销售单的并发调用。
func (r *saleRepo) GetByIDForUpdateInTx(tx *sql.Tx, id int64) (*domain.Sale, error) {
	query := fmt.Sprintf(`SELECT %s FROM sales WHERE id = ? FOR UPDATE`, saleColumns)

	sale, err := scanSale(tx.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, ErrSaleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock sale: %w", err)
	}
	return sale, nil
}

// GetLines 获取销售单全部行
func (r *saleRepo) GetLines(saleID int64) ([]*domain.SaleLine, error) {
	return r.getLines(r.db, saleID)
}

// GetLinesInTx 在事务内获取销售单全部行
func (r *saleRepo) GetLinesInTx(tx *sql.Tx, saleID int64) ([]*domain.SaleLine, error) {
	return r.getLines(tx, saleID)
}

func (r *saleRepo) getLines(q execer, saleID int64) ([]*domain.SaleLine, error) {
	query := fmt.Sprintf(`SELECT %s FROM sale_lines WHERE sale_id = ? ORDER BY id`, saleLineColumns)

	rows, err := q.Query(query, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sale lines: %w", err)
	}
	defer rows.Close()

	var lines []*domain.SaleLine
	for rows.Next() {
		line := &domain.SaleLine{}
		err := rows.Scan(
			&line.ID,
			&line.SaleID,
			&line.ProductID,
			&line.VendorID,
			&line.Quantity,
			&line.UnitPrice,
			&line.Amount,
			&line.UnitCost,
			&line.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sale line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sale lines: %w", err)
	}
	return lines, nil
}

// List 查询销售单列表
func (r *saleRepo) List(req *domain.SaleListRequest) ([]*domain.Sale, int64, error) {
	var conditions []string
	var args []any

	if req.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *req.Status)
	}
	if req.ClientID != nil {
		conditions = append(conditions, "client_id = ?")
		args = append(args, *req.ClientID)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM sales %s", where)
	var total int64
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count sales: %w", err)
	}

	sortOrder := "DESC"
	if req.SortOrder != nil && strings.ToUpper(*req.SortOrder) == "ASC" {
		sortOrder = "ASC"
	}

	limit := req.PageSize
	offset := (req.Page - 1) * req.PageSize

	query := fmt.Sprintf(`
		SELECT %s FROM sales %s
		ORDER BY created_at %s, id %s
		LIMIT ? OFFSET ?
	`, saleColumns, where, sortOrder, sortOrder)

	args = append(args, limit, offset)
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	var sales []*domain.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan sale: %w", err)
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate sales: %w", err)
	}

	return sales, total, nil
}

const invoiceColumns = `id, number, sale_id, shop_id, total_amount, cancelled_at, created_at`

// GetInvoiceBySaleID 获取销售单关联发票
func (r *saleRepo) GetInvoiceBySaleID(saleID int64) (*domain.Invoice, error) {
	return r.getInvoiceBySaleID(r.db, saleID)
}

// GetInvoiceBySaleIDInTx 在事务内获取销售单关联发票
func (r *saleRepo) GetInvoiceBySaleIDInTx(tx *sql.Tx, saleID int64) (*domain.Invoice, error) {
	return r.getInvoiceBySaleID(tx, saleID)
}

func (r *saleRepo) getInvoiceBySaleID(q execer, saleID int64) (*domain.Invoice, error) {
	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE sale_id = ?`, invoiceColumns)

	invoice := &domain.Invoice{}
	err := q.QueryRow(query, saleID).Scan(
		&invoice.ID,
		&invoice.Number,
		&invoice.SaleID,
		&invoice.ShopID,
		&invoice.TotalAmount,
		&invoice.CancelledAt,
		&invoice.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice by sale id: %w", err)
	}
	return invoice, nil
}

// CreateInvoice 创建发票并回填销售单的发票关联
func (r *saleRepo) CreateInvoice(invoice *domain.Invoice) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		INSERT INTO invoices (number, sale_id, shop_id, total_amount)
		VALUES (?, ?, ?, ?)
	`, invoice.Number, invoice.SaleID, invoice.ShopID, invoice.TotalAmount)
	if err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	invoiceID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	invoice.ID = invoiceID

	if _, err := tx.Exec(`UPDATE sales SET invoice_id = ? WHERE id = ?`, invoiceID, invoice.SaleID); err != nil {
		return fmt.Errorf("failed to link invoice to sale: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// MarkDeliveredInTx 在事务内把销售单置为已交付。
// 守卫条件排除已取消或已交付的单据。
func (r *saleRepo) MarkDeliveredInTx(tx *sql.Tx, saleID int64, deliveredAt time.Time) error {
	query := `
		UPDATE sales
		SET status = ?, delivered_at = ?
		WHERE id = ? AND status = ? AND cancelled_at IS NULL
	`

	result, err := tx.Exec(query, domain.SaleStatusDelivered, deliveredAt, saleID, domain.SaleStatusConfirmed)
	if err != nil {
		return fmt.Errorf("failed to mark sale delivered: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrSaleStateConflict
	}
	return nil
}

// MarkCancelledInTx 在事务内把销售单置为已取消
func (r *saleRepo) MarkCancelledInTx(tx *sql.Tx, saleID int64, cancelledAt time.Time) error {
	query := `
		UPDATE sales
		SET status = ?, cancelled_at = ?
		WHERE id = ? AND cancelled_at IS NULL
	`

	result, err := tx.Exec(query, domain.SaleStatusCancelled, cancelledAt, saleID)
	if err != nil {
		return fmt.Errorf("failed to mark sale cancelled: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrSaleStateConflict
	}
	return nil
}

// CancelInvoiceInTx 在事务内作废发票
func (r *saleRepo) CancelInvoiceInTx(tx *sql.Tx, invoiceID int64, cancelledAt time.Time) error {
	query := `UPDATE invoices SET cancelled_at = ? WHERE id = ? AND cancelled_at IS NULL`

	if _, err := tx.Exec(query, cancelledAt, invoiceID); err != nil {
		return fmt.Errorf("failed to cancel invoice: %w", err)
	}
	return nil
}

func scanSale(row rowScanner) (*domain.Sale, error) {
	sale := &domain.Sale{}
	err := row.Scan(
		&sale.ID,
		&sale.Number,
		&sale.ClientID,
		&sale.InvoiceID,
		&sale.Status,
		&sale.DeliveredAt,
		&sale.CancelledAt,
		&sale.CreatedBy,
		&sale.CreatedAt,
		&sale.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return sale, nil
}
