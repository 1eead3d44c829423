package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/Diouf7AH/jewellery-management-sub001/internal/domain"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/repo"
)

// snapshotter 让事务运行器在回调失败时恢复各仓储的状态，
// 模拟数据库回滚语义。
type snapshotter interface {
	snapshot() any
	restore(state any)
}

// mockTxRunner 串行执行事务回调；互斥锁粗粒度模拟行锁串行化
type mockTxRunner struct {
	mu     sync.Mutex
	stores []snapshotter
}

func newMockTxRunner(stores ...snapshotter) *mockTxRunner {
	return &mockTxRunner{stores: stores}
}

func (r *mockTxRunner) WithinTx(_ context.Context, fn func(tx *sql.Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	states := make([]any, len(r.stores))
	for i, s := range r.stores {
		states[i] = s.snapshot()
	}

	if err := fn(nil); err != nil {
		for i, s := range r.stores {
			s.restore(states[i])
		}
		return err
	}
	return nil
}

// ---- movement repo ----

type mockMovementRepo struct {
	mu        sync.Mutex
	nextID    int64
	movements []*domain.Movement
}

func newMockMovementRepo() *mockMovementRepo {
	return &mockMovementRepo{nextID: 1}
}

func (m *mockMovementRepo) snapshot() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]*domain.Movement, len(m.movements))
	for i, mv := range m.movements {
		c := *mv
		cp[i] = &c
	}
	return struct {
		nextID    int64
		movements []*domain.Movement
	}{m.nextID, cp}
}

func (m *mockMovementRepo) restore(state any) {
	s := state.(struct {
		nextID    int64
		movements []*domain.Movement
	})
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID = s.nextID
	m.movements = s.movements
}

func (m *mockMovementRepo) Create(mv *domain.Movement) error {
	return m.CreateInTx(nil, mv)
}

func (m *mockMovementRepo) CreateInTx(_ *sql.Tx, mv *domain.Movement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mv.SaleLineID != nil {
		for _, existing := range m.movements {
			if existing.Type == mv.Type && existing.SaleLineID != nil && *existing.SaleLineID == *mv.SaleLineID {
				return repo.ErrDuplicateSaleLineMovement
			}
		}
	}

	c := *mv
	c.ID = m.nextID
	c.CreatedAt = time.Now()
	m.nextID++
	m.movements = append(m.movements, &c)
	mv.ID = c.ID
	return nil
}

func (m *mockMovementRepo) GetByID(id int64) (*domain.Movement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mv := range m.movements {
		if mv.ID == id {
			c := *mv
			return &c, nil
		}
	}
	return nil, nil
}

func (m *mockMovementRepo) GetBySaleLine(movementType domain.MovementType, saleLineID int64) (*domain.Movement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mv := range m.movements {
		if mv.Type == movementType && mv.SaleLineID != nil && *mv.SaleLineID == saleLineID {
			c := *mv
			return &c, nil
		}
	}
	return nil, nil
}

func (m *mockMovementRepo) GetBySaleID(saleID int64) ([]*domain.Movement, error) {
	return m.GetBySaleIDInTx(nil, saleID)
}

func (m *mockMovementRepo) GetBySaleIDInTx(_ *sql.Tx, saleID int64) ([]*domain.Movement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Movement
	for _, mv := range m.movements {
		if mv.SaleID != nil && *mv.SaleID == saleID {
			c := *mv
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *mockMovementRepo) List(req *domain.MovementListRequest) ([]*domain.Movement, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Movement
	for _, mv := range m.movements {
		if req.ProductID != nil && mv.ProductID != *req.ProductID {
			continue
		}
		if req.Type != nil && mv.Type != *req.Type {
			continue
		}
		c := *mv
		out = append(out, &c)
	}
	return out, int64(len(out)), nil
}

func (m *mockMovementRepo) BucketBalanceInTx(_ *sql.Tx, productID int64, bucket domain.Bucket, shopID *int64) (int64, error) {
	return m.BucketBalance(productID, bucket, shopID)
}

func (m *mockMovementRepo) BucketBalance(productID int64, bucket domain.Bucket, shopID *int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, mv := range m.movements {
		if mv.ProductID != productID {
			continue
		}
		total += int64(mv.SignedQuantityFor(bucket, shopID))
	}
	return total, nil
}

func (m *mockMovementRepo) SetStockConsumedInTx(_ *sql.Tx, id int64, consumed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mv := range m.movements {
		if mv.ID == id {
			mv.StockConsumed = consumed
			return nil
		}
	}
	return repo.ErrMovementNotFound
}

func (m *mockMovementRepo) Unlock(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mv := range m.movements {
		if mv.ID == id {
			mv.IsLocked = false
			return nil
		}
	}
	return repo.ErrMovementNotFound
}

func (m *mockMovementRepo) Update(updated *domain.Movement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, mv := range m.movements {
		if mv.ID == updated.ID {
			if mv.IsLocked {
				return repo.ErrMovementLocked
			}
			c := *updated
			c.IsLocked = true
			m.movements[i] = &c
			return nil
		}
	}
	return repo.ErrMovementNotFound
}

func (m *mockMovementRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.movements)
}

// ---- vendor stock repo ----

type mockVendorStockRepo struct {
	mu     sync.Mutex
	nextID int64
	lines  []*domain.VendorStockLine
}

func newMockVendorStockRepo() *mockVendorStockRepo {
	return &mockVendorStockRepo{nextID: 1}
}

func (m *mockVendorStockRepo) snapshot() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]*domain.VendorStockLine, len(m.lines))
	for i, l := range m.lines {
		c := *l
		cp[i] = &c
	}
	return struct {
		nextID int64
		lines  []*domain.VendorStockLine
	}{m.nextID, cp}
}

func (m *mockVendorStockRepo) restore(state any) {
	s := state.(struct {
		nextID int64
		lines  []*domain.VendorStockLine
	})
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID = s.nextID
	m.lines = s.lines
}

func (m *mockVendorStockRepo) Create(line *domain.VendorStockLine) error {
	return m.CreateInTx(nil, line)
}

func (m *mockVendorStockRepo) CreateInTx(_ *sql.Tx, line *domain.VendorStockLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *line
	c.ID = m.nextID
	m.nextID++
	m.lines = append(m.lines, &c)
	line.ID = c.ID
	return nil
}

func (m *mockVendorStockRepo) GetByID(id int64) (*domain.VendorStockLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.lines {
		if l.ID == id {
			c := *l
			return &c, nil
		}
	}
	return nil, nil
}

func (m *mockVendorStockRepo) GetByVendorAndPurchaseLine(vendorID, purchaseLineID int64) (*domain.VendorStockLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.lines {
		if l.VendorID == vendorID && l.PurchaseLineID == purchaseLineID {
			c := *l
			return &c, nil
		}
	}
	return nil, nil
}

func (m *mockVendorStockRepo) List(req *domain.VendorStockListRequest) ([]*domain.VendorStockLine, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.VendorStockLine
	for _, l := range m.lines {
		if req.VendorID != nil && l.VendorID != *req.VendorID {
			continue
		}
		if req.ProductID != nil && l.ProductID != *req.ProductID {
			continue
		}
		if req.OnlyOpen && l.Available() <= 0 {
			continue
		}
		c := *l
		out = append(out, &c)
	}
	return out, int64(len(out)), nil
}

func (m *mockVendorStockRepo) AvailableQuantity(vendorID, productID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, l := range m.lines {
		if l.VendorID == vendorID && l.ProductID == productID {
			total += l.Available()
		}
	}
	return total, nil
}

func (m *mockVendorStockRepo) AddAllocatedInTx(_ *sql.Tx, lineID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.lines {
		if l.ID == lineID {
			l.Allocated += quantity
			return nil
		}
	}
	return repo.ErrVendorStockConflict
}

// ConsumeInTx 按到货时间FIFO逐行扣减，guard失败或总量不足时返回对应错误
func (m *mockVendorStockRepo) ConsumeInTx(_ *sql.Tx, vendorID, productID int64, quantity int) ([]domain.ConsumedLot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lines := m.sortedLines(vendorID, productID, false)
	var lots []domain.ConsumedLot
	remaining := quantity
	for _, l := range lines {
		if remaining == 0 {
			break
		}
		take := l.Available()
		if take <= 0 {
			continue
		}
		if take > remaining {
			take = remaining
		}
		if l.Allocated < l.Sold+take {
			return nil, repo.ErrVendorStockConflict
		}
		l.Sold += take
		remaining -= take
		lots = append(lots, domain.ConsumedLot{LineID: l.ID, QtyTaken: take})
	}
	if remaining > 0 {
		return nil, repo.ErrInsufficientVendorStock
	}
	return lots, nil
}

// RestoreInTx 按到货时间LIFO逐行回补
func (m *mockVendorStockRepo) RestoreInTx(_ *sql.Tx, vendorID, productID int64, quantity int) ([]domain.ConsumedLot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lines := m.sortedLines(vendorID, productID, true)
	var lots []domain.ConsumedLot
	remaining := quantity
	for _, l := range lines {
		if remaining == 0 {
			break
		}
		give := l.Sold
		if give <= 0 {
			continue
		}
		if give > remaining {
			give = remaining
		}
		l.Sold -= give
		remaining -= give
		lots = append(lots, domain.ConsumedLot{LineID: l.ID, QtyTaken: give})
	}
	if remaining > 0 {
		return nil, repo.ErrNothingToRestore
	}
	return lots, nil
}

func (m *mockVendorStockRepo) sortedLines(vendorID, productID int64, newestFirst bool) []*domain.VendorStockLine {
	var lines []*domain.VendorStockLine
	for _, l := range m.lines {
		if l.VendorID == vendorID && l.ProductID == productID {
			lines = append(lines, l)
		}
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].ReceivedAt.Equal(lines[j].ReceivedAt) {
			if newestFirst {
				return lines[i].ID > lines[j].ID
			}
			return lines[i].ID < lines[j].ID
		}
		if newestFirst {
			return lines[i].ReceivedAt.After(lines[j].ReceivedAt)
		}
		return lines[i].ReceivedAt.Before(lines[j].ReceivedAt)
	})
	return lines
}

func (m *mockVendorStockRepo) setSold(lineID int64, sold int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.lines {
		if l.ID == lineID {
			l.Sold = sold
			return
		}
	}
}

func (m *mockVendorStockRepo) soldOf(lineID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.lines {
		if l.ID == lineID {
			return l.Sold
		}
	}
	return -1
}

// ---- sale repo ----

type mockSaleRepo struct {
	mu       sync.Mutex
	nextID   int64
	sales    map[int64]*domain.Sale
	lines    map[int64][]*domain.SaleLine
	invoices map[int64]*domain.Invoice // keyed by sale id
}

func newMockSaleRepo() *mockSaleRepo {
	return &mockSaleRepo{
		nextID:   1,
		sales:    make(map[int64]*domain.Sale),
		lines:    make(map[int64][]*domain.SaleLine),
		invoices: make(map[int64]*domain.Invoice),
	}
}

func (m *mockSaleRepo) snapshot() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	sales := make(map[int64]*domain.Sale, len(m.sales))
	for id, s := range m.sales {
		c := *s
		sales[id] = &c
	}
	invoices := make(map[int64]*domain.Invoice, len(m.invoices))
	for id, inv := range m.invoices {
		c := *inv
		invoices[id] = &c
	}
	return struct {
		sales    map[int64]*domain.Sale
		invoices map[int64]*domain.Invoice
	}{sales, invoices}
}

func (m *mockSaleRepo) restore(state any) {
	s := state.(struct {
		sales    map[int64]*domain.Sale
		invoices map[int64]*domain.Invoice
	})
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sales = s.sales
	m.invoices = s.invoices
}

func (m *mockSaleRepo) Create(sale *domain.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sale.ID = m.nextID
	m.nextID++
	for _, line := range sale.Lines {
		line.ID = m.nextID
		m.nextID++
		line.SaleID = sale.ID
	}
	c := *sale
	m.sales[sale.ID] = &c
	m.lines[sale.ID] = sale.Lines
	return nil
}

func (m *mockSaleRepo) GetByID(id int64) (*domain.Sale, error) {
	return m.GetByIDForUpdateInTx(nil, id)
}

func (m *mockSaleRepo) GetByIDForUpdateInTx(_ *sql.Tx, id int64) (*domain.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sales[id]
	if !ok {
		return nil, nil
	}
	c := *s
	return &c, nil
}

func (m *mockSaleRepo) GetLines(saleID int64) ([]*domain.SaleLine, error) {
	return m.GetLinesInTx(nil, saleID)
}

func (m *mockSaleRepo) GetLinesInTx(_ *sql.Tx, saleID int64) ([]*domain.SaleLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.SaleLine
	for _, l := range m.lines[saleID] {
		c := *l
		out = append(out, &c)
	}
	return out, nil
}

func (m *mockSaleRepo) List(req *domain.SaleListRequest) ([]*domain.Sale, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Sale
	for _, s := range m.sales {
		if req.Status != nil && s.Status != *req.Status {
			continue
		}
		c := *s
		out = append(out, &c)
	}
	return out, int64(len(out)), nil
}

func (m *mockSaleRepo) GetInvoiceBySaleID(saleID int64) (*domain.Invoice, error) {
	return m.GetInvoiceBySaleIDInTx(nil, saleID)
}

func (m *mockSaleRepo) GetInvoiceBySaleIDInTx(_ *sql.Tx, saleID int64) (*domain.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[saleID]
	if !ok {
		return nil, nil
	}
	c := *inv
	return &c, nil
}

func (m *mockSaleRepo) CreateInvoice(invoice *domain.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	invoice.ID = m.nextID
	m.nextID++
	c := *invoice
	m.invoices[invoice.SaleID] = &c
	if s, ok := m.sales[invoice.SaleID]; ok {
		s.InvoiceID = &invoice.ID
	}
	return nil
}

func (m *mockSaleRepo) MarkDeliveredInTx(_ *sql.Tx, saleID int64, deliveredAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sales[saleID]
	if !ok || s.Status != domain.SaleStatusConfirmed || s.CancelledAt != nil {
		return repo.ErrSaleStateConflict
	}
	s.Status = domain.SaleStatusDelivered
	s.DeliveredAt = &deliveredAt
	return nil
}

func (m *mockSaleRepo) MarkCancelledInTx(_ *sql.Tx, saleID int64, cancelledAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sales[saleID]
	if !ok || s.CancelledAt != nil {
		return repo.ErrSaleStateConflict
	}
	s.Status = domain.SaleStatusCancelled
	s.CancelledAt = &cancelledAt
	return nil
}

func (m *mockSaleRepo) CancelInvoiceInTx(_ *sql.Tx, invoiceID int64, cancelledAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invoices {
		if inv.ID == invoiceID {
			inv.CancelledAt = &cancelledAt
			return nil
		}
	}
	return repo.ErrSaleStateConflict
}

// ---- purchase repo ----

type mockPurchaseRepo struct {
	mu        sync.Mutex
	nextID    int64
	purchases map[int64]*domain.Purchase
}

func newMockPurchaseRepo() *mockPurchaseRepo {
	return &mockPurchaseRepo{nextID: 1, purchases: make(map[int64]*domain.Purchase)}
}

func (m *mockPurchaseRepo) snapshot() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	purchases := make(map[int64]*domain.Purchase, len(m.purchases))
	for id, p := range m.purchases {
		purchases[id] = p
	}
	return struct {
		nextID    int64
		purchases map[int64]*domain.Purchase
	}{m.nextID, purchases}
}

func (m *mockPurchaseRepo) restore(state any) {
	s := state.(struct {
		nextID    int64
		purchases map[int64]*domain.Purchase
	})
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID = s.nextID
	m.purchases = s.purchases
}

func (m *mockPurchaseRepo) Create(purchase *domain.Purchase) error {
	return m.CreateInTx(nil, purchase)
}

func (m *mockPurchaseRepo) CreateInTx(_ *sql.Tx, purchase *domain.Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	purchase.ID = m.nextID
	m.nextID++
	for _, line := range purchase.Lines {
		line.ID = m.nextID
		m.nextID++
		line.PurchaseID = purchase.ID
	}
	m.purchases[purchase.ID] = purchase
	return nil
}

func (m *mockPurchaseRepo) GetByID(id int64) (*domain.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.purchases[id]
	if !ok {
		return nil, nil
	}
	return p, nil
}

func (m *mockPurchaseRepo) GetLineByID(lineID int64) (*domain.PurchaseLine, error) {
	return m.GetLineByIDForUpdateInTx(nil, lineID)
}

func (m *mockPurchaseRepo) GetLineByIDForUpdateInTx(_ *sql.Tx, lineID int64) (*domain.PurchaseLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.purchases {
		for _, line := range p.Lines {
			if line.ID == lineID {
				return line, nil
			}
		}
	}
	return nil, nil
}

func (m *mockPurchaseRepo) List(page, pageSize int) ([]*domain.Purchase, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Purchase
	for _, p := range m.purchases {
		out = append(out, p)
	}
	return out, int64(len(out)), nil
}
