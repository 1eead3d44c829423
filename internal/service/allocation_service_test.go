package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Diouf7AH/jewellery-management-sub001/internal/domain"
)

type allocationFixture struct {
	svc         AllocationService
	purchases   *mockPurchaseRepo
	vendorStock *mockVendorStockRepo
	movements   *mockMovementRepo
}

func newAllocationFixture() *allocationFixture {
	purchases := newMockPurchaseRepo()
	vendorStock := newMockVendorStockRepo()
	movements := newMockMovementRepo()
	tx := newMockTxRunner(purchases, movements, vendorStock)

	return &allocationFixture{
		svc:         NewAllocationService(tx, purchases, vendorStock, movements, zap.NewNop()),
		purchases:   purchases,
		vendorStock: vendorStock,
		movements:   movements,
	}
}

func (f *allocationFixture) receive(t *testing.T, productID int64, qty int) *domain.Purchase {
	t.Helper()
	p, err := f.svc.ReceivePurchase(context.Background(), &domain.CreatePurchaseRequest{
		Reference: "PO-001",
		Lines: []*domain.CreatePurchaseLineRequest{
			{ProductID: productID, Quantity: qty, UnitCost: decimal.NewFromInt(80)},
		},
	}, 1)
	if err != nil {
		t.Fatalf("ReceivePurchase() error = %v", err)
	}
	return p
}

func TestReceivePurchase_RecordsLedgerEntries(t *testing.T) {
	f := newAllocationFixture()

	p, err := f.svc.ReceivePurchase(context.Background(), &domain.CreatePurchaseRequest{
		Reference: "PO-001",
		Lines: []*domain.CreatePurchaseLineRequest{
			{ProductID: 100, Quantity: 10, UnitCost: decimal.NewFromInt(80)},
			{ProductID: 200, Quantity: 3, UnitCost: decimal.NewFromInt(120)},
		},
	}, 7)
	if err != nil {
		t.Fatalf("ReceivePurchase() error = %v", err)
	}

	if p.ID == 0 || len(p.Lines) != 2 {
		t.Fatalf("purchase not persisted: %+v", p)
	}
	if f.movements.count() != 2 {
		t.Fatalf("movements = %d, want one per line", f.movements.count())
	}

	// 入库落在预留桶
	reserved, _ := f.movements.BucketBalance(100, domain.BucketReserved, nil)
	if reserved != 10 {
		t.Errorf("reserved balance = %d, want 10", reserved)
	}

	m, _ := f.movements.GetByID(1)
	if m.Type != domain.MovementPurchaseIn {
		t.Errorf("movement type = %s, want PURCHASE_IN", m.Type)
	}
	if m.PurchaseID == nil || *m.PurchaseID != p.ID {
		t.Errorf("movement purchase id = %v, want %d", m.PurchaseID, p.ID)
	}
	if m.PurchaseLineID == nil || *m.PurchaseLineID != p.Lines[0].ID {
		t.Errorf("movement purchase line id = %v, want %d", m.PurchaseLineID, p.Lines[0].ID)
	}
	if m.CreatedBy != 7 {
		t.Errorf("movement created by = %d, want 7", m.CreatedBy)
	}
}

func TestReceivePurchase_RejectsInvalidLine(t *testing.T) {
	f := newAllocationFixture()

	_, err := f.svc.ReceivePurchase(context.Background(), &domain.CreatePurchaseRequest{
		Reference: "PO-002",
		Lines: []*domain.CreatePurchaseLineRequest{
			{ProductID: 100, Quantity: 0, UnitCost: decimal.NewFromInt(80)},
		},
	}, 1)
	if !domain.IsValidation(err) {
		t.Errorf("ReceivePurchase() error = %v, want validation error", err)
	}
	if f.movements.count() != 0 {
		t.Error("rejected purchase left movements behind")
	}
}

// failingMovementRepo 在写入流水时报错，用于验证编排事务的回滚
type failingMovementRepo struct {
	*mockMovementRepo
}

func (f *failingMovementRepo) CreateInTx(_ *sql.Tx, _ *domain.Movement) error {
	return errors.New("movement store unavailable")
}

func TestReceivePurchase_MovementFailureLeavesNoPurchase(t *testing.T) {
	purchases := newMockPurchaseRepo()
	vendorStock := newMockVendorStockRepo()
	movements := &failingMovementRepo{newMockMovementRepo()}
	tx := newMockTxRunner(purchases, movements.mockMovementRepo, vendorStock)
	svc := NewAllocationService(tx, purchases, vendorStock, movements, zap.NewNop())

	_, err := svc.ReceivePurchase(context.Background(), &domain.CreatePurchaseRequest{
		Reference: "PO-003",
		Lines: []*domain.CreatePurchaseLineRequest{
			{ProductID: 100, Quantity: 10, UnitCost: decimal.NewFromInt(80)},
		},
	}, 1)
	if err == nil {
		t.Fatal("ReceivePurchase() expected error when movement write fails")
	}

	// 采购单与流水同一事务，流水失败时采购单不能落库
	_, total, listErr := purchases.List(1, 10)
	if listErr != nil {
		t.Fatalf("list purchases: %v", listErr)
	}
	if total != 0 {
		t.Errorf("purchases after rollback = %d, want 0", total)
	}
}

func TestAllocate_CreatesStockLineAndMovement(t *testing.T) {
	f := newAllocationFixture()
	p := f.receive(t, 100, 10)

	line, err := f.svc.Allocate(context.Background(), &domain.AllocateStockRequest{
		VendorID:       9,
		PurchaseLineID: p.Lines[0].ID,
		Quantity:       6,
		ShopID:         3,
	}, 1)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}

	if line.Allocated != 6 || line.Sold != 0 {
		t.Errorf("stock line = %+v, want allocated 6, sold 0", line)
	}
	if line.ProductID != 100 {
		t.Errorf("stock line product = %d, want 100", line.ProductID)
	}

	// ALLOCATE 把预留库存落到门店桶
	reserved, _ := f.movements.BucketBalance(100, domain.BucketReserved, nil)
	if reserved != 4 {
		t.Errorf("reserved balance = %d, want 4", reserved)
	}
	shop, _ := f.movements.BucketBalance(100, domain.BucketShop, int64Ptr(3))
	if shop != 6 {
		t.Errorf("shop balance = %d, want 6", shop)
	}
}

func TestAllocate_AccumulatesOnExistingLine(t *testing.T) {
	f := newAllocationFixture()
	p := f.receive(t, 100, 10)

	req := &domain.AllocateStockRequest{
		VendorID:       9,
		PurchaseLineID: p.Lines[0].ID,
		Quantity:       4,
		ShopID:         3,
	}
	if _, err := f.svc.Allocate(context.Background(), req, 1); err != nil {
		t.Fatalf("first Allocate() error = %v", err)
	}
	line, err := f.svc.Allocate(context.Background(), req, 1)
	if err != nil {
		t.Fatalf("second Allocate() error = %v", err)
	}

	if line.Allocated != 8 {
		t.Errorf("accumulated allocated = %d, want 8", line.Allocated)
	}

	available, _ := f.vendorStock.AvailableQuantity(9, 100)
	if available != 8 {
		t.Errorf("available = %d, want 8", available)
	}
}

func TestAllocate_InsufficientReserved(t *testing.T) {
	f := newAllocationFixture()
	p := f.receive(t, 100, 5)

	_, err := f.svc.Allocate(context.Background(), &domain.AllocateStockRequest{
		VendorID:       9,
		PurchaseLineID: p.Lines[0].ID,
		Quantity:       6,
		ShopID:         3,
	}, 1)
	if !domain.IsValidation(err) {
		t.Errorf("Allocate() error = %v, want validation error", err)
	}
}

// 并发压测：多个供应商竞争同一批次的预留库存，
// 余额复核在事务内进行，成功分配的总量不得超过入库量。
func TestAllocate_ConcurrentNoOverAllocation(t *testing.T) {
	f := newAllocationFixture()
	p := f.receive(t, 100, 10)

	const vendors = 8
	var wg sync.WaitGroup
	succeeded := make(chan int64, vendors)
	for i := 0; i < vendors; i++ {
		wg.Add(1)
		go func(vendorID int64) {
			defer wg.Done()
			_, err := f.svc.Allocate(context.Background(), &domain.AllocateStockRequest{
				VendorID:       vendorID,
				PurchaseLineID: p.Lines[0].ID,
				Quantity:       3,
				ShopID:         3,
			}, 1)
			if err == nil {
				succeeded <- vendorID
			}
		}(int64(i + 1))
	}
	wg.Wait()
	close(succeeded)

	var wins int
	for range succeeded {
		wins++
	}
	// 10件预留，每次3件，至多3次成功
	if wins > 3 {
		t.Errorf("successful allocations = %d, want <= 3", wins)
	}

	reserved, _ := f.movements.BucketBalance(100, domain.BucketReserved, nil)
	if reserved != int64(10-wins*3) {
		t.Errorf("reserved balance = %d, want %d", reserved, 10-wins*3)
	}
	if reserved < 0 {
		t.Errorf("over-allocation: reserved balance %d < 0", reserved)
	}
}

func TestAllocate_UnknownPurchaseLine(t *testing.T) {
	f := newAllocationFixture()

	_, err := f.svc.Allocate(context.Background(), &domain.AllocateStockRequest{
		VendorID:       9,
		PurchaseLineID: 404,
		Quantity:       1,
		ShopID:         3,
	}, 1)
	if !errors.Is(err, ErrPurchaseLineNotFound) {
		t.Errorf("Allocate() error = %v, want ErrPurchaseLineNotFound", err)
	}
}
