package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/Diouf7AH/jewellery-management-sub001/internal/domain"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/middleware"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/service"
)

// MockSaleService for testing
type MockSaleService struct {
	createSaleFunc    func(req *domain.CreateSaleRequest, createdBy int64) (*domain.Sale, error)
	getSaleFunc       func(id int64) (*domain.Sale, error)
	listSalesFunc     func(req *domain.SaleListRequest) (*domain.SaleListResponse, error)
	createInvoiceFunc func(req *domain.CreateInvoiceRequest) (*domain.Invoice, error)
	getInvoiceFunc    func(saleID int64) (*domain.Invoice, error)
}

func (m *MockSaleService) CreateSale(req *domain.CreateSaleRequest, createdBy int64) (*domain.Sale, error) {
	if m.createSaleFunc != nil {
		return m.createSaleFunc(req, createdBy)
	}
	return &domain.Sale{ID: 1, Number: req.Number, Status: domain.SaleStatusConfirmed}, nil
}

func (m *MockSaleService) GetSale(id int64) (*domain.Sale, error) {
	if m.getSaleFunc != nil {
		return m.getSaleFunc(id)
	}
	return &domain.Sale{ID: id, Number: "S-001", Status: domain.SaleStatusConfirmed}, nil
}

func (m *MockSaleService) ListSales(req *domain.SaleListRequest) (*domain.SaleListResponse, error) {
	if m.listSalesFunc != nil {
		return m.listSalesFunc(req)
	}
	return &domain.SaleListResponse{Sales: []*domain.Sale{}, Total: 0, Page: req.Page, PageSize: req.PageSize}, nil
}

func (m *MockSaleService) CreateInvoice(req *domain.CreateInvoiceRequest) (*domain.Invoice, error) {
	if m.createInvoiceFunc != nil {
		return m.createInvoiceFunc(req)
	}
	return &domain.Invoice{ID: 1, Number: req.Number, SaleID: req.SaleID}, nil
}

func (m *MockSaleService) GetInvoice(saleID int64) (*domain.Invoice, error) {
	if m.getInvoiceFunc != nil {
		return m.getInvoiceFunc(saleID)
	}
	return &domain.Invoice{ID: 1, SaleID: saleID}, nil
}

// MockFulfillmentService for testing
type MockFulfillmentService struct {
	fulfillFunc func(ctx context.Context, saleID, actorID int64) (*domain.FulfillResult, error)
	cancelFunc  func(ctx context.Context, saleID, actorID int64) (*domain.CancelResult, error)
}

func (m *MockFulfillmentService) Fulfill(ctx context.Context, saleID, actorID int64) (*domain.FulfillResult, error) {
	if m.fulfillFunc != nil {
		return m.fulfillFunc(ctx, saleID, actorID)
	}
	return &domain.FulfillResult{SaleID: saleID, CreatedEntries: 1}, nil
}

func (m *MockFulfillmentService) Cancel(ctx context.Context, saleID, actorID int64) (*domain.CancelResult, error) {
	if m.cancelFunc != nil {
		return m.cancelFunc(ctx, saleID, actorID)
	}
	return &domain.CancelResult{SaleID: saleID, ReturnedCount: 1}, nil
}

func newTestSaleHandler(saleSvc service.SaleService, fulfillSvc service.FulfillmentService) *SaleHandler {
	return NewSaleHandler(saleSvc, fulfillSvc, zap.NewNop())
}

// serveAs 以指定用户身份发起请求，userID为0表示未认证
func serveAs(handler http.HandlerFunc, method, target string, body interface{}, userID int64) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID > 0 {
		user := &domain.User{ID: userID, Username: "tester", Role: domain.UserRoleManager}
		req = req.WithContext(middleware.WithUser(req.Context(), user))
	}

	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	data, ok := response["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("response has no data object: %s", w.Body.String())
	}
	return data
}

func TestSaleHandler_Fulfill(t *testing.T) {
	tests := []struct {
		name        string
		target      string
		userID      int64
		fulfillFunc func(ctx context.Context, saleID, actorID int64) (*domain.FulfillResult, error)
		wantStatus  int
	}{
		{
			name:   "successful fulfillment",
			target: "/api/v1/sales/7/fulfill",
			userID: 11,
			fulfillFunc: func(ctx context.Context, saleID, actorID int64) (*domain.FulfillResult, error) {
				return &domain.FulfillResult{SaleID: saleID, CreatedEntries: 2}, nil
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "invalid sale ID",
			target:     "/api/v1/sales/abc/fulfill",
			userID:     11,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unauthenticated",
			target:     "/api/v1/sales/7/fulfill",
			userID:     0,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:   "sale not found",
			target: "/api/v1/sales/999/fulfill",
			userID: 11,
			fulfillFunc: func(ctx context.Context, saleID, actorID int64) (*domain.FulfillResult, error) {
				return nil, service.ErrSaleNotFound
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:   "validation failure",
			target: "/api/v1/sales/7/fulfill",
			userID: 11,
			fulfillFunc: func(ctx context.Context, saleID, actorID int64) (*domain.FulfillResult, error) {
				return nil, domain.Validationf("sale %d has no invoice", saleID)
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestSaleHandler(&MockSaleService{}, &MockFulfillmentService{fulfillFunc: tt.fulfillFunc})

			w := serveAs(handler.Fulfill, "POST", tt.target, nil, tt.userID)

			if w.Code != tt.wantStatus {
				t.Errorf("Fulfill() status = %d, want %d; body = %s", w.Code, tt.wantStatus, w.Body.String())
			}

			if tt.wantStatus == http.StatusOK {
				data := decodeData(t, w)
				if created, ok := data["created_entries"].(float64); !ok || created != 2 {
					t.Errorf("Fulfill() created_entries = %v, want 2", data["created_entries"])
				}
			}
		})
	}
}

func TestSaleHandler_Cancel_Idempotent(t *testing.T) {
	fulfillSvc := &MockFulfillmentService{
		cancelFunc: func(ctx context.Context, saleID, actorID int64) (*domain.CancelResult, error) {
			return &domain.CancelResult{SaleID: saleID, AlreadyCancelled: true}, nil
		},
	}
	handler := newTestSaleHandler(&MockSaleService{}, fulfillSvc)

	w := serveAs(handler.Cancel, "POST", "/api/v1/sales/7/cancel", nil, 11)

	if w.Code != http.StatusOK {
		t.Fatalf("Cancel() status = %d, want %d; body = %s", w.Code, http.StatusOK, w.Body.String())
	}

	data := decodeData(t, w)
	if already, ok := data["already_cancelled"].(bool); !ok || !already {
		t.Errorf("Cancel() already_cancelled = %v, want true", data["already_cancelled"])
	}
	if returned, ok := data["returned_count"].(float64); !ok || returned != 0 {
		t.Errorf("Cancel() returned_count = %v, want 0", data["returned_count"])
	}
}

func TestSaleHandler_CreateSale(t *testing.T) {
	tests := []struct {
		name        string
		requestBody interface{}
		userID      int64
		wantStatus  int
	}{
		{
			name: "successful creation",
			requestBody: map[string]interface{}{
				"number": "S-2026-001",
				"lines": []map[string]interface{}{
					{"product_id": 1, "vendor_id": 2, "quantity": 3, "unit_price": "1500.00"},
				},
			},
			userID:     11,
			wantStatus: http.StatusOK,
		},
		{
			name:        "missing lines",
			requestBody: map[string]interface{}{"number": "S-2026-002"},
			userID:      11,
			wantStatus:  http.StatusBadRequest,
		},
		{
			name: "unauthenticated",
			requestBody: map[string]interface{}{
				"number": "S-2026-003",
				"lines": []map[string]interface{}{
					{"product_id": 1, "quantity": 1, "unit_price": "100.00"},
				},
			},
			userID:     0,
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestSaleHandler(&MockSaleService{}, &MockFulfillmentService{})

			w := serveAs(handler.CreateSale, "POST", "/api/v1/sales", tt.requestBody, tt.userID)

			if w.Code != tt.wantStatus {
				t.Errorf("CreateSale() status = %d, want %d; body = %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestSaleHandler_GetSale_NotFound(t *testing.T) {
	saleSvc := &MockSaleService{
		getSaleFunc: func(id int64) (*domain.Sale, error) {
			return nil, service.ErrSaleNotFound
		},
	}
	handler := newTestSaleHandler(saleSvc, &MockFulfillmentService{})

	w := serveAs(handler.GetSale, "GET", "/api/v1/sales/404", nil, 11)

	if w.Code != http.StatusNotFound {
		t.Errorf("GetSale() status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestSaleHandler_CreateInvoice_Conflict(t *testing.T) {
	saleSvc := &MockSaleService{
		createInvoiceFunc: func(req *domain.CreateInvoiceRequest) (*domain.Invoice, error) {
			return nil, service.ErrInvoiceExists
		},
	}
	handler := newTestSaleHandler(saleSvc, &MockFulfillmentService{})

	body := map[string]interface{}{"number": "INV-001", "sale_id": 7, "shop_id": 1}
	w := serveAs(handler.CreateInvoice, "POST", "/api/v1/invoices", body, 11)

	if w.Code != http.StatusConflict {
		t.Errorf("CreateInvoice() status = %d, want %d; body = %s", w.Code, http.StatusConflict, w.Body.String())
	}
}
