package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/Diouf7AH/jewellery-management-sub001/internal/domain"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/middleware"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/resp"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/service"
)

// AllocationHandler 采购入库与供应商库存分配的HTTP处理器
type AllocationHandler struct {
	allocationService service.AllocationService
	logger            *zap.Logger
}

// NewAllocationHandler 创建分配处理器实例
func NewAllocationHandler(allocationService service.AllocationService, logger *zap.Logger) *AllocationHandler {
	return &AllocationHandler{allocationService: allocationService, logger: logger}
}

// ReceivePurchase 登记采购单
// POST /api/v1/purchases
// 需要主管权限
func (h *AllocationHandler) ReceivePurchase(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	var req domain.CreatePurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}
	if req.Reference == "" || len(req.Lines) == 0 {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "reference and lines are required", reqID, "")
		return
	}

	user := middleware.UserFromContext(r.Context())
	if user == nil {
		resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "authentication required", reqID, "")
		return
	}

	purchase, err := h.allocationService.ReceivePurchase(r.Context(), &req, user.ID)
	if err != nil {
		if domain.IsValidation(err) {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, err.Error(), reqID, "")
			return
		}

		h.logger.Error("receive purchase failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "receive purchase failed", reqID, "")
		return
	}

	resp.OK(w, purchase, reqID, "")
}

// GetPurchase 获取采购单详情
// GET /api/v1/purchases/{id}
func (h *AllocationHandler) GetPurchase(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := pathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid purchase ID", reqID, "")
		return
	}

	purchase, err := h.allocationService.GetPurchase(id)
	if err != nil {
		if errors.Is(err, service.ErrPurchaseNotFound) {
			resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "purchase not found", reqID, "")
			return
		}

		h.logger.Error("get purchase failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "get purchase failed", reqID, "")
		return
	}

	resp.OK(w, purchase, reqID, "")
}

// ListPurchases 查询采购单列表
// GET /api/v1/purchases
func (h *AllocationHandler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	result, err := h.allocationService.ListPurchases(queryInt(r, "page", 1), queryInt(r, "page_size", 20))
	if err != nil {
		h.logger.Error("list purchases failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "list purchases failed", reqID, "")
		return
	}

	resp.OK(w, result, reqID, "")
}

// Allocate 把采购批次行的库存分配给供应商
// POST /api/v1/vendor-stock/allocate
// 需要主管权限
func (h *AllocationHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	var req domain.AllocateStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}
	if req.VendorID <= 0 || req.PurchaseLineID <= 0 || req.Quantity <= 0 || req.ShopID <= 0 {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "vendor_id, purchase_line_id, quantity and shop_id are required", reqID, "")
		return
	}

	user := middleware.UserFromContext(r.Context())
	if user == nil {
		resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "authentication required", reqID, "")
		return
	}

	line, err := h.allocationService.Allocate(r.Context(), &req, user.ID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPurchaseLineNotFound):
			resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "purchase line not found", reqID, "")
		case domain.IsValidation(err):
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, err.Error(), reqID, "")
		default:
			h.logger.Error("allocate vendor stock failed", zap.String("request_id", reqID), zap.Error(err))
			resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "allocate vendor stock failed", reqID, "")
		}
		return
	}

	resp.OK(w, line, reqID, "")
}

// ListVendorStock 查询供应商库存台账
// GET /api/v1/vendor-stock
func (h *AllocationHandler) ListVendorStock(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	req := &domain.VendorStockListRequest{
		Page:      queryInt(r, "page", 1),
		PageSize:  queryInt(r, "page_size", 20),
		VendorID:  queryInt64(r, "vendor_id"),
		ProductID: queryInt64(r, "product_id"),
		OnlyOpen:  r.URL.Query().Get("only_open") == "true",
	}

	result, err := h.allocationService.ListVendorStock(req)
	if err != nil {
		h.logger.Error("list vendor stock failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "list vendor stock failed", reqID, "")
		return
	}

	resp.OK(w, result, reqID, "")
}
