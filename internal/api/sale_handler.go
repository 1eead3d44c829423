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

// SaleHandler 销售单与出库编排的HTTP处理器
type SaleHandler struct {
	saleService        service.SaleService
	fulfillmentService service.FulfillmentService
	logger             *zap.Logger
}

// NewSaleHandler 创建销售处理器实例
func NewSaleHandler(saleService service.SaleService, fulfillmentService service.FulfillmentService, logger *zap.Logger) *SaleHandler {
	return &SaleHandler{
		saleService:        saleService,
		fulfillmentService: fulfillmentService,
		logger:             logger,
	}
}

// CreateSale 创建销售单
// POST /api/v1/sales
func (h *SaleHandler) CreateSale(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	var req domain.CreateSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}
	if req.Number == "" || len(req.Lines) == 0 {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "number and lines are required", reqID, "")
		return
	}

	user := middleware.UserFromContext(r.Context())
	if user == nil {
		resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "authentication required", reqID, "")
		return
	}

	sale, err := h.saleService.CreateSale(&req, user.ID)
	if err != nil {
		if domain.IsValidation(err) {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, err.Error(), reqID, "")
			return
		}

		h.logger.Error("create sale failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "create sale failed", reqID, "")
		return
	}

	resp.OK(w, sale, reqID, "")
}

// GetSale 获取销售单详情
// GET /api/v1/sales/{id}
func (h *SaleHandler) GetSale(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := pathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid sale ID", reqID, "")
		return
	}

	sale, err := h.saleService.GetSale(id)
	if err != nil {
		if errors.Is(err, service.ErrSaleNotFound) {
			resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "sale not found", reqID, "")
			return
		}

		h.logger.Error("get sale failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "get sale failed", reqID, "")
		return
	}

	resp.OK(w, sale, reqID, "")
}

// ListSales 查询销售单列表
// GET /api/v1/sales
func (h *SaleHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	req := &domain.SaleListRequest{
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "page_size", 20),
		ClientID: queryInt64(r, "client_id"),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.SaleStatus(raw)
		req.Status = &status
	}

	result, err := h.saleService.ListSales(req)
	if err != nil {
		h.logger.Error("list sales failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "list sales failed", reqID, "")
		return
	}

	resp.OK(w, result, reqID, "")
}

// CreateInvoice 为销售单开具发票
// POST /api/v1/invoices
func (h *SaleHandler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	var req domain.CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}
	if req.Number == "" || req.SaleID <= 0 {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "number and sale_id are required", reqID, "")
		return
	}

	invoice, err := h.saleService.CreateInvoice(&req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSaleNotFound):
			resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "sale not found", reqID, "")
		case errors.Is(err, service.ErrInvoiceExists):
			resp.Error(w, http.StatusConflict, resp.CodeConflict, "sale already has an invoice", reqID, "")
		case domain.IsValidation(err):
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, err.Error(), reqID, "")
		default:
			h.logger.Error("create invoice failed", zap.String("request_id", reqID), zap.Error(err))
			resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "create invoice failed", reqID, "")
		}
		return
	}

	resp.OK(w, invoice, reqID, "")
}

// GetInvoice 获取销售单对应的发票
// GET /api/v1/sales/{id}/invoice
func (h *SaleHandler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := pathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid sale ID", reqID, "")
		return
	}

	invoice, err := h.saleService.GetInvoice(id)
	if err != nil {
		if errors.Is(err, service.ErrSaleNotFound) {
			resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "invoice not found", reqID, "")
			return
		}

		h.logger.Error("get invoice failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "get invoice failed", reqID, "")
		return
	}

	resp.OK(w, invoice, reqID, "")
}

// Fulfill 执行销售出库
// POST /api/v1/sales/{id}/fulfill
// 幂等：重复调用不产生重复的库存影响
func (h *SaleHandler) Fulfill(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := pathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid sale ID", reqID, "")
		return
	}

	user := middleware.UserFromContext(r.Context())
	if user == nil {
		resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "authentication required", reqID, "")
		return
	}

	result, err := h.fulfillmentService.Fulfill(r.Context(), id, user.ID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSaleNotFound):
			resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "sale not found", reqID, "")
		case domain.IsValidation(err):
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, err.Error(), reqID, "")
		default:
			h.logger.Error("fulfill sale failed",
				zap.String("request_id", reqID),
				zap.Int64("sale_id", id),
				zap.Error(err),
			)
			resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "fulfill sale failed", reqID, "")
		}
		return
	}

	resp.OK(w, result, reqID, "")
}

// Cancel 取消销售单并冲销已出库的行
// POST /api/v1/sales/{id}/cancel
// 幂等：已取消的单据返回 already_cancelled
func (h *SaleHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := pathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid sale ID", reqID, "")
		return
	}

	user := middleware.UserFromContext(r.Context())
	if user == nil {
		resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "authentication required", reqID, "")
		return
	}

	result, err := h.fulfillmentService.Cancel(r.Context(), id, user.ID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSaleNotFound):
			resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "sale not found", reqID, "")
		case domain.IsValidation(err):
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, err.Error(), reqID, "")
		default:
			h.logger.Error("cancel sale failed",
				zap.String("request_id", reqID),
				zap.Int64("sale_id", id),
				zap.Error(err),
			)
			resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "cancel sale failed", reqID, "")
		}
		return
	}

	resp.OK(w, result, reqID, "")
}
