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

// ShopHandler 门店与供应商主数据的HTTP处理器
type ShopHandler struct {
	shopService service.ShopService
	logger      *zap.Logger
}

// NewShopHandler 创建门店处理器实例
func NewShopHandler(shopService service.ShopService, logger *zap.Logger) *ShopHandler {
	return &ShopHandler{shopService: shopService, logger: logger}
}

// CreateShop 创建门店
// POST /api/v1/shops
// 需要管理员权限
func (h *ShopHandler) CreateShop(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	var req domain.CreateShopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}
	if req.Code == "" || req.Name == "" {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "code and name are required", reqID, "")
		return
	}

	shop, err := h.shopService.CreateShop(&req)
	if err != nil {
		h.logger.Error("create shop failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "create shop failed", reqID, "")
		return
	}

	resp.OK(w, shop, reqID, "")
}

// GetShop 获取门店详情
// GET /api/v1/shops/{id}
func (h *ShopHandler) GetShop(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := pathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid shop ID", reqID, "")
		return
	}

	shop, err := h.shopService.GetShop(id)
	if err != nil {
		if errors.Is(err, service.ErrShopNotFound) {
			resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "shop not found", reqID, "")
			return
		}

		h.logger.Error("get shop failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "get shop failed", reqID, "")
		return
	}

	resp.OK(w, shop, reqID, "")
}

// ListShops 列出全部门店
// GET /api/v1/shops
func (h *ShopHandler) ListShops(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	shops, err := h.shopService.ListShops()
	if err != nil {
		h.logger.Error("list shops failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "list shops failed", reqID, "")
		return
	}

	resp.OK(w, shops, reqID, "")
}

// CreateVendor 创建供应商
// POST /api/v1/vendors
// 需要管理员权限
func (h *ShopHandler) CreateVendor(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	var req domain.CreateVendorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}
	if req.Code == "" || req.Name == "" {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "code and name are required", reqID, "")
		return
	}

	vendor, err := h.shopService.CreateVendor(&req)
	if err != nil {
		h.logger.Error("create vendor failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "create vendor failed", reqID, "")
		return
	}

	resp.OK(w, vendor, reqID, "")
}

// GetVendor 获取供应商详情
// GET /api/v1/vendors/{id}
func (h *ShopHandler) GetVendor(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := pathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid vendor ID", reqID, "")
		return
	}

	vendor, err := h.shopService.GetVendor(id)
	if err != nil {
		if errors.Is(err, service.ErrVendorNotFound) {
			resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "vendor not found", reqID, "")
			return
		}

		h.logger.Error("get vendor failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "get vendor failed", reqID, "")
		return
	}

	resp.OK(w, vendor, reqID, "")
}

// ListVendors 列出全部供应商
// GET /api/v1/vendors
func (h *ShopHandler) ListVendors(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	vendors, err := h.shopService.ListVendors()
	if err != nil {
		h.logger.Error("list vendors failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "list vendors failed", reqID, "")
		return
	}

	resp.OK(w, vendors, reqID, "")
}
