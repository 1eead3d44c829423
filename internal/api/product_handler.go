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

// ProductHandler 商品与金价牌价的HTTP处理器
type ProductHandler struct {
	productService service.ProductService
	logger         *zap.Logger
}

// NewProductHandler 创建商品处理器实例
func NewProductHandler(productService service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{productService: productService, logger: logger}
}

// CreateProduct 创建商品
// POST /api/v1/products
// 需要主管权限
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	var req domain.CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}
	if req.Name == "" || req.SKU == "" || req.Brand == "" || req.Purity == "" {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "name, sku, brand and purity are required", reqID, "")
		return
	}

	product, err := h.productService.CreateProduct(&req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProductExists):
			resp.Error(w, http.StatusConflict, resp.CodeConflict, "product with this sku already exists", reqID, "")
		case domain.IsValidation(err):
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, err.Error(), reqID, "")
		default:
			h.logger.Error("create product failed", zap.String("request_id", reqID), zap.Error(err))
			resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "create product failed", reqID, "")
		}
		return
	}

	resp.OK(w, product, reqID, "")
}

// GetProduct 获取商品详情
// GET /api/v1/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := pathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid product ID", reqID, "")
		return
	}

	product, err := h.productService.GetProduct(id)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "product not found", reqID, "")
			return
		}

		h.logger.Error("get product failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "get product failed", reqID, "")
		return
	}

	resp.OK(w, product, reqID, "")
}

// GetProductWithPrice 获取商品及其名义价格
// GET /api/v1/products/{id}/price
func (h *ProductHandler) GetProductWithPrice(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := pathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid product ID", reqID, "")
		return
	}

	product, err := h.productService.GetProductWithPrice(id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProductNotFound):
			resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "product not found", reqID, "")
		case errors.Is(err, service.ErrGoldRateNotFound):
			resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "gold rate not set for this brand and purity", reqID, "")
		default:
			h.logger.Error("get product price failed", zap.String("request_id", reqID), zap.Error(err))
			resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "get product price failed", reqID, "")
		}
		return
	}

	resp.OK(w, product, reqID, "")
}

// UpdateProduct 更新商品
// PUT /api/v1/products/{id}
// 需要主管权限
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := pathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid product ID", reqID, "")
		return
	}

	var req domain.UpdateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	product, err := h.productService.UpdateProduct(id, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProductNotFound):
			resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "product not found", reqID, "")
		case domain.IsValidation(err):
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, err.Error(), reqID, "")
		default:
			h.logger.Error("update product failed", zap.String("request_id", reqID), zap.Error(err))
			resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "update product failed", reqID, "")
		}
		return
	}

	resp.OK(w, product, reqID, "")
}

// DeleteProduct 删除商品
// DELETE /api/v1/products/{id}
// 需要管理员权限
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := pathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid product ID", reqID, "")
		return
	}

	if err := h.productService.DeleteProduct(id); err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "product not found", reqID, "")
			return
		}

		h.logger.Error("delete product failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "delete product failed", reqID, "")
		return
	}

	resp.OK(w, map[string]any{"id": id, "deleted": true}, reqID, "")
}

// ListProducts 查询商品列表
// GET /api/v1/products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	req := &domain.ProductListRequest{
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "page_size", 20),
	}
	q := r.URL.Query()
	if raw := q.Get("status"); raw != "" {
		status := domain.ProductStatus(raw)
		req.Status = &status
	}
	if raw := q.Get("brand"); raw != "" {
		req.Brand = &raw
	}
	if raw := q.Get("purity"); raw != "" {
		purity := domain.Purity(raw)
		req.Purity = &purity
	}
	if raw := q.Get("keyword"); raw != "" {
		req.Keyword = &raw
	}
	if raw := q.Get("sort_by"); raw != "" {
		req.SortBy = &raw
	}
	if raw := q.Get("sort_order"); raw != "" {
		req.SortOrder = &raw
	}

	result, err := h.productService.ListProducts(req)
	if err != nil {
		h.logger.Error("list products failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "list products failed", reqID, "")
		return
	}

	resp.OK(w, result, reqID, "")
}

// GetGoldRate 获取 (品牌, 纯度) 牌价
// GET /api/v1/gold-rates?brand=&purity=
func (h *ProductHandler) GetGoldRate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	brand := r.URL.Query().Get("brand")
	purity := r.URL.Query().Get("purity")
	if brand == "" || purity == "" {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "brand and purity are required", reqID, "")
		return
	}

	rate, err := h.productService.GetGoldRate(brand, domain.Purity(purity))
	if err != nil {
		if errors.Is(err, service.ErrGoldRateNotFound) {
			resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "gold rate not found", reqID, "")
			return
		}

		h.logger.Error("get gold rate failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "get gold rate failed", reqID, "")
		return
	}

	resp.OK(w, rate, reqID, "")
}

// SetGoldRate 维护 (品牌, 纯度) 牌价
// PUT /api/v1/gold-rates
// 需要主管权限
func (h *ProductHandler) SetGoldRate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	var req domain.GoldRate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}
	if req.Brand == "" || req.Purity == "" {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "brand and purity are required", reqID, "")
		return
	}

	user := middleware.UserFromContext(r.Context())
	if user != nil {
		req.UpdatedBy = user.ID
	}

	rate, err := h.productService.SetGoldRate(req.Brand, req.Purity, &req)
	if err != nil {
		if domain.IsValidation(err) {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, err.Error(), reqID, "")
			return
		}

		h.logger.Error("set gold rate failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "set gold rate failed", reqID, "")
		return
	}

	resp.OK(w, rate, reqID, "")
}
