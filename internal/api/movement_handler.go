package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Diouf7AH/jewellery-management-sub001/internal/domain"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/middleware"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/resp"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/service"
)

// MovementHandler 库存流水账的HTTP处理器
type MovementHandler struct {
	ledgerService service.LedgerService
	logger        *zap.Logger
}

// NewMovementHandler 创建流水账处理器实例
func NewMovementHandler(ledgerService service.LedgerService, logger *zap.Logger) *MovementHandler {
	return &MovementHandler{ledgerService: ledgerService, logger: logger}
}

// pathID 从URL路径的指定段提取数字ID
func pathID(r *http.Request, index int) (int64, bool) {
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) <= index {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[index], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// queryInt64 解析可选的int64查询参数
func queryInt64(r *http.Request, name string) *int64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

// queryInt 解析int查询参数，缺省时返回默认值
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// Record 记录一条手工流水
// POST /api/v1/movements
// 需要主管权限
func (h *MovementHandler) Record(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	var req domain.RecordMovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	user := middleware.UserFromContext(r.Context())
	if user == nil {
		resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "authentication required", reqID, "")
		return
	}

	movement, err := h.ledgerService.Record(&req, user.ID)
	if err != nil {
		if errors.Is(err, service.ErrRestrictedMovementType) {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, err.Error(), reqID, "")
			return
		}
		if domain.IsValidation(err) {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, err.Error(), reqID, "")
			return
		}

		h.logger.Error("record movement failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "record movement failed", reqID, "")
		return
	}

	resp.OK(w, movement, reqID, "")
}

// List 查询流水列表
// GET /api/v1/movements
func (h *MovementHandler) List(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	req := &domain.MovementListRequest{
		Page:      queryInt(r, "page", 1),
		PageSize:  queryInt(r, "page_size", 20),
		ProductID: queryInt64(r, "product_id"),
		SaleID:    queryInt64(r, "sale_id"),
		ShopID:    queryInt64(r, "shop_id"),
	}
	if raw := r.URL.Query().Get("type"); raw != "" {
		t := domain.MovementType(raw)
		if !t.Valid() {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid movement type", reqID, "")
			return
		}
		req.Type = &t
	}
	if raw := r.URL.Query().Get("sort_order"); raw != "" {
		req.SortOrder = &raw
	}

	result, err := h.ledgerService.ListMovements(req)
	if err != nil {
		h.logger.Error("list movements failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "list movements failed", reqID, "")
		return
	}

	resp.OK(w, result, reqID, "")
}

// Get 获取单条流水
// GET /api/v1/movements/{id}
func (h *MovementHandler) Get(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := pathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid movement ID", reqID, "")
		return
	}

	movement, err := h.ledgerService.GetMovement(id)
	if err != nil {
		if errors.Is(err, service.ErrMovementNotFound) {
			resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "movement not found", reqID, "")
			return
		}

		h.logger.Error("get movement failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "get movement failed", reqID, "")
		return
	}

	resp.OK(w, movement, reqID, "")
}

// Balance 查询商品在指定桶位的余额
// GET /api/v1/movements/balance?product_id=&bucket=&shop_id=
func (h *MovementHandler) Balance(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	productID := queryInt64(r, "product_id")
	if productID == nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "product_id is required", reqID, "")
		return
	}
	bucket := domain.Bucket(r.URL.Query().Get("bucket"))

	balance, err := h.ledgerService.BucketBalance(*productID, bucket, queryInt64(r, "shop_id"))
	if err != nil {
		if domain.IsValidation(err) {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, err.Error(), reqID, "")
			return
		}

		h.logger.Error("bucket balance failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "bucket balance failed", reqID, "")
		return
	}

	resp.OK(w, balance, reqID, "")
}

// Unlock 解锁流水条目
// POST /api/v1/admin/movements/{id}/unlock
// 仅限管理员；正常纠错应追加反向条目
func (h *MovementHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := pathID(r, 5)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid movement ID", reqID, "")
		return
	}

	if err := h.ledgerService.Unlock(id); err != nil {
		if errors.Is(err, service.ErrMovementNotFound) {
			resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "movement not found", reqID, "")
			return
		}

		h.logger.Error("unlock movement failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "unlock movement failed", reqID, "")
		return
	}

	resp.OK(w, map[string]any{"id": id, "unlocked": true}, reqID, "")
}

// Amend 修改已解锁的流水条目
// PUT /api/v1/admin/movements/{id}
// 仅限管理员；修改完成后条目重新锁定
func (h *MovementHandler) Amend(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := pathID(r, 5)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid movement ID", reqID, "")
		return
	}

	var req domain.RecordMovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	movement, err := h.ledgerService.Amend(id, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMovementNotFound):
			resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "movement not found", reqID, "")
		case errors.Is(err, service.ErrMovementLocked):
			resp.Error(w, http.StatusConflict, resp.CodeConflict, "movement is locked, unlock it first", reqID, "")
		case domain.IsValidation(err):
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, err.Error(), reqID, "")
		default:
			h.logger.Error("amend movement failed", zap.String("request_id", reqID), zap.Error(err))
			resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "amend movement failed", reqID, "")
		}
		return
	}

	resp.OK(w, movement, reqID, "")
}
