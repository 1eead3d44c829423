// Package router 提供 HTTP 路由设置和中间件配置功能
package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Diouf7AH/jewellery-management-sub001/internal/api"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/config"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/limiter"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/middleware"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/service"
)

// Dependencies 包含路由设置所需的所有依赖
type Dependencies struct {
	UserHandler       *api.UserHandler
	ProductHandler    *api.ProductHandler
	MovementHandler   *api.MovementHandler
	SaleHandler       *api.SaleHandler
	AllocationHandler *api.AllocationHandler
	ShopHandler       *api.ShopHandler
	JWTService        service.JWTService

	// WriteLimiter 保护出库/取消等写密集接口，可为nil表示不限流
	WriteLimiter limiter.Limiter
}

// Router 路由器接口
type Router interface {
	Setup(cfg *config.Config, deps *Dependencies, lg *zap.Logger) http.Handler
}

// GinRouter Gin路由器实现
type GinRouter struct {
	engine *gin.Engine
	deps   *Dependencies
	cfg    *config.Config
	logger *zap.Logger
}

// New 创建新的路由器实例
func New() Router {
	return &GinRouter{}
}

// Setup 设置路由和中间件
func (r *GinRouter) Setup(cfg *config.Config, deps *Dependencies, lg *zap.Logger) http.Handler {
	// 根据环境设置 Gin 模式
	if cfg.App.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	r.engine = gin.New()
	r.deps = deps
	r.cfg = cfg
	r.logger = lg

	r.setupMiddleware(cfg)
	r.setupRoutes()

	// 外层标准库中间件包裹整个引擎，处理器层依赖上下文中的请求ID。
	// 请求进入时执行顺序为 access log → recovery → request ID → CORS → timeout
	var handler http.Handler = r.engine
	handler = middleware.Timeout(cfg.App.RequestTimeout)(handler)
	handler = middleware.CORS(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
	)(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Recovery(lg)(handler)
	handler = middleware.AccessLog(lg)(handler)

	return handler
}

// setupMiddleware 设置 Gin 中间件
func (r *GinRouter) setupMiddleware(cfg *config.Config) {
	// 恢复中间件（从 panic 中恢复）
	r.engine.Use(gin.Recovery())

	// 开发环境额外输出Gin格式的请求日志，生产环境依赖外层结构化访问日志
	if cfg.App.Env != "prod" {
		r.engine.Use(r.ginLogger())
	}
}

// setupRoutes 设置所有路由
func (r *GinRouter) setupRoutes() {
	// 健康检查
	r.engine.GET("/healthz", r.healthCheck)

	auth := adapt(middleware.AuthMiddleware(r.deps.JWTService, r.logger))
	requireManager := adapt(middleware.RequireManager(r.logger))
	requireAdmin := adapt(middleware.RequireAdmin(r.logger))

	// API v1 路由组
	v1 := r.engine.Group("/api/v1")
	{
		// 认证路由（无需认证）
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", r.wrapHandler(r.deps.UserHandler.Register))
			authGroup.POST("/login", r.wrapHandler(r.deps.UserHandler.Login))
			authGroup.POST("/refresh", r.wrapHandler(r.deps.UserHandler.RefreshToken))
		}

		// 用户路由（需要认证）
		users := v1.Group("/users")
		users.Use(auth)
		{
			users.GET("/profile", r.wrapHandler(r.deps.UserHandler.GetProfile))
		}

		// 商品与金价查询（公开）
		products := v1.Group("/products")
		{
			products.GET("", r.wrapHandler(r.deps.ProductHandler.ListProducts))
			products.GET("/:id", r.wrapHandler(r.deps.ProductHandler.GetProduct))
			products.GET("/:id/price", r.wrapHandler(r.deps.ProductHandler.GetProductWithPrice))
		}
		v1.GET("/gold-rates", r.wrapHandler(r.deps.ProductHandler.GetGoldRate))

		// 库存流水查询（需要认证）
		movements := v1.Group("/movements")
		movements.Use(auth)
		{
			movements.GET("", r.wrapHandler(r.deps.MovementHandler.List))
			movements.GET("/balance", r.wrapHandler(r.deps.MovementHandler.Balance))
			movements.GET("/:id", r.wrapHandler(r.deps.MovementHandler.Get))
		}

		// 销售与开票（需要认证）
		sales := v1.Group("/sales")
		sales.Use(auth)
		{
			sales.POST("", r.wrapHandler(r.deps.SaleHandler.CreateSale))
			sales.GET("", r.wrapHandler(r.deps.SaleHandler.ListSales))
			sales.GET("/:id", r.wrapHandler(r.deps.SaleHandler.GetSale))
			sales.GET("/:id/invoice", r.wrapHandler(r.deps.SaleHandler.GetInvoice))

			// 出库与取消改变库存，叠加限流保护
			sales.POST("/:id/fulfill", r.writeLimit(), r.wrapHandler(r.deps.SaleHandler.Fulfill))
			sales.POST("/:id/cancel", r.writeLimit(), r.wrapHandler(r.deps.SaleHandler.Cancel))
		}

		invoices := v1.Group("/invoices")
		invoices.Use(auth)
		{
			invoices.POST("", r.wrapHandler(r.deps.SaleHandler.CreateInvoice))
		}

		// 采购与供应商台账查询（需要认证）
		purchases := v1.Group("/purchases")
		purchases.Use(auth)
		{
			purchases.GET("", r.wrapHandler(r.deps.AllocationHandler.ListPurchases))
			purchases.GET("/:id", r.wrapHandler(r.deps.AllocationHandler.GetPurchase))
		}

		vendorStock := v1.Group("/vendor-stock")
		vendorStock.Use(auth)
		{
			vendorStock.GET("", r.wrapHandler(r.deps.AllocationHandler.ListVendorStock))
		}

		// 门店与供应商查询（需要认证）
		shops := v1.Group("/shops")
		shops.Use(auth)
		{
			shops.GET("", r.wrapHandler(r.deps.ShopHandler.ListShops))
			shops.GET("/:id", r.wrapHandler(r.deps.ShopHandler.GetShop))
		}

		vendors := v1.Group("/vendors")
		vendors.Use(auth)
		{
			vendors.GET("", r.wrapHandler(r.deps.ShopHandler.ListVendors))
			vendors.GET("/:id", r.wrapHandler(r.deps.ShopHandler.GetVendor))
		}

		// 主管路由（需要认证+主管及以上权限）
		manager := v1.Group("")
		manager.Use(auth, requireManager)
		{
			// 手工记录库存流水
			manager.POST("/movements", r.wrapHandler(r.deps.MovementHandler.Record))

			// 采购入库与柜台分配
			manager.POST("/purchases", r.wrapHandler(r.deps.AllocationHandler.ReceivePurchase))
			manager.POST("/vendor-stock/allocate", r.wrapHandler(r.deps.AllocationHandler.Allocate))

			// 商品与金价维护
			manager.POST("/products", r.wrapHandler(r.deps.ProductHandler.CreateProduct))
			manager.PUT("/products/:id", r.wrapHandler(r.deps.ProductHandler.UpdateProduct))
			manager.DELETE("/products/:id", r.wrapHandler(r.deps.ProductHandler.DeleteProduct))
			manager.PUT("/gold-rates", r.wrapHandler(r.deps.ProductHandler.SetGoldRate))
		}

		// 管理员路由（需要认证+管理员权限）
		admin := v1.Group("/admin")
		admin.Use(auth, requireAdmin)
		{
			// 用户管理
			adminUsers := admin.Group("/users")
			{
				adminUsers.GET("", r.wrapHandler(r.deps.UserHandler.ListUsers))
				adminUsers.PUT("/role", r.wrapHandler(r.deps.UserHandler.UpdateUserRole))
				adminUsers.PUT("/status", r.wrapHandler(r.deps.UserHandler.UpdateUserStatus))
				adminUsers.PUT("/shop", r.wrapHandler(r.deps.UserHandler.AssignShop))
			}

			// 流水修正，解锁后修改并自动重新锁定
			adminMovements := admin.Group("/movements")
			{
				adminMovements.POST("/:id/unlock", r.wrapHandler(r.deps.MovementHandler.Unlock))
				adminMovements.PUT("/:id", r.wrapHandler(r.deps.MovementHandler.Amend))
			}
		}

		// 门店与供应商创建（管理员）
		managed := v1.Group("")
		managed.Use(auth, requireAdmin)
		{
			managed.POST("/shops", r.wrapHandler(r.deps.ShopHandler.CreateShop))
			managed.POST("/vendors", r.wrapHandler(r.deps.ShopHandler.CreateVendor))
		}
	}
}

// writeLimit 返回写接口限流中间件，未配置限流器时为空操作
func (r *GinRouter) writeLimit() gin.HandlerFunc {
	if r.deps.WriteLimiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return limiter.Middleware(r.deps.WriteLimiter, limiter.PerIPKey("fulfillment"), r.logger)
}

// healthCheck 健康检查处理器
func (r *GinRouter) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": r.cfg.App.Version,
	})
}

// wrapHandler 将标准的 http.HandlerFunc 包装为 gin.HandlerFunc
func (r *GinRouter) wrapHandler(handler func(http.ResponseWriter, *http.Request)) gin.HandlerFunc {
	return gin.WrapF(handler)
}

// adapt 将标准库风格的中间件转换为 gin.HandlerFunc。
// 内层处理器被调用说明中间件放行，携带更新后的请求继续执行链路；
// 未被调用说明中间件已写出响应，终止后续处理。
func adapt(mw func(http.Handler) http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		passed := false
		mw(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			passed = true
			c.Request = req
		})).ServeHTTP(c.Writer, c.Request)

		if !passed {
			c.Abort()
			return
		}
		c.Next()
	}
}

// ginLogger 自定义 Gin 日志中间件
func (r *GinRouter) ginLogger() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format("02/Jan/2006:15:04:05 -0700"),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	})
}
