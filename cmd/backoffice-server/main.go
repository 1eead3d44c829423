package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/Diouf7AH/jewellery-management-sub001/internal/api"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/cache"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/config"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/database"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/limiter"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/logger"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/mq"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/repo"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/router"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/service"
)

// initConfigAndLogger 初始化配置和日志器
func initConfigAndLogger() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %v", err)
	}

	lg, err := logger.New(cfg.App.Env, cfg.Log.Level, cfg.Log.Encoding, cfg.App.Name, cfg.App.Version)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %v", err)
	}

	return cfg, lg, nil
}

// initDatabase 初始化数据库连接并执行迁移
func initDatabase(cfg *config.Config, lg *zap.Logger) (*database.DB, error) {
	db, err := database.New(cfg, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	// HTTP服务器启动前执行迁移，确保处理请求时表结构已就绪
	migrationsDir := cfg.Migrations.Dir
	lg.Sugar().Infow("using migrations directory", "path", migrationsDir)

	if err := db.RunMigrations(migrationsDir); err != nil {
		return nil, fmt.Errorf("failed to run database migrations: %v", err)
	}

	return db, nil
}

// initCache 初始化缓存实例
func initCache(cfg *config.Config, lg *zap.Logger) cache.Cache {
	var cacheInstance cache.Cache
	if cfg.Cache.Enabled {
		switch cfg.Cache.Type {
		case "redis":
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			redisCache, err := cache.NewRedisCache(redisAddr, cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				lg.Sugar().Warnw("failed to connect to Redis, falling back to memory cache", "error", err)
				cacheInstance = cache.NewMemoryCache()
				lg.Sugar().Infow("cache enabled", "type", "memory (fallback)", "ttl", cfg.Cache.TTL)
			} else {
				cacheInstance = redisCache
				lg.Sugar().Infow("cache enabled", "type", "redis", "addr", redisAddr, "ttl", cfg.Cache.TTL)
			}
		case "memory":
			cacheInstance = cache.NewMemoryCache()
			lg.Sugar().Infow("cache enabled", "type", "memory", "ttl", cfg.Cache.TTL)
		default:
			lg.Sugar().Warnw("unknown cache type, using memory cache", "type", cfg.Cache.Type)
			cacheInstance = cache.NewMemoryCache()
			lg.Sugar().Infow("cache enabled", "type", "memory (default)", "ttl", cfg.Cache.TTL)
		}
	} else {
		cacheInstance = cache.NewNullCache()
		lg.Sugar().Infow("cache disabled")
	}
	return cacheInstance
}

// initMessaging 初始化RabbitMQ连接、事件生产者与汇总消费者。
// MQ未启用或连接失败时返回nil生产者，服务降级为不发布事件。
func initMessaging(
	ctx context.Context,
	cfg *config.Config,
	movementRepo repo.MovementRepository,
	summaryCache cache.Cache,
	lg *zap.Logger,
) (*mq.ConnectionManager, *mq.StockEventPublisher, *mq.StockSummaryConsumer) {
	if !cfg.MQ.Enabled {
		lg.Sugar().Infow("message queue disabled")
		return nil, nil, nil
	}

	mqCfg := mq.DefaultConfig()
	mqCfg.Host = cfg.MQ.Host
	mqCfg.Port = cfg.MQ.Port
	mqCfg.Username = cfg.MQ.Username
	mqCfg.Password = cfg.MQ.Password
	mqCfg.VHost = cfg.MQ.VHost

	cm := mq.NewConnectionManager(mqCfg, lg)
	if err := cm.Connect(ctx); err != nil {
		lg.Sugar().Warnw("failed to connect to RabbitMQ, events disabled", "error", err)
		return nil, nil, nil
	}

	publisher := mq.NewStockEventPublisher(cm, mqCfg.Producer, lg)
	if err := publisher.SetupTopology(ctx); err != nil {
		lg.Sugar().Warnw("failed to set up MQ topology, events disabled", "error", err)
		return cm, nil, nil
	}

	consumer := mq.NewStockSummaryConsumer(cm, movementRepo, summaryCache, cfg.Cache.TTL, lg)
	if err := consumer.Start(ctx); err != nil {
		lg.Sugar().Warnw("failed to start stock summary consumer", "error", err)
		consumer = nil
	}

	lg.Sugar().Infow("message queue connected", "host", cfg.MQ.Host, "port", cfg.MQ.Port)
	return cm, publisher, consumer
}

// initWriteLimiter 初始化写接口限流器，仅在Redis缓存可用时启用
func initWriteLimiter(cacheInstance cache.Cache, lg *zap.Logger) limiter.Limiter {
	redisCache, ok := cacheInstance.(*cache.RedisCache)
	if !ok {
		lg.Sugar().Infow("write rate limiting disabled, requires redis")
		return nil
	}

	return limiter.NewTokenBucketLimiter(redisCache.Client(), &limiter.Config{
		Rate:      20,
		Window:    time.Second,
		Burst:     40,
		KeyPrefix: "ratelimit:write",
	})
}

// initDependencies 初始化应用依赖（仓储、服务、处理器）
func initDependencies(
	ctx context.Context,
	cfg *config.Config,
	db *database.DB,
	cacheInstance cache.Cache,
	lg *zap.Logger,
) (*router.Dependencies, func()) {
	// 依赖注入链：仓储 -> 服务 -> API处理器
	userRepo := repo.NewUserRepository(db.DB)
	userService := service.NewUserService(userRepo, lg)
	jwtService := service.NewJWTService(cfg, lg)
	userHandler := api.NewUserHandler(userService, jwtService, lg)

	baseProductRepo := repo.NewProductRepository(db.DB)
	var productRepo repo.ProductRepository
	if cfg.Cache.Enabled {
		productRepo = repo.NewCachedProductRepository(baseProductRepo, cacheInstance, cfg.Cache.TTL)
	} else {
		productRepo = baseProductRepo
	}
	productService := service.NewProductService(productRepo, lg)
	productHandler := api.NewProductHandler(productService, lg)

	movementRepo := repo.NewMovementRepository(db.DB)
	saleRepo := repo.NewSaleRepository(db.DB)
	purchaseRepo := repo.NewPurchaseRepository(db.DB)
	vendorStockRepo := repo.NewVendorStockRepository(db.DB)
	shopRepo := repo.NewShopRepository(db.DB)
	vendorRepo := repo.NewVendorRepository(db.DB)

	// 消息层可选，连接失败不阻塞启动
	cm, events, consumer := initMessaging(ctx, cfg, movementRepo, cacheInstance, lg)

	ledgerService := service.NewLedgerService(movementRepo, events, lg)
	movementHandler := api.NewMovementHandler(ledgerService, lg)

	allocationService := service.NewAllocationService(db, purchaseRepo, vendorStockRepo, movementRepo, lg)
	allocationHandler := api.NewAllocationHandler(allocationService, lg)

	saleService := service.NewSaleService(saleRepo, lg)
	fulfillmentService := service.NewFulfillmentService(db, saleRepo, movementRepo, vendorStockRepo, events, lg)
	saleHandler := api.NewSaleHandler(saleService, fulfillmentService, lg)

	shopService := service.NewShopService(shopRepo, vendorRepo, lg)
	shopHandler := api.NewShopHandler(shopService, lg)

	deps := &router.Dependencies{
		UserHandler:       userHandler,
		ProductHandler:    productHandler,
		MovementHandler:   movementHandler,
		SaleHandler:       saleHandler,
		AllocationHandler: allocationHandler,
		ShopHandler:       shopHandler,
		JWTService:        jwtService,
		WriteLimiter:      initWriteLimiter(cacheInstance, lg),
	}

	cleanup := func() {
		if consumer != nil {
			if err := consumer.Stop(); err != nil {
				lg.Sugar().Errorw("failed to stop stock summary consumer", "error", err)
			}
		}
		if events != nil {
			if err := events.Close(); err != nil {
				lg.Sugar().Errorw("failed to close event publisher", "error", err)
			}
		}
		if cm != nil {
			if err := cm.Close(); err != nil {
				lg.Sugar().Errorw("failed to close MQ connection", "error", err)
			}
		}
	}
	return deps, cleanup
}

// startServer 启动服务器并处理优雅关闭
func startServer(cfg *config.Config, handler http.Handler, lg *zap.Logger) {
	addr := fmt.Sprintf(":%d", cfg.App.Port)
	lg.Sugar().Infow("server starting", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	select {
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			lg.Sugar().Fatalw("server error", "err", err)
		}
	case <-quit:
		lg.Sugar().Infow("shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		lg.Sugar().Errorw("server shutdown error", "err", err)
	}
	lg.Sugar().Infow("server exited")
}

// main 为应用入口，协调各个组件的初始化和启动
func main() {
	// 1) 加载配置和初始化日志
	cfg, lg, err := initConfigAndLogger()
	if err != nil {
		log.Fatalf("failed to initialize config and logger: %v", err)
	}

	// 2) 初始化数据库连接并执行迁移
	db, err := initDatabase(cfg, lg)
	if err != nil {
		lg.Sugar().Fatalw("failed to initialize database", "err", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			lg.Sugar().Errorw("failed to close database connection", "err", err)
		}
	}()

	// 3) 初始化缓存
	cacheInstance := initCache(cfg, lg)

	// 4) 初始化应用依赖（仓储、服务、处理器、消息层）
	ctx := context.Background()
	deps, cleanup := initDependencies(ctx, cfg, db, cacheInstance, lg)
	defer cleanup()

	// 5) 设置路由和中间件
	handler := router.New().Setup(cfg, deps, lg)

	// 6) 启动 HTTP 服务器
	startServer(cfg, handler, lg)
}
