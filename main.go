package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yashrajoria/storefront/cache"
	"github.com/yashrajoria/storefront/controllers"
	"github.com/yashrajoria/storefront/database"
	"github.com/yashrajoria/storefront/middleware"
	"github.com/yashrajoria/storefront/models"
	aws_pkg "github.com/yashrajoria/storefront/pkg/aws"
	"github.com/yashrajoria/storefront/repository"
	"github.com/yashrajoria/storefront/routes"
	"github.com/yashrajoria/storefront/services"
)

func main() {
	_ = godotenv.Load()

	// CloudWatch Logs shipper (non-fatal). Zap tees into it when enabled.
	cwLogs, cwErr := aws_pkg.NewCloudWatchLogsClient(context.Background(), "storefront-api")
	logger := buildLogger(cwLogs)
	defer logger.Sync()
	if cwErr != nil {
		logger.Warn("CloudWatch logs client init failed (non-fatal)", zap.Error(cwErr))
	}

	cfg, err := LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	db, err := database.Connect(logger, cfg.DSN(),
		&models.User{}, &models.Customer{},
		&models.Category{}, &models.Product{},
		&models.Cart{}, &models.CartItem{},
		&models.Order{}, &models.OrderItem{},
	)
	if err != nil {
		logger.Fatal("Database connection failed", zap.Error(err))
	}

	// --- AWS clients (non-fatal) ---
	var snsPublisher aws_pkg.SNSPublisher
	if awsCfg, err := aws_pkg.LoadAWSConfig(context.Background()); err != nil {
		logger.Warn("AWS config load failed, order events disabled", zap.Error(err))
	} else {
		snsPublisher = aws_pkg.NewSNSClient(awsCfg)
	}

	metricsClient, err := aws_pkg.NewMetricsClient(context.Background())
	if err != nil {
		logger.Warn("CloudWatch metrics client init failed (non-fatal)", zap.Error(err))
	}

	// --- Redis cache (non-fatal) ---
	var appCache *cache.Cache
	if cfg.RedisURL != "" {
		redisClient, err := cache.NewRedisClient(context.Background(), cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis connection failed, caching disabled", zap.Error(err))
		} else {
			appCache = cache.New(redisClient, cfg.CacheTTL, logger)
		}
	}

	// --- Service wiring ---
	userRepo := repository.NewGormUserRepository(db)
	customerRepo := repository.NewGormCustomerRepository(db)
	categoryRepo := repository.NewGormCategoryRepository(db)
	productRepo := repository.NewGormProductRepository(db)
	cartRepo := repository.NewGormCartRepository(db)
	orderRepo := repository.NewGormOrderRepository(db)

	txRunner := database.NewGormTransactor(db)

	tokenService := services.NewTokenService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	authService := services.NewAuthService(userRepo, customerRepo, txRunner, tokenService, logger)
	categoryService := services.NewCategoryService(categoryRepo, txRunner, appCache, logger)
	productService := services.NewProductService(productRepo, categoryRepo, cartRepo, orderRepo, txRunner, appCache, logger)
	cartService := services.NewCartService(cartRepo, productRepo, customerRepo, txRunner, logger)

	shipping := services.NewFlatRateShipping(cfg.ShippingFlatRate, cfg.ShippingFreeThreshold)
	orderService := services.NewOrderService(
		orderRepo, cartRepo, productRepo, customerRepo, txRunner,
		shipping, cfg.TaxRate, appCache,
		snsPublisher, cfg.OrderSNSTopicARN, logger,
	)

	authController := controllers.NewAuthController(authService)
	categoryController := controllers.NewCategoryController(categoryService)
	productController := controllers.NewProductController(productService)
	cartController := controllers.NewCartController(cartService)
	orderController := controllers.NewOrderController(orderService)

	// --- HTTP router ---
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, cfg.RateLimitBurst))
	r.Use(middleware.Metrics(metricsClient))
	r.Use(middleware.RequestLogger(logger))

	// Request timeout
	r.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	routes.RegisterAuthRoutes(r, tokenService, authController)
	routes.RegisterCategoryRoutes(r, tokenService, categoryController)
	routes.RegisterProductRoutes(r, tokenService, productController)
	routes.RegisterCartRoutes(r, tokenService, cartController)
	routes.RegisterOrderRoutes(r, tokenService, orderController)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logger.Info("Storefront API started", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	if err := database.Close(db); err != nil {
		logger.Warn("Database close failed", zap.Error(err))
	}
	logger.Info("Server exited cleanly")
}

// buildLogger returns a production Zap logger. When CloudWatch log shipping
// is enabled the logger tees every entry to the stream as well as stdout.
func buildLogger(cw *aws_pkg.CloudWatchLogsClient) *zap.Logger {
	if cw == nil || !cw.IsEnabled() {
		logger, _ := zap.NewProduction()
		return logger
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encCfg)
	level := zap.NewAtomicLevelAt(zap.InfoLevel)

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level),
		zapcore.NewCore(encoder, zapcore.AddSync(cw), level),
	)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}
