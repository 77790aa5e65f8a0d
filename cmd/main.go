package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"subsettle/internal/caching"
	"subsettle/internal/handlers"
	"subsettle/internal/jobs"
	"subsettle/internal/middleware"
	"subsettle/internal/repositories"
	"subsettle/internal/services"
	"subsettle/pkg/database"
)

func main() {
	// Database connection
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pool, err := database.NewPool(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// JWT configuration
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}

	// Redis configuration
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379" // Default Redis address
	}
	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDB := 0 // Default DB
	if redisDBStr := os.Getenv("REDIS_DB"); redisDBStr != "" {
		if db, err := strconv.Atoi(redisDBStr); err == nil {
			redisDB = db
		}
	}

	// MinIO configuration for the receipt archive
	minioEndpoint := os.Getenv("MINIO_ENDPOINT")
	if minioEndpoint == "" {
		minioEndpoint = "localhost:9000"
	}
	minioAccessKey := os.Getenv("MINIO_ACCESS_KEY")
	if minioAccessKey == "" {
		minioAccessKey = "minioadmin" // Default for development
	}
	minioSecretKey := os.Getenv("MINIO_SECRET_KEY")
	if minioSecretKey == "" {
		minioSecretKey = "minioadmin" // Default for development
	}
	minioBucket := os.Getenv("MINIO_BUCKET")
	if minioBucket == "" {
		minioBucket = "subsettle-receipts"
	}
	useSSL := os.Getenv("MINIO_USE_SSL") == "true"

	archiveSvc, err := services.NewArchiveService(minioEndpoint, minioAccessKey, minioSecretKey, minioBucket, useSSL)
	if err != nil {
		log.Fatalf("Failed to initialize archive service: %v", err)
	}
	if err := archiveSvc.EnsureBucketExists(context.Background(), minioBucket); err != nil {
		log.Printf("WARN: could not ensure receipt bucket exists: %v", err)
	}

	// Settlement addressing
	settlementCfg := services.SettlementConfig{
		EngineAddress:  mustEnv("ENGINE_ADDRESS"),
		Treasury:       mustEnv("TREASURY_ADDRESS"),
		ReferenceToken: mustEnv("REFERENCE_TOKEN"),
	}

	// AMM router adapter
	swapSvc, err := services.NewSwapService(services.SwapConfig{
		RouterURL:      mustEnv("ROUTER_URL"),
		ReferenceToken: settlementCfg.ReferenceToken,
		AcceptedTokens: strings.Split(mustEnv("ACCEPTED_TOKENS"), ","),
		SlippageBps:    envInt64("SLIPPAGE_BPS", 50),
		DeadlineWindow: time.Duration(envInt64("SWAP_DEADLINE_MINUTES", 10)) * time.Minute,
	})
	if err != nil {
		log.Fatalf("Failed to initialize swap gateway: %v", err)
	}

	// Token custody adapter
	tokenSvc := services.NewTokenService(mustEnv("CUSTODY_URL"), os.Getenv("CUSTODY_API_KEY"))

	// Create repositories
	subscriptionRepo := repositories.NewSubscriptionRepo(pool)
	receiptRepo := repositories.NewReceiptRepo(pool)
	journalRepo := repositories.NewJournalRepo(pool)
	priceAuditRepo := repositories.NewPriceAuditRepo(pool)
	settlementStore := repositories.NewSettlementStore(pool)

	// Create cache service
	cacheSvc := caching.NewRedisCacheService(redisAddr, redisPassword, redisDB)

	// Create services
	pricingCfg := services.PricingConfig{
		MonthlyPrice:      envInt64("MONTHLY_PRICE", 10),
		YearlyPrice:       envInt64("YEARLY_PRICE", 100),
		YearlyDiscountBps: envInt64("YEARLY_DISCOUNT_BPS", 0),
	}
	// An operator may have changed the schedule since deploy; the persisted
	// copy wins over env defaults. Persisted prices are already net of
	// discount, so none is reapplied.
	if monthly, yearly, found, err := cacheSvc.GetPrices(context.Background()); err != nil {
		log.Printf("WARN: could not read persisted price schedule: %v", err)
	} else if found {
		log.Printf("Restored price schedule: monthly=%d yearly=%d", monthly, yearly)
		pricingCfg = services.PricingConfig{MonthlyPrice: monthly, YearlyPrice: yearly}
	}

	pricingSvc, err := services.NewPricingService(pricingCfg, priceAuditRepo, cacheSvc)
	if err != nil {
		log.Fatalf("Invalid price schedule: %v", err)
	}

	ledgerSvc := services.NewLedgerService(subscriptionRepo, cacheSvc)
	settlementSvc := services.NewSettlementService(
		settlementCfg,
		pricingSvc,
		swapSvc,
		tokenSvc,
		ledgerSvc,
		subscriptionRepo,
		journalRepo,
		settlementStore,
		cacheSvc,
		archiveSvc,
	)

	// Journal reconciler: sweep crash leftovers once at startup, then on a
	// schedule.
	reconciler, err := jobs.NewReconciler(journalRepo, tokenSvc, settlementCfg)
	if err != nil {
		log.Fatalf("Failed to initialize reconciler: %v", err)
	}
	if err := reconciler.Run(context.Background()); err != nil {
		log.Printf("WARN: startup reconciliation sweep failed: %v", err)
	}
	reconciler.Start()
	defer reconciler.Stop()

	// Create handlers
	settlementHandlers := handlers.NewSettlementHandlers(settlementSvc, receiptRepo, archiveSvc)
	ledgerHandlers := handlers.NewLedgerHandlers(ledgerSvc, pricingSvc, subscriptionRepo)
	pricingHandlers := handlers.NewPricingHandlers(pricingSvc, priceAuditRepo)
	healthHandlers := handlers.NewHealthHandlers(pool, cacheSvc)

	// Create Echo instance
	e := echo.New()

	// Global middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())

	// Health endpoints (no auth required)
	e.GET("/health", healthHandlers.HealthCheck)
	e.GET("/health/ready", healthHandlers.ReadinessCheck)
	e.GET("/health/detailed", healthHandlers.HealthCheckDetailed)

	// API routes
	v1 := e.Group("/v1")

	// Public query surface (no auth; subscription state is public information)
	v1.GET("/users/:address", ledgerHandlers.GetUserInfo)
	v1.GET("/prices/monthly", ledgerHandlers.GetMonthlyPrice)
	v1.GET("/prices/yearly", ledgerHandlers.GetYearlyPrice)

	// Protected routes (require JWT with a settlement address claim)
	jwtConfig := echojwt.Config{
		SigningKey: []byte(jwtSecret),
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(middleware.JWTCustomClaims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(401, "Invalid token")
		},
	}

	protected := v1.Group("")
	protected.Use(echojwt.WithConfig(jwtConfig))
	protected.Use(middleware.BindClaims())

	payLimiter := middleware.RateLimit(cacheSvc, int(envInt64("PAY_RATE_LIMIT", 10)), time.Minute)
	protected.POST("/pay/monthly", settlementHandlers.PayMonthly, payLimiter)
	protected.POST("/pay/yearly", settlementHandlers.PayYearly, payLimiter)
	protected.GET("/receipts", settlementHandlers.ListReceipts)
	protected.GET("/receipts/:id/archive", settlementHandlers.GetReceiptArchiveLink)

	// Operator-only surface
	operator := protected.Group("/prices")
	operator.Use(middleware.RequireOperator())
	operator.PUT("", pricingHandlers.UpdatePrices)
	operator.GET("/audit", pricingHandlers.ListPriceAuditEvents)
	protected.GET("/subscriptions", ledgerHandlers.ListSubscriptions, middleware.RequireOperator())

	// Start server
	portStr := os.Getenv("PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Fatalf("Invalid port %s: %v", portStr, err)
	}

	log.Printf("Settlement engine starting on port %d", port)
	e.Logger.Fatal(e.Start(fmt.Sprintf(":%d", port)))
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatalf("%s environment variable is required", key)
	}
	return value
}

func envInt64(key string, fallback int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		log.Fatalf("Invalid %s: %v", key, err)
	}
	return parsed
}
