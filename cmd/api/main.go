package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salesledger/internal/cache"
	"salesledger/internal/config"
	"salesledger/internal/database"
	"salesledger/internal/events"
	"salesledger/internal/handler"
	"salesledger/internal/logger"
	"salesledger/internal/middleware"
	"salesledger/internal/repository"
	"salesledger/internal/service"
	"salesledger/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Sales Ledger API
// @version         1.0
// @description     Orders, payments, returns, stock and customer debt for a distribution business.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	log := logger.Get()

	cfg, err := config.Load("configs/.env")
	if err != nil {
		log.Fatalf("Config load failed: %v", err)
	}
	logger.SetLevel(cfg.Log.Level)
	gin.SetMode(cfg.Mode)

	db, err := database.NewConnection(cfg.DB)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Info("Connected to PostgreSQL successfully.")

	// Set up WebSocket Hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	publishers := events.Multi{wsHub}
	if brokers := cfg.Kafka.BrokerList(); len(brokers) > 0 {
		kafka, err := events.NewKafkaPublisher(brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Fatalf("Kafka producer failed: %v", err)
		}
		defer kafka.Close()
		publishers = append(publishers, kafka)
		log.WithField("topic", cfg.Kafka.Topic).Info("Publishing ledger events to Kafka")
	}

	var idemStore cache.Store
	if cfg.Redis.Address != "" {
		store, rdb, err := cache.NewRedisStore(context.Background(), cfg.Redis)
		if err != nil {
			log.Fatalf("Redis connection failed: %v", err)
		}
		defer rdb.Close()
		idemStore = store
		log.Info("Idempotency keys backed by Redis")
	}

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	productRepo := repository.NewProductRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	returnRepo := repository.NewReturnRepository(db)
	stockLogRepo := repository.NewStockLogRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	secret := []byte(cfg.JWT.Secret)
	attempts := cfg.Ledger.CodeRetryAttempts

	userService := service.NewUserService(userRepo, secret, time.Duration(cfg.JWT.TTLHours)*time.Hour)
	catalogService := service.NewCatalogService(productRepo, customerRepo, auditRepo, txManager, attempts)
	orderService := service.NewOrderService(orderRepo, customerRepo, productRepo, paymentRepo, auditRepo, txManager, publishers, attempts)
	paymentService := service.NewPaymentService(orderRepo, customerRepo, paymentRepo, auditRepo, txManager, publishers)
	returnService := service.NewReturnService(orderRepo, customerRepo, productRepo, returnRepo, stockLogRepo, auditRepo, txManager, publishers, attempts)
	stockService := service.NewStockService(productRepo, stockLogRepo, auditRepo, txManager, publishers)
	auditService := service.NewAuditService(auditRepo)

	if err := userService.EnsureAdmin(context.Background(), cfg.Admin); err != nil {
		log.Fatalf("Admin bootstrap failed: %v", err)
	}

	// Initialize Handlers
	guard := handler.NewRoleGuard(secret)
	idempotent := middleware.Idempotency(idemStore)
	userHandler := handler.NewUserHandler(userService, guard, cfg.Mode == gin.ReleaseMode)
	catalogHandler := handler.NewCatalogHandler(catalogService, guard)
	orderHandler := handler.NewOrderHandler(orderService, paymentService, returnService, guard, idempotent)
	stockHandler := handler.NewStockHandler(stockService, guard, idempotent)
	auditHandler := handler.NewAuditHandler(auditService, guard)

	// Set up Gin Router
	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORS.OriginList()
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", middleware.IdempotencyHeader}
	corsConfig.ExposeHeaders = []string{"Content-Disposition", middleware.ReplayedHeader}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger UI; docs are generated with: swag init -g cmd/api/main.go
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "ws_clients": wsHub.ClientCount()})
	})

	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, secret)
	})

	root := router.Group("")
	userHandler.RegisterRoutes(root)
	catalogHandler.RegisterRoutes(root)
	orderHandler.RegisterRoutes(root)
	stockHandler.RegisterRoutes(root)
	auditHandler.RegisterRoutes(root)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Server listening on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("Server shutdown error: %v", err)
	}
}
