package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "procurement/api/swagger" // swagger docs
	"procurement/internal/config"
	"procurement/internal/database"
	"procurement/internal/handler"
	"procurement/internal/logger"
	"procurement/internal/middleware"
	"procurement/internal/repository"
	"procurement/internal/service"
	"procurement/internal/websocket"
	"procurement/internal/workflow"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           Procurement Approval API
// @version         1.0
// @description     Purchase orders, bills, goods receipts, expenses and TDS deductions with permission-gated approval workflows.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	if !cfg.EnvFileLoaded {
		log.Info("no configs/.env file found, using process environment")
	}
	if cfg.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(cfg.DSN(), log)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	log.Info("connected to postgres", zap.String("host", cfg.DBHost), zap.String("db", cfg.DBName))

	registry := workflow.MustDefaultRegistry()

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	documentRepo := repository.NewDocumentRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	tdsRepo := repository.NewTDSSectionRepository(db)
	vendorRepo := repository.NewVendorRepository(db)
	stockRepo := repository.NewStockRepository(db)

	roleService := service.NewRoleService(roleRepo, txManager)
	if err := roleService.SeedDefaultRolesAndPermissions(ctx); err != nil {
		return fmt.Errorf("failed to seed roles: %w", err)
	}

	userService := service.NewUserService(userRepo, roleRepo, []byte(cfg.JWTSecret), cfg.JWTTTL)
	created, err := userService.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	if created {
		log.Info("created initial admin user", zap.String("email", cfg.AdminEmail))
	}

	hub := websocket.NewHub(log)
	go hub.Run(ctx)

	tdsService := service.NewTDSService(tdsRepo, auditRepo, txManager)
	vendorService := service.NewVendorService(vendorRepo, txManager)
	stockService := service.NewStockService(stockRepo)
	documentService := service.NewDocumentService(service.DocumentServiceConfig{
		Registry:     registry,
		Documents:    documentRepo,
		Audit:        auditRepo,
		Tx:           txManager,
		Validator:    service.NewPayloadValidator(time.Hour),
		Rates:        tdsService,
		Vendors:      vendorService,
		Stock:        stockService,
		Events:       hub,
		BaseCurrency: cfg.BaseCurrency,
		Logger:       log,
	})
	auditService := service.NewAuditService(auditRepo)
	dashboardService := service.NewDashboardService(registry, documentService)

	auth := middleware.NewAuthenticator([]byte(cfg.JWTSecret), roleService.GetPermissionsByRoleName,
		cfg.PermissionCacheSize, cfg.PermissionCacheTTL, cfg.IsRelease())

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(log), middleware.Metrics())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "ws_clients": hub.Clients()})
	})

	router.GET("/ws", func(c *gin.Context) {
		hub.ServeWs(c, []byte(cfg.JWTSecret), auth.Permissions)
	})

	public := router.Group("")
	handler.NewUserHandler(userService, auth).RegisterRoutes(public)

	api := router.Group("", auth.Authenticate())
	for _, kind := range registry.Kinds() {
		handler.NewDocumentHandler(kind, documentService, auth).RegisterRoutes(api)
	}
	handler.NewTDSHandler(tdsService, auth).RegisterRoutes(api)
	handler.NewVendorHandler(vendorService, auth).RegisterRoutes(api)
	handler.NewStockHandler(stockService, auth).RegisterRoutes(api)
	handler.NewRoleHandler(roleService, auth).RegisterRoutes(api)
	handler.NewAuditHandler(auditService, auth).RegisterRoutes(api)
	handler.NewDashboardHandler(dashboardService).RegisterRoutes(api)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
