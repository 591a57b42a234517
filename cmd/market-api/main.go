package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"kabonia/marketplace/marketplace-backend/internal/auth"
	"kabonia/marketplace/marketplace-backend/internal/config"
	"kabonia/marketplace/marketplace-backend/internal/ledger"
	"kabonia/marketplace/marketplace-backend/internal/market"
	"kabonia/marketplace/marketplace-backend/internal/notifications"
	"kabonia/marketplace/marketplace-backend/internal/projects"
	"kabonia/marketplace/marketplace-backend/internal/tokens"
	"kabonia/marketplace/marketplace-backend/internal/valuation"
	"kabonia/marketplace/marketplace-backend/internal/verification"
	"kabonia/marketplace/marketplace-backend/internal/wallet"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		panic(err)
	}

	var logger *zap.Logger
	if cfg.Logging.Level == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("connecting to database",
		zap.String("host", cfg.Database.Host),
		zap.String("dbname", cfg.Database.DBName))

	db, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	// Custody backend and market ticker
	custody := ledger.NewLocal(logger)
	ticker := notifications.NewTicker(logger)
	defer ticker.Close()

	summaryCache := market.NewSummaryCache(cfg.Market.SummaryCacheTTL)
	defer summaryCache.Stop()

	// Auth
	authRepo := auth.NewRepository(db)
	authService := auth.NewService(authRepo, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authHandler := auth.NewHandler(authService)

	// Projects
	projectRepo := projects.NewRepository(db)
	projectService := projects.NewService(projectRepo, logger)
	projectHandler := projects.NewHandler(projectService)

	// Wallet
	walletRepo := wallet.NewRepository(db)
	walletService := wallet.NewService(walletRepo, logger)
	walletHandler := wallet.NewHandler(walletService)

	// Market
	marketRepo := market.NewRepository(db)
	marketService := market.NewService(marketRepo, walletService, custody, ticker, summaryCache, logger)
	marketHandler := market.NewHandler(marketService)

	// Tokens
	tokenRepo := tokens.NewRepository(db)
	tokenService := tokens.NewService(tokenRepo, projectRepo, marketRepo, custody, walletService, logger)
	tokenHandler := tokens.NewHandler(tokenService)

	// Verification
	verificationRepo := verification.NewRepository(db)
	verificationService := verification.NewService(verificationRepo, projectRepo, authRepo, logger)
	verificationHandler := verification.NewHandler(verificationService)

	// Valuation
	valuationRepo := valuation.NewRepository(db)
	valuationService := valuation.NewService(valuationRepo, projectRepo, logger)
	valuationHandler := valuation.NewHandler(valuationService)

	// Expired listings sweep
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Market.ExpirySweepCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := marketService.SweepExpiredListings(ctx); err != nil {
			logger.Error("listing expiry sweep failed", zap.Error(err))
		}
	}); err != nil {
		logger.Fatal("invalid expiry sweep schedule", zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	api := router.Group("/api/v1")
	{
		authHandler.RegisterRoutes(api)
		marketHandler.RegisterPublicRoutes(api)

		protected := api.Group("")
		protected.Use(auth.Middleware(authService))
		{
			authHandler.RegisterProtectedRoutes(protected)
			projectHandler.RegisterRoutes(protected)
			tokenHandler.RegisterRoutes(protected)
			marketHandler.RegisterRoutes(protected)
			walletHandler.RegisterRoutes(protected)
			verificationHandler.RegisterRoutes(protected)
			valuationHandler.RegisterRoutes(protected)
		}
	}

	router.GET("/ws/market", func(c *gin.Context) {
		if err := ticker.HandleConnection(c.Writer, c.Request); err != nil {
			logger.Error("websocket upgrade failed", zap.Error(err))
		}
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	srv := &http.Server{
		Addr:    cfg.Server.GetServerAddr(),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	logger.Info("server started", zap.Int("port", cfg.Server.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exiting")
}
