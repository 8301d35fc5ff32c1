package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mosaichq/license-api/internal/config"
	"github.com/mosaichq/license-api/internal/handler"
	"github.com/mosaichq/license-api/internal/handler/middleware"
	"github.com/mosaichq/license-api/internal/ierr"
	"github.com/mosaichq/license-api/internal/keycodec"
	"github.com/mosaichq/license-api/internal/service"
	"github.com/mosaichq/license-api/internal/storage/memstorage"
	"github.com/mosaichq/license-api/internal/storage/postgres"
	"github.com/mosaichq/license-api/internal/storage/redis"
	"github.com/mosaichq/license-api/internal/worker"
	"github.com/mosaichq/license-api/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "./configs/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	appLogger, err := logger.NewZapLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()

	sugarLogger := appLogger.Sugar()
	sugarLogger.Info("Starting license API...")

	appCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := postgres.NewPgxPool(appCtx, &cfg.Database, appLogger)
	if err != nil {
		sugarLogger.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer dbPool.Close()

	redisClient, err := redis.NewRedisClient(appCtx, &cfg.Redis, appLogger)
	if err != nil {
		sugarLogger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	codec, err := keycodec.New(cfg.License.HMACSecret)
	if err != nil {
		sugarLogger.Fatalf("Failed to construct key codec: %v", err)
	}

	customerRepo := postgres.NewCustomerRepository(dbPool, appLogger)
	licenseRepo := postgres.NewLicenseRepository(dbPool, appLogger)
	trialRepo := postgres.NewTrialUsageRepository(dbPool, appLogger)

	userRepoMock, err := memstorage.NewUserRepositoryMock(cfg.Admin.Username, cfg.Admin.Password)
	if err != nil {
		sugarLogger.Fatalf("Failed to set up admin user: %v", err)
	}

	issuanceService := service.NewIssuanceService(customerRepo, licenseRepo, codec, appLogger)
	verifyService := service.NewVerifyService(licenseRepo, trialRepo, codec, appLogger)
	reconcileService := service.NewReconcileService(issuanceService, customerRepo, licenseRepo, appLogger)
	statsService := service.NewStatsService(licenseRepo, trialRepo, appLogger)
	authService, err := service.NewAuthService(userRepoMock, &cfg.JWT, appLogger)
	if err != nil {
		sugarLogger.Fatalf("Failed to construct auth service: %v", err)
	}

	healthHandler := handler.NewHealthHandler(dbPool, redisClient, appLogger)
	licenseHandler := handler.NewLicenseHandler(issuanceService, verifyService, licenseRepo, appLogger)
	webhookHandler := handler.NewWebhookHandler(reconcileService, cfg.Stripe.WebhookSecret, appLogger)
	authHandler := handler.NewAuthHandler(authService, appLogger)
	dashboardHandler := handler.NewDashboardHandler(statsService, appLogger)

	authMiddleware := middleware.AuthMiddleware(authService, appLogger)
	adminTokenMiddleware := middleware.AdminTokenMiddleware(cfg.License.AdminToken, appLogger)
	errorMiddleware := middleware.ErrorHandlerMiddleware(appLogger)

	router := gin.New()
	router.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logMsg := "Panic recovered"
		if err, ok := recovered.(string); ok {
			logMsg = fmt.Sprintf("%s: %s", logMsg, err)
		} else if err, ok := recovered.(error); ok {
			logMsg = fmt.Sprintf("%s: %v", logMsg, err)
		}
		appLogger.Error(logMsg, zap.Stack("stack"))

		_ = c.Error(ierr.ErrInternalServer)
		c.Abort()
	}))

	corsConfig := cors.Config{
		AllowOrigins: []string{"https://mosaicapp.dev", "http://localhost:3000"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
			"X-Admin-Token",
		},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))
	router.Use(errorMiddleware)

	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/api/v1/webhooks/stripe", webhookHandler.HandleStripe)

	authRoutes := router.Group("/api/v1/auth")
	{
		authRoutes.POST("/login", authHandler.Login)
	}

	apiV1 := router.Group("/api/v1")
	{
		licenseRoutes := apiV1.Group("/licenses")
		{
			licenseRoutes.POST("/verify", licenseHandler.Verify)
			licenseRoutes.POST("/claim", licenseHandler.Claim)
			licenseRoutes.POST("/issue", adminTokenMiddleware, licenseHandler.ManualIssue)
		}
		dashboardRoutes := apiV1.Group("/dashboard")
		dashboardRoutes.Use(authMiddleware)
		{
			dashboardRoutes.GET("/summary", dashboardHandler.GetSummary)
		}
	}

	g, groupCtx := errgroup.WithContext(appCtx)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g.Go(func() error {
		sugarLogger.Infof("HTTP server listening on port %s", cfg.Server.Port)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		sugarLogger.Info("HTTP server stopped listening.")
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		sugarLogger.Info("Shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownPeriod)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown error: %w", err)
		}
		sugarLogger.Info("HTTP server shutdown complete.")
		return nil
	})

	g.Go(func() error {
		if err := worker.RunWorkers(groupCtx, cfg, statsService, appLogger); err != nil {
			sugarLogger.Errorw("Asynq worker failed", "error", err)
			return fmt.Errorf("asynq worker error: %w", err)
		}
		sugarLogger.Info("Asynq workers finished gracefully.")
		return nil
	})

	sugarLogger.Info("Application started. Waiting for interrupt signal or component error...")

	waitErr := g.Wait()

	if waitErr != nil && !errors.Is(waitErr, context.Canceled) && !errors.Is(waitErr, http.ErrServerClosed) {
		sugarLogger.Errorf("Application shutdown finished with unexpected error: %v", waitErr)
	} else {
		sugarLogger.Info("Application shutdown successfully.")
	}
}
