package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"go.uber.org/zap"

	"github.com/recoverly/followup-agent/internal/api/handlers"
	"github.com/recoverly/followup-agent/internal/scheduler"
	"github.com/recoverly/followup-agent/internal/store"
	"github.com/recoverly/followup-agent/internal/store/mongostore"
	"github.com/recoverly/followup-agent/internal/usage"
	"github.com/recoverly/followup-agent/pkg/env"
	"github.com/recoverly/followup-agent/pkg/logger"
	"github.com/recoverly/followup-agent/pkg/metrics"
	"github.com/recoverly/followup-agent/pkg/middleware"
	"github.com/recoverly/followup-agent/pkg/mongo"
	"github.com/recoverly/followup-agent/pkg/otel"
	"github.com/recoverly/followup-agent/pkg/sms"
	"github.com/recoverly/followup-agent/pkg/vapi"
)

// Server combines the tenant API, the webhook receiver, and the
// background scheduler in one process.
type Server struct {
	cfg         *env.Config
	mongoClient *mongo.Client
	redisClient *redis.Client
	store       *store.Store
	sched       *scheduler.Scheduler
	handler     *handlers.Handler
}

func main() {
	cfg, err := env.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.LogLevel, cfg.AppEnv); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize OpenTelemetry if enabled
	if cfg.OTELEnabled {
		shutdown, err := otel.InitTracing("followup-agent", "1.0.0", cfg.OTELEndpoint)
		if err != nil {
			logger.Log.Warn("Failed to initialize OpenTelemetry", zap.Error(err))
		} else {
			defer shutdown()
			logger.Log.Info("OpenTelemetry tracing enabled", zap.String("endpoint", cfg.OTELEndpoint))
		}
	}

	logger.Log.Info("Starting Followup Agent (API + Webhooks + Scheduler)",
		zap.String("env", cfg.AppEnv),
		zap.String("port", cfg.AppPort),
	)

	// Initialize Redis
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Log.Fatal("Failed to parse Redis URL", zap.Error(err))
	}
	redisClient := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Log.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	// Initialize MongoDB
	mongoClient, err := mongo.NewClient(cfg.MongoURI, cfg.DBName)
	if err != nil {
		logger.Log.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(ctx); err != nil {
			logger.Log.Warn("Failed to disconnect MongoDB", zap.Error(err))
		}
	}()

	st := mongostore.New(mongoClient)
	tracker := usage.NewTracker(st.Usage, cfg.DefaultMinutesAlloc)

	// Initialize voice provider client
	vapiClient := vapi.NewClient(
		cfg.VapiAPIKey,
		cfg.VapiPhoneNumberID,
		cfg.VapiBaseURL,
		time.Duration(cfg.VapiTimeoutMs)*time.Millisecond,
	)

	// Initialize SMS sender (payment link texts)
	smsSender := sms.NewSender(cfg.SMSProviderURL, cfg.SMSProviderToken, 10*time.Second)
	if !smsSender.Enabled() {
		logger.Log.Info("SMS provider not configured, payment link texts disabled")
	}

	sched := scheduler.New(st, tracker, vapiClient, smsSender, scheduler.Config{
		SelectionBatchSize: cfg.SelectionBatchSize,
		ReconcileBatchSize: cfg.ReconcileBatchSize,
		ReconcileAfter:     time.Duration(cfg.ReconcileAfterMin) * time.Minute,
		DefaultMaxAttempts: cfg.DefaultMaxAttempts,
		Location:           time.Local,
	})

	apiHandler := handlers.NewHandler(cfg, redisClient, mongoClient, st, tracker, sched)

	server := &Server{
		cfg:         cfg,
		mongoClient: mongoClient,
		redisClient: redisClient,
		store:       st,
		sched:       sched,
		handler:     apiHandler,
	}

	router := server.setupRouter()

	// Start the scheduler background worker
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go server.startSchedulerWorker(workerCtx)

	srv := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Log.Info("Followup Agent listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down server...")
	workerCancel()

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Log.Info("Server exited")
}

func (s *Server) setupRouter() *gin.Engine {
	if s.cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.TraceMiddleware())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestSizeLimit(1 << 20)) // 1 MB limit

	// Add OpenTelemetry middleware if enabled
	if s.cfg.OTELEnabled {
		router.Use(otel.GinMiddleware())
	}

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.RecordRequest(c.FullPath(), c.Writer.Status() < 500, time.Since(start))
	})

	router.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("[%s] %s %s %d %s\n",
			param.TimeStamp.Format(time.RFC3339),
			param.Method,
			param.Path,
			param.StatusCode,
			param.Latency,
		)
	}))

	// CORS
	corsConfig := cors.DefaultConfig()
	if s.cfg.CORSAllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = []string{s.cfg.CORSAllowedOrigins}
	}
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key"}
	router.Use(cors.New(corsConfig))

	rateLimiter := middleware.NewRateLimiter(s.redisClient, s.cfg.APIRateLimitRPM)
	authRateLimiter := middleware.NewAuthRateLimiter(s.redisClient, 10, 60, 300)

	// Health check
	router.GET("/health", s.handler.HealthCheck)
	router.GET("/metrics", s.handler.GetMetrics)
	router.GET("/metrics/prometheus", s.handler.GetPrometheusMetrics)

	// Auth endpoints
	authGroup := router.Group("/auth")
	authGroup.Use(authRateLimiter.Middleware())
	{
		authGroup.POST("/login", s.handler.Login)
		authGroup.POST("/register", s.handler.Register)
		authGroup.POST("/refresh", s.handler.Refresh)
		authGroup.POST("/logout", middleware.AuthMiddleware(s.cfg.JWTSecret), s.handler.Logout)
	}

	// API endpoints (protected)
	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(s.cfg.JWTSecret))
	api.Use(middleware.IdempotencyMiddleware(s.redisClient))
	api.Use(rateLimiter.Middleware())
	{
		invoices := api.Group("/invoices")
		{
			invoices.GET("", s.handler.ListInvoices)
			invoices.POST("", s.handler.CreateInvoice)
			invoices.POST("/import", s.handler.ImportInvoices)
			invoices.DELETE("", s.handler.DeleteAllInvoices)
			invoices.GET("/:id", middleware.ValidateIDParam("id"), s.handler.GetInvoice)
			invoices.PUT("/:id", middleware.ValidateIDParam("id"), s.handler.UpdateInvoice)
			invoices.DELETE("/:id", middleware.ValidateIDParam("id"), s.handler.DeleteInvoice)
		}

		policy := api.Group("/policy")
		{
			policy.GET("", s.handler.GetPolicy)
			policy.PUT("", s.handler.UpsertPolicy)
		}

		calls := api.Group("/calls")
		{
			calls.GET("", s.handler.ListCalls)
			calls.GET("/export", s.handler.ExportCalls)
		}

		api.GET("/usage", s.handler.GetUsage)
		api.GET("/overview", s.handler.GetOverview)

		auditLogs := api.Group("/audit-logs")
		{
			auditLogs.GET("", s.handler.ListAuditLogs)
		}

		admin := api.Group("/admin")
		admin.Use(middleware.RoleMiddleware(store.RoleAdmin))
		{
			admin.GET("/tenants", s.handler.ListTenants)
			admin.GET("/tenants/:id", middleware.ValidateIDParam("id"), s.handler.GetTenant)
			admin.GET("/stats", s.handler.GetAdminStats)
		}
	}

	// Webhook endpoint (public, HMAC verified)
	router.POST("/webhooks/vapi", s.handler.VapiWebhook)

	// Cron trigger (bearer secret); GET supported because some cron
	// services cannot send POST.
	internal := router.Group("/internal")
	{
		internal.GET("/cron/process-calls", s.handler.TriggerScheduler)
		internal.POST("/cron/process-calls", s.handler.TriggerScheduler)
	}

	return router
}

// startSchedulerWorker runs the follow-up batch on a fixed interval until
// the context is cancelled.
func (s *Server) startSchedulerWorker(ctx context.Context) {
	interval := time.Duration(s.cfg.SchedulerIntervalSec) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	logger.Log.Info("Scheduler worker started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.sched.Run(ctx); err != nil {
				logger.Log.Error("Scheduler run failed", zap.Error(err))
			}
		case <-ctx.Done():
			logger.Log.Info("Scheduler worker stopped")
			return
		}
	}
}
