package test

import (
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/recoverly/followup-agent/internal/api/handlers"
	"github.com/recoverly/followup-agent/internal/scheduler"
	"github.com/recoverly/followup-agent/internal/store"
	"github.com/recoverly/followup-agent/internal/usage"
	"github.com/recoverly/followup-agent/pkg/env"
	"github.com/recoverly/followup-agent/pkg/middleware"
	"github.com/recoverly/followup-agent/pkg/mongo"
	"github.com/recoverly/followup-agent/pkg/sms"
	"github.com/recoverly/followup-agent/pkg/vapi"
)

// buildTestRouter creates a router for testing (simplified version of the
// server setup)
func buildTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	cfg := &env.Config{
		JWTSecret: "test-secret",
	}
	// Route registration never touches the backends, so unconnected
	// clients are fine here.
	mongoClient, _ := mongo.NewClient("mongodb://localhost:27017", "test")
	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})

	st := store.NewMemory()
	tracker := usage.NewTracker(st.Usage, 100)
	vapiClient := vapi.NewClient("", "", "", 5*time.Second)
	smsSender := sms.NewSender("", "", time.Second)
	sched := scheduler.New(st, tracker, vapiClient, smsSender, scheduler.Config{})

	h := handlers.NewHandler(cfg, redisClient, mongoClient, st, tracker, sched)
	rateLimiter := middleware.NewRateLimiter(redisClient, 60)
	authRateLimiter := middleware.NewAuthRateLimiter(redisClient, 10, 60, 300)

	// Register routes (matching server structure)
	router.GET("/health", h.HealthCheck)
	router.GET("/metrics", h.GetMetrics)
	router.GET("/metrics/prometheus", h.GetPrometheusMetrics)

	authGroup := router.Group("/auth")
	authGroup.Use(authRateLimiter.Middleware())
	{
		authGroup.POST("/login", h.Login)
		authGroup.POST("/register", h.Register)
		authGroup.POST("/refresh", h.Refresh)
		authGroup.POST("/logout", middleware.AuthMiddleware(cfg.JWTSecret), h.Logout)
	}

	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	api.Use(middleware.IdempotencyMiddleware(redisClient))
	api.Use(rateLimiter.Middleware())
	{
		invoices := api.Group("/invoices")
		{
			invoices.GET("", h.ListInvoices)
			invoices.POST("", h.CreateInvoice)
			invoices.POST("/import", h.ImportInvoices)
			invoices.DELETE("", h.DeleteAllInvoices)
			invoices.GET("/:id", middleware.ValidateIDParam("id"), h.GetInvoice)
			invoices.PUT("/:id", middleware.ValidateIDParam("id"), h.UpdateInvoice)
			invoices.DELETE("/:id", middleware.ValidateIDParam("id"), h.DeleteInvoice)
		}

		policy := api.Group("/policy")
		{
			policy.GET("", h.GetPolicy)
			policy.PUT("", h.UpsertPolicy)
		}

		calls := api.Group("/calls")
		{
			calls.GET("", h.ListCalls)
			calls.GET("/export", h.ExportCalls)
		}

		api.GET("/usage", h.GetUsage)
		api.GET("/overview", h.GetOverview)

		auditLogs := api.Group("/audit-logs")
		{
			auditLogs.GET("", h.ListAuditLogs)
		}

		admin := api.Group("/admin")
		admin.Use(middleware.RoleMiddleware(store.RoleAdmin))
		{
			admin.GET("/tenants", h.ListTenants)
			admin.GET("/tenants/:id", middleware.ValidateIDParam("id"), h.GetTenant)
			admin.GET("/stats", h.GetAdminStats)
		}
	}

	router.POST("/webhooks/vapi", h.VapiWebhook)

	internal := router.Group("/internal")
	{
		internal.GET("/cron/process-calls", h.TriggerScheduler)
		internal.POST("/cron/process-calls", h.TriggerScheduler)
	}

	return router
}

// Expected routes from the server
var expectedRoutes = []struct {
	method string
	path   string
}{
	// Health & Metrics
	{"GET", "/health"},
	{"GET", "/metrics"},
	{"GET", "/metrics/prometheus"},

	// Auth
	{"POST", "/auth/login"},
	{"POST", "/auth/register"},
	{"POST", "/auth/refresh"},
	{"POST", "/auth/logout"},

	// Invoices
	{"GET", "/api/invoices"},
	{"POST", "/api/invoices"},
	{"POST", "/api/invoices/import"},
	{"DELETE", "/api/invoices"},
	{"GET", "/api/invoices/:id"},
	{"PUT", "/api/invoices/:id"},
	{"DELETE", "/api/invoices/:id"},

	// Policy
	{"GET", "/api/policy"},
	{"PUT", "/api/policy"},

	// Calls
	{"GET", "/api/calls"},
	{"GET", "/api/calls/export"},

	// Usage & Dashboard
	{"GET", "/api/usage"},
	{"GET", "/api/overview"},

	// Audit Logs
	{"GET", "/api/audit-logs"},

	// Admin
	{"GET", "/api/admin/tenants"},
	{"GET", "/api/admin/tenants/:id"},
	{"GET", "/api/admin/stats"},

	// Webhooks & Cron
	{"POST", "/webhooks/vapi"},
	{"GET", "/internal/cron/process-calls"},
	{"POST", "/internal/cron/process-calls"},
}

func Test_Routes_Registered(t *testing.T) {
	r := buildTestRouter()
	routes := r.Routes()

	// Build map of registered routes
	registered := make(map[string]bool)
	for _, rt := range routes {
		key := rt.Method + " " + rt.Path
		registered[key] = true
	}

	// Check all expected routes are registered
	for _, expected := range expectedRoutes {
		key := expected.method + " " + expected.path
		if !registered[key] {
			t.Errorf("missing route: %s %s", expected.method, expected.path)
		}
	}
}

func Test_Routes_Count(t *testing.T) {
	r := buildTestRouter()
	routes := r.Routes()

	// Should have at least the expected number of routes
	// (may have more due to OPTIONS, etc.)
	if len(routes) < len(expectedRoutes) {
		t.Errorf("expected at least %d routes, got %d", len(expectedRoutes), len(routes))
	}
}
