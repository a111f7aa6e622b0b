package handler

import (
	"pos-settlement-engine/internal/adapter/http/middleware"
	"pos-settlement-engine/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	SettlementSvc  ports.SettlementService
	LoyaltySvc     ports.LoyaltyService
	ReportingSvc   ports.ReportingService
	TokenSvc       ports.TokenService
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Swagger documentation
	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
	}

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	requireManager := middleware.RequireManager()

	settlementHandler := NewSettlementHandler(deps.SettlementSvc)
	reportingHandler := NewReportingHandler(deps.ReportingSvc)
	payments := v1.Group("/payments", jwtAuth)
	{
		payments.POST("", settlementHandler.ProcessPayment)
		payments.POST("/:id/refund", requireManager, settlementHandler.ProcessRefund)
		payments.GET("", reportingHandler.ListPayments)
	}

	loyaltyHandler := NewLoyaltyHandler(deps.LoyaltySvc)
	loyalty := v1.Group("/loyalty", jwtAuth)
	{
		loyalty.POST("/points", loyaltyHandler.AddPoints)
		loyalty.POST("/redeem", loyaltyHandler.RedeemPoints)
		loyalty.POST("/adjust", requireManager, loyaltyHandler.AdjustPoints)
		loyalty.POST("/visits", loyaltyHandler.RecordVisit)
		loyalty.POST("/expire", requireManager, loyaltyHandler.ExpirePoints)
		loyalty.POST("/:customer_id/birthday-bonus", loyaltyHandler.AwardBirthdayBonus)
		loyalty.GET("/:customer_id", loyaltyHandler.GetCustomerDetails)
	}

	reports := v1.Group("/reports", jwtAuth)
	{
		reports.GET("/daily-summary", reportingHandler.GetDailySummary)
	}

	return r
}
