package handler

import (
	"qr-transfer-authorizer/internal/adapter/http/middleware"
	"qr-transfer-authorizer/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps bundles everything the router needs.
type RouterDeps struct {
	TransferSvc    ports.TransferService
	AuthTokenSvc   ports.AuthTokenService
	OTPRateLimiter ports.RateLimiter
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// NewRouter builds the gin engine with all routes and middleware wired.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.MaxBodySize(1 << 20)) // 1 MiB

	router.GET("/health", HealthCheck(deps.HealthCheckers...))

	transfers := NewTransferHandler(deps.TransferSvc)
	auth := middleware.JWTAuth(deps.AuthTokenSvc, deps.Logger)

	v1 := router.Group("/api/v1")
	{
		tr := v1.Group("/transfers", auth)
		{
			tr.POST("", transfers.Initiate)
			tr.POST("/scan-qr1", transfers.ScanQR1)
			tr.POST("/scan-qr2", transfers.ScanQR2)
			tr.GET("/:id", transfers.Get)
			tr.POST("/:id/qr2", transfers.GenerateQR2)
			tr.POST("/:id/otp", middleware.RateLimit(deps.OTPRateLimiter, "otp-send", deps.Logger), transfers.SendOTP)
			tr.POST("/:id/otp/verify", transfers.VerifyOTP)
			tr.POST("/:id/complete", transfers.Complete)
			tr.POST("/:id/cancel", transfers.Cancel)
		}
	}

	return router
}
