package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/VanHoang0612/Mochi-Chat/internal/config"
	"github.com/VanHoang0612/Mochi-Chat/internal/http/handler"
	"github.com/VanHoang0612/Mochi-Chat/internal/http/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, authHandler *handler.AuthHandler, authMiddleware *middleware.Auth, rateLimiter *middleware.RateLimiter) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/verify-email", authHandler.VerifyEmail)
		authGroup.POST("/resend-code", authHandler.ResendCode)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh-token", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.POST("/forgot-password", authHandler.ForgotPassword)
		authGroup.POST("/verify-otp", authHandler.VerifyOTP)
		authGroup.POST("/reset-password", authHandler.ResetPassword)

		authGroup.POST("/change-password", authMiddleware.RequireAccessToken, authHandler.ChangePassword)
		authGroup.GET("/me", authMiddleware.RequireAccessToken, authHandler.Me)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
