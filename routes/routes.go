package routes

import (
	"github.com/Govind-619/SettleSphere/config"
	"github.com/Govind-619/SettleSphere/controllers"
	"github.com/Govind-619/SettleSphere/middleware"
	"github.com/Govind-619/SettleSphere/utils"
	"github.com/gin-gonic/gin"
)

// SetupRouter initializes and returns the Gin router with all routes
func SetupRouter(cfg *config.Config, wc *controllers.WebhookController) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(utils.RequestIDMiddleware())
	router.Use(utils.LoggerMiddleware())
	router.Use(utils.RecoveryMiddleware())
	router.Use(utils.CORSMiddleware())

	router.GET("/healthz", controllers.Health)

	// API version group
	api := router.Group("/v1")
	{
		payments := api.Group("/payments", middleware.CallerAuth(cfg.JWTSecret))
		payments.POST("/webhook", wc.Handle)
		payments.POST("/paypal", wc.Handle)
		payments.OPTIONS("/webhook", func(c *gin.Context) {})
		payments.OPTIONS("/paypal", func(c *gin.Context) {})
	}

	return router
}
