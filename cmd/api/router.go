package api

import (
	"net/http"

	"mailpilot-backend/internal/response/delivery"
	"mailpilot-backend/internal/response/repository"
	"mailpilot-backend/internal/response/usecase"
	"mailpilot-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, responseUsecase usecase.ResponseUsecase, policies repository.PolicyRepository, deviceTokens repository.DeviceTokenRepository, cfg *config.Config) {
	responseHandler := delivery.NewResponseHandler(responseUsecase, policies, deviceTokens)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		authed := api.Group("", delivery.AuthMiddleware(cfg.JWTSecret))
		{
			responses := authed.Group("/responses")
			{
				responses.POST("", responseHandler.Submit)
				responses.GET("/:id", responseHandler.GetRecord)
				responses.GET("/:id/status", responseHandler.GetStatus)
				responses.POST("/:id/approve", responseHandler.Approve)
				responses.POST("/:id/reject", responseHandler.Reject)
			}

			authed.GET("/summary/daily", responseHandler.GetDailySummary)

			policy := authed.Group("/policy")
			{
				policy.GET("", responseHandler.GetPolicy)
				policy.PUT("", responseHandler.UpdatePolicy)
			}

			devices := authed.Group("/devices")
			{
				devices.POST("", responseHandler.RegisterDevice)
				devices.DELETE("", responseHandler.UnregisterDevice)
			}
		}
	}
}
