package api

import (
	"mailpilot-backend/internal/response/repository"
	"mailpilot-backend/internal/response/usecase"
	"mailpilot-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	responseUsecase usecase.ResponseUsecase
	policies        repository.PolicyRepository
	deviceTokens    repository.DeviceTokenRepository
	config          *config.Config
}

func NewHandler(responseUsecase usecase.ResponseUsecase, policies repository.PolicyRepository, deviceTokens repository.DeviceTokenRepository, cfg *config.Config) *Handler {
	return &Handler{
		responseUsecase: responseUsecase,
		policies:        policies,
		deviceTokens:    deviceTokens,
		config:          cfg,
	}
}

func (h *Handler) Start(addr string) error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.responseUsecase, h.policies, h.deviceTokens, h.config)

	return r.Run(addr)
}
