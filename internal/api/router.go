package api

import (
	"github.com/gin-gonic/gin"

	"github.com/isntboxs/b3s-chat/internal/api/chat"
	"github.com/isntboxs/b3s-chat/internal/api/middleware"
	"github.com/isntboxs/b3s-chat/internal/service"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	APIKey       string
	AllowOrigins []string
}

// SetupRouter sets up the Gin router
func SetupRouter(chatService *service.ChatService, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS middleware
	r.Use(middleware.CORS(cfg.AllowOrigins))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Embedded chat page
	SetupStaticRoutes(r)

	// Chat API (API key optional, enforced when configured)
	chatHandler := chat.NewHandler(chatService)
	apiGroup := r.Group("/api")
	apiGroup.Use(middleware.Auth(cfg.APIKey))
	chatHandler.RegisterRoutes(apiGroup)

	return r
}
