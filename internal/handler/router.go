package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/phillipshepard1/phillipsnotes/internal/middleware"
	"github.com/phillipshepard1/phillipsnotes/internal/pkg/response"
)

type RouterDeps struct {
	Index     *IndexHandler
	Search    *SearchHandler
	Chat      *ChatHandler
	JWTSecret []byte

	// Minimum spacing between chat requests per user and path. Zero disables
	// the limit.
	ChatRateLimit time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/healthz", func(c *gin.Context) {
		response.Success(c, gin.H{"status": "ok"})
	})

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	authGroup.POST("/retrieval/index", deps.Index.Index)
	authGroup.DELETE("/retrieval/index/:id", deps.Index.Remove)
	authGroup.POST("/retrieval/search", deps.Search.Search)
	authGroup.POST("/retrieval/related", deps.Search.Related)
	chatLimit := middleware.RateLimit(deps.ChatRateLimit)
	authGroup.POST("/retrieval/chat", chatLimit, deps.Chat.Chat)
	authGroup.POST("/retrieval/chat/sync", chatLimit, deps.Chat.ChatSync)
}
