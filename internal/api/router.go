package api

import (
	"github.com/gin-gonic/gin"

	"github.com/divitutor/backend/internal/logger"
)

// NewRouter builds the gin engine with all routes and middleware.
func NewRouter(h *Handlers, log *logger.Logger, corsOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(CORS(corsOrigins))

	r.GET("/", h.health)

	r.POST("/sessions", h.createSession)

	r.POST("/messages", h.sendMessage)
	r.GET("/messages/:session_id", h.messageHistory)

	r.GET("/questions/next", h.nextQuestion)
	r.POST("/questions/validate", h.validateAnswer)

	r.POST("/videos/generate", h.generateVideo)
	r.GET("/videos/:video_id", h.videoStatus)
	r.POST("/videos/cleanup", h.cleanupVideos)

	r.POST("/webhooks/clerk", h.clerkWebhook)

	r.GET("/users/:user_id", h.getUser)
	r.GET("/users/:user_id/progress", h.userProgress)

	return r
}
