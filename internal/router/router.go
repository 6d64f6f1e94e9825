package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"timetrack/backend/internal/handler"
	"timetrack/backend/internal/middleware"
)

func New(
	tokens middleware.TokenParser,
	authHandler *handler.AuthHandler,
	timerHandler *handler.TimerHandler,
	progressHandler *handler.ProgressHandler,
	corsOrigins []string,
) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), middleware.CORS(corsOrigins))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")
	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	protected := api.Group("")
	protected.Use(middleware.Auth(tokens))

	timers := protected.Group("/timers")
	timers.POST("", timerHandler.Start)
	timers.GET("", timerHandler.List)
	timers.GET("/active", timerHandler.Active)
	timers.GET("/:id", timerHandler.Get)
	timers.POST("/:id/pause", timerHandler.Pause)
	timers.POST("/:id/resume", timerHandler.Resume)
	timers.POST("/:id/complete", timerHandler.Complete)
	timers.POST("/:id/cancel", timerHandler.Cancel)

	protected.GET("/timesheet", timerHandler.Timesheet)
	protected.GET("/progress", progressHandler.Get)

	return engine
}
