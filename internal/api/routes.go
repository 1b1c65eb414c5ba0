package api

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playmatatu/mergeball/internal/api/handlers"
	"github.com/playmatatu/mergeball/internal/auth"
	"github.com/playmatatu/mergeball/internal/config"
	"github.com/playmatatu/mergeball/internal/middleware"
	"github.com/playmatatu/mergeball/internal/room"
	"github.com/playmatatu/mergeball/internal/ws"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, db *sqlx.DB, mgr *room.Manager, wsHandler *ws.Handler, cfg *config.Config) {
	router.Use(middleware.CORSMiddleware(cfg))

	if cfg.Environment != "production" {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
		})
		log.Println("[DEV MODE] no-cache headers enabled for all routes")
	}

	requireAuth := auth.RequireAuth(cfg.JWTSecret)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck(mgr))
		v1.GET("/config", handlers.GetConfig(cfg))
		v1.GET("/leaderboard", handlers.GetLeaderboard(mgr, cfg))

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", handlers.Register(db, cfg))
			authGroup.POST("/login", handlers.Login(db, cfg))
		}

		sessions := v1.Group("/sessions")
		{
			sessions.POST("", requireAuth, handlers.CreateSession(mgr))
			sessions.GET("/:token", handlers.GetSession(mgr))
			sessions.DELETE("/:token", requireAuth, handlers.EndSession(mgr))
			sessions.GET("/:token/ws", middleware.WebSocketCORSCheck(cfg), wsHandler.HandleWebSocket)
		}

		player := v1.Group("/player", requireAuth)
		{
			player.GET("/me", handlers.GetMe(db))
			player.GET("/me/sessions", handlers.GetMySessions(db))
		}
	}
}
