package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/photogrid/internal/api/handler"
	"github.com/timmy/photogrid/internal/api/middleware"
	"github.com/timmy/photogrid/internal/config"
	"github.com/timmy/photogrid/internal/logger"
	"github.com/timmy/photogrid/internal/session"
)

// RouterConfig holds the HTTP-layer settings.
type RouterConfig struct {
	Mode     string
	CORS     config.CORSConfig
	Logger   *logger.Logger
	SourceID string
}

// SetupRouter configures the Gin router with all routes.
// Parameters:
//   - sessions: live session manager.
//   - attempts: journal reader; nil disables the attempts endpoint.
//   - cfg: mode, CORS, and logging settings.
//
// Returns:
//   - *gin.Engine: configured router.
func SetupRouter(sessions *session.Manager, attempts handler.AttemptLister, cfg RouterConfig) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(cfg.Logger))
	r.Use(middleware.CORS(cfg.CORS))

	healthHandler := handler.NewHealthHandler(sessions, cfg.SourceID)
	sessionHandler := handler.NewSessionHandler(sessions, attempts)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthHandler.Health)

		// Sessions
		v1.POST("/sessions", sessionHandler.Open)
		v1.GET("/sessions/:id", sessionHandler.Get)
		v1.DELETE("/sessions/:id", sessionHandler.Close)

		// Feed
		v1.GET("/sessions/:id/rows", sessionHandler.Rows)
		v1.POST("/sessions/:id/next", sessionHandler.Next)
		v1.POST("/sessions/:id/restart", sessionHandler.Restart)
		v1.GET("/sessions/:id/attempts", sessionHandler.Attempts)

		// Selection
		v1.GET("/sessions/:id/selection", sessionHandler.Selection)
		v1.PUT("/sessions/:id/selection", sessionHandler.Select)
	}

	return r
}
