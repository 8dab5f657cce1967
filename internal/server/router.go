package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/kravdesk/kravdesk-backend/internal/handlers"
)

type RouterConfig struct {
	ImportHandler      *handlers.ImportHandler
	GroupingHandler    *handlers.GroupingHandler
	RequirementHandler *handlers.RequirementHandler
	SSEHandler         *handlers.SSEHandler
	AllowOrigins       []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)
	router.GET("/sse/stream", cfg.SSEHandler.Stream)

	api := router.Group("/api")
	{
		api.POST("/imports/compare", cfg.ImportHandler.Compare)
		api.POST("/imports/commit", cfg.ImportHandler.Commit)
		api.GET("/imports/runs/:id", cfg.ImportHandler.GetRun)
		api.POST("/grouping/run", cfg.GroupingHandler.Run)
		api.GET("/requirements", cfg.RequirementHandler.List)
		api.PATCH("/requirements/:id", cfg.RequirementHandler.UpdateUserFields)
	}

	return router
}
