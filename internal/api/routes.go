package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"irisml/internal/logging"
	"irisml/internal/telemetry"
)

// SetupRoutes mounts the prediction API. onReload may be nil.
func SetupRoutes(router *gin.Engine, p Predictor, m *telemetry.Metrics, onReload func(ready bool)) {
	router.GET("/", HealthCheck(p))
	router.GET("/health", HealthCheck(p))
	router.POST("/predict", HandlePredict(p, m))

	admin := router.Group("/admin")
	{
		admin.POST("/reload", HandleReload(p, onReload))
	}
	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}
}

// NewRouter returns a gin engine with recovery and the routes mounted.
func NewRouter(p Predictor, m *telemetry.Metrics, onReload func(ready bool)) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	SetupRoutes(router, p, m, onReload)
	return router
}

func requestLogger() gin.HandlerFunc {
	log := logging.For("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
