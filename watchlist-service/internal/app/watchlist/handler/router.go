package handler

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cinetrack/pkg/logger"
	"cinetrack/pkg/metrics"
)

const serviceName = "watchlist-service"

// SetupRoutes собирает роутер. authMiddleware == nil отключает проверку токенов.
func SetupRoutes(watchlistHandler *WatchlistHandler, authMiddleware *AuthMiddleware, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())

	router.Use(logger.GinLoggerMiddleware())

	router.Use(metrics.GinPrometheusMiddleware(serviceName))

	router.Use(cors.New(corsConfig(allowedOrigins)))

	// Ответы со списками фильмов сжимаются, /metrics отдается как есть
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	router.GET("/health", watchlistHandler.Health)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	if authMiddleware != nil {
		api.Use(authMiddleware.Authenticate())
	}
	{
		api.POST("/watchlist/add", watchlistHandler.AddMovie)
		api.GET("/watchlist/:userId", watchlistHandler.GetWatchlist)
		api.POST("/watchlist/ratings/:userId", watchlistHandler.UpdateRating)

		// Старый маршрут оценок, оставлен для существующих клиентов
		api.POST("/ratings/:userId", watchlistHandler.UpdateRatingDeprecated)
	}

	return router
}

// corsConfig разрешает SPA-клиенту обращаться к API с другого origin.
// Пустой список или "*" разрешают любой origin.
func corsConfig(allowedOrigins []string) cors.Config {
	config := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", logger.RequestIDHeader},
		ExposeHeaders:    []string{"Link", "Deprecation", logger.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           5 * time.Minute,
	}

	for _, origin := range allowedOrigins {
		if origin == "*" {
			config.AllowAllOrigins = true
			config.AllowCredentials = false
			return config
		}
	}
	if len(allowedOrigins) == 0 {
		config.AllowAllOrigins = true
		config.AllowCredentials = false
		return config
	}

	config.AllowOrigins = allowedOrigins
	return config
}
