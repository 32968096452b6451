// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/javajoker/ipscope/internal/config"
	"github.com/javajoker/ipscope/internal/handlers"
	"github.com/javajoker/ipscope/internal/middleware"
	"github.com/javajoker/ipscope/internal/utils"
)

const Version = "1.0.0"

// Services holds what the HTTP layer reads from.
type Services struct {
	Assets   handlers.AssetReader
	Resolver handlers.AddressResolver
}

// Initialize builds the engine. The returned limiter owns a cleanup goroutine and should be
// stopped on shutdown.
func Initialize(svc Services, cfg *config.Config) (*gin.Engine, *middleware.RateLimiter) {
	ipAssetHandler := handlers.NewIPAssetHandler(svc.Assets, svc.Resolver)
	limiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logrus.WithFields(logrus.Fields{
			"panic":      recovered,
			"path":       c.Request.URL.Path,
			"request_id": c.GetString("request_id"),
		}).Error("Recovered from panic")
		utils.InternalErrorResponse(c)
		c.Abort()
	}))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	r.Use(middleware.I18nMiddleware())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": Version,
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(limiter.Middleware())
	{
		assets := api.Group("/assets")
		{
			assets.GET("", ipAssetHandler.GetAssets)
			assets.GET("/:ipId", ipAssetHandler.GetAsset)
			assets.GET("/:ipId/transactions", ipAssetHandler.GetAssetTransactions)
			assets.GET("/:ipId/children", ipAssetHandler.GetAssetChildren)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		utils.ErrorResponse(c, http.StatusNotFound, "NOT_FOUND", http.StatusText(http.StatusNotFound), nil)
	})

	return r, limiter
}
