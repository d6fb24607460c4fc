package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/italosilva18/cte-mdfe-api-sub000/api/handlers"
	"github.com/italosilva18/cte-mdfe-api-sub000/internal/service"
)

// SetupRoutes sets up all the routes for the server
func SetupRoutes(r *gin.Engine, svc service.Service, maxUploadBytes int64, log *logrus.Logger) {
	// Health check
	r.GET("/health", handlers.HealthCheck)

	// API routes
	api := r.Group("/api/v1")

	batches := api.Group("/batches")
	batchHandler := handlers.NewBatchHandler(svc, maxUploadBytes, log)
	batches.POST("", batchHandler.UploadBatch)
	batches.GET("/:id", batchHandler.GetBatchReport)
}
