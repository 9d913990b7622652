package routes

import (
	"github.com/gin-gonic/gin"
	deliveryControllers "github.com/malini-2707/FarmConnect-sub000/controllers/delivery"
	"github.com/malini-2707/FarmConnect-sub000/events"
	"github.com/malini-2707/FarmConnect-sub000/middleware"
	"github.com/malini-2707/FarmConnect-sub000/models"
	"gorm.io/gorm"
)

func SetupDeliveryRoutes(r *gin.Engine, db *gorm.DB, pub events.Publisher) {
	deliveries := r.Group("/deliveries")
	deliveries.Use(middleware.ValidateToken)
	{
		deliveries.GET("/performance",
			middleware.RequireRole(models.RoleDelivery),
			deliveryControllers.PerformanceHandler(db))

		deliveries.GET("/:deliveryID", deliveryControllers.GetDeliveryHandler(db))

		// Live trace appends (assigned agent only)
		deliveries.POST("/:deliveryID/route",
			middleware.RequireRole(models.RoleDelivery),
			deliveryControllers.AddRoutePointHandler(db, pub))

		// Completion with confirmation artifacts
		deliveries.POST("/:deliveryID/complete",
			middleware.RequireRole(models.RoleDelivery),
			deliveryControllers.CompleteDeliveryHandler(db, pub))
	}
}
