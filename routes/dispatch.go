package routes

import (
	"github.com/gin-gonic/gin"
	dispatchControllers "github.com/malini-2707/FarmConnect-sub000/controllers/dispatch"
	"github.com/malini-2707/FarmConnect-sub000/events"
	"github.com/malini-2707/FarmConnect-sub000/middleware"
	"github.com/malini-2707/FarmConnect-sub000/models"
	"gorm.io/gorm"
)

func SetupDispatchRoutes(r *gin.Engine, db *gorm.DB, pub events.Publisher) {
	dispatch := r.Group("/dispatch")
	dispatch.Use(middleware.ValidateToken, middleware.RequireRole(models.RoleDelivery))
	{
		// Pull: open orders near me, distance-sorted
		dispatch.GET("/orders", dispatchControllers.AvailableOrdersHandler(db))

		// First accept wins; losers get 409
		dispatch.POST("/orders/:orderID/accept", dispatchControllers.AcceptOrderHandler(db, pub))

		// Hand an accepted order back to the pool
		dispatch.POST("/orders/:orderID/decline", dispatchControllers.DeclineOrderHandler(db, pub))

		// Agent presence
		dispatch.PUT("/availability", dispatchControllers.SetAvailabilityHandler(db))
		dispatch.PUT("/location", dispatchControllers.UpdateLocationHandler(db, pub))
	}
}
