package routes

import (
	"github.com/gin-gonic/gin"
	orderControllers "github.com/malini-2707/FarmConnect-sub000/controllers/order"
	"github.com/malini-2707/FarmConnect-sub000/events"
	"github.com/malini-2707/FarmConnect-sub000/middleware"
	"github.com/malini-2707/FarmConnect-sub000/models"
	"gorm.io/gorm"
)

func SetupOrderRoutes(r *gin.Engine, db *gorm.DB, pub events.Publisher) {
	orders := r.Group("/orders")
	orders.Use(middleware.ValidateToken)
	{
		// Create a new order (customer)
		orders.POST("/",
			middleware.RequireRole(models.RoleCustomer),
			orderControllers.PlaceOrderHandler(db, pub))

		// Orders for the acting user, whatever their role
		orders.GET("/", orderControllers.GetMyOrdersHandler(db))

		// Farmer order book as a spreadsheet
		orders.GET("/export",
			middleware.RequireRole(models.RoleFarmer),
			orderControllers.ExportOrdersToExcel(db))

		// Single order by id or order number
		orders.GET("/:orderID", orderControllers.GetOrderHandler(db))

		// Role-gated status transition (farmer confirm/prepare/ready,
		// assigned agent pickup/transit/deliver)
		orders.PUT("/:orderID/status", orderControllers.UpdateOrderStatusHandler(db, pub))

		// Customer cancel while still early
		orders.POST("/:orderID/cancel",
			middleware.RequireRole(models.RoleCustomer),
			orderControllers.CancelOrderHandler(db, pub))

		// One-time rating after delivery
		orders.POST("/:orderID/rate",
			middleware.RequireRole(models.RoleCustomer),
			orderControllers.RateOrderHandler(db))
	}
}
