package routes

import (
	"github.com/gin-gonic/gin"
	orderControllers "github.com/malini-2707/FarmConnect-sub000/controllers/order"
	paymentControllers "github.com/malini-2707/FarmConnect-sub000/controllers/payment"
	"github.com/malini-2707/FarmConnect-sub000/middleware"
	"gorm.io/gorm"
)

// SetupAdminRoutes registers the API-key-protected back-office endpoints.
func SetupAdminRoutes(r *gin.Engine, db *gorm.DB) {
	admin := r.Group("/admin")
	admin.Use(middleware.ValidateAPIKey)
	{
		admin.GET("/orders", orderControllers.GetAllOrdersHandler(db))
		admin.POST("/payments/:paymentID/refund", paymentControllers.RefundHandler(db))
	}
}
