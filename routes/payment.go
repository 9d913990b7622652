package routes

import (
	"github.com/gin-gonic/gin"
	paymentControllers "github.com/malini-2707/FarmConnect-sub000/controllers/payment"
	"github.com/malini-2707/FarmConnect-sub000/events"
	"github.com/malini-2707/FarmConnect-sub000/middleware"
	"github.com/malini-2707/FarmConnect-sub000/models"
	"gorm.io/gorm"
)

func SetupPaymentRoutes(r *gin.Engine, db *gorm.DB, pub events.Publisher, gateways paymentControllers.Registry) {
	payments := r.Group("/payments")
	{
		// Gateway callbacks authenticate with their own signature scheme,
		// not a user token.
		payments.POST("/webhook/:gateway", paymentControllers.WebhookHandler(db, pub, gateways))

		authed := payments.Group("")
		authed.Use(middleware.ValidateToken)
		{
			authed.POST("/initiate",
				middleware.RequireRole(models.RoleCustomer),
				paymentControllers.InitiatePaymentHandler(db, pub, gateways))

			authed.GET("/order/:orderID", paymentControllers.GetPaymentHandler(db))

			// Abandon a live checkout attempt
			authed.POST("/order/:orderID/cancel",
				middleware.RequireRole(models.RoleCustomer),
				paymentControllers.CancelPaymentHandler(db))

			// Cash settlement by the assigned agent after handover
			authed.POST("/order/:orderID/confirm-cod",
				middleware.RequireRole(models.RoleDelivery),
				paymentControllers.ConfirmCODHandler(db, pub))
		}
	}
}
