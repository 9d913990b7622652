package routes

import (
	"github.com/gin-gonic/gin"
	paymentControllers "github.com/malini-2707/FarmConnect-sub000/controllers/payment"
	"github.com/malini-2707/FarmConnect-sub000/events"
	"gorm.io/gorm"
)

// SetupRoutes is the single entry-point that wires up every route group.
func SetupRoutes(r *gin.Engine, db *gorm.DB, hub *events.Hub) {
	gateways := paymentControllers.NewRegistry()

	// Realtime notifications (clients authenticate in-band and filter on
	// their own user id).
	r.GET("/ws/events", hub.Handler)

	SetupOrderRoutes(r, db, hub)
	SetupDispatchRoutes(r, db, hub)
	SetupDeliveryRoutes(r, db, hub)
	SetupPaymentRoutes(r, db, hub, gateways)
	SetupCatalogRoutes(r, db)
	SetupAdminRoutes(r, db)
}
