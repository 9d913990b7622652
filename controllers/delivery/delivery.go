package deliveryControllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	orderControllers "github.com/malini-2707/FarmConnect-sub000/controllers/order"
	"github.com/malini-2707/FarmConnect-sub000/events"
	"github.com/malini-2707/FarmConnect-sub000/middleware"
	"github.com/malini-2707/FarmConnect-sub000/models"
	"gorm.io/gorm"
)

// ErrNotInTransit means completion was attempted before the order was on
// the road.
var ErrNotInTransit = errors.New("delivery is not in transit")

// -------- Request Structs --------

type RoutePointRequest struct {
	Lat   *float64 `json:"lat" binding:"required"`
	Lng   *float64 `json:"lng" binding:"required"`
	Speed float64  `json:"speed"`
}

type CompleteDeliveryRequest struct {
	ConfirmationSignature string `json:"confirmation_signature"`
	ConfirmationPhoto     string `json:"confirmation_photo"`
	Note                  string `json:"note"`
}

// -------- Core Logic --------

// AddRoutePoint appends one trace sample. Validation is numeric-range only;
// the trace is a lazy append-only log, never rewritten.
func AddRoutePoint(db *gorm.DB, pub events.Publisher, delivery *models.Delivery, lat, lng, speed float64) (*models.RoutePoint, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 || speed < 0 {
		return nil, errors.New("route point out of numeric range")
	}

	point := models.RoutePoint{
		DeliveryID: delivery.ID,
		Lat:        lat,
		Lng:        lng,
		Speed:      speed,
		RecordedAt: time.Now(),
	}
	if err := db.Create(&point).Error; err != nil {
		return nil, err
	}

	pub.Publish(events.Event{
		Type:    events.TypeDeliveryLocation,
		OrderID: delivery.OrderID,
		Payload: map[string]interface{}{"lat": lat, "lng": lng, "speed": speed},
	})
	return &point, nil
}

// Complete finishes a delivery: the order transition to delivered does the
// status mirroring and duration stamping, then the confirmation artifact
// references are stored on the delivery record.
func Complete(db *gorm.DB, pub events.Publisher, delivery *models.Delivery, agentID string, req CompleteDeliveryRequest) error {
	if delivery.Status != models.DeliveryStatusInTransit {
		return ErrNotInTransit
	}

	var order models.Order
	if err := db.First(&order, "id = ?", delivery.OrderID).Error; err != nil {
		return err
	}

	if err := orderControllers.Transition(db, pub, &order, agentID, models.RoleDelivery,
		models.OrderStatusDelivered, req.Note); err != nil {
		return err
	}

	if err := db.Model(delivery).Updates(map[string]interface{}{
		"confirmation_signature": req.ConfirmationSignature,
		"confirmation_photo":     req.ConfirmationPhoto,
	}).Error; err != nil {
		return err
	}

	// Hand the agent back to the pool.
	return db.Model(&models.User{}).
		Where("id = ?", agentID).
		Update("is_available", true).Error
}

// -------- Handlers --------

// GET /deliveries/:deliveryID
func GetDeliveryHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var delivery models.Delivery
		if err := db.Preload("Route").First(&delivery, "id = ?", c.Param("deliveryID")).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "delivery not found"})
			return
		}

		// Visible to its partner, the order's customer or farmer, or an
		// admin. Nobody else.
		actorID, role := middleware.Actor(c)
		if role != models.RoleAdmin && delivery.PartnerID != actorID {
			var order models.Order
			if err := db.First(&order, "id = ?", delivery.OrderID).Error; err != nil ||
				(order.CustomerID != actorID && order.FarmerID != actorID) {
				c.JSON(http.StatusForbidden, gin.H{"error": "not your delivery"})
				return
			}
		}
		c.JSON(http.StatusOK, delivery)
	}
}

// POST /deliveries/:deliveryID/route
func AddRoutePointHandler(db *gorm.DB, pub events.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RoutePointRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		delivery, ok := ownDelivery(db, c)
		if !ok {
			return
		}

		point, err := AddRoutePoint(db, pub, delivery, *req.Lat, *req.Lng, req.Speed)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, point)
	}
}

// POST /deliveries/:deliveryID/complete
func CompleteDeliveryHandler(db *gorm.DB, pub events.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CompleteDeliveryRequest
		_ = c.ShouldBindJSON(&req)

		delivery, ok := ownDelivery(db, c)
		if !ok {
			return
		}

		agentID, _ := middleware.Actor(c)
		if err := Complete(db, pub, delivery, agentID, req); err != nil {
			switch {
			case errors.Is(err, ErrNotInTransit),
				errors.Is(err, orderControllers.ErrIllegalTransition):
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			case errors.Is(err, orderControllers.ErrNotAssignedAgent):
				c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}

		// Re-read for the stamped durations.
		if err := db.First(delivery, "id = ?", delivery.ID).Error; err == nil {
			c.JSON(http.StatusOK, delivery)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Delivery completed"})
	}
}

// GET /deliveries/performance — the agent's on-time record.
func PerformanceHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		agentID, _ := middleware.Actor(c)

		var deliveries []models.Delivery
		if err := db.Where("partner_id = ? AND status = ?", agentID, models.DeliveryStatusDelivered).
			Find(&deliveries).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		total := len(deliveries)
		onTime := 0
		var totalActual time.Duration
		for _, d := range deliveries {
			if d.OnTimeDelivery != nil && *d.OnTimeDelivery {
				onTime++
			}
			totalActual += d.ActualDuration
		}

		summary := gin.H{
			"total_deliveries": total,
			"on_time":          onTime,
		}
		if total > 0 {
			summary["on_time_rate"] = float64(onTime) / float64(total)
			summary["avg_duration_minutes"] = totalActual.Minutes() / float64(total)
		}
		c.JSON(http.StatusOK, summary)
	}
}

// ownDelivery loads the delivery and enforces that the caller is its agent.
func ownDelivery(db *gorm.DB, c *gin.Context) (*models.Delivery, bool) {
	var delivery models.Delivery
	if err := db.First(&delivery, "id = ?", c.Param("deliveryID")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "delivery not found"})
		return nil, false
	}

	agentID, _ := middleware.Actor(c)
	if delivery.PartnerID != agentID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your delivery"})
		return nil, false
	}
	return &delivery, true
}
