package dispatchControllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/malini-2707/FarmConnect-sub000/events"
	"github.com/malini-2707/FarmConnect-sub000/geo"
	"github.com/malini-2707/FarmConnect-sub000/middleware"
	"github.com/malini-2707/FarmConnect-sub000/models"
	"gorm.io/gorm"
)

var (
	// ErrAlreadyAssigned means another agent's accept won the race. Callers
	// should re-poll available orders.
	ErrAlreadyAssigned = errors.New("order already assigned to another delivery partner")
	// ErrAgentUnavailable means the agent is offline or already carrying an
	// order.
	ErrAgentUnavailable = errors.New("delivery partner is not available")
	// ErrNotEligible means the order is not (or no longer) open for dispatch.
	ErrNotEligible = errors.New("order is not open for dispatch")
)

const (
	// DefaultRadiusKm bounds both pull queries and push offers.
	DefaultRadiusKm = 10.0
	// avgSpeedKmh and pickupBuffer feed the delivery time estimate.
	avgSpeedKmh  = 25.0
	pickupBuffer = 15 * time.Minute
)

// dispatchableStatuses are the order statuses still open to an agent.
var dispatchableStatuses = []models.OrderStatus{
	models.OrderStatusPending,
	models.OrderStatusConfirmed,
	models.OrderStatusPreparing,
	models.OrderStatusReadyForPickup,
}

// openOrders narrows a query to orders an agent may still claim: no
// committed partner and the payment gate open (paid online, or COD).
func openOrders(db *gorm.DB) *gorm.DB {
	return db.Model(&models.Order{}).
		Where("status IN ?", dispatchableStatuses).
		Where("delivery_partner_id IS NULL").
		Where("delivery_partner_status = ?", models.PartnerStatusPending).
		Where("payment_method = ? OR payment_status = ?",
			models.PaymentMethodCOD, models.PaymentStatusCompleted)
}

// EstimateDuration converts a pickup distance into a delivery time estimate.
func EstimateDuration(distanceKm float64) time.Duration {
	travel := time.Duration(distanceKm / avgSpeedKmh * float64(time.Hour))
	return travel + pickupBuffer
}

// NotifyNearbyAgents pushes an offer event to every online, available agent
// within the radius of the order's pickup point. Best-effort; failures never
// surface to the order flow.
func NotifyNearbyAgents(db *gorm.DB, pub events.Publisher, order *models.Order, radiusKm float64) {
	lat, lng := order.PickupLat, order.PickupLng
	if lat == nil || lng == nil {
		lat, lng = order.DeliveryLat, order.DeliveryLng
	}
	if lat == nil || lng == nil {
		return
	}

	var agents []models.User
	if err := db.Where("role = ? AND is_online = ? AND is_available = ?",
		models.RoleDelivery, true, true).Find(&agents).Error; err != nil {
		return
	}

	candidates := make([]geo.Candidate, 0, len(agents))
	for _, a := range agents {
		candidates = append(candidates, geo.Candidate{ID: a.ID, Lat: a.Lat, Lng: a.Lng})
	}

	for _, match := range geo.Nearby(*lat, *lng, candidates, radiusKm) {
		pub.Publish(events.Event{
			Type:         events.TypeDeliveryAssigned,
			OrderID:      order.ID,
			TargetUserID: match.ID,
			Payload: map[string]interface{}{
				"offer":        true,
				"order_number": order.OrderNumber,
				"distance_km":  match.DistanceKm,
				"order_value":  order.FinalAmount,
				"urgent":       order.Status == models.OrderStatusReadyForPickup,
			},
		})
	}
}

// AcceptOrder assigns the order to the agent if and only if nobody else got
// there first. The whole contest is decided by one conditional UPDATE; a
// lost race comes back as ErrAlreadyAssigned, never as a silent overwrite.
func AcceptOrder(db *gorm.DB, pub events.Publisher, orderID uint, agent *models.User) (*models.Delivery, error) {
	if agent.Role != models.RoleDelivery {
		return nil, ErrAgentUnavailable
	}

	var delivery models.Delivery
	err := db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		// The assignment slot is the only contended resource; this
		// compare-and-set is its only protection.
		res := openOrders(tx).
			Where("id = ?", orderID).
			Updates(map[string]interface{}{
				"delivery_partner_id":     agent.ID,
				"delivery_partner_status": models.PartnerStatusAccepted,
				"partner_assigned_at":     now,
				"partner_accepted_at":     now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Either the order is gone from the pool or somebody else won.
			var count int64
			if err := tx.Model(&models.Order{}).
				Where("id = ? AND delivery_partner_id IS NOT NULL", orderID).
				Count(&count).Error; err == nil && count > 0 {
				return ErrAlreadyAssigned
			}
			return ErrNotEligible
		}

		// Claim the agent too, so one agent cannot carry two orders.
		agentRes := tx.Model(&models.User{}).
			Where("id = ? AND is_available = ?", agent.ID, true).
			Update("is_available", false)
		if agentRes.Error != nil {
			return agentRes.Error
		}
		if agentRes.RowsAffected == 0 {
			return ErrAgentUnavailable
		}

		var order models.Order
		if err := tx.First(&order, "id = ?", orderID).Error; err != nil {
			return err
		}

		var distanceKm float64
		if order.PickupLat != nil && order.PickupLng != nil && agent.Lat != nil && agent.Lng != nil {
			distanceKm = geo.HaversineKm(*agent.Lat, *agent.Lng, *order.PickupLat, *order.PickupLng)
		}
		estimated := EstimateDuration(distanceKm)

		delivery = models.Delivery{
			OrderID:           order.ID,
			PartnerID:         agent.ID,
			Status:            models.DeliveryStatusAccepted,
			PickupLat:         order.PickupLat,
			PickupLng:         order.PickupLng,
			DropLat:           order.DeliveryLat,
			DropLng:           order.DeliveryLng,
			DistanceKm:        distanceKm,
			EstimatedDuration: estimated,
		}
		if err := tx.Create(&delivery).Error; err != nil {
			return err
		}

		eta := now.Add(estimated)
		return tx.Model(&order).Update("estimated_delivery_at", eta).Error
	})
	if err != nil {
		return nil, err
	}

	// Tell everyone else the offer is gone.
	pub.Publish(events.Event{
		Type:    events.TypeDeliveryAssigned,
		OrderID: orderID,
		Payload: map[string]interface{}{"taken": true, "partner_id": agent.ID},
	})
	return &delivery, nil
}

// DeclineOrder lets the currently assigned agent hand the order back before
// pickup. The partner slot is reset conditionally, so only the holder can
// release it, and the order re-enters the dispatch pool with a fresh round
// of offers. The partner_status on the row goes back to pending so the pool
// query matches again; the decline itself lives in the published event.
func DeclineOrder(db *gorm.DB, pub events.Publisher, orderID uint, agentID string) error {
	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND delivery_partner_id = ? AND status IN ?",
				orderID, agentID, dispatchableStatuses).
			Updates(map[string]interface{}{
				"delivery_partner_id":     nil,
				"delivery_partner_status": models.PartnerStatusPending,
				"partner_assigned_at":     nil,
				"partner_accepted_at":     nil,
				"estimated_delivery_at":   nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotEligible
		}

		// Keep the delivery record for audit, marked cancelled.
		if err := tx.Model(&models.Delivery{}).
			Where("order_id = ? AND partner_id = ?", orderID, agentID).
			Update("status", models.DeliveryStatusCancelled).Error; err != nil {
			return err
		}

		return tx.Model(&models.User{}).
			Where("id = ?", agentID).
			Update("is_available", true).Error
	})
	if err != nil {
		return err
	}

	var order models.Order
	if err := db.First(&order, "id = ?", orderID).Error; err == nil {
		pub.Publish(events.Event{
			Type:         events.TypeDeliveryAssigned,
			OrderID:      order.ID,
			TargetUserID: order.CustomerID,
			Payload: map[string]interface{}{
				"order_number":   order.OrderNumber,
				"partner_id":     agentID,
				"partner_status": models.PartnerStatusDeclined,
			},
		})
		NotifyNearbyAgents(db, pub, &order, DefaultRadiusKm)
	}
	return nil
}

// -------- Handlers --------

// AvailableOrdersHandler is the pull direction: "open orders near me",
// distance-sorted.
// GET /dispatch/orders?lat=..&lng=..&radius_km=..
func AvailableOrdersHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		agentID, _ := middleware.Actor(c)

		lat, lng, ok := agentCoordinates(db, c, agentID)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "agent location unknown; pass lat and lng"})
			return
		}
		radiusKm := DefaultRadiusKm
		if r := c.Query("radius_km"); r != "" {
			if parsed, err := strconv.ParseFloat(r, 64); err == nil && parsed > 0 {
				radiusKm = parsed
			}
		}

		var orders []models.Order
		if err := openOrders(db).Preload("Items").Find(&orders).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		type offer struct {
			Order      models.Order `json:"order"`
			DistanceKm float64      `json:"distance_km"`
		}

		byID := make(map[string]models.Order, len(orders))
		candidates := make([]geo.Candidate, 0, len(orders))
		for _, o := range orders {
			key := strconv.FormatUint(uint64(o.ID), 10)
			byID[key] = o
			pLat, pLng := o.PickupLat, o.PickupLng
			if pLat == nil || pLng == nil {
				pLat, pLng = o.DeliveryLat, o.DeliveryLng
			}
			candidates = append(candidates, geo.Candidate{ID: key, Lat: pLat, Lng: pLng})
		}

		offers := []offer{}
		for _, match := range geo.Nearby(lat, lng, candidates, radiusKm) {
			offers = append(offers, offer{Order: byID[match.ID], DistanceKm: match.DistanceKm})
		}
		c.JSON(http.StatusOK, offers)
	}
}

// POST /dispatch/orders/:orderID/accept
func AcceptOrderHandler(db *gorm.DB, pub events.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, err := strconv.Atoi(c.Param("orderID"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order ID"})
			return
		}

		agentID, _ := middleware.Actor(c)
		var agent models.User
		if err := db.First(&agent, "id = ?", agentID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "delivery partner not found"})
			return
		}

		delivery, err := AcceptOrder(db, pub, uint(orderID), &agent)
		if err != nil {
			switch {
			case errors.Is(err, ErrAlreadyAssigned):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			case errors.Is(err, ErrNotEligible), errors.Is(err, ErrAgentUnavailable):
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, delivery)
	}
}

// POST /dispatch/orders/:orderID/decline
func DeclineOrderHandler(db *gorm.DB, pub events.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, err := strconv.Atoi(c.Param("orderID"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order ID"})
			return
		}

		agentID, _ := middleware.Actor(c)
		if err := DeclineOrder(db, pub, uint(orderID), agentID); err != nil {
			if errors.Is(err, ErrNotEligible) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Order released back to the pool"})
	}
}

// PUT /dispatch/availability
func SetAvailabilityHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			IsOnline    *bool `json:"is_online"`
			IsAvailable *bool `json:"is_available"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		updates := map[string]interface{}{}
		if req.IsOnline != nil {
			updates["is_online"] = *req.IsOnline
		}
		if req.IsAvailable != nil {
			updates["is_available"] = *req.IsAvailable
		}
		if len(updates) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
			return
		}

		agentID, _ := middleware.Actor(c)
		if err := db.Model(&models.User{}).Where("id = ?", agentID).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Availability updated"})
	}
}

// PUT /dispatch/location
func UpdateLocationHandler(db *gorm.DB, pub events.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Lat *float64 `json:"lat" binding:"required"`
			Lng *float64 `json:"lng" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if *req.Lat < -90 || *req.Lat > 90 || *req.Lng < -180 || *req.Lng > 180 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "coordinates out of range"})
			return
		}

		agentID, _ := middleware.Actor(c)
		if err := db.Model(&models.User{}).Where("id = ?", agentID).
			Updates(map[string]interface{}{"lat": *req.Lat, "lng": *req.Lng}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		// Customers tracking an in-flight order see the agent move.
		var order models.Order
		if err := db.Where("delivery_partner_id = ? AND status IN ?", agentID,
			[]models.OrderStatus{models.OrderStatusPickedUp, models.OrderStatusInTransit}).
			First(&order).Error; err == nil {
			pub.Publish(events.Event{
				Type:         events.TypeDeliveryLocation,
				OrderID:      order.ID,
				TargetUserID: order.CustomerID,
				Payload:      map[string]interface{}{"lat": *req.Lat, "lng": *req.Lng},
			})
		}
		c.JSON(http.StatusOK, gin.H{"message": "Location updated"})
	}
}

// agentCoordinates resolves the agent's position from query params first,
// falling back to the stored profile location.
func agentCoordinates(db *gorm.DB, c *gin.Context, agentID string) (float64, float64, bool) {
	latStr, lngStr := c.Query("lat"), c.Query("lng")
	if latStr != "" && lngStr != "" {
		lat, errLat := strconv.ParseFloat(latStr, 64)
		lng, errLng := strconv.ParseFloat(lngStr, 64)
		if errLat == nil && errLng == nil {
			return lat, lng, true
		}
	}

	var agent models.User
	if err := db.First(&agent, "id = ?", agentID).Error; err != nil {
		return 0, 0, false
	}
	if agent.Lat == nil || agent.Lng == nil {
		return 0, 0, false
	}
	return *agent.Lat, *agent.Lng, true
}
