package orderControllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	catalogControllers "github.com/malini-2707/FarmConnect-sub000/controllers/catalog"
	"github.com/malini-2707/FarmConnect-sub000/events"
	"github.com/malini-2707/FarmConnect-sub000/middleware"
	"github.com/malini-2707/FarmConnect-sub000/models"
	"gorm.io/gorm"
)

// ErrMixedFarmers means the line items span more than one farmer.
var ErrMixedFarmers = errors.New("all items in an order must come from a single farmer")

// ErrAlreadyRated means the order has been rated before.
var ErrAlreadyRated = errors.New("order has already been rated")

const (
	baseDeliveryFee  = 30.0
	freeDeliveryOver = 500.0
	taxRate          = 0.05
)

// -------- Request Structs --------

type PlaceOrderItem struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,min=1"`
}

type PlaceOrderRequest struct {
	Items           []PlaceOrderItem `json:"items" binding:"required,min=1,dive"`
	PaymentMethod   string           `json:"payment_method" binding:"required"`
	DeliveryAddress models.Address   `json:"delivery_address"`
	DeliveryLat     *float64         `json:"delivery_lat"`
	DeliveryLng     *float64         `json:"delivery_lng"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

type RateOrderRequest struct {
	Rating int `json:"rating" binding:"required,min=1,max=5"`
}

// -------- Helpers --------

// Map string to OrderStatus
func mapOrderStatus(status string) (models.OrderStatus, error) {
	switch strings.ToLower(status) {
	case string(models.OrderStatusPending):
		return models.OrderStatusPending, nil
	case string(models.OrderStatusConfirmed):
		return models.OrderStatusConfirmed, nil
	case string(models.OrderStatusPreparing):
		return models.OrderStatusPreparing, nil
	case string(models.OrderStatusReadyForPickup):
		return models.OrderStatusReadyForPickup, nil
	case string(models.OrderStatusPickedUp):
		return models.OrderStatusPickedUp, nil
	case string(models.OrderStatusInTransit):
		return models.OrderStatusInTransit, nil
	case string(models.OrderStatusDelivered):
		return models.OrderStatusDelivered, nil
	case string(models.OrderStatusCancelled):
		return models.OrderStatusCancelled, nil
	default:
		return "", errors.New("invalid order status")
	}
}

func mapPaymentMethod(method string) (models.PaymentMethod, error) {
	switch strings.ToLower(method) {
	case string(models.PaymentMethodUPI):
		return models.PaymentMethodUPI, nil
	case string(models.PaymentMethodCard):
		return models.PaymentMethodCard, nil
	case string(models.PaymentMethodNetBanking):
		return models.PaymentMethodNetBanking, nil
	case string(models.PaymentMethodCOD):
		return models.PaymentMethodCOD, nil
	default:
		return "", errors.New("invalid payment method")
	}
}

// generateOrderNumber builds a date-prefixed, collision-resistant order
// number, e.g. ORD-20250831-7F3A2C. The random suffix keeps concurrent
// creations from colliding without a shared counter.
func generateOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return "ORD-" + time.Now().Format("20060102") + "-" + suffix
}

// RecomputeTotals is the only place the order's final amount is derived.
func RecomputeTotals(order *models.Order) {
	var subtotal float64
	for i := range order.Items {
		item := &order.Items[i]
		item.LineTotal = item.UnitPrice * float64(item.Quantity)
		subtotal += item.LineTotal
	}
	order.Subtotal = subtotal
	if subtotal >= freeDeliveryOver {
		order.DeliveryFee = 0
	} else {
		order.DeliveryFee = baseDeliveryFee
	}
	order.Tax = subtotal * taxRate
	order.FinalAmount = order.Subtotal + order.DeliveryFee + order.Tax
}

// -------- Core Logic --------

// PlaceOrder validates the line items, reserves stock atomically, derives
// the farmer from the first item and creates the order in pending status.
func PlaceOrder(db *gorm.DB, pub events.Publisher, customerID string, req PlaceOrderRequest) (*models.Order, error) {
	method, err := mapPaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	var order models.Order
	err = db.Transaction(func(tx *gorm.DB) error {
		var items []models.OrderItem
		var farmerID string
		var pickupLat, pickupLng *float64

		for _, reqItem := range req.Items {
			var product models.Product
			if err := tx.First(&product, "id = ?", reqItem.ProductID).Error; err != nil {
				return err
			}

			// Single farmer per order, derived from the first line item.
			if farmerID == "" {
				farmerID = product.FarmerID
				var farmer models.User
				if err := tx.First(&farmer, "id = ?", farmerID).Error; err != nil {
					return err
				}
				pickupLat, pickupLng = farmer.Lat, farmer.Lng
			} else if product.FarmerID != farmerID {
				return ErrMixedFarmers
			}

			if err := catalogControllers.DecrementStock(tx, product.ID, reqItem.Quantity); err != nil {
				return err
			}

			items = append(items, models.OrderItem{
				ProductID:   product.ID,
				ProductName: product.Name,
				Unit:        product.Unit,
				UnitPrice:   product.Price,
				Quantity:    reqItem.Quantity,
			})
		}

		order = models.Order{
			OrderNumber:     generateOrderNumber(),
			CustomerID:      customerID,
			FarmerID:        farmerID,
			Items:           items,
			Status:          models.OrderStatusPending,
			PaymentMethod:   method,
			PaymentStatus:   models.PaymentStatusPending,
			DeliveryAddress: req.DeliveryAddress,
			DeliveryLat:     req.DeliveryLat,
			DeliveryLng:     req.DeliveryLng,
			PickupLat:       pickupLat,
			PickupLng:       pickupLng,
		}
		RecomputeTotals(&order)

		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		first := models.OrderStatusEvent{
			OrderID:   order.ID,
			Status:    models.OrderStatusPending,
			ActorID:   customerID,
			ActorRole: models.RoleCustomer,
			Note:      "order placed",
		}
		return tx.Create(&first).Error
	})
	if err != nil {
		return nil, err
	}

	pub.Publish(events.Event{
		Type:         events.TypeOrderCreated,
		OrderID:      order.ID,
		TargetUserID: order.FarmerID,
		Payload:      map[string]interface{}{"order_number": order.OrderNumber, "final_amount": order.FinalAmount},
	})
	return &order, nil
}

// CancelOrder cancels an order on the customer's behalf. The cancel edge in
// the transition table is legal only from pending or confirmed, and the
// cancelled branch of Transition restores exactly the stock the order had
// reserved and releases any agent that had already accepted.
func CancelOrder(db *gorm.DB, pub events.Publisher, order *models.Order, customerID, reason string) error {
	return Transition(db, pub, order, customerID, models.RoleCustomer, models.OrderStatusCancelled, reason)
}

// RateOrder records a one-time rating on a delivered order and folds it into
// the farmer's running average. The rated_at guard makes a double submit a
// no-op failure instead of a double count.
func RateOrder(db *gorm.DB, order *models.Order, customerID string, rating int) error {
	if order.CustomerID != customerID {
		return ErrUnauthorizedActor
	}
	if order.Status != models.OrderStatusDelivered {
		return ErrIllegalTransition
	}

	return db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND rated_at IS NULL", order.ID).
			Updates(map[string]interface{}{"rating": rating, "rated_at": time.Now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyRated
		}

		// Incremental mean, folded in atomically so concurrent ratings for
		// the same farmer cannot lose updates.
		return tx.Model(&models.User{}).
			Where("id = ?", order.FarmerID).
			UpdateColumns(map[string]interface{}{
				"rating":       gorm.Expr("(rating * rating_count + ?) / (rating_count + 1)", float64(rating)),
				"rating_count": gorm.Expr("rating_count + 1"),
			}).Error
	})
}

// -------- Handlers --------

func PlaceOrderHandler(db *gorm.DB, pub events.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PlaceOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		customerID, _ := middleware.Actor(c)

		order, err := PlaceOrder(db, pub, customerID, req)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, gorm.ErrRecordNotFound) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, order)
	}
}

func GetOrderHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("orderID")
		var order models.Order
		// Accept either the numeric id or the order number.
		if err := db.
			Preload("Items").
			Preload("StatusHistory").
			Where("id = ? OR order_number = ?", id, id).
			First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		actorID, role := middleware.Actor(c)
		if !orderParty(&order, actorID, role) {
			c.JSON(http.StatusForbidden, gin.H{"error": "not your order"})
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

// orderParty reports whether the actor is one of the order's parties: its
// customer, its farmer, its assigned agent, or an admin.
func orderParty(order *models.Order, actorID string, role models.Role) bool {
	if role == models.RoleAdmin {
		return true
	}
	if order.CustomerID == actorID || order.FarmerID == actorID {
		return true
	}
	return order.DeliveryPartnerID != nil && *order.DeliveryPartnerID == actorID
}

func GetAllOrdersHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var orders []models.Order
		if err := db.
			Preload("Items").
			Preload("StatusHistory").
			Order("created_at DESC").
			Find(&orders).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, orders)
	}
}

func GetMyOrdersHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID, role := middleware.Actor(c)

		q := db.Preload("Items").Order("created_at DESC")
		switch role {
		case models.RoleFarmer:
			q = q.Where("farmer_id = ?", actorID)
		case models.RoleDelivery:
			q = q.Where("delivery_partner_id = ?", actorID)
		default:
			q = q.Where("customer_id = ?", actorID)
		}

		var orders []models.Order
		if err := q.Find(&orders).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, orders)
	}
}

func UpdateOrderStatusHandler(db *gorm.DB, pub events.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateOrderStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		target, err := mapOrderStatus(req.Status)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var order models.Order
		if err := db.First(&order, "id = ?", c.Param("orderID")).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}

		actorID, role := middleware.Actor(c)
		if err := Transition(db, pub, &order, actorID, role, target, req.Note); err != nil {
			c.JSON(transitionErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func CancelOrderHandler(db *gorm.DB, pub events.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Body is optional for a cancel.
		var req CancelOrderRequest
		_ = c.ShouldBindJSON(&req)

		var order models.Order
		if err := db.Preload("Items").First(&order, "id = ?", c.Param("orderID")).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}

		customerID, _ := middleware.Actor(c)
		if err := CancelOrder(db, pub, &order, customerID, req.Reason); err != nil {
			c.JSON(transitionErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Order cancelled", "order": order})
	}
}

func RateOrderHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var order models.Order
		if err := db.First(&order, "id = ?", c.Param("orderID")).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}

		customerID, _ := middleware.Actor(c)
		if err := RateOrder(db, &order, customerID, req.Rating); err != nil {
			c.JSON(transitionErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Thanks for rating"})
	}
}

// transitionErrorStatus maps the state-machine error taxonomy onto HTTP so
// race losers and illegal edges surface as themselves, not generic 400s.
func transitionErrorStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotAssignedAgent), errors.Is(err, ErrUnauthorizedActor):
		return http.StatusForbidden
	case errors.Is(err, ErrIllegalTransition), errors.Is(err, ErrAlreadyRated):
		return http.StatusUnprocessableEntity
	case errors.Is(err, catalogControllers.ErrInsufficientStock):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
