package paymentControllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	orderControllers "github.com/malini-2707/FarmConnect-sub000/controllers/order"
	"github.com/malini-2707/FarmConnect-sub000/events"
	"github.com/malini-2707/FarmConnect-sub000/middleware"
	"github.com/malini-2707/FarmConnect-sub000/models"
	"gorm.io/gorm"
)

// -------- Request Structs --------

type InitiatePaymentRequest struct {
	OrderID uint   `json:"order_id" binding:"required"`
	Method  string `json:"method" binding:"required"`
	Gateway string `json:"gateway"`
}

type RefundRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
	Reason string  `json:"reason"`
}

// -------- Handlers --------

// POST /payments/initiate
func InitiatePaymentHandler(db *gorm.DB, pub events.Publisher, registry Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req InitiatePaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var method models.PaymentMethod
		switch strings.ToLower(req.Method) {
		case string(models.PaymentMethodUPI):
			method = models.PaymentMethodUPI
		case string(models.PaymentMethodCard):
			method = models.PaymentMethodCard
		case string(models.PaymentMethodNetBanking):
			method = models.PaymentMethodNetBanking
		case string(models.PaymentMethodCOD):
			method = models.PaymentMethodCOD
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment method"})
			return
		}

		var order models.Order
		if err := db.First(&order, "id = ?", req.OrderID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		customerID, _ := middleware.Actor(c)
		if order.CustomerID != customerID {
			c.JSON(http.StatusForbidden, gin.H{"error": "not your order"})
			return
		}

		var gw Gateway
		if method != models.PaymentMethodCOD {
			name := req.Gateway
			if name == "" {
				name = "simulated"
			}
			var err error
			if gw, err = registry.Get(name); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}

		payment, err := Initiate(db, pub, &order, method, gw)
		if err != nil {
			if errors.Is(err, ErrGatewayUnavailable) {
				c.JSON(http.StatusBadGateway, gin.H{
					"error":   err.Error(),
					"payment": payment,
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, payment)
	}
}

// GET /payments/order/:orderID
func GetPaymentHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var payment models.Payment
		if err := db.Preload("History").
			Where("order_id = ?", c.Param("orderID")).
			First(&payment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, payment)
	}
}

// POST /payments/order/:orderID/cancel
func CancelPaymentHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Reason string `json:"reason"`
		}
		_ = c.ShouldBindJSON(&req)

		var order models.Order
		if err := db.First(&order, "id = ?", c.Param("orderID")).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		customerID, _ := middleware.Actor(c)
		if order.CustomerID != customerID {
			c.JSON(http.StatusForbidden, gin.H{"error": "not your order"})
			return
		}

		var payment models.Payment
		if err := db.Where("order_id = ?", order.ID).First(&payment).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
			return
		}

		changed, err := Cancel(db, &payment, req.Reason)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !changed {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "payment is not cancellable"})
			return
		}
		c.JSON(http.StatusOK, payment)
	}
}

// POST /payments/:paymentID/refund  (admin)
func RefundHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RefundRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var payment models.Payment
		if err := db.First(&payment, "id = ?", c.Param("paymentID")).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
			return
		}

		if err := Refund(db, &payment, req.Amount, req.Reason); err != nil {
			if errors.Is(err, ErrRefundNotAllowed) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, payment)
	}
}

// POST /payments/order/:orderID/confirm-cod  (assigned agent)
func ConfirmCODHandler(db *gorm.DB, pub events.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var order models.Order
		if err := db.First(&order, "id = ?", c.Param("orderID")).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}

		agentID, _ := middleware.Actor(c)
		payment, err := ConfirmCOD(db, pub, &order, agentID)
		if err != nil {
			switch {
			case errors.Is(err, ErrCODNotConfirmable):
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			case errors.Is(err, orderControllers.ErrNotAssignedAgent):
				c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			case errors.Is(err, gorm.ErrRecordNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "no cash payment for this order"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, payment)
	}
}
