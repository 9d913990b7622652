package paymentControllers

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/malini-2707/FarmConnect-sub000/events"
	"gorm.io/gorm"
)

// WebhookHandler is the single inbound callback endpoint for every gateway:
// verify the signature, extract the correlation, apply the idempotent ledger
// update, and acknowledge. A missing local record still gets a 200 so the
// gateway stops retrying; the miss is logged for reconciliation.
// POST /payments/webhook/:gateway
func WebhookHandler(db *gorm.DB, pub events.Publisher, registry Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		gw, err := registry.Get(c.Param("gateway"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read webhook body"})
			return
		}

		// Signature check is the gate in front of everything; no state is
		// touched past a failure.
		if err := gw.VerifyWebhook(c.Request.Header, body); err != nil {
			if errors.Is(err, ErrSignatureInvalid) {
				log.Printf("payment: rejected %s webhook: %v", gw.Name(), err)
				c.JSON(http.StatusForbidden, gin.H{"error": "invalid webhook signature"})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}

		corr, err := gw.ExtractCorrelation(body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if corr.Success {
			if _, err := MarkCompleted(db, pub, corr.OrderRef, corr.PaymentID, gw.Name()+" webhook"); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		} else {
			if _, err := MarkFailed(db, corr.OrderRef, gw.Name()+" webhook reported failure"); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"message": "webhook processed"})
	}
}
