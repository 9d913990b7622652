package paymentControllers

import (
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	dispatchControllers "github.com/malini-2707/FarmConnect-sub000/controllers/dispatch"
	orderControllers "github.com/malini-2707/FarmConnect-sub000/controllers/order"
	"github.com/malini-2707/FarmConnect-sub000/events"
	"github.com/malini-2707/FarmConnect-sub000/models"
	"gorm.io/gorm"
)

var (
	// ErrRefundNotAllowed means the payment is not in a refundable state or
	// the amount exceeds what was paid.
	ErrRefundNotAllowed = errors.New("refund not allowed for this payment")
	// ErrCODNotConfirmable means the order is not delivered yet or the actor
	// is not its assigned agent.
	ErrCODNotConfirmable = errors.New("cash settlement cannot be confirmed")
)

func newTransactionID() string {
	return "TXN-" + uuid.NewString()
}

// Initiate creates (or re-arms) the payment record for an order. Idempotent:
// a live payment for the order is returned as-is, so a retried checkout can
// never double-charge. A failed or cancelled attempt is re-armed in place,
// keeping the 1:1 order-payment invariant.
func Initiate(db *gorm.DB, pub events.Publisher, order *models.Order, method models.PaymentMethod, gw Gateway) (*models.Payment, error) {
	var existing models.Payment
	err := db.Where("order_id = ?", order.ID).First(&existing).Error
	switch {
	case err == nil:
		if existing.Status != models.PaymentStatusFailed && existing.Status != models.PaymentStatusCancelled {
			return &existing, nil
		}
		return reinitiate(db, pub, order, &existing, method, gw)
	case errors.Is(err, gorm.ErrRecordNotFound):
		// fall through to create
	default:
		return nil, err
	}

	payment := models.Payment{
		OrderID:       order.ID,
		Amount:        order.FinalAmount,
		Currency:      "INR",
		Method:        method,
		TransactionID: newTransactionID(),
	}

	armErr := armPayment(&payment, order, method, gw)
	if armErr != nil && payment.Status != models.PaymentStatusFailed {
		return nil, armErr
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		note := "payment initiated (" + string(method) + ")"
		if armErr != nil {
			note = "gateway unavailable: " + armErr.Error()
		}
		event := models.PaymentEvent{
			PaymentID: payment.ID,
			Status:    payment.Status,
			Amount:    payment.Amount,
			Note:      note,
		}
		return tx.Create(&event).Error
	})
	if err != nil {
		return nil, err
	}
	if armErr != nil {
		// The failed attempt is persisted so reconciliation can see it; the
		// caller gets the gateway error and may re-initiate.
		return &payment, armErr
	}

	// COD orders enter the dispatch pool immediately; gateway orders wait
	// for the completed callback.
	if method == models.PaymentMethodCOD {
		dispatchControllers.NotifyNearbyAgents(db, pub, order, dispatchControllers.DefaultRadiusKm)
	}
	return &payment, nil
}

// armPayment fills in the gateway or COD specifics of a fresh attempt.
func armPayment(payment *models.Payment, order *models.Order, method models.PaymentMethod, gw Gateway) error {
	if method == models.PaymentMethodCOD {
		payment.Status = models.PaymentStatusPending
		return nil
	}

	if gw == nil {
		return ErrUnknownGateway
	}
	correlationID, checkoutRef, err := gw.CreateIntent(order)
	if err != nil {
		// A dead gateway fails the attempt; the customer may re-initiate.
		payment.Status = models.PaymentStatusFailed
		payment.GatewayName = gw.Name()
		return err
	}
	payment.Status = models.PaymentStatusProcessing
	payment.GatewayName = gw.Name()
	payment.GatewayOrderID = correlationID
	payment.GatewaySignature = checkoutRef
	return nil
}

func reinitiate(db *gorm.DB, pub events.Publisher, order *models.Order, payment *models.Payment, method models.PaymentMethod, gw Gateway) (*models.Payment, error) {
	fresh := *payment
	fresh.Method = method
	fresh.TransactionID = newTransactionID()
	fresh.GatewayName = ""
	fresh.GatewayOrderID = ""
	fresh.GatewayPaymentID = ""

	armErr := armPayment(&fresh, order, method, gw)
	if armErr != nil && fresh.Status != models.PaymentStatusFailed {
		return nil, armErr
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(payment).Updates(map[string]interface{}{
			"method":             fresh.Method,
			"status":             fresh.Status,
			"transaction_id":     fresh.TransactionID,
			"gateway_name":       fresh.GatewayName,
			"gateway_order_id":   fresh.GatewayOrderID,
			"gateway_payment_id": fresh.GatewayPaymentID,
		}).Error; err != nil {
			return err
		}
		note := "payment re-initiated (" + string(method) + ")"
		if armErr != nil {
			note = "gateway unavailable: " + armErr.Error()
		}
		event := models.PaymentEvent{
			PaymentID: payment.ID,
			Status:    fresh.Status,
			Amount:    payment.Amount,
			Note:      note,
		}
		return tx.Create(&event).Error
	})
	if err != nil {
		return nil, err
	}
	if armErr != nil {
		*payment = fresh
		return payment, armErr
	}

	if method == models.PaymentMethodCOD {
		dispatchControllers.NotifyNearbyAgents(db, pub, order, dispatchControllers.DefaultRadiusKm)
	}
	*payment = fresh
	return payment, nil
}

// MarkCompleted settles a payment identified by its gateway correlation id.
// Unknown correlation ids are logged and left alone: the webhook may have
// raced the local write, and the caller is expected to acknowledge anyway.
// Replays of an already-completed payment are no-ops with no duplicate
// history row. Reports whether this call changed anything.
func MarkCompleted(db *gorm.DB, pub events.Publisher, correlationID, externalPaymentID, note string) (bool, error) {
	var payment models.Payment
	if err := db.Where("gateway_order_id = ?", correlationID).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("payment: no local record for gateway correlation %q; leaving for reconciliation", correlationID)
			return false, nil
		}
		return false, err
	}

	changed := false
	err := db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status <> ?", payment.ID, models.PaymentStatusCompleted).
			Updates(map[string]interface{}{
				"status":             models.PaymentStatusCompleted,
				"gateway_payment_id": externalPaymentID,
				"paid_at":            now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Idempotent replay.
			return nil
		}
		changed = true

		event := models.PaymentEvent{
			PaymentID: payment.ID,
			Status:    models.PaymentStatusCompleted,
			Amount:    payment.Amount,
			Note:      note,
		}
		if err := tx.Create(&event).Error; err != nil {
			return err
		}

		_, err := orderControllers.MarkPaid(tx, payment.OrderID)
		return err
	})
	if err != nil || !changed {
		return changed, err
	}

	var order models.Order
	if err := db.First(&order, "id = ?", payment.OrderID).Error; err == nil {
		pub.Publish(events.Event{
			Type:         events.TypePaymentCompleted,
			OrderID:      order.ID,
			TargetUserID: order.CustomerID,
			Payload:      map[string]interface{}{"amount": payment.Amount, "transaction_id": payment.TransactionID},
		})
		// A paid order is now dispatchable; push offers out.
		dispatchControllers.NotifyNearbyAgents(db, pub, &order, dispatchControllers.DefaultRadiusKm)
	}
	return true, nil
}

// MarkFailed records a failed gateway attempt. Terminal for the attempt
// only; the customer may initiate a fresh one.
func MarkFailed(db *gorm.DB, correlationID, note string) (bool, error) {
	var payment models.Payment
	if err := db.Where("gateway_order_id = ?", correlationID).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("payment: no local record for gateway correlation %q on failure callback", correlationID)
			return false, nil
		}
		return false, err
	}

	changed := false
	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status IN ?", payment.ID,
				[]models.PaymentStatus{models.PaymentStatusPending, models.PaymentStatusProcessing}).
			Update("status", models.PaymentStatusFailed)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		changed = true
		event := models.PaymentEvent{
			PaymentID: payment.ID,
			Status:    models.PaymentStatusFailed,
			Amount:    payment.Amount,
			Note:      note,
		}
		return tx.Create(&event).Error
	})
	return changed, err
}

// Cancel abandons a live checkout attempt. Terminal for the attempt only;
// Initiate re-arms a cancelled payment in place.
func Cancel(db *gorm.DB, payment *models.Payment, reason string) (bool, error) {
	changed := false
	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status IN ?", payment.ID,
				[]models.PaymentStatus{models.PaymentStatusPending, models.PaymentStatusProcessing}).
			Update("status", models.PaymentStatusCancelled)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		changed = true
		event := models.PaymentEvent{
			PaymentID: payment.ID,
			Status:    models.PaymentStatusCancelled,
			Amount:    payment.Amount,
			Note:      reason,
		}
		return tx.Create(&event).Error
	})
	if changed {
		payment.Status = models.PaymentStatusCancelled
	}
	return changed, err
}

// Refund moves a completed payment to refunded. Does not touch delivery
// state.
func Refund(db *gorm.DB, payment *models.Payment, amount float64, reason string) error {
	if payment.Status != models.PaymentStatusCompleted {
		return ErrRefundNotAllowed
	}
	if amount <= 0 || amount > payment.Amount {
		return ErrRefundNotAllowed
	}

	return db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentStatusCompleted).
			Updates(map[string]interface{}{
				"status":        models.PaymentStatusRefunded,
				"refund_amount": amount,
				"refund_reason": reason,
				"refunded_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRefundNotAllowed
		}
		payment.Status = models.PaymentStatusRefunded

		event := models.PaymentEvent{
			PaymentID: payment.ID,
			Status:    models.PaymentStatusRefunded,
			Amount:    amount,
			Note:      reason,
		}
		return tx.Create(&event).Error
	})
}

// ConfirmCOD settles a cash-on-delivery payment. Only the order's assigned
// agent may confirm, and only once the order is delivered.
func ConfirmCOD(db *gorm.DB, pub events.Publisher, order *models.Order, agentID string) (*models.Payment, error) {
	if order.Status != models.OrderStatusDelivered {
		return nil, ErrCODNotConfirmable
	}
	if order.DeliveryPartnerID == nil || *order.DeliveryPartnerID != agentID {
		return nil, orderControllers.ErrNotAssignedAgent
	}

	var payment models.Payment
	if err := db.Where("order_id = ? AND method = ?", order.ID, models.PaymentMethodCOD).
		First(&payment).Error; err != nil {
		return nil, err
	}

	changed := false
	err := db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status <> ?", payment.ID, models.PaymentStatusCompleted).
			Updates(map[string]interface{}{"status": models.PaymentStatusCompleted, "paid_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Already confirmed; replay is a no-op.
			return nil
		}
		changed = true

		event := models.PaymentEvent{
			PaymentID: payment.ID,
			Status:    models.PaymentStatusCompleted,
			Amount:    payment.Amount,
			Note:      "cash collected by " + agentID,
		}
		if err := tx.Create(&event).Error; err != nil {
			return err
		}
		_, err := orderControllers.MarkPaid(tx, order.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	payment.Status = models.PaymentStatusCompleted
	if changed {
		pub.Publish(events.Event{
			Type:         events.TypePaymentCODConfirmed,
			OrderID:      order.ID,
			TargetUserID: order.CustomerID,
			Payload:      map[string]interface{}{"amount": payment.Amount},
		})
	}
	return &payment, nil
}
