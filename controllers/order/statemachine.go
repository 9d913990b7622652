package orderControllers

import (
	"errors"
	"fmt"
	"time"

	catalogControllers "github.com/malini-2707/FarmConnect-sub000/controllers/catalog"
	"github.com/malini-2707/FarmConnect-sub000/events"
	"github.com/malini-2707/FarmConnect-sub000/models"
	"gorm.io/gorm"
)

var (
	// ErrIllegalTransition means the target status is not reachable from the
	// order's current status (or the order moved underneath the caller).
	ErrIllegalTransition = errors.New("illegal order status transition")
	// ErrUnauthorizedActor means the edge exists but not for this role.
	ErrUnauthorizedActor = errors.New("actor role not allowed for this transition")
	// ErrNotAssignedAgent means a delivery actor tried to advance an order
	// that is assigned to someone else (or to nobody).
	ErrNotAssignedAgent = errors.New("actor is not the assigned delivery partner")
)

// transitionTable is the single source of truth for which role may move an
// order along which edge. Consulted only through Transition and
// AllowedRoles, so the rule set stays testable away from HTTP.
var transitionTable = map[models.OrderStatus]map[models.OrderStatus][]models.Role{
	models.OrderStatusPending: {
		models.OrderStatusConfirmed: {models.RoleFarmer},
		models.OrderStatusCancelled: {models.RoleCustomer},
	},
	models.OrderStatusConfirmed: {
		models.OrderStatusPreparing: {models.RoleFarmer},
		models.OrderStatusCancelled: {models.RoleCustomer},
	},
	models.OrderStatusPreparing: {
		models.OrderStatusReadyForPickup: {models.RoleFarmer},
	},
	models.OrderStatusReadyForPickup: {
		models.OrderStatusPickedUp: {models.RoleDelivery},
	},
	models.OrderStatusPickedUp: {
		models.OrderStatusInTransit: {models.RoleDelivery},
	},
	models.OrderStatusInTransit: {
		models.OrderStatusDelivered: {models.RoleDelivery},
	},
}

// AllowedRoles returns the roles that may move an order from one status to
// another, or nil when the edge does not exist.
func AllowedRoles(from, to models.OrderStatus) []models.Role {
	return transitionTable[from][to]
}

// CanTransition reports whether the given role may move an order along the
// from -> to edge.
func CanTransition(from, to models.OrderStatus, role models.Role) bool {
	for _, r := range AllowedRoles(from, to) {
		if r == role {
			return true
		}
	}
	return false
}

// OrderLevelGrace is the leniency window applied to the order-level on-time
// check. The delivery record keeps a separate strict check.
const OrderLevelGrace = 2 * time.Hour

// Transition is the single entry point for advancing an order's status. It
// enforces the transition table, stamps the append-only history, and mirrors
// pickup/transit/delivered into the delivery record. The status write is
// conditional on the current status, so of two concurrent callers exactly
// one wins and the other observes ErrIllegalTransition.
func Transition(db *gorm.DB, pub events.Publisher, order *models.Order, actorID string, role models.Role, target models.OrderStatus, note string) error {
	from := order.Status
	roles := AllowedRoles(from, target)
	if roles == nil {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, target)
	}
	if !CanTransition(from, target, role) {
		return fmt.Errorf("%w: %s -> %s as %s", ErrUnauthorizedActor, from, target, role)
	}
	// The role alone is not enough: the edge belongs to this order's own
	// customer, its farmer, or its assigned agent, not any holder of the
	// role.
	switch role {
	case models.RoleCustomer:
		if order.CustomerID != actorID {
			return ErrUnauthorizedActor
		}
	case models.RoleFarmer:
		if order.FarmerID != actorID {
			return ErrUnauthorizedActor
		}
	case models.RoleDelivery:
		if order.DeliveryPartnerID == nil || *order.DeliveryPartnerID != actorID {
			return ErrNotAssignedAgent
		}
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, from).
			Update("status", target)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, target)
		}

		if target == models.OrderStatusCancelled {
			if err := compensateCancellation(tx, order, actorID, note); err != nil {
				return err
			}
		}

		event := models.OrderStatusEvent{
			OrderID:   order.ID,
			Status:    target,
			ActorID:   actorID,
			ActorRole: role,
			Note:      note,
		}
		if err := tx.Create(&event).Error; err != nil {
			return err
		}

		return mirrorIntoDelivery(tx, order, target)
	})
	if err != nil {
		return err
	}

	order.Status = target
	pub.Publish(events.Event{
		Type:         events.TypeOrderStatusChanged,
		OrderID:      order.ID,
		TargetUserID: order.CustomerID,
		Payload:      map[string]interface{}{"order_number": order.OrderNumber, "status": target},
	})
	return nil
}

// compensateCancellation undoes the side effects of placing the order:
// reserved stock goes back to the catalog, the cancellation metadata is
// stamped, and any assigned agent is released. Runs inside the same
// transaction as the status flip so a failed restore rolls everything back.
func compensateCancellation(tx *gorm.DB, order *models.Order, actorID, reason string) error {
	if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
		"cancelled_by":        actorID,
		"cancellation_reason": reason,
		"cancelled_at":        time.Now(),
	}).Error; err != nil {
		return err
	}

	var items []models.OrderItem
	if err := tx.Where("order_id = ?", order.ID).Find(&items).Error; err != nil {
		return err
	}
	for _, item := range items {
		if err := catalogControllers.RestoreStock(tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}

	if order.DeliveryPartnerID != nil {
		if err := tx.Model(&models.User{}).
			Where("id = ?", *order.DeliveryPartnerID).
			Update("is_available", true).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Delivery{}).
			Where("order_id = ?", order.ID).
			Update("status", models.DeliveryStatusCancelled).Error; err != nil {
			return err
		}
	}
	return nil
}

// mirrorIntoDelivery keeps the delivery record in lock-step with the order
// for the agent-driven edges. The order transition is the source of truth;
// the delivery record only follows.
func mirrorIntoDelivery(tx *gorm.DB, order *models.Order, target models.OrderStatus) error {
	var status models.DeliveryStatus
	switch target {
	case models.OrderStatusPickedUp:
		status = models.DeliveryStatusPickedUp
	case models.OrderStatusInTransit:
		status = models.DeliveryStatusInTransit
	case models.OrderStatusDelivered:
		status = models.DeliveryStatusDelivered
	default:
		return nil
	}

	var delivery models.Delivery
	if err := tx.Where("order_id = ?", order.ID).First(&delivery).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// No delivery record yet (should not happen past assignment);
			// nothing to mirror.
			return nil
		}
		return err
	}

	now := time.Now()
	updates := map[string]interface{}{"status": status}
	switch status {
	case models.DeliveryStatusPickedUp:
		updates["pickup_time"] = now
	case models.DeliveryStatusDelivered:
		updates["delivery_time"] = now
		if delivery.PickupTime != nil {
			actual := now.Sub(*delivery.PickupTime)
			updates["actual_duration"] = actual
			if delivery.EstimatedDuration > 0 {
				updates["on_time_delivery"] = actual <= delivery.EstimatedDuration
			}
		}
	}
	if err := tx.Model(&delivery).Updates(updates).Error; err != nil {
		return err
	}

	if status == models.DeliveryStatusDelivered {
		orderUpdates := map[string]interface{}{"delivered_at": now}
		if order.EstimatedDeliveryAt != nil {
			orderUpdates["delivered_on_time"] = !now.After(order.EstimatedDeliveryAt.Add(OrderLevelGrace))
		}
		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(orderUpdates).Error; err != nil {
			return err
		}
	}
	return nil
}

// MarkPaid flips the denormalized payment gate on the order. Idempotent and
// safe to re-trigger: the conditional update makes a replay a no-op.
// Reports whether this call changed anything.
func MarkPaid(db *gorm.DB, orderID uint) (bool, error) {
	res := db.Model(&models.Order{}).
		Where("id = ? AND payment_status <> ?", orderID, models.PaymentStatusCompleted).
		Update("payment_status", models.PaymentStatusCompleted)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
