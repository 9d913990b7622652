package events

// Event types pushed to connected clients.
const (
	TypeOrderCreated        = "order.created"
	TypeOrderStatusChanged  = "order.status_changed"
	TypeDeliveryAssigned    = "delivery.assigned"
	TypeDeliveryLocation    = "delivery.location_updated"
	TypePaymentCompleted    = "payment.completed"
	TypePaymentCODConfirmed = "payment.cod_confirmed"
)

// Event is one notification. TargetUserID is advisory; delivery is
// best-effort broadcast and clients filter on their own id.
type Event struct {
	Type         string      `json:"type"`
	OrderID      uint        `json:"order_id"`
	TargetUserID string      `json:"target_user_id,omitempty"`
	Payload      interface{} `json:"payload,omitempty"`
}

// Publisher fans an event out to interested clients. Implementations must
// never block the caller and must never return an error path into business
// logic: notification failure is not an operation failure.
type Publisher interface {
	Publish(event Event)
}

// NopPublisher drops every event. Used in tests.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}
