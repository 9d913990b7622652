package models

import "time"

type OrderStatus string
type PartnerStatus string

const (
	// Order statuses (farm-to-door flow)
	OrderStatusPending        OrderStatus = "pending"          // Order placed, awaiting farmer confirmation
	OrderStatusConfirmed      OrderStatus = "confirmed"        // Confirmed by the farmer
	OrderStatusPreparing      OrderStatus = "preparing"        // Farmer is packing the produce
	OrderStatusReadyForPickup OrderStatus = "ready_for_pickup" // Packed and waiting for the delivery partner
	OrderStatusPickedUp       OrderStatus = "picked_up"        // Collected by the delivery partner
	OrderStatusInTransit      OrderStatus = "in_transit"       // On the way to the customer
	OrderStatusDelivered      OrderStatus = "delivered"        // Customer received the produce
	OrderStatusCancelled      OrderStatus = "cancelled"        // Cancelled before preparation

	// Delivery-partner offer statuses, kept separate from the order status
	// so a decline can re-open the order without touching its history.
	PartnerStatusPending  PartnerStatus = "pending"
	PartnerStatusAccepted PartnerStatus = "accepted"
	PartnerStatusDeclined PartnerStatus = "declined"
)

// TerminalOrderStatuses are the states an order never leaves.
var TerminalOrderStatuses = []OrderStatus{OrderStatusDelivered, OrderStatusCancelled}

type Order struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	OrderNumber string `gorm:"uniqueIndex;not null" json:"order_number"`

	CustomerID string `gorm:"not null;index" json:"customer_id"`
	Customer   User   `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	// Single farmer per order, derived from the first line item.
	FarmerID string `gorm:"not null;index" json:"farmer_id"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`

	Subtotal    float64 `json:"subtotal"`
	DeliveryFee float64 `json:"delivery_fee"`
	Tax         float64 `json:"tax"`
	FinalAmount float64 `json:"final_amount"`

	Status        OrderStatus   `gorm:"type:VARCHAR(20);default:'pending';index" json:"status"`
	PaymentMethod PaymentMethod `gorm:"type:VARCHAR(20)" json:"payment_method"`
	// Denormalized payment gate consulted by dispatch; the Payment record
	// remains the source of truth.
	PaymentStatus PaymentStatus `gorm:"type:VARCHAR(20);default:'pending';index" json:"payment_status"`

	DeliveryPartnerID     *string       `gorm:"index" json:"delivery_partner_id,omitempty"`
	DeliveryPartnerStatus PartnerStatus `gorm:"type:VARCHAR(20);default:'pending'" json:"delivery_partner_status"`
	PartnerAssignedAt     *time.Time    `json:"partner_assigned_at,omitempty"`
	PartnerAcceptedAt     *time.Time    `json:"partner_accepted_at,omitempty"`

	DeliveryAddress Address  `gorm:"embedded;embeddedPrefix:delivery_" json:"delivery_address"`
	DeliveryLat     *float64 `json:"delivery_lat,omitempty"`
	DeliveryLng     *float64 `json:"delivery_lng,omitempty"`
	PickupLat       *float64 `json:"pickup_lat,omitempty"`
	PickupLng       *float64 `json:"pickup_lng,omitempty"`

	// Order-level on-time check uses a 2h grace window over the estimate;
	// the delivery record keeps its own strict check.
	EstimatedDeliveryAt *time.Time `json:"estimated_delivery_at,omitempty"`
	DeliveredAt         *time.Time `json:"delivered_at,omitempty"`
	DeliveredOnTime     *bool      `json:"delivered_on_time,omitempty"`

	CancelledBy        string     `json:"cancelled_by,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`

	Rating  int        `json:"rating,omitempty"`
	RatedAt *time.Time `json:"rated_at,omitempty"`

	StatusHistory []OrderStatusEvent `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"status_history,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type OrderItem struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	OrderID     uint    `gorm:"index" json:"order_id"`
	ProductID   uint    `json:"product_id"`
	ProductName string  `json:"product_name"`
	Unit        string  `json:"unit"`
	UnitPrice   float64 `json:"unit_price"`
	Quantity    int     `json:"quantity"`
	LineTotal   float64 `json:"line_total"`
}

// OrderStatusEvent is one row of the append-only status log. Rows are only
// ever inserted, never updated or deleted.
type OrderStatusEvent struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	OrderID   uint        `gorm:"index;not null" json:"order_id"`
	Status    OrderStatus `gorm:"type:VARCHAR(20);not null" json:"status"`
	ActorID   string      `json:"actor_id"`
	ActorRole Role        `gorm:"type:VARCHAR(20)" json:"actor_role"`
	Note      string      `json:"note,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}
