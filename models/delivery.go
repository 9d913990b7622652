package models

import "time"

type DeliveryStatus string

const (
	DeliveryStatusAssigned  DeliveryStatus = "assigned"
	DeliveryStatusAccepted  DeliveryStatus = "accepted"
	DeliveryStatusPickedUp  DeliveryStatus = "picked_up"
	DeliveryStatusInTransit DeliveryStatus = "in_transit"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusCancelled DeliveryStatus = "cancelled"
)

// Delivery is the physical fulfilment record, created the moment an agent
// wins the assignment race. Its status follows the order's transitions and
// is never advanced independently. Kept forever for audit.
type Delivery struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	OrderID   uint           `gorm:"uniqueIndex;not null" json:"order_id"`
	Order     Order          `gorm:"foreignKey:OrderID" json:"-"`
	PartnerID string         `gorm:"not null;index" json:"partner_id"`
	Status    DeliveryStatus `gorm:"type:VARCHAR(20);default:'accepted'" json:"status"`

	PickupLat *float64 `json:"pickup_lat,omitempty"`
	PickupLng *float64 `json:"pickup_lng,omitempty"`
	DropLat   *float64 `json:"drop_lat,omitempty"`
	DropLng   *float64 `json:"drop_lng,omitempty"`

	DistanceKm float64 `json:"distance_km"`

	PickupTime   *time.Time    `json:"pickup_time,omitempty"`
	DeliveryTime *time.Time    `json:"delivery_time,omitempty"`
	// Durations are stored in nanoseconds (time.Duration).
	EstimatedDuration time.Duration `json:"estimated_duration"`
	ActualDuration    time.Duration `json:"actual_duration,omitempty"`
	// Strict delivery-level check: actual <= estimated.
	OnTimeDelivery *bool `json:"on_time_delivery,omitempty"`

	// References to confirmation artifacts, not the artifacts themselves.
	ConfirmationSignature string `json:"confirmation_signature,omitempty"`
	ConfirmationPhoto     string `json:"confirmation_photo,omitempty"`

	Route []RoutePoint `gorm:"foreignKey:DeliveryID;constraint:OnDelete:CASCADE" json:"route,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RoutePoint is one sample of the agent's live trace. Append-only, never
// rewritten.
type RoutePoint struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	DeliveryID uint      `gorm:"index;not null" json:"delivery_id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Speed      float64   `json:"speed"`
	RecordedAt time.Time `json:"recorded_at"`
}
