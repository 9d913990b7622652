package models

import "time"

type PaymentMethod string
type PaymentStatus string

const (
	PaymentMethodUPI        PaymentMethod = "upi"
	PaymentMethodCard       PaymentMethod = "card"
	PaymentMethodNetBanking PaymentMethod = "net_banking"
	PaymentMethodCOD        PaymentMethod = "cod"

	PaymentStatusPending    PaymentStatus = "pending"    // Created, awaiting gateway or COD settlement
	PaymentStatusProcessing PaymentStatus = "processing" // Gateway checkout in flight
	PaymentStatusCompleted  PaymentStatus = "completed"  // Settled
	PaymentStatusFailed     PaymentStatus = "failed"     // Gateway declined or unreachable
	PaymentStatusRefunded   PaymentStatus = "refunded"   // Money returned, only from completed
	PaymentStatusCancelled  PaymentStatus = "cancelled"  // Attempt abandoned
)

// Payment is the financial settlement record, exactly one per order.
// Never deleted.
type Payment struct {
	ID       uint          `gorm:"primaryKey" json:"id"`
	OrderID  uint          `gorm:"uniqueIndex;not null" json:"order_id"`
	Order    Order         `gorm:"foreignKey:OrderID" json:"-"`
	Amount   float64       `gorm:"not null" json:"amount"`
	Currency string        `gorm:"type:VARCHAR(8);default:'INR'" json:"currency"`
	Method   PaymentMethod `gorm:"type:VARCHAR(20);not null" json:"method"`
	Status   PaymentStatus `gorm:"type:VARCHAR(20);default:'pending';index" json:"status"`

	// Internal collision-resistant id, independent of any gateway.
	TransactionID string `gorm:"uniqueIndex" json:"transaction_id"`

	// Opaque gateway correlation fields. GatewayOrderID is the only key a
	// webhook callback knows, so it gets its own index.
	GatewayName      string `gorm:"type:VARCHAR(20)" json:"gateway_name,omitempty"`
	GatewayOrderID   string `gorm:"index" json:"gateway_order_id,omitempty"`
	GatewayPaymentID string `json:"gateway_payment_id,omitempty"`
	GatewaySignature string `json:"-"`

	PaidAt       *time.Time `json:"paid_at,omitempty"`
	RefundAmount float64    `json:"refund_amount,omitempty"`
	RefundReason string     `json:"refund_reason,omitempty"`
	RefundedAt   *time.Time `json:"refunded_at,omitempty"`

	History []PaymentEvent `gorm:"foreignKey:PaymentID;constraint:OnDelete:CASCADE" json:"history,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PaymentEvent mirrors every status change so state can be reconstructed
// when webhooks are replayed. Append-only.
type PaymentEvent struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	PaymentID uint          `gorm:"index;not null" json:"payment_id"`
	Status    PaymentStatus `gorm:"type:VARCHAR(20);not null" json:"status"`
	Amount    float64       `json:"amount"`
	Note      string        `json:"note,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}
