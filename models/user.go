package models

import "time"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleFarmer   Role = "farmer"
	RoleDelivery Role = "delivery"
	RoleAdmin    Role = "admin"
)

type User struct {
	ID      string  `gorm:"primaryKey" json:"id"`
	Email   string  `gorm:"unique;not null" json:"email"`
	Phone   string  `json:"phone"`
	Name    string  `json:"name"`
	Role    Role    `gorm:"type:VARCHAR(20);default:'customer';index" json:"role"`
	Address Address `gorm:"embedded" json:"address"`
	// Last known coordinates. Nullable so an agent without a reported
	// location is excluded from matching instead of matched at (0,0).
	Lat *float64 `json:"lat,omitempty"`
	Lng *float64 `json:"lng,omitempty"`

	// Delivery-agent fields
	IsOnline    bool    `gorm:"default:false" json:"is_online"`
	IsAvailable bool    `gorm:"default:false" json:"is_available"`
	VehicleType string  `json:"vehicle_type,omitempty"`
	Rating      float64 `gorm:"default:0" json:"rating"`
	RatingCount int     `gorm:"default:0" json:"rating_count"`

	Orders    []Order   `gorm:"foreignKey:CustomerID;constraint:OnDelete:SET NULL" json:"orders,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Address model embedded in User and Order
type Address struct {
	State      string `json:"state"`
	City       string `json:"city"`
	Street     string `json:"street"`
	PostalCode string `json:"postal_code"`
}
