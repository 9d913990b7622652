package models

import (
	"time"

	"gorm.io/gorm"
)

type Product struct {
	ID          uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string  `gorm:"not null" json:"name"`
	Description string  `json:"description"`
	Price       float64 `gorm:"not null" json:"price"`
	Unit        string  `gorm:"not null" json:"unit"` // e.g. "kg", "dozen", "litre"
	Image       string  `json:"image"`
	FarmerID    string  `gorm:"not null;index" json:"farmer_id"`
	Farmer      User    `gorm:"foreignKey:FarmerID" json:"farmer,omitempty"`
	Stock       int     `json:"stock"`
	IsOrganic   bool    `gorm:"default:false" json:"is_organic"`
	// Perishable goods carry a harvest date so the storefront can surface
	// freshness; the order core never reads it.
	HarvestDate *time.Time     `json:"harvest_date,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}
