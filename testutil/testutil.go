package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/malini-2707/FarmConnect-sub000/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbCounter int64

// OpenTestDB opens a fresh in-memory SQLite database with the full schema
// migrated. One connection is kept so concurrent writers serialize instead
// of tripping over SQLITE_BUSY.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := fmt.Sprintf("farmconnect_test_%d", atomic.AddInt64(&dbCounter, 1))
	dsn := "file:" + name + "?mode=memory&cache=shared&_busy_timeout=5000"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap test db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderStatusEvent{},
		&models.Payment{},
		&models.PaymentEvent{},
		&models.Delivery{},
		&models.RoutePoint{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// Float returns a pointer, for the nullable coordinate fields.
func Float(v float64) *float64 { return &v }

// SeedUser inserts a user with the given role.
func SeedUser(t *testing.T, db *gorm.DB, id string, role models.Role) *models.User {
	t.Helper()
	user := &models.User{
		ID:    id,
		Email: id + "@example.com",
		Name:  id,
		Role:  role,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
	return user
}

// SeedAgent inserts an online, available delivery agent at a location.
func SeedAgent(t *testing.T, db *gorm.DB, id string, lat, lng float64) *models.User {
	t.Helper()
	agent := &models.User{
		ID:          id,
		Email:       id + "@example.com",
		Name:        id,
		Role:        models.RoleDelivery,
		Lat:         Float(lat),
		Lng:         Float(lng),
		IsOnline:    true,
		IsAvailable: true,
	}
	if err := db.Create(agent).Error; err != nil {
		t.Fatalf("seed agent %s: %v", id, err)
	}
	return agent
}

// SeedProduct inserts a product owned by the farmer.
func SeedProduct(t *testing.T, db *gorm.DB, farmerID, name string, price float64, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:     name,
		Price:    price,
		Unit:     "kg",
		FarmerID: farmerID,
		Stock:    stock,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("seed product %s: %v", name, err)
	}
	return product
}
