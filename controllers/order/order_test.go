package orderControllers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/gin-gonic/gin"

	catalogControllers "github.com/malini-2707/FarmConnect-sub000/controllers/catalog"
	"github.com/malini-2707/FarmConnect-sub000/events"
	"github.com/malini-2707/FarmConnect-sub000/models"
	"github.com/malini-2707/FarmConnect-sub000/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func placeTestOrder(t *testing.T, db *gorm.DB, items []PlaceOrderItem) *models.Order {
	t.Helper()
	order, err := PlaceOrder(db, events.NopPublisher{}, "cust-1", PlaceOrderRequest{
		Items:         items,
		PaymentMethod: "cod",
	})
	require.NoError(t, err)
	return order
}

func TestPlaceOrder_TotalsInvariant(t *testing.T) {
	db := testutil.OpenTestDB(t)
	testutil.SeedUser(t, db, "cust-1", models.RoleCustomer)
	testutil.SeedUser(t, db, "farmer-1", models.RoleFarmer)
	tomato := testutil.SeedProduct(t, db, "farmer-1", "Tomato", 40, 10)
	spinach := testutil.SeedProduct(t, db, "farmer-1", "Spinach", 25, 10)

	order := placeTestOrder(t, db, []PlaceOrderItem{
		{ProductID: tomato.ID, Quantity: 2},
		{ProductID: spinach.ID, Quantity: 4},
	})

	var lineSum float64
	for _, item := range order.Items {
		assert.Equal(t, item.UnitPrice*float64(item.Quantity), item.LineTotal)
		lineSum += item.LineTotal
	}
	assert.Equal(t, lineSum, order.Subtotal)
	assert.Equal(t, 180.0, order.Subtotal)
	assert.Equal(t, order.Subtotal+order.DeliveryFee+order.Tax, order.FinalAmount)
	assert.Equal(t, "farmer-1", order.FarmerID)
	assert.Equal(t, models.OrderStatusPending, order.Status)

	// Stock was reserved
	var fresh models.Product
	require.NoError(t, db.First(&fresh, tomato.ID).Error)
	assert.Equal(t, 8, fresh.Stock)
}

func TestPlaceOrder_FreeDeliveryOverThreshold(t *testing.T) {
	db := testutil.OpenTestDB(t)
	testutil.SeedUser(t, db, "farmer-1", models.RoleFarmer)
	mango := testutil.SeedProduct(t, db, "farmer-1", "Mango", 300, 10)

	order := placeTestOrder(t, db, []PlaceOrderItem{{ProductID: mango.ID, Quantity: 2}})
	assert.Equal(t, 0.0, order.DeliveryFee)
	assert.Equal(t, order.Subtotal+order.Tax, order.FinalAmount)
}

func TestPlaceOrder_InsufficientStock(t *testing.T) {
	db := testutil.OpenTestDB(t)
	testutil.SeedUser(t, db, "farmer-1", models.RoleFarmer)
	tomato := testutil.SeedProduct(t, db, "farmer-1", "Tomato", 40, 1)

	_, err := PlaceOrder(db, events.NopPublisher{}, "cust-1", PlaceOrderRequest{
		Items:         []PlaceOrderItem{{ProductID: tomato.ID, Quantity: 5}},
		PaymentMethod: "cod",
	})
	require.ErrorIs(t, err, catalogControllers.ErrInsufficientStock)

	// Nothing was created and nothing was reserved.
	var orders int64
	db.Model(&models.Order{}).Count(&orders)
	assert.Zero(t, orders)
	var fresh models.Product
	require.NoError(t, db.First(&fresh, tomato.ID).Error)
	assert.Equal(t, 1, fresh.Stock)
}

func TestPlaceOrder_RejectsMixedFarmers(t *testing.T) {
	db := testutil.OpenTestDB(t)
	testutil.SeedUser(t, db, "farmer-1", models.RoleFarmer)
	testutil.SeedUser(t, db, "farmer-2", models.RoleFarmer)
	tomato := testutil.SeedProduct(t, db, "farmer-1", "Tomato", 40, 10)
	okra := testutil.SeedProduct(t, db, "farmer-2", "Okra", 30, 10)

	_, err := PlaceOrder(db, events.NopPublisher{}, "cust-1", PlaceOrderRequest{
		Items: []PlaceOrderItem{
			{ProductID: tomato.ID, Quantity: 1},
			{ProductID: okra.ID, Quantity: 1},
		},
		PaymentMethod: "cod",
	})
	require.ErrorIs(t, err, ErrMixedFarmers)

	// The first item's reservation must have rolled back with the order.
	var fresh models.Product
	require.NoError(t, db.First(&fresh, tomato.ID).Error)
	assert.Equal(t, 10, fresh.Stock)
}

func TestPlaceOrder_OrderNumberFormat(t *testing.T) {
	db := testutil.OpenTestDB(t)
	testutil.SeedUser(t, db, "farmer-1", models.RoleFarmer)
	tomato := testutil.SeedProduct(t, db, "farmer-1", "Tomato", 40, 10)

	order := placeTestOrder(t, db, []PlaceOrderItem{{ProductID: tomato.ID, Quantity: 1}})
	assert.Regexp(t, regexp.MustCompile(`^ORD-\d{8}-[0-9A-F]{6}$`), order.OrderNumber)
}

func TestCancelOrder_RestoresReservedStock(t *testing.T) {
	db := testutil.OpenTestDB(t)
	testutil.SeedUser(t, db, "farmer-1", models.RoleFarmer)
	tomato := testutil.SeedProduct(t, db, "farmer-1", "Tomato", 40, 10)

	order := placeTestOrder(t, db, []PlaceOrderItem{{ProductID: tomato.ID, Quantity: 3}})

	var reserved models.Product
	require.NoError(t, db.First(&reserved, tomato.ID).Error)
	require.Equal(t, 7, reserved.Stock)

	require.NoError(t, CancelOrder(db, events.NopPublisher{}, order, "cust-1", "changed my mind"))

	var fresh models.Order
	require.NoError(t, db.First(&fresh, "id = ?", order.ID).Error)
	assert.Equal(t, models.OrderStatusCancelled, fresh.Status)
	assert.Equal(t, "cust-1", fresh.CancelledBy)
	assert.Equal(t, "changed my mind", fresh.CancellationReason)
	assert.NotNil(t, fresh.CancelledAt)

	var restored models.Product
	require.NoError(t, db.First(&restored, tomato.ID).Error)
	assert.Equal(t, 10, restored.Stock)
}

func TestCancelOrder_DoubleCancelFails(t *testing.T) {
	db := testutil.OpenTestDB(t)
	testutil.SeedUser(t, db, "farmer-1", models.RoleFarmer)
	tomato := testutil.SeedProduct(t, db, "farmer-1", "Tomato", 40, 10)

	order := placeTestOrder(t, db, []PlaceOrderItem{{ProductID: tomato.ID, Quantity: 3}})
	require.NoError(t, CancelOrder(db, events.NopPublisher{}, order, "cust-1", ""))

	err := CancelOrder(db, events.NopPublisher{}, order, "cust-1", "")
	require.ErrorIs(t, err, ErrIllegalTransition)

	// No double restore
	var fresh models.Product
	require.NoError(t, db.First(&fresh, tomato.ID).Error)
	assert.Equal(t, 10, fresh.Stock)
}

func TestCancelOrder_TooLate(t *testing.T) {
	db := testutil.OpenTestDB(t)
	testutil.SeedUser(t, db, "farmer-1", models.RoleFarmer)
	tomato := testutil.SeedProduct(t, db, "farmer-1", "Tomato", 40, 10)

	order := placeTestOrder(t, db, []PlaceOrderItem{{ProductID: tomato.ID, Quantity: 2}})
	require.NoError(t, db.Model(order).Update("status", models.OrderStatusPreparing).Error)
	order.Status = models.OrderStatusPreparing

	err := CancelOrder(db, events.NopPublisher{}, order, "cust-1", "")
	require.ErrorIs(t, err, ErrIllegalTransition)

	var fresh models.Product
	require.NoError(t, db.First(&fresh, tomato.ID).Error)
	assert.Equal(t, 8, fresh.Stock, "stock of an active order must stay reserved")
}

func TestCancelOrder_OnlyOwner(t *testing.T) {
	db := testutil.OpenTestDB(t)
	testutil.SeedUser(t, db, "farmer-1", models.RoleFarmer)
	tomato := testutil.SeedProduct(t, db, "farmer-1", "Tomato", 40, 10)

	order := placeTestOrder(t, db, []PlaceOrderItem{{ProductID: tomato.ID, Quantity: 1}})
	err := CancelOrder(db, events.NopPublisher{}, order, "cust-2", "")
	require.ErrorIs(t, err, ErrUnauthorizedActor)
}

func TestRateOrder_IncrementalMean(t *testing.T) {
	db := testutil.OpenTestDB(t)
	testutil.SeedUser(t, db, "farmer-1", models.RoleFarmer)
	tomato := testutil.SeedProduct(t, db, "farmer-1", "Tomato", 40, 10)

	first := placeTestOrder(t, db, []PlaceOrderItem{{ProductID: tomato.ID, Quantity: 1}})
	second := placeTestOrder(t, db, []PlaceOrderItem{{ProductID: tomato.ID, Quantity: 1}})
	require.NoError(t, db.Model(&models.Order{}).Where("id IN ?", []uint{first.ID, second.ID}).
		Update("status", models.OrderStatusDelivered).Error)
	first.Status = models.OrderStatusDelivered
	second.Status = models.OrderStatusDelivered

	require.NoError(t, RateOrder(db, first, "cust-1", 4))
	require.NoError(t, RateOrder(db, second, "cust-1", 2))

	var farmer models.User
	require.NoError(t, db.First(&farmer, "id = ?", "farmer-1").Error)
	assert.Equal(t, 2, farmer.RatingCount)
	assert.InDelta(t, 3.0, farmer.Rating, 1e-9)
}

func TestRateOrder_OnceOnly(t *testing.T) {
	db := testutil.OpenTestDB(t)
	testutil.SeedUser(t, db, "farmer-1", models.RoleFarmer)
	tomato := testutil.SeedProduct(t, db, "farmer-1", "Tomato", 40, 10)

	order := placeTestOrder(t, db, []PlaceOrderItem{{ProductID: tomato.ID, Quantity: 1}})
	require.NoError(t, db.Model(order).Update("status", models.OrderStatusDelivered).Error)
	order.Status = models.OrderStatusDelivered

	require.NoError(t, RateOrder(db, order, "cust-1", 5))
	require.ErrorIs(t, RateOrder(db, order, "cust-1", 1), ErrAlreadyRated)

	var farmer models.User
	require.NoError(t, db.First(&farmer, "id = ?", "farmer-1").Error)
	assert.Equal(t, 1, farmer.RatingCount)
	assert.InDelta(t, 5.0, farmer.Rating, 1e-9)
}

func TestRateOrder_OnlyWhenDelivered(t *testing.T) {
	db := testutil.OpenTestDB(t)
	testutil.SeedUser(t, db, "farmer-1", models.RoleFarmer)
	tomato := testutil.SeedProduct(t, db, "farmer-1", "Tomato", 40, 10)

	order := placeTestOrder(t, db, []PlaceOrderItem{{ProductID: tomato.ID, Quantity: 1}})
	require.ErrorIs(t, RateOrder(db, order, "cust-1", 5), ErrIllegalTransition)
}

func getOrderAs(t *testing.T, db *gorm.DB, orderID uint, actorID string, role models.Role) int {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/orders/:orderID", func(c *gin.Context) {
		c.Set("user_id", actorID)
		c.Set("role", string(role))
	}, GetOrderHandler(db))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/orders/%d", orderID), nil)
	r.ServeHTTP(w, req)
	return w.Code
}

func TestGetOrderHandler_PartiesOnly(t *testing.T) {
	db := testutil.OpenTestDB(t)
	testutil.SeedUser(t, db, "farmer-1", models.RoleFarmer)
	tomato := testutil.SeedProduct(t, db, "farmer-1", "Tomato", 40, 10)
	order := placeTestOrder(t, db, []PlaceOrderItem{{ProductID: tomato.ID, Quantity: 1}})

	assert.Equal(t, http.StatusForbidden, getOrderAs(t, db, order.ID, "cust-2", models.RoleCustomer))
	assert.Equal(t, http.StatusForbidden, getOrderAs(t, db, order.ID, "farmer-2", models.RoleFarmer))
	assert.Equal(t, http.StatusOK, getOrderAs(t, db, order.ID, "cust-1", models.RoleCustomer))
	assert.Equal(t, http.StatusOK, getOrderAs(t, db, order.ID, "farmer-1", models.RoleFarmer))
	assert.Equal(t, http.StatusOK, getOrderAs(t, db, order.ID, "admin-1", models.RoleAdmin))
}

func TestRecomputeTotals_Invariant(t *testing.T) {
	order := &models.Order{
		Items: []models.OrderItem{
			{UnitPrice: 40, Quantity: 2},
			{UnitPrice: 25, Quantity: 1},
		},
	}
	RecomputeTotals(order)
	assert.Equal(t, 105.0, order.Subtotal)
	assert.Equal(t, baseDeliveryFee, order.DeliveryFee)
	assert.Equal(t, 105.0*taxRate, order.Tax)
	assert.Equal(t, order.Subtotal+order.DeliveryFee+order.Tax, order.FinalAmount)
}
