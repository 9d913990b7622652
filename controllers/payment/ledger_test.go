package paymentControllers

import (
	"net/http"
	"testing"

	"github.com/malini-2707/FarmConnect-sub000/events"
	"github.com/malini-2707/FarmConnect-sub000/models"
	"github.com/malini-2707/FarmConnect-sub000/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// stubGateway arms payments without any network round-trip.
type stubGateway struct {
	name      string
	intentErr error
	created   int
}

func (g *stubGateway) Name() string { return g.name }

func (g *stubGateway) CreateIntent(order *models.Order) (string, string, error) {
	if g.intentErr != nil {
		return "", "", g.intentErr
	}
	g.created++
	return "STUB-" + order.OrderNumber, "/checkout/stub", nil
}

func (g *stubGateway) VerifyWebhook(_ http.Header, _ []byte) error { return nil }

func (g *stubGateway) ExtractCorrelation(_ []byte) (Correlation, error) {
	return Correlation{}, nil
}

func seedOrder(t *testing.T, db *gorm.DB, number string, method models.PaymentMethod, amount float64) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderNumber:   number,
		CustomerID:    "cust-1",
		FarmerID:      "farmer-1",
		Status:        models.OrderStatusPending,
		PaymentMethod: method,
		PaymentStatus: models.PaymentStatusPending,
		FinalAmount:   amount,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func historyCount(t *testing.T, db *gorm.DB, paymentID uint) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.PaymentEvent{}).Where("payment_id = ?", paymentID).Count(&count).Error)
	return count
}

func TestInitiate_GatewayPaymentStartsProcessing(t *testing.T) {
	db := testutil.OpenTestDB(t)
	order := seedOrder(t, db, "ORD-20250831-PAY001", models.PaymentMethodUPI, 180)
	gw := &stubGateway{name: "stub"}

	payment, err := Initiate(db, events.NopPublisher{}, order, models.PaymentMethodUPI, gw)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusProcessing, payment.Status)
	assert.Equal(t, order.FinalAmount, payment.Amount)
	assert.Equal(t, "stub", payment.GatewayName)
	assert.Equal(t, "STUB-"+order.OrderNumber, payment.GatewayOrderID)
	assert.NotEmpty(t, payment.TransactionID)
	assert.EqualValues(t, 1, historyCount(t, db, payment.ID))
}

func TestInitiate_IdempotentForLivePayment(t *testing.T) {
	db := testutil.OpenTestDB(t)
	order := seedOrder(t, db, "ORD-20250831-PAY002", models.PaymentMethodUPI, 180)
	gw := &stubGateway{name: "stub"}

	first, err := Initiate(db, events.NopPublisher{}, order, models.PaymentMethodUPI, gw)
	require.NoError(t, err)

	second, err := Initiate(db, events.NopPublisher{}, order, models.PaymentMethodUPI, gw)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.TransactionID, second.TransactionID, "retry must not create a second attempt")
	assert.Equal(t, 1, gw.created, "retry must not hit the gateway again")

	var count int64
	db.Model(&models.Payment{}).Where("order_id = ?", order.ID).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestInitiate_FailedAttemptIsReArmedInPlace(t *testing.T) {
	db := testutil.OpenTestDB(t)
	order := seedOrder(t, db, "ORD-20250831-PAY003", models.PaymentMethodUPI, 180)

	dead := &stubGateway{name: "stub", intentErr: ErrGatewayUnavailable}
	payment, err := Initiate(db, events.NopPublisher{}, order, models.PaymentMethodUPI, dead)
	require.Error(t, err)
	require.NotNil(t, payment, "the failed attempt must still be persisted")
	assert.Equal(t, models.PaymentStatusFailed, payment.Status)

	alive := &stubGateway{name: "stub"}
	rearmed, err := Initiate(db, events.NopPublisher{}, order, models.PaymentMethodUPI, alive)
	require.NoError(t, err)
	assert.Equal(t, payment.ID, rearmed.ID, "re-arm must keep the 1:1 order-payment row")
	assert.Equal(t, models.PaymentStatusProcessing, rearmed.Status)
	assert.NotEqual(t, payment.TransactionID, rearmed.TransactionID)
	assert.EqualValues(t, 2, historyCount(t, db, payment.ID))
}

func TestInitiate_CODStartsPendingWithoutGateway(t *testing.T) {
	db := testutil.OpenTestDB(t)
	order := seedOrder(t, db, "ORD-20250831-PAY004", models.PaymentMethodCOD, 250)

	payment, err := Initiate(db, events.NopPublisher{}, order, models.PaymentMethodCOD, nil)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.Empty(t, payment.GatewayName)
}

func TestMarkCompleted_SettlesAndGatesOrder(t *testing.T) {
	db := testutil.OpenTestDB(t)
	order := seedOrder(t, db, "ORD-20250831-PAY005", models.PaymentMethodUPI, 180)
	gw := &stubGateway{name: "stub"}
	payment, err := Initiate(db, events.NopPublisher{}, order, models.PaymentMethodUPI, gw)
	require.NoError(t, err)

	changed, err := MarkCompleted(db, events.NopPublisher{}, payment.GatewayOrderID, "pay_abc", "test settle")
	require.NoError(t, err)
	assert.True(t, changed)

	var fresh models.Payment
	require.NoError(t, db.First(&fresh, "id = ?", payment.ID).Error)
	assert.Equal(t, models.PaymentStatusCompleted, fresh.Status)
	assert.Equal(t, "pay_abc", fresh.GatewayPaymentID)
	assert.NotNil(t, fresh.PaidAt)

	// The denormalized gate on the order opened too.
	var freshOrder models.Order
	require.NoError(t, db.First(&freshOrder, "id = ?", order.ID).Error)
	assert.Equal(t, models.PaymentStatusCompleted, freshOrder.PaymentStatus)
}

func TestMarkCompleted_ReplayIsNoOp(t *testing.T) {
	db := testutil.OpenTestDB(t)
	order := seedOrder(t, db, "ORD-20250831-PAY006", models.PaymentMethodUPI, 180)
	gw := &stubGateway{name: "stub"}
	payment, err := Initiate(db, events.NopPublisher{}, order, models.PaymentMethodUPI, gw)
	require.NoError(t, err)

	changed, err := MarkCompleted(db, events.NopPublisher{}, payment.GatewayOrderID, "pay_abc", "first")
	require.NoError(t, err)
	require.True(t, changed)
	before := historyCount(t, db, payment.ID)

	changed, err = MarkCompleted(db, events.NopPublisher{}, payment.GatewayOrderID, "pay_abc", "replay")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, before, historyCount(t, db, payment.ID), "replay must not append history")
}

func TestMarkCompleted_UnknownCorrelationLeavesEverythingAlone(t *testing.T) {
	db := testutil.OpenTestDB(t)
	order := seedOrder(t, db, "ORD-20250831-PAY007", models.PaymentMethodUPI, 180)
	gw := &stubGateway{name: "stub"}
	payment, err := Initiate(db, events.NopPublisher{}, order, models.PaymentMethodUPI, gw)
	require.NoError(t, err)

	changed, err := MarkCompleted(db, events.NopPublisher{}, "no-such-correlation", "pay_x", "stray")
	require.NoError(t, err, "an unknown correlation is not an error, it is a reconciliation case")
	assert.False(t, changed)

	var fresh models.Payment
	require.NoError(t, db.First(&fresh, "id = ?", payment.ID).Error)
	assert.Equal(t, models.PaymentStatusProcessing, fresh.Status)
}

func TestMarkFailed_OnlyFromLiveStates(t *testing.T) {
	db := testutil.OpenTestDB(t)
	order := seedOrder(t, db, "ORD-20250831-PAY008", models.PaymentMethodUPI, 180)
	gw := &stubGateway{name: "stub"}
	payment, err := Initiate(db, events.NopPublisher{}, order, models.PaymentMethodUPI, gw)
	require.NoError(t, err)

	changed, err := MarkFailed(db, payment.GatewayOrderID, "declined")
	require.NoError(t, err)
	assert.True(t, changed)

	// A failure callback arriving after settlement must not regress it.
	_, err = MarkCompleted(db, events.NopPublisher{}, payment.GatewayOrderID, "pay_abc", "settle")
	require.NoError(t, err)
	changed, err = MarkFailed(db, payment.GatewayOrderID, "late failure")
	require.NoError(t, err)
	assert.False(t, changed)

	var fresh models.Payment
	require.NoError(t, db.First(&fresh, "id = ?", payment.ID).Error)
	assert.Equal(t, models.PaymentStatusCompleted, fresh.Status)
}

func TestCancel_AbandonsLiveAttemptOnly(t *testing.T) {
	db := testutil.OpenTestDB(t)
	order := seedOrder(t, db, "ORD-20250831-PAY011", models.PaymentMethodUPI, 180)
	gw := &stubGateway{name: "stub"}
	payment, err := Initiate(db, events.NopPublisher{}, order, models.PaymentMethodUPI, gw)
	require.NoError(t, err)

	changed, err := Cancel(db, payment, "customer closed checkout")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.PaymentStatusCancelled, payment.Status)

	// A cancelled attempt can be re-armed by a fresh initiate.
	rearmed, err := Initiate(db, events.NopPublisher{}, order, models.PaymentMethodUPI, gw)
	require.NoError(t, err)
	assert.Equal(t, payment.ID, rearmed.ID)
	assert.Equal(t, models.PaymentStatusProcessing, rearmed.Status)

	// Settled payments are beyond cancelling.
	_, err = MarkCompleted(db, events.NopPublisher{}, rearmed.GatewayOrderID, "pay_abc", "settle")
	require.NoError(t, err)
	require.NoError(t, db.First(rearmed, "id = ?", rearmed.ID).Error)
	changed, err = Cancel(db, rearmed, "too late")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, models.PaymentStatusCompleted, rearmed.Status)
}

func TestRefund_RulesAndIdempotence(t *testing.T) {
	db := testutil.OpenTestDB(t)
	order := seedOrder(t, db, "ORD-20250831-PAY009", models.PaymentMethodUPI, 180)
	gw := &stubGateway{name: "stub"}
	payment, err := Initiate(db, events.NopPublisher{}, order, models.PaymentMethodUPI, gw)
	require.NoError(t, err)

	// Not completed yet.
	require.ErrorIs(t, Refund(db, payment, 100, "changed mind"), ErrRefundNotAllowed)

	_, err = MarkCompleted(db, events.NopPublisher{}, payment.GatewayOrderID, "pay_abc", "settle")
	require.NoError(t, err)
	require.NoError(t, db.First(payment, "id = ?", payment.ID).Error)

	// Amount bounds.
	require.ErrorIs(t, Refund(db, payment, 0, "zero"), ErrRefundNotAllowed)
	require.ErrorIs(t, Refund(db, payment, 500, "too much"), ErrRefundNotAllowed)

	require.NoError(t, Refund(db, payment, 180, "spoiled produce"))

	var fresh models.Payment
	require.NoError(t, db.First(&fresh, "id = ?", payment.ID).Error)
	assert.Equal(t, models.PaymentStatusRefunded, fresh.Status)
	assert.Equal(t, 180.0, fresh.RefundAmount)
	assert.NotNil(t, fresh.RefundedAt)

	// A second refund is rejected, not doubled.
	require.ErrorIs(t, Refund(db, &fresh, 180, "again"), ErrRefundNotAllowed)
}

func TestConfirmCOD_FullCashFlow(t *testing.T) {
	db := testutil.OpenTestDB(t)
	order := seedOrder(t, db, "ORD-20250831-PAY010", models.PaymentMethodCOD, 250)
	payment, err := Initiate(db, events.NopPublisher{}, order, models.PaymentMethodCOD, nil)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusPending, payment.Status)

	agentID := "agent-1"
	testutil.SeedAgent(t, db, agentID, 10.80, 78.71)

	// Not delivered yet.
	_, err = ConfirmCOD(db, events.NopPublisher{}, order, agentID)
	require.ErrorIs(t, err, ErrCODNotConfirmable)

	require.NoError(t, db.Model(order).Updates(map[string]interface{}{
		"status":              models.OrderStatusDelivered,
		"delivery_partner_id": agentID,
	}).Error)
	require.NoError(t, db.First(order, "id = ?", order.ID).Error)

	// Only the assigned agent may confirm.
	_, err = ConfirmCOD(db, events.NopPublisher{}, order, "agent-impostor")
	require.Error(t, err)

	settled, err := ConfirmCOD(db, events.NopPublisher{}, order, agentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, settled.Status)

	var freshOrder models.Order
	require.NoError(t, db.First(&freshOrder, "id = ?", order.ID).Error)
	assert.Equal(t, models.PaymentStatusCompleted, freshOrder.PaymentStatus)

	// Replay keeps one history row for the settlement.
	before := historyCount(t, db, payment.ID)
	_, err = ConfirmCOD(db, events.NopPublisher{}, order, agentID)
	require.NoError(t, err)
	assert.Equal(t, before, historyCount(t, db, payment.ID))
}
