package paymentControllers

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/malini-2707/FarmConnect-sub000/events"
	"github.com/malini-2707/FarmConnect-sub000/models"
	"github.com/malini-2707/FarmConnect-sub000/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testWebhookSecret = "test-webhook-secret"

func webhookRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	registry := Registry{"simulated": &SimulatedGateway{secret: testWebhookSecret}}
	r := gin.New()
	r.POST("/payments/webhook/:gateway", WebhookHandler(db, events.NopPublisher{}, registry))
	return r
}

func postWebhook(r *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook/simulated", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Signature", signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func seedProcessingPayment(t *testing.T, db *gorm.DB, number string) *models.Payment {
	t.Helper()
	order := seedOrder(t, db, number, models.PaymentMethodUPI, 180)
	payment, err := Initiate(db, events.NopPublisher{}, order, models.PaymentMethodUPI, &stubGateway{name: "stub"})
	require.NoError(t, err)
	return payment
}

func TestWebhook_InvalidSignatureRejectedWithoutMutation(t *testing.T) {
	db := testutil.OpenTestDB(t)
	payment := seedProcessingPayment(t, db, "ORD-20250831-WHK001")
	r := webhookRouter(db)

	body := []byte(fmt.Sprintf(`{"success":true,"external_order_id":%q,"external_payment_id":"pay_1"}`,
		payment.GatewayOrderID))

	w := postWebhook(r, body, "deadbeef")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = postWebhook(r, body, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	var fresh models.Payment
	require.NoError(t, db.First(&fresh, "id = ?", payment.ID).Error)
	assert.Equal(t, models.PaymentStatusProcessing, fresh.Status, "a forged webhook must not touch the ledger")
}

func TestWebhook_ValidSignatureCompletesPayment(t *testing.T) {
	db := testutil.OpenTestDB(t)
	payment := seedProcessingPayment(t, db, "ORD-20250831-WHK002")
	r := webhookRouter(db)

	body := []byte(fmt.Sprintf(`{"success":true,"external_order_id":%q,"external_payment_id":"pay_1"}`,
		payment.GatewayOrderID))

	w := postWebhook(r, body, hmacSHA256Hex(testWebhookSecret, body))
	assert.Equal(t, http.StatusOK, w.Code)

	var fresh models.Payment
	require.NoError(t, db.First(&fresh, "id = ?", payment.ID).Error)
	assert.Equal(t, models.PaymentStatusCompleted, fresh.Status)
	assert.Equal(t, "pay_1", fresh.GatewayPaymentID)
}

func TestWebhook_FailureCallbackFailsPayment(t *testing.T) {
	db := testutil.OpenTestDB(t)
	payment := seedProcessingPayment(t, db, "ORD-20250831-WHK003")
	r := webhookRouter(db)

	body := []byte(fmt.Sprintf(`{"success":false,"external_order_id":%q}`, payment.GatewayOrderID))

	w := postWebhook(r, body, hmacSHA256Hex(testWebhookSecret, body))
	assert.Equal(t, http.StatusOK, w.Code)

	var fresh models.Payment
	require.NoError(t, db.First(&fresh, "id = ?", payment.ID).Error)
	assert.Equal(t, models.PaymentStatusFailed, fresh.Status)
}

func TestWebhook_UnknownCorrelationStillAcknowledged(t *testing.T) {
	db := testutil.OpenTestDB(t)
	r := webhookRouter(db)

	body := []byte(`{"success":true,"external_order_id":"SIM-unknown","external_payment_id":"pay_x"}`)

	w := postWebhook(r, body, hmacSHA256Hex(testWebhookSecret, body))
	assert.Equal(t, http.StatusOK, w.Code, "the gateway must stop retrying; the miss is a reconciliation case")

	var count int64
	db.Model(&models.Payment{}).Count(&count)
	assert.EqualValues(t, 0, count)
}

func TestWebhook_ReplayDoesNotDuplicateHistory(t *testing.T) {
	db := testutil.OpenTestDB(t)
	payment := seedProcessingPayment(t, db, "ORD-20250831-WHK004")
	r := webhookRouter(db)

	body := []byte(fmt.Sprintf(`{"success":true,"external_order_id":%q,"external_payment_id":"pay_1"}`,
		payment.GatewayOrderID))
	sig := hmacSHA256Hex(testWebhookSecret, body)

	require.Equal(t, http.StatusOK, postWebhook(r, body, sig).Code)
	before := historyCount(t, db, payment.ID)

	require.Equal(t, http.StatusOK, postWebhook(r, body, sig).Code)
	assert.Equal(t, before, historyCount(t, db, payment.ID))
}

func TestWebhook_UnknownGatewayIs404(t *testing.T) {
	db := testutil.OpenTestDB(t)
	r := webhookRouter(db)

	req := httptest.NewRequest(http.MethodPost, "/payments/webhook/nope", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
