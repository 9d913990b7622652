package paymentControllers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/malini-2707/FarmConnect-sub000/models"
)

var (
	// ErrSignatureInvalid rejects a webhook before any state is touched.
	ErrSignatureInvalid = errors.New("webhook signature verification failed")
	// ErrGatewayUnavailable marks a checkout attempt the customer may retry
	// with a fresh initiate.
	ErrGatewayUnavailable = errors.New("payment gateway unreachable")
	// ErrUnknownGateway means the request named a gateway we do not carry.
	ErrUnknownGateway = errors.New("unknown payment gateway")
)

// Correlation is what a verified webhook resolves to: the gateway-side order
// id that maps back to a local Payment, the gateway's payment id, and the
// outcome.
type Correlation struct {
	OrderRef  string
	PaymentID string
	Success   bool
}

// Gateway abstracts one payment provider. The ledger depends only on this
// interface; each provider supplies intent creation, webhook authentication
// and correlation extraction.
type Gateway interface {
	Name() string
	// CreateIntent registers the order with the provider and returns the
	// correlation id to store locally plus a checkout reference (URL or
	// client secret) for the customer.
	CreateIntent(order *models.Order) (correlationID, checkoutRef string, err error)
	// VerifyWebhook authenticates a callback before parsing. headers come
	// from the inbound request, body is the raw payload.
	VerifyWebhook(headers http.Header, body []byte) error
	// ExtractCorrelation parses a verified callback body.
	ExtractCorrelation(body []byte) (Correlation, error)
}

// Registry maps gateway names to implementations, built once at startup.
type Registry map[string]Gateway

func (r Registry) Get(name string) (Gateway, error) {
	gw, ok := r[name]
	if !ok {
		return nil, ErrUnknownGateway
	}
	return gw, nil
}

// NewRegistry wires every supported provider.
func NewRegistry() Registry {
	r := Registry{}
	for _, gw := range []Gateway{
		NewSimulatedGateway(),
		NewRazorpayGateway(),
		NewStripeGateway(),
		NewPayPalGateway(),
	} {
		r[gw.Name()] = gw
	}
	return r
}

// hmacSHA256Hex is the shared-secret signature primitive used by the
// simulated, Razorpay and Stripe schemes.
func hmacSHA256Hex(secret string, data []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

func validSignature(expected, provided string) bool {
	return hmac.Equal([]byte(expected), []byte(provided))
}

// httpClient bounds every outbound gateway call.
var httpClient = &http.Client{Timeout: 15 * time.Second}
