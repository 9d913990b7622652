package paymentControllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/malini-2707/FarmConnect-sub000/models"
)

// SimulatedGateway settles payments without any external round-trip. Used in
// development and as the generic-gateway callback surface: the webhook body
// carries an explicit success flag and an HMAC signature over the body.
type SimulatedGateway struct {
	secret string
}

func NewSimulatedGateway() *SimulatedGateway {
	return &SimulatedGateway{secret: os.Getenv("SIMULATED_WEBHOOK_SECRET")}
}

func (g *SimulatedGateway) Name() string { return "simulated" }

func (g *SimulatedGateway) CreateIntent(order *models.Order) (string, string, error) {
	ref := "SIM-" + uuid.NewString()
	// The checkout reference doubles as the redirect target in dev builds.
	return ref, "/simulated-checkout/" + ref, nil
}

func (g *SimulatedGateway) VerifyWebhook(headers http.Header, body []byte) error {
	provided := headers.Get("X-Signature")
	if provided == "" {
		return fmt.Errorf("%w: missing X-Signature header", ErrSignatureInvalid)
	}
	if !validSignature(hmacSHA256Hex(g.secret, body), provided) {
		return ErrSignatureInvalid
	}
	return nil
}

func (g *SimulatedGateway) ExtractCorrelation(body []byte) (Correlation, error) {
	var payload struct {
		Success         bool   `json:"success"`
		ExternalOrderID string `json:"external_order_id"`
		ExternalPayID   string `json:"external_payment_id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Correlation{}, fmt.Errorf("invalid simulated webhook body: %w", err)
	}
	if payload.ExternalOrderID == "" {
		return Correlation{}, fmt.Errorf("simulated webhook missing external_order_id")
	}
	return Correlation{
		OrderRef:  payload.ExternalOrderID,
		PaymentID: payload.ExternalPayID,
		Success:   payload.Success,
	}, nil
}
