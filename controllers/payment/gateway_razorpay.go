package paymentControllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"

	"github.com/malini-2707/FarmConnect-sub000/models"
)

// RazorpayGateway creates gateway orders over the REST API and authenticates
// webhooks with the X-Razorpay-Signature body HMAC.
type RazorpayGateway struct {
	keyID         string
	keySecret     string
	webhookSecret string
	apiURL        string
}

func NewRazorpayGateway() *RazorpayGateway {
	apiURL := os.Getenv("RAZORPAY_API_URL")
	if apiURL == "" {
		apiURL = "https://api.razorpay.com/v1"
	}
	return &RazorpayGateway{
		keyID:         os.Getenv("RAZORPAY_KEY_ID"),
		keySecret:     os.Getenv("RAZORPAY_KEY_SECRET"),
		webhookSecret: os.Getenv("RAZORPAY_WEBHOOK_SECRET"),
		apiURL:        apiURL,
	}
}

func (g *RazorpayGateway) Name() string { return "razorpay" }

func (g *RazorpayGateway) CreateIntent(order *models.Order) (string, string, error) {
	if g.keyID == "" || g.keySecret == "" {
		return "", "", fmt.Errorf("razorpay configuration missing")
	}

	payload := map[string]interface{}{
		// Razorpay wants the smallest currency unit.
		"amount":   int(math.Round(order.FinalAmount * 100)),
		"currency": "INR",
		"receipt":  order.OrderNumber,
	}
	jsonData, _ := json.Marshal(payload)

	req, _ := http.NewRequest("POST", g.apiURL+"/orders", bytes.NewBuffer(jsonData))
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.keyID, g.keySecret)

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("razorpay API error (%d): %s", resp.StatusCode, string(body))
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil || created.ID == "" {
		return "", "", fmt.Errorf("failed to parse razorpay response: %v", err)
	}
	return created.ID, created.ID, nil
}

func (g *RazorpayGateway) VerifyWebhook(headers http.Header, body []byte) error {
	provided := headers.Get("X-Razorpay-Signature")
	if provided == "" {
		return fmt.Errorf("%w: missing X-Razorpay-Signature header", ErrSignatureInvalid)
	}
	if !validSignature(hmacSHA256Hex(g.webhookSecret, body), provided) {
		return ErrSignatureInvalid
	}
	return nil
}

func (g *RazorpayGateway) ExtractCorrelation(body []byte) (Correlation, error) {
	var event struct {
		Event   string `json:"event"`
		Payload struct {
			Payment struct {
				Entity struct {
					ID      string `json:"id"`
					OrderID string `json:"order_id"`
					Status  string `json:"status"`
				} `json:"entity"`
			} `json:"payment"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		return Correlation{}, fmt.Errorf("invalid razorpay webhook body: %w", err)
	}
	entity := event.Payload.Payment.Entity
	if entity.OrderID == "" {
		return Correlation{}, fmt.Errorf("razorpay webhook missing order_id")
	}
	return Correlation{
		OrderRef:  entity.OrderID,
		PaymentID: entity.ID,
		Success:   event.Event == "payment.captured" || entity.Status == "captured",
	}, nil
}
