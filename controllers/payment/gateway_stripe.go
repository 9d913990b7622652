package paymentControllers

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/malini-2707/FarmConnect-sub000/models"
)

// StripeGateway creates payment intents and authenticates webhooks with the
// Stripe-Signature header: HMAC-SHA256 over "<timestamp>.<raw body>".
type StripeGateway struct {
	secretKey     string
	webhookSecret string
	apiURL        string
}

func NewStripeGateway() *StripeGateway {
	apiURL := os.Getenv("STRIPE_API_URL")
	if apiURL == "" {
		apiURL = "https://api.stripe.com/v1"
	}
	return &StripeGateway{
		secretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		webhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		apiURL:        apiURL,
	}
}

func (g *StripeGateway) Name() string { return "stripe" }

func (g *StripeGateway) CreateIntent(order *models.Order) (string, string, error) {
	if g.secretKey == "" {
		return "", "", fmt.Errorf("stripe configuration missing")
	}

	form := url.Values{}
	form.Set("amount", strconv.Itoa(int(math.Round(order.FinalAmount*100))))
	form.Set("currency", "inr")
	form.Set("metadata[order_number]", order.OrderNumber)

	req, _ := http.NewRequest("POST", g.apiURL+"/payment_intents", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+g.secretKey)

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("stripe API error (%d): %s", resp.StatusCode, string(body))
	}

	var created struct {
		ID           string `json:"id"`
		ClientSecret string `json:"client_secret"`
	}
	if err := json.Unmarshal(body, &created); err != nil || created.ID == "" {
		return "", "", fmt.Errorf("failed to parse stripe response: %v", err)
	}
	return created.ID, created.ClientSecret, nil
}

func (g *StripeGateway) VerifyWebhook(headers http.Header, body []byte) error {
	header := headers.Get("Stripe-Signature")
	if header == "" {
		return fmt.Errorf("%w: missing Stripe-Signature header", ErrSignatureInvalid)
	}

	var timestamp, provided string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			provided = kv[1]
		}
	}
	if timestamp == "" || provided == "" {
		return fmt.Errorf("%w: malformed Stripe-Signature header", ErrSignatureInvalid)
	}

	signed := append([]byte(timestamp+"."), body...)
	if !validSignature(hmacSHA256Hex(g.webhookSecret, signed), provided) {
		return ErrSignatureInvalid
	}
	return nil
}

func (g *StripeGateway) ExtractCorrelation(body []byte) (Correlation, error) {
	var event struct {
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID           string `json:"id"`
				LatestCharge string `json:"latest_charge"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		return Correlation{}, fmt.Errorf("invalid stripe webhook body: %w", err)
	}
	if event.Data.Object.ID == "" {
		return Correlation{}, fmt.Errorf("stripe webhook missing intent id")
	}

	paymentID := event.Data.Object.LatestCharge
	if paymentID == "" {
		paymentID = event.Data.Object.ID
	}
	return Correlation{
		OrderRef:  event.Data.Object.ID,
		PaymentID: paymentID,
		Success:   event.Type == "payment_intent.succeeded",
	}, nil
}
