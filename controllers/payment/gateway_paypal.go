package paymentControllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/malini-2707/FarmConnect-sub000/models"
)

// PayPalGateway creates checkout orders over the REST API. PayPal does not
// expose a shared-secret body HMAC, so webhook authentication is a verify
// round-trip against their verify-webhook-signature endpoint.
type PayPalGateway struct {
	clientID     string
	clientSecret string
	webhookID    string
	apiURL       string
}

func NewPayPalGateway() *PayPalGateway {
	apiURL := os.Getenv("PAYPAL_API_URL")
	if apiURL == "" {
		apiURL = "https://api-m.paypal.com"
	}
	return &PayPalGateway{
		clientID:     os.Getenv("PAYPAL_CLIENT_ID"),
		clientSecret: os.Getenv("PAYPAL_CLIENT_SECRET"),
		webhookID:    os.Getenv("PAYPAL_WEBHOOK_ID"),
		apiURL:       apiURL,
	}
}

func (g *PayPalGateway) Name() string { return "paypal" }

func (g *PayPalGateway) accessToken() (string, error) {
	req, _ := http.NewRequest("POST", g.apiURL+"/v1/oauth2/token",
		strings.NewReader("grant_type=client_credentials"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(g.clientID, g.clientSecret)

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("paypal token error (%d): %s", resp.StatusCode, string(body))
	}

	var token struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &token); err != nil || token.AccessToken == "" {
		return "", fmt.Errorf("failed to parse paypal token response: %v", err)
	}
	return token.AccessToken, nil
}

func (g *PayPalGateway) CreateIntent(order *models.Order) (string, string, error) {
	if g.clientID == "" || g.clientSecret == "" {
		return "", "", fmt.Errorf("paypal configuration missing")
	}

	token, err := g.accessToken()
	if err != nil {
		return "", "", err
	}

	payload := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{{
			"reference_id": order.OrderNumber,
			"amount": map[string]string{
				"currency_code": "USD",
				"value":         fmt.Sprintf("%.2f", order.FinalAmount),
			},
		}},
	}
	jsonData, _ := json.Marshal(payload)

	req, _ := http.NewRequest("POST", g.apiURL+"/v2/checkout/orders", bytes.NewBuffer(jsonData))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", "", fmt.Errorf("paypal API error (%d): %s", resp.StatusCode, string(body))
	}

	var created struct {
		ID    string `json:"id"`
		Links []struct {
			Rel  string `json:"rel"`
			Href string `json:"href"`
		} `json:"links"`
	}
	if err := json.Unmarshal(body, &created); err != nil || created.ID == "" {
		return "", "", fmt.Errorf("failed to parse paypal response: %v", err)
	}

	checkout := created.ID
	for _, link := range created.Links {
		if link.Rel == "approve" {
			checkout = link.Href
		}
	}
	return created.ID, checkout, nil
}

func (g *PayPalGateway) VerifyWebhook(headers http.Header, body []byte) error {
	token, err := g.accessToken()
	if err != nil {
		return err
	}

	var event json.RawMessage
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: unparseable body", ErrSignatureInvalid)
	}

	payload := map[string]interface{}{
		"auth_algo":         headers.Get("Paypal-Auth-Algo"),
		"cert_url":          headers.Get("Paypal-Cert-Url"),
		"transmission_id":   headers.Get("Paypal-Transmission-Id"),
		"transmission_sig":  headers.Get("Paypal-Transmission-Sig"),
		"transmission_time": headers.Get("Paypal-Transmission-Time"),
		"webhook_id":        g.webhookID,
		"webhook_event":     event,
	}
	jsonData, _ := json.Marshal(payload)

	req, _ := http.NewRequest("POST", g.apiURL+"/v1/notification/verify-webhook-signature", bytes.NewBuffer(jsonData))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	var verification struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := json.Unmarshal(respBody, &verification); err != nil {
		return fmt.Errorf("failed to parse paypal verification response: %v", err)
	}
	if verification.VerificationStatus != "SUCCESS" {
		return ErrSignatureInvalid
	}
	return nil
}

func (g *PayPalGateway) ExtractCorrelation(body []byte) (Correlation, error) {
	var event struct {
		EventType string `json:"event_type"`
		Resource  struct {
			ID                string `json:"id"`
			SupplementaryData struct {
				RelatedIDs struct {
					OrderID string `json:"order_id"`
				} `json:"related_ids"`
			} `json:"supplementary_data"`
		} `json:"resource"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		return Correlation{}, fmt.Errorf("invalid paypal webhook body: %w", err)
	}

	// Capture events carry the checkout order id in supplementary data;
	// approval events carry it as the resource id itself.
	orderRef := event.Resource.SupplementaryData.RelatedIDs.OrderID
	if orderRef == "" {
		orderRef = event.Resource.ID
	}
	if orderRef == "" {
		return Correlation{}, fmt.Errorf("paypal webhook missing order reference")
	}
	return Correlation{
		OrderRef:  orderRef,
		PaymentID: event.Resource.ID,
		Success:   event.EventType == "PAYMENT.CAPTURE.COMPLETED" || event.EventType == "CHECKOUT.ORDER.APPROVED",
	}, nil
}
