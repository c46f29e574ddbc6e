// battle-arena-service/services/payment_client.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// PaymentRequest carries the identifiers the settlement webhook later echoes
// back as opaque metadata.
type PaymentRequest struct {
	UserID    string
	BattleID  string
	CreatorID string
	Points    int64
}

type PaymentRequestResult struct {
	PaymentID  string `json:"payment_id"`
	PaymentURL string `json:"payment_url"`
}

// PaymentRequester creates an external payment request for a paid cheer.
// Nothing is credited to the ledger until the settlement webhook confirms
// the payment completed.
type PaymentRequester interface {
	CreatePaymentRequest(ctx context.Context, pr PaymentRequest) (*PaymentRequestResult, error)
}

type PaymentServiceClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewPaymentServiceClient(baseURL, token string) *PaymentServiceClient {
	return &PaymentServiceClient{
		BaseURL: baseURL,
		Token:   token,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *PaymentServiceClient) CreatePaymentRequest(ctx context.Context, pr PaymentRequest) (*PaymentRequestResult, error) {
	url := fmt.Sprintf("%s/api/v1/payments/requests", c.BaseURL)

	reqBody := map[string]interface{}{
		"amount": pr.Points,
		"metadata": map[string]interface{}{
			"user_id":    pr.UserID,
			"battle_id":  pr.BattleID,
			"creator_id": pr.CreatorID,
			"points":     pr.Points,
		},
	}
	jsonData, _ := json.Marshal(reqBody)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		log.Printf("PaymentService /requests returned %d: %s", resp.StatusCode, string(body))
		return nil, fmt.Errorf("payment request creation failed: %d", resp.StatusCode)
	}

	var out PaymentRequestResult
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}

	return &out, nil
}
