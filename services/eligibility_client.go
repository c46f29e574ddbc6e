// battle-arena-service/services/eligibility_client.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// EligibilityChecker answers whether a creator is cleared to enter battles.
// The flag is owned by the profile service; this core only reads it.
type EligibilityChecker interface {
	IsEligible(ctx context.Context, userID string) (bool, error)
}

type ProfileServiceClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewProfileServiceClient(baseURL, token string) *ProfileServiceClient {
	return &ProfileServiceClient{
		BaseURL: baseURL,
		Token:   token,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// IsEligible calls the profile service's battle-eligibility endpoint.
func (c *ProfileServiceClient) IsEligible(ctx context.Context, userID string) (bool, error) {
	url := fmt.Sprintf("%s/api/v1/public/profiles/%s/battle-eligibility", c.BaseURL, userID)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		log.Printf("ProfileService eligibility returned %d: %s", resp.StatusCode, string(body))
		return false, fmt.Errorf("eligibility lookup failed: %d", resp.StatusCode)
	}

	var out struct {
		Eligible bool `json:"eligible"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return false, err
	}

	return out.Eligible, nil
}
