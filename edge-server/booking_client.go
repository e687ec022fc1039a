package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"event-ticketing/shared"
)

// BookingClient handles communication with the booking service
type BookingClient struct {
	baseURL    string
	httpClient *http.Client
	token      func() (string, error)
}

// NewBookingClient creates a client that authenticates every request with
// a bearer token obtained from token.
func NewBookingClient(baseURL string, token func() (string, error)) *BookingClient {
	return &BookingClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		token: token,
	}
}

// EventInventory fetches the ticket types of one event. It satisfies
// hub.InventorySource.
func (bc *BookingClient) EventInventory(ctx context.Context, eventID string) ([]shared.TicketType, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		bc.baseURL+"/api/events/"+url.PathEscape(eventID)+"/inventory", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	tok, err := bc.token()
	if err != nil {
		return nil, fmt.Errorf("failed to issue service token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := bc.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch inventory: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp shared.ErrorResponse
		body, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("booking service: %s", errResp.Error)
		}
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var snap shared.InventorySnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode inventory: %w", err)
	}
	return snap.TicketTypes, nil
}

// HealthCheck verifies the booking service is available
func (bc *BookingClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, bc.baseURL+shared.APIEndpointHealth, nil)
	if err != nil {
		return err
	}
	resp, err := bc.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy status: %d", resp.StatusCode)
	}
	return nil
}
