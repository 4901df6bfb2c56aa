package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"ticketing/entity"
)

type NotificationClient struct {
	httpClient *http.Client
	baseURL    string
}

func NewNotificationClient(httpClient *http.Client, baseURL string) NotificationClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return NotificationClient{
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

type ticketsConfirmationRequest struct {
	BookingID        string          `json:"booking_id"`
	ConfirmationCode string          `json:"confirmation_code"`
	UserID           string          `json:"user_id"`
	Quantity         int             `json:"quantity"`
	TotalPrice       decimal.Decimal `json:"total_price"`
	UniqueCodes      []string        `json:"unique_codes"`
	IdempotencyKey   string          `json:"idempotency_key"`
}

func (c NotificationClient) SendTicketsConfirmation(ctx context.Context, cmd entity.SendTicketsConfirmation) error {
	body, err := json.Marshal(ticketsConfirmationRequest{
		BookingID:        cmd.BookingID,
		ConfirmationCode: cmd.ConfirmationCode,
		UserID:           cmd.UserID,
		Quantity:         cmd.Quantity,
		TotalPrice:       cmd.TotalPrice,
		UniqueCodes:      cmd.UniqueCodes,
		IdempotencyKey:   cmd.Header.IdempotencyKey,
	})
	if err != nil {
		return fmt.Errorf("could not marshal tickets confirmation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/notifications/tickets-confirmation", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("could not create tickets confirmation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: could not send tickets confirmation: %v", entity.ErrDownstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: tickets confirmation returned status %d", entity.ErrDownstreamUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status code while sending tickets confirmation: %d", resp.StatusCode)
	}

	return nil
}
