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

type PaymentClient struct {
	httpClient *http.Client
	baseURL    string
}

func NewPaymentClient(httpClient *http.Client, baseURL string) PaymentClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return PaymentClient{
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

type refundRequest struct {
	BookingID string          `json:"booking_id"`
	UserID    string          `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
}

func (c PaymentClient) RefundPayment(ctx context.Context, cmd entity.RefundPayment) error {
	body, err := json.Marshal(refundRequest{
		BookingID: cmd.BookingID,
		UserID:    cmd.UserID,
		Amount:    cmd.Amount,
	})
	if err != nil {
		return fmt.Errorf("could not marshal refund: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/payments/refunds", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("could not create refund request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", cmd.Header.IdempotencyKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: could not request refund: %v", entity.ErrDownstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: refund returned status %d", entity.ErrDownstreamUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("unexpected status code while requesting refund: %d", resp.StatusCode)
	}

	return nil
}
