package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"ticketing/entity"
	"ticketing/gateway"
	"ticketing/service"
)

var (
	httpAddress = ":8080"
)

func TestComponent(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("github.com/testcontainers/testcontainers-go.(*Reaper).Connect.func1"))
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	dbconn, err := sqlx.Open("postgres", postgresURL)
	if err != nil {
		panic(err)
	}
	defer dbconn.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: redisURL})
	defer redisClient.Close()

	notificationClient := &gateway.NotificationMock{}
	paymentClient := &gateway.PaymentMock{}

	done := make(chan struct{})
	go func() {
		<-done
		e := syscall.Kill(syscall.Getpid(), syscall.SIGTERM)
		require.NoError(t, e)
	}()

	finished := make(chan struct{})
	go func() {
		svc := service.New(
			httpAddress,
			dbconn,
			redisClient,
			notificationClient,
			paymentClient,
		)
		assert.NoError(t, svc.Run(ctx))
		close(finished)
	}()

	defer func() {
		close(done)
		<-finished
	}()

	waitForHttpServer(t)

	event := createEvent(t, 10)

	// purchase confirms the booking and issues one ticket per seat
	booking, tickets := purchase(t, event.EventID, 3)
	assert.Equal(t, entity.BookingStatusConfirmed, booking.Status)
	require.Len(t, tickets, 3)

	assertNotificationSent(t, notificationClient, booking.BookingID)

	// seats above the remaining pool are rejected, nothing leaks
	resp := postJSON(t, "/bookings", map[string]any{
		"event_id": event.EventID,
		"user_id":  "user-oversell",
		"quantity": 8,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// one ticket in, the rest through the batch path
	scan := scanTicket(t, tickets[0].UniqueCode)
	assert.False(t, scan.BookingCompleted)
	assert.Equal(t, 2, scan.RemainingUnused)

	// a replay of the same code is a conflict, not a second admission
	resp = postJSON(t, "/checkin/scan", map[string]any{
		"identifier": tickets[0].UniqueCode,
		"scanner_id": "scanner-1",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	batch := scanBatch(t, booking.ConfirmationCode, 5)
	assert.Equal(t, 2, batch.Scanned)
	assert.Equal(t, 0, batch.Remaining)
	assert.True(t, batch.BookingCompleted)

	assertBookingStatus(t, booking.BookingID, entity.BookingStatusCompleted)

	// refund round trip on a fresh booking releases its seats
	refundable, _ := purchase(t, event.EventID, 2)

	resp = postJSON(t, fmt.Sprintf("/bookings/%s/refund-request", refundable.BookingID), map[string]any{
		"reason": "cannot attend",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, fmt.Sprintf("/bookings/%s/refund-process", refundable.BookingID), map[string]any{
		"approve":     true,
		"admin_notes": "ok",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	assertBookingStatus(t, refundable.BookingID, entity.BookingStatusRefunded)
	assertRefundRequested(t, paymentClient, refundable.BookingID)
	assertAvailability(t, event.EventID, 7)
}

func waitForHttpServer(t *testing.T) {
	t.Helper()

	require.EventuallyWithT(
		t,
		func(t *assert.CollectT) {
			resp, err := http.Get("http://localhost" + httpAddress + "/health")
			if !assert.NoError(t, err) {
				return
			}
			defer resp.Body.Close()

			if assert.Less(t, resp.StatusCode, 300, "API not ready, http status: %d", resp.StatusCode) {
				return
			}
		},
		time.Second*10,
		time.Millisecond*50,
	)
}

func postJSON(t *testing.T, path string, payload any) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	resp, err := http.Post("http://localhost"+httpAddress+path, "application/json", bytes.NewReader(body))
	require.NoError(t, err)

	return resp
}

func createEvent(t *testing.T, capacity int) entity.Event {
	t.Helper()

	resp := postJSON(t, "/events", map[string]any{
		"name":      "concert-" + uuid.NewString(),
		"starts_at": time.Now().Add(30 * 24 * time.Hour).Format(time.RFC3339),
		"capacity":  capacity,
		"price":     "50",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var event entity.Event
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&event))

	return event
}

func purchase(t *testing.T, eventID string, quantity int) (entity.Booking, []entity.Ticket) {
	t.Helper()

	resp := postJSON(t, "/bookings", map[string]any{
		"event_id": eventID,
		"user_id":  "user-" + uuid.NewString(),
		"quantity": quantity,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Booking entity.Booking  `json:"booking"`
		Tickets []entity.Ticket `json:"tickets"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))

	return result.Booking, result.Tickets
}

func scanTicket(t *testing.T, identifier string) entity.ScanResult {
	t.Helper()

	resp := postJSON(t, "/checkin/scan", map[string]any{
		"identifier": identifier,
		"scanner_id": "scanner-1",
		"location":   "gate A",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result entity.ScanResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))

	return result
}

func scanBatch(t *testing.T, confirmationCode string, count int) entity.BatchScanResult {
	t.Helper()

	resp := postJSON(t, "/checkin/scan-batch", map[string]any{
		"confirmation_code": confirmationCode,
		"count":             count,
		"scanner_id":        "scanner-2",
		"location":          "gate B",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result entity.BatchScanResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))

	return result
}

func assertBookingStatus(t *testing.T, bookingID string, status entity.BookingStatus) {
	t.Helper()

	assert.EventuallyWithT(
		t,
		func(t *assert.CollectT) {
			resp, err := http.Get("http://localhost" + httpAddress + "/bookings/" + bookingID)
			if !assert.NoError(t, err) {
				return
			}
			defer resp.Body.Close()

			var booking entity.Booking
			if !assert.NoError(t, json.NewDecoder(resp.Body).Decode(&booking)) {
				return
			}

			assert.Equal(t, status, booking.Status)
		},
		10*time.Second,
		100*time.Millisecond,
	)
}

func assertAvailability(t *testing.T, eventID string, available int) {
	t.Helper()

	assert.EventuallyWithT(
		t,
		func(t *assert.CollectT) {
			resp, err := http.Get("http://localhost" + httpAddress + "/events/" + eventID + "/availability")
			if !assert.NoError(t, err) {
				return
			}
			defer resp.Body.Close()

			var totals entity.EventTotals
			if !assert.NoError(t, json.NewDecoder(resp.Body).Decode(&totals)) {
				return
			}

			assert.Equal(t, available, totals.Available)
		},
		10*time.Second,
		100*time.Millisecond,
	)
}

func assertNotificationSent(t *testing.T, notificationClient *gateway.NotificationMock, bookingID string) {
	t.Helper()

	assert.EventuallyWithT(
		t,
		func(t *assert.CollectT) {
			_, found := lo.Find(notificationClient.SentConfirmations(), func(cmd entity.SendTicketsConfirmation) bool {
				return cmd.BookingID == bookingID
			})
			assert.Truef(t, found, "tickets confirmation for booking %s not sent", bookingID)
		},
		10*time.Second,
		100*time.Millisecond,
	)
}

func assertRefundRequested(t *testing.T, paymentClient *gateway.PaymentMock, bookingID string) {
	t.Helper()

	assert.EventuallyWithT(
		t,
		func(t *assert.CollectT) {
			_, ok := paymentClient.RefundFor(bookingID)
			assert.Truef(t, ok, "refund for booking %s not requested", bookingID)
		},
		10*time.Second,
		100*time.Millisecond,
	)
}
