package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"ticketing/booking"
	"ticketing/entity"
	"ticketing/pkg/log"
)

type BookingService interface {
	Purchase(ctx context.Context, req booking.PurchaseRequest) (entity.Booking, []entity.Ticket, error)
	Cancel(ctx context.Context, bookingID string) (entity.Booking, error)
	RequestRefund(ctx context.Context, bookingID, reason string, amount *decimal.Decimal) (entity.Booking, error)
	ProcessRefund(ctx context.Context, bookingID string, approve bool, adminNotes string) (entity.Booking, error)
	Get(ctx context.Context, bookingID string) (entity.Booking, error)
	GetByConfirmationCode(ctx context.Context, confirmationCode string) (entity.Booking, error)
	ListByUser(ctx context.Context, userID string) ([]entity.Booking, error)
	ListByStatus(ctx context.Context, status entity.BookingStatus) ([]entity.Booking, error)
}

type CheckInService interface {
	Scan(ctx context.Context, identifier, scannerID, scannerType, location string) (entity.ScanResult, error)
	ScanBatch(ctx context.Context, confirmationCode, scannerID, scannerType, location string, count int) (entity.BatchScanResult, error)
	TicketStatus(ctx context.Context, identifier string) (entity.Ticket, error)
	Stats(ctx context.Context, confirmationCode string) (entity.BookingTicketStats, error)
	RecentCheckIns(ctx context.Context, limit int) ([]entity.CheckInRecord, error)
	CheckInHistory(ctx context.Context, confirmationCode string) ([]entity.CheckInRecord, error)
	DailyStats(ctx context.Context, day time.Time) (entity.DailyCheckInStats, error)
}

type InventoryRepository interface {
	StoreEvent(ctx context.Context, event entity.Event) error
	StoreTicketType(ctx context.Context, ticketType entity.TicketType) error
	GetEvent(ctx context.Context, eventID string) (entity.Event, error)
	EventTotals(ctx context.Context, eventID string) (entity.EventTotals, error)
	ResizeTicketType(ctx context.Context, ticketTypeID string, newCapacity int) (entity.TicketType, error)
	DeactivateTicketType(ctx context.Context, ticketTypeID string) error
}

type Server struct {
	addr           string
	e              *echo.Echo
	bookingService BookingService
	checkInService CheckInService
	inventoryRepo  InventoryRepository
}

type requestValidator struct {
	validate *validator.Validate
}

func (v requestValidator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func NewServer(
	addr string,
	bookingService BookingService,
	checkInService CheckInService,
	inventoryRepo InventoryRepository,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware("ticketing"))
	e.Validator = requestValidator{validate: validator.New()}
	e.HTTPErrorHandler = errorHandler(e)

	server := &Server{
		addr:           addr,
		e:              e,
		bookingService: bookingService,
		checkInService: checkInService,
		inventoryRepo:  inventoryRepo,
	}

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.POST("/events", server.PostEvents)
	e.POST("/events/:id/ticket-types", server.PostTicketTypes)
	e.GET("/events/:id/availability", server.GetEventAvailability)
	e.PUT("/ticket-types/:id/capacity", server.PutTicketTypeCapacity)
	e.POST("/ticket-types/:id/deactivate", server.PostDeactivateTicketType)

	e.POST("/bookings", server.PostBookings)
	e.POST("/bookings/:id/cancel", server.PostCancelBooking)
	e.POST("/bookings/:id/refund-request", server.PostRefundRequest)
	e.POST("/bookings/:id/refund-process", server.PostRefundProcess)
	e.GET("/bookings", server.GetBookings)
	e.GET("/bookings/:id", server.GetBooking)
	e.GET("/bookings/code/:code", server.GetBookingByCode)
	e.GET("/bookings/user/:userID", server.GetUserBookings)

	e.POST("/checkin/scan", server.PostScan)
	e.POST("/checkin/scan-batch", server.PostScanBatch)
	e.GET("/checkin/ticket/:identifier", server.GetTicketStatus)
	e.GET("/checkin/stats/:code", server.GetCheckInStats)
	e.GET("/checkin/stats/daily", server.GetDailyCheckInStats)
	e.GET("/checkin/history/:code", server.GetCheckInHistory)
	e.GET("/checkin/recent", server.GetRecentCheckIns)

	return server
}

func (s Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		err := s.e.Shutdown(ctx)
		if err != nil {
			log.FromContext(ctx).WithError(err).Error("failed to shutdown HTTP server")
		}
	}()
	log.FromContext(ctx).WithField("addr", s.addr).Info("[HTTP] server listening")
	if err := s.e.Start(s.addr); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// errorHandler maps domain sentinels onto HTTP status codes before falling
// back to echo's default handling.
func errorHandler(e *echo.Echo) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var httpErr *echo.HTTPError
		if !errors.As(err, &httpErr) {
			httpErr = echo.NewHTTPError(statusForError(err), err.Error())
		}
		e.DefaultHTTPErrorHandler(httpErr, c)
	}
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrInsufficientInventory):
		return http.StatusConflict
	case errors.Is(err, entity.ErrInactive):
		return http.StatusConflict
	case errors.Is(err, entity.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, entity.ErrDeadlinePassed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, entity.ErrAlreadyUsed):
		return http.StatusConflict
	case errors.Is(err, entity.ErrExpired):
		return http.StatusGone
	case errors.Is(err, entity.ErrDownstreamUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
