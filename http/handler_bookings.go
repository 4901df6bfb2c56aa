package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"ticketing/booking"
	"ticketing/entity"
)

type postBookingRequest struct {
	EventID      string  `json:"event_id" validate:"required_without=TicketTypeID"`
	TicketTypeID *string `json:"ticket_type_id"`
	UserID       string  `json:"user_id" validate:"required"`
	Quantity     int     `json:"quantity" validate:"required,gte=1"`
	Notes        string  `json:"notes"`
}

type postBookingResponse struct {
	Booking entity.Booking  `json:"booking"`
	Tickets []entity.Ticket `json:"tickets"`
}

type refundRequestBody struct {
	Reason string           `json:"reason" validate:"required"`
	Amount *decimal.Decimal `json:"amount"`
}

type refundProcessBody struct {
	Approve    bool   `json:"approve"`
	AdminNotes string `json:"admin_notes"`
}

func (s Server) PostBookings(c echo.Context) error {
	var request postBookingRequest
	if err := c.Bind(&request); err != nil {
		return err
	}
	if err := c.Validate(&request); err != nil {
		return err
	}

	b, tickets, err := s.bookingService.Purchase(c.Request().Context(), booking.PurchaseRequest{
		EventID:      request.EventID,
		TicketTypeID: request.TicketTypeID,
		UserID:       request.UserID,
		Quantity:     request.Quantity,
		Notes:        request.Notes,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, postBookingResponse{
		Booking: b,
		Tickets: tickets,
	})
}

func (s Server) PostCancelBooking(c echo.Context) error {
	b, err := s.bookingService.Cancel(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, b)
}

func (s Server) PostRefundRequest(c echo.Context) error {
	var request refundRequestBody
	if err := c.Bind(&request); err != nil {
		return err
	}
	if err := c.Validate(&request); err != nil {
		return err
	}

	b, err := s.bookingService.RequestRefund(c.Request().Context(), c.Param("id"), request.Reason, request.Amount)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, b)
}

func (s Server) PostRefundProcess(c echo.Context) error {
	var request refundProcessBody
	if err := c.Bind(&request); err != nil {
		return err
	}

	b, err := s.bookingService.ProcessRefund(c.Request().Context(), c.Param("id"), request.Approve, request.AdminNotes)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, b)
}

func (s Server) GetBooking(c echo.Context) error {
	b, err := s.bookingService.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, b)
}

func (s Server) GetBookingByCode(c echo.Context) error {
	b, err := s.bookingService.GetByConfirmationCode(c.Request().Context(), c.Param("code"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, b)
}

func (s Server) GetUserBookings(c echo.Context) error {
	bookings, err := s.bookingService.ListByUser(c.Request().Context(), c.Param("userID"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, bookings)
}

// GetBookings lists bookings by status, the refund-processing work queue.
func (s Server) GetBookings(c echo.Context) error {
	status := entity.BookingStatus(c.QueryParam("status"))
	if status == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "status query parameter is required")
	}

	bookings, err := s.bookingService.ListByStatus(c.Request().Context(), status)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, bookings)
}
