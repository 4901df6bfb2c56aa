package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"ticketing/entity"
)

type postEventRequest struct {
	Name     string          `json:"name" validate:"required"`
	StartsAt time.Time       `json:"starts_at" validate:"required"`
	Capacity int             `json:"capacity" validate:"required,gte=1"`
	Price    decimal.Decimal `json:"price"`
}

type postTicketTypeRequest struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Capacity    int             `json:"capacity" validate:"required,gte=1"`
}

func (s Server) PostEvents(c echo.Context) error {
	var request postEventRequest
	if err := c.Bind(&request); err != nil {
		return err
	}
	if err := c.Validate(&request); err != nil {
		return err
	}

	event := entity.Event{
		EventID:   uuid.NewString(),
		Name:      request.Name,
		StartsAt:  request.StartsAt,
		Capacity:  request.Capacity,
		Available: request.Capacity,
		Price:     request.Price,
		IsActive:  true,
	}

	if err := s.inventoryRepo.StoreEvent(c.Request().Context(), event); err != nil {
		return fmt.Errorf("could not store event: %w", err)
	}

	return c.JSON(http.StatusCreated, event)
}

func (s Server) PostTicketTypes(c echo.Context) error {
	var request postTicketTypeRequest
	if err := c.Bind(&request); err != nil {
		return err
	}
	if err := c.Validate(&request); err != nil {
		return err
	}

	eventID := c.Param("id")

	if _, err := s.inventoryRepo.GetEvent(c.Request().Context(), eventID); err != nil {
		return err
	}

	ticketType := entity.TicketType{
		TicketTypeID: uuid.NewString(),
		EventID:      eventID,
		Name:         request.Name,
		Description:  request.Description,
		Price:        request.Price,
		Capacity:     request.Capacity,
		Available:    request.Capacity,
		IsActive:     true,
	}

	if err := s.inventoryRepo.StoreTicketType(c.Request().Context(), ticketType); err != nil {
		return fmt.Errorf("could not store ticket type: %w", err)
	}

	return c.JSON(http.StatusCreated, ticketType)
}

type putTicketTypeCapacityRequest struct {
	Capacity int `json:"capacity" validate:"required,gte=1"`
}

func (s Server) PutTicketTypeCapacity(c echo.Context) error {
	var request putTicketTypeCapacityRequest
	if err := c.Bind(&request); err != nil {
		return err
	}
	if err := c.Validate(&request); err != nil {
		return err
	}

	ticketType, err := s.inventoryRepo.ResizeTicketType(c.Request().Context(), c.Param("id"), request.Capacity)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ticketType)
}

func (s Server) PostDeactivateTicketType(c echo.Context) error {
	if err := s.inventoryRepo.DeactivateTicketType(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// GetEventAvailability is advisory: the numbers may be stale the moment they
// are read, only the reserve path is authoritative.
func (s Server) GetEventAvailability(c echo.Context) error {
	totals, err := s.inventoryRepo.EventTotals(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, totals)
}
