package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

type postScanRequest struct {
	Identifier  string `json:"identifier" validate:"required"`
	ScannerID   string `json:"scanner_id" validate:"required"`
	ScannerType string `json:"scanner_type"`
	Location    string `json:"location"`
}

type postScanBatchRequest struct {
	ConfirmationCode string `json:"confirmation_code" validate:"required"`
	Count            int    `json:"count" validate:"required,gte=1"`
	ScannerID        string `json:"scanner_id" validate:"required"`
	ScannerType      string `json:"scanner_type"`
	Location         string `json:"location"`
}

func (s Server) PostScan(c echo.Context) error {
	var request postScanRequest
	if err := c.Bind(&request); err != nil {
		return err
	}
	if err := c.Validate(&request); err != nil {
		return err
	}

	result, err := s.checkInService.Scan(
		c.Request().Context(),
		request.Identifier,
		request.ScannerID,
		request.ScannerType,
		request.Location,
	)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func (s Server) PostScanBatch(c echo.Context) error {
	var request postScanBatchRequest
	if err := c.Bind(&request); err != nil {
		return err
	}
	if err := c.Validate(&request); err != nil {
		return err
	}

	result, err := s.checkInService.ScanBatch(
		c.Request().Context(),
		request.ConfirmationCode,
		request.ScannerID,
		request.ScannerType,
		request.Location,
		request.Count,
	)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func (s Server) GetTicketStatus(c echo.Context) error {
	ticket, err := s.checkInService.TicketStatus(c.Request().Context(), c.Param("identifier"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ticket)
}

func (s Server) GetCheckInStats(c echo.Context) error {
	stats, err := s.checkInService.Stats(c.Request().Context(), c.Param("code"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, stats)
}

func (s Server) GetCheckInHistory(c echo.Context) error {
	records, err := s.checkInService.CheckInHistory(c.Request().Context(), c.Param("code"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, records)
}

func (s Server) GetDailyCheckInStats(c echo.Context) error {
	day := time.Now()
	if raw := c.QueryParam("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "date must be formatted as YYYY-MM-DD")
		}
		day = parsed
	}

	stats, err := s.checkInService.DailyStats(c.Request().Context(), day)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, stats)
}

func (s Server) GetRecentCheckIns(c echo.Context) error {
	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}

	records, err := s.checkInService.RecentCheckIns(c.Request().Context(), limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, records)
}
