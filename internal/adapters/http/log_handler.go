package http

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/goban/core/internal/domain/entities"
	"github.com/goban/core/internal/infrastructure/logger"
	"github.com/goban/core/internal/ports"
)

// LogService is what LogHandler needs from the history use cases
type LogService interface {
	ListMonitorLogs(ctx context.Context, filter ports.PageFilter) (*ports.Page[*entities.MonitorLog], error)
	ListReports(ctx context.Context, filter ports.PageFilter) (*ports.Page[*entities.ReportRecord], error)
}

// LogHandler serves monitor history
type LogHandler struct {
	logs   LogService
	logger *logger.Logger
}

// NewLogHandler creates a new log handler
func NewLogHandler(logs LogService, logger *logger.Logger) *LogHandler {
	return &LogHandler{logs: logs, logger: logger}
}

// MonitorLogs godoc
// @Summary Page through monitor logs
// @Tags logs
// @Param task_id query int false "Task ID"
// @Param page query int false "Page, from 1"
// @Param page_size query int false "Page size, default 50"
// @Success 200 {object} ports.Page[entities.MonitorLog]
// @Security BasicAuth
// @Router /logs/monitor [get]
func (h *LogHandler) MonitorLogs(c echo.Context) error {
	filter, err := parsePage(c)
	if err != nil {
		return err
	}

	page, err := h.logs.ListMonitorLogs(c.Request().Context(), filter)
	if err != nil {
		h.logger.WithError(err).Error("List monitor logs failed")
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, page)
}

// ReportRecords godoc
// @Summary Page through report records
// @Tags logs
// @Param task_id query int false "Task ID"
// @Param page query int false "Page, from 1"
// @Param page_size query int false "Page size, default 50"
// @Success 200 {object} ports.Page[entities.ReportRecord]
// @Security BasicAuth
// @Router /logs/report [get]
func (h *LogHandler) ReportRecords(c echo.Context) error {
	filter, err := parsePage(c)
	if err != nil {
		return err
	}

	page, err := h.logs.ListReports(c.Request().Context(), filter)
	if err != nil {
		h.logger.WithError(err).Error("List report records failed")
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, page)
}
