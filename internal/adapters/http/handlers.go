package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/goban/core/internal/application/services"
	"github.com/goban/core/internal/domain/entities"
	"github.com/goban/core/internal/ports"
)

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Error string `json:"error"`
}

// HTTPStatus maps a service error onto a status code and a client-facing
// message. Unknown errors become 500 without leaking details.
func HTTPStatus(err error) (int, string) {
	switch {
	case errors.Is(err, entities.ErrAccountNotFound),
		errors.Is(err, entities.ErrTaskNotFound),
		errors.Is(err, entities.ErrSessionNotFound):
		return http.StatusNotFound, rootMessage(err)
	case errors.Is(err, entities.ErrAccountLoggedOut):
		return http.StatusConflict, rootMessage(err)
	case errors.Is(err, entities.ErrEmptyCookies),
		errors.Is(err, entities.ErrInvalidCookies),
		errors.Is(err, entities.ErrMissingCSRF),
		errors.Is(err, entities.ErrInvalidPageRequest),
		errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, entities.ErrUnauthorized):
		return http.StatusUnauthorized, rootMessage(err)
	case errors.Is(err, entities.ErrUpstreamFailure):
		return http.StatusBadGateway, err.Error()
	default:
		return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
	}
}

func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func toHTTPError(err error) error {
	code, msg := HTTPStatus(err)
	return echo.NewHTTPError(code, msg).SetInternal(err)
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// parsePage reads task_id, page and page_size. Absent values are left
// zero for the service to default.
func parsePage(c echo.Context) (ports.PageFilter, error) {
	var filter ports.PageFilter

	if raw := c.QueryParam("task_id"); raw != "" {
		taskID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, echo.NewHTTPError(http.StatusBadRequest, "invalid task_id")
		}
		filter.TaskID = &taskID
	}

	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"page", &filter.Page},
		{"page_size", &filter.PageSize},
	} {
		raw := c.QueryParam(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return filter, echo.NewHTTPError(http.StatusBadRequest, "invalid "+p.name)
		}
		*p.dst = v
	}

	return filter, nil
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
