package http

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/goban/core/internal/domain/entities"
	"github.com/goban/core/internal/infrastructure/logger"
	"github.com/goban/core/internal/ports"
)

// AccountService is what AccountHandler needs from the account use cases
type AccountService interface {
	ListAccounts(ctx context.Context) ([]*entities.Account, error)
	StartQRLogin(ctx context.Context) (*ports.QRLoginResponse, error)
	CheckLogin(ctx context.Context, key string) (*ports.LoginCheckResponse, error)
	CancelLogin(ctx context.Context, key string) error
	LoginByCookie(ctx context.Context, cookies string) (*entities.Account, error)
	DeleteAccount(ctx context.Context, id int64) error
}

// AccountHandler handles platform account requests
type AccountHandler struct {
	accounts AccountService
	logger   *logger.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(accounts AccountService, logger *logger.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

// ListAccounts handles listing platform accounts
// @Summary List platform accounts
// @Tags users
// @Produce json
// @Success 200 {array} entities.Account
// @Failure 401 {object} ErrorResponse
// @Security BasicAuth
// @Router /users/list [get]
func (h *AccountHandler) ListAccounts(c echo.Context) error {
	accounts, err := h.accounts.ListAccounts(c.Request().Context())
	if err != nil {
		h.logger.WithError(err).Error("List accounts failed")
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, accounts)
}

// StartQRLogin handles issuing a login QR code
// @Summary Start a QR code login
// @Description Returns a base64 PNG QR code and the session key to poll with
// @Tags users
// @Produce json
// @Success 200 {object} ports.QRLoginResponse
// @Failure 502 {object} ErrorResponse
// @Security BasicAuth
// @Router /users/login [get]
func (h *AccountHandler) StartQRLogin(c echo.Context) error {
	resp, err := h.accounts.StartQRLogin(c.Request().Context())
	if err != nil {
		h.logger.WithError(err).Error("Start QR login failed")
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

// CheckLogin handles polling a QR login session
// @Summary Poll a QR code login
// @Tags users
// @Produce json
// @Param key query string true "Session key"
// @Success 200 {object} ports.LoginCheckResponse
// @Security BasicAuth
// @Router /users/loginCheck [get]
func (h *AccountHandler) CheckLogin(c echo.Context) error {
	resp, err := h.accounts.CheckLogin(c.Request().Context(), c.QueryParam("key"))
	if err != nil {
		h.logger.WithError(err).Error("Check login failed")
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

// CancelLogin handles abandoning a QR login session
// @Summary Cancel a QR code login
// @Tags users
// @Produce json
// @Param key query string true "Session key"
// @Success 200 {object} ports.MessageResponse
// @Security BasicAuth
// @Router /users/loginCancel [get]
func (h *AccountHandler) CancelLogin(c echo.Context) error {
	if err := h.accounts.CancelLogin(c.Request().Context(), c.QueryParam("key")); err != nil {
		h.logger.WithError(err).Error("Cancel login failed")
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, ports.MessageResponse{Message: "cancelled"})
}

// LoginByCookie handles registering an account from cookies
// @Summary Log in with cookies
// @Tags users
// @Accept json
// @Produce json
// @Param request body ports.CookieLoginRequest true "Cookie header value"
// @Success 200 {object} ports.CookieLoginResponse
// @Failure 400 {object} ErrorResponse
// @Security BasicAuth
// @Router /users/loginByCookie [post]
func (h *AccountHandler) LoginByCookie(c echo.Context) error {
	var req ports.CookieLoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	account, err := h.accounts.LoginByCookie(c.Request().Context(), req.Cookies)
	if err != nil {
		h.logger.WithError(err).Warn("Cookie login failed")
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, ports.CookieLoginResponse{Message: "login succeeded", User: account})
}

// DeleteAccount handles removing an account
// @Summary Delete an account with its tasks
// @Tags users
// @Produce json
// @Param id path int true "Account ID"
// @Success 200 {object} ports.MessageResponse
// @Failure 404 {object} ErrorResponse
// @Security BasicAuth
// @Router /users/{id} [delete]
func (h *AccountHandler) DeleteAccount(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	if err := h.accounts.DeleteAccount(c.Request().Context(), id); err != nil {
		h.logger.WithError(err).Warnw("Delete account failed", "account_id", id)
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, ports.MessageResponse{Message: "deleted"})
}
