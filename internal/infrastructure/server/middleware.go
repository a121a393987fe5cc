package server

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/goban/core/internal/domain/entities"
	"github.com/goban/core/internal/i18n"
)

// Authenticator checks operator credentials
type Authenticator interface {
	Authenticate(username, password string) error
}

const (
	basicScheme          = "basic"
	headerAcceptLanguage = "Accept-Language"
)

// basicAuth guards the API with HTTP Basic credentials. Failures are
// reported in the caller's Accept-Language.
func (s *Server) basicAuth(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			lang := c.Request().Header.Get(headerAcceptLanguage)
			header := c.Request().Header.Get(echo.HeaderAuthorization)

			if header == "" {
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Basic realm="Restricted"`)
				return echo.NewHTTPError(http.StatusUnauthorized, i18n.T(lang, i18n.AuthRequired))
			}

			scheme, payload, _ := strings.Cut(header, " ")
			if !strings.EqualFold(scheme, basicScheme) {
				return s.rejectAuth(c, "invalid_auth_scheme", "", i18n.T(lang, i18n.AuthBadScheme))
			}

			decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
			if err != nil {
				return s.rejectAuth(c, "invalid_auth_encoding", "", i18n.T(lang, i18n.AuthBadEncode))
			}

			username, password, ok := strings.Cut(string(decoded), ":")
			if !ok {
				return s.rejectAuth(c, "invalid_auth_format", "", i18n.T(lang, i18n.AuthBadFormat))
			}

			if err := auth.Authenticate(username, password); err != nil {
				if !errors.Is(err, entities.ErrUnauthorized) {
					s.logger.WithError(err).Error("Authentication failed unexpectedly")
				}
				return s.rejectAuth(c, "invalid_credentials", username, i18n.T(lang, i18n.AuthBadCreds))
			}

			c.Set("user", username)
			return next(c)
		}
	}
}

func (s *Server) rejectAuth(c echo.Context, event, username, msg string) error {
	s.logger.LogSecurityEvent(event, username, c.RealIP(), map[string]interface{}{
		"endpoint": c.Request().URL.Path,
	})
	return echo.NewHTTPError(http.StatusUnauthorized, msg)
}
