package server

import (
	"errors"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/joseph-ayodele/receipts-api/internal/auth"
	"github.com/joseph-ayodele/receipts-api/internal/common"
)

// RequireCaller resolves the bearer token on every request through authn and
// stores the caller in the request context. Requests without a resolvable
// caller are rejected with 401.
func RequireCaller(authn auth.Authenticator, logger *slog.Logger) echo.MiddlewareFunc {
	if _, ok := authn.(auth.Anonymous); ok {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				caller, _ := authn.Authenticate(c.Request().Context(), "")
				c.SetRequest(c.Request().WithContext(auth.WithCaller(c.Request().Context(), caller)))
				return next(c)
			}
		}
	}

	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup:  "header:" + echo.HeaderAuthorization,
		AuthScheme: "Bearer",
		Validator: func(key string, c echo.Context) (bool, error) {
			caller, err := authn.Authenticate(c.Request().Context(), key)
			if err != nil {
				if errors.Is(err, auth.ErrUnauthenticated) {
					return false, nil
				}
				return false, err
			}
			c.SetRequest(c.Request().WithContext(auth.WithCaller(c.Request().Context(), caller)))
			return true, nil
		},
		ErrorHandler: func(err error, c echo.Context) error {
			logger.Warn("request rejected by identity gate", "path", c.Request().URL.Path, "error", err)
			return common.NewAppError(common.CodeUnauthorized, "authentication required", errors.Join(common.ErrUnauthorized, err))
		},
	})
}
