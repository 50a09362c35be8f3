package server

import (
	"errors"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/joseph-ayodele/receipts-api/internal/auth"
	"github.com/joseph-ayodele/receipts-api/internal/common"
)

// Dependencies groups everything the HTTP surface needs.
type Dependencies struct {
	Receipts      *ReceiptHandler
	Export        *ExportHandler
	Health        *HealthHandler
	Authenticator auth.Authenticator
	BodyLimit     string
	Logger        *slog.Logger
}

// NewHTTPServer builds the echo instance with middleware and routes.
func NewHTTPServer(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler(deps.Logger)

	e.Use(middleware.RequestID())
	e.Use(requestContext(deps.Logger))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				deps.Logger.Warn("request", append(attrs, "error", v.Error)...)
				return nil
			}
			deps.Logger.Info("request", attrs...)
			return nil
		},
	}))
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			deps.Logger.Error("panic recovered", "path", c.Path(), "error", err, "stack", string(stack))
			return common.NewAppError(common.CodeInternal, "panic recovered", errors.Join(common.ErrInternal, err))
		},
	}))
	if deps.BodyLimit != "" {
		e.Use(middleware.BodyLimit(deps.BodyLimit))
	}

	RegisterRoutes(e, deps)
	return e
}

// RegisterRoutes mounts the receipt API under /api/v1 behind the identity
// gate, plus the unauthenticated health probe.
func RegisterRoutes(e *echo.Echo, deps Dependencies) {
	if deps.Health != nil {
		e.GET("/health", deps.Health.HandleHealth)
	}

	api := e.Group("/api/v1", RequireCaller(deps.Authenticator, deps.Logger))
	r := api.Group("/receipts")
	r.POST("/batch", deps.Receipts.HandleBatchCreate)
	r.GET("", deps.Receipts.HandleList)
	r.GET("/", deps.Receipts.HandleList)
	if deps.Export != nil {
		r.GET("/export", deps.Export.HandleExport)
	}
	r.GET("/:id", deps.Receipts.HandleGet)
	r.PATCH("/:id", deps.Receipts.HandlePatch)
	r.DELETE("/:id", deps.Receipts.HandleDelete)
}

// requestContext copies the echo request id into the request context along
// with a logger carrying it.
func requestContext(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Response().Header().Get(echo.HeaderXRequestID)
			ctx := common.WithRequestID(c.Request().Context(), id)
			ctx = common.WithLogger(ctx, logger.With("request_id", id))
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
