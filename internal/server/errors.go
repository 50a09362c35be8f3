package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/joseph-ayodele/receipts-api/internal/common"
)

// ErrorBody is the payload of every failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

const unexpectedErrorMessage = "an unexpected error occurred"

var statusByCode = map[string]int{
	common.CodeNotFound:     http.StatusNotFound,
	common.CodeValidation:   http.StatusBadRequest,
	common.CodeBadRequest:   http.StatusBadRequest,
	common.CodeUnauthorized: http.StatusUnauthorized,
	common.CodeUnavailable:  http.StatusServiceUnavailable,
	common.CodeInternal:     http.StatusInternalServerError,
}

var codeByStatus = map[int]string{
	http.StatusBadRequest:            common.CodeBadRequest,
	http.StatusUnauthorized:          common.CodeUnauthorized,
	http.StatusNotFound:              common.CodeNotFound,
	http.StatusMethodNotAllowed:      "METHOD_NOT_ALLOWED",
	http.StatusRequestEntityTooLarge: "PAYLOAD_TOO_LARGE",
	http.StatusServiceUnavailable:    common.CodeUnavailable,
}

// ErrorHandler renders every error as {"error": {code, message, details?}}.
// Usage: e.HTTPErrorHandler = ErrorHandler(logger)
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := renderError(err)
		if status >= http.StatusInternalServerError {
			common.LoggerFromContext(c.Request().Context(), logger).Error("request failed",
				"method", c.Request().Method,
				"path", c.Path(),
				"status", status,
				"error", err,
			)
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, errorEnvelope{Error: body})
		}
		if werr != nil {
			logger.Error("failed to write error response", "error", werr)
		}
	}
}

func renderError(err error) (int, ErrorBody) {
	if appErr, ok := common.AsAppError(err); ok {
		status, known := statusByCode[appErr.Code]
		if !known {
			status = http.StatusInternalServerError
		}
		if status >= http.StatusInternalServerError {
			return status, ErrorBody{Code: appErr.Code, Message: unexpectedErrorMessage}
		}
		return status, ErrorBody{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details}
	}

	if he, ok := err.(*echo.HTTPError); ok {
		code, known := codeByStatus[he.Code]
		if !known {
			code = "HTTP_ERROR"
		}
		if he.Code >= http.StatusInternalServerError {
			return he.Code, ErrorBody{Code: code, Message: unexpectedErrorMessage}
		}
		return he.Code, ErrorBody{Code: code, Message: fmt.Sprintf("%v", he.Message)}
	}

	return http.StatusInternalServerError, ErrorBody{Code: common.CodeInternal, Message: unexpectedErrorMessage}
}
