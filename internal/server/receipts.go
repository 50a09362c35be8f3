package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/joseph-ayodele/receipts-api/constants"
	"github.com/joseph-ayodele/receipts-api/internal/common"
	"github.com/joseph-ayodele/receipts-api/internal/entity"
	"github.com/joseph-ayodele/receipts-api/internal/receipts"
	"github.com/joseph-ayodele/receipts-api/internal/validation"
)

type ReceiptHandler struct {
	svc            *receipts.Service
	batchValidator *validation.Validator
	logger         *slog.Logger
}

func NewReceiptHandler(svc *receipts.Service, batchValidator *validation.Validator, logger *slog.Logger) *ReceiptHandler {
	return &ReceiptHandler{
		svc:            svc,
		batchValidator: batchValidator,
		logger:         logger,
	}
}

// HandleBatchCreate creates every receipt in the JSON array body.
func (h *ReceiptHandler) HandleBatchCreate(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return common.BadRequest("failed to read request body", err)
	}
	if err := h.batchValidator.Validate(body); err != nil {
		h.logger.Warn("batch create payload rejected", "error", err)
		return err
	}

	var inputs []entity.ReceiptCreate
	if err := json.Unmarshal(body, &inputs); err != nil {
		return common.ValidationFailed("request body does not match the receipt schema", []map[string]string{
			{"field": "/", "message": err.Error()},
		})
	}

	created, err := h.svc.BatchCreate(c.Request().Context(), inputs)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toReceiptResponses(created))
}

// HandleList returns a filtered page of receipts.
func (h *ReceiptHandler) HandleList(c echo.Context) error {
	params, err := bindListParams(c)
	if err != nil {
		return err
	}

	page, err := h.svc.List(c.Request().Context(), params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toListResponse(page))
}

// HandleGet returns one receipt.
func (h *ReceiptHandler) HandleGet(c echo.Context) error {
	rec, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReceiptResponse(rec))
}

// HandlePatch applies a partial update. Keys outside the mutable field set
// are ignored.
func (h *ReceiptHandler) HandlePatch(c echo.Context) error {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(c.Request().Body).Decode(&raw); err != nil {
		return common.BadRequest("request body must be a JSON object", err)
	}

	rec, err := h.svc.Update(c.Request().Context(), c.Param("id"), raw)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReceiptResponse(rec))
}

// HandleDelete removes a receipt.
func (h *ReceiptHandler) HandleDelete(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// bindListParams reads q, gstin, status, page and size. page must be >= 1 and
// size within [1, MaxPageSize].
func bindListParams(c echo.Context) (receipts.ListParams, error) {
	params := receipts.ListParams{
		Page: constants.DefaultPage,
		Size: constants.DefaultPageSize,
	}
	err := echo.QueryParamsBinder(c).
		String("q", &params.Q).
		String("gstin", &params.GSTIN).
		String("status", &params.Status).
		Int("page", &params.Page).
		Int("size", &params.Size).
		BindError()
	if err != nil {
		var be *echo.BindingError
		if errors.As(err, &be) {
			return params, common.ValidationFailed(
				fmt.Sprintf("invalid query parameter: %s", be.Field),
				[]map[string]string{{"field": be.Field, "message": "must be an integer"}},
			)
		}
		return params, common.BadRequest("invalid query parameters", err)
	}

	v := common.NewValidator().
		Field("page", params.Page, common.IntBetween(1, math.MaxInt32)).
		Field("size", params.Size, common.IntBetween(1, constants.MaxPageSize))
	if err := common.ValidateAndReturnError(v); err != nil {
		return params, err
	}
	return params, nil
}
