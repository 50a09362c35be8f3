package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/receipts-api/internal/auth"
	"github.com/joseph-ayodele/receipts-api/internal/common"
	"github.com/joseph-ayodele/receipts-api/internal/export"
	"github.com/joseph-ayodele/receipts-api/internal/receipts"
	"github.com/joseph-ayodele/receipts-api/internal/repository"
	"github.com/joseph-ayodele/receipts-api/internal/validation"
)

const testToken = "test-token"

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	ctx := context.Background()
	logger := testLogger()

	store, err := repository.Open(ctx, repository.Config{
		DSN: "sqlite:" + filepath.Join(t.TempDir(), "receipts.db"),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Migrate(ctx))

	clock := &stepClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	repo := repository.NewReceiptRepository(store, logger, repository.WithClock(clock.Now))
	batchValidator, err := validation.NewBatchCreateValidator()
	require.NoError(t, err)

	return NewHTTPServer(Dependencies{
		Receipts:      NewReceiptHandler(receipts.NewService(repo, logger), batchValidator, logger),
		Export:        NewExportHandler(export.NewService(repo, logger), logger),
		Health:        NewHealthHandler(store, "test"),
		Authenticator: auth.NewTokenAuthenticator(map[string]string{testToken: "tester"}),
		BodyLimit:     "1M",
		Logger:        logger,
	})
}

func do(t *testing.T, e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+testToken)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Error
}

func createReceipts(t *testing.T, e *echo.Echo, body string) []map[string]any {
	t.Helper()
	rec := do(t, e, http.MethodPost, "/api/v1/receipts/batch", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestBatchCreateEndpoint(t *testing.T) {
	e := newTestServer(t)

	out := createReceipts(t, e, `[
		{"vendor":"Acme","date":"2024-03-01","amount":12.5,"gstin":"G1","id":"ignored"},
		{"vendor":"Beta","date":"2024-03-02","amount":3,"status":"verified","mime_type":"image/png"}
	]`)
	require.Len(t, out, 2)

	first := out[0]
	assert.Equal(t, "Acme", first["vendor"])
	assert.Equal(t, "2024-03-01", first["date"])
	assert.Equal(t, 12.5, first["amount"])
	assert.Equal(t, "processed", first["status"])
	assert.Equal(t, "G1", first["gstin"])
	assert.NotEqual(t, "ignored", first["id"])
	assert.Equal(t, map[string]any{}, first["extracted"])
	for _, key := range []string{"currency", "category", "tax_amount", "filename", "mime_type"} {
		v, present := first[key]
		assert.True(t, present, key)
		assert.Nil(t, v, key)
	}
	createdAt, ok := first["created_at"].(string)
	require.True(t, ok)
	_, err := time.Parse(time.RFC3339Nano, createdAt)
	assert.NoError(t, err)

	assert.Equal(t, "verified", out[1]["status"])
	assert.Equal(t, "image/png", out[1]["mime_type"])
}

func TestBatchCreateEmptyList(t *testing.T) {
	e := newTestServer(t)
	rec := do(t, e, http.MethodPost, "/api/v1/receipts/batch", `[]`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestBatchCreateValidation(t *testing.T) {
	e := newTestServer(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{name: "missing amount", body: `[{"vendor":"Acme","date":"2024-03-01"}]`, wantStatus: http.StatusBadRequest, wantCode: common.CodeValidation},
		{name: "not an array", body: `{"vendor":"Acme"}`, wantStatus: http.StatusBadRequest, wantCode: common.CodeValidation},
		{name: "malformed json", body: `[{`, wantStatus: http.StatusBadRequest, wantCode: common.CodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, e, http.MethodPost, "/api/v1/receipts/batch", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.NotEmpty(t, body.Message)
		})
	}

	rec := do(t, e, http.MethodGet, "/api/v1/receipts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[],"total":0,"page":1,"size":20}`, rec.Body.String())
}

func TestListEndpoint(t *testing.T) {
	e := newTestServer(t)
	var b strings.Builder
	b.WriteString("[")
	for i := 0; i < 25; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		vendor := "Other"
		if i%5 == 0 {
			vendor = "ACME"
		}
		b.WriteString(`{"vendor":"` + vendor + `","date":"2024-03-01","amount":1}`)
	}
	b.WriteString("]")
	createReceipts(t, e, b.String())

	rec := do(t, e, http.MethodGet, "/api/v1/receipts?page=2&size=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 25, page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 10, page.Size)
	assert.Len(t, page.Items, 10)

	rec = do(t, e, http.MethodGet, "/api/v1/receipts/?q=acme", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 5, page.Total)
	for _, it := range page.Items {
		assert.Equal(t, "ACME", it.Vendor)
	}
}

func TestListRejectsBadPaging(t *testing.T) {
	e := newTestServer(t)
	for _, query := range []string{"page=0", "size=0", "size=101", "page=-1", "size=abc", "page=1.5"} {
		t.Run(query, func(t *testing.T) {
			rec := do(t, e, http.MethodGet, "/api/v1/receipts?"+query, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, common.CodeValidation, decodeError(t, rec).Code)
		})
	}
}

func TestGetPatchDeleteEndpoints(t *testing.T) {
	e := newTestServer(t)
	out := createReceipts(t, e, `[{"vendor":"Acme","date":"2024-03-01","amount":12.5,"filename":"a.pdf"}]`)
	id := out[0]["id"].(string)

	rec := do(t, e, http.MethodGet, "/api/v1/receipts/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got ReceiptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, id, got.ID)

	rec = do(t, e, http.MethodPatch, "/api/v1/receipts/"+id, `{"category":"Meals","filename":"other.pdf","id":"x"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "Meals", *got.Category)
	assert.Equal(t, "a.pdf", *got.Filename)

	rec = do(t, e, http.MethodPatch, "/api/v1/receipts/"+id, `{"amount":"many"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, common.CodeValidation, decodeError(t, rec).Code)

	rec = do(t, e, http.MethodPatch, "/api/v1/receipts/"+id, `[1,2]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, common.CodeBadRequest, decodeError(t, rec).Code)

	rec = do(t, e, http.MethodDelete, "/api/v1/receipts/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.Bytes())

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec = do(t, e, method, "/api/v1/receipts/"+id, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, common.CodeNotFound, body.Code)
		assert.Contains(t, body.Message, id)
	}

	rec = do(t, e, http.MethodPatch, "/api/v1/receipts/"+id, `{"vendor":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIdentityGate(t *testing.T) {
	e := newTestServer(t)

	for _, header := range []string{"", "Bearer wrong", "Basic " + testToken} {
		t.Run(header, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/receipts", nil)
			if header != "" {
				req.Header.Set(echo.HeaderAuthorization, header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, common.CodeUnauthorized, decodeError(t, rec).Code)
		})
	}
}

func TestAnonymousGate(t *testing.T) {
	var seen *auth.Caller
	e := echo.New()
	e.GET("/", func(c echo.Context) error {
		seen, _ = auth.CallerFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	}, RequireCaller(auth.Anonymous{}, testLogger()))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "anonymous", seen.ID)
}

func TestExportEndpoint(t *testing.T) {
	e := newTestServer(t)
	createReceipts(t, e, `[
		{"vendor":"Acme","date":"2024-03-01","amount":12.5,"gstin":"G1"},
		{"vendor":"Beta","date":"2024-03-02","amount":3}
	]`)

	rec := do(t, e, http.MethodGet, "/api/v1/receipts/export?gstin=G1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.ContentType, rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "attachment")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Receipts")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Date", rows[0][0])
	assert.Equal(t, "2024-03-01", rows[1][0])
	assert.Equal(t, "Acme", rows[1][1])
}

func TestHealthEndpoint(t *testing.T) {
	e := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","version":"test","database":"up"}`, rec.Body.String())
}

func TestUnknownRouteUsesErrorShape(t *testing.T) {
	e := newTestServer(t)
	rec := do(t, e, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, common.CodeNotFound, decodeError(t, rec).Code)
}

func TestPanicIsRenderedAsInternalError(t *testing.T) {
	e := newTestServer(t)
	e.GET("/panic", func(c echo.Context) error {
		panic("kaboom")
	})

	rec := do(t, e, http.MethodGet, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, common.CodeInternal, body.Code)
	assert.NotContains(t, rec.Body.String(), "kaboom")
}
