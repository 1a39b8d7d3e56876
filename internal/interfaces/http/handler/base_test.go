package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/consultpay/backend/internal/domain/shared"
	"github.com/consultpay/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHandleError(t *testing.T) {
	base := &BaseHandler{}

	t.Run("domain error maps kind code and status", func(t *testing.T) {
		c, rec := testContext(t)
		base.HandleError(c, shared.NewDomainError(shared.KindBusinessRule, "PRICE_MISMATCH", "amount off"))

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		resp := decodeResponse(t, rec)
		assert.False(t, resp.Success)
		require.NotNil(t, resp.Error)
		assert.Equal(t, string(shared.KindBusinessRule), resp.Error.Kind)
		assert.Equal(t, "PRICE_MISMATCH", resp.Error.Code)
		assert.Equal(t, "amount off", resp.Error.Message)
	})

	t.Run("wrapped domain error still maps", func(t *testing.T) {
		c, rec := testContext(t)
		base.HandleError(c, shared.WrapDomainError(shared.KindGatewayRejection, "GATEWAY_REJECTED", "declined", errors.New("raw")))
		assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	})

	t.Run("unknown error is masked as internal", func(t *testing.T) {
		c, rec := testContext(t)
		base.HandleError(c, errors.New("pq: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		resp := decodeResponse(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeInternal, resp.Error.Code)
		assert.NotContains(t, resp.Error.Message, "pq:", "internals never leak")
	})

	t.Run("request id carried into the error body", func(t *testing.T) {
		c, rec := testContext(t)
		c.Set(RequestIDKey, "req-123")
		base.HandleError(c, shared.ErrNotFound)

		resp := decodeResponse(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "req-123", resp.Error.RequestID)
	})
}

func TestSuccessResponses(t *testing.T) {
	base := &BaseHandler{}

	t.Run("success", func(t *testing.T) {
		c, rec := testContext(t)
		base.Success(c, map[string]string{"id": "pi_1"})

		assert.Equal(t, http.StatusOK, rec.Code)
		resp := decodeResponse(t, rec)
		assert.True(t, resp.Success)
		assert.Nil(t, resp.Error)
	})

	t.Run("created", func(t *testing.T) {
		c, rec := testContext(t)
		base.Created(c, nil)
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("bad request", func(t *testing.T) {
		c, rec := testContext(t)
		base.BadRequest(c, "amount is required")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeResponse(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeBadRequest, resp.Error.Code)
	})
}
