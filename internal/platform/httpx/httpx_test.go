package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Name  string `json:"fullName" validate:"required"`
	Email string `json:"email" validate:"omitempty,email"`
}

func TestWriteErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), rec, NewError(CodeDependencyConflict, "produto vinculado a pedidos", http.StatusConflict).
		WithDetails(map[string]any{"id": "prod_1", "status": 999}))

	require.Equal(t, http.StatusConflict, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "dependency_conflict", body["error"])
	assert.Equal(t, "prod_1", body["id"])
	assert.Equal(t, float64(http.StatusConflict), body["status"])
}

func TestDecodeJSONValidation(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"not-an-email"}`))
	var dst sampleRequest
	err := DecodeJSON(req, &dst, 0)
	require.Error(t, err)

	apiErr := BadRequest(err)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	fields, ok := apiErr.Details["fields"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "required", fields["fullName"])
	assert.Equal(t, "email", fields["email"])
}

func TestDecodeJSONLimits(t *testing.T) {
	var dst sampleRequest
	err := DecodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("  ")), &dst, 0)
	assert.ErrorIs(t, err, ErrEmptyBody)

	err = DecodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"fullName":"Maria da Silva"}`)), &dst, 8)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, BadRequest(err).Status)

	err = DecodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"fullName":"Maria"}`)), &dst, 0)
	require.NoError(t, err)
	assert.Equal(t, "Maria", dst.Name)
}
