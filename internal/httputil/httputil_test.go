package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]string{"symbol": "BTC-USD"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"symbol":"BTC-USD"}`, rec.Body.String())
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusNotFound, "no price observed")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "no price observed")
	assert.Contains(t, rec.Body.String(), "HTTP_404")
}

func TestDecodeJSON(t *testing.T) {
	var payload struct {
		Symbol string `json:"symbol"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"symbol":"ETH-USD"}`))
	rec := httptest.NewRecorder()
	require.True(t, DecodeJSON(rec, req, &payload))
	assert.Equal(t, "ETH-USD", payload.Symbol)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{broken`))
	rec = httptest.NewRecorder()
	assert.False(t, DecodeJSON(rec, req, &payload))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?name=alpha&enabled=true", nil)

	assert.Equal(t, "alpha", QueryString(req, "name", "fallback"))
	assert.Equal(t, "fallback", QueryString(req, "missing", "fallback"))
	assert.True(t, QueryBool(req, "enabled", false))
	assert.False(t, QueryBool(req, "missing", false))
}

func TestReadAllWithLimit(t *testing.T) {
	body, truncated, err := ReadAllWithLimit(strings.NewReader("short body"), 1024)
	require.NoError(t, err)
	assert.False(t, truncated)
	assert.Equal(t, "short body", string(body))

	body, truncated, err = ReadAllWithLimit(strings.NewReader("this is far too long"), 4)
	require.NoError(t, err)
	assert.True(t, truncated)
	assert.Equal(t, "this", string(body))
}

func TestReadAllStrict(t *testing.T) {
	body, err := ReadAllStrict(strings.NewReader("ok"), 16)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))

	_, err = ReadAllStrict(strings.NewReader("exceeds the limit"), 4)
	assert.Error(t, err)
}
