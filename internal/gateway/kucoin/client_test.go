package kucoin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const klinesBody = `{
	"code": "200000",
	"data": [
		["1672617600", "16625.1", "16688.9", "16700.0", "16600.5", "1234.5678", "20512345.12"],
		["1672531200", "16500.0", "16625.1", "16650.2", "16480.9", "987.6543", "16301234.56"]
	]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL})
}

func TestKlinesParsesEnvelope(t *testing.T) {
	var gotQuery map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, candlesPath, r.URL.Path)
		gotQuery = map[string]string{
			"symbol":  r.URL.Query().Get("symbol"),
			"type":    r.URL.Query().Get("type"),
			"startAt": r.URL.Query().Get("startAt"),
			"endAt":   r.URL.Query().Get("endAt"),
		}
		_, _ = w.Write([]byte(klinesBody))
	})

	out, err := client.Klines(context.Background(), "BTC-USDT", "1day", 1672531200, 1672617600)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"symbol":  "BTC-USDT",
		"type":    "1day",
		"startAt": "1672531200",
		"endAt":   "1672617600",
	}, gotQuery)

	// 接口按最新在前返回，客户端不改顺序
	require.Len(t, out, 2)
	assert.Equal(t, time.Unix(1672617600, 0).UTC(), out[0].OpenTime)
	assert.Equal(t, "16625.1", out[0].Open.String())
	assert.Equal(t, "16688.9", out[0].Close.String())
	assert.Equal(t, "16700", out[0].High.String())
	assert.Equal(t, "16600.5", out[0].Low.String())
	assert.Equal(t, "1234.5678", out[0].Volume.String())
	assert.Equal(t, "20512345.12", out[0].QuoteVolume.String())
	assert.True(t, out[0].CloseTime.IsZero())
}

func TestKlinesAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"400100","msg":"This pair is not provided at present"}`))
	})
	_, err := client.Klines(context.Background(), "NOPE-USDT", "1day", 0, 0)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "400100", apiErr.Code)
	assert.Contains(t, apiErr.Message, "not provided")
}

func TestKlinesHTTPStatusError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := client.Klines(context.Background(), "BTC-USDT", "1day", 0, 0)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "502", apiErr.Code)
}

func TestKlinesMalformedRow(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"200000","data":[["1672531200","16500.0"]]}`))
	})
	_, err := client.Klines(context.Background(), "BTC-USDT", "1day", 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "7 fields")
}

func TestKlinesBadDecimal(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"200000","data":[["1672531200","not-a-number","1","1","1","1","1"]]}`))
	})
	_, err := client.Klines(context.Background(), "BTC-USDT", "1day", 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open")
}

func TestKlinesEmptyData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"200000","data":[]}`))
	})
	out, err := client.Klines(context.Background(), "BTC-USDT", "1day", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestKlinesOmitsZeroBounds(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("startAt"))
		assert.False(t, r.URL.Query().Has("endAt"))
		_, _ = w.Write([]byte(`{"code":"200000","data":[]}`))
	})
	_, err := client.Klines(context.Background(), "BTC-USDT", "1day", 0, 0)
	require.NoError(t, err)
}
