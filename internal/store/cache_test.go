package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekremrn/crypto-excel-export/internal/market"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func cacheSeries(n int) market.Series {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]market.Candle, n)
	for i := range candles {
		open := start.Add(time.Duration(i) * time.Hour)
		candles[i] = market.Candle{
			OpenTime:      open,
			CloseTime:     open.Add(time.Hour - time.Millisecond),
			Open:          dec("100.5"),
			High:          dec("110.25"),
			Low:           dec("99.999"),
			Close:         dec("105"),
			Volume:        dec("1234.5678"),
			QuoteVolume:   dec("129876.54"),
			TakerBuyBase:  dec("600.1"),
			TakerBuyQuote: dec("63000.9"),
			Trades:        int64(10 + i),
		}
	}
	return market.Series{
		Exchange: market.ExchangeBinance,
		Symbol:   "ETHUSDT",
		Interval: "1h",
		Start:    start,
		End:      start.Add(time.Duration(n-1) * time.Hour),
		Candles:  candles,
	}
}

func TestCachePutAndRange(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	s := cacheSeries(3)
	n, err := cache.Put(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := cache.Range(ctx, s.Exchange, s.Symbol, s.Interval, s.Start, s.End)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].OpenTime.Before(got[i].OpenTime))
	}
	// 十进制原文经缓存往返后保持不变
	assert.Equal(t, "100.5", got[0].Open.String())
	assert.Equal(t, "99.999", got[0].Low.String())
	assert.Equal(t, "1234.5678", got[0].Volume.String())
	assert.Equal(t, int64(10), got[0].Trades)
	assert.Equal(t, s.Candles[0].CloseTime, got[0].CloseTime)
}

func TestCachePutUpsert(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	s := cacheSeries(2)
	_, err = cache.Put(ctx, s)
	require.NoError(t, err)

	// 相同 open_time 重新写入时覆盖旧值
	s.Candles[0].Close = dec("999")
	_, err = cache.Put(ctx, s)
	require.NoError(t, err)

	got, err := cache.Range(ctx, s.Exchange, s.Symbol, s.Interval, s.Start, s.End)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "999", got[0].Close.String())
}

func TestCacheCountRange(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	s := cacheSeries(5)
	_, err = cache.Put(ctx, s)
	require.NoError(t, err)

	n, err := cache.CountRange(ctx, s.Exchange, s.Symbol, s.Interval, s.Start, s.End)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)

	n, err = cache.CountRange(ctx, s.Exchange, s.Symbol, s.Interval, s.Start, s.Start.Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestCacheKuCoinZeroCloseTime(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	open := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s := market.Series{
		Exchange: market.ExchangeKuCoin,
		Symbol:   "BTC-USDT",
		Interval: "1d",
		Start:    open,
		End:      open,
		Candles: []market.Candle{{
			OpenTime: open,
			Open:     dec("42000"), High: dec("43000"), Low: dec("41000"), Close: dec("42500"),
			Volume: dec("10.5"), QuoteVolume: dec("442000.1"),
		}},
	}
	_, err = cache.Put(ctx, s)
	require.NoError(t, err)

	got, err := cache.Range(ctx, s.Exchange, s.Symbol, s.Interval, open, open)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].CloseTime.IsZero())
	assert.Equal(t, "0", got[0].TakerBuyBase.String())
}

func TestCacheManifest(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	s := cacheSeries(3)
	_, err = cache.Put(ctx, s)
	require.NoError(t, err)

	m, err := cache.Manifest(ctx, s.Exchange, s.Symbol, s.Interval)
	require.NoError(t, err)
	assert.Equal(t, "binance", m.Exchange)
	assert.Equal(t, "ETHUSDT", m.Symbol)
	assert.Equal(t, "1h", m.Interval)
	assert.EqualValues(t, 3, m.Rows)
	assert.Equal(t, s.Start.UnixMilli(), m.MinTime)
	assert.Equal(t, s.End.UnixMilli(), m.MaxTime)
	assert.NotEmpty(t, m.Path)
}

func TestCacheRejectsEmptyKey(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)
	defer cache.Close()

	_, err = cache.Range(context.Background(), "", "ETHUSDT", "1h", time.Now().Add(-time.Hour), time.Now())
	assert.Error(t, err)
}
