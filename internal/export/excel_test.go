package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ekremrn/crypto-excel-export/internal/market"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleSeries(ex market.Exchange, symbol string, n int) market.Series {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]market.Candle, n)
	for i := range candles {
		open := start.Add(time.Duration(i) * 24 * time.Hour)
		candles[i] = market.Candle{
			OpenTime:    open,
			Open:        dec("2285.19"),
			High:        dec("2300"),
			Low:         dec("2270.5"),
			Close:       dec("2290.01"),
			Volume:      dec("1523.7"),
			QuoteVolume: dec("3481234.11"),
		}
		if ex == market.ExchangeBinance {
			candles[i].CloseTime = open.Add(24*time.Hour - time.Millisecond)
			candles[i].Trades = int64(1000 + i)
			candles[i].TakerBuyBase = dec("700.2")
			candles[i].TakerBuyQuote = dec("1600000.5")
		}
	}
	return market.Series{
		Exchange: ex,
		Symbol:   symbol,
		Interval: "1d",
		Start:    start,
		End:      start.Add(time.Duration(n-1) * 24 * time.Hour),
		Candles:  candles,
	}
}

func openWorkbook(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestWorkbookBinanceLayout(t *testing.T) {
	wb := NewWorkbook()
	defer wb.Close()
	require.NoError(t, wb.AddSeries(sampleSeries(market.ExchangeBinance, "ETHUSDT", 2)))

	data, err := wb.Bytes()
	require.NoError(t, err)

	f := openWorkbook(t, data)
	assert.Equal(t, []string{"ETHUSDT_1d"}, f.GetSheetList())

	rows, err := f.GetRows("ETHUSDT_1d")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, binanceHeaders, rows[0])

	assert.Equal(t, "2024-01-01 00:00:00", rows[1][0])
	assert.Equal(t, "2285.19", rows[1][1])
	assert.Equal(t, "2300", rows[1][2])
	assert.Equal(t, "2270.5", rows[1][3])
	assert.Equal(t, "2290.01", rows[1][4])
	assert.Equal(t, "1523.7", rows[1][5])
	assert.Equal(t, "2024-01-01 23:59:59", rows[1][6])
	assert.Equal(t, "3481234.11", rows[1][7])
	assert.Equal(t, "1000", rows[1][8])
	assert.Equal(t, "700.2", rows[1][9])
	assert.Equal(t, "1600000.5", rows[1][10])
	assert.Equal(t, "1001", rows[2][8])
}

func TestWorkbookKuCoinLayout(t *testing.T) {
	wb := NewWorkbook()
	defer wb.Close()
	require.NoError(t, wb.AddSeries(sampleSeries(market.ExchangeKuCoin, "ETH-USDT", 1)))

	data, err := wb.Bytes()
	require.NoError(t, err)

	f := openWorkbook(t, data)
	assert.Equal(t, []string{"ETH-USDT_1d"}, f.GetSheetList())

	rows, err := f.GetRows("ETH-USDT_1d")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, kucoinHeaders, rows[0])
	assert.Equal(t, "2024-01-01 00:00:00", rows[1][0])
	// Amount 列承载基础币成交量，Volume 列承载计价币成交额
	assert.Equal(t, "1523.7", rows[1][5])
	assert.Equal(t, "3481234.11", rows[1][6])
}

func TestWorkbookSheetNameClipped(t *testing.T) {
	wb := NewWorkbook()
	defer wb.Close()
	s := sampleSeries(market.ExchangeKuCoin, "LONGBASENAME-USDT", 1)
	require.NoError(t, wb.AddSeries(s))

	data, err := wb.Bytes()
	require.NoError(t, err)

	f := openWorkbook(t, data)
	// 交易对先截到 15 字符再拼接周期
	assert.Equal(t, []string{"LONGBASENAME-US_1d"}, f.GetSheetList())
}

func TestWorkbookDuplicateSheetNames(t *testing.T) {
	wb := NewWorkbook()
	defer wb.Close()
	require.NoError(t, wb.AddSeries(sampleSeries(market.ExchangeBinance, "ETHUSDT", 1)))
	require.NoError(t, wb.AddSeries(sampleSeries(market.ExchangeBinance, "ETHUSDT", 1)))

	data, err := wb.Bytes()
	require.NoError(t, err)

	f := openWorkbook(t, data)
	assert.Equal(t, []string{"ETHUSDT_1d", "ETHUSDT_1d_2"}, f.GetSheetList())
}

func TestWorkbookNoData(t *testing.T) {
	wb := NewWorkbook()
	defer wb.Close()

	err := wb.AddSeries(market.Series{Exchange: market.ExchangeBinance, Symbol: "ETHUSDT", Interval: "1d"})
	assert.ErrorIs(t, err, ErrNoData)

	_, err = wb.Bytes()
	assert.ErrorIs(t, err, ErrNoData)
}

func TestRenderSkipsEmptySeries(t *testing.T) {
	empty := market.Series{Exchange: market.ExchangeKuCoin, Symbol: "BTC-USDT", Interval: "1h"}

	data, err := Render(empty, sampleSeries(market.ExchangeBinance, "ETHUSDT", 1))
	require.NoError(t, err)
	f := openWorkbook(t, data)
	assert.Equal(t, []string{"ETHUSDT_1d"}, f.GetSheetList())

	_, err = Render(empty)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestFilename(t *testing.T) {
	s := sampleSeries(market.ExchangeBinance, "ETHUSDT", 3)
	assert.Equal(t, "ETHUSDT_1d_20240101_to_20240103.xlsx", Filename(s))
}

func TestPreviewHTML(t *testing.T) {
	html, err := PreviewHTML(sampleSeries(market.ExchangeKuCoin, "ETH-USDT", 2))
	require.NoError(t, err)
	assert.Contains(t, string(html), "echarts")
	assert.Contains(t, string(html), "ETH-USDT 1d (kucoin)")

	_, err = PreviewHTML(market.Series{Symbol: "ETH-USDT", Interval: "1d"})
	assert.ErrorIs(t, err, ErrNoData)
}
