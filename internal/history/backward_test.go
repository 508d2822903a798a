package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekremrn/crypto-excel-export/internal/market"
)

type kucoinCall struct {
	symbol   string
	interval string
	startAt  int64
	endAt    int64
}

// kucoinReply 描述 stub 的一次应答；行序按交易所习惯最新在前。
type kucoinReply struct {
	page []market.Candle
	err  error
}

type kucoinStub struct {
	calls  []kucoinCall
	script []kucoinReply
}

func (s *kucoinStub) Klines(ctx context.Context, symbol, interval string, startAt, endAt int64) ([]market.Candle, error) {
	s.calls = append(s.calls, kucoinCall{symbol: symbol, interval: interval, startAt: startAt, endAt: endAt})
	idx := len(s.calls) - 1
	if idx >= len(s.script) {
		return nil, nil
	}
	rep := s.script[idx]
	return rep.page, rep.err
}

func newKuCoinTestFetcher(stub *kucoinStub) *KuCoinFetcher {
	return NewKuCoinFetcher(stub, time.Millisecond)
}

func TestKuCoinFetchPagesBackward(t *testing.T) {
	day1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)
	day3 := day1.Add(48 * time.Hour)

	// 每页一根，倒序回放三天
	stub := &kucoinStub{script: []kucoinReply{
		{page: []market.Candle{candleAt(day3, 3)}},
		{page: []market.Candle{candleAt(day2, 2)}},
		{page: []market.Candle{candleAt(day1, 1)}},
	}}
	f := newKuCoinTestFetcher(stub)

	var fractions []float64
	var messages []string
	series, err := f.Fetch(context.Background(), Request{Symbol: "ethusdt", Interval: "1d", Start: day1, End: day3},
		func(frac float64, msg string) {
			fractions = append(fractions, frac)
			messages = append(messages, msg)
		})
	require.NoError(t, err)

	require.Len(t, stub.calls, 3)
	assert.Equal(t, "ETH-USDT", stub.calls[0].symbol)
	assert.Equal(t, "1day", stub.calls[0].interval)
	for i, call := range stub.calls {
		assert.Equal(t, day1.Unix(), call.startAt)
		assert.Greater(t, call.endAt, call.startAt, "endAt 永远不会越过 start")
		if i > 0 {
			assert.Less(t, call.endAt, stub.calls[i-1].endAt, "游标单调后退")
		}
	}
	// 第二页起游标落在已见最老开盘时间的前一秒
	assert.Equal(t, day3.Unix()-1, stub.calls[1].endAt)
	assert.Equal(t, day2.Unix()-1, stub.calls[2].endAt)

	assert.Equal(t, market.ExchangeKuCoin, series.Exchange)
	assert.Equal(t, "ETH-USDT", series.Symbol)
	assert.False(t, series.Partial)
	require.Equal(t, 3, series.Len())
	assert.Equal(t, day1, series.Candles[0].OpenTime)
	assert.Equal(t, day2, series.Candles[1].OpenTime)
	assert.Equal(t, day3, series.Candles[2].OpenTime)

	// 每页恰好一次上报，不多补
	require.Len(t, fractions, 3)
	assert.Equal(t, []float64{0, 0.5, 1}, fractions)
	assert.Contains(t, messages[0], "Fetched data up to 2024-01-03")
	assert.Contains(t, messages[2], "Fetched data up to 2024-01-01")
}

func TestKuCoinFetchKeepsPartialOnMidPageError(t *testing.T) {
	day1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)
	day3 := day1.Add(48 * time.Hour)

	stub := &kucoinStub{script: []kucoinReply{
		{page: []market.Candle{candleAt(day3, 3), candleAt(day2, 2)}},
		{err: errors.New("kucoin api error 429000: Too Many Requests")},
	}}
	f := newKuCoinTestFetcher(stub)

	series, err := f.Fetch(context.Background(), Request{Symbol: "ETH-USDT", Interval: "1d", Start: day1, End: day3}, nil)
	require.NoError(t, err, "中途失败不作为错误返回")

	assert.True(t, series.Partial)
	assert.Contains(t, series.Truncated, "429000")
	require.Equal(t, 2, series.Len())
	assert.Equal(t, day2, series.Candles[0].OpenTime)
	assert.Equal(t, day3, series.Candles[1].OpenTime)
	assert.Len(t, stub.calls, 2)
}

func TestKuCoinFetchFirstPageErrorYieldsEmptyPartial(t *testing.T) {
	day1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	stub := &kucoinStub{script: []kucoinReply{{err: errors.New("kucoin api error 500000: boom")}}}
	f := newKuCoinTestFetcher(stub)

	series, err := f.Fetch(context.Background(), Request{Symbol: "BTC-USDT", Interval: "1h", Start: day1, End: day1.Add(6 * time.Hour)}, nil)
	require.NoError(t, err)
	assert.True(t, series.Partial)
	assert.True(t, series.Empty())
	assert.NotEmpty(t, series.Truncated)
}

func TestKuCoinFetchHistoryExhaustedAboveStart(t *testing.T) {
	day1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)
	day3 := day1.Add(48 * time.Hour)

	// 交易所历史只到 day2，第二页为空
	stub := &kucoinStub{script: []kucoinReply{
		{page: []market.Candle{candleAt(day3, 3), candleAt(day2, 2)}},
		{page: nil},
	}}
	f := newKuCoinTestFetcher(stub)

	var fractions []float64
	var messages []string
	series, err := f.Fetch(context.Background(), Request{Symbol: "ETH-USDT", Interval: "1d", Start: day1, End: day3},
		func(frac float64, msg string) {
			fractions = append(fractions, frac)
			messages = append(messages, msg)
		})
	require.NoError(t, err)
	assert.False(t, series.Partial)
	require.Equal(t, 2, series.Len())

	// 有效页一次上报，空页耗尽后补一次收尾，覆盖范围按已见最老一根
	require.Len(t, fractions, 2)
	assert.Equal(t, 0.5, fractions[0])
	assert.Equal(t, 1.0, fractions[1])
	assert.Contains(t, messages[1], "Fetched data up to 2024-01-02")
}

func TestKuCoinFetchEmptyFirstPage(t *testing.T) {
	day1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	stub := &kucoinStub{script: []kucoinReply{{page: nil}}}
	f := newKuCoinTestFetcher(stub)

	var last float64
	series, err := f.Fetch(context.Background(), Request{Symbol: "BTC-USDT", Interval: "1h", Start: day1, End: day1.Add(6 * time.Hour)},
		func(frac float64, _ string) { last = frac })
	require.NoError(t, err)
	assert.True(t, series.Empty())
	assert.False(t, series.Partial)
	assert.Len(t, stub.calls, 1)
	assert.Equal(t, 1.0, last)
}

func TestKuCoinFetchInvalidInputSkipsNetwork(t *testing.T) {
	day1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	stub := &kucoinStub{}
	f := newKuCoinTestFetcher(stub)

	_, err := f.Fetch(context.Background(), Request{Symbol: "BTC-USDT", Interval: "2d", Start: day1, End: day1.Add(time.Hour)}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, stub.calls)
}

func TestKuCoinFetchContextCancelled(t *testing.T) {
	day1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	stub := &kucoinStub{script: []kucoinReply{{page: []market.Candle{candleAt(day1, 1)}}}}
	f := newKuCoinTestFetcher(stub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, Request{Symbol: "BTC-USDT", Interval: "1d", Start: day1, End: day1.Add(48 * time.Hour)}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, stub.calls, "取消后不再发起请求")
}
