package history

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/adshao/go-binance/v2/common"

	"github.com/ekremrn/crypto-excel-export/internal/logger"
	"github.com/ekremrn/crypto-excel-export/internal/market"
	"github.com/ekremrn/crypto-excel-export/internal/pkg/retry"
	"github.com/ekremrn/crypto-excel-export/internal/pkg/symbol"
)

// BinanceClient 是正向翻页所需的最小网关能力。
type BinanceClient interface {
	HistoricalKlines(ctx context.Context, symbol, interval string, start, end time.Time, onPage func(page []market.Candle, last time.Time)) ([]market.Candle, error)
}

// BinanceFetcher 自 start 正向推进拉取 Binance 历史 K 线。
// 整轮拉取作为一个重试单元：任一页失败即从头重放。
type BinanceFetcher struct {
	client BinanceClient
	policy retry.Policy
}

// NewBinanceFetcher 构造 Binance 拉取器。policy 未指定分类器时使用
// binanceRetryable。
func NewBinanceFetcher(client BinanceClient, policy retry.Policy) *BinanceFetcher {
	if policy.Retryable == nil {
		policy.Retryable = binanceRetryable
	}
	return &BinanceFetcher{client: client, policy: policy}
}

// Exchange 返回交易所标识。
func (f *BinanceFetcher) Exchange() market.Exchange { return market.ExchangeBinance }

// Fetch 实现 Fetcher。请求校验失败时不发起任何网络调用。
func (f *BinanceFetcher) Fetch(ctx context.Context, req Request, progress ProgressFunc) (market.Series, error) {
	iv, err := req.Validate(time.Now())
	if err != nil {
		return market.Series{}, err
	}
	sym := symbol.Binance.ToExchange(req.Symbol)
	if sym == "" {
		return market.Series{}, fmt.Errorf("%w: 无法识别的交易对 %q", ErrInvalidInput, req.Symbol)
	}

	total := float64(req.End.Sub(req.Start))
	// 重试会从头重放分页，进度只进不退。
	var best float64
	onPage := func(page []market.Candle, last time.Time) {
		frac := float64(last.Sub(req.Start)) / total
		if frac > best {
			best = frac
		}
		// 末页可能带出越界 K 线，水位不超过 end
		if last.After(req.End) {
			last = req.End
		}
		reportProgress(progress, best, last)
	}

	logger.Infof("[history] binance %s %s 拉取区间 %s ~ %s",
		sym, iv.Key, req.Start.UTC().Format(time.RFC3339), req.End.UTC().Format(time.RFC3339))

	raw, err := retry.Do(ctx, f.policy, func() ([]market.Candle, error) {
		return f.client.HistoricalKlines(ctx, sym, iv.Token(market.ExchangeBinance), req.Start, req.End, onPage)
	})
	if err != nil {
		return market.Series{}, fmt.Errorf("binance %s %s: %w", sym, iv.Key, err)
	}

	series := market.Series{
		Exchange: market.ExchangeBinance,
		Symbol:   sym,
		Interval: iv.Key,
		Start:    req.Start,
		End:      req.End,
		Candles:  Assemble(raw, req.Start, req.End),
	}
	// 末根开盘时间通常早于 end，分页回调到不了 1.0，这里补一次收尾。
	if best < 1 {
		reportProgress(progress, 1, req.End)
	}
	logger.Infof("[history] binance %s %s 拉取完成，共 %d 根", sym, iv.Key, series.Len())
	return series, nil
}

// binanceRetryable 判定整轮拉取是否值得重试。网络错误与交易所 API
// 错误均视为可重试；上下文取消和解码错误直接失败。
func binanceRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
