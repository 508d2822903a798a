package history

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/ekremrn/crypto-excel-export/internal/logger"
	"github.com/ekremrn/crypto-excel-export/internal/market"
	"github.com/ekremrn/crypto-excel-export/internal/pkg/symbol"
)

const defaultPageDelay = 300 * time.Millisecond

// KuCoinClient 是逆向回溯所需的最小网关能力。startAt/endAt 为秒级时间戳。
type KuCoinClient interface {
	Klines(ctx context.Context, symbol, interval string, startAt, endAt int64) ([]market.Candle, error)
}

// KuCoinFetcher 自 end 向 start 逆向回溯拉取 KuCoin 历史 K 线。
// 单页大小由交易所决定（最多 1500 根），本端只控制翻页节奏。
// 中途失败不作为错误返回：保留已取得的数据并标记 Partial。
type KuCoinFetcher struct {
	client  KuCoinClient
	limiter *rate.Limiter
}

// NewKuCoinFetcher 构造 KuCoin 拉取器。pageDelay 为相邻分页请求的最小
// 间隔，非正值时取 300ms。
func NewKuCoinFetcher(client KuCoinClient, pageDelay time.Duration) *KuCoinFetcher {
	if pageDelay <= 0 {
		pageDelay = defaultPageDelay
	}
	// 令牌桶容量 1：首页立即放行，后续分页按间隔匀速。
	return &KuCoinFetcher{client: client, limiter: rate.NewLimiter(rate.Every(pageDelay), 1)}
}

// Exchange 返回交易所标识。
func (f *KuCoinFetcher) Exchange() market.Exchange { return market.ExchangeKuCoin }

// Fetch 实现 Fetcher。游标自 end 起步，每轮移动到已见最老 K 线的前
// 一秒，保证不会重复请求同一窗口，也不会越过 start。
func (f *KuCoinFetcher) Fetch(ctx context.Context, req Request, progress ProgressFunc) (market.Series, error) {
	iv, err := req.Validate(time.Now())
	if err != nil {
		return market.Series{}, err
	}
	pair := symbol.KuCoin.ToExchange(req.Symbol)

	series := market.Series{
		Exchange: market.ExchangeKuCoin,
		Symbol:   pair,
		Interval: iv.Key,
		Start:    req.Start,
		End:      req.End,
	}

	startSec := req.Start.Unix()
	endSec := req.End.Unix()
	total := float64(endSec - startSec)

	logger.Infof("[history] kucoin %s %s 拉取区间 %s ~ %s",
		pair, iv.Key, req.Start.UTC().Format(time.RFC3339), req.End.UTC().Format(time.RFC3339))

	var raw []market.Candle
	var oldestSeen time.Time
	reached := false
	cursor := endSec
	for cursor > startSec {
		if err := f.limiter.Wait(ctx); err != nil {
			return market.Series{}, err
		}
		page, err := f.client.Klines(ctx, pair, iv.Token(market.ExchangeKuCoin), startSec, cursor)
		if err != nil {
			if ctx.Err() != nil {
				return market.Series{}, ctx.Err()
			}
			// 首页失败得到空的 Partial 序列，中途失败保留已取得的部分。
			logger.Warnf("[history] kucoin %s %s 分页中断，保留已获取的 %d 根: %v", pair, iv.Key, len(raw), err)
			series.Partial = true
			series.Truncated = err.Error()
			break
		}
		if len(page) == 0 {
			break
		}
		raw = append(raw, page...)

		// 行序通常最新在前，这里不依赖该约定，显式扫描最老一根。
		oldest := page[0].OpenTime
		for _, c := range page[1:] {
			if c.OpenTime.Before(oldest) {
				oldest = c.OpenTime
			}
		}
		if oldestSeen.IsZero() || oldest.Before(oldestSeen) {
			oldestSeen = oldest
		}
		frac := float64(endSec-oldest.Unix()) / total
		if frac >= 1 {
			reached = true
		}
		reportProgress(progress, frac, oldest)
		if !oldest.After(req.Start) {
			break
		}
		cursor = oldest.Unix() - 1
	}

	series.Candles = Assemble(raw, req.Start, req.End)
	// 空页耗尽：交易所历史不足 start，补一次收尾上报，
	// 覆盖范围以实际见到的最老一根为准。
	if !series.Partial && !reached {
		upTo := req.Start
		if !oldestSeen.IsZero() {
			upTo = oldestSeen
		}
		reportProgress(progress, 1, upTo)
	}
	logger.Infof("[history] kucoin %s %s 拉取完成，共 %d 根（partial=%v）", pair, iv.Key, series.Len(), series.Partial)
	return series, nil
}
