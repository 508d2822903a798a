package binance

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/adshao/go-binance/v2"

	"github.com/ekremrn/crypto-excel-export/internal/logger"
	"github.com/ekremrn/crypto-excel-export/internal/market"
	"github.com/ekremrn/crypto-excel-export/internal/pkg/convert"
	symbolpkg "github.com/ekremrn/crypto-excel-export/internal/pkg/symbol"
)

// 现货 klines 接口单页上限。
const maxPageLimit = 1000

// Client 基于 go-binance SDK 封装现货历史 K 线拉取。
// 构造完成后可并发使用。
type Client struct {
	cfg Config
	api *binance.Client
}

func New(cfg Config) *Client {
	final := cfg.withDefaults()
	if final.UseTestnet {
		binance.UseTestnet = true
	}
	api := binance.NewClient(final.APIKey, final.APISecret)
	if final.RESTBaseURL != "" {
		api.BaseURL = final.RESTBaseURL
	}
	api.HTTPClient = &http.Client{Timeout: final.HTTPTimeout}
	return &Client{cfg: final, api: api}
}

// HistoricalKlines 自 start 正向翻页拉取 [start,end] 内的全部 K 线。
// 游标取上一页最后一根的开盘时间 +1ms；不足一页即认为数据取尽。
// onPage 在每页转换完成后同步回调，last 为该页最后一根的开盘时间。
func (c *Client) HistoricalKlines(ctx context.Context, symbol, interval string, start, end time.Time, onPage func(page []market.Candle, last time.Time)) ([]market.Candle, error) {
	exSymbol := symbolpkg.Binance.ToExchange(symbol)
	if exSymbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	startMs := start.UnixMilli()
	endMs := end.UnixMilli()

	var out []market.Candle
	for startMs <= endMs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		kls, err := c.api.NewKlinesService().
			Symbol(exSymbol).
			Interval(interval).
			StartTime(startMs).
			EndTime(endMs).
			Limit(maxPageLimit).
			Do(ctx)
		if err != nil {
			return nil, err
		}
		if len(kls) == 0 {
			break
		}
		page := make([]market.Candle, 0, len(kls))
		for _, kl := range kls {
			if kl == nil {
				continue
			}
			candle, err := convertKline(kl)
			if err != nil {
				return nil, fmt.Errorf("kline at %d: %w", kl.OpenTime, err)
			}
			page = append(page, candle)
		}
		out = append(out, page...)
		last := kls[len(kls)-1].OpenTime
		if onPage != nil {
			onPage(page, time.UnixMilli(last).UTC())
		}
		if len(kls) < maxPageLimit {
			break
		}
		startMs = last + 1
	}
	logger.Debugf("[binance] %s %s fetched %d candles", exSymbol, interval, len(out))
	return out, nil
}

// convertKline 按固定位置映射 12 列 K 线，忽略最后一列占位字段
// （SDK 已丢弃）。数值保持十进制精度。
func convertKline(kl *binance.Kline) (market.Candle, error) {
	p := &convert.Parser{}
	candle := market.Candle{
		OpenTime:      time.UnixMilli(kl.OpenTime).UTC(),
		CloseTime:     time.UnixMilli(kl.CloseTime).UTC(),
		Open:          p.Decimal("open", kl.Open),
		High:          p.Decimal("high", kl.High),
		Low:           p.Decimal("low", kl.Low),
		Close:         p.Decimal("close", kl.Close),
		Volume:        p.Decimal("volume", kl.Volume),
		QuoteVolume:   p.Decimal("quote_volume", kl.QuoteAssetVolume),
		TakerBuyBase:  p.Decimal("taker_buy_base", kl.TakerBuyBaseAssetVolume),
		TakerBuyQuote: p.Decimal("taker_buy_quote", kl.TakerBuyQuoteAssetVolume),
		Trades:        kl.TradeNum,
	}
	if err := p.Err(); err != nil {
		return market.Candle{}, err
	}
	return candle, nil
}
