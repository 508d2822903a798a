package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle 表示一根归一化后的 K 线。
// 数值字段保留交易所返回的十进制精度；CloseTime 仅 Binance 提供，
// KuCoin 数据保持零值。
type Candle struct {
	OpenTime      time.Time       `json:"open_time"`
	CloseTime     time.Time       `json:"close_time,omitempty"`
	Open          decimal.Decimal `json:"open"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Close         decimal.Decimal `json:"close"`
	Volume        decimal.Decimal `json:"volume"`
	QuoteVolume   decimal.Decimal `json:"quote_volume"`
	TakerBuyBase  decimal.Decimal `json:"taker_buy_base,omitempty"`
	TakerBuyQuote decimal.Decimal `json:"taker_buy_quote,omitempty"`
	Trades        int64           `json:"trades,omitempty"`
}

func (c Candle) TimeString() string {
	ts := c.OpenTime
	if ts.IsZero() {
		return "-"
	}
	return ts.UTC().Format("2006-01-02 15:04") + "Z"
}
