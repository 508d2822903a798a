package market

import (
	"fmt"
	"strings"
	"time"
)

// Exchange 标识已接入的数据源。
type Exchange string

const (
	ExchangeBinance Exchange = "binance"
	ExchangeKuCoin  Exchange = "kucoin"
)

// ParseExchange 将用户输入归一化为已知交易所。
func ParseExchange(s string) (Exchange, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "binance":
		return ExchangeBinance, nil
	case "kucoin":
		return ExchangeKuCoin, nil
	default:
		return "", fmt.Errorf("不支持的交易所: %s（可选 binance / kucoin）", s)
	}
}

// Series 是一次历史拉取的结果：去重、过滤到请求区间并按开盘时间升序。
// Partial 表示翻页中途被交易所错误截断，Candles 仅覆盖部分区间；
// Truncated 记录截断原因。返回后所有权归调用方。
type Series struct {
	Exchange Exchange  `json:"exchange"`
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`

	Candles []Candle `json:"candles"`

	Partial   bool   `json:"partial"`
	Truncated string `json:"truncated,omitempty"`
}

// Empty 区分「区间内没有数据」与失败：空序列是合法结果。
func (s Series) Empty() bool { return len(s.Candles) == 0 }

func (s Series) Len() int { return len(s.Candles) }

// Range 返回实际覆盖的开盘时间范围；空序列返回零值。
func (s Series) Range() (time.Time, time.Time) {
	if s.Empty() {
		return time.Time{}, time.Time{}
	}
	return s.Candles[0].OpenTime, s.Candles[len(s.Candles)-1].OpenTime
}
