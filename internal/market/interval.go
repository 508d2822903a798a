package market

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Interval 描述一个受支持的 K 线周期：规范 key、时长以及各交易所的
// 接口参数形式（Binance 用 "1d"，KuCoin 用 "1day"）。
type Interval struct {
	Key      string
	Duration time.Duration
	Binance  string
	KuCoin   string
}

var supportedIntervals = map[string]Interval{
	"5m":  {Key: "5m", Duration: 5 * time.Minute, Binance: "5m", KuCoin: "5min"},
	"15m": {Key: "15m", Duration: 15 * time.Minute, Binance: "15m", KuCoin: "15min"},
	"30m": {Key: "30m", Duration: 30 * time.Minute, Binance: "30m", KuCoin: "30min"},
	"1h":  {Key: "1h", Duration: time.Hour, Binance: "1h", KuCoin: "1hour"},
	"4h":  {Key: "4h", Duration: 4 * time.Hour, Binance: "4h", KuCoin: "4hour"},
	"1d":  {Key: "1d", Duration: 24 * time.Hour, Binance: "1d", KuCoin: "1day"},
	"1w":  {Key: "1w", Duration: 7 * 24 * time.Hour, Binance: "1w", KuCoin: "1week"},
}

// ParseInterval 返回标准化周期定义。
func ParseInterval(input string) (Interval, error) {
	key := strings.ToLower(strings.TrimSpace(input))
	iv, ok := supportedIntervals[key]
	if !ok {
		return Interval{}, fmt.Errorf("不支持的周期: %q（可选 %s）", input, strings.Join(SupportedIntervals(), ", "))
	}
	return iv, nil
}

// SupportedIntervals 返回所有支持的 key（按时长升序）。
func SupportedIntervals() []string {
	keys := make([]string, 0, len(supportedIntervals))
	for k := range supportedIntervals {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return supportedIntervals[keys[i]].Duration < supportedIntervals[keys[j]].Duration
	})
	return keys
}

// Token 返回指定交易所的接口参数形式。
func (iv Interval) Token(ex Exchange) string {
	switch ex {
	case ExchangeKuCoin:
		return iv.KuCoin
	default:
		return iv.Binance
	}
}

func (iv Interval) millis() int64 {
	return iv.Duration.Milliseconds()
}

func alignDown(ts, step int64) int64 {
	if step <= 0 {
		return ts
	}
	rem := ts % step
	if rem < 0 {
		rem += step
	}
	return ts - rem
}

// AlignRange 将区间对齐到周期网格（毫秒时间戳向下取整），保证 start<=end。
func (iv Interval) AlignRange(start, end time.Time) (time.Time, time.Time) {
	if end.Before(start) {
		start, end = end, start
	}
	step := iv.millis()
	alStart := alignDown(start.UnixMilli(), step)
	alEnd := alignDown(end.UnixMilli(), step)
	if alEnd < alStart {
		alEnd = alStart
	}
	return time.UnixMilli(alStart).UTC(), time.UnixMilli(alEnd).UTC()
}

// ExpectedCandles 计算 start~end（含）区间理论上应有的 K 线数量。
// 交易所可能存在缺口，实际数量只会小于等于该值。
func (iv Interval) ExpectedCandles(start, end time.Time) int64 {
	if end.Before(start) {
		return 0
	}
	step := iv.millis()
	if step == 0 {
		return 0
	}
	return ((end.UnixMilli() - start.UnixMilli()) / step) + 1
}
