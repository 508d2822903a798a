// Package history 负责把交易所的分页 K 线接口归一化为完整的历史序列。
//
// 两个交易所的翻页方向不同：Binance 自 start 正向推进，KuCoin 自 end
// 逆向回溯。两种实现共享同一套请求校验、进度上报与序列装配逻辑。
package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ekremrn/crypto-excel-export/internal/market"
)

// ErrInvalidInput 表示请求在发起任何网络调用之前即被拒绝。
var ErrInvalidInput = errors.New("invalid fetch request")

// ProgressFunc 接收拉取进度。fraction 单调不减、取值 [0,1]，message 为
// 面向用户的一行说明。回调在拉取 goroutine 上同步执行，耗时操作请自行
// 异步化。
type ProgressFunc func(fraction float64, message string)

// Request 描述一次历史 K 线拉取。Symbol 接受任意写法（大小写、分隔符
// 不敏感），由各交易所的 Fetcher 归一化。区间按开盘时间闭区间解释。
type Request struct {
	Symbol   string
	Interval string
	Start    time.Time
	End      time.Time
}

// Validate 校验请求并解析周期。失败返回包装后的 ErrInvalidInput。
func (r Request) Validate(now time.Time) (market.Interval, error) {
	if strings.TrimSpace(r.Symbol) == "" {
		return market.Interval{}, fmt.Errorf("%w: symbol 不能为空", ErrInvalidInput)
	}
	iv, err := market.ParseInterval(r.Interval)
	if err != nil {
		return market.Interval{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if r.Start.IsZero() || r.End.IsZero() || !r.Start.Before(r.End) {
		return market.Interval{}, fmt.Errorf("%w: start 必须早于 end", ErrInvalidInput)
	}
	if r.Start.After(now) {
		return market.Interval{}, fmt.Errorf("%w: start 不能晚于当前时间", ErrInvalidInput)
	}
	return iv, nil
}

// Fetcher 拉取并归一化 [Start,End] 区间的历史 K 线。
// 返回的 Series 满足：开盘时间严格递增、无重复、全部落在请求区间内。
// 空区间返回空 Series 而不是错误。
type Fetcher interface {
	Fetch(ctx context.Context, req Request, progress ProgressFunc) (market.Series, error)

	Exchange() market.Exchange
}

// reportProgress 统一进度上报：fraction 截断到 [0,1]，消息沿用
// "Fetched data up to YYYY-MM-DD..." 的固定格式。
func reportProgress(progress ProgressFunc, fraction float64, upTo time.Time) {
	if progress == nil {
		return
	}
	if fraction > 1 {
		fraction = 1
	}
	if fraction < 0 {
		fraction = 0
	}
	progress(fraction, fmt.Sprintf("Fetched data up to %s...", upTo.UTC().Format("2006-01-02")))
}
