package history

import (
	"sort"
	"time"

	"github.com/ekremrn/crypto-excel-export/internal/market"
)

// Assemble 把各分页收到的原始 K 线装配为规范序列：按开盘时间去重
// （后到覆盖先到）、过滤到 [start,end] 闭区间、按时间升序排列。
// 输入为空或全部落在区间外时返回空切片。
func Assemble(raw []market.Candle, start, end time.Time) []market.Candle {
	if len(raw) == 0 {
		return nil
	}
	byOpen := make(map[int64]market.Candle, len(raw))
	for _, c := range raw {
		ts := c.OpenTime.UnixMilli()
		if c.OpenTime.Before(start) || c.OpenTime.After(end) {
			continue
		}
		byOpen[ts] = c
	}
	if len(byOpen) == 0 {
		return nil
	}
	out := make([]market.Candle, 0, len(byOpen))
	for _, c := range byOpen {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime.Before(out[j].OpenTime) })
	return out
}
