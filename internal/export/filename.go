package export

import (
	"fmt"

	"github.com/ekremrn/crypto-excel-export/internal/market"
)

// Filename 给出序列的导出文件名：
// {symbol}_{interval}_{YYYYMMDD}_to_{YYYYMMDD}.xlsx，日期按 UTC。
func Filename(s market.Series) string {
	return fmt.Sprintf("%s_%s_%s_to_%s.xlsx",
		s.Symbol, s.Interval,
		s.Start.UTC().Format("20060102"),
		s.End.UTC().Format("20060102"))
}
