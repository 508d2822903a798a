// Package export 把归一化 K 线序列写出为 xlsx 工作簿与 HTML 预览。
package export

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/ekremrn/crypto-excel-export/internal/logger"
	"github.com/ekremrn/crypto-excel-export/internal/market"
	"github.com/ekremrn/crypto-excel-export/internal/pkg/text"
)

// ErrNoData 表示没有任何 K 线可写出。
var ErrNoData = errors.New("no candle data to export")

const (
	defaultSheetName = "Sheet1"
	headerFillColor  = "D7E4BC"
	maxColumnWidth   = 50
	timeColumnWidth  = 20
	maxSheetNameLen  = 31
	maxPairNameLen   = 15
	cellTimeLayout   = "2006-01-02 15:04:05"
)

// 列布局与交易所返回的原始列一一对应：Binance 11 列、KuCoin 7 列。
// KuCoin 的 Amount 是基础币成交量、Volume 是计价币成交额，沿用交易所口径。
var (
	binanceHeaders = []string{
		"Open Time", "Open", "High", "Low", "Close", "Volume",
		"Close Time", "Quote Asset Volume", "Number of Trades",
		"Taker Buy Base Asset Volume", "Taker Buy Quote Asset Volume",
	}
	kucoinHeaders = []string{"Timestamp", "Open", "High", "Low", "Close", "Amount", "Volume"}
)

// Workbook 把序列逐个写入工作表。数值列以十进制原文写入单元格，
// 不经过 float64，精度与交易所返回保持一致。
type Workbook struct {
	file        *excelize.File
	nameCount   map[string]int
	headerStyle int
	sheets      int
}

func NewWorkbook() *Workbook {
	return &Workbook{file: excelize.NewFile(), nameCount: make(map[string]int)}
}

// AddSeries 为序列新建一个工作表并写入表头与数据行。
// 空序列返回 ErrNoData。
func (w *Workbook) AddSeries(s market.Series) error {
	if s.Empty() {
		return fmt.Errorf("%w: %s %s", ErrNoData, s.Symbol, s.Interval)
	}
	name := w.sheetName(s)
	if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("new sheet %s: %w", name, err)
	}

	style, err := w.ensureHeaderStyle()
	if err != nil {
		return err
	}
	headers := headersFor(s.Exchange)
	widths := make([]int, len(headers))
	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(name, cell, h); err != nil {
			return err
		}
		widths[col] = len(h)
	}
	firstCell, _ := excelize.CoordinatesToCellName(1, 1)
	lastCell, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := w.file.SetCellStyle(name, firstCell, lastCell, style); err != nil {
		return err
	}

	timeCols := make([]bool, len(headers))
	for i, c := range s.Candles {
		for col, v := range rowCells(s.Exchange, c) {
			if err := w.setCell(name, col+1, i+2, v); err != nil {
				return err
			}
			if _, ok := v.(time.Time); ok {
				timeCols[col] = true
			}
			if n := len(cellText(v)); n > widths[col] {
				widths[col] = n
			}
		}
	}

	for col := range headers {
		colName, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return err
		}
		// 时间列固定 20，其余按内容自适应
		width := float64(widths[col] + 2)
		if timeCols[col] {
			width = timeColumnWidth
		} else if width > maxColumnWidth {
			width = maxColumnWidth
		}
		if err := w.file.SetColWidth(name, colName, colName, width); err != nil {
			return err
		}
	}

	w.sheets++
	logger.Debugf("[export] 工作表 %s 写入 %d 行", name, len(s.Candles))
	return nil
}

// Bytes 移除预置空表并序列化整个工作簿。尚未写入任何序列时返回
// ErrNoData。
func (w *Workbook) Bytes() ([]byte, error) {
	if w.sheets == 0 {
		return nil, ErrNoData
	}
	if err := w.file.DeleteSheet(defaultSheetName); err != nil {
		return nil, err
	}
	w.file.SetActiveSheet(0)
	buf, err := w.file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (w *Workbook) Close() error {
	return w.file.Close()
}

// Render 把多个序列写入同一工作簿。空序列跳过，全部为空时返回
// ErrNoData。
func Render(series ...market.Series) ([]byte, error) {
	wb := NewWorkbook()
	defer wb.Close()
	for _, s := range series {
		if s.Empty() {
			continue
		}
		if err := wb.AddSeries(s); err != nil {
			return nil, err
		}
	}
	return wb.Bytes()
}

// sheetName 生成工作表名。KuCoin 交易对先截到 15 字符，整体不超过
// xlsx 的 31 字符上限；重名时追加序号后缀。
func (w *Workbook) sheetName(s market.Series) string {
	sym := s.Symbol
	if s.Exchange == market.ExchangeKuCoin {
		sym = text.Clip(sym, maxPairNameLen)
	}
	base := text.Clip(fmt.Sprintf("%s_%s", sym, s.Interval), maxSheetNameLen)
	w.nameCount[base]++
	if n := w.nameCount[base]; n > 1 {
		suffix := fmt.Sprintf("_%d", n)
		base = text.Clip(base, maxSheetNameLen-len(suffix)) + suffix
	}
	return base
}

func (w *Workbook) ensureHeaderStyle() (int, error) {
	if w.headerStyle != 0 {
		return w.headerStyle, nil
	}
	id, err := w.file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFillColor}},
		Border: []excelize.Border{
			{Type: "left", Style: 1, Color: "000000"},
			{Type: "right", Style: 1, Color: "000000"},
			{Type: "top", Style: 1, Color: "000000"},
			{Type: "bottom", Style: 1, Color: "000000"},
		},
	})
	if err != nil {
		return 0, err
	}
	w.headerStyle = id
	return id, nil
}

func (w *Workbook) setCell(sheet string, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	switch val := v.(type) {
	case decimal.Decimal:
		// SetCellDefault 保留原始十进制文本且单元格仍为数值类型
		return w.file.SetCellDefault(sheet, cell, val.String())
	case int64:
		return w.file.SetCellValue(sheet, cell, val)
	default:
		return w.file.SetCellValue(sheet, cell, cellText(v))
	}
}

func headersFor(ex market.Exchange) []string {
	if ex == market.ExchangeKuCoin {
		return kucoinHeaders
	}
	return binanceHeaders
}

func rowCells(ex market.Exchange, c market.Candle) []any {
	if ex == market.ExchangeKuCoin {
		return []any{c.OpenTime, c.Open, c.High, c.Low, c.Close, c.Volume, c.QuoteVolume}
	}
	return []any{
		c.OpenTime, c.Open, c.High, c.Low, c.Close, c.Volume,
		c.CloseTime, c.QuoteVolume, c.Trades, c.TakerBuyBase, c.TakerBuyQuote,
	}
}

func cellText(v any) string {
	switch val := v.(type) {
	case time.Time:
		if val.IsZero() {
			return ""
		}
		return val.UTC().Format(cellTimeLayout)
	case decimal.Decimal:
		return val.String()
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return fmt.Sprint(val)
	}
}
