package kucoin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ekremrn/crypto-excel-export/internal/logger"
	"github.com/ekremrn/crypto-excel-export/internal/market"
	"github.com/ekremrn/crypto-excel-export/internal/pkg/convert"
)

const (
	candlesPath = "/api/v1/market/candles"
	successCode = "200000"

	// MaxPageSize 是接口单次返回的上限，由交易所侧强制。
	MaxPageSize = 1500
)

// APIError 表示信封响应码非 200000 的业务错误。
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kucoin api error %s: %s", e.Code, e.Message)
}

// Client 直连 KuCoin 公共行情 REST 接口。构造完成后可并发使用。
type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) *Client {
	final := cfg.withDefaults()
	hc := final.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: final.HTTPTimeout}
	}
	return &Client{cfg: final, http: hc}
}

// Klines 拉取单页 K 线。startAt/endAt 为秒级时间戳（含两端，0 表示不限），
// 接口按最新在前返回，单页最多 MaxPageSize 根；返回顺序保持接口原样。
func (c *Client) Klines(ctx context.Context, symbol, interval string, startAt, endAt int64) ([]market.Candle, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("type", interval)
	if startAt > 0 {
		q.Set("startAt", strconv.FormatInt(startAt, 10))
	}
	if endAt > 0 {
		q.Set("endAt", strconv.FormatInt(endAt, 10))
	}
	endpoint := c.cfg.BaseURL + candlesPath + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	logger.DumpPayload("kucoin", candlesPath, resp.StatusCode, body)

	root := gjson.ParseBytes(body)
	if code := root.Get("code").String(); resp.StatusCode != http.StatusOK || code != successCode {
		apiErr := &APIError{Code: code, Message: root.Get("msg").String()}
		if apiErr.Code == "" {
			apiErr.Code = strconv.Itoa(resp.StatusCode)
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return nil, apiErr
	}

	rows := root.Get("data").Array()
	out := make([]market.Candle, 0, len(rows))
	for i, row := range rows {
		candle, err := convertRow(row)
		if err != nil {
			return nil, fmt.Errorf("kline row %d: %w", i, err)
		}
		out = append(out, candle)
	}
	logger.Debugf("[kucoin] %s %s page [%d,%d] returned %d rows", symbol, interval, startAt, endAt, len(out))
	return out, nil
}

// convertRow 按固定位置映射 7 列：[time, open, close, high, low, amount, turnover]。
// amount 是基础资产成交量，turnover 是计价资产成交额。
func convertRow(row gjson.Result) (market.Candle, error) {
	fields := row.Array()
	if len(fields) < 7 {
		return market.Candle{}, fmt.Errorf("expected 7 fields, got %d", len(fields))
	}
	p := &convert.Parser{}
	ts := p.Int("time", fields[0].String())
	candle := market.Candle{
		Open:        p.Decimal("open", fields[1].String()),
		Close:       p.Decimal("close", fields[2].String()),
		High:        p.Decimal("high", fields[3].String()),
		Low:         p.Decimal("low", fields[4].String()),
		Volume:      p.Decimal("amount", fields[5].String()),
		QuoteVolume: p.Decimal("turnover", fields[6].String()),
	}
	if err := p.Err(); err != nil {
		return market.Candle{}, err
	}
	candle.OpenTime = time.Unix(ts, 0).UTC()
	return candle, nil
}
