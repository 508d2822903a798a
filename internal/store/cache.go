// Package store 维护本地 K 线缓存。每个 exchange/symbol/interval 组合
// 对应一个独立的 sqlite 文件，数值列以十进制原文存储。
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ekremrn/crypto-excel-export/internal/market"
	"github.com/ekremrn/crypto-excel-export/internal/pkg/convert"
)

// Manifest 记录单个缓存文件的统计信息。
type Manifest struct {
	Exchange   string `json:"exchange"`
	Symbol     string `json:"symbol"`
	Interval   string `json:"interval"`
	MinTime    int64  `json:"min_time"`
	MaxTime    int64  `json:"max_time"`
	Rows       int64  `json:"rows"`
	LastSyncAt int64  `json:"last_sync_at"`
	Path       string `json:"path"`
}

type Cache struct {
	root string

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

func NewCache(root string) (*Cache, error) {
	if root == "" {
		return nil, fmt.Errorf("缓存目录不能为空")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Cache{root: root, dbs: make(map[string]*sql.DB)}, nil
}

func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for k, db := range c.dbs {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.dbs, k)
	}
	return firstErr
}

func (c *Cache) db(ex market.Exchange, symbol, interval string) (*sql.DB, string, error) {
	if ex == "" || symbol == "" || interval == "" {
		return nil, "", fmt.Errorf("exchange/symbol/interval 不能为空")
	}
	key := string(ex) + "@" + strings.ToUpper(symbol) + "@" + strings.ToLower(interval)
	c.mu.Lock()
	defer c.mu.Unlock()
	if db, ok := c.dbs[key]; ok && db != nil {
		return db, c.dbPath(ex, symbol, interval), nil
	}
	path := c.dbPath(ex, symbol, interval)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, "", err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, "", err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db, ex, symbol, interval); err != nil {
		_ = db.Close()
		return nil, "", err
	}
	c.dbs[key] = db
	return db, path, nil
}

func (c *Cache) dbPath(ex market.Exchange, symbol, interval string) string {
	dir := filepath.Join(c.root, string(ex), strings.ToUpper(symbol))
	return filepath.Join(dir, strings.ToLower(interval)+".db")
}

// Put 批量写入序列中的 K 线（重复 open_time 将被覆盖），返回写入行数。
func (c *Cache) Put(ctx context.Context, s market.Series) (int, error) {
	if s.Empty() {
		return 0, nil
	}
	db, _, err := c.db(s.Exchange, s.Symbol, s.Interval)
	if err != nil {
		return 0, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (open_time, close_time, open, high, low, close, volume, quote_volume, taker_buy_base, taker_buy_quote, trades)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(open_time) DO UPDATE SET
		    close_time=excluded.close_time,
		    open=excluded.open,
		    high=excluded.high,
		    low=excluded.low,
		    close=excluded.close,
		    volume=excluded.volume,
		    quote_volume=excluded.quote_volume,
		    taker_buy_base=excluded.taker_buy_base,
		    taker_buy_quote=excluded.taker_buy_quote,
		    trades=excluded.trades`)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()
	count := 0
	for _, k := range s.Candles {
		closeMs := int64(0)
		if !k.CloseTime.IsZero() {
			closeMs = k.CloseTime.UnixMilli()
		}
		if _, err := stmt.ExecContext(ctx,
			k.OpenTime.UnixMilli(), closeMs,
			k.Open.String(), k.High.String(), k.Low.String(), k.Close.String(),
			k.Volume.String(), k.QuoteVolume.String(),
			k.TakerBuyBase.String(), k.TakerBuyQuote.String(), k.Trades); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		count++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	if err := c.refreshManifest(ctx, db); err != nil {
		return count, err
	}
	return count, nil
}

// Range 返回开盘时间落在 [start,end] 的缓存 K 线，按时间升序。
func (c *Cache) Range(ctx context.Context, ex market.Exchange, symbol, interval string, start, end time.Time) ([]market.Candle, error) {
	db, _, err := c.db(ex, symbol, interval)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT open_time, close_time, open, high, low, close, volume, quote_volume, taker_buy_base, taker_buy_quote, trades
		FROM candles
		WHERE open_time BETWEEN ? AND ?
		ORDER BY open_time ASC`, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []market.Candle
	for rows.Next() {
		k, err := scanCandle(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, k)
	}
	return list, rows.Err()
}

// CountRange 统计区间内已缓存的 K 线根数。
func (c *Cache) CountRange(ctx context.Context, ex market.Exchange, symbol, interval string, start, end time.Time) (int64, error) {
	db, _, err := c.db(ex, symbol, interval)
	if err != nil {
		return 0, err
	}
	row := db.QueryRowContext(ctx, `SELECT COUNT(1) FROM candles WHERE open_time BETWEEN ? AND ?`,
		start.UnixMilli(), end.UnixMilli())
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (c *Cache) Manifest(ctx context.Context, ex market.Exchange, symbol, interval string) (Manifest, error) {
	db, path, err := c.db(ex, symbol, interval)
	if err != nil {
		return Manifest{}, err
	}
	row := db.QueryRowContext(ctx, `SELECT exchange,symbol,interval,min_time,max_time,rows,last_sync_at FROM manifest WHERE id=1`)
	var m Manifest
	if err := row.Scan(&m.Exchange, &m.Symbol, &m.Interval, &m.MinTime, &m.MaxTime, &m.Rows, &m.LastSyncAt); err != nil {
		return Manifest{}, err
	}
	m.Path = path
	return m, nil
}

func (c *Cache) refreshManifest(ctx context.Context, db *sql.DB) error {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `
		UPDATE manifest
		SET min_time = (SELECT COALESCE(MIN(open_time), 0) FROM candles),
		    max_time = (SELECT COALESCE(MAX(open_time), 0) FROM candles),
		    rows = (SELECT COUNT(1) FROM candles),
		    last_sync_at = ?
		WHERE id = 1`, now)
	return err
}

func scanCandle(rows *sql.Rows) (market.Candle, error) {
	var (
		openMs, closeMs, trades                                        int64
		openPx, highPx, lowPx, closePx, vol, quote, takerBs, takerQt string
	)
	if err := rows.Scan(&openMs, &closeMs, &openPx, &highPx, &lowPx, &closePx, &vol, &quote, &takerBs, &takerQt, &trades); err != nil {
		return market.Candle{}, err
	}
	var p convert.Parser
	k := market.Candle{
		OpenTime:      time.UnixMilli(openMs).UTC(),
		Open:          p.Decimal("open", openPx),
		High:          p.Decimal("high", highPx),
		Low:           p.Decimal("low", lowPx),
		Close:         p.Decimal("close", closePx),
		Volume:        p.Decimal("volume", vol),
		QuoteVolume:   p.Decimal("quote_volume", quote),
		TakerBuyBase:  p.Decimal("taker_buy_base", takerBs),
		TakerBuyQuote: p.Decimal("taker_buy_quote", takerQt),
		Trades:        trades,
	}
	if closeMs > 0 {
		k.CloseTime = time.UnixMilli(closeMs).UTC()
	}
	if err := p.Err(); err != nil {
		return market.Candle{}, err
	}
	return k, nil
}

func ensureSchema(db *sql.DB, ex market.Exchange, symbol, interval string) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS candles (
			open_time       INTEGER PRIMARY KEY,
			close_time      INTEGER NOT NULL DEFAULT 0,
			open            TEXT NOT NULL,
			high            TEXT NOT NULL,
			low             TEXT NOT NULL,
			close           TEXT NOT NULL,
			volume          TEXT NOT NULL,
			quote_volume    TEXT NOT NULL DEFAULT '0',
			taker_buy_base  TEXT NOT NULL DEFAULT '0',
			taker_buy_quote TEXT NOT NULL DEFAULT '0',
			trades          INTEGER DEFAULT 0,
			inserted_at     INTEGER NOT NULL DEFAULT (strftime('%s','now') * 1000)
		);`,
		`CREATE TABLE IF NOT EXISTS manifest (
			id INTEGER PRIMARY KEY CHECK (id=1),
			exchange TEXT NOT NULL,
			symbol TEXT NOT NULL,
			interval TEXT NOT NULL,
			min_time INTEGER,
			max_time INTEGER,
			rows INTEGER DEFAULT 0,
			last_sync_at INTEGER
		);`,
		`INSERT INTO manifest (id, exchange, symbol, interval) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET exchange=excluded.exchange, symbol=excluded.symbol, interval=excluded.interval;`,
	}
	for i, stmt := range stmts {
		var err error
		if i == len(stmts)-1 {
			_, err = db.Exec(stmt, string(ex), strings.ToUpper(symbol), strings.ToLower(interval))
		} else {
			_, err = db.Exec(stmt)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
