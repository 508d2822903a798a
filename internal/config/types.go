package config

import (
	"strings"
	"time"
)

// Config 是 kexport 的主配置载体。
type Config struct {
	App     AppConfig     `toml:"app"`
	Binance BinanceConfig `toml:"binance"`
	KuCoin  KuCoinConfig  `toml:"kucoin"`
	Fetch   FetchConfig   `toml:"fetch"`
	Cache   CacheConfig   `toml:"cache"`
	Server  ServerConfig  `toml:"server"`
	Export  ExportConfig  `toml:"export"`
}

type AppConfig struct {
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
	DataDir  string `toml:"data_dir"`
}

// BinanceConfig 描述 Binance 现货行情源。凭据仅透传给 SDK，
// 公共行情接口可留空。
type BinanceConfig struct {
	APIKey         string `toml:"api_key"`
	APISecret      string `toml:"api_secret"`
	BaseURL        string `toml:"base_url"`
	UseTestnet     bool   `toml:"use_testnet"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Timeout 返回单次 REST 请求超时。
func (b BinanceConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// KuCoinConfig 描述 KuCoin 行情源。行情接口是公共接口，凭据仅保存备用。
type KuCoinConfig struct {
	APIKey         string `toml:"api_key"`
	APISecret      string `toml:"api_secret"`
	Passphrase     string `toml:"passphrase"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	PageDelayMS    int    `toml:"page_delay_ms"`
}

func (k KuCoinConfig) Timeout() time.Duration {
	return time.Duration(k.TimeoutSeconds) * time.Second
}

// PageDelay 返回分页之间的最小间隔。
func (k KuCoinConfig) PageDelay() time.Duration {
	return time.Duration(k.PageDelayMS) * time.Millisecond
}

// FetchConfig 控制拉取重试与任务调度。
type FetchConfig struct {
	MaxRetries      int `toml:"max_retries"`
	BaseDelayMS     int `toml:"base_delay_ms"`
	DeadlineSeconds int `toml:"deadline_seconds"`
	RateLimitPerMin int `toml:"rate_limit_per_min"` // 0 表示不限速
	MaxConcurrent   int `toml:"max_concurrent"`
}

func (f FetchConfig) BaseDelay() time.Duration {
	return time.Duration(f.BaseDelayMS) * time.Millisecond
}

// Deadline 返回单个任务的整体拉取期限。
func (f FetchConfig) Deadline() time.Duration {
	return time.Duration(f.DeadlineSeconds) * time.Second
}

// CacheConfig 控制本地 K 线缓存与任务库。
type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
	JobDB   string `toml:"job_db"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type ExportConfig struct {
	OutputDir string `toml:"output_dir"`
}

// keySet 用于追踪配置文件或环境变量中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
