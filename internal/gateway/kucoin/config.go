package kucoin

import (
	"net/http"
	"strings"
	"time"
)

// Config 描述 KuCoin REST 客户端。行情接口是公共接口，凭据仅保存
// 备用（私有接口签名不在本工具范围内）。
type Config struct {
	APIKey     string
	APISecret  string
	Passphrase string

	BaseURL     string
	HTTPTimeout time.Duration

	// HTTPClient 非空时替换默认客户端（测试/录制回放注入用）。
	HTTPClient *http.Client
}

func (c *Config) withDefaults() Config {
	out := *c
	out.APIKey = strings.TrimSpace(out.APIKey)
	out.APISecret = strings.TrimSpace(out.APISecret)
	out.Passphrase = strings.TrimSpace(out.Passphrase)
	out.BaseURL = strings.TrimRight(strings.TrimSpace(out.BaseURL), "/")
	if out.BaseURL == "" {
		out.BaseURL = "https://api.kucoin.com"
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	return out
}
