package binance

import (
	"strings"
	"time"
)

// Config 描述 Binance 现货客户端。凭据仅透传给 SDK，公共行情接口可留空。
type Config struct {
	APIKey    string
	APISecret string

	RESTBaseURL string
	UseTestnet  bool
	HTTPTimeout time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	out.APIKey = strings.TrimSpace(out.APIKey)
	out.APISecret = strings.TrimSpace(out.APISecret)
	out.RESTBaseURL = strings.TrimSpace(out.RESTBaseURL)
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	return out
}
