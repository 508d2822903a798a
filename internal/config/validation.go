package config

import (
	"fmt"
	"strings"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Binance.validate(); err != nil {
		return err
	}
	if err := c.KuCoin.validate(); err != nil {
		return err
	}
	if err := c.Fetch.validate(); err != nil {
		return err
	}
	if err := c.Cache.validate(); err != nil {
		return err
	}
	if err := c.Server.validate(); err != nil {
		return err
	}
	if err := c.Export.validate(); err != nil {
		return err
	}
	return nil
}

func (a *AppConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(a.LogLevel)) {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("app.log_level must be one of debug/info/warn/error, got %q", a.LogLevel)
	}
}

func (b *BinanceConfig) validate() error {
	if b.TimeoutSeconds <= 0 {
		return fmt.Errorf("binance.timeout_seconds must be > 0")
	}
	return nil
}

func (k *KuCoinConfig) validate() error {
	if strings.TrimSpace(k.BaseURL) == "" {
		return fmt.Errorf("kucoin.base_url cannot be empty")
	}
	if k.TimeoutSeconds <= 0 {
		return fmt.Errorf("kucoin.timeout_seconds must be > 0")
	}
	if k.PageDelayMS < 0 {
		return fmt.Errorf("kucoin.page_delay_ms must be >= 0")
	}
	return nil
}

func (f *FetchConfig) validate() error {
	if f.MaxRetries < 1 || f.MaxRetries > 10 {
		return fmt.Errorf("fetch.max_retries must be in [1,10]")
	}
	if f.BaseDelayMS <= 0 {
		return fmt.Errorf("fetch.base_delay_ms must be > 0")
	}
	if f.DeadlineSeconds <= 0 {
		return fmt.Errorf("fetch.deadline_seconds must be > 0")
	}
	if f.RateLimitPerMin < 0 {
		return fmt.Errorf("fetch.rate_limit_per_min must be >= 0")
	}
	if f.MaxConcurrent < 1 || f.MaxConcurrent > 16 {
		return fmt.Errorf("fetch.max_concurrent must be in [1,16]")
	}
	return nil
}

func (c *CacheConfig) validate() error {
	if !c.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Dir) == "" {
		return fmt.Errorf("cache.dir cannot be empty when cache is enabled")
	}
	if strings.TrimSpace(c.JobDB) == "" {
		return fmt.Errorf("cache.job_db cannot be empty when cache is enabled")
	}
	return nil
}

func (s *ServerConfig) validate() error {
	if strings.TrimSpace(s.Addr) == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}
	return nil
}

func (e *ExportConfig) validate() error {
	if strings.TrimSpace(e.OutputDir) == "" {
		return fmt.Errorf("export.output_dir cannot be empty")
	}
	return nil
}
