package config

import (
	"path/filepath"
	"strings"
)

// 默认值常量
const (
	defaultAppLogLevel      = "info"
	defaultAppDataDir       = "data"
	defaultBinanceTimeout   = 15
	defaultKuCoinBaseURL    = "https://api.kucoin.com"
	defaultKuCoinTimeout    = 15
	defaultKuCoinPageDelay  = 300
	defaultFetchMaxRetries  = 3
	defaultFetchBaseDelay   = 1000
	defaultFetchDeadline    = 600
	defaultFetchConcurrent  = 2
	defaultServerAddr       = ":9882"
	defaultExportOutputDir  = "downloads"
	defaultCacheSubdir      = "cache"
	defaultJobDBFile        = "jobs.db"
	defaultCacheEnabled     = true
)

// applyDefaults 为所有子配置应用默认值。缓存路径派生自 app.data_dir，
// 因此 App 的默认值先行。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Binance.applyDefaults(keys)
	c.KuCoin.applyDefaults(keys)
	c.Fetch.applyDefaults(keys)
	c.Cache.applyDefaults(keys, c.App.DataDir)
	c.Server.applyDefaults(keys)
	c.Export.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.data_dir", &a.DataDir, defaultAppDataDir),
	)
}

func (b *BinanceConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "binance.timeout_seconds",
			need:  func() bool { return b.TimeoutSeconds <= 0 },
			apply: func() { b.TimeoutSeconds = defaultBinanceTimeout },
		},
	)
}

func (k *KuCoinConfig) applyDefaults(keys keySet) {
	if k == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("kucoin.base_url", &k.BaseURL, defaultKuCoinBaseURL),
		fieldDefault{
			key:   "kucoin.timeout_seconds",
			need:  func() bool { return k.TimeoutSeconds <= 0 },
			apply: func() { k.TimeoutSeconds = defaultKuCoinTimeout },
		},
		fieldDefault{
			key:   "kucoin.page_delay_ms",
			need:  func() bool { return k.PageDelayMS <= 0 },
			apply: func() { k.PageDelayMS = defaultKuCoinPageDelay },
		},
	)
}

func (f *FetchConfig) applyDefaults(keys keySet) {
	if f == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "fetch.max_retries",
			need:  func() bool { return f.MaxRetries <= 0 },
			apply: func() { f.MaxRetries = defaultFetchMaxRetries },
		},
		fieldDefault{
			key:   "fetch.base_delay_ms",
			need:  func() bool { return f.BaseDelayMS <= 0 },
			apply: func() { f.BaseDelayMS = defaultFetchBaseDelay },
		},
		fieldDefault{
			key:   "fetch.deadline_seconds",
			need:  func() bool { return f.DeadlineSeconds <= 0 },
			apply: func() { f.DeadlineSeconds = defaultFetchDeadline },
		},
		fieldDefault{
			key:   "fetch.max_concurrent",
			need:  func() bool { return f.MaxConcurrent <= 0 },
			apply: func() { f.MaxConcurrent = defaultFetchConcurrent },
		},
	)
}

func (c *CacheConfig) applyDefaults(keys keySet, dataDir string) {
	if c == nil {
		return
	}
	if dataDir == "" {
		dataDir = defaultAppDataDir
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "cache.enabled",
			need:  func() bool { return true },
			apply: func() { c.Enabled = defaultCacheEnabled },
		},
		stringFieldDefault("cache.dir", &c.Dir, filepath.Join(dataDir, defaultCacheSubdir)),
		stringFieldDefault("cache.job_db", &c.JobDB, filepath.Join(dataDir, defaultJobDBFile)),
	)
}

func (s *ServerConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("server.addr", &s.Addr, defaultServerAddr),
	)
}

func (e *ExportConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("export.output_dir", &e.OutputDir, defaultExportOutputDir),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
