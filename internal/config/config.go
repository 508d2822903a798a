package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix 是环境变量覆盖的统一前缀，键路径 a.b 对应 KEXPORT_A_B。
const EnvPrefix = "KEXPORT"

// Load 读取 YAML 配置并应用环境变量覆盖、默认值与校验。
// path 为空时进入纯环境变量模式，全部键取默认值或 KEXPORT_* 覆盖。
func Load(path string) (*Config, error) {
	var cfg Config
	setKeys := make(keySet)
	if strings.TrimSpace(path) != "" {
		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
		}
		if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
			dc.TagName = "toml"
			dc.WeaklyTypedInput = true
		}); err != nil {
			return nil, fmt.Errorf("parsing config failed: %w", err)
		}
		collectSettingsKeys(v.AllSettings(), setKeys)
	}
	if err := applyEnv(&cfg, setKeys); err != nil {
		return nil, err
	}
	cfg.applyDefaults(setKeys)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envOverride 把单个环境变量绑定到配置字段。
type envOverride struct {
	key string
	set func(string) error
}

func stringEnv(key string, target *string) envOverride {
	return envOverride{key: key, set: func(v string) error {
		*target = v
		return nil
	}}
}

func boolEnv(key string, target *bool) envOverride {
	return envOverride{key: key, set: func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*target = b
		return nil
	}}
}

func intEnv(key string, target *int) envOverride {
	return envOverride{key: key, set: func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*target = n
		return nil
	}}
}

func (c *Config) envOverrides() []envOverride {
	return []envOverride{
		stringEnv("app.log_level", &c.App.LogLevel),
		stringEnv("app.log_path", &c.App.LogPath),
		stringEnv("app.data_dir", &c.App.DataDir),
		stringEnv("binance.api_key", &c.Binance.APIKey),
		stringEnv("binance.api_secret", &c.Binance.APISecret),
		stringEnv("binance.base_url", &c.Binance.BaseURL),
		boolEnv("binance.use_testnet", &c.Binance.UseTestnet),
		intEnv("binance.timeout_seconds", &c.Binance.TimeoutSeconds),
		stringEnv("kucoin.api_key", &c.KuCoin.APIKey),
		stringEnv("kucoin.api_secret", &c.KuCoin.APISecret),
		stringEnv("kucoin.passphrase", &c.KuCoin.Passphrase),
		stringEnv("kucoin.base_url", &c.KuCoin.BaseURL),
		intEnv("kucoin.timeout_seconds", &c.KuCoin.TimeoutSeconds),
		intEnv("kucoin.page_delay_ms", &c.KuCoin.PageDelayMS),
		intEnv("fetch.max_retries", &c.Fetch.MaxRetries),
		intEnv("fetch.base_delay_ms", &c.Fetch.BaseDelayMS),
		intEnv("fetch.deadline_seconds", &c.Fetch.DeadlineSeconds),
		intEnv("fetch.rate_limit_per_min", &c.Fetch.RateLimitPerMin),
		intEnv("fetch.max_concurrent", &c.Fetch.MaxConcurrent),
		boolEnv("cache.enabled", &c.Cache.Enabled),
		stringEnv("cache.dir", &c.Cache.Dir),
		stringEnv("cache.job_db", &c.Cache.JobDB),
		stringEnv("server.addr", &c.Server.Addr),
		stringEnv("export.output_dir", &c.Export.OutputDir),
	}
}

// EnvName 返回键路径对应的环境变量名，如 binance.api_key -> KEXPORT_BINANCE_API_KEY。
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// applyEnv 用环境变量覆盖配置，覆盖过的键会被标记为显式设置。
func applyEnv(cfg *Config, keys keySet) error {
	for _, ov := range cfg.envOverrides() {
		raw, ok := os.LookupEnv(EnvName(ov.key))
		if !ok {
			continue
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if err := ov.set(raw); err != nil {
			return fmt.Errorf("invalid value for %s: %w", EnvName(ov.key), err)
		}
		keys.mark(ov.key)
	}
	return nil
}

func collectSettingsKeys(settings map[string]any, dest keySet) {
	if dest == nil || len(settings) == 0 {
		return
	}
	flattenConfigKeys("", settings, dest)
}

func flattenConfigKeys(prefix string, node any, dest keySet) {
	switch val := node.(type) {
	case map[string]any:
		for k, v := range val {
			next := strings.ToLower(strings.TrimSpace(k))
			if next == "" {
				continue
			}
			if prefix != "" {
				next = prefix + "." + next
			}
			flattenConfigKeys(next, v, dest)
		}
	case map[interface{}]interface{}:
		for k, v := range val {
			keyStr, ok := k.(string)
			if !ok {
				continue
			}
			next := strings.ToLower(strings.TrimSpace(keyStr))
			if next == "" {
				continue
			}
			if prefix != "" {
				next = prefix + "." + next
			}
			flattenConfigKeys(next, v, dest)
		}
	case []any:
		if prefix != "" {
			dest.mark(prefix)
		}
		for _, item := range val {
			flattenConfigKeys(prefix, item, dest)
		}
	default:
		if prefix != "" {
			dest.mark(prefix)
		}
	}
}
