package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaultsOnly(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "info", cfg.App.LogLevel)
	require.Equal(t, "data", cfg.App.DataDir)
	require.Equal(t, "https://api.kucoin.com", cfg.KuCoin.BaseURL)
	require.Equal(t, 15, cfg.Binance.TimeoutSeconds)
	require.Equal(t, 300, cfg.KuCoin.PageDelayMS)
	require.Equal(t, 3, cfg.Fetch.MaxRetries)
	require.Equal(t, 1000, cfg.Fetch.BaseDelayMS)
	require.Equal(t, 600, cfg.Fetch.DeadlineSeconds)
	require.Equal(t, 2, cfg.Fetch.MaxConcurrent)
	require.True(t, cfg.Cache.Enabled)
	require.Equal(t, filepath.Join("data", "cache"), cfg.Cache.Dir)
	require.Equal(t, filepath.Join("data", "jobs.db"), cfg.Cache.JobDB)
	require.Equal(t, ":9882", cfg.Server.Addr)
	require.Equal(t, "downloads", cfg.Export.OutputDir)
}

func TestLoadFromFile(t *testing.T) {
	path := writeTempConfig(t, `
app:
  log_level: debug
  data_dir: /tmp/kexport-data
binance:
  api_key: file-key
kucoin:
  page_delay_ms: 50
fetch:
  max_retries: 5
cache:
  enabled: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.App.LogLevel)
	require.Equal(t, "/tmp/kexport-data", cfg.App.DataDir)
	require.Equal(t, "file-key", cfg.Binance.APIKey)
	require.Equal(t, 50, cfg.KuCoin.PageDelayMS)
	require.Equal(t, 5, cfg.Fetch.MaxRetries)
	// 文件里显式写了 false，不能被默认值覆盖回 true。
	require.False(t, cfg.Cache.Enabled)
	// 未显式配置的键仍取默认值，缓存路径派生自自定义 data_dir。
	require.Equal(t, 15, cfg.Binance.TimeoutSeconds)
	require.Equal(t, filepath.Join("/tmp/kexport-data", "cache"), cfg.Cache.Dir)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, `
binance:
  api_key: file-key
`)
	t.Setenv("KEXPORT_BINANCE_API_KEY", "env-key")
	t.Setenv("KEXPORT_KUCOIN_PASSPHRASE", "hunter2")
	t.Setenv("KEXPORT_CACHE_ENABLED", "false")
	t.Setenv("KEXPORT_FETCH_MAX_RETRIES", "4")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "env-key", cfg.Binance.APIKey)
	require.Equal(t, "hunter2", cfg.KuCoin.Passphrase)
	require.False(t, cfg.Cache.Enabled)
	require.Equal(t, 4, cfg.Fetch.MaxRetries)
}

func TestLoadEnvOnlyMode(t *testing.T) {
	t.Setenv("KEXPORT_BINANCE_API_KEY", "only-env")
	t.Setenv("KEXPORT_SERVER_ADDR", ":7001")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "only-env", cfg.Binance.APIKey)
	require.Equal(t, ":7001", cfg.Server.Addr)
	require.Equal(t, "info", cfg.App.LogLevel)
}

func TestLoadInvalidEnvValue(t *testing.T) {
	t.Setenv("KEXPORT_FETCH_MAX_RETRIES", "many")
	_, err := Load("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "KEXPORT_FETCH_MAX_RETRIES")
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantIn  string
	}{
		{
			name: "重试次数越界",
			content: `
fetch:
  max_retries: 99
`,
			wantIn: "fetch.max_retries",
		},
		{
			name: "日志级别非法",
			content: `
app:
  log_level: loud
`,
			wantIn: "app.log_level",
		},
		{
			name: "并发数越界",
			content: `
fetch:
  max_concurrent: 100
`,
			wantIn: "fetch.max_concurrent",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeTempConfig(t, tc.content))
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantIn)
		})
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")
	require.NoError(t, WriteDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "info", cfg.App.LogLevel)
	require.Equal(t, "https://api.kucoin.com", cfg.KuCoin.BaseURL)
	require.True(t, cfg.Cache.Enabled)

	err = WriteDefault(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "already exists")
}

func TestEnvName(t *testing.T) {
	require.Equal(t, "KEXPORT_BINANCE_API_KEY", EnvName("binance.api_key"))
	require.Equal(t, "KEXPORT_APP_LOG_LEVEL", EnvName("app.log_level"))
}
