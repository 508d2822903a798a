package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultYAML 是 -init-config 写出的带注释默认配置，键集合与 types.go 保持一致。
const DefaultYAML = `# kexport 默认配置。
# 所有键都可以用 KEXPORT_<SECTION>_<KEY> 环境变量覆盖，
# 例如 KEXPORT_BINANCE_API_KEY、KEXPORT_SERVER_ADDR。

app:
  log_level: info # debug / info / warn / error
  # log_path: data/logs/kexport.log   # 留空只输出到 stdout
  data_dir: data

binance:
  # 公共行情接口无需凭据，留空即可。
  api_key: ""
  api_secret: ""
  # base_url: https://api.binance.com  # 留空使用 SDK 默认地址
  use_testnet: false
  timeout_seconds: 15

kucoin:
  api_key: ""
  api_secret: ""
  passphrase: ""
  base_url: https://api.kucoin.com
  timeout_seconds: 15
  page_delay_ms: 300 # 分页之间的最小间隔

fetch:
  max_retries: 3
  base_delay_ms: 1000 # 首次重试等待，之后按次数指数退避
  deadline_seconds: 600 # 单个任务的整体拉取期限
  rate_limit_per_min: 0 # 0 表示不限制任务提交速率
  max_concurrent: 2

cache:
  enabled: true
  dir: data/cache
  job_db: data/jobs.db

server:
  addr: ":9882"

export:
  output_dir: downloads
`

// WriteDefault 把带注释的默认配置写到 path。目标文件已存在时报错，
// 避免覆盖用户已有配置。
func WriteDefault(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("config path cannot be empty")
	}
	var probe map[string]any
	if err := yaml.Unmarshal([]byte(DefaultYAML), &probe); err != nil {
		return fmt.Errorf("default config template invalid: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(DefaultYAML), 0o644)
}
