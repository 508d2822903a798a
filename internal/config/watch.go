package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/ekremrn/crypto-excel-export/internal/logger"
)

// Watch 监听配置文件变更，成功重载后回调 onReload。
// 重载失败只记日志并保留旧配置，监听随进程退出。
func Watch(path string, onReload func(*Config)) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("config watch requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config failed: %w", err)
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		cfg, err := Load(path)
		if err != nil {
			logger.Errorf("配置重载失败 (%s): %v", evt.Name, err)
			return
		}
		logger.Infof("配置已重载: %s", path)
		if onReload != nil {
			onReload(cfg)
		}
	})
	v.WatchConfig()
	return nil
}
