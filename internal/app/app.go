// Package app 负责应用级装配：配置→交易所网关→拉取器→缓存→任务服务→HTTP。
package app

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ekremrn/crypto-excel-export/internal/config"
	"github.com/ekremrn/crypto-excel-export/internal/gateway/binance"
	"github.com/ekremrn/crypto-excel-export/internal/gateway/kucoin"
	"github.com/ekremrn/crypto-excel-export/internal/history"
	"github.com/ekremrn/crypto-excel-export/internal/logger"
	"github.com/ekremrn/crypto-excel-export/internal/market"
	"github.com/ekremrn/crypto-excel-export/internal/pkg/retry"
	"github.com/ekremrn/crypto-excel-export/internal/service"
	"github.com/ekremrn/crypto-excel-export/internal/store"
	"github.com/ekremrn/crypto-excel-export/internal/store/jobstore"
	exporthttp "github.com/ekremrn/crypto-excel-export/internal/transport/http/export"
)

// App 持有已装配的依赖。构造后 Run 启动服务模式，CLI 一次性导出
// 通过 Service() 复用同一条流水线。
type App struct {
	cfg     *config.Config
	cfgPath string

	svc     *service.Service
	server  *exporthttp.Server
	cache   *store.Cache
	records *jobstore.Store
}

// New 根据配置构建应用对象（不启动）。cfgPath 非空时 Run 会监听该文件热更新。
func New(cfg *config.Config, cfgPath string) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	binanceClient := binance.New(binance.Config{
		APIKey:      cfg.Binance.APIKey,
		APISecret:   cfg.Binance.APISecret,
		RESTBaseURL: cfg.Binance.BaseURL,
		UseTestnet:  cfg.Binance.UseTestnet,
		HTTPTimeout: cfg.Binance.Timeout(),
	})
	kucoinClient := kucoin.New(kucoin.Config{
		APIKey:      cfg.KuCoin.APIKey,
		APISecret:   cfg.KuCoin.APISecret,
		Passphrase:  cfg.KuCoin.Passphrase,
		BaseURL:     cfg.KuCoin.BaseURL,
		HTTPTimeout: cfg.KuCoin.Timeout(),
	})

	policy := retry.Policy{MaxAttempts: cfg.Fetch.MaxRetries, BaseDelay: cfg.Fetch.BaseDelay()}
	fetchers := map[string]history.Fetcher{
		string(market.ExchangeBinance): history.NewBinanceFetcher(binanceClient, policy),
		string(market.ExchangeKuCoin):  history.NewKuCoinFetcher(kucoinClient, cfg.KuCoin.PageDelay()),
	}

	var (
		cache   *store.Cache
		records *jobstore.Store
		err     error
	)
	if cfg.Cache.Enabled {
		cache, err = store.NewCache(cfg.Cache.Dir)
		if err != nil {
			return nil, fmt.Errorf("初始化 K 线缓存失败: %w", err)
		}
		records, err = jobstore.New(cfg.Cache.JobDB)
		if err != nil {
			_ = cache.Close()
			return nil, fmt.Errorf("初始化任务库失败: %w", err)
		}
	}

	svc, err := service.New(service.Config{
		Fetchers:        fetchers,
		Cache:           cache,
		Records:         records,
		DefaultExchange: string(market.ExchangeBinance),
		RateLimitPerMin: cfg.Fetch.RateLimitPerMin,
		MaxConcurrent:   cfg.Fetch.MaxConcurrent,
		FetchDeadline:   cfg.Fetch.Deadline(),
	})
	if err != nil {
		return nil, err
	}

	server, err := exporthttp.NewServer(exporthttp.Config{Addr: cfg.Server.Addr, Svc: svc})
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:     cfg,
		cfgPath: strings.TrimSpace(cfgPath),
		svc:     svc,
		server:  server,
		cache:   cache,
		records: records,
	}, nil
}

// Run 启动 HTTP 服务并监听配置热更新，阻塞到 ctx 取消或服务出错。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	a.svc.SetContext(ctx)
	a.printSummary()

	if a.cfgPath != "" {
		// 热更新只调整日志级别，交易所与缓存的改动需要重启。
		if err := config.Watch(a.cfgPath, func(next *config.Config) {
			logger.SetLevel(next.App.LogLevel)
		}); err != nil {
			logger.Warnf("配置热更新不可用: %v", err)
		}
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	return group.Wait()
}

// Service 暴露任务服务，CLI 一次性导出与测试复用。
func (a *App) Service() *service.Service {
	if a == nil {
		return nil
	}
	return a.svc
}

// Close 释放缓存与任务库连接。
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var first error
	if a.records != nil {
		if err := a.records.Close(); err != nil && first == nil {
			first = err
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (a *App) printSummary() {
	cacheLine := "禁用"
	if a.cfg.Cache.Enabled {
		cacheLine = fmt.Sprintf("启用（%s）", a.cfg.Cache.Dir)
	}
	rateLine := "不限速"
	if a.cfg.Fetch.RateLimitPerMin > 0 {
		rateLine = fmt.Sprintf("%d 任务/分钟", a.cfg.Fetch.RateLimitPerMin)
	}
	logger.InfoBlock(strings.Join([]string{
		"========== kexport ==========",
		fmt.Sprintf("监听地址: %s", a.cfg.Server.Addr),
		fmt.Sprintf("数据源: binance, kucoin（默认 %s）", market.ExchangeBinance),
		fmt.Sprintf("本地缓存: %s", cacheLine),
		fmt.Sprintf("提交限速: %s / 并发 %d", rateLine, a.cfg.Fetch.MaxConcurrent),
		"=============================",
	}, "\n"))
}
