package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ekremrn/crypto-excel-export/internal/app"
	"github.com/ekremrn/crypto-excel-export/internal/config"
	"github.com/ekremrn/crypto-excel-export/internal/export"
	"github.com/ekremrn/crypto-excel-export/internal/logger"
	"github.com/ekremrn/crypto-excel-export/internal/service"
)

func main() {
	var (
		cfgPath    = flag.String("config", os.Getenv("KEXPORT_CONFIG"), "配置文件路径；留空时仅用默认值与 KEXPORT_* 环境变量")
		initConfig = flag.String("init-config", "", "写出带注释的默认配置到指定路径后退出")
		serve      = flag.Bool("serve", false, "启动 HTTP 服务模式")
		exchange   = flag.String("exchange", "binance", "数据源：binance / kucoin")
		symbols    = flag.String("symbol", "", "交易对，逗号分隔可一次导出多个（如 BTCUSDT,ETHUSDT）")
		interval   = flag.String("interval", "1d", "K 线周期")
		start      = flag.String("start", "2019-01-01", "起始日期（YYYY-MM-DD 或 RFC3339）")
		end        = flag.String("end", "", "结束日期，留空取当前时间")
		outDir     = flag.String("out", "", "输出目录，留空取配置 export.output_dir")
		chart      = flag.Bool("chart", false, "同时写出 K 线 HTML 预览页")
		dumpPath   = flag.String("dump", "", "交易所原始报文落盘路径（排查解析问题用）")
	)
	flag.Parse()

	if *initConfig != "" {
		if err := config.WriteDefault(*initConfig); err != nil {
			log.Fatalf("写默认配置失败: %v", err)
		}
		fmt.Printf("默认配置已写入 %s\n", *initConfig)
		return
	}

	// 凭据可以放在 .env 里，文件不存在不报错
	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("初始化日志文件失败: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	if *dumpPath != "" {
		f, err := openAppend(*dumpPath)
		if err != nil {
			log.Fatalf("初始化报文落盘失败: %v", err)
		}
		defer f.Close()
		logger.SetDumpWriter(f)
	}

	application, err := app.New(cfg, *cfgPath)
	if err != nil {
		log.Fatalf("初始化应用失败: %v", err)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *serve {
		if err := application.Run(ctx); err != nil {
			log.Fatalf("运行失败: %v", err)
		}
		return
	}

	list := splitSymbols(*symbols)
	if len(list) == 0 {
		flag.Usage()
		log.Fatal("一次性导出需要 -symbol；服务模式请加 -serve")
	}
	dir := strings.TrimSpace(*outDir)
	if dir == "" {
		dir = cfg.Export.OutputDir
	}
	if err := runExport(ctx, application.Service(), exportArgs{
		exchange: *exchange,
		symbols:  list,
		interval: *interval,
		start:    *start,
		end:      *end,
		outDir:   dir,
		chart:    *chart,
	}); err != nil {
		log.Fatalf("导出失败: %v", err)
	}
}

type exportArgs struct {
	exchange string
	symbols  []string
	interval string
	start    string
	end      string
	outDir   string
	chart    bool
}

// runExport 并发执行各交易对的一次性导出。游标彼此独立，失败的交易对
// 会使整批返回错误，但不影响已写出的文件。
func runExport(ctx context.Context, svc *service.Service, a exportArgs) error {
	startTs, err := parseDate(a.start)
	if err != nil {
		return err
	}
	endTs := time.Now().UTC()
	if strings.TrimSpace(a.end) != "" {
		endTs, err = parseDate(a.end)
		if err != nil {
			return err
		}
	}
	if err := os.MkdirAll(a.outDir, 0o755); err != nil {
		return err
	}

	group, ctx := errgroup.WithContext(ctx)
	for _, sym := range a.symbols {
		sym := sym
		group.Go(func() error {
			series, fromCache, err := svc.FetchSeries(ctx, service.ExportParams{
				Exchange: a.exchange,
				Symbol:   sym,
				Interval: a.interval,
				Start:    startTs,
				End:      endTs,
			}, func(frac float64, msg string) {
				logger.Infof("[%s] %3.0f%% %s", sym, frac*100, msg)
			})
			if err != nil {
				return fmt.Errorf("%s: %w", sym, err)
			}
			if series.Empty() {
				logger.Warnf("[%s] 区间内没有数据，跳过导出", sym)
				return nil
			}
			if series.Partial {
				logger.Warnf("[%s] 拉取中断（%s），导出为部分数据", sym, series.Truncated)
			}
			data, err := export.Render(series)
			if err != nil {
				return fmt.Errorf("%s: %w", sym, err)
			}
			path := filepath.Join(a.outDir, export.Filename(series))
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
			logger.Infof("[%s] 已导出 %d 根 -> %s（缓存命中=%v）", sym, series.Len(), path, fromCache)
			if a.chart {
				html, err := export.PreviewHTML(series)
				if err != nil {
					return fmt.Errorf("%s: %w", sym, err)
				}
				htmlPath := strings.TrimSuffix(path, ".xlsx") + ".html"
				if err := os.WriteFile(htmlPath, html, 0o644); err != nil {
					return err
				}
				logger.Infof("[%s] 预览页 -> %s", sym, htmlPath)
			}
			return nil
		})
	}
	return group.Wait()
}

func splitSymbols(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("时间格式需为 YYYY-MM-DD 或 RFC3339: %q", v)
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	file, err := openAppend(trimmed)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}

func openAppend(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}
