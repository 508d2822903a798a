// Package service 管理导出任务的全生命周期：提交校验、并发调度、缓存
// 命中判断、远端拉取、xlsx 渲染与任务落盘。
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/ekremrn/crypto-excel-export/internal/export"
	"github.com/ekremrn/crypto-excel-export/internal/history"
	"github.com/ekremrn/crypto-excel-export/internal/logger"
	"github.com/ekremrn/crypto-excel-export/internal/market"
	"github.com/ekremrn/crypto-excel-export/internal/pkg/symbol"
	"github.com/ekremrn/crypto-excel-export/internal/store"
	"github.com/ekremrn/crypto-excel-export/internal/store/jobstore"
)

// 任务状态。partial 表示拉取中断但保留了部分数据。
const (
	JobStatusPending = "pending"
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusPartial = "partial"
	JobStatusFailed  = "failed"
)

var (
	ErrJobNotFound    = errors.New("job not found")
	ErrResultNotReady = errors.New("result not ready")
)

// ExportParams 描述一次导出请求。Symbol 在提交时归一化为交易所形式。
type ExportParams struct {
	Exchange string    `json:"exchange"`
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

// ExportJob 是任务的对外快照，不携带结果字节。
type ExportJob struct {
	ID        string       `json:"id"`
	Status    string       `json:"status"`
	Params    ExportParams `json:"params"`
	Progress  float64      `json:"progress"`
	Message   string       `json:"message,omitempty"`
	Rows      int          `json:"rows"`
	Partial   bool         `json:"partial"`
	Truncated string       `json:"truncated,omitempty"`
	Filename  string       `json:"filename,omitempty"`
	FromCache bool         `json:"from_cache,omitempty"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

type exportJob struct {
	ExportJob
	series market.Series
	result []byte
}

func (j *exportJob) copy() ExportJob { return j.ExportJob }

// Config 配置 Service。
type Config struct {
	Fetchers        map[string]history.Fetcher
	Cache           *store.Cache    // 可为 nil，表示禁用缓存
	Records         *jobstore.Store // 可为 nil，表示不持久化任务
	DefaultExchange string
	RateLimitPerMin int
	MaxConcurrent   int
	FetchDeadline   time.Duration
}

// Service 调度导出任务。
type Service struct {
	fetchers        map[string]history.Fetcher
	cache           *store.Cache
	records         *jobstore.Store
	defaultExchange string
	deadline        time.Duration

	limiter *rate.Limiter
	sem     chan struct{}

	mu   sync.RWMutex
	jobs map[string]*exportJob

	baseCtx context.Context
}

func New(cfg Config) (*Service, error) {
	if len(cfg.Fetchers) == 0 {
		return nil, fmt.Errorf("至少需要一个交易所拉取器")
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimitPerMin > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RateLimitPerMin)/60.0), 1)
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	deadline := cfg.FetchDeadline
	if deadline <= 0 {
		deadline = 10 * time.Minute
	}
	svc := &Service{
		fetchers:        make(map[string]history.Fetcher, len(cfg.Fetchers)),
		cache:           cfg.Cache,
		records:         cfg.Records,
		defaultExchange: strings.ToLower(cfg.DefaultExchange),
		deadline:        deadline,
		limiter:         limiter,
		sem:             make(chan struct{}, maxConcurrent),
		jobs:            make(map[string]*exportJob),
		baseCtx:         context.Background(),
	}
	for k, f := range cfg.Fetchers {
		svc.fetchers[strings.ToLower(k)] = f
	}
	if svc.defaultExchange == "" {
		for k := range svc.fetchers {
			svc.defaultExchange = k
			break
		}
	}
	return svc, nil
}

// SetContext 注入宿主 ctx，用于任务取消。
func (s *Service) SetContext(ctx context.Context) {
	if ctx != nil {
		s.baseCtx = ctx
	}
}

func (s *Service) ctx() context.Context {
	if s.baseCtx == nil {
		return context.Background()
	}
	return s.baseCtx
}

// SubmitExport 校验参数后异步执行导出，立即返回任务快照。
// 校验失败的请求不会产生任何网络调用。
func (s *Service) SubmitExport(params ExportParams) (ExportJob, error) {
	exName := params.Exchange
	if exName == "" {
		exName = s.defaultExchange
	}
	ex, err := market.ParseExchange(exName)
	if err != nil {
		return ExportJob{}, err
	}
	fetcher := s.fetchers[string(ex)]
	if fetcher == nil {
		return ExportJob{}, fmt.Errorf("交易所 %s 未启用", ex)
	}
	params.Exchange = string(ex)
	params.Symbol = normalizeSymbol(ex, params.Symbol)

	req := history.Request{Symbol: params.Symbol, Interval: params.Interval, Start: params.Start, End: params.End}
	iv, err := req.Validate(time.Now())
	if err != nil {
		return ExportJob{}, err
	}
	params.Interval = iv.Key

	now := time.Now()
	job := &exportJob{ExportJob: ExportJob{
		ID:        uuid.NewString(),
		Status:    JobStatusPending,
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
	}}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	logger.Infof("[export] 任务 %s 提交：%s %s %s [%s ~ %s]", job.ID, ex, params.Symbol, iv.Key,
		params.Start.UTC().Format("2006-01-02"), params.End.UTC().Format("2006-01-02"))

	go s.runJob(job.ID, fetcher, req, iv)
	return job.copy(), nil
}

// FetchSeries 同步执行一次拉取并返回序列，CLI 一次性导出使用。
// 复用缓存命中与写穿逻辑，但不注册任务、不渲染 xlsx。
// 第二个返回值表示是否命中缓存。
func (s *Service) FetchSeries(ctx context.Context, params ExportParams, progress history.ProgressFunc) (market.Series, bool, error) {
	exName := params.Exchange
	if exName == "" {
		exName = s.defaultExchange
	}
	ex, err := market.ParseExchange(exName)
	if err != nil {
		return market.Series{}, false, err
	}
	fetcher := s.fetchers[string(ex)]
	if fetcher == nil {
		return market.Series{}, false, fmt.Errorf("交易所 %s 未启用", ex)
	}
	req := history.Request{
		Symbol:   normalizeSymbol(ex, params.Symbol),
		Interval: params.Interval,
		Start:    params.Start,
		End:      params.End,
	}
	iv, err := req.Validate(time.Now())
	if err != nil {
		return market.Series{}, false, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.deadline)
	defer cancel()

	if series, ok := s.fromCache(ctx, ex, req, iv); ok {
		return series, true, nil
	}
	series, err := fetcher.Fetch(ctx, req, progress)
	if err != nil {
		return market.Series{}, false, err
	}
	if s.cache != nil && !series.Empty() {
		if _, err := s.cache.Put(ctx, series); err != nil {
			logger.Warnf("[export] %s %s 写缓存失败: %v", req.Symbol, iv.Key, err)
		}
	}
	return series, false, nil
}

func (s *Service) runJob(id string, fetcher history.Fetcher, req history.Request, iv market.Interval) {
	select {
	case s.sem <- struct{}{}:
	case <-s.ctx().Done():
		s.fail(id, errors.New("服务已关闭"))
		return
	}
	defer func() { <-s.sem }()

	if err := s.limiter.Wait(s.ctx()); err != nil {
		s.fail(id, err)
		return
	}
	s.updateJob(id, func(j *exportJob) {
		j.Status = JobStatusRunning
		j.UpdatedAt = time.Now()
	})

	ctx, cancel := context.WithTimeout(s.ctx(), s.deadline)
	defer cancel()

	series, fromCache := s.fromCache(ctx, fetcher.Exchange(), req, iv)
	if !fromCache {
		var err error
		series, err = fetcher.Fetch(ctx, req, func(frac float64, msg string) {
			s.updateJob(id, func(j *exportJob) {
				j.Progress = frac
				j.Message = msg
				j.UpdatedAt = time.Now()
			})
		})
		if err != nil {
			s.fail(id, err)
			return
		}
		if s.cache != nil && !series.Empty() {
			if _, err := s.cache.Put(ctx, series); err != nil {
				logger.Warnf("[export] 任务 %s 写缓存失败: %v", id, err)
			}
		}
	}

	s.finish(id, series, fromCache)
}

// fromCache 在缓存行数与对齐区间的理论根数一致时直接用缓存回放，
// 避免重复拉取远端；任何一步失败都回退到远端拉取。
func (s *Service) fromCache(ctx context.Context, ex market.Exchange, req history.Request, iv market.Interval) (market.Series, bool) {
	if s.cache == nil {
		return market.Series{}, false
	}
	alStart, alEnd := iv.AlignRange(req.Start, req.End)
	expected := iv.ExpectedCandles(alStart, alEnd)
	if expected <= 0 {
		return market.Series{}, false
	}
	count, err := s.cache.CountRange(ctx, ex, req.Symbol, iv.Key, alStart, alEnd)
	if err != nil || count != expected {
		return market.Series{}, false
	}
	candles, err := s.cache.Range(ctx, ex, req.Symbol, iv.Key, req.Start, req.End)
	if err != nil || len(candles) == 0 {
		return market.Series{}, false
	}
	logger.Infof("[export] %s %s %s 命中缓存（%d 根）", ex, req.Symbol, iv.Key, len(candles))
	return market.Series{
		Exchange: ex,
		Symbol:   req.Symbol,
		Interval: iv.Key,
		Start:    req.Start,
		End:      req.End,
		Candles:  candles,
	}, true
}

func (s *Service) finish(id string, series market.Series, fromCache bool) {
	var (
		data     []byte
		filename string
	)
	if !series.Empty() {
		var err error
		data, err = export.Render(series)
		if err != nil {
			s.fail(id, fmt.Errorf("渲染 xlsx 失败: %w", err))
			return
		}
		filename = export.Filename(series)
	}

	status := JobStatusDone
	message := "导出完成"
	switch {
	case series.Partial:
		status = JobStatusPartial
		message = "拉取中断，已导出获取到的部分数据"
	case series.Empty():
		message = "区间内没有数据"
	}
	s.updateJob(id, func(j *exportJob) {
		j.Status = status
		j.Message = message
		if status != JobStatusPartial {
			j.Progress = 1
		}
		j.Rows = series.Len()
		j.Partial = series.Partial
		j.Truncated = series.Truncated
		j.Filename = filename
		j.FromCache = fromCache
		j.UpdatedAt = time.Now()
		j.series = series
		j.result = data
	})
	if snap, ok := s.JobSnapshot(id); ok {
		s.persist(snap)
		logger.Infof("[export] 任务 %s 完成，状态=%s，行数=%d", id, snap.Status, snap.Rows)
	}
}

func (s *Service) fail(id string, err error) {
	s.updateJob(id, func(j *exportJob) {
		j.Status = JobStatusFailed
		j.Error = err.Error()
		j.Message = "导出失败"
		j.UpdatedAt = time.Now()
	})
	if snap, ok := s.JobSnapshot(id); ok {
		s.persist(snap)
	}
	logger.Errorf("[export] 任务 %s 失败: %v", id, err)
}

// persist 把终态写入任务库，失败只记日志不影响任务结果。
func (s *Service) persist(j ExportJob) {
	if s.records == nil {
		return
	}
	paramsJSON, err := json.Marshal(j.Params)
	if err != nil {
		paramsJSON = []byte("{}")
	}
	rec := &jobstore.Record{
		ID:             j.ID,
		Exchange:       j.Params.Exchange,
		Symbol:         j.Params.Symbol,
		Interval:       j.Params.Interval,
		StartUnix:      j.Params.Start.UnixMilli(),
		EndUnix:        j.Params.End.UnixMilli(),
		Status:         j.Status,
		Truncated:      j.Truncated,
		ParamsJSON:     paramsJSON,
		Rows:           int64(j.Rows),
		Filename:       j.Filename,
		Error:          j.Error,
		CreatedAtUnix:  j.CreatedAt.UnixMilli(),
		FinishedAtUnix: time.Now().UnixMilli(),
	}
	if err := s.records.Save(s.ctx(), rec); err != nil {
		logger.Warnf("[export] 任务 %s 落盘失败: %v", j.ID, err)
	}
}

func (s *Service) updateJob(id string, fn func(*exportJob)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok && fn != nil {
		fn(job)
	}
}

// JobSnapshot 返回任务副本。
func (s *Service) JobSnapshot(id string) (ExportJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return ExportJob{}, false
	}
	return job.copy(), true
}

// JobsSnapshot 返回所有任务的副本，按创建时间倒序。
func (s *Service) JobsSnapshot() []ExportJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ExportJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.copy())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Result 返回已完成任务的文件名与 xlsx 字节。
func (s *Service) Result(id string) (string, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return "", nil, ErrJobNotFound
	}
	switch job.Status {
	case JobStatusDone, JobStatusPartial:
	default:
		return "", nil, ErrResultNotReady
	}
	if len(job.result) == 0 {
		return "", nil, export.ErrNoData
	}
	return job.Filename, job.result, nil
}

// Preview 渲染已完成任务的 K 线预览页。
func (s *Service) Preview(id string) ([]byte, error) {
	s.mu.RLock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.RUnlock()
		return nil, ErrJobNotFound
	}
	switch job.Status {
	case JobStatusDone, JobStatusPartial:
	default:
		s.mu.RUnlock()
		return nil, ErrResultNotReady
	}
	series := job.series
	s.mu.RUnlock()
	return export.PreviewHTML(series)
}

// History 返回任务库中最近的终态记录。
func (s *Service) History(ctx context.Context, limit int) ([]jobstore.Record, error) {
	if s.records == nil {
		return nil, nil
	}
	return s.records.Recent(ctx, limit)
}

func normalizeSymbol(ex market.Exchange, sym string) string {
	if ex == market.ExchangeKuCoin {
		return symbol.KuCoin.ToExchange(sym)
	}
	return symbol.Binance.ToExchange(sym)
}
