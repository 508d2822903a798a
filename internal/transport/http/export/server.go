// Package exporthttp 提供导出任务的 HTTP API。
package exporthttp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ekremrn/crypto-excel-export/internal/export"
	"github.com/ekremrn/crypto-excel-export/internal/market"
	"github.com/ekremrn/crypto-excel-export/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Server 暴露任务提交、进度查询与结果下载接口。
type Server struct {
	addr   string
	svc    *service.Service
	router *gin.Engine
}

// Config 描述 HTTP Server 的依赖。
type Config struct {
	Addr string
	Svc  *service.Service
}

// NewServer 构建导出 HTTP Server。
func NewServer(cfg Config) (*Server, error) {
	if cfg.Svc == nil {
		return nil, errors.New("service 不能为空")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9882"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{addr: cfg.Addr, svc: cfg.Svc, router: router}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	api := s.router.Group("/api")
	api.POST("/export", s.handleSubmit)
	api.GET("/export/:id", s.handleStatus)
	api.GET("/export/:id/download", s.handleDownload)
	api.GET("/export/:id/preview", s.handlePreview)
	api.GET("/jobs", s.handleJobs)
	api.GET("/intervals", s.handleIntervals)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleSubmit(c *gin.Context) {
	var req struct {
		Exchange string `json:"exchange"`
		Symbol   string `json:"symbol" binding:"required"`
		Interval string `json:"interval" binding:"required"`
		Start    string `json:"start" binding:"required"`
		End      string `json:"end" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, err := parseDate(req.Start)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	end, err := parseDate(req.End)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	job, err := s.svc.SubmitExport(service.ExportParams{
		Exchange: req.Exchange,
		Symbol:   req.Symbol,
		Interval: req.Interval,
		Start:    start,
		End:      end,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job": job})
}

func (s *Server) handleStatus(c *gin.Context) {
	job, ok := s.svc.JobSnapshot(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}

func (s *Server) handleDownload(c *gin.Context) {
	name, data, err := s.svc.Result(c.Param("id"))
	switch {
	case err == nil:
	case errors.Is(err, service.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	case errors.Is(err, service.ErrResultNotReady):
		c.JSON(http.StatusNotFound, gin.H{"error": "任务尚未完成"})
		return
	case errors.Is(err, export.ErrNoData):
		c.JSON(http.StatusGone, gin.H{"error": "区间内没有数据"})
		return
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, xlsxContentType, data)
}

func (s *Server) handlePreview(c *gin.Context) {
	html, err := s.svc.Preview(c.Param("id"))
	switch {
	case err == nil:
	case errors.Is(err, service.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	case errors.Is(err, service.ErrResultNotReady):
		c.JSON(http.StatusNotFound, gin.H{"error": "任务尚未完成"})
		return
	case errors.Is(err, export.ErrNoData):
		c.JSON(http.StatusGone, gin.H{"error": "区间内没有数据"})
		return
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

// handleJobs 默认返回内存中的任务列表；scope=history 时返回任务库中
// 已落盘的终态记录。
func (s *Server) handleJobs(c *gin.Context) {
	if c.Query("scope") == "history" {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		recs, err := s.svc.History(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"jobs": recs})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": s.svc.JobsSnapshot()})
}

func (s *Server) handleIntervals(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"intervals": market.SupportedIntervals()})
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

// Start 启动 HTTP 服务，阻塞直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
