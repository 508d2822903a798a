// Package jobstore 把导出任务的终态落盘，服务重启后仍可追溯历史任务。
package jobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Record 是一次导出任务的持久化快照。时间戳统一为 Unix 毫秒。
type Record struct {
	ID             string         `gorm:"column:id;primaryKey" json:"id"`
	Exchange       string         `gorm:"column:exchange;index" json:"exchange"`
	Symbol         string         `gorm:"column:symbol;index" json:"symbol"`
	Interval       string         `gorm:"column:interval" json:"interval"`
	StartUnix      int64          `gorm:"column:start_at" json:"start_at"`
	EndUnix        int64          `gorm:"column:end_at" json:"end_at"`
	Status         string         `gorm:"column:status" json:"status"`
	Truncated      string         `gorm:"column:truncated" json:"truncated,omitempty"`
	ParamsJSON     datatypes.JSON `gorm:"column:params_json;type:TEXT" json:"params"`
	Rows           int64          `gorm:"column:rows" json:"rows"`
	Filename       string         `gorm:"column:filename" json:"filename,omitempty"`
	Error          string         `gorm:"column:error" json:"error,omitempty"`
	CreatedAtUnix  int64          `gorm:"column:created_at" json:"created_at"`
	FinishedAtUnix int64          `gorm:"column:finished_at" json:"finished_at"`
}

func (Record) TableName() string { return "export_jobs" }

type Store struct {
	db *gorm.DB
}

func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("任务库路径不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	// mattn 方言：busy_timeout / journal_mode 用下划线参数
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	return NewFromDB(db)
}

func NewFromDB(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db 不能为空")
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save 以主键覆盖写入记录。
func (s *Store) Save(ctx context.Context, rec *Record) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("record id 不能为空")
	}
	return s.db.WithContext(ctx).Save(rec).Error
}

// Get 按任务 ID 读取记录，未找到时返回 gorm.ErrRecordNotFound。
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	var rec Record
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// Recent 按创建时间倒序返回最近的记录。
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	var recs []Record
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&recs).Error
	return recs, err
}
