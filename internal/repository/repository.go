// Package repository persists the minimal patient projection.
package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/feichai0017/intake-processor/internal/models"
	"github.com/feichai0017/intake-processor/pkg/logger"
)

// RecordStore 患者记录存储接口
type RecordStore interface {
	Save(ctx context.Context, record models.PatientRecord) error
	// ListAll returns every record, most recent first.
	ListAll(ctx context.Context) ([]models.PatientRecord, error)
	Close() error
}

// StoreConfig selects and configures a backend.
type StoreConfig struct {
	Kind          string // memory | sqlite | redis
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
}

// NewRecordStore opens the configured backend.
func NewRecordStore(ctx context.Context, cfg StoreConfig, log logger.Logger) (RecordStore, error) {
	switch strings.ToLower(cfg.Kind) {
	case "", "memory":
		log.Info("Using in-memory record store")
		return NewMemoryStore(), nil
	case "sqlite":
		log.Info("Using sqlite record store", logger.String("path", cfg.SQLitePath))
		return NewSQLiteStore(cfg.SQLitePath)
	case "redis":
		log.Info("Using redis record store", logger.String("addr", cfg.RedisAddr))
		return NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisKey)
	default:
		return nil, fmt.Errorf("unknown record store %q", cfg.Kind)
	}
}
