package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/feichai0017/intake-processor/pkg/logger"
	"github.com/feichai0017/intake-processor/pkg/storage/memory"
	"github.com/feichai0017/intake-processor/pkg/storage/minio"
	"github.com/feichai0017/intake-processor/pkg/storage/s3"
)

// StorageType 定义存储类型
type StorageType string

const (
	StorageTypeNone   StorageType = "none"
	StorageTypeMemory StorageType = "memory"
	StorageTypeS3     StorageType = "s3"
	StorageTypeMinio  StorageType = "minio"
)

// Storage 接口定义
type Storage interface {
	// Store 存储对象, size may be -1 when unknown
	Store(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
	// Get 获取对象
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete 删除对象
	Delete(ctx context.Context, key string) error
	// CleanupBefore 清理过期对象
	CleanupBefore(ctx context.Context, threshold time.Time) error
}

// NewStorage 创建存储实例的工厂方法. StorageTypeNone yields a nil Storage.
func NewStorage(ctx context.Context, storageType StorageType, log logger.Logger) (Storage, error) {
	switch StorageType(strings.ToLower(string(storageType))) {
	case "", StorageTypeNone:
		return nil, nil
	case StorageTypeMemory:
		return memory.NewMemoryStorage(), nil
	case StorageTypeS3:
		return s3.GetClient(ctx, log)
	case StorageTypeMinio:
		return minio.GetClient(ctx, log)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}
