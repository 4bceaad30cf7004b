package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rkobroo/Ownrkoapi/internal/config"
	"github.com/rkobroo/Ownrkoapi/internal/models"
)

// JobStore 下载任务存储; 返回值均为快照副本
type JobStore interface {
	Create(ctx context.Context, req *models.CreateJobRequest) (*models.DownloadJob, error)
	// Get 不存在时返回 nil, nil
	Get(ctx context.Context, id string) (*models.DownloadJob, error)
	// List 按创建时间倒序
	List(ctx context.Context) ([]*models.DownloadJob, error)
	// Update 合并更新并刷新 UpdatedAt; 不存在时返回 nil, nil
	Update(ctx context.Context, id string, update *models.JobUpdate) (*models.DownloadJob, error)
	Delete(ctx context.Context, id string) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open 根据配置打开任务存储
func Open(cfg *config.StorageConfig, logger *zap.Logger) (JobStore, error) {
	switch cfg.Driver {
	case "memory":
		logger.Info("using in-memory job store")
		return NewMemoryStore(), nil
	case "sqlite", "postgres":
		store, err := OpenSQLStore(cfg.Driver, cfg.DSN, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("using sql job store", zap.String("driver", cfg.Driver))
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
