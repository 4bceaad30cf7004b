package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/rkobroo/Ownrkoapi/internal/config"
	"github.com/rkobroo/Ownrkoapi/internal/repository"
	"github.com/rkobroo/Ownrkoapi/internal/storage"
)

// Scheduler 清理调度器, 删除超过保留期的终态任务及其文件
type Scheduler struct {
	store     repository.JobStore
	files     *storage.FileManager
	interval  time.Duration
	retention time.Duration
	enabled   bool
	logger    *zap.Logger
	now       func() time.Time
}

// NewScheduler 创建清理调度器
func NewScheduler(cfg *config.CleanupConfig, store repository.JobStore, files *storage.FileManager, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		store:     store,
		files:     files,
		interval:  time.Duration(cfg.Interval) * time.Second,
		retention: time.Duration(cfg.Retention) * time.Second,
		enabled:   cfg.Enabled,
		logger:    logger,
		now:       time.Now,
	}
}

// Start 启动清理调度器, 阻塞到 ctx 结束
func (s *Scheduler) Start(ctx context.Context) {
	if !s.enabled {
		s.logger.Info("cleanup scheduler disabled")
		return
	}

	s.logger.Info("starting cleanup scheduler",
		zap.Duration("interval", s.interval),
		zap.Duration("retention", s.retention))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// 启动时先执行一次
	s.run(ctx)

	for {
		select {
		case <-ticker.C:
			s.run(ctx)
		case <-ctx.Done():
			s.logger.Info("cleanup scheduler stopped")
			return
		}
	}
}

func (s *Scheduler) run(ctx context.Context) {
	start := time.Now()
	deleted, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Warn("cleanup finished with errors",
			zap.Int("deleted", deleted),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return
	}
	if deleted > 0 {
		s.logger.Info("cleanup completed",
			zap.Int("deleted", deleted),
			zap.Duration("elapsed", time.Since(start)))
	}
}

// RunOnce 执行一轮清理, 返回删除的任务数
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	jobs, err := s.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list jobs: %w", err)
	}

	cutoff := s.now().Add(-s.retention)
	var (
		deleted int
		errs    error
	)
	for _, job := range jobs {
		if ctx.Err() != nil {
			return deleted, multierr.Append(errs, ctx.Err())
		}
		if !job.Status.IsTerminal() || job.UpdatedAt.After(cutoff) {
			continue
		}

		if job.FilePath != "" {
			if err := s.files.DeleteFile(job.FilePath); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("job %s: %w", job.ID, err))
				continue
			}
		}
		if _, err := s.store.Delete(ctx, job.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("job %s: %w", job.ID, err))
			continue
		}

		deleted++
		s.logger.Debug("expired job removed", zap.String("job_id", job.ID), zap.String("file", job.FilePath))
	}
	return deleted, errs
}
