package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/rkobroo/Ownrkoapi/internal/config"
	"github.com/rkobroo/Ownrkoapi/internal/models"
	"github.com/rkobroo/Ownrkoapi/internal/repository"
	"github.com/rkobroo/Ownrkoapi/internal/utils"
	"github.com/rkobroo/Ownrkoapi/internal/ytdlp"
)

// 错误定义
var (
	ErrPoolStopped = errors.New("worker pool stopped")
	ErrJobGone     = errors.New("download job no longer exists")
)

// Downloader 执行下载的依赖
type Downloader interface {
	Download(ctx context.Context, req ytdlp.DownloadRequest, onProgress func(ytdlp.Progress)) (*ytdlp.Result, error)
}

// Task 下载任务
type Task struct {
	JobID   string
	URL     string
	Format  string
	Quality string
}

// Pool Worker 池
type Pool struct {
	size      int
	taskChan  chan *Task
	semaphore chan struct{}
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc

	mu      sync.RWMutex
	stopped bool

	store      repository.JobStore
	downloader Downloader
	publisher  Publisher
	logger     *zap.Logger
}

// NewPool 创建 Worker 池
func NewPool(cfg *config.WorkerConfig, store repository.JobStore, downloader Downloader, publisher Publisher, logger *zap.Logger) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	size := max(cfg.PoolSize, 1)
	return &Pool{
		size:       size,
		taskChan:   make(chan *Task, size*16),
		semaphore:  make(chan struct{}, max(cfg.MaxConcurrent, 1)),
		ctx:        ctx,
		cancel:     cancel,
		store:      store,
		downloader: downloader,
		publisher:  publisher,
		logger:     logger,
	}
}

// Start 启动 Worker 池
func (p *Pool) Start() {
	p.logger.Info("starting workers", zap.Int("size", p.size))
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop 停止接收任务并等待进行中的下载, ctx 到期后直接返回
func (p *Pool) Stop(ctx context.Context) error {
	p.logger.Info("stopping workers")
	p.cancel()

	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.taskChan)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("all workers stopped")
		return nil
	case <-ctx.Done():
		p.logger.Warn("workers still running at shutdown deadline")
		return ctx.Err()
	}
}

// Submit 提交任务; 队列满时阻塞直到 ctx 结束
func (p *Pool) Submit(ctx context.Context, task *Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.taskChan <- task:
		p.logger.Debug("task submitted", zap.String("job_id", task.JobID))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrPoolStopped
	}
}

// worker 工作协程
func (p *Pool) worker(id int) {
	defer p.wg.Done()
	log := p.logger.With(zap.Int("worker", id))
	log.Debug("worker started")

	for {
		select {
		case task, ok := <-p.taskChan:
			if !ok {
				return
			}

			select {
			case p.semaphore <- struct{}{}:
			case <-p.ctx.Done():
				return
			}

			log.Info("processing job", zap.String("job_id", task.JobID))
			if err := p.Process(task); err != nil {
				log.Warn("job failed", zap.String("job_id", task.JobID), zap.Error(err))
			}
			<-p.semaphore

		case <-p.ctx.Done():
			return
		}
	}
}

// Process 执行一个任务的下载阶段; 子进程不随池停止而取消
func (p *Pool) Process(task *Task) error {
	ctx := context.WithoutCancel(p.ctx)

	current, err := p.store.Get(ctx, task.JobID)
	if err != nil {
		return err
	}
	if current == nil {
		return ErrJobGone
	}
	if !current.Status.CanTransition(models.StatusDownloading) {
		return &TransitionError{From: current.Status, To: models.StatusDownloading}
	}

	req := ytdlp.DownloadRequest{
		JobID:   task.JobID,
		URL:     task.URL,
		Format:  task.Format,
		Quality: task.Quality,
		// 子进程启动后才进入 downloading
		OnStart: func() {
			if _, err := p.advance(ctx, task.JobID, &models.JobUpdate{
				Status:   models.Ptr(models.StatusDownloading),
				Progress: models.Ptr(0.0),
			}); err != nil {
				p.logger.Warn("failed to mark job downloading", zap.String("job_id", task.JobID), zap.Error(err))
			}
		},
	}
	result, err := p.downloader.Download(ctx, req, func(pr ytdlp.Progress) {
		update := &models.JobUpdate{Status: models.Ptr(models.StatusDownloading)}
		if pr.HasPercent {
			update.Progress = models.Ptr(pr.Percent)
		}
		if pr.Speed != "" {
			update.DownloadSpeed = models.Ptr(pr.Speed)
		}
		if pr.ETA != "" {
			update.ETA = models.Ptr(pr.ETA)
		}
		if pr.Size != "" {
			update.DownloadedSize = models.Ptr(pr.Size)
		}
		if _, err := p.advance(ctx, task.JobID, update); err != nil {
			p.logger.Debug("progress update skipped", zap.String("job_id", task.JobID), zap.Error(err))
		}
	})
	if err != nil {
		return p.fail(ctx, task.JobID, err)
	}

	if _, err := p.advance(ctx, task.JobID, &models.JobUpdate{
		Status:         models.Ptr(models.StatusCompleted),
		Progress:       models.Ptr(100.0),
		FilePath:       models.Ptr(result.FilePath),
		DownloadedSize: models.Ptr(humanize.IBytes(uint64(result.FileSize))),
		ETA:            models.Ptr(""),
	}); err != nil {
		return err
	}

	p.logger.Info("job completed",
		zap.String("job_id", task.JobID),
		zap.String("file", result.FilePath),
		zap.Int64("size", result.FileSize))
	return nil
}

// Fail 将任务标记为失败
func (p *Pool) Fail(ctx context.Context, jobID string, cause error) error {
	return p.fail(ctx, jobID, cause)
}

func (p *Pool) fail(ctx context.Context, jobID string, cause error) error {
	if _, err := p.advance(ctx, jobID, &models.JobUpdate{
		Status:       models.Ptr(models.StatusFailed),
		ErrorMessage: models.Ptr(cause.Error()),
	}); err != nil {
		p.logger.Warn("failed to record job failure", zap.String("job_id", jobID), zap.Error(err))
	}
	return cause
}

// advance 校验状态迁移后写入存储并发布进度
func (p *Pool) advance(ctx context.Context, jobID string, update *models.JobUpdate) (*models.DownloadJob, error) {
	current, err := p.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrJobGone
	}
	if update.Status != nil && !current.Status.CanTransition(*update.Status) {
		return nil, &TransitionError{From: current.Status, To: *update.Status}
	}

	job, err := p.store.Update(ctx, jobID, update)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobGone
	}

	p.publish(ctx, job)
	return job, nil
}

func (p *Pool) publish(ctx context.Context, job *models.DownloadJob) {
	msg := job.ToProgress()
	pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := p.publisher.Publish(pubCtx, msg); err != nil {
		p.logger.Debug("failed to publish progress", zap.String("job_id", job.ID), zap.Error(err))
	}
}

// TransitionError 非法状态迁移
type TransitionError struct {
	From, To models.JobStatus
}

func (e *TransitionError) Error() string {
	return "invalid job transition " + string(e.From) + " -> " + string(e.To)
}

// Is 终态迁移视为 utils.ErrJobTerminal
func (e *TransitionError) Is(target error) bool {
	return target == utils.ErrJobTerminal && e.From.IsTerminal()
}
