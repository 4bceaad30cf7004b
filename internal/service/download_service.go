package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/araddon/dateparse"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/rkobroo/Ownrkoapi/internal/detector"
	"github.com/rkobroo/Ownrkoapi/internal/models"
	"github.com/rkobroo/Ownrkoapi/internal/repository"
	"github.com/rkobroo/Ownrkoapi/internal/storage"
	"github.com/rkobroo/Ownrkoapi/internal/utils"
	"github.com/rkobroo/Ownrkoapi/internal/worker"
	"github.com/rkobroo/Ownrkoapi/internal/ytdlp"
)

// Analyzer yt-dlp 元数据解析
type Analyzer interface {
	Analyze(ctx context.Context, url string) (*ytdlp.VideoInfo, error)
}

// TaskQueue 下载任务队列
type TaskQueue interface {
	Submit(ctx context.Context, task *worker.Task) error
	Fail(ctx context.Context, jobID string, cause error) error
}

// FormatOption 可选下载格式
type FormatOption struct {
	FormatID string `json:"format_id"`
	Ext      string `json:"ext"`
	Quality  string `json:"quality"`
	Filesize int64  `json:"filesize,omitempty"`
	Size     string `json:"size,omitempty"`
}

// AnalysisResult 视频分析结果
type AnalysisResult struct {
	Title      string         `json:"title"`
	Platform   string         `json:"platform"`
	Thumbnail  string         `json:"thumbnail"`
	Duration   string         `json:"duration"`
	Channel    string         `json:"channel"`
	Views      string         `json:"views"`
	UploadDate string         `json:"upload_date,omitempty"`
	Formats    []FormatOption `json:"formats"`
}

var qualityRe = regexp.MustCompile(`^(best|audio|4k|2k|\d+p)$`)

// DownloadService 下载任务服务
type DownloadService struct {
	store    repository.JobStore
	analyzer Analyzer
	queue    TaskQueue
	files    *storage.FileManager
	detector *detector.PlatformDetector
	logger   *zap.Logger
}

// NewDownloadService 创建下载任务服务
func NewDownloadService(
	store repository.JobStore,
	analyzer Analyzer,
	queue TaskQueue,
	files *storage.FileManager,
	logger *zap.Logger,
) *DownloadService {
	return &DownloadService{
		store:    store,
		analyzer: analyzer,
		queue:    queue,
		files:    files,
		detector: detector.NewPlatformDetector(),
		logger:   logger,
	}
}

// Analyze 获取视频信息与可用格式, 不创建任务
func (s *DownloadService) Analyze(ctx context.Context, url string) (*AnalysisResult, error) {
	url = strings.TrimSpace(url)
	if !utils.IsValidURL(url) {
		return nil, utils.ErrInvalidURL
	}

	info, err := s.analyzer.Analyze(ctx, url)
	if err != nil {
		return nil, err
	}
	return s.buildAnalysis(url, info), nil
}

func (s *DownloadService) buildAnalysis(url string, info *ytdlp.VideoInfo) *AnalysisResult {
	result := &AnalysisResult{
		Title:      orDefault(info.Title, "Unknown Title"),
		Platform:   s.detector.Classify(url).String(),
		Thumbnail:  info.Thumbnail,
		Duration:   models.FormatDuration(int(info.Duration)),
		Channel:    orDefault(info.ChannelName(), "Unknown Channel"),
		Views:      models.FormatViews(info.ViewCount),
		UploadDate: normalizeUploadDate(info.UploadDate),
		Formats:    make([]FormatOption, 0, len(info.Formats)),
	}

	for _, f := range info.Formats {
		option := FormatOption{
			FormatID: f.FormatID,
			Ext:      f.Ext,
			Quality:  formatQuality(f),
			Filesize: f.Filesize,
		}
		if f.Filesize > 0 {
			option.Size = humanize.IBytes(uint64(f.Filesize))
		}
		result.Formats = append(result.Formats, option)
	}
	return result
}

// Create 创建任务: pending -> 解析 -> analyzing -> 入队
// 解析或入队失败时任务被标记为 failed 并与错误一起返回
func (s *DownloadService) Create(ctx context.Context, req *models.CreateJobRequest) (*models.DownloadJob, error) {
	r := *req
	r.URL = strings.TrimSpace(r.URL)
	r.Normalize()
	if err := validateRequest(&r); err != nil {
		return nil, err
	}

	job, err := s.store.Create(ctx, &r)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	log := s.logger.With(zap.String("job_id", job.ID))
	log.Info("download job created", zap.String("url", r.URL), zap.String("format", r.Format), zap.String("quality", r.Quality))

	info, err := s.analyzer.Analyze(ctx, r.URL)
	if err != nil {
		log.Warn("analysis failed", zap.Error(err))
		return s.failed(ctx, job.ID, err)
	}

	analysis := s.buildAnalysis(r.URL, info)
	job, err = s.store.Update(ctx, job.ID, &models.JobUpdate{
		Status:    models.Ptr(models.StatusAnalyzing),
		Title:     models.Ptr(analysis.Title),
		Platform:  models.Ptr(analysis.Platform),
		Thumbnail: models.Ptr(analysis.Thumbnail),
		Duration:  models.Ptr(analysis.Duration),
		Channel:   models.Ptr(analysis.Channel),
		Views:     models.Ptr(analysis.Views),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update job: %w", err)
	}
	if job == nil {
		return nil, utils.ErrJobNotFound
	}

	task := &worker.Task{JobID: job.ID, URL: r.URL, Format: r.Format, Quality: r.Quality}
	if err := s.queue.Submit(ctx, task); err != nil {
		log.Error("failed to submit task", zap.Error(err))
		return s.failed(ctx, job.ID, err)
	}
	return job, nil
}

func (s *DownloadService) failed(ctx context.Context, jobID string, cause error) (*models.DownloadJob, error) {
	_ = s.queue.Fail(ctx, jobID, cause)
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, cause
	}
	return job, cause
}

// Get 获取任务
func (s *DownloadService) Get(ctx context.Context, id string) (*models.DownloadJob, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, utils.ErrJobNotFound
	}
	return job, nil
}

// List 按创建时间倒序列出任务
func (s *DownloadService) List(ctx context.Context) ([]*models.DownloadJob, error) {
	return s.store.List(ctx)
}

// Update 部分更新任务; 终态任务不可修改, 状态变更需合法
func (s *DownloadService) Update(ctx context.Context, id string, update *models.JobUpdate) (*models.DownloadJob, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status.IsTerminal() {
		return nil, utils.ErrJobTerminal
	}
	if update.Status != nil {
		to := *update.Status
		if !to.IsValid() {
			return nil, fmt.Errorf("%w: unknown status %q", utils.ErrInvalidJob, to)
		}
		if to != current.Status && !current.Status.CanTransition(to) {
			return nil, fmt.Errorf("%w: cannot move from %s to %s", utils.ErrInvalidJob, current.Status, to)
		}
	}

	job, err := s.store.Update(ctx, id, update)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, utils.ErrJobNotFound
	}
	return job, nil
}

// Delete 删除任务记录与已下载文件; 进行中的子进程不会被终止
func (s *DownloadService) Delete(ctx context.Context, id string) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	ok, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return utils.ErrJobNotFound
	}
	if err := s.files.DeleteFile(job.FilePath); err != nil {
		s.logger.Warn("failed to delete job file", zap.String("job_id", id), zap.Error(err))
	}
	return nil
}

// File 返回已完成任务及其文件路径
func (s *DownloadService) File(ctx context.Context, id string) (*models.DownloadJob, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != models.StatusCompleted || job.FilePath == "" {
		return nil, utils.ErrJobNotReady
	}
	if !s.files.FileExists(job.FilePath) {
		return nil, storage.ErrFileNotFound
	}
	return job, nil
}

func validateRequest(r *models.CreateJobRequest) error {
	if !utils.IsValidURL(r.URL) {
		return utils.ErrInvalidURL
	}
	switch r.Format {
	case "mp4", "mp3":
	default:
		return fmt.Errorf("%w: unsupported format %q", utils.ErrInvalidJob, r.Format)
	}
	if !qualityRe.MatchString(strings.ToLower(r.Quality)) {
		return fmt.Errorf("%w: unsupported quality %q", utils.ErrInvalidJob, r.Quality)
	}
	return nil
}

// formatQuality 有高度时为 <H>p, 否则取格式说明, 都没有视为音频
func formatQuality(f ytdlp.Format) string {
	if f.Height > 0 {
		return fmt.Sprintf("%dp", f.Height)
	}
	if f.FormatNote != "" {
		return f.FormatNote
	}
	return "audio"
}

// normalizeUploadDate yt-dlp 的 YYYYMMDD 转为 YYYY-MM-DD, 无法解析时原样返回
func normalizeUploadDate(raw string) string {
	if raw == "" {
		return ""
	}
	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return raw
	}
	return t.Format("2006-01-02")
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
