package models

import "time"

// JobStatus 下载任务状态
type JobStatus string

// 状态常量
const (
	StatusPending     JobStatus = "pending"     // 已创建
	StatusAnalyzing   JobStatus = "analyzing"   // 元数据已获取
	StatusDownloading JobStatus = "downloading" // 子进程运行中
	StatusCompleted   JobStatus = "completed"   // 完成
	StatusFailed      JobStatus = "failed"      // 失败
)

// transitions 合法状态迁移
var transitions = map[JobStatus][]JobStatus{
	StatusPending:     {StatusAnalyzing, StatusDownloading, StatusFailed},
	StatusAnalyzing:   {StatusDownloading, StatusFailed},
	StatusDownloading: {StatusDownloading, StatusCompleted, StatusFailed},
}

// IsTerminal 终态不可再变更
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsValid 是否为已知状态
func (s JobStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusAnalyzing, StatusDownloading, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// CanTransition 判断能否从 s 迁移到 to
func (s JobStatus) CanTransition(to JobStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// DownloadJob 下载任务记录
type DownloadJob struct {
	ID             string    `json:"id"`
	URL            string    `json:"url"`
	Format         string    `json:"format"`  // mp4, mp3
	Quality        string    `json:"quality"` // 720p, audio, best
	Status         JobStatus `json:"status"`
	Progress       float64   `json:"progress"`
	DownloadSpeed  string    `json:"download_speed,omitempty"`
	DownloadedSize string    `json:"downloaded_size,omitempty"`
	ETA            string    `json:"eta,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	FilePath       string    `json:"file_path,omitempty"`

	// 分析阶段获取的元数据
	Title     string `json:"title,omitempty"`
	Platform  string `json:"platform,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Duration  string `json:"duration,omitempty"`
	Channel   string `json:"channel,omitempty"`
	Views     string `json:"views,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone 返回快照副本
func (j *DownloadJob) Clone() *DownloadJob {
	if j == nil {
		return nil
	}
	c := *j
	return &c
}

// CreateJobRequest 创建任务请求
type CreateJobRequest struct {
	URL     string `json:"url" binding:"required"`
	Format  string `json:"format"`
	Quality string `json:"quality"`
}

// Normalize 填充默认格式与质量
func (r *CreateJobRequest) Normalize() {
	if r.Format == "" {
		r.Format = "mp4"
	}
	if r.Quality == "" {
		r.Quality = "best"
	}
}

// JobUpdate 部分更新, nil 字段保持不变
type JobUpdate struct {
	Status         *JobStatus `json:"status,omitempty"`
	Progress       *float64   `json:"progress,omitempty"`
	DownloadSpeed  *string    `json:"download_speed,omitempty"`
	DownloadedSize *string    `json:"downloaded_size,omitempty"`
	ETA            *string    `json:"eta,omitempty"`
	ErrorMessage   *string    `json:"error_message,omitempty"`
	FilePath       *string    `json:"file_path,omitempty"`
	Title          *string    `json:"title,omitempty"`
	Platform       *string    `json:"platform,omitempty"`
	Thumbnail      *string    `json:"thumbnail,omitempty"`
	Duration       *string    `json:"duration,omitempty"`
	Channel        *string    `json:"channel,omitempty"`
	Views          *string    `json:"views,omitempty"`
}

// Apply 将更新合并到 job 上
func (u *JobUpdate) Apply(job *DownloadJob) {
	if u == nil {
		return
	}
	if u.Status != nil {
		job.Status = *u.Status
	}
	if u.Progress != nil {
		job.Progress = clampProgress(*u.Progress)
	}
	setString(&job.DownloadSpeed, u.DownloadSpeed)
	setString(&job.DownloadedSize, u.DownloadedSize)
	setString(&job.ETA, u.ETA)
	setString(&job.ErrorMessage, u.ErrorMessage)
	setString(&job.FilePath, u.FilePath)
	setString(&job.Title, u.Title)
	setString(&job.Platform, u.Platform)
	setString(&job.Thumbnail, u.Thumbnail)
	setString(&job.Duration, u.Duration)
	setString(&job.Channel, u.Channel)
	setString(&job.Views, u.Views)
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func clampProgress(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// Ptr 取地址辅助
func Ptr[T any](v T) *T {
	return &v
}

// ProgressMessage 进度消息 (redis pub/sub 与 websocket 共用)
type ProgressMessage struct {
	JobID          string    `json:"job_id"`
	Status         JobStatus `json:"status"`
	Percent        float64   `json:"percent"`
	Speed          string    `json:"speed,omitempty"`
	ETA            string    `json:"eta,omitempty"`
	DownloadedSize string    `json:"downloaded_size,omitempty"`
	Message        string    `json:"message,omitempty"`
}

// ToProgress 由任务快照生成进度消息
func (j *DownloadJob) ToProgress() *ProgressMessage {
	return &ProgressMessage{
		JobID:          j.ID,
		Status:         j.Status,
		Percent:        j.Progress,
		Speed:          j.DownloadSpeed,
		ETA:            j.ETA,
		DownloadedSize: j.DownloadedSize,
		Message:        j.ErrorMessage,
	}
}
