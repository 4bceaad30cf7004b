package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/rkobroo/Ownrkoapi/internal/storage"
	"github.com/rkobroo/Ownrkoapi/internal/utils"
)

// DownloadRequest 一次下载请求
type DownloadRequest struct {
	JobID   string
	URL     string
	Format  string // mp4, mp3
	Quality string // best, audio, 720p ...
	// OnStart 子进程启动成功后调用一次
	OnStart func()
}

// Result 下载结果
type Result struct {
	FilePath string
	FileSize int64
}

// Executor yt-dlp 下载执行器
type Executor struct {
	locator *Locator
	opts    Options
	files   *storage.FileManager
	logger  *zap.Logger
}

// NewExecutor 创建下载执行器
func NewExecutor(locator *Locator, opts Options, files *storage.FileManager, logger *zap.Logger) *Executor {
	return &Executor{
		locator: locator,
		opts:    opts,
		files:   files,
		logger:  logger,
	}
}

// Download 执行下载并流式回调进度
// 子进程不绑定 ctx, 任务一旦开始会运行到结束
func (e *Executor) Download(ctx context.Context, req DownloadRequest, onProgress func(Progress)) (*Result, error) {
	log := e.logger.With(zap.String("job_id", req.JobID))

	prefix, err := e.locator.Command(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.files.EnsureDir(); err != nil {
		return nil, fmt.Errorf("failed to create downloads dir: %w", err)
	}

	args := append(append([]string(nil), prefix[1:]...), e.buildArgs(req)...)
	log.Info("starting yt-dlp download", zap.String("url", req.URL), zap.Strings("args", args))

	cmd := exec.Command(prefix[0], args...)
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		e.locator.Reset()
		return nil, fmt.Errorf("failed to start yt-dlp: %w: %v", utils.ErrToolUnavailable, err)
	}
	if req.OnStart != nil {
		req.OnStart()
	}

	// 两路输出都可能携带进度, 回调串行化
	var (
		mu     sync.Mutex
		stderr strings.Builder
		wg     sync.WaitGroup
	)
	emit := func(line string) {
		p, ok := ParseProgressLine(line)
		if !ok || onProgress == nil {
			return
		}
		mu.Lock()
		onProgress(p)
		mu.Unlock()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		err := consumeLines(stderrPipe, func(line string) {
			mu.Lock()
			stderr.WriteString(line)
			stderr.WriteByte('\n')
			mu.Unlock()
			emit(line)
		})
		if err != nil {
			log.Warn("stderr scan stopped", zap.Error(err))
		}
	}()

	if err := consumeLines(stdoutPipe, emit); err != nil {
		log.Warn("stdout scan stopped", zap.Error(err))
	}
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			log.Warn("yt-dlp download failed",
				zap.Int("exit_code", exitErr.ExitCode()),
				zap.String("stderr", stderr.String()))
			return nil, &utils.ProcessError{ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return nil, fmt.Errorf("yt-dlp failed: %w", err)
	}

	path, err := e.files.FindByJobID(req.JobID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrYTDLPFailed, err)
	}
	size, err := e.files.GetFileSize(path)
	if err != nil {
		return nil, err
	}

	log.Info("download completed", zap.String("path", path), zap.Int64("size", size))
	return &Result{FilePath: path, FileSize: size}, nil
}

// buildArgs 构建下载参数
func (e *Executor) buildArgs(req DownloadRequest) []string {
	args := []string{
		"--output", e.files.OutputTemplate(req.JobID),
		"--format", BuildFormatSelector(req.Format, req.Quality),
		"--newline",
		"--no-playlist",
	}
	if req.Format == "mp3" {
		args = append(args, "--extract-audio", "--audio-format", "mp3")
	}
	args = append(args, e.opts.commonArgs(req.URL)...)
	return append(args, req.URL)
}

var heightRe = regexp.MustCompile(`^(\d+)p$`)

// BuildFormatSelector 构建格式选择字符串
func BuildFormatSelector(format, quality string) string {
	if format == "mp3" || quality == "audio" {
		return "bestaudio/best"
	}

	switch strings.ToLower(quality) {
	case "4k":
		quality = "2160p"
	case "2k":
		quality = "1440p"
	}
	if m := heightRe.FindStringSubmatch(quality); len(m) == 2 {
		return fmt.Sprintf("best[height<=%s]", m[1])
	}
	return "best"
}
