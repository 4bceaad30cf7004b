package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/rkobroo/Ownrkoapi/internal/config"
	"github.com/rkobroo/Ownrkoapi/internal/detector"
	"github.com/rkobroo/Ownrkoapi/internal/utils"
)

// VideoInfo yt-dlp --dump-json 输出的视频信息
type VideoInfo struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Duration    float64  `json:"duration"`
	Thumbnail   string   `json:"thumbnail"`
	Uploader    string   `json:"uploader"`
	Channel     string   `json:"channel"`
	UploadDate  string   `json:"upload_date"`
	ViewCount   int64    `json:"view_count"`
	WebpageURL  string   `json:"webpage_url"`
	Extractor   string   `json:"extractor_key"`
	Formats     []Format `json:"formats"`
}

// Format 单个可用格式
type Format struct {
	FormatID   string `json:"format_id"`
	Ext        string `json:"ext"`
	Height     int    `json:"height"`
	FormatNote string `json:"format_note"`
	Filesize   int64  `json:"filesize"`
	VCodec     string `json:"vcodec"`
	ACodec     string `json:"acodec"`
}

// ChannelName 优先 channel 字段, 其次 uploader
func (v *VideoInfo) ChannelName() string {
	if v.Channel != "" {
		return v.Channel
	}
	return v.Uploader
}

// Options 解析与下载共用的参数
type Options struct {
	Proxy           string
	CookiesDir      string
	DefaultArgs     []string
	PlatformArgs    map[string][]string
	PlatformCookies map[string]string
}

// NewOptions 从配置构建参数
func NewOptions(cfg *config.Config) Options {
	return Options{
		Proxy:           cfg.YTDLP.Proxy,
		CookiesDir:      cfg.YTDLP.CookiesDir,
		DefaultArgs:     cfg.YTDLP.DefaultArgs,
		PlatformArgs:    cfg.PlatformArgs(),
		PlatformCookies: cfg.PlatformCookies(),
	}
}

// commonArgs 默认参数、平台参数、cookie 与代理
func (o *Options) commonArgs(url string) []string {
	var args []string
	args = append(args, o.DefaultArgs...)

	platform := detector.NewPlatformDetector().Classify(url).String()
	if extra, ok := o.PlatformArgs[platform]; ok {
		args = append(args, extra...)
	}
	if cookieFile := o.cookieFile(platform); cookieFile != "" {
		args = append(args, "--cookies", cookieFile)
	}
	if o.Proxy != "" {
		args = append(args, "--proxy", o.Proxy)
	}
	return args
}

// cookieFile 平台静态配置优先, 其次 cookies_dir/<platform>.txt
func (o *Options) cookieFile(platform string) string {
	if path := o.PlatformCookies[platform]; path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	if o.CookiesDir == "" {
		return ""
	}
	path := filepath.Join(o.CookiesDir, platform+".txt")
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

// Wrapper yt-dlp 元数据解析
type Wrapper struct {
	locator *Locator
	opts    Options
	limiter *utils.ConcurrencyLimiter
	logger  *zap.Logger
}

// NewWrapper 创建解析器
func NewWrapper(locator *Locator, opts Options, maxConcurrent int, logger *zap.Logger) *Wrapper {
	return &Wrapper{
		locator: locator,
		opts:    opts,
		limiter: utils.NewConcurrencyLimiter(maxConcurrent),
		logger:  logger,
	}
}

// Analyze 获取视频信息, 不下载
func (w *Wrapper) Analyze(ctx context.Context, url string) (*VideoInfo, error) {
	if err := w.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer w.limiter.Release()

	prefix, err := w.locator.Command(ctx)
	if err != nil {
		return nil, err
	}

	args := append(append([]string(nil), prefix[1:]...), "--dump-json", "--no-download", "--no-playlist")
	args = append(args, w.opts.commonArgs(url)...)
	args = append(args, url)

	w.logger.Debug("analyzing video", zap.String("url", url), zap.Strings("args", args))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, prefix[0], args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", utils.ErrTimeout, ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			w.logger.Warn("yt-dlp analyze failed",
				zap.String("url", url),
				zap.Int("exit_code", exitErr.ExitCode()),
				zap.String("stderr", stderr.String()))
			return nil, &utils.ProcessError{ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		// 启动失败, 下次重新查找
		w.locator.Reset()
		return nil, fmt.Errorf("failed to start yt-dlp: %w: %v", utils.ErrToolUnavailable, err)
	}

	info, err := parseFirstJSONLine(stdout.Bytes())
	if err != nil {
		return nil, &utils.ParseError{Stderr: stderr.String(), Err: err}
	}
	return info, nil
}

// parseFirstJSONLine 取第一行以 { 开头且可解析的 JSON
func parseFirstJSONLine(output []byte) (*VideoInfo, error) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var lastErr error
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var info VideoInfo
		if err := json.Unmarshal([]byte(line), &info); err != nil {
			lastErr = err
			continue
		}
		return &info, nil
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("no JSON object in yt-dlp output")
}
