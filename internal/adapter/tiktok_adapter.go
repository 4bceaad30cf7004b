package adapter

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rkobroo/Ownrkoapi/internal/detector"
	"github.com/rkobroo/Ownrkoapi/internal/models"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

var tiktokIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:tiktok\.com/@[^/]+/video/|tiktok\.com/t/)(\d+)`),
	regexp.MustCompile(`vm\.tiktok\.com/([A-Za-z0-9]+)`),
	regexp.MustCompile(`vt\.tiktok\.com/([A-Za-z0-9]+)`),
}

// TikTokExtractor TikTok 占位元数据; 短链先尝试解析跳转
type TikTokExtractor struct {
	http   *http.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewTikTokExtractor 创建 TikTok 提取器
func NewTikTokExtractor(httpClient *http.Client, logger *zap.Logger) *TikTokExtractor {
	return &TikTokExtractor{http: httpClient, logger: logger, now: time.Now}
}

// Extract 提取 TikTok 元数据, 解析不到 ID 时使用 unknown
func (e *TikTokExtractor) Extract(ctx context.Context, rawURL string) (*models.VideoMetadata, error) {
	finalURL := rawURL
	if isTikTokShortLink(rawURL) {
		finalURL = e.resolve(ctx, rawURL)
	}

	id := firstSubmatch(finalURL, tiktokIDPatterns...)
	if id == "" && finalURL != rawURL {
		id = firstSubmatch(rawURL, tiktokIDPatterns...)
	}
	if id == "" {
		id = unknownID
	}

	meta := stubMetadata(detector.PlatformTikTok, id, e.now)
	meta.Title = "TikTok Video (" + id + ")"
	meta.Description = "TikTok video content - full metadata extraction requires special API access"
	meta.Thumbnail = models.Thumbnail{
		URL:    "https://via.placeholder.com/720x720/000000/FFFFFF?text=TikTok+Video",
		Width:  720,
		Height: 720,
	}
	meta.Author = models.Author{Name: "TikTok User", URL: finalURL}
	return meta, nil
}

func isTikTokShortLink(rawURL string) bool {
	return strings.Contains(rawURL, "vt.tiktok.com") || strings.Contains(rawURL, "vm.tiktok.com")
}

// resolve 跟随跳转得到最终地址, 失败时返回原地址
func (e *TikTokExtractor) resolve(ctx context.Context, rawURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return rawURL
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := e.http.Do(req)
	if err != nil {
		e.logger.Debug("tiktok short link resolution failed", zap.String("url", rawURL), zap.Error(err))
		return rawURL
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.Request == nil || resp.Request.URL == nil {
		return rawURL
	}
	return resp.Request.URL.String()
}
