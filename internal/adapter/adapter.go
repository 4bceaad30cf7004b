package adapter

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/rkobroo/Ownrkoapi/internal/config"
	"github.com/rkobroo/Ownrkoapi/internal/detector"
	"github.com/rkobroo/Ownrkoapi/internal/models"
	"github.com/rkobroo/Ownrkoapi/internal/utils"
)

// Extractor 平台元数据提取器
type Extractor interface {
	// Extract 提取视频元数据, 结果所有字段均已填充
	Extract(ctx context.Context, url string) (*models.VideoMetadata, error)
}

// unknownID 无法提取 ID 时的占位值
const unknownID = "unknown"

// Registry 按平台选择提取器
type Registry struct {
	youtube   Extractor
	tiktok    Extractor
	instagram Extractor
	twitter   Extractor
	facebook  Extractor
	enabled   func(platform string) bool
}

// NewRegistry 创建提取器注册表
func NewRegistry(cfg *config.Config, httpClient *http.Client, logger *zap.Logger) *Registry {
	oembed := newOEmbedClient(httpClient, cfg.OEmbed.UserAgent)
	return &Registry{
		youtube:   NewYouTubeExtractor(newKkdaiClient(httpClient), oembed, logger),
		tiktok:    NewTikTokExtractor(httpClient, logger),
		instagram: NewInstagramExtractor(oembed, cfg.OEmbed.InstagramAccessToken, logger),
		twitter:   NewTwitterExtractor(oembed, logger),
		facebook:  NewFacebookExtractor(),
		enabled:   cfg.PlatformEnabled,
	}
}

// For 返回平台对应的提取器
func (r *Registry) For(platform detector.Platform) (Extractor, error) {
	var ext Extractor
	switch platform {
	case detector.PlatformYouTube:
		ext = r.youtube
	case detector.PlatformTikTok:
		ext = r.tiktok
	case detector.PlatformInstagram:
		ext = r.instagram
	case detector.PlatformTwitter:
		ext = r.twitter
	case detector.PlatformFacebook:
		ext = r.facebook
	default:
		return nil, utils.ErrUnsupportedPlatform
	}

	if r.enabled != nil && !r.enabled(platform.String()) {
		return nil, utils.ErrNotYetImplemented
	}
	return ext, nil
}

// today 当前日期 YYYY-MM-DD
func today(now func() time.Time) string {
	return now().UTC().Format("2006-01-02")
}

// stubMetadata 平台占位记录
func stubMetadata(platform detector.Platform, id string, now func() time.Time) *models.VideoMetadata {
	return &models.VideoMetadata{
		Platform:        platform.String(),
		VideoID:         id,
		Duration:        "Unknown",
		DurationSeconds: 0,
		UploadDate:      today(now),
	}
}

// firstSubmatch 按顺序尝试正则, 返回第一个捕获组
func firstSubmatch(s string, patterns ...*regexp.Regexp) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(s); len(m) > 1 && m[1] != "" {
			return m[1]
		}
	}
	return ""
}
