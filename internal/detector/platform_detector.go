package detector

import (
	"net/url"
	"strings"

	"github.com/rkobroo/Ownrkoapi/internal/utils"
)

// Platform 平台标签
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
	PlatformTwitter   Platform = "twitter"
	PlatformFacebook  Platform = "facebook"
	PlatformUnknown   Platform = "unknown"
)

// Platforms 所有已知平台, 顺序即匹配优先级
var Platforms = []Platform{
	PlatformYouTube,
	PlatformTikTok,
	PlatformInstagram,
	PlatformTwitter,
	PlatformFacebook,
}

func (p Platform) String() string {
	return string(p)
}

// domainRule 平台域名片段
type domainRule struct {
	platform Platform
	domains  []string
}

// PlatformDetector 平台检测器
type PlatformDetector struct {
	rules []domainRule
}

// NewPlatformDetector 创建平台检测器
func NewPlatformDetector() *PlatformDetector {
	return &PlatformDetector{
		rules: []domainRule{
			{PlatformYouTube, []string{"youtube.com", "youtu.be"}},
			{PlatformTikTok, []string{"tiktok.com", "vt.tiktok.com", "vm.tiktok.com"}},
			{PlatformInstagram, []string{"instagram.com"}},
			{PlatformTwitter, []string{"twitter.com", "x.com"}},
			{PlatformFacebook, []string{"facebook.com", "fb.watch"}},
		},
	}
}

// Classify 按主机名片段匹配平台, 先匹配者胜出
func (d *PlatformDetector) Classify(rawURL string) Platform {
	host := hostname(rawURL)
	if host == "" {
		return PlatformUnknown
	}

	for _, rule := range d.rules {
		for _, domain := range rule.domains {
			if strings.Contains(host, domain) {
				return rule.platform
			}
		}
	}
	return PlatformUnknown
}

// IsSupported URL 是否属于任一已知平台; 格式错误返回 false
func (d *PlatformDetector) IsSupported(rawURL string) bool {
	if !utils.IsValidURL(rawURL) {
		return false
	}
	return d.Classify(rawURL) != PlatformUnknown
}

// Detect 检测URL所属平台
func (d *PlatformDetector) Detect(rawURL string) (Platform, error) {
	// 先验证URL格式
	if !utils.IsValidURL(rawURL) {
		return PlatformUnknown, utils.ErrInvalidURL
	}

	platform := d.Classify(rawURL)
	if platform == PlatformUnknown {
		return PlatformUnknown, utils.ErrUnsupportedPlatform
	}
	return platform, nil
}

// hostname 解析失败时返回空串
func hostname(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
