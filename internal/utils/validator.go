package utils

import (
	"net/url"
	"regexp"
	"strings"
)

// trackingParams 规范化时移除的追踪参数
var trackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
	"fbclid", "gclid", "si", "igshid",
}

// IsValidURL 只接受带 host 的 http/https 绝对地址
func IsValidURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// NormalizeURL 去掉首尾空白与追踪参数; 无法解析时原样返回
func NormalizeURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || u.RawQuery == "" {
		return rawURL
	}

	query := u.Query()
	for _, name := range trackingParams {
		query.Del(name)
	}
	u.RawQuery = query.Encode()
	return u.String()
}

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

// StripTags 去除 HTML 标签并截断到 max 个字符
func StripTags(html string, max int) string {
	runes := []rune(htmlTagRe.ReplaceAllString(html, ""))
	if max > 0 && len(runes) > max {
		runes = runes[:max]
	}
	return string(runes)
}
