package models

import (
	"fmt"
	"net/url"
	"strings"
)

// Thumbnail 缩略图
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Author 作者信息
type Author struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// VideoMetadata 标准化后的视频元数据, 所有字段均有值
type VideoMetadata struct {
	Platform        string    `json:"platform"`
	VideoID         string    `json:"video_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Duration        string    `json:"duration"`
	DurationSeconds int       `json:"duration_seconds"`
	Thumbnail       Thumbnail `json:"thumbnail"`
	Author          Author    `json:"author"`
	UploadDate      string    `json:"upload_date"`
	ViewCount       int64     `json:"view_count"`
}

// DownloadLinks 下载链接集合 (quality label -> URL)
type DownloadLinks struct {
	Video map[string]string `json:"video"`
	Audio map[string]string `json:"audio"`
}

// VideoData 成功响应中的 data 字段
type VideoData struct {
	VideoMetadata
	MainPoints    []string      `json:"main_points"`
	AISummary     string        `json:"ai_summary"`
	DownloadLinks DownloadLinks `json:"download_links"`
}

// FormatDuration 秒数格式化为 m:ss
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "0:00"
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// FormatViews 播放量格式化, 如 1.2M views
func FormatViews(views int64) string {
	switch {
	case views <= 0:
		return "0 views"
	case views >= 1_000_000:
		return fmt.Sprintf("%.1fM views", float64(views)/1_000_000)
	case views >= 1_000:
		return fmt.Sprintf("%.1fK views", float64(views)/1_000)
	default:
		return fmt.Sprintf("%d views", views)
	}
}

var (
	videoRenditions = []struct{ label, path, suffix string }{
		{"720p", "video/720p", "_720p.mp4"},
		{"480p", "video/480p", "_480p.mp4"},
		{"360p", "video/360p", "_360p.mp4"},
	}
	audioRenditions = []struct{ label, path, suffix string }{
		{"mp3_128", "audio/mp3/128", "_128kbps.mp3"},
		{"mp3_320", "audio/mp3/320", "_320kbps.mp3"},
	}
)

// encodeComponent 百分号编码, 空格编码为 %20 而不是 +
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// GenerateDownloadLinks 根据元数据生成下载链接, filename 参数做百分号编码
func GenerateDownloadLinks(baseURL string, meta *VideoMetadata) DownloadLinks {
	baseURL = strings.TrimRight(baseURL, "/")
	videoID := url.PathEscape(meta.VideoID)

	links := DownloadLinks{
		Video: make(map[string]string, len(videoRenditions)),
		Audio: make(map[string]string, len(audioRenditions)),
	}
	for _, r := range videoRenditions {
		links.Video[r.label] = fmt.Sprintf("%s/api/download/%s/%s?filename=%s",
			baseURL, r.path, videoID, encodeComponent(meta.Title+r.suffix))
	}
	for _, r := range audioRenditions {
		links.Audio[r.label] = fmt.Sprintf("%s/api/download/%s/%s?filename=%s",
			baseURL, r.path, videoID, encodeComponent(meta.Title+r.suffix))
	}
	return links
}
