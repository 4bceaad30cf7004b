package storage

import (
	"mime"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	illegalChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	edgeTrim     = regexp.MustCompile(`^[\s.]+|[\s.]+$`)
)

const maxFilenameLen = 200

// SanitizeFilename 清理文件名, 移除非法字符
func SanitizeFilename(name string) string {
	if name == "" {
		return ""
	}

	clean := illegalChars.ReplaceAllString(name, "_")
	clean = edgeTrim.ReplaceAllString(clean, "")

	if len(clean) > maxFilenameLen {
		// 按 rune 截断避免切断多字节字符
		runes := []rune(clean)
		for len(string(runes)) > maxFilenameLen {
			runes = runes[:len(runes)-1]
		}
		clean = string(runes)
	}
	return clean
}

// DownloadFilename 响应中给用户的文件名: 标题 + 实际扩展名
func DownloadFilename(title, filePath, fallback string) string {
	ext := filepath.Ext(filePath)
	name := SanitizeFilename(title)
	if name == "" {
		name = fallback
	}
	return name + ext
}

// ContentType 根据扩展名推断 MIME 类型
func ContentType(filePath string) string {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
