package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"
)

// ErrFileNotFound 下载目录中不存在任务文件
var ErrFileNotFound = errors.New("downloaded file not found")

// FileManager 下载目录管理
type FileManager struct {
	baseDir string
	logger  *zap.Logger
}

// NewFileManager 创建文件管理器
func NewFileManager(baseDir string, logger *zap.Logger) *FileManager {
	return &FileManager{baseDir: baseDir, logger: logger}
}

// BaseDir 下载目录
func (m *FileManager) BaseDir() string {
	return m.baseDir
}

// EnsureDir 确保下载目录存在
func (m *FileManager) EnsureDir() error {
	return os.MkdirAll(m.baseDir, 0o755)
}

// OutputTemplate yt-dlp 输出模板, 文件名以任务 ID 开头
func (m *FileManager) OutputTemplate(jobID string) string {
	return filepath.Join(m.baseDir, jobID+".%(ext)s")
}

// FindByJobID 按任务 ID 前缀查找下载完成的文件, 忽略 .part 临时文件
func (m *FileManager) FindByJobID(jobID string) (string, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrFileNotFound
		}
		return "", fmt.Errorf("failed to read downloads dir: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, jobID) {
			continue
		}
		if strings.HasSuffix(name, ".part") || strings.HasSuffix(name, ".ytdl") {
			continue
		}
		return filepath.Join(m.baseDir, name), nil
	}
	return "", ErrFileNotFound
}

// GetFileSize 获取文件大小
func (m *FileManager) GetFileSize(filePath string) (int64, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to get file info: %w", err)
	}
	return info.Size(), nil
}

// FileExists 检查文件是否存在
func (m *FileManager) FileExists(filePath string) bool {
	if filePath == "" {
		return false
	}
	_, err := os.Stat(filePath)
	return err == nil
}

// DeleteFile 删除文件, 文件已不存在视为成功
func (m *FileManager) DeleteFile(filePath string) error {
	if filePath == "" {
		return nil
	}
	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			m.logger.Debug("file already deleted", zap.String("path", filePath))
			return nil
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}
	m.logger.Info("deleted file", zap.String("path", filePath))
	return nil
}

// DiskUsage 磁盘使用情况
type DiskUsage struct {
	Total       uint64  `json:"total"`
	Available   uint64  `json:"available"`
	Used        uint64  `json:"used"`
	UsedPercent float64 `json:"used_percent"`
}

// CheckDiskSpace 检查下载目录所在磁盘空间
func (m *FileManager) CheckDiskSpace() (*DiskUsage, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(m.baseDir, &stat); err != nil {
		return nil, fmt.Errorf("failed to get disk stats: %w", err)
	}

	total := stat.Blocks * uint64(stat.Bsize)
	available := stat.Bavail * uint64(stat.Bsize)
	used := total - available
	var usedPercent float64
	if total > 0 {
		usedPercent = float64(used) / float64(total) * 100
	}

	return &DiskUsage{
		Total:       total,
		Available:   available,
		Used:        used,
		UsedPercent: usedPercent,
	}, nil
}
