package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/rkobroo/Ownrkoapi/internal/adapter"
	"github.com/rkobroo/Ownrkoapi/internal/detector"
	"github.com/rkobroo/Ownrkoapi/internal/models"
	"github.com/rkobroo/Ownrkoapi/internal/summary"
	"github.com/rkobroo/Ownrkoapi/internal/utils"
)

// ExtractorRegistry 按平台选择提取器
type ExtractorRegistry interface {
	For(platform detector.Platform) (adapter.Extractor, error)
}

// MetadataCache 解析结果缓存
type MetadataCache interface {
	Get(ctx context.Context, url string) (*models.VideoData, error)
	Set(ctx context.Context, url string, result *models.VideoData) error
}

// ParserService 解析服务
type ParserService struct {
	detector   *detector.PlatformDetector
	registry   ExtractorRegistry
	summarizer summary.Summarizer
	cache      MetadataCache
	baseURL    string
	logger     *zap.Logger
}

// NewParserService 创建解析服务; cache 可为 nil
func NewParserService(
	registry ExtractorRegistry,
	summarizer summary.Summarizer,
	cache MetadataCache,
	baseURL string,
	logger *zap.Logger,
) *ParserService {
	return &ParserService{
		detector:   detector.NewPlatformDetector(),
		registry:   registry,
		summarizer: summarizer,
		cache:      cache,
		baseURL:    baseURL,
		logger:     logger,
	}
}

// ParseURL 解析视频URL
func (s *ParserService) ParseURL(ctx context.Context, rawURL string, skipCache bool) (*models.VideoData, error) {
	// 1. 标准化URL
	url := utils.NormalizeURL(rawURL)

	// 2. 验证并检测平台
	platform, err := s.detector.Detect(url)
	if err != nil {
		return nil, err
	}

	// 3. 检查缓存
	if s.cache != nil && !skipCache {
		cached, err := s.cache.Get(ctx, url)
		if err == nil {
			s.logger.Info("cache hit", zap.String("url", url))
			return cached, nil
		}
		if !errors.Is(err, utils.ErrCacheMiss) {
			s.logger.Warn("cache get failed", zap.Error(err))
		}
	}

	// 4. 获取对应的提取器
	extractor, err := s.registry.For(platform)
	if err != nil {
		return nil, err
	}

	s.logger.Info("parsing video",
		zap.String("url", url),
		zap.String("platform", platform.String()))

	meta, err := extractor.Extract(ctx, url)
	if err != nil {
		s.logger.Error("parse failed",
			zap.String("url", url),
			zap.Error(err))
		return nil, err
	}

	// 5. 摘要与要点
	result := &models.VideoData{
		VideoMetadata: *meta,
		AISummary:     s.summarize(ctx, meta),
		MainPoints:    s.mainPoints(ctx, meta),
		DownloadLinks: models.GenerateDownloadLinks(s.baseURL, meta),
	}

	// 6. 写入缓存
	if s.cache != nil {
		if err := s.cache.Set(ctx, url, result); err != nil {
			s.logger.Warn("cache set failed", zap.Error(err))
		}
	}

	s.logger.Info("parse success",
		zap.String("url", url),
		zap.String("video_id", result.VideoID))
	return result, nil
}

// summarize 摘要失败时退回默认策略
func (s *ParserService) summarize(ctx context.Context, meta *models.VideoMetadata) string {
	text, err := s.summarizer.Summarize(ctx, meta.Title, meta.Description)
	if err != nil {
		s.logger.Warn("summary failed, using default", zap.Error(err))
		text, _ = summary.Default{}.Summarize(ctx, meta.Title, meta.Description)
	}
	return text
}

func (s *ParserService) mainPoints(ctx context.Context, meta *models.VideoMetadata) []string {
	points, err := s.summarizer.MainPoints(ctx, meta.Title, meta.Description)
	if err != nil {
		s.logger.Warn("main points failed, using default", zap.Error(err))
		points, _ = summary.Default{}.MainPoints(ctx, meta.Title, meta.Description)
	}
	if points == nil {
		points = []string{}
	}
	return points
}

// ValidateURL 验证URL是否可以解析, 返回平台与原因
func (s *ParserService) ValidateURL(rawURL string) (bool, string, string) {
	url := utils.NormalizeURL(rawURL)

	platform, err := s.detector.Detect(url)
	if err != nil {
		return false, "", err.Error()
	}
	if _, err := s.registry.For(platform); err != nil {
		return false, platform.String(), err.Error()
	}
	return true, platform.String(), ""
}
