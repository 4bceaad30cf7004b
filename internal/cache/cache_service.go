package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rkobroo/Ownrkoapi/internal/models"
	"github.com/rkobroo/Ownrkoapi/internal/utils"
)

const keyPrefix = "parser:url:"

// Service 解析结果缓存, 以规范化后的 URL 为键
type Service struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewService 创建缓存服务; ttl <= 0 表示不过期
func NewService(rdb redis.Cmdable, ttl time.Duration) *Service {
	if ttl < 0 {
		ttl = 0
	}
	return &Service{rdb: rdb, ttl: ttl}
}

// Get 未命中返回 utils.ErrCacheMiss; 其他错误表示 redis 不可用或数据损坏
func (s *Service) Get(ctx context.Context, url string) (*models.VideoData, error) {
	raw, err := s.rdb.Get(ctx, cacheKey(url)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, utils.ErrCacheMiss
	case err != nil:
		return nil, fmt.Errorf("cache get %s: %w", url, err)
	}

	data := new(models.VideoData)
	if err := json.Unmarshal(raw, data); err != nil {
		// 损坏的条目直接丢弃
		s.rdb.Del(ctx, cacheKey(url))
		return nil, fmt.Errorf("cache decode %s: %w", url, err)
	}
	return data, nil
}

// Set 写入解析结果
func (s *Service) Set(ctx context.Context, url string, data *models.VideoData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", url, err)
	}
	if err := s.rdb.Set(ctx, cacheKey(url), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", url, err)
	}
	return nil
}

// Invalidate 删除一条缓存
func (s *Service) Invalidate(ctx context.Context, url string) error {
	return s.rdb.Del(ctx, cacheKey(url)).Err()
}

func cacheKey(url string) string {
	sum := md5.Sum([]byte(url))
	return keyPrefix + hex.EncodeToString(sum[:])
}
