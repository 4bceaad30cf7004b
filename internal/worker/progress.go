package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rkobroo/Ownrkoapi/internal/models"
)

// Publisher 进度消息发布
type Publisher interface {
	Publish(ctx context.Context, msg *models.ProgressMessage) error
}

// ProgressChannel 任务进度频道名
func ProgressChannel(jobID string) string {
	return fmt.Sprintf("progress:%s", jobID)
}

// ProgressPublisher 基于 redis pub/sub 的进度发布器
type ProgressPublisher struct {
	redis  *redis.Client
	logger *zap.Logger
}

// NewProgressPublisher 创建进度发布器
func NewProgressPublisher(redisClient *redis.Client, logger *zap.Logger) *ProgressPublisher {
	return &ProgressPublisher{redis: redisClient, logger: logger}
}

// Publish 发布进度消息
func (p *ProgressPublisher) Publish(ctx context.Context, msg *models.ProgressMessage) error {
	channel := ProgressChannel(msg.JobID)

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal progress message: %w", err)
	}
	if err := p.redis.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish progress: %w", err)
	}

	p.logger.Debug("published progress",
		zap.String("channel", channel),
		zap.String("status", string(msg.Status)),
		zap.Float64("percent", msg.Percent))
	return nil
}

// NopPublisher 未配置 redis 时丢弃进度消息
type NopPublisher struct{}

// Publish 不做任何事
func (NopPublisher) Publish(context.Context, *models.ProgressMessage) error { return nil }
