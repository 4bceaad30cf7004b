package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rkobroo/Ownrkoapi/internal/repository"
)

// RedisSubscriber 基于 redis pub/sub 的订阅
type RedisSubscriber struct {
	rdb *redis.Client
}

// NewRedisSubscriber 创建 redis 订阅器
func NewRedisSubscriber(rdb *redis.Client) *RedisSubscriber {
	return &RedisSubscriber{rdb: rdb}
}

// Subscribe 订阅频道, 确认订阅成功后返回
func (s *RedisSubscriber) Subscribe(ctx context.Context, channel string) (<-chan string, func() error, error) {
	pubsub := s.rdb.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe %s: %w", channel, err)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			select {
			case out <- msg.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, pubsub.Close, nil
}

// StorePoller 未配置 redis 时轮询任务存储, 状态变化时推送
type StorePoller struct {
	store    repository.JobStore
	interval time.Duration
	logger   *zap.Logger
}

// NewStorePoller 创建轮询订阅器
func NewStorePoller(store repository.JobStore, interval time.Duration, logger *zap.Logger) *StorePoller {
	return &StorePoller{store: store, interval: interval, logger: logger}
}

// Subscribe channel 形如 progress:<jobID>
func (p *StorePoller) Subscribe(ctx context.Context, channel string) (<-chan string, func() error, error) {
	var jobID string
	if _, err := fmt.Sscanf(channel, "progress:%s", &jobID); err != nil {
		return nil, nil, fmt.Errorf("invalid progress channel %q", channel)
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan string)
	go func() {
		defer close(out)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		var last time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			job, err := p.store.Get(ctx, jobID)
			if err != nil {
				p.logger.Debug("progress poll failed", zap.String("job_id", jobID), zap.Error(err))
				continue
			}
			if job == nil {
				return
			}
			if !job.UpdatedAt.After(last) {
				continue
			}
			last = job.UpdatedAt

			data, err := json.Marshal(job.ToProgress())
			if err != nil {
				continue
			}
			select {
			case out <- string(data):
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() error { cancel(); return nil }, nil
}
