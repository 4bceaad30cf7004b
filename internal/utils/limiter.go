package utils

import "context"

// ConcurrencyLimiter 并发限制器
type ConcurrencyLimiter struct {
	sem chan struct{}
}

// NewConcurrencyLimiter 创建并发限制器, max<=0 时不限制
func NewConcurrencyLimiter(max int) *ConcurrencyLimiter {
	if max <= 0 {
		return &ConcurrencyLimiter{}
	}
	return &ConcurrencyLimiter{
		sem: make(chan struct{}, max),
	}
}

// Acquire 获取信号量, 调用方放弃等待时返回 ctx.Err()
func (l *ConcurrencyLimiter) Acquire(ctx context.Context) error {
	if l.sem == nil {
		return nil
	}
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release 释放信号量
func (l *ConcurrencyLimiter) Release() {
	if l.sem == nil {
		return
	}
	<-l.sem
}

// InUse 当前占用数
func (l *ConcurrencyLimiter) InUse() int {
	return len(l.sem)
}
