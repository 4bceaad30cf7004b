package utils

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// ErrNoStrategies 策略列表为空
var ErrNoStrategies = errors.New("no strategies configured")

// Strategy 一个可失败的数据来源
type Strategy[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// FirstSuccess 按顺序执行策略, 第一个成功的结果胜出;
// 全部失败时返回聚合后的错误(multierr), 每个错误带策略名
func FirstSuccess[T any](ctx context.Context, strategies ...Strategy[T]) (T, error) {
	var zero T
	if len(strategies) == 0 {
		return zero, ErrNoStrategies
	}

	var errs error
	for _, s := range strategies {
		result, err := s.Run(ctx)
		if err == nil {
			return result, nil
		}
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", s.Name, err))
	}
	return zero, errs
}
