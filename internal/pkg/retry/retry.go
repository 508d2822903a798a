// Package retry runs an operation with exponential backoff.
package retry

import (
	"context"
	"time"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
)

// Policy 控制重试次数、退避节奏与错误分类。
// Retryable 为 nil 时所有错误视作瞬态。
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Retryable   func(error) bool
}

func (p Policy) withDefaults() Policy {
	out := p
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = defaultMaxAttempts
	}
	if out.BaseDelay <= 0 {
		out.BaseDelay = defaultBaseDelay
	}
	return out
}

// Do 执行 op，最多尝试 MaxAttempts 次。第 n 次失败后等待 BaseDelay*2^n
// 再重试（最后一次失败不再等待）；重试耗尽时返回最后一次的原始错误。
// 不可重试的错误立即返回；ctx 取消会中断退避等待。
func Do[T any](ctx context.Context, p Policy, op func() (T, error)) (T, error) {
	p = p.withDefaults()
	var zero T
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		out, err := op()
		if err == nil {
			return out, nil
		}
		lastErr = err
		if p.Retryable != nil && !p.Retryable(err) {
			return zero, err
		}
		if attempt == p.MaxAttempts-1 {
			break
		}
		if err := sleep(ctx, p.BaseDelay<<attempt); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
