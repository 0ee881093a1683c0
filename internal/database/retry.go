package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Pinger は接続確認が可能なストア。*sql.DBが満たす。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc は関数をPingerとして扱うアダプター。
type PingFunc func(ctx context.Context) error

// PingContext はf(ctx)を呼び出す。
func (f PingFunc) PingContext(ctx context.Context) error {
	return f(ctx)
}

// RetryPolicy は接続確認の再試行設定。
type RetryPolicy struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryPolicy は起動時の接続確認に使う既定値。
// 初回500ms、2倍ずつ増加、最大8秒。
func DefaultRetryPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		Attempts:     attempts,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
	}
}

// Backoff は連続失敗回数に基づいて指数バックオフ遅延を計算する。
func (p RetryPolicy) Backoff(failures int) time.Duration {
	delay := p.InitialDelay
	for i := 0; i < failures; i++ {
		delay *= 2
		if delay > p.MaxDelay {
			return p.MaxDelay
		}
	}
	return delay
}

// PingWithRetry は接続確認が成功するまで最大Attempts回試行する。
// Attemptsが1未満の場合は1回だけ試行する。
func PingWithRetry(ctx context.Context, p Pinger, policy RetryPolicy, name string) error {
	attempts := max(policy.Attempts, 1)

	var err error
	for i := 0; i < attempts; i++ {
		if err = p.PingContext(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}

		delay := policy.Backoff(i)
		slog.Warn("connection check failed, retrying",
			slog.String("target", name),
			slog.Int("attempt", i+1),
			slog.Duration("retry_in", delay),
			slog.String("error", err.Error()),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w", name, ctx.Err())
		case <-timer.C:
		}
	}
	return fmt.Errorf("%s: %d回試行しましたが接続できませんでした: %w", name, attempts, err)
}
