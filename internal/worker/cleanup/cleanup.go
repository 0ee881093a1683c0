// Package cleanup は期限切れ・サインアウト済みセッションの自動削除ジョブを提供する。
// 有効期限またはサインアウト時刻から保持期間（デフォルト720時間）を超過した
// セッションを定期バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/quora/internal/common/clock"
	"github.com/hitoshi/quora/internal/metrics"
)

// DefaultRetention はセッションの保持期間のデフォルト値。
const DefaultRetention = 720 * time.Hour

// SessionPurger は指定時刻より前に失効したセッションを削除するストアを表す。
// repository.SessionRepository が満たす。
type SessionPurger interface {
	DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error)
}

// CleanupJob は保持期間を超過したセッションの自動削除ジョブ。
// 冪等な削除処理を保証する。
type CleanupJob struct {
	sessions  SessionPurger
	clock     clock.Clock
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	Retention time.Duration // セッションの保持期間（デフォルト: 720h）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// mcがnilの場合はメトリクスを記録しない。
func NewCleanupJob(sessions SessionPurger, clk clock.Clock, mc metrics.MetricsCollector, logger *slog.Logger) *CleanupJob {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &CleanupJob{
		sessions:  sessions,
		clock:     clk,
		metrics:   mc,
		logger:    logger,
		Retention: DefaultRetention,
	}
}

// Run は保持期間を超過したセッションを削除し、削除件数を返す。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) (int64, error) {
	start := time.Now()
	cutoff := j.clock.Now().Add(-j.Retention)

	deletedCount, err := j.sessions.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Duration("retention", j.Retention),
		)
		return 0, fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	j.metrics.RecordSessionsPurged(deletedCount)
	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Time("cutoff", cutoff),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return deletedCount, nil
}

// Start は指定間隔のティッカーでジョブを起動する。
// 起動直後に1回実行し、コンテキストがキャンセルされるまで実行を継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("セッションクリーンアップを開始しました",
		slog.Duration("interval", interval),
		slog.Duration("retention", j.Retention),
	)

	// エラーはRun内でログ出力済み
	_, _ = j.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("セッションクリーンアップを停止しました")
			return
		case <-ticker.C:
			_, _ = j.Run(ctx)
		}
	}
}
