// Package cleanup は失効リストの期限切れエントリを削除するジョブを提供する。
// トークンのexpを過ぎたエントリは検証時点で既に拒否されるため、保持する必要がない。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Purger は期限切れ失効エントリの削除インターフェース。
// repository.RevocationRepositoryの部分集合として定義する。
type Purger interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// PurgeRecorder は削除件数の記録インターフェース。
type PurgeRecorder interface {
	RecordRevocationsPurged(count int64)
}

// CleanupJob は期限切れ失効エントリの削除ジョブ。
// 冪等で、削除対象がない場合もエラーにならない。
type CleanupJob struct {
	purger   Purger
	recorder PurgeRecorder
	logger   *slog.Logger
	timeout  time.Duration
	now      func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。
// recorderはnilでもよい。timeoutは1回の削除処理に許すストア呼び出し時間。
func NewCleanupJob(purger Purger, recorder PurgeRecorder, logger *slog.Logger, timeout time.Duration) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CleanupJob{
		purger:   purger,
		recorder: recorder,
		logger:   logger,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Run は現在時刻より前に期限切れとなった失効エントリを削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	cutoff := j.now()

	runCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	deleted, err := j.purger.DeleteExpired(runCtx, cutoff)
	if err != nil {
		j.logger.Error("失効リストのクリーンアップに失敗しました",
			slog.String("error", err.Error()),
			slog.Time("cutoff", cutoff),
		)
		return fmt.Errorf("failed to purge expired revocations: %w", err)
	}

	if j.recorder != nil {
		j.recorder.RecordRevocationsPurged(deleted)
	}

	j.logger.Info("失効リストのクリーンアップが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Time("cutoff", cutoff),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start は起動直後に1回、その後intervalごとにRunを実行する。
// ctxがキャンセルされるまでブロックする。Runの失敗はログに記録して次回に持ち越す。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	j.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *CleanupJob) runOnce(ctx context.Context) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("クリーンアップジョブが失敗しました。次回の実行で再試行します", slog.String("error", err.Error()))
	}
}
