// Package cleanup は期限切れデータの定期削除ジョブを提供する。
// 期限切れセッション、保持期間を過ぎた生成ログ、送信済みメール記録を対象とする。
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// SessionPurger は期限切れセッションの削除インターフェース。
type SessionPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// RetentionPurger は指定時刻より古いレコードの削除インターフェース。
// GenerationRepositoryとOutboxRepositoryが実装する。
type RetentionPurger interface {
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// Job は期限切れデータの削除ジョブ。冪等であり、削除対象がなくてもエラーにならない。
type Job struct {
	sessions    SessionPurger
	generations RetentionPurger
	outbox      RetentionPurger
	logger      *slog.Logger

	// GenerationRetention は生成ログの保持期間（デフォルト: 720h）。
	GenerationRetention time.Duration
	// OutboxRetention はメール記録の保持期間（デフォルト: 90日）。
	OutboxRetention time.Duration

	now func() time.Time
}

// NewJob は新しいJobを生成する。generationsとoutboxはnil可で、nilの対象はスキップする。
func NewJob(sessions SessionPurger, generations, outbox RetentionPurger, logger *slog.Logger) *Job {
	return &Job{
		sessions:            sessions,
		generations:         generations,
		outbox:              outbox,
		logger:              logger,
		GenerationRetention: 720 * time.Hour,
		OutboxRetention:     90 * 24 * time.Hour,
		now:                 time.Now,
	}
}

// Run は全対象の削除を1回実行する。
// 1つの対象が失敗しても残りは実行し、失敗をまとめて返す。
func (j *Job) Run(ctx context.Context) error {
	start := j.now()
	var errs []error

	run := func(target string, fn func() (int64, error)) {
		deleted, err := fn()
		if err != nil {
			j.logger.Error("クリーンアップに失敗しました",
				slog.String("target", target),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%sの削除に失敗: %w", target, err))
			return
		}
		j.logger.Info("クリーンアップが完了しました",
			slog.String("target", target),
			slog.Int64("deleted_count", deleted),
		)
	}

	if j.sessions != nil {
		run("sessions", func() (int64, error) {
			return j.sessions.DeleteExpired(ctx)
		})
	}
	if j.generations != nil {
		run("generations", func() (int64, error) {
			return j.generations.DeleteOlderThan(ctx, start.Add(-j.GenerationRetention))
		})
	}
	if j.outbox != nil {
		run("email_outbox", func() (int64, error) {
			return j.outbox.DeleteOlderThan(ctx, start.Add(-j.OutboxRetention))
		})
	}

	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int("failed_targets", len(errs)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return errors.Join(errs...)
}

// Start はintervalごとにRunを実行する。起動直後に1回実行し、ctxのキャンセルで戻る。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		// 失敗はRun内でログ済み
		_ = j.Run(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
