// Package fetch はプロジェクトの活動報告フィードをバックグラウンドで取得する。
// スケジューラ、フェッチャー、リトライ/バックオフ戦略を含む。
package fetch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/milijuli/sewa/internal/model"
	"github.com/milijuli/sewa/internal/repository"
)

// SourceFetcher は取得元1件のフェッチを実行するインターフェース。
type SourceFetcher interface {
	Fetch(ctx context.Context, src *model.UpdateSource) error
}

// Scheduler はフェッチ対象の取得元を定期的に取り出し、並列数を制限してフェッチする。
type Scheduler struct {
	sources        repository.UpdateSourceRepository
	fetcher        SourceFetcher
	logger         *slog.Logger
	maxConcurrency int
}

// NewScheduler はSchedulerを生成する。maxConcurrencyが0以下の場合は10を使う。
func NewScheduler(
	sources repository.UpdateSourceRepository,
	fetcher SourceFetcher,
	logger *slog.Logger,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	return &Scheduler{
		sources:        sources,
		fetcher:        fetcher,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start はintervalごとにRunOnceを実行する。起動直後に1回実行し、ctxのキャンセルで戻る。
// 実行中のサイクルは完了を待ってから戻る。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("フェッチスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	for {
		if err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("フェッチサイクルの実行に失敗しました",
				slog.String("error", err.Error()),
			)
		}
		select {
		case <-ctx.Done():
			s.logger.Info("フェッチスケジューラを停止しました")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce はフェッチ対象の取得元を取得し、semaphoreで並列数を制限してフェッチする。
// ctxがキャンセルされた場合は未着手の取得元をスキップする。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	due, err := s.sources.ListDueForFetch(ctx)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		s.logger.Debug("フェッチ対象の取得元はありません")
		return nil
	}

	s.logger.Info("フェッチサイクルを開始します", slog.Int("source_count", len(due)))

	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

dispatch:
	for _, src := range due {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break dispatch
		}
		wg.Add(1)
		go func(src *model.UpdateSource) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := s.fetcher.Fetch(ctx, src); err != nil {
				s.logger.Error("取得元のフェッチに失敗しました",
					slog.String("source_id", src.ID),
					slog.String("feed_url", src.FeedURL),
					slog.String("error", err.Error()),
				)
			}
		}(src)
	}
	wg.Wait()

	s.logger.Info("フェッチサイクルが完了しました",
		slog.Int("source_count", len(due)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return ctx.Err()
}
