// Package generate はフィード生成のバックグラウンド処理を提供する。
// スケジューラ、オーケストレータ、リトライ/バックオフ戦略を含む。
package generate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/feedgen/internal/metrics"
	"github.com/hitoshi/feedgen/internal/model"
	"github.com/hitoshi/feedgen/internal/repository"
)

// FeedGeneratorService はフィード生成の実行インターフェース。
type FeedGeneratorService interface {
	// Generate は指定フィードの生成を1回実行する。
	// 一時的な失敗はエラーとして返し、呼び出し元がリトライ方針を適用する。
	Generate(ctx context.Context, feed *model.Feed) error
}

// Scheduler はフィード生成のスケジューリングと同時実行制御を行う。
// ティッカーで実行対象フィードを列挙し、processing件数による全体ゲートと
// アトミックなactive→processing遷移による単一実行ガードを通過したフィードを
// semaphoreパターンで並列実行する。
type Scheduler struct {
	feedRepo      repository.FeedRepository
	generator     FeedGeneratorService
	logger        *slog.Logger
	collector     metrics.MetricsCollector
	maxConcurrent int
	staleLease    time.Duration
	now           func() time.Time
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrentが0以下の場合はデフォルト値3を使用する。
// staleLeaseが0以下の場合はデフォルト値30分を使用する。
func NewScheduler(
	feedRepo repository.FeedRepository,
	generator FeedGeneratorService,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
	maxConcurrent int,
	staleLease time.Duration,
) *Scheduler {
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}
	if staleLease <= 0 {
		staleLease = 30 * time.Minute
	}
	return &Scheduler{
		feedRepo:      feedRepo,
		generator:     generator,
		logger:        logger,
		collector:     collector,
		maxConcurrent: maxConcurrent,
		staleLease:    staleLease,
		now:           time.Now,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("生成スケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrent", s.maxConcurrent),
		slog.Duration("stale_lease", s.staleLease),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("生成サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("生成スケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("生成サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は1回の生成サイクルを実行する。
// スタック回収→実行対象の列挙→全体ゲート→単一実行ガード→並列実行の順で処理する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := s.now()

	if err := s.ReclaimStale(ctx); err != nil {
		s.logger.Error("スタックしたフィードの回収に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	feeds, err := s.feedRepo.ListActive(ctx)
	if err != nil {
		return err
	}

	var due []*model.Feed
	for _, feed := range feeds {
		if ShouldRunFeed(feed, s.now()) {
			due = append(due, feed)
		}
	}

	if len(due) == 0 {
		s.logger.Info("生成対象のフィードはありません")
		return nil
	}

	s.logger.Info("生成サイクルを開始します",
		slog.Int("feed_count", len(due)),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, s.maxConcurrent)
	var wg sync.WaitGroup
	started := 0

	for _, feed := range due {
		// 全体ゲート: processing件数が上限未満の場合のみ開始する。
		// カウントは共有DBに対して行うため、複数ワーカーでも上限を共有する。
		ok, err := s.CanStartNewFeed(ctx)
		if err != nil {
			s.logger.Error("同時実行数の確認に失敗しました",
				slog.String("error", err.Error()),
			)
			break
		}
		if !ok {
			s.logger.Info("同時実行数の上限に達したため残りのフィードをスキップします",
				slog.Int("max_concurrent", s.maxConcurrent),
			)
			break
		}

		// 単一実行ガード: active→processingへ遷移できたフィードのみ実行する
		claimed, err := s.feedRepo.MarkProcessing(ctx, feed.ID, s.now())
		if err != nil {
			s.logger.Error("フィードの実行開始に失敗しました",
				slog.String("feed_id", feed.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !claimed {
			continue
		}
		feed.Status = model.FeedStatusProcessing
		started++

		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(f *model.Feed) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			if err := s.generator.Generate(ctx, f); err != nil {
				s.logger.Error("フィード生成に失敗しました",
					slog.String("feed_id", f.ID),
					slog.String("error", err.Error()),
				)
				s.HandleFailedFeed(ctx, f, err)
			}
		}(feed)
	}

	wg.Wait()

	duration := s.now().Sub(start)
	s.logger.Info("生成サイクルが完了しました",
		slog.Int("feed_count", started),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// CanStartNewFeed はprocessing状態のフィード数が上限未満かを判定する。
func (s *Scheduler) CanStartNewFeed(ctx context.Context) (bool, error) {
	count, err := s.feedRepo.CountByStatus(ctx, model.FeedStatusProcessing)
	if err != nil {
		return false, err
	}
	return count < s.maxConcurrent, nil
}

// HandleFailedFeed は一時的な実行失敗にリトライ方針を適用して永続化する。
// 既に恒久失敗状態のフィードには何もしない。
func (s *Scheduler) HandleFailedFeed(ctx context.Context, feed *model.Feed, runErr error) {
	if feed.Status == model.FeedStatusFailed {
		return
	}

	now := s.now()
	permanent := ApplyFailure(feed, runErr.Error(), now)

	if permanent {
		s.logger.Error("リトライ上限を超過したためフィードを失敗状態にします",
			slog.String("feed_id", feed.ID),
			slog.Int("retry_count", feed.Settings.RetryCount),
			slog.String("error", runErr.Error()),
		)
		s.collector.RecordRunFailure(feed.ID, "retries_exhausted")
	} else {
		s.logger.Warn("フィード生成をリトライ予約しました",
			slog.String("feed_id", feed.ID),
			slog.Int("retry_count", feed.Settings.RetryCount),
			slog.Time("next_retry", *feed.Settings.NextRetry),
			slog.String("error", runErr.Error()),
		)
		s.collector.RecordRunFailure(feed.ID, "transient")
	}

	if err := s.feedRepo.UpdateRunState(ctx, feed); err != nil {
		s.logger.Error("フィード状態の更新に失敗しました",
			slog.String("feed_id", feed.ID),
			slog.String("error", err.Error()),
		)
	}
}

// ResetRetryCount は実行成功時の状態リセットを永続化する。
func (s *Scheduler) ResetRetryCount(ctx context.Context, feed *model.Feed) error {
	ApplyRunSuccess(feed, s.now())
	return s.feedRepo.UpdateRunState(ctx, feed)
}

// ReclaimStale はprocessing_started_atがリース期限より古いprocessing状態の
// フィードを回収し、一時的な失敗としてリトライ方針へ回す。
// プロセスのクラッシュ等で遷移が戻らなかったフィードが対象。
func (s *Scheduler) ReclaimStale(ctx context.Context) error {
	cutoff := s.now().Add(-s.staleLease)
	stale, err := s.feedRepo.ListStaleProcessing(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, feed := range stale {
		s.logger.Warn("スタックしたフィードを回収します",
			slog.String("feed_id", feed.ID),
			slog.Time("processing_started_at", *feed.ProcessingStartedAt),
			slog.Duration("stale_lease", s.staleLease),
		)
		feed.Status = model.FeedStatusActive
		s.HandleFailedFeed(ctx, feed, errStaleRun)
	}
	return nil
}

// errStaleRun はリース期限切れによる回収を表すエラー。
var errStaleRun = errors.New("実行がリース期限内に完了しませんでした")
