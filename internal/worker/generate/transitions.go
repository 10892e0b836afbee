package generate

import (
	"time"

	"github.com/hitoshi/feedgen/internal/model"
)

// backoffSchedule はリトライ回数（1始まり）に対応する待機時間。
// 回数がテーブルを超えた場合は最後の値を繰り返す。
var backoffSchedule = []time.Duration{
	5 * time.Minute,
	15 * time.Minute,
	30 * time.Minute,
}

// defaultMaxRetries は設定未指定時のリトライ上限。
const defaultMaxRetries = 3

// BackoffDelay はリトライ回数に基づく待機時間を返す。
// attemptは1始まり。0以下は初回の待機時間を返す。
func BackoffDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return backoffSchedule[0]
	}
	if attempt > len(backoffSchedule) {
		return backoffSchedule[len(backoffSchedule)-1]
	}
	return backoffSchedule[attempt-1]
}

// maxRetriesOf はフィードのリトライ上限を返す。未設定の場合はデフォルト値。
func maxRetriesOf(feed *model.Feed) int {
	if feed.Settings.MaxRetries > 0 {
		return feed.Settings.MaxRetries
	}
	return defaultMaxRetries
}

// ApplyRetry はリトライ回数をインクリメントし、バックオフに基づく次回試行時刻を設定する。
// statusはactiveへ戻し、後続のスケジューリングで再試行できるようにする。
func ApplyRetry(feed *model.Feed, reason string, now time.Time) {
	feed.Settings.RetryCount++
	feed.Settings.LastError = reason
	next := now.Add(BackoffDelay(feed.Settings.RetryCount))
	feed.Settings.NextRetry = &next
	feed.Status = model.FeedStatusActive
	feed.ProcessingStartedAt = nil
	feed.UpdatedAt = now
}

// ApplyPermanentFailure はリトライ上限超過時にフィードを恒久失敗状態にする。
// 失敗時刻とエラーメッセージを記録する。再アクティブ化には手動操作が必要。
func ApplyPermanentFailure(feed *model.Feed, reason string, now time.Time) {
	feed.Settings.LastError = reason
	feed.Settings.NextRetry = nil
	failedAt := now
	feed.Settings.FailedAt = &failedAt
	feed.Status = model.FeedStatusFailed
	feed.ProcessingStartedAt = nil
	feed.UpdatedAt = now
}

// ApplyFailure は一時的な実行失敗にリトライ方針を適用する。
// リトライ上限内であればApplyRetry、超過していればApplyPermanentFailureを適用する。
// 恒久失敗へ遷移した場合はtrueを返す。
func ApplyFailure(feed *model.Feed, reason string, now time.Time) bool {
	if feed.Settings.RetryCount+1 <= maxRetriesOf(feed) {
		ApplyRetry(feed, reason, now)
		return false
	}
	feed.Settings.RetryCount++
	ApplyPermanentFailure(feed, reason, now)
	return true
}

// ApplyRunSuccess は実行成功時にリトライ/エラー状態をリセットし、
// last_syncを更新してstatusをactiveへ戻す。
func ApplyRunSuccess(feed *model.Feed, now time.Time) {
	feed.Settings.RetryCount = 0
	feed.Settings.NextRetry = nil
	feed.Settings.LastError = ""
	feed.Settings.FailedAt = nil
	lastSync := now
	feed.LastSync = &lastSync
	feed.Status = model.FeedStatusActive
	feed.ProcessingStartedAt = nil
	feed.UpdatedAt = now
}

// ShouldRunFeed はフィードが実行対象かを判定する。
// activeでないフィードは対象外。リトライ待ちのフィードはnext_retryの到来のみで判定し、
// それ以外は前回同期からの経過時間が更新頻度の間隔以上かで判定する。
// 一度も同期していないフィードは常に対象。
func ShouldRunFeed(feed *model.Feed, now time.Time) bool {
	if feed.Status != model.FeedStatusActive {
		return false
	}

	if feed.Settings.NextRetry != nil {
		return !now.Before(*feed.Settings.NextRetry)
	}

	if feed.LastSync == nil {
		return true
	}

	interval := feed.Settings.UpdateFrequency.Interval()
	if interval == 0 {
		return false
	}
	return now.Sub(*feed.LastSync) >= interval
}

// NextRunTime は次回実行予定時刻を返す。表示/診断用であり、実行判定には使わない。
// リトライ待ちの場合はnext_retry、未同期の場合は現在時刻を返す。
func NextRunTime(feed *model.Feed, now time.Time) time.Time {
	if feed.Settings.NextRetry != nil {
		return *feed.Settings.NextRetry
	}
	if feed.LastSync == nil {
		return now
	}
	return feed.LastSync.Add(feed.Settings.UpdateFrequency.Interval())
}
