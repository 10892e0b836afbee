// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, feed, version, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeFeedNotFound      = "FEED_NOT_FOUND"
	ErrCodeShopNotFound      = "SHOP_NOT_FOUND"
	ErrCodeVersionNotFound   = "VERSION_NOT_FOUND"
	ErrCodeInvalidFormat     = "INVALID_FORMAT"
	ErrCodeInvalidFrequency  = "INVALID_FREQUENCY"
	ErrCodeFeedLimitReached  = "FEED_LIMIT_REACHED"
	ErrCodeFeedNotFailed     = "FEED_NOT_FAILED"
	ErrCodeFeedNotPaused     = "FEED_NOT_PAUSED"
	ErrCodeFeedNotActive     = "FEED_NOT_ACTIVE"
	ErrCodeCatalogFetch      = "CATALOG_FETCH_FAILED"
	ErrCodeSSRFBlocked       = "SSRF_BLOCKED"
)

// NewFeedNotFoundError はフィード未検出エラーを生成する。
func NewFeedNotFoundError(feedID string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotFound,
		Message:  fmt.Sprintf("指定されたフィードが見つかりません: %s", feedID),
		Category: "feed",
		Action:   "フィードIDを確認してください。",
	}
}

// NewShopNotFoundError はショップ未検出エラーを生成する。
func NewShopNotFoundError(shopID string) *APIError {
	return &APIError{
		Code:     ErrCodeShopNotFound,
		Message:  fmt.Sprintf("指定されたショップが見つかりません: %s", shopID),
		Category: "feed",
		Action:   "ショップIDを確認してください。",
	}
}

// NewVersionNotFoundError はバージョン未検出エラーを生成する。
func NewVersionNotFoundError(versionID string) *APIError {
	return &APIError{
		Code:     ErrCodeVersionNotFound,
		Message:  fmt.Sprintf("指定されたバージョンが見つかりません: %s", versionID),
		Category: "version",
		Action:   "バージョンIDとフィードIDの組み合わせを確認してください。",
	}
}

// NewInvalidFormatError は無効な出力フォーマットエラーを生成する。
func NewInvalidFormatError(format string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFormat,
		Message:  fmt.Sprintf("無効な出力フォーマットです: %s", format),
		Category: "validation",
		Action:   "フォーマットには xml、csv、tsv のいずれかを指定してください。",
	}
}

// NewInvalidFrequencyError は無効な更新頻度エラーを生成する。
func NewInvalidFrequencyError(frequency string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFrequency,
		Message:  fmt.Sprintf("無効な更新頻度です: %s", frequency),
		Category: "validation",
		Action:   "更新頻度には hourly、daily、weekly のいずれかを指定してください。",
	}
}

// NewFeedLimitReachedError はプランのフィード数上限エラーを生成する。
func NewFeedLimitReachedError(tier PlanTier, limit int) *APIError {
	return &APIError{
		Code:     ErrCodeFeedLimitReached,
		Message:  fmt.Sprintf("%sプランのフィード数上限（%d件）に達しています。", tier, limit),
		Category: "feed",
		Action:   "不要なフィードを削除するか、プランをアップグレードしてください。",
	}
}

// NewFeedNotFailedError は失敗状態でないフィードの再アクティブ化エラーを生成する。
func NewFeedNotFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotFailed,
		Message:  "フィードは失敗状態ではありません。",
		Category: "feed",
		Action:   "再アクティブ化は失敗状態のフィードに対してのみ実行できます。",
	}
}

// NewFeedNotPausedError は一時停止状態でないフィードの再開エラーを生成する。
func NewFeedNotPausedError() *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotPaused,
		Message:  "フィードは一時停止中ではありません。",
		Category: "feed",
		Action:   "再開は一時停止中のフィードに対してのみ実行できます。",
	}
}

// NewFeedNotActiveError はアクティブ状態でないフィードの一時停止エラーを生成する。
func NewFeedNotActiveError() *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotActive,
		Message:  "フィードはアクティブ状態ではありません。",
		Category: "feed",
		Action:   "一時停止はアクティブ状態のフィードに対してのみ実行できます。",
	}
}

// NewCatalogFetchError はカタログ取得失敗エラーを生成する。
func NewCatalogFetchError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeCatalogFetch,
		Message:  fmt.Sprintf("カタログの取得に失敗しました: %s", reason),
		Category: "system",
		Action:   "カタログAPIの稼働状況を確認し、しばらく待ってから再度お試しください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているカタログAPIのURLを設定してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}
