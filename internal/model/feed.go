// Package model はドメインモデルを定義する。
package model

import "time"

// Feed は商品フィードの設定と生成状態を表す。
// ショップに所有され、スケジューラ/オーケストレータが生成実行中に状態を更新する。
type Feed struct {
	ID                  string
	ShopID              string
	Name                string
	Settings            FeedSettings
	Status              FeedStatus
	LastSync            *time.Time
	ProcessingStartedAt *time.Time
	LiveContent         string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// FeedStatus はフィードのライフサイクル状態を表す。
type FeedStatus string

const (
	// FeedStatusActive は生成対象のアクティブ状態。
	FeedStatusActive FeedStatus = "active"
	// FeedStatusProcessing は生成実行中の状態。単一実行ガードを兼ねる。
	FeedStatusProcessing FeedStatus = "processing"
	// FeedStatusPaused はユーザー操作による一時停止状態。
	FeedStatusPaused FeedStatus = "paused"
	// FeedStatusFailed はリトライ上限超過による恒久失敗状態。
	// 再アクティブ化には手動操作が必要。
	FeedStatusFailed FeedStatus = "failed"
)

// FeedFormat はフィード出力フォーマットを表す。
type FeedFormat string

const (
	// FormatXML はGoogle Merchant向けRSS 2.0 XMLフォーマット。
	FormatXML FeedFormat = "xml"
	// FormatCSV はカンマ区切りフォーマット。
	FormatCSV FeedFormat = "csv"
	// FormatTSV はタブ区切りフォーマット。
	FormatTSV FeedFormat = "tsv"
)

// ContentType はフォーマットに対応するHTTP Content-Typeを返す。
func (f FeedFormat) ContentType() string {
	switch f {
	case FormatXML:
		return "application/xml; charset=utf-8"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatTSV:
		return "text/tab-separated-values; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

// UpdateFrequency はフィードの更新頻度を表す。
type UpdateFrequency string

const (
	// FrequencyHourly は1時間ごとの更新。
	FrequencyHourly UpdateFrequency = "hourly"
	// FrequencyDaily は24時間ごとの更新。
	FrequencyDaily UpdateFrequency = "daily"
	// FrequencyWeekly は168時間（7日）ごとの更新。
	FrequencyWeekly UpdateFrequency = "weekly"
)

// Interval は更新頻度に対応する時間間隔を返す。
// 未知の頻度の場合は0を返す。
func (f UpdateFrequency) Interval() time.Duration {
	switch f {
	case FrequencyHourly:
		return time.Hour
	case FrequencyDaily:
		return 24 * time.Hour
	case FrequencyWeekly:
		return 168 * time.Hour
	default:
		return 0
	}
}

// FeedSettings はフィードの構造化された設定を保持する。
// スケジューリングのサブ状態（retry_count等）を含む。
// 不変条件: statusがfailedでない間は RetryCount <= MaxRetries。
// feedsテーブルのsettingsカラム（JSONB）にそのまま永続化される。
type FeedSettings struct {
	// ターゲットマーケットプレイスのロケール
	Country  string `json:"country"`
	Language string `json:"language"`
	Currency string `json:"currency"`

	// 出力設定
	Format          FeedFormat      `json:"format"`
	UpdateFrequency UpdateFrequency `json:"update_frequency"`

	// 商品選択
	CollectionID      string   `json:"collection_id,omitempty"`
	IncludeProductIDs []string `json:"include_product_ids,omitempty"`
	ExcludeProductIDs []string `json:"exclude_product_ids,omitempty"`
	IncludeVariants   bool     `json:"include_variants,omitempty"`

	// 属性マッピング
	CustomAttributes map[string]string `json:"custom_attributes,omitempty"`
	MetafieldMapping map[string]string `json:"metafield_mapping,omitempty"`

	// スケジューリングのサブ状態
	RetryCount int        `json:"retry_count"`
	MaxRetries int        `json:"max_retries"`
	NextRetry  *time.Time `json:"next_retry,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	FailedAt   *time.Time `json:"failed_at,omitempty"`
}

// IsIncluded は商品IDが選択条件に合致するかを判定する。
// 除外リストが最優先。包含リストが空の場合は除外されていない全商品が対象。
func (s *FeedSettings) IsIncluded(productID string) bool {
	for _, id := range s.ExcludeProductIDs {
		if id == productID {
			return false
		}
	}
	if len(s.IncludeProductIDs) == 0 {
		return true
	}
	for _, id := range s.IncludeProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}
