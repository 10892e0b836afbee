// Package model はドメインモデルを定義する。
package model

import "time"

// FeedVersion はある時点のフィードの不変なレンダリング結果を表す。
// 不変条件: versionはフィードごとに1から始まる厳密増加で、再利用も作成後の変更もされない。
// ロールバックは履歴を書き換えず、新しいバージョンを作成する。
type FeedVersion struct {
	ID           string
	FeedID       string
	Version      int
	Content      string
	Format       FeedFormat
	Stats        VersionStats
	Status       VersionStatus
	RollbackFrom string // ロールバック元バージョンのID（通常作成時は空）
	Note         string
	CreatedBy    string
	CreatedAt    time.Time
}

// VersionStatus はバージョンの保持状態を表す。
type VersionStatus string

const (
	// VersionStatusActive はデフォルト一覧に含まれる保持状態。
	VersionStatusActive VersionStatus = "active"
	// VersionStatusArchived は保持数超過でアーカイブされた状態。
	// 監査/ロールバックのために読み取りは可能なまま残る。
	VersionStatusArchived VersionStatus = "archived"
)

// VersionStats はバージョン作成時のバリデーション集計を表す。
type VersionStats struct {
	TotalProducts   int                 `json:"total_products"`
	ValidProducts   int                 `json:"valid_products"`
	InvalidProducts int                 `json:"invalid_products"`
	Errors          []ValidationError   `json:"errors"`
	Warnings        []ValidationWarning `json:"warnings"`
}

// VersionDiff は2バージョン間の構造的な差分を表す。
type VersionDiff struct {
	TotalDelta   int
	ValidDelta   int
	InvalidDelta int

	// エラー/警告のフィールド集合の対称差
	ErrorsAdded     []string
	ErrorsRemoved   []string
	WarningsAdded   []string
	WarningsRemoved []string

	// 作成時刻の差
	TimeGap time.Duration
}
