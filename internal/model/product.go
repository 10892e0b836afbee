// Package model はドメインモデルを定義する。
package model

// ProductRecord はカタログ商品のバリデーション/レンダリング用の正規化射影。
// 実行ごとに構築される一時データであり、単独では永続化されない。
type ProductRecord struct {
	ID           string
	Title        string
	Description  string
	Link         string
	ImageLink    string
	Price        string // "<金額> <3文字通貨コード>" 形式（例: "29.99 USD"）
	Brand        string
	Condition    string
	Availability string
	GTIN         string
	MPN          string

	// レンダリング時に追加出力されるカスタム属性
	CustomAttributes map[string]string
}

// ValidationError は商品のバリデーションエラーを表す。
// エラーのある商品はレンダリング対象から除外される。
// VersionStatsの一部としてJSONBに永続化される。
type ValidationError struct {
	Field     string `json:"field"`
	Message   string `json:"message"`
	ProductID string `json:"product_id,omitempty"`
}

// ValidationWarning は商品のバリデーション警告を表す。
// 警告は情報提供のみで、商品を除外しない。
type ValidationWarning struct {
	Field     string `json:"field"`
	Message   string `json:"message"`
	ProductID string `json:"product_id,omitempty"`
}

// ValidationResult は1商品のバリデーション結果を表す。
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// FeedValidationResult はフィード全体のバリデーション結果を表す。
// 有効/無効の商品に分割され、全エラー/警告が集約される。
type FeedValidationResult struct {
	Valid           bool
	ValidProducts   []ProductRecord
	InvalidProducts []ProductRecord
	Errors          []ValidationError
	Warnings        []ValidationWarning
}
