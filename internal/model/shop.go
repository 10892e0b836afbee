// Package model はドメインモデルを定義する。
package model

import "time"

// Shop はフィードを所有するマーチャントのショップを表す。
type Shop struct {
	ID          string
	Name        string
	Domain      string
	CatalogURL  string // カタログAPIのベースURL
	AccessToken string
	Tier        PlanTier
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PlanTier はショップの契約プランを表す。
type PlanTier string

const (
	// TierBasic は基本プラン。
	TierBasic PlanTier = "Basic"
	// TierProfessional は中位プラン。
	TierProfessional PlanTier = "Professional"
	// TierAdvanced は上位プラン。
	TierAdvanced PlanTier = "Advanced"
)

// TierLimits はプランごとの利用上限を表す。
type TierLimits struct {
	ProductLimit        int // ショップ全体の商品数上限
	FeedLimit           int // フィード数上限
	ProductsPerFeed     int // 1フィードあたりの商品数上限（カタログ取得のページサイズ上限を兼ねる）
}

// tierLimitsTable はプランごとの上限テーブル。
var tierLimitsTable = map[PlanTier]TierLimits{
	TierBasic:        {ProductLimit: 1000, FeedLimit: 2, ProductsPerFeed: 1000},
	TierProfessional: {ProductLimit: 5000, FeedLimit: 5, ProductsPerFeed: 2500},
	TierAdvanced:     {ProductLimit: 10000, FeedLimit: 20, ProductsPerFeed: 5000},
}

// Limits はプランに対応する利用上限を返す。
// 未知のプランはBasicの上限にフォールバックする。
func (t PlanTier) Limits() TierLimits {
	if limits, ok := tierLimitsTable[t]; ok {
		return limits
	}
	return tierLimitsTable[TierBasic]
}
