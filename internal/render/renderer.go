// Package render は検証済み商品からフィード出力（XML/CSV/TSV）を生成する。
// 入力はバリデーション通過済みの商品のみを前提とする。空入力でも妥当な空ドキュメントを返す。
package render

import (
	"fmt"
	"sort"

	"github.com/hitoshi/feedgen/internal/model"
)

// RendererService はフィード出力生成のインターフェースを定義する。
type RendererService interface {
	// Render はフィード設定のフォーマットに従って出力ドキュメントを生成する。
	// 未対応フォーマットの場合はエラーを返す。
	Render(feed *model.Feed, shop *model.Shop, products []model.ProductRecord) (string, error)
}

// renderer はRendererServiceの実装。
type renderer struct{}

// NewRenderer はRendererServiceの新しいインスタンスを生成する。
func NewRenderer() *renderer {
	return &renderer{}
}

var _ RendererService = (*renderer)(nil)

// Render はフォーマットに応じたレンダラへ振り分ける。
func (r *renderer) Render(feed *model.Feed, shop *model.Shop, products []model.ProductRecord) (string, error) {
	switch feed.Settings.Format {
	case model.FormatXML:
		return renderXML(feed, shop, products)
	case model.FormatCSV:
		return renderDelimited(products, ',')
	case model.FormatTSV:
		return renderDelimited(products, '\t')
	default:
		return "", fmt.Errorf("未対応のフィードフォーマット: %s", feed.Settings.Format)
	}
}

// customAttributeKeys は全商品のカスタム属性キーの和集合をソートして返す。
// 出力列/要素の順序を決定的にするために使用する。
func customAttributeKeys(products []model.ProductRecord) []string {
	seen := map[string]bool{}
	for i := range products {
		for k := range products[i].CustomAttributes {
			seen[k] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
