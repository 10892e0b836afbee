// Package security はカタログ取得とフィード出力に関わるセキュリティ機能を提供する。
//
// ProductSanitizerService はカタログ由来の商品テキストをサニタイズする。
// ショップのカタログAPIはHTML混じりの説明文を返すことがあり、
// そのまま出力するとフィード消費側でのXSSやマークアップ破壊の原因になる。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// タイトルは全タグ除去、説明文は最小限の整形タグのみ通過させる。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ProductSanitizerService は商品テキストのサニタイズ機能のインターフェースを定義する。
// カタログ取得後、ProductRecordへの射影時に使用される。
type ProductSanitizerService interface {
	// SanitizeTitle は商品タイトルから全てのHTMLタグを除去し、
	// エンティティをデコードしたプレーンテキストを返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeTitle(raw string) string

	// SanitizeDescription は商品説明文をサニタイズする。
	// 許可タグ（p, br, ul, ol, li, strong, em）のみを通過させ、
	// script, iframe, style, img, aタグおよびon*イベント属性を除去する。
	SanitizeDescription(raw string) string
}

// productSanitizer はProductSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type productSanitizer struct {
	titlePolicy       *bluemonday.Policy
	descriptionPolicy *bluemonday.Policy
}

// NewProductSanitizer はProductSanitizerServiceの新しいインスタンスを生成する。
// ポリシーの内容:
//   - タイトル: StrictPolicy（全タグ除去）
//   - 説明文: p, br, ul, ol, li, strong, em のみ許可。
//     リンクと画像はフィードの専用フィールドで渡すため説明文からは除去する。
func NewProductSanitizer() *productSanitizer {
	desc := bluemonday.NewPolicy()
	desc.AllowElements(
		"p", "br", "ul", "ol", "li",
		"strong", "em",
	)

	return &productSanitizer{
		titlePolicy:       bluemonday.StrictPolicy(),
		descriptionPolicy: desc,
	}
}

// SanitizeTitle は商品タイトルをプレーンテキストに変換する。
// StrictPolicyはタグ除去後にエンティティをエスケープした状態で返すため、
// デコードして元のテキストに戻す。
func (s *productSanitizer) SanitizeTitle(raw string) string {
	return strings.TrimSpace(html.UnescapeString(s.titlePolicy.Sanitize(raw)))
}

// SanitizeDescription は商品説明文をサニタイズして安全なHTMLを返す。
func (s *productSanitizer) SanitizeDescription(raw string) string {
	return strings.TrimSpace(s.descriptionPolicy.Sanitize(raw))
}
