// Package validator はマーケットプレイスのフィールド規則に基づく商品バリデーションを提供する。
// 規則はGoogle Merchant Centerの必須項目を基にしており、網羅ではなく拡張可能な例示である。
// 全違反を収集する（最初のエラーで打ち切らない）。
package validator

import (
	"fmt"
	"log/slog"
	"regexp"

	"github.com/hitoshi/feedgen/internal/model"
)

const (
	// titleMaxLength はタイトルの最大文字数。
	titleMaxLength = 150
	// descriptionMaxLength は説明文の最大文字数。
	descriptionMaxLength = 5000
	// identifierMaxLength はMPN/ブランドの推奨最大文字数。超過は警告のみ。
	identifierMaxLength = 70
)

// gtinLengths は許容されるGTIN桁数。
var gtinLengths = map[int]bool{8: true, 12: true, 13: true, 14: true}

var (
	// linkPattern はhttp(s)スキームのURLを要求する。
	linkPattern = regexp.MustCompile(`^https?://.+`)
	// imageLinkPattern は既知の画像拡張子で終わるURLを要求する。
	imageLinkPattern = regexp.MustCompile(`(?i)^https?://.+\.(jpg|jpeg|png|gif|webp)$`)
	// pricePattern は「<数値> <3文字通貨コード>」形式を要求する（例: "29.99 USD"）。
	pricePattern = regexp.MustCompile(`^\d+\.?\d* [A-Z]{3}$`)
)

// conditions は許容される商品状態の値。
var conditions = map[string]bool{
	"new":         true,
	"refurbished": true,
	"used":        true,
}

// availabilities は許容される在庫状態の値。
var availabilities = map[string]bool{
	"in stock":     true,
	"out of stock": true,
	"preorder":     true,
	"backorder":    true,
}

// requiredField は必須フィールドの名前と値の取得方法を対にする。
type requiredField struct {
	name  string
	value func(*model.ProductRecord) string
}

// requiredFields は必須フィールドの定義。空の場合は1件ずつエラーになる。
var requiredFields = []requiredField{
	{"id", func(p *model.ProductRecord) string { return p.ID }},
	{"title", func(p *model.ProductRecord) string { return p.Title }},
	{"description", func(p *model.ProductRecord) string { return p.Description }},
	{"link", func(p *model.ProductRecord) string { return p.Link }},
	{"image_link", func(p *model.ProductRecord) string { return p.ImageLink }},
	{"price", func(p *model.ProductRecord) string { return p.Price }},
	{"brand", func(p *model.ProductRecord) string { return p.Brand }},
	{"condition", func(p *model.ProductRecord) string { return p.Condition }},
	{"availability", func(p *model.ProductRecord) string { return p.Availability }},
}

// Validator は商品のバリデーションを行う。外部依存を持たない純粋な判定ロジック。
type Validator struct {
	logger *slog.Logger
}

// NewValidator はValidatorの新しいインスタンスを生成する。
func NewValidator(logger *slog.Logger) *Validator {
	return &Validator{logger: logger}
}

// ValidateProduct は1商品を規則に照らして検証する。
// 規則の適用順序: 必須フィールド → 識別子 → フィールド形式。
// エラーがある商品はレンダリング対象から除外される。警告は除外しない。
func (v *Validator) ValidateProduct(p *model.ProductRecord) model.ValidationResult {
	var errs []model.ValidationError
	var warns []model.ValidationWarning

	errs = append(errs, validateRequiredFields(p)...)
	errs = append(errs, validateIdentifiers(p)...)
	errs = append(errs, validateFieldFormats(p)...)
	warns = append(warns, collectWarnings(p)...)

	if len(errs) > 0 {
		v.logger.Warn("商品バリデーションに失敗しました",
			slog.String("product_id", p.ID),
			slog.Int("error_count", len(errs)),
		)
	}

	return model.ValidationResult{
		Valid:    len(errs) == 0,
		Errors:   errs,
		Warnings: warns,
	}
}

// ValidateFeed は全商品を検証し、有効/無効に分割して集約結果を返す。
// 各商品の処理後にonProgressを進捗率（0から100、単調増加）で同期的に呼び出す。
// 検証は呼び出し元のゴルーチンで逐次実行される（内部並列化なし）。
func (v *Validator) ValidateFeed(products []model.ProductRecord, onProgress func(percent float64)) model.FeedValidationResult {
	result := model.FeedValidationResult{}

	for i := range products {
		r := v.ValidateProduct(&products[i])

		if r.Valid {
			result.ValidProducts = append(result.ValidProducts, products[i])
		} else {
			result.InvalidProducts = append(result.InvalidProducts, products[i])
		}

		result.Errors = append(result.Errors, r.Errors...)
		result.Warnings = append(result.Warnings, r.Warnings...)

		if onProgress != nil {
			onProgress(float64(i+1) / float64(len(products)) * 100)
		}
	}

	result.Valid = len(result.InvalidProducts) == 0

	if len(result.InvalidProducts) > 0 {
		v.logger.Warn("フィードバリデーションがエラー付きで完了しました",
			slog.Int("total_products", len(products)),
			slog.Int("valid_products", len(result.ValidProducts)),
			slog.Int("invalid_products", len(result.InvalidProducts)),
			slog.Int("total_errors", len(result.Errors)),
			slog.Int("total_warnings", len(result.Warnings)),
		)
	}

	return result
}

// validateRequiredFields は必須フィールドの存在を検証する。
func validateRequiredFields(p *model.ProductRecord) []model.ValidationError {
	var errs []model.ValidationError
	for _, f := range requiredFields {
		if f.value(p) == "" {
			errs = append(errs, model.ValidationError{
				Field:     f.name,
				Message:   fmt.Sprintf("必須フィールドがありません: %s", f.name),
				ProductID: p.ID,
			})
		}
	}
	return errs
}

// validateIdentifiers は商品識別子の規則を検証する。
// GTIN、またはMPNとブランドの両方が必要。GTINがある場合は桁数も検証する。
func validateIdentifiers(p *model.ProductRecord) []model.ValidationError {
	var errs []model.ValidationError

	hasGTIN := p.GTIN != ""
	hasMPN := p.MPN != ""
	hasBrand := p.Brand != ""

	if !hasGTIN && !(hasMPN && hasBrand) {
		errs = append(errs, model.ValidationError{
			Field:     "identifiers",
			Message:   "商品にはGTIN、またはMPNとブランドの両方が必要です",
			ProductID: p.ID,
		})
	}

	if hasGTIN && !gtinLengths[len(p.GTIN)] {
		errs = append(errs, model.ValidationError{
			Field:     "gtin",
			Message:   "無効なGTIN桁数です。8、12、13、14桁のいずれかである必要があります",
			ProductID: p.ID,
		})
	}

	return errs
}

// validateFieldFormats はフィールドごとの形式規則（最大長、正規表現、許容値）を検証する。
// 空のフィールドは必須チェック側で報告済みのため、ここでは値がある場合のみ検証する。
func validateFieldFormats(p *model.ProductRecord) []model.ValidationError {
	var errs []model.ValidationError

	addError := func(field, message string) {
		errs = append(errs, model.ValidationError{
			Field:     field,
			Message:   message,
			ProductID: p.ID,
		})
	}

	if p.Title != "" && len([]rune(p.Title)) > titleMaxLength {
		addError("title", fmt.Sprintf("titleが最大文字数%dを超えています", titleMaxLength))
	}
	if p.Description != "" && len([]rune(p.Description)) > descriptionMaxLength {
		addError("description", fmt.Sprintf("descriptionが最大文字数%dを超えています", descriptionMaxLength))
	}
	if p.Link != "" && !linkPattern.MatchString(p.Link) {
		addError("link", "linkの形式が無効です")
	}
	if p.ImageLink != "" && !imageLinkPattern.MatchString(p.ImageLink) {
		addError("image_link", "image_linkの形式が無効です")
	}
	if p.Price != "" && !pricePattern.MatchString(p.Price) {
		addError("price", "priceの形式が無効です")
	}
	if p.Condition != "" && !conditions[p.Condition] {
		addError("condition", "conditionが無効です。new、refurbished、used のいずれかである必要があります")
	}
	if p.Availability != "" && !availabilities[p.Availability] {
		addError("availability", "availabilityが無効です。in stock、out of stock、preorder、backorder のいずれかである必要があります")
	}

	return errs
}

// collectWarnings は商品を除外しない推奨規則の違反を収集する。
func collectWarnings(p *model.ProductRecord) []model.ValidationWarning {
	var warns []model.ValidationWarning

	if len([]rune(p.MPN)) > identifierMaxLength {
		warns = append(warns, model.ValidationWarning{
			Field:     "mpn",
			Message:   fmt.Sprintf("mpnが推奨最大文字数%dを超えています", identifierMaxLength),
			ProductID: p.ID,
		})
	}
	if len([]rune(p.Brand)) > identifierMaxLength {
		warns = append(warns, model.ValidationWarning{
			Field:     "brand",
			Message:   fmt.Sprintf("brandが推奨最大文字数%dを超えています", identifierMaxLength),
			ProductID: p.ID,
		})
	}

	return warns
}
