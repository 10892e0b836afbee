package render

import (
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/hitoshi/feedgen/internal/model"
)

// baseColumns はCSV/TSV出力の固定列。カスタム属性列はこの後ろに続く。
var baseColumns = []string{
	"id", "title", "description", "link", "image_link",
	"price", "brand", "condition", "availability", "gtin", "mpn",
}

// renderDelimited はCSV（カンマ区切り）またはTSV（タブ区切り）を生成する。
// 1行目はヘッダー。カスタム属性列は全商品のキーの和集合をソートした順で出力する。
func renderDelimited(products []model.ProductRecord, delimiter rune) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	w.Comma = delimiter

	customKeys := customAttributeKeys(products)
	header := append(append([]string{}, baseColumns...), customKeys...)
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("ヘッダー行の書き込みに失敗: %w", err)
	}

	for i := range products {
		p := &products[i]
		row := []string{
			p.ID, p.Title, p.Description, p.Link, p.ImageLink,
			p.Price, p.Brand, p.Condition, p.Availability, p.GTIN, p.MPN,
		}
		for _, key := range customKeys {
			row = append(row, p.CustomAttributes[key])
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("商品行の書き込みに失敗: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("出力の書き込みに失敗: %w", err)
	}
	return sb.String(), nil
}
