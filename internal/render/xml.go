package render

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/hitoshi/feedgen/internal/model"
)

// googleNamespace はGoogle Merchant Centerの商品属性名前空間。
const googleNamespace = "http://base.google.com/ns/1.0"

// xmlItem はRSS 2.0のitem要素。商品属性はg:名前空間で出力する。
type xmlItem struct {
	XMLName      xml.Name   `xml:"item"`
	ID           string     `xml:"g:id"`
	Title        string     `xml:"g:title"`
	Description  string     `xml:"g:description,omitempty"`
	Link         string     `xml:"g:link,omitempty"`
	ImageLink    string     `xml:"g:image_link,omitempty"`
	Price        string     `xml:"g:price,omitempty"`
	Brand        string     `xml:"g:brand,omitempty"`
	Condition    string     `xml:"g:condition,omitempty"`
	Availability string     `xml:"g:availability,omitempty"`
	GTIN         string     `xml:"g:gtin,omitempty"`
	MPN          string     `xml:"g:mpn,omitempty"`
	Custom       []xmlCustom `xml:",omitempty"`
}

// xmlCustom はカスタム属性の要素。要素名は実行時に決まる。
type xmlCustom struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// xmlChannel はRSS 2.0のchannel要素。
type xmlChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Items       []xmlItem `xml:"item"`
}

// xmlFeed はrssルート要素。
type xmlFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	NSGoogle string    `xml:"xmlns:g,attr"`
	Channel xmlChannel `xml:"channel"`
}

// renderXML はGoogle Merchant向けRSS 2.0 XMLを生成する。
func renderXML(feed *model.Feed, shop *model.Shop, products []model.ProductRecord) (string, error) {
	items := make([]xmlItem, 0, len(products))
	for i := range products {
		p := &products[i]

		item := xmlItem{
			ID:           p.ID,
			Title:        p.Title,
			Description:  p.Description,
			Link:         p.Link,
			ImageLink:    p.ImageLink,
			Price:        p.Price,
			Brand:        p.Brand,
			Condition:    p.Condition,
			Availability: p.Availability,
			GTIN:         p.GTIN,
			MPN:          p.MPN,
		}
		for _, key := range customAttributeKeys(products[i : i+1]) {
			item.Custom = append(item.Custom, xmlCustom{
				XMLName: xml.Name{Local: "g:" + key},
				Value:   p.CustomAttributes[key],
			})
		}
		items = append(items, item)
	}

	doc := xmlFeed{
		Version:  "2.0",
		NSGoogle: googleNamespace,
		Channel: xmlChannel{
			Title:       feed.Name,
			Link:        fmt.Sprintf("https://%s", shop.Domain),
			Description: "Product feed for Google Merchant Center",
			Items:       items,
		},
	}

	var sb strings.Builder
	sb.WriteString(xml.Header)
	enc := xml.NewEncoder(&sb)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("XMLエンコードに失敗: %w", err)
	}
	sb.WriteString("\n")
	return sb.String(), nil
}
