package render

import (
	"encoding/csv"
	"strings"
	"testing"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/feedgen/internal/model"
)

func testFeed(format model.FeedFormat) *model.Feed {
	return &model.Feed{
		ID:   "feed-1",
		Name: "テストフィード",
		Settings: model.FeedSettings{
			Currency: "USD",
			Format:   format,
		},
	}
}

func testShop() *model.Shop {
	return &model.Shop{ID: "shop-1", Domain: "shop.example.com"}
}

func testProducts() []model.ProductRecord {
	return []model.ProductRecord{
		{
			ID:           "p1",
			Title:        "コットンTシャツ",
			Description:  "柔らかい素材",
			Link:         "https://shop.example.com/products/p1",
			ImageLink:    "https://cdn.example.com/p1.jpg",
			Price:        "29.99 USD",
			Brand:        "ExampleBrand",
			Condition:    "new",
			Availability: "in stock",
			GTIN:         "4006381333931",
			CustomAttributes: map[string]string{
				"color": "white",
				"age_group": "adult",
			},
		},
		{
			ID:           "p2",
			Title:        "デニムジャケット",
			Description:  "裏地つき",
			Link:         "https://shop.example.com/products/p2",
			ImageLink:    "https://cdn.example.com/p2.jpg",
			Price:        "89.99 USD",
			Brand:        "ExampleBrand",
			Condition:    "new",
			Availability: "preorder",
			MPN:          "MPN-p2",
		},
	}
}

func TestRenderer_XML_ParseableRSS(t *testing.T) {
	r := NewRenderer()

	out, err := r.Render(testFeed(model.FormatXML), testShop(), testProducts())
	if err != nil {
		t.Fatalf("Render はエラーを返すべきでない: %v", err)
	}

	parsed, err := gofeed.NewParser().ParseString(out)
	if err != nil {
		t.Fatalf("生成XMLはRSSとしてパース可能であるべき: %v", err)
	}
	if parsed.Title != "テストフィード" {
		t.Errorf("channel title = %q, want テストフィード", parsed.Title)
	}
	if len(parsed.Items) != 2 {
		t.Fatalf("item は2件であるべき, got %d", len(parsed.Items))
	}

	ext := parsed.Items[0].Extensions["g"]
	if ext == nil {
		t.Fatal("g: 名前空間の属性が出力されるべき")
	}
	if got := ext["id"][0].Value; got != "p1" {
		t.Errorf("g:id = %q, want p1", got)
	}
	if got := ext["price"][0].Value; got != "29.99 USD" {
		t.Errorf("g:price = %q, want \"29.99 USD\"", got)
	}
	if got := ext["color"][0].Value; got != "white" {
		t.Errorf("カスタム属性 g:color = %q, want white", got)
	}
}

func TestRenderer_XML_OmitsEmptyOptionalFields(t *testing.T) {
	r := NewRenderer()
	products := []model.ProductRecord{{ID: "p1", Title: "商品"}}

	out, err := r.Render(testFeed(model.FormatXML), testShop(), products)
	if err != nil {
		t.Fatalf("Render はエラーを返すべきでない: %v", err)
	}
	if strings.Contains(out, "<g:gtin>") {
		t.Error("空のgtinは出力されないべき")
	}
	if strings.Contains(out, "<g:mpn>") {
		t.Error("空のmpnは出力されないべき")
	}
}

func TestRenderer_XML_EscapesSpecialCharacters(t *testing.T) {
	r := NewRenderer()
	products := []model.ProductRecord{{ID: "p1", Title: "Tom & Jerry <限定>"}}

	out, err := r.Render(testFeed(model.FormatXML), testShop(), products)
	if err != nil {
		t.Fatalf("Render はエラーを返すべきでない: %v", err)
	}

	parsed, err := gofeed.NewParser().ParseString(out)
	if err != nil {
		t.Fatalf("特殊文字を含むXMLもパース可能であるべき: %v", err)
	}
	if got := parsed.Items[0].Extensions["g"]["title"][0].Value; got != "Tom & Jerry <限定>" {
		t.Errorf("特殊文字がエスケープ/復元されるべき, got %q", got)
	}
}

func TestRenderer_XML_EmptyProducts(t *testing.T) {
	r := NewRenderer()

	out, err := r.Render(testFeed(model.FormatXML), testShop(), nil)
	if err != nil {
		t.Fatalf("空入力でもエラーを返すべきでない: %v", err)
	}

	parsed, err := gofeed.NewParser().ParseString(out)
	if err != nil {
		t.Fatalf("空フィードもパース可能であるべき: %v", err)
	}
	if len(parsed.Items) != 0 {
		t.Errorf("item は0件であるべき, got %d", len(parsed.Items))
	}
}

func TestRenderer_CSV(t *testing.T) {
	r := NewRenderer()

	out, err := r.Render(testFeed(model.FormatCSV), testShop(), testProducts())
	if err != nil {
		t.Fatalf("Render はエラーを返すべきでない: %v", err)
	}

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("生成CSVはパース可能であるべき: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("ヘッダー+2商品の3行であるべき, got %d", len(rows))
	}

	header := rows[0]
	if header[0] != "id" || header[1] != "title" {
		t.Errorf("ヘッダー行が不正: %v", header)
	}
	// カスタム属性列はソート順で固定列の後ろ
	if header[len(header)-2] != "age_group" || header[len(header)-1] != "color" {
		t.Errorf("カスタム属性列はソート順で出力されるべき: %v", header)
	}
	if rows[1][0] != "p1" || rows[2][0] != "p2" {
		t.Errorf("商品行の順序が保持されるべき: %v, %v", rows[1][0], rows[2][0])
	}
	// p2はカスタム属性を持たないため空欄
	if rows[2][len(header)-1] != "" {
		t.Errorf("属性のない商品のカスタム列は空であるべき, got %q", rows[2][len(header)-1])
	}
}

func TestRenderer_TSV(t *testing.T) {
	r := NewRenderer()

	out, err := r.Render(testFeed(model.FormatTSV), testShop(), testProducts())
	if err != nil {
		t.Fatalf("Render はエラーを返すべきでない: %v", err)
	}

	reader := csv.NewReader(strings.NewReader(out))
	reader.Comma = '\t'
	rows, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("生成TSVはパース可能であるべき: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("ヘッダー+2商品の3行であるべき, got %d", len(rows))
	}
	if !strings.Contains(strings.SplitN(out, "\n", 2)[0], "\t") {
		t.Error("TSVはタブ区切りであるべき")
	}
}

func TestRenderer_CSV_EmptyProducts(t *testing.T) {
	r := NewRenderer()

	out, err := r.Render(testFeed(model.FormatCSV), testShop(), nil)
	if err != nil {
		t.Fatalf("空入力でもエラーを返すべきでない: %v", err)
	}
	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("空CSVもパース可能であるべき: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("ヘッダー行のみであるべき, got %d行", len(rows))
	}
}

func TestRenderer_UnsupportedFormat(t *testing.T) {
	r := NewRenderer()

	feed := testFeed("yaml")
	if _, err := r.Render(feed, testShop(), nil); err == nil {
		t.Error("未対応フォーマットはエラーを返すべき")
	}
}
