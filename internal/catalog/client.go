// Package catalog はショップのカタログAPIから商品を取得し、
// ProductRecordへ正規化するクライアントを提供する。
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/feedgen/internal/model"
)

// pageSize は1リクエストあたりの取得商品数。
const pageSize = 100

// SSRFValidator はカタログURLのSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// ProductSanitizer はカタログ由来テキストのサニタイズのインターフェース。
type ProductSanitizer interface {
	SanitizeTitle(raw string) string
	SanitizeDescription(raw string) string
}

// CatalogService はフィード設定に基づく商品取得のインターフェースを定義する。
// ワーカーのオーケストレータから使用される。
type CatalogService interface {
	// FetchProducts はショップのカタログAPIから商品を取得し、
	// フィード設定の選択条件でフィルタしたProductRecord列を返す。
	// 取得件数はショップのプラン上限で打ち切られる。
	FetchProducts(ctx context.Context, shop *model.Shop, settings *model.FeedSettings) ([]model.ProductRecord, error)
}

// catalogVariant はカタログAPIが返すバリアント表現。
type catalogVariant struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Price     string `json:"price"`
	SKU       string `json:"sku"`
	Barcode   string `json:"barcode"`
	Available bool   `json:"available"`
}

// catalogItem はカタログAPIが返す商品表現。
type catalogItem struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	BodyHTML    string            `json:"body_html"`
	Handle      string            `json:"handle"`
	Vendor      string            `json:"vendor"`
	ImageURL    string            `json:"image_url"`
	Condition   string            `json:"condition"`
	Variants    []catalogVariant  `json:"variants"`
	Metafields  map[string]string `json:"metafields"`
}

// catalogPage はカタログAPIの1ページぶんのレスポンス。
type catalogPage struct {
	Products []catalogItem `json:"products"`
}

// Client はCatalogServiceの実装。
// SSRF防止付きHTTPクライアントでページングしながら取得し、
// レートリミッタでカタログAPIへのリクエスト頻度を抑える。
type Client struct {
	ssrfGuard   SSRFValidator
	sanitizer   ProductSanitizer
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
	limiter     *rate.Limiter
}

// NewClient はClientの新しいインスタンスを生成する。
// requestsPerSecondはカタログAPIへの秒間リクエスト数の上限。
func NewClient(
	ssrfGuard SSRFValidator,
	sanitizer ProductSanitizer,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
	requestsPerSecond int,
) *Client {
	return &Client{
		ssrfGuard:   ssrfGuard,
		sanitizer:   sanitizer,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		limiter:     rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
	}
}

var _ CatalogService = (*Client)(nil)

// FetchProducts はカタログAPIから商品を取得してProductRecordへ射影する。
// 取得総数はプランのフィードあたり商品数上限で打ち切る。
func (c *Client) FetchProducts(ctx context.Context, shop *model.Shop, settings *model.FeedSettings) ([]model.ProductRecord, error) {
	if err := c.ssrfGuard.ValidateURL(shop.CatalogURL); err != nil {
		c.logger.Warn("カタログURLがセキュリティポリシーでブロックされました",
			slog.String("shop_id", shop.ID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewSSRFBlockedError()
	}

	limits := shop.Tier.Limits()
	client := c.ssrfGuard.NewSafeClient(c.timeout)

	var records []model.ProductRecord
	start := time.Now()

	for page := 1; len(records) < limits.ProductsPerFeed; page++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("レートリミッタ待機に失敗: %w", err)
		}

		items, err := c.fetchPage(ctx, client, shop, settings, page)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			break
		}

		for i := range items {
			if !settings.IsIncluded(items[i].ID) {
				continue
			}
			records = append(records, c.project(&items[i], shop, settings)...)
			if len(records) >= limits.ProductsPerFeed {
				records = records[:limits.ProductsPerFeed]
				break
			}
		}

		// 最終ページはページサイズ未満で返る
		if len(items) < pageSize {
			break
		}
	}

	c.logger.Info("カタログ取得が完了しました",
		slog.String("shop_id", shop.ID),
		slog.Int("product_count", len(records)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return records, nil
}

// fetchPage はカタログAPIの1ページを取得する。
func (c *Client) fetchPage(ctx context.Context, client *http.Client, shop *model.Shop, settings *model.FeedSettings, page int) ([]catalogItem, error) {
	reqURL, err := buildPageURL(shop.CatalogURL, settings, page)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", "Feedgen/1.0 Product Feed Generator")
	req.Header.Set("Accept", "application/json")
	if shop.AccessToken != "" {
		req.Header.Set("X-Access-Token", shop.AccessToken)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, model.NewCatalogFetchError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("カタログAPIが異常なステータスを返しました",
			slog.String("shop_id", shop.ID),
			slog.Int("http_status", resp.StatusCode),
			slog.Int("page", page),
		)
		return nil, model.NewCatalogFetchError(fmt.Sprintf("ステータス %d が返されました", resp.StatusCode))
	}

	// レスポンスボディを読み込み（最大サイズ制限付き）
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("レスポンス読み取りに失敗: %w", err)
	}

	var parsed catalogPage
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, model.NewCatalogFetchError("レスポンスの解析に失敗しました")
	}
	return parsed.Products, nil
}

// buildPageURL はページングとコレクション絞り込みのクエリを付与したURLを構築する。
func buildPageURL(base string, settings *model.FeedSettings, page int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("カタログURLの解析に失敗: %w", err)
	}
	q := parsed.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(pageSize))
	if settings.CollectionID != "" {
		q.Set("collection_id", settings.CollectionID)
	}
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

// project はカタログ商品をProductRecordへ射影する。
// IncludeVariantsが有効な場合はバリアントごとに1レコードを生成する。
// タイトルと説明文はサニタイズされる。
func (c *Client) project(item *catalogItem, shop *model.Shop, settings *model.FeedSettings) []model.ProductRecord {
	base := model.ProductRecord{
		ID:           item.ID,
		Title:        c.sanitizer.SanitizeTitle(item.Title),
		Description:  c.sanitizer.SanitizeDescription(item.BodyHTML),
		Link:         productLink(shop.Domain, item.Handle),
		ImageLink:    item.ImageURL,
		Brand:        item.Vendor,
		Condition:    item.Condition,
		CustomAttributes: mergeAttributes(settings, item.Metafields),
	}
	if base.Condition == "" {
		base.Condition = "new"
	}

	if len(item.Variants) == 0 {
		base.Availability = "out of stock"
		return []model.ProductRecord{base}
	}

	if !settings.IncludeVariants {
		r := base
		applyVariant(&r, &item.Variants[0], settings.Currency)
		return []model.ProductRecord{r}
	}

	records := make([]model.ProductRecord, 0, len(item.Variants))
	for i := range item.Variants {
		r := base
		v := &item.Variants[i]
		r.ID = fmt.Sprintf("%s-%s", item.ID, v.ID)
		if v.Title != "" {
			r.Title = fmt.Sprintf("%s - %s", base.Title, c.sanitizer.SanitizeTitle(v.Title))
		}
		applyVariant(&r, v, settings.Currency)
		records = append(records, r)
	}
	return records
}

// applyVariant はバリアント固有の価格/識別子/在庫状態をレコードへ反映する。
func applyVariant(r *model.ProductRecord, v *catalogVariant, currency string) {
	if v.Price != "" && currency != "" {
		r.Price = fmt.Sprintf("%s %s", v.Price, currency)
	}
	r.MPN = v.SKU
	r.GTIN = v.Barcode
	if v.Available {
		r.Availability = "in stock"
	} else {
		r.Availability = "out of stock"
	}
}

// productLink はショップドメインと商品ハンドルから正規URLを構築する。
func productLink(domain, handle string) string {
	if domain == "" || handle == "" {
		return ""
	}
	return fmt.Sprintf("https://%s/products/%s", domain, handle)
}

// mergeAttributes は固定のカスタム属性とメタフィールドマッピングを統合する。
// メタフィールド側の値が固定属性を上書きする。
func mergeAttributes(settings *model.FeedSettings, metafields map[string]string) map[string]string {
	if len(settings.CustomAttributes) == 0 && len(settings.MetafieldMapping) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(settings.CustomAttributes)+len(settings.MetafieldMapping))
	for k, v := range settings.CustomAttributes {
		attrs[k] = v
	}
	for attr, metafield := range settings.MetafieldMapping {
		if v, ok := metafields[metafield]; ok && v != "" {
			attrs[attr] = v
		}
	}
	return attrs
}
