package generate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/feedgen/internal/catalog"
	"github.com/hitoshi/feedgen/internal/metrics"
	"github.com/hitoshi/feedgen/internal/model"
	"github.com/hitoshi/feedgen/internal/monitor"
	"github.com/hitoshi/feedgen/internal/render"
	"github.com/hitoshi/feedgen/internal/repository"
	"github.com/hitoshi/feedgen/internal/validator"
	"github.com/hitoshi/feedgen/internal/version"
)

// Generator は1フィードの生成実行を調停する。
// カタログ取得→バリデーション→レンダリング→バージョン作成→状態更新の順で処理する。
// バリデーションの失敗は実行を中断しない（有効商品のみで出力する部分成功）。
// カタログ/レンダリング/永続化の失敗は一時的な失敗としてエラーを返す。
type Generator struct {
	shopRepo    repository.ShopRepository
	feedRepo    repository.FeedRepository
	catalogSvc  catalog.CatalogService
	validator   *validator.Validator
	renderer    render.RendererService
	versionMgr  version.VersionManagerService
	logger      *slog.Logger
	collector   metrics.MetricsCollector
	now         func() time.Time
}

// NewGenerator はGeneratorの新しいインスタンスを生成する。
func NewGenerator(
	shopRepo repository.ShopRepository,
	feedRepo repository.FeedRepository,
	catalogSvc catalog.CatalogService,
	v *validator.Validator,
	renderer render.RendererService,
	versionMgr version.VersionManagerService,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
) *Generator {
	return &Generator{
		shopRepo:   shopRepo,
		feedRepo:   feedRepo,
		catalogSvc: catalogSvc,
		validator:  v,
		renderer:   renderer,
		versionMgr: versionMgr,
		logger:     logger,
		collector:  collector,
		now:        time.Now,
	}
}

var _ FeedGeneratorService = (*Generator)(nil)

// Generate は指定フィードの生成を1回実行する。
// フィードはstatus=processingへ遷移済みであることを前提とする。
func (g *Generator) Generate(ctx context.Context, feed *model.Feed) error {
	start := g.now()

	shop, err := g.shopRepo.FindByID(ctx, feed.ShopID)
	if err != nil {
		return fmt.Errorf("ショップの取得に失敗: %w", err)
	}
	if shop == nil {
		return fmt.Errorf("フィードの所有ショップが見つかりません: %s", feed.ShopID)
	}

	// 総商品数はカタログ取得後に確定するため、モニタは0件で開始する
	mon := monitor.NewFeedMonitor(g.logger, g.collector, feed.ID, shop.ID, 0, string(feed.Settings.Format))

	products, err := g.catalogSvc.FetchProducts(ctx, shop, &feed.Settings)
	if err != nil {
		return fmt.Errorf("カタログ取得に失敗: %w", err)
	}
	mon.UpdateTotalProducts(len(products))

	result := g.validator.ValidateFeed(products, mon.UpdateProgress)

	// バリデーション結果をモニタへ反映する。
	// 無効商品は先頭のエラーを代表としてイベントに載せる。
	firstError := firstErrorByProduct(result.Errors)
	for i := range result.ValidProducts {
		mon.ProductProcessed(result.ValidProducts[i].ID, true, nil)
	}
	for i := range result.InvalidProducts {
		id := result.InvalidProducts[i].ID
		mon.ProductProcessed(id, false, firstError[id])
	}
	g.collector.RecordProductsValidated(len(result.ValidProducts), len(result.InvalidProducts))

	content, err := g.renderer.Render(feed, shop, result.ValidProducts)
	if err != nil {
		return fmt.Errorf("レンダリングに失敗: %w", err)
	}

	stats := model.VersionStats{
		TotalProducts:   len(products),
		ValidProducts:   len(result.ValidProducts),
		InvalidProducts: len(result.InvalidProducts),
		Errors:          result.Errors,
		Warnings:        result.Warnings,
	}
	if _, err := g.versionMgr.CreateVersion(ctx, feed, content, stats, "system"); err != nil {
		return fmt.Errorf("バージョン作成に失敗: %w", err)
	}

	// 実行成功の状態リセットと配信内容の更新
	feed.LiveContent = content
	ApplyRunSuccess(feed, g.now())
	if err := g.feedRepo.UpdateRunState(ctx, feed); err != nil {
		return fmt.Errorf("フィード状態の更新に失敗: %w", err)
	}

	summary := mon.Complete()
	duration := g.now().Sub(start)
	g.collector.RecordRunSuccess(feed.ID)
	g.collector.RecordRunLatency(duration)

	g.logger.Info("フィード生成ランが完了しました",
		slog.String("feed_id", feed.ID),
		slog.String("shop_id", shop.ID),
		slog.Int("total_products", stats.TotalProducts),
		slog.Int("valid_products", stats.ValidProducts),
		slog.Int("invalid_products", stats.InvalidProducts),
		slog.Bool("partial", !result.Valid),
		slog.String("health", string(mon.GetFeedHealth())),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
		slog.Float64("products_per_second", summary.ProductsPerSecond),
	)

	return nil
}

// firstErrorByProduct は商品IDごとに最初のバリデーションエラーを引けるようにする。
func firstErrorByProduct(errs []model.ValidationError) map[string]error {
	m := make(map[string]error)
	for _, e := range errs {
		if e.ProductID == "" {
			continue
		}
		if _, ok := m[e.ProductID]; !ok {
			m[e.ProductID] = fmt.Errorf("%s: %s", e.Field, e.Message)
		}
	}
	return m
}
