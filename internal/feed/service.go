// Package feed はフィードの作成・設定変更・ライフサイクル操作のドメインロジックを提供する。
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/feedgen/internal/model"
	"github.com/hitoshi/feedgen/internal/repository"
)

// fallbackMaxRetries は構成でもフィード設定でも指定されなかった場合のリトライ上限。
const fallbackMaxRetries = 3

// validFormats は許可される出力フォーマットの集合。
var validFormats = map[model.FeedFormat]bool{
	model.FormatXML: true,
	model.FormatCSV: true,
	model.FormatTSV: true,
}

// validFrequencies は許可される更新頻度の集合。
var validFrequencies = map[model.UpdateFrequency]bool{
	model.FrequencyHourly: true,
	model.FrequencyDaily:  true,
	model.FrequencyWeekly: true,
}

// FeedService はフィード管理のサービス層。
// 作成時のプラン上限チェックと、一時停止・再開・再アクティブ化の状態遷移を統括する。
type FeedService struct {
	feedRepo repository.FeedRepository
	shopRepo repository.ShopRepository
	logger   *slog.Logger

	// max_retries未指定のフィードに適用するデフォルト値（MAX_RETRIES環境変数由来）
	defaultMaxRetries int

	// テストで時刻を固定するためのフック
	now func() time.Time
}

// NewFeedService はFeedServiceの新しいインスタンスを生成する。
// defaultMaxRetriesが0以下の場合はデフォルト値3を使用する。
func NewFeedService(
	feedRepo repository.FeedRepository,
	shopRepo repository.ShopRepository,
	logger *slog.Logger,
	defaultMaxRetries int,
) *FeedService {
	if defaultMaxRetries <= 0 {
		defaultMaxRetries = fallbackMaxRetries
	}
	return &FeedService{
		feedRepo:          feedRepo,
		shopRepo:          shopRepo,
		logger:            logger,
		defaultMaxRetries: defaultMaxRetries,
		now:               time.Now,
	}
}

// validateSettings はフォーマットと更新頻度の妥当性を検証する。
func validateSettings(settings *model.FeedSettings) error {
	if !validFormats[settings.Format] {
		return model.NewInvalidFormatError(string(settings.Format))
	}
	if !validFrequencies[settings.UpdateFrequency] {
		return model.NewInvalidFrequencyError(string(settings.UpdateFrequency))
	}
	return nil
}

// CreateFeed は新しいフィードを作成する。
// フロー: ショップ確認 → 設定検証 → プランのフィード数上限チェック → 保存
func (s *FeedService) CreateFeed(ctx context.Context, shopID, name string, settings model.FeedSettings) (*model.Feed, error) {
	shop, err := s.shopRepo.FindByID(ctx, shopID)
	if err != nil {
		return nil, fmt.Errorf("ショップの検索に失敗しました: %w", err)
	}
	if shop == nil {
		return nil, model.NewShopNotFoundError(shopID)
	}

	if err := validateSettings(&settings); err != nil {
		return nil, err
	}

	count, err := s.feedRepo.CountByShop(ctx, shopID)
	if err != nil {
		return nil, fmt.Errorf("フィード数の確認に失敗しました: %w", err)
	}
	limits := shop.Tier.Limits()
	if count >= limits.FeedLimit {
		return nil, model.NewFeedLimitReachedError(shop.Tier, limits.FeedLimit)
	}

	if settings.MaxRetries == 0 {
		settings.MaxRetries = s.defaultMaxRetries
	}

	now := s.now()
	feed := &model.Feed{
		ID:        uuid.NewString(),
		ShopID:    shopID,
		Name:      name,
		Settings:  settings,
		Status:    model.FeedStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.feedRepo.Create(ctx, feed); err != nil {
		return nil, fmt.Errorf("フィードの作成に失敗しました: %w", err)
	}

	s.logger.Info("フィードを作成しました",
		slog.String("feed_id", feed.ID),
		slog.String("shop_id", shopID),
		slog.String("format", string(settings.Format)),
		slog.String("update_frequency", string(settings.UpdateFrequency)),
	)

	return feed, nil
}

// GetFeed はフィード情報を取得する。
func (s *FeedService) GetFeed(ctx context.Context, feedID string) (*model.Feed, error) {
	feed, err := s.feedRepo.FindByID(ctx, feedID)
	if err != nil {
		return nil, fmt.Errorf("フィードの検索に失敗しました: %w", err)
	}
	if feed == nil {
		return nil, model.NewFeedNotFoundError(feedID)
	}
	return feed, nil
}

// ListFeeds はショップのフィード一覧を返す。
func (s *FeedService) ListFeeds(ctx context.Context, shopID string) ([]*model.Feed, error) {
	feeds, err := s.feedRepo.ListByShop(ctx, shopID)
	if err != nil {
		return nil, fmt.Errorf("フィード一覧の取得に失敗しました: %w", err)
	}
	return feeds, nil
}

// UpdateSettings はフィードの設定を更新する。
// スケジューリングのサブ状態（retry_count等）は呼び出し元から変更できず、既存の値を引き継ぐ。
func (s *FeedService) UpdateSettings(ctx context.Context, feedID string, settings model.FeedSettings) (*model.Feed, error) {
	feed, err := s.GetFeed(ctx, feedID)
	if err != nil {
		return nil, err
	}

	if err := validateSettings(&settings); err != nil {
		return nil, err
	}

	// サブ状態の引き継ぎ
	settings.RetryCount = feed.Settings.RetryCount
	settings.NextRetry = feed.Settings.NextRetry
	settings.LastError = feed.Settings.LastError
	settings.FailedAt = feed.Settings.FailedAt
	if settings.MaxRetries == 0 {
		settings.MaxRetries = feed.Settings.MaxRetries
	}

	feed.Settings = settings
	feed.UpdatedAt = s.now()

	if err := s.feedRepo.Update(ctx, feed); err != nil {
		return nil, fmt.Errorf("フィードの更新に失敗しました: %w", err)
	}

	s.logger.Info("フィード設定を更新しました", slog.String("feed_id", feedID))
	return feed, nil
}

// DeleteFeed はフィードを削除する。バージョン履歴も合わせて削除される。
func (s *FeedService) DeleteFeed(ctx context.Context, feedID string) error {
	if _, err := s.GetFeed(ctx, feedID); err != nil {
		return err
	}
	if err := s.feedRepo.Delete(ctx, feedID); err != nil {
		return fmt.Errorf("フィードの削除に失敗しました: %w", err)
	}
	s.logger.Info("フィードを削除しました", slog.String("feed_id", feedID))
	return nil
}

// PauseFeed はアクティブなフィードを一時停止する。
// 一時停止中のフィードはスケジューラの列挙対象から外れる。
func (s *FeedService) PauseFeed(ctx context.Context, feedID string) (*model.Feed, error) {
	feed, err := s.GetFeed(ctx, feedID)
	if err != nil {
		return nil, err
	}
	if feed.Status != model.FeedStatusActive {
		return nil, model.NewFeedNotActiveError()
	}

	feed.Status = model.FeedStatusPaused
	feed.UpdatedAt = s.now()

	if err := s.feedRepo.Update(ctx, feed); err != nil {
		return nil, fmt.Errorf("フィードの更新に失敗しました: %w", err)
	}

	s.logger.Info("フィードを一時停止しました", slog.String("feed_id", feedID))
	return feed, nil
}

// ResumeFeed は一時停止中のフィードを再開する。
func (s *FeedService) ResumeFeed(ctx context.Context, feedID string) (*model.Feed, error) {
	feed, err := s.GetFeed(ctx, feedID)
	if err != nil {
		return nil, err
	}
	if feed.Status != model.FeedStatusPaused {
		return nil, model.NewFeedNotPausedError()
	}

	feed.Status = model.FeedStatusActive
	feed.UpdatedAt = s.now()

	if err := s.feedRepo.Update(ctx, feed); err != nil {
		return nil, fmt.Errorf("フィードの更新に失敗しました: %w", err)
	}

	s.logger.Info("フィードを再開しました", slog.String("feed_id", feedID))
	return feed, nil
}

// ReactivateFeed は恒久失敗状態のフィードを手動で再アクティブ化する。
// リトライカウンタとエラー情報をリセットし、次回のスケジューリング対象に戻す。
func (s *FeedService) ReactivateFeed(ctx context.Context, feedID string) (*model.Feed, error) {
	feed, err := s.GetFeed(ctx, feedID)
	if err != nil {
		return nil, err
	}
	if feed.Status != model.FeedStatusFailed {
		return nil, model.NewFeedNotFailedError()
	}

	feed.Status = model.FeedStatusActive
	feed.Settings.RetryCount = 0
	feed.Settings.NextRetry = nil
	feed.Settings.LastError = ""
	feed.Settings.FailedAt = nil
	feed.UpdatedAt = s.now()

	if err := s.feedRepo.Update(ctx, feed); err != nil {
		return nil, fmt.Errorf("フィードの更新に失敗しました: %w", err)
	}

	s.logger.Info("フィードを再アクティブ化しました", slog.String("feed_id", feedID))
	return feed, nil
}
