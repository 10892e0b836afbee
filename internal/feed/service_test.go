package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/feedgen/internal/model"
)

// mockFeedRepo はFeedRepositoryのモック実装。
type mockFeedRepo struct {
	findByIDFunc    func(ctx context.Context, id string) (*model.Feed, error)
	listByShopFunc  func(ctx context.Context, shopID string) ([]*model.Feed, error)
	countByShopFunc func(ctx context.Context, shopID string) (int, error)
	createFunc      func(ctx context.Context, feed *model.Feed) error
	updateFunc      func(ctx context.Context, feed *model.Feed) error
	deleteFunc      func(ctx context.Context, id string) error
}

func (m *mockFeedRepo) FindByID(ctx context.Context, id string) (*model.Feed, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockFeedRepo) ListByShop(ctx context.Context, shopID string) ([]*model.Feed, error) {
	if m.listByShopFunc != nil {
		return m.listByShopFunc(ctx, shopID)
	}
	return nil, nil
}

func (m *mockFeedRepo) CountByShop(ctx context.Context, shopID string) (int, error) {
	if m.countByShopFunc != nil {
		return m.countByShopFunc(ctx, shopID)
	}
	return 0, nil
}

func (m *mockFeedRepo) Create(ctx context.Context, feed *model.Feed) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, feed)
	}
	return nil
}

func (m *mockFeedRepo) Update(ctx context.Context, feed *model.Feed) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, feed)
	}
	return nil
}

func (m *mockFeedRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockFeedRepo) ListActive(ctx context.Context) ([]*model.Feed, error) { return nil, nil }

func (m *mockFeedRepo) CountByStatus(ctx context.Context, status model.FeedStatus) (int, error) {
	return 0, nil
}

func (m *mockFeedRepo) MarkProcessing(ctx context.Context, id string, startedAt time.Time) (bool, error) {
	return false, nil
}

func (m *mockFeedRepo) UpdateRunState(ctx context.Context, feed *model.Feed) error { return nil }

func (m *mockFeedRepo) UpdateLiveContent(ctx context.Context, id, content string) error { return nil }

func (m *mockFeedRepo) ListStaleProcessing(ctx context.Context, olderThan time.Time) ([]*model.Feed, error) {
	return nil, nil
}

// mockShopRepo はShopRepositoryのモック実装。
type mockShopRepo struct {
	findByIDFunc func(ctx context.Context, id string) (*model.Shop, error)
}

func (m *mockShopRepo) FindByID(ctx context.Context, id string) (*model.Shop, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}


func testShop(tier model.PlanTier) *model.Shop {
	return &model.Shop{
		ID:     "shop-1",
		Name:   "テストショップ",
		Domain: "example-store.com",
		Tier:   tier,
	}
}

func validSettings() model.FeedSettings {
	return model.FeedSettings{
		Country:         "JP",
		Language:        "ja",
		Currency:        "JPY",
		Format:          model.FormatXML,
		UpdateFrequency: model.FrequencyDaily,
	}
}

func newTestService(feedRepo *mockFeedRepo, shopRepo *mockShopRepo) *FeedService {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewFeedService(feedRepo, shopRepo, logger, 0)
}

func TestCreateFeed_Success(t *testing.T) {
	var created *model.Feed
	feedRepo := &mockFeedRepo{
		createFunc: func(ctx context.Context, feed *model.Feed) error {
			created = feed
			return nil
		},
	}
	shopRepo := &mockShopRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Shop, error) {
			return testShop(model.TierBasic), nil
		},
	}
	svc := newTestService(feedRepo, shopRepo)

	feed, err := svc.CreateFeed(context.Background(), "shop-1", "Google Merchant", validSettings())
	if err != nil {
		t.Fatalf("エラーが発生した: %v", err)
	}

	if created == nil {
		t.Fatal("フィードが保存されていない")
	}
	if feed.ID == "" {
		t.Error("フィードIDが採番されていない")
	}
	if feed.Status != model.FeedStatusActive {
		t.Errorf("ステータスがactiveでない: %s", feed.Status)
	}
	if feed.Settings.MaxRetries != fallbackMaxRetries {
		t.Errorf("max_retriesがデフォルト値でない: %d", feed.Settings.MaxRetries)
	}
}

// 構成で指定されたリトライ上限がmax_retries未指定のフィードに適用されることを検証
func TestCreateFeed_ConfiguredMaxRetriesApplied(t *testing.T) {
	shopRepo := &mockShopRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Shop, error) {
			return testShop(model.TierBasic), nil
		},
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	svc := NewFeedService(&mockFeedRepo{}, shopRepo, logger, 5)

	feed, err := svc.CreateFeed(context.Background(), "shop-1", "feed", validSettings())
	if err != nil {
		t.Fatalf("エラーが発生した: %v", err)
	}
	if feed.Settings.MaxRetries != 5 {
		t.Errorf("構成のmax_retriesが適用されていない: %d", feed.Settings.MaxRetries)
	}

	// フィード設定で明示された値は構成より優先される
	settings := validSettings()
	settings.MaxRetries = 2
	feed, err = svc.CreateFeed(context.Background(), "shop-1", "feed", settings)
	if err != nil {
		t.Fatalf("エラーが発生した: %v", err)
	}
	if feed.Settings.MaxRetries != 2 {
		t.Errorf("フィード設定のmax_retriesが優先されるべき: %d", feed.Settings.MaxRetries)
	}
}

func TestCreateFeed_ShopNotFound(t *testing.T) {
	svc := newTestService(&mockFeedRepo{}, &mockShopRepo{})

	_, err := svc.CreateFeed(context.Background(), "missing", "feed", validSettings())

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeShopNotFound {
		t.Errorf("SHOP_NOT_FOUNDエラーが返されるべき: %v", err)
	}
}

func TestCreateFeed_InvalidSettings(t *testing.T) {
	shopRepo := &mockShopRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Shop, error) {
			return testShop(model.TierBasic), nil
		},
	}
	svc := newTestService(&mockFeedRepo{}, shopRepo)

	tests := []struct {
		name     string
		mutate   func(s *model.FeedSettings)
		wantCode string
	}{
		{
			name:     "無効なフォーマット",
			mutate:   func(s *model.FeedSettings) { s.Format = "yaml" },
			wantCode: model.ErrCodeInvalidFormat,
		},
		{
			name:     "無効な更新頻度",
			mutate:   func(s *model.FeedSettings) { s.UpdateFrequency = "monthly" },
			wantCode: model.ErrCodeInvalidFrequency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := validSettings()
			tt.mutate(&settings)

			_, err := svc.CreateFeed(context.Background(), "shop-1", "feed", settings)

			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != tt.wantCode {
				t.Errorf("エラーコード %s が返されるべき: %v", tt.wantCode, err)
			}
		})
	}
}

func TestCreateFeed_TierLimit(t *testing.T) {
	tests := []struct {
		name      string
		tier      model.PlanTier
		count     int
		wantError bool
	}{
		{name: "Basicプランで上限未満", tier: model.TierBasic, count: 1, wantError: false},
		{name: "Basicプランで上限到達", tier: model.TierBasic, count: 2, wantError: true},
		{name: "Professionalプランで上限到達", tier: model.TierProfessional, count: 5, wantError: true},
		{name: "Advancedプランで上限未満", tier: model.TierAdvanced, count: 19, wantError: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feedRepo := &mockFeedRepo{
				countByShopFunc: func(ctx context.Context, shopID string) (int, error) {
					return tt.count, nil
				},
			}
			shopRepo := &mockShopRepo{
				findByIDFunc: func(ctx context.Context, id string) (*model.Shop, error) {
					return testShop(tt.tier), nil
				},
			}
			svc := newTestService(feedRepo, shopRepo)

			_, err := svc.CreateFeed(context.Background(), "shop-1", "feed", validSettings())

			if tt.wantError {
				var apiErr *model.APIError
				if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeFeedLimitReached {
					t.Errorf("FEED_LIMIT_REACHEDエラーが返されるべき: %v", err)
				}
			} else if err != nil {
				t.Errorf("エラーが発生した: %v", err)
			}
		})
	}
}

func TestGetFeed_NotFound(t *testing.T) {
	svc := newTestService(&mockFeedRepo{}, &mockShopRepo{})

	_, err := svc.GetFeed(context.Background(), "missing")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeFeedNotFound {
		t.Errorf("FEED_NOT_FOUNDエラーが返されるべき: %v", err)
	}
}

func TestUpdateSettings_PreservesSchedulingState(t *testing.T) {
	nextRetry := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	existing := &model.Feed{
		ID:     "feed-1",
		ShopID: "shop-1",
		Status: model.FeedStatusActive,
		Settings: model.FeedSettings{
			Format:          model.FormatXML,
			UpdateFrequency: model.FrequencyHourly,
			RetryCount:      2,
			MaxRetries:      3,
			NextRetry:       &nextRetry,
			LastError:       "catalog timeout",
		},
	}

	var updated *model.Feed
	feedRepo := &mockFeedRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Feed, error) {
			return existing, nil
		},
		updateFunc: func(ctx context.Context, feed *model.Feed) error {
			updated = feed
			return nil
		},
	}
	svc := newTestService(feedRepo, &mockShopRepo{})

	newSettings := validSettings()
	newSettings.UpdateFrequency = model.FrequencyWeekly

	feed, err := svc.UpdateSettings(context.Background(), "feed-1", newSettings)
	if err != nil {
		t.Fatalf("エラーが発生した: %v", err)
	}

	if updated == nil {
		t.Fatal("フィードが保存されていない")
	}
	if feed.Settings.UpdateFrequency != model.FrequencyWeekly {
		t.Errorf("更新頻度が反映されていない: %s", feed.Settings.UpdateFrequency)
	}
	if feed.Settings.RetryCount != 2 {
		t.Errorf("retry_countが引き継がれていない: %d", feed.Settings.RetryCount)
	}
	if feed.Settings.NextRetry == nil || !feed.Settings.NextRetry.Equal(nextRetry) {
		t.Error("next_retryが引き継がれていない")
	}
	if feed.Settings.LastError != "catalog timeout" {
		t.Errorf("last_errorが引き継がれていない: %s", feed.Settings.LastError)
	}
}

func TestPauseFeed_StatusTransitions(t *testing.T) {
	tests := []struct {
		name     string
		status   model.FeedStatus
		wantCode string
	}{
		{name: "アクティブなフィードは一時停止できる", status: model.FeedStatusActive, wantCode: ""},
		{name: "処理中のフィードは一時停止できない", status: model.FeedStatusProcessing, wantCode: model.ErrCodeFeedNotActive},
		{name: "失敗状態のフィードは一時停止できない", status: model.FeedStatusFailed, wantCode: model.ErrCodeFeedNotActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feedRepo := &mockFeedRepo{
				findByIDFunc: func(ctx context.Context, id string) (*model.Feed, error) {
					return &model.Feed{ID: id, Status: tt.status, Settings: validSettings()}, nil
				},
			}
			svc := newTestService(feedRepo, &mockShopRepo{})

			feed, err := svc.PauseFeed(context.Background(), "feed-1")

			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("エラーが発生した: %v", err)
				}
				if feed.Status != model.FeedStatusPaused {
					t.Errorf("ステータスがpausedでない: %s", feed.Status)
				}
				return
			}

			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != tt.wantCode {
				t.Errorf("エラーコード %s が返されるべき: %v", tt.wantCode, err)
			}
		})
	}
}

func TestResumeFeed_RequiresPaused(t *testing.T) {
	feedRepo := &mockFeedRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Feed, error) {
			return &model.Feed{ID: id, Status: model.FeedStatusActive, Settings: validSettings()}, nil
		},
	}
	svc := newTestService(feedRepo, &mockShopRepo{})

	_, err := svc.ResumeFeed(context.Background(), "feed-1")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeFeedNotPaused {
		t.Errorf("FEED_NOT_PAUSEDエラーが返されるべき: %v", err)
	}
}

func TestResumeFeed_Success(t *testing.T) {
	feedRepo := &mockFeedRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Feed, error) {
			return &model.Feed{ID: id, Status: model.FeedStatusPaused, Settings: validSettings()}, nil
		},
	}
	svc := newTestService(feedRepo, &mockShopRepo{})

	feed, err := svc.ResumeFeed(context.Background(), "feed-1")
	if err != nil {
		t.Fatalf("エラーが発生した: %v", err)
	}
	if feed.Status != model.FeedStatusActive {
		t.Errorf("ステータスがactiveでない: %s", feed.Status)
	}
}

func TestReactivateFeed_ResetsRetryState(t *testing.T) {
	failedAt := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	feedRepo := &mockFeedRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Feed, error) {
			settings := validSettings()
			settings.RetryCount = 3
			settings.MaxRetries = 3
			settings.LastError = "catalog unreachable"
			settings.FailedAt = &failedAt
			return &model.Feed{ID: id, Status: model.FeedStatusFailed, Settings: settings}, nil
		},
	}
	svc := newTestService(feedRepo, &mockShopRepo{})

	feed, err := svc.ReactivateFeed(context.Background(), "feed-1")
	if err != nil {
		t.Fatalf("エラーが発生した: %v", err)
	}

	if feed.Status != model.FeedStatusActive {
		t.Errorf("ステータスがactiveでない: %s", feed.Status)
	}
	if feed.Settings.RetryCount != 0 {
		t.Errorf("retry_countがリセットされていない: %d", feed.Settings.RetryCount)
	}
	if feed.Settings.LastError != "" {
		t.Errorf("last_errorがリセットされていない: %s", feed.Settings.LastError)
	}
	if feed.Settings.FailedAt != nil {
		t.Error("failed_atがリセットされていない")
	}
}

func TestReactivateFeed_RequiresFailed(t *testing.T) {
	feedRepo := &mockFeedRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Feed, error) {
			return &model.Feed{ID: id, Status: model.FeedStatusActive, Settings: validSettings()}, nil
		},
	}
	svc := newTestService(feedRepo, &mockShopRepo{})

	_, err := svc.ReactivateFeed(context.Background(), "feed-1")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeFeedNotFailed {
		t.Errorf("FEED_NOT_FAILEDエラーが返されるべき: %v", err)
	}
}

func TestDeleteFeed_NotFound(t *testing.T) {
	svc := newTestService(&mockFeedRepo{}, &mockShopRepo{})

	err := svc.DeleteFeed(context.Background(), "missing")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeFeedNotFound {
		t.Errorf("FEED_NOT_FOUNDエラーが返されるべき: %v", err)
	}
}
