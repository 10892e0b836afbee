package repository

import (
	"database/sql"
	"testing"
	"time"

	"github.com/hitoshi/feedgen/internal/model"
)

// PostgresFeedRepoはFeedRepositoryインターフェースを満たすことを検証
func TestPostgresFeedRepo_ImplementsInterface(t *testing.T) {
	var _ FeedRepository = (*PostgresFeedRepo)(nil)
}

// NewPostgresFeedRepoが正しく初期化されることを検証
func TestNewPostgresFeedRepo_Initializes(t *testing.T) {
	repo := NewPostgresFeedRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// Feedモデルのフィールドが正しく構築されることを検証
func TestPostgresFeedRepo_FeedModel_Fields(t *testing.T) {
	now := time.Now()
	feed := &model.Feed{
		ID:     "feed-id-1",
		ShopID: "shop-id-1",
		Name:   "Google Merchant フィード",
		Status: model.FeedStatusActive,
		Settings: model.FeedSettings{
			Country:         "JP",
			Language:        "ja",
			Currency:        "JPY",
			Format:          model.FormatXML,
			UpdateFrequency: model.FrequencyDaily,
			MaxRetries:      3,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if feed.ID != "feed-id-1" {
		t.Errorf("feed.ID = %q, want %q", feed.ID, "feed-id-1")
	}
	if feed.Status != model.FeedStatusActive {
		t.Errorf("feed.Status = %q, want %q", feed.Status, model.FeedStatusActive)
	}
	if feed.Settings.Format != model.FormatXML {
		t.Errorf("feed.Settings.Format = %q, want %q", feed.Settings.Format, model.FormatXML)
	}
}

// LastSyncとProcessingStartedAtがnil許容であることを検証
func TestPostgresFeedRepo_FeedModel_NilTimestamps(t *testing.T) {
	feed := &model.Feed{
		ID:     "feed-id-2",
		ShopID: "shop-id-1",
		Name:   "新規フィード",
	}

	if feed.LastSync != nil {
		t.Error("last_sync should be nil by default")
	}
	if feed.ProcessingStartedAt != nil {
		t.Error("processing_started_at should be nil by default")
	}
}

func TestNullString_Empty(t *testing.T) {
	ns := nullString("")
	if ns.Valid {
		t.Error("空文字列はValid=falseになるべき")
	}
}

func TestNullString_NonEmpty(t *testing.T) {
	ns := nullString("value")
	if !ns.Valid || ns.String != "value" {
		t.Errorf("nullString(\"value\") = %+v, want Valid=true", ns)
	}
}

func TestNullStringValue_Roundtrip(t *testing.T) {
	if got := nullStringValue(nullString("abc")); got != "abc" {
		t.Errorf("roundtrip = %q, want abc", got)
	}
	if got := nullStringValue(sql.NullString{}); got != "" {
		t.Errorf("invalid NullString = %q, want empty", got)
	}
}

func TestNullTime_Nil(t *testing.T) {
	nt := nullTime(nil)
	if nt.Valid {
		t.Error("nilはValid=falseになるべき")
	}
	if got := nullTimeValue(nt); got != nil {
		t.Errorf("nullTimeValue(invalid) = %v, want nil", got)
	}
}

func TestNullTime_Roundtrip(t *testing.T) {
	now := time.Now()
	got := nullTimeValue(nullTime(&now))
	if got == nil || !got.Equal(now) {
		t.Errorf("roundtrip = %v, want %v", got, now)
	}
}
