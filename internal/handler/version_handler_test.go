package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/feedgen/internal/model"
)

// mockVersionService はVersionServiceInterfaceのモック実装。
type mockVersionService struct {
	getVersionHistoryFn func(ctx context.Context, feedID string, includeArchived bool) ([]*model.FeedVersion, error)
	rollbackFn          func(ctx context.Context, feed *model.Feed, versionID string) (*model.FeedVersion, error)
	compareVersionsFn   func(ctx context.Context, feedID, fromID, toID string) (*model.VersionDiff, error)
}

func (m *mockVersionService) GetVersionHistory(ctx context.Context, feedID string, includeArchived bool) ([]*model.FeedVersion, error) {
	if m.getVersionHistoryFn != nil {
		return m.getVersionHistoryFn(ctx, feedID, includeArchived)
	}
	return nil, nil
}

func (m *mockVersionService) Rollback(ctx context.Context, feed *model.Feed, versionID string) (*model.FeedVersion, error) {
	if m.rollbackFn != nil {
		return m.rollbackFn(ctx, feed, versionID)
	}
	return nil, nil
}

func (m *mockVersionService) CompareVersions(ctx context.Context, feedID, fromID, toID string) (*model.VersionDiff, error) {
	if m.compareVersionsFn != nil {
		return m.compareVersionsFn(ctx, feedID, fromID, toID)
	}
	return nil, nil
}

func feedServiceWithFeed(feed *model.Feed) *mockFeedService {
	return &mockFeedService{
		getFeedFn: func(ctx context.Context, feedID string) (*model.Feed, error) {
			return feed, nil
		},
	}
}

func sampleVersion(id string, version int) *model.FeedVersion {
	return &model.FeedVersion{
		ID:      id,
		FeedID:  "feed-1",
		Version: version,
		Format:  model.FormatXML,
		Stats: model.VersionStats{
			TotalProducts: 100,
			ValidProducts: 95,
		},
		Status:    model.VersionStatusActive,
		CreatedBy: "system",
		CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestListVersions_ReturnsHistory(t *testing.T) {
	var gotIncludeArchived bool
	versions := &mockVersionService{
		getVersionHistoryFn: func(ctx context.Context, feedID string, includeArchived bool) ([]*model.FeedVersion, error) {
			gotIncludeArchived = includeArchived
			return []*model.FeedVersion{sampleVersion("v-2", 2), sampleVersion("v-1", 1)}, nil
		},
	}
	h := NewVersionHandler(versions, feedServiceWithFeed(sampleFeed("feed-1")))

	r := httptest.NewRequest(http.MethodGet, "/api/feeds/feed-1/versions?include_archived=true", nil)
	r = withChiURLParam(r, "id", "feed-1")
	w := httptest.NewRecorder()

	h.ListVersions(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("ステータスコードが200でない: %d", w.Code)
	}
	if !gotIncludeArchived {
		t.Error("include_archivedが伝播していない")
	}

	var resp struct {
		Versions []versionResponse `json:"versions"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスの解析に失敗した: %v", err)
	}
	if len(resp.Versions) != 2 {
		t.Errorf("バージョン数が一致しない: %d", len(resp.Versions))
	}
	if resp.Versions[0].Version != 2 {
		t.Errorf("バージョン番号降順でない: %d", resp.Versions[0].Version)
	}
}

func TestListVersions_FeedNotFound(t *testing.T) {
	h := NewVersionHandler(&mockVersionService{}, &mockFeedService{})

	r := httptest.NewRequest(http.MethodGet, "/api/feeds/missing/versions", nil)
	r = withChiURLParam(r, "id", "missing")
	w := httptest.NewRecorder()

	h.ListVersions(w, r)

	if w.Code != http.StatusNotFound {
		t.Errorf("ステータスコードが404でない: %d", w.Code)
	}
}

func TestRollback_Returns201(t *testing.T) {
	versions := &mockVersionService{
		rollbackFn: func(ctx context.Context, feed *model.Feed, versionID string) (*model.FeedVersion, error) {
			if versionID != "v-2" {
				t.Errorf("バージョンIDが一致しない: %s", versionID)
			}
			v := sampleVersion("v-6", 6)
			v.RollbackFrom = versionID
			v.CreatedBy = "rollback"
			return v, nil
		},
	}
	h := NewVersionHandler(versions, feedServiceWithFeed(sampleFeed("feed-1")))

	r := httptest.NewRequest(http.MethodPost, "/api/feeds/feed-1/versions/v-2/rollback", nil)
	r = withChiURLParam(r, "id", "feed-1")
	r = withChiURLParam(r, "versionID", "v-2")
	w := httptest.NewRecorder()

	h.Rollback(w, r)

	if w.Code != http.StatusCreated {
		t.Fatalf("ステータスコードが201でない: %d", w.Code)
	}

	var resp versionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスの解析に失敗した: %v", err)
	}
	if resp.RollbackFrom != "v-2" {
		t.Errorf("rollback_fromが一致しない: %s", resp.RollbackFrom)
	}
	if resp.CreatedBy != "rollback" {
		t.Errorf("created_byがrollbackでない: %s", resp.CreatedBy)
	}
}

func TestRollback_VersionNotFoundReturns404(t *testing.T) {
	versions := &mockVersionService{
		rollbackFn: func(ctx context.Context, feed *model.Feed, versionID string) (*model.FeedVersion, error) {
			return nil, model.NewVersionNotFoundError(versionID)
		},
	}
	h := NewVersionHandler(versions, feedServiceWithFeed(sampleFeed("feed-1")))

	r := httptest.NewRequest(http.MethodPost, "/api/feeds/feed-1/versions/missing/rollback", nil)
	r = withChiURLParam(r, "id", "feed-1")
	r = withChiURLParam(r, "versionID", "missing")
	w := httptest.NewRecorder()

	h.Rollback(w, r)

	if w.Code != http.StatusNotFound {
		t.Errorf("ステータスコードが404でない: %d", w.Code)
	}
	resp := parseAPIErrorResponse(t, w)
	if resp["code"] != model.ErrCodeVersionNotFound {
		t.Errorf("エラーコードが一致しない: %s", resp["code"])
	}
}

func TestCompare_RequiresFromAndTo(t *testing.T) {
	h := NewVersionHandler(&mockVersionService{}, &mockFeedService{})

	r := httptest.NewRequest(http.MethodGet, "/api/feeds/feed-1/versions/compare?from=v-1", nil)
	r = withChiURLParam(r, "id", "feed-1")
	w := httptest.NewRecorder()

	h.Compare(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("ステータスコードが400でない: %d", w.Code)
	}
}

func TestCompare_ReturnsDiff(t *testing.T) {
	versions := &mockVersionService{
		compareVersionsFn: func(ctx context.Context, feedID, fromID, toID string) (*model.VersionDiff, error) {
			return &model.VersionDiff{
				TotalDelta:    20,
				ValidDelta:    25,
				InvalidDelta:  -5,
				ErrorsAdded:   []string{"availability"},
				ErrorsRemoved: []string{"gtin"},
				TimeGap:       2 * time.Hour,
			}, nil
		},
	}
	h := NewVersionHandler(versions, feedServiceWithFeed(sampleFeed("feed-1")))

	r := httptest.NewRequest(http.MethodGet, "/api/feeds/feed-1/versions/compare?from=v-1&to=v-2", nil)
	r = withChiURLParam(r, "id", "feed-1")
	w := httptest.NewRecorder()

	h.Compare(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("ステータスコードが200でない: %d", w.Code)
	}

	var resp versionDiffResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスの解析に失敗した: %v", err)
	}
	if resp.TotalDelta != 20 || resp.ValidDelta != 25 || resp.InvalidDelta != -5 {
		t.Errorf("デルタが一致しない: %+v", resp)
	}
	if resp.TimeGapSeconds != 7200 {
		t.Errorf("time_gap_secondsが一致しない: %f", resp.TimeGapSeconds)
	}
	if len(resp.ErrorsAdded) != 1 || resp.ErrorsAdded[0] != "availability" {
		t.Errorf("errors_addedが一致しない: %v", resp.ErrorsAdded)
	}
}
