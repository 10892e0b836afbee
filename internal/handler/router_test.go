package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/feedgen/internal/middleware"
	"github.com/hitoshi/feedgen/internal/model"
)

func newTestRouter(t *testing.T, feeds FeedServiceInterface, versions VersionServiceInterface) http.Handler {
	t.Helper()

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		Logger:            slog.New(slog.NewJSONHandler(io.Discard, nil)),
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		BaseURL:           "https://feeds.example.com",
		FeedService:       feeds,
		VersionService:    versions,
		MetricsGatherer:   prometheus.NewRegistry(),
	})
}

func TestRouter_HealthCheck(t *testing.T) {
	router := newTestRouter(t, &mockFeedService{}, &mockVersionService{})

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("ステータスコードが200でない: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("ヘルスチェックレスポンスが一致しない: %s", w.Body.String())
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, &mockFeedService{}, &mockVersionService{})

	r := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("ステータスコードが200でない: %d", w.Code)
	}
}

func TestRouter_GetFeedRouting(t *testing.T) {
	feeds := &mockFeedService{
		getFeedFn: func(ctx context.Context, feedID string) (*model.Feed, error) {
			if feedID != "feed-1" {
				t.Errorf("フィードIDが一致しない: %s", feedID)
			}
			return sampleFeed(feedID), nil
		},
	}
	router := newTestRouter(t, feeds, &mockVersionService{})

	r := httptest.NewRequest(http.MethodGet, "/api/feeds/feed-1", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("ステータスコードが200でない: %d", w.Code)
	}
}

func TestRouter_CompareRouteNotShadowedByVersionID(t *testing.T) {
	called := false
	versions := &mockVersionService{
		compareVersionsFn: func(ctx context.Context, feedID, fromID, toID string) (*model.VersionDiff, error) {
			called = true
			return &model.VersionDiff{}, nil
		},
	}
	router := newTestRouter(t, feedServiceWithFeed(sampleFeed("feed-1")), versions)

	r := httptest.NewRequest(http.MethodGet, "/api/feeds/feed-1/versions/compare?from=v-1&to=v-2", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("ステータスコードが200でない: %d", w.Code)
	}
	if !called {
		t.Error("compareハンドラーが呼ばれていない")
	}
}

func TestRouter_OutputServesLiveContent(t *testing.T) {
	tests := []struct {
		name            string
		format          model.FeedFormat
		wantContentType string
	}{
		{name: "XMLフィード", format: model.FormatXML, wantContentType: "application/xml; charset=utf-8"},
		{name: "CSVフィード", format: model.FormatCSV, wantContentType: "text/csv; charset=utf-8"},
		{name: "TSVフィード", format: model.FormatTSV, wantContentType: "text/tab-separated-values; charset=utf-8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed := sampleFeed("feed-1")
			feed.Settings.Format = tt.format
			feed.LiveContent = "generated feed body"
			router := newTestRouter(t, feedServiceWithFeed(feed), &mockVersionService{})

			r := httptest.NewRequest(http.MethodGet, "/feeds/feed-1/output", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, r)

			if w.Code != http.StatusOK {
				t.Fatalf("ステータスコードが200でない: %d", w.Code)
			}
			if got := w.Header().Get("Content-Type"); got != tt.wantContentType {
				t.Errorf("Content-Typeが一致しない: %s", got)
			}
			if w.Body.String() != "generated feed body" {
				t.Errorf("配信内容が一致しない: %s", w.Body.String())
			}
		})
	}
}

func TestRouter_OutputNotReadyReturns404(t *testing.T) {
	feed := sampleFeed("feed-1")
	feed.LiveContent = ""
	router := newTestRouter(t, feedServiceWithFeed(feed), &mockVersionService{})

	r := httptest.NewRequest(http.MethodGet, "/feeds/feed-1/output", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, r)

	if w.Code != http.StatusNotFound {
		t.Errorf("ステータスコードが404でない: %d", w.Code)
	}
	resp := parseAPIErrorResponse(t, w)
	if resp["code"] != "OUTPUT_NOT_READY" {
		t.Errorf("エラーコードが一致しない: %s", resp["code"])
	}
}

func TestRouter_SecurityHeadersApplied(t *testing.T) {
	router := newTestRouter(t, &mockFeedService{}, &mockVersionService{})

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, r)

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Optionsが設定されていない: %s", got)
	}
}

func TestRouter_UnknownRouteReturns404(t *testing.T) {
	router := newTestRouter(t, &mockFeedService{}, &mockVersionService{})

	r := httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, r)

	if w.Code != http.StatusNotFound {
		t.Errorf("ステータスコードが404でない: %d", w.Code)
	}
}
