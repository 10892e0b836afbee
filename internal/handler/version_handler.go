package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/feedgen/internal/middleware"
	"github.com/hitoshi/feedgen/internal/model"
)

// VersionServiceInterface はバージョンハンドラーが必要とするサービスインターフェース。
type VersionServiceInterface interface {
	// GetVersionHistory はフィードのバージョン履歴をバージョン番号降順で返す。
	GetVersionHistory(ctx context.Context, feedID string, includeArchived bool) ([]*model.FeedVersion, error)
	// Rollback は過去バージョンの内容で新しいバージョンを作成し、配信内容を差し替える。
	Rollback(ctx context.Context, feed *model.Feed, versionID string) (*model.FeedVersion, error)
	// CompareVersions は2バージョン間の構造的な差分を返す。
	CompareVersions(ctx context.Context, feedID, fromID, toID string) (*model.VersionDiff, error)
}

// VersionHandler はフィードバージョン管理のHTTPハンドラー。
type VersionHandler struct {
	versions VersionServiceInterface
	feeds    FeedServiceInterface
}

// NewVersionHandler はVersionHandlerを生成する。
func NewVersionHandler(versions VersionServiceInterface, feeds FeedServiceInterface) *VersionHandler {
	return &VersionHandler{
		versions: versions,
		feeds:    feeds,
	}
}

// versionResponse はバージョン情報のAPIレスポンス。
// 内容本体は含めない。配信内容の取得は/feeds/{id}/outputを使う。
type versionResponse struct {
	ID           string             `json:"id"`
	FeedID       string             `json:"feed_id"`
	Version      int                `json:"version"`
	Format       string             `json:"format"`
	Stats        model.VersionStats `json:"stats"`
	Status       string             `json:"status"`
	RollbackFrom string             `json:"rollback_from,omitempty"`
	Note         string             `json:"note,omitempty"`
	CreatedBy    string             `json:"created_by"`
	CreatedAt    time.Time          `json:"created_at"`
}

// versionDiffResponse はバージョン比較のAPIレスポンス。
type versionDiffResponse struct {
	TotalDelta      int      `json:"total_delta"`
	ValidDelta      int      `json:"valid_delta"`
	InvalidDelta    int      `json:"invalid_delta"`
	ErrorsAdded     []string `json:"errors_added"`
	ErrorsRemoved   []string `json:"errors_removed"`
	WarningsAdded   []string `json:"warnings_added"`
	WarningsRemoved []string `json:"warnings_removed"`
	TimeGapSeconds  float64  `json:"time_gap_seconds"`
}

// ListVersions はバージョン履歴の取得を処理する。
// GET /api/feeds/{id}/versions?include_archived=true
func (h *VersionHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	feedID := chi.URLParam(r, "id")

	// フィードの存在確認（未検出は404にする）
	if _, err := h.feeds.GetFeed(r.Context(), feedID); err != nil {
		handleServiceError(w, err)
		return
	}

	includeArchived := r.URL.Query().Get("include_archived") == "true"

	versions, err := h.versions.GetVersionHistory(r.Context(), feedID, includeArchived)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]versionResponse, 0, len(versions))
	for _, v := range versions {
		responses = append(responses, toVersionResponse(v))
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"versions": responses})
}

// Rollback は過去バージョンへのロールバックを処理する。
// POST /api/feeds/{id}/versions/{versionID}/rollback
func (h *VersionHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	feedID := chi.URLParam(r, "id")
	versionID := chi.URLParam(r, "versionID")

	feed, err := h.feeds.GetFeed(r.Context(), feedID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	version, err := h.versions.Rollback(r.Context(), feed, versionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toVersionResponse(version))
}

// Compare はバージョン比較を処理する。
// GET /api/feeds/{id}/versions/compare?from={versionID}&to={versionID}
func (h *VersionHandler) Compare(w http.ResponseWriter, r *http.Request) {
	feedID := chi.URLParam(r, "id")
	fromID := r.URL.Query().Get("from")
	toID := r.URL.Query().Get("to")

	if fromID == "" || toID == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "fromとtoクエリパラメータが必要です。",
			Category: "validation",
			Action:   "?from=&to=の形式で比較するバージョンIDを指定してください。",
		})
		return
	}

	diff, err := h.versions.CompareVersions(r.Context(), feedID, fromID, toID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, versionDiffResponse{
		TotalDelta:      diff.TotalDelta,
		ValidDelta:      diff.ValidDelta,
		InvalidDelta:    diff.InvalidDelta,
		ErrorsAdded:     diff.ErrorsAdded,
		ErrorsRemoved:   diff.ErrorsRemoved,
		WarningsAdded:   diff.WarningsAdded,
		WarningsRemoved: diff.WarningsRemoved,
		TimeGapSeconds:  diff.TimeGap.Seconds(),
	})
}

// toVersionResponse はmodel.FeedVersionをAPIレスポンスに変換する。
func toVersionResponse(v *model.FeedVersion) versionResponse {
	return versionResponse{
		ID:           v.ID,
		FeedID:       v.FeedID,
		Version:      v.Version,
		Format:       string(v.Format),
		Stats:        v.Stats,
		Status:       string(v.Status),
		RollbackFrom: v.RollbackFrom,
		Note:         v.Note,
		CreatedBy:    v.CreatedBy,
		CreatedAt:    v.CreatedAt,
	}
}
