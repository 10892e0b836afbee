// Package handler はHTTP APIのハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/feedgen/internal/middleware"
	"github.com/hitoshi/feedgen/internal/model"
)

// FeedServiceInterface はフィードハンドラーが必要とするサービスインターフェース。
type FeedServiceInterface interface {
	// CreateFeed は新しいフィードを作成する。
	CreateFeed(ctx context.Context, shopID, name string, settings model.FeedSettings) (*model.Feed, error)
	// GetFeed はフィード情報を取得する。
	GetFeed(ctx context.Context, feedID string) (*model.Feed, error)
	// ListFeeds はショップのフィード一覧を返す。
	ListFeeds(ctx context.Context, shopID string) ([]*model.Feed, error)
	// UpdateSettings はフィードの設定を更新する。
	UpdateSettings(ctx context.Context, feedID string, settings model.FeedSettings) (*model.Feed, error)
	// DeleteFeed はフィードを削除する。
	DeleteFeed(ctx context.Context, feedID string) error
	// PauseFeed はフィードを一時停止する。
	PauseFeed(ctx context.Context, feedID string) (*model.Feed, error)
	// ResumeFeed は一時停止中のフィードを再開する。
	ResumeFeed(ctx context.Context, feedID string) (*model.Feed, error)
	// ReactivateFeed は恒久失敗状態のフィードを再アクティブ化する。
	ReactivateFeed(ctx context.Context, feedID string) (*model.Feed, error)
}

// FeedHandler はフィード管理のHTTPハンドラー。
type FeedHandler struct {
	service FeedServiceInterface
	baseURL string
}

// NewFeedHandler はFeedHandlerを生成する。
// baseURLは公開フィードURLの組み立てに使用する。
func NewFeedHandler(service FeedServiceInterface, baseURL string) *FeedHandler {
	return &FeedHandler{service: service, baseURL: strings.TrimRight(baseURL, "/")}
}

// createFeedRequest はフィード作成リクエストのボディ。
type createFeedRequest struct {
	ShopID   string             `json:"shop_id"`
	Name     string             `json:"name"`
	Settings model.FeedSettings `json:"settings"`
}

// updateFeedSettingsRequest はフィード設定更新リクエストのボディ。
type updateFeedSettingsRequest struct {
	Settings model.FeedSettings `json:"settings"`
}

// feedResponse はフィード情報のAPIレスポンス。
type feedResponse struct {
	ID        string             `json:"id"`
	ShopID    string             `json:"shop_id"`
	Name      string             `json:"name"`
	Status    string             `json:"status"`
	Settings  model.FeedSettings `json:"settings"`
	OutputURL string             `json:"output_url"`
	LastSync  *time.Time         `json:"last_sync,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// CreateFeed はフィード作成を処理する。
// POST /api/feeds
func (h *FeedHandler) CreateFeed(w http.ResponseWriter, r *http.Request) {
	var req createFeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}

	if req.ShopID == "" || req.Name == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "shop_idとnameは必須です。",
			Category: "validation",
			Action:   "shop_idとnameを指定してください。",
		})
		return
	}

	feed, err := h.service.CreateFeed(r.Context(), req.ShopID, req.Name, req.Settings)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, h.toFeedResponse(feed))
}

// ListFeeds はショップのフィード一覧を処理する。
// GET /api/feeds?shop_id={shopID}
func (h *FeedHandler) ListFeeds(w http.ResponseWriter, r *http.Request) {
	shopID := r.URL.Query().Get("shop_id")
	if shopID == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "shop_idクエリパラメータが必要です。",
			Category: "validation",
			Action:   "?shop_id=の形式でショップIDを指定してください。",
		})
		return
	}

	feeds, err := h.service.ListFeeds(r.Context(), shopID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]feedResponse, 0, len(feeds))
	for _, feed := range feeds {
		responses = append(responses, h.toFeedResponse(feed))
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"feeds": responses})
}

// GetFeed はフィード取得を処理する。
// GET /api/feeds/{id}
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	feedID := chi.URLParam(r, "id")

	feed, err := h.service.GetFeed(r.Context(), feedID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, h.toFeedResponse(feed))
}

// UpdateSettings はフィード設定の更新を処理する。
// PUT /api/feeds/{id}/settings
func (h *FeedHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	feedID := chi.URLParam(r, "id")

	var req updateFeedSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}

	feed, err := h.service.UpdateSettings(r.Context(), feedID, req.Settings)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, h.toFeedResponse(feed))
}

// DeleteFeed はフィード削除を処理する。
// DELETE /api/feeds/{id}
func (h *FeedHandler) DeleteFeed(w http.ResponseWriter, r *http.Request) {
	feedID := chi.URLParam(r, "id")

	if err := h.service.DeleteFeed(r.Context(), feedID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PauseFeed はフィードの一時停止を処理する。
// POST /api/feeds/{id}/pause
func (h *FeedHandler) PauseFeed(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.PauseFeed)
}

// ResumeFeed はフィードの再開を処理する。
// POST /api/feeds/{id}/resume
func (h *FeedHandler) ResumeFeed(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.ResumeFeed)
}

// ReactivateFeed は失敗フィードの再アクティブ化を処理する。
// POST /api/feeds/{id}/reactivate
func (h *FeedHandler) ReactivateFeed(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.ReactivateFeed)
}

// transition はライフサイクル操作の共通処理。
func (h *FeedHandler) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, feedID string) (*model.Feed, error)) {
	feedID := chi.URLParam(r, "id")

	feed, err := op(r.Context(), feedID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, h.toFeedResponse(feed))
}

// toFeedResponse はmodel.FeedをAPIレスポンスに変換する。
// 生成済みフィードの公開URLをレスポンスに含める。
func (h *FeedHandler) toFeedResponse(feed *model.Feed) feedResponse {
	return feedResponse{
		ID:        feed.ID,
		ShopID:    feed.ShopID,
		Name:      feed.Name,
		Status:    string(feed.Status),
		Settings:  feed.Settings,
		OutputURL: h.baseURL + "/feeds/" + feed.ID + "/output",
		LastSync:  feed.LastSync,
		CreatedAt: feed.CreatedAt,
		UpdatedAt: feed.UpdatedAt,
	}
}

// invalidRequestBodyError はJSONボディ解析失敗のエラーを生成する。
func invalidRequestBodyError() *model.APIError {
	return &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// writeJSONResponse はJSONレスポンスを書き込む。
func writeJSONResponse(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeFeedNotFound, model.ErrCodeShopNotFound, model.ErrCodeVersionNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidFormat, model.ErrCodeInvalidFrequency:
		return http.StatusBadRequest
	case model.ErrCodeFeedLimitReached, model.ErrCodeFeedNotFailed, model.ErrCodeFeedNotPaused, model.ErrCodeFeedNotActive:
		return http.StatusConflict
	case model.ErrCodeCatalogFetch:
		return http.StatusBadGateway
	case model.ErrCodeSSRFBlocked:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
