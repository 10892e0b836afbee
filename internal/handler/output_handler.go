package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/feedgen/internal/middleware"
	"github.com/hitoshi/feedgen/internal/model"
)

// OutputHandler は生成済みフィードの配信ハンドラー。
// マーケットプレイスのクローラーが取得するエンドポイントで、認証なしで公開される。
type OutputHandler struct {
	feeds FeedServiceInterface
}

// NewOutputHandler はOutputHandlerを生成する。
func NewOutputHandler(feeds FeedServiceInterface) *OutputHandler {
	return &OutputHandler{feeds: feeds}
}

// ServeFeed は配信中のフィード内容をそのまま返す。
// GET /feeds/{id}/output
func (h *OutputHandler) ServeFeed(w http.ResponseWriter, r *http.Request) {
	feedID := chi.URLParam(r, "id")

	feed, err := h.feeds.GetFeed(r.Context(), feedID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if feed.LiveContent == "" {
		middleware.WriteErrorResponse(w, http.StatusNotFound, &model.APIError{
			Code:     "OUTPUT_NOT_READY",
			Message:  "フィードはまだ生成されていません。",
			Category: "feed",
			Action:   "最初の生成実行が完了するまでお待ちください。",
		})
		return
	}

	w.Header().Set("Content-Type", feed.Settings.Format.ContentType())
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(feed.LiveContent))
}
