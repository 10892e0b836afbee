package middleware

import "net/http"

// プリフライト結果のブラウザキャッシュ期間（秒）
const corsMaxAge = "86400"

// NewCORSMiddleware は単一オリジン向けのCORSミドルウェアを返す。
// 管理画面のオリジンのみを許可し、credentials送信を前提とするため
// ワイルドカード(*)は使わない。
func NewCORSMiddleware(allowedOrigin string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowedOrigin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Max-Age", corsMaxAge)

			// プリフライトはここで打ち切る
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
