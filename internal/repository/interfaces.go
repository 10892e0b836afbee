// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/feedgen/internal/model"
)

// ShopRepository はショップデータの永続化インターフェース。
type ShopRepository interface {
	// FindByID は指定IDのショップを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Shop, error)
}

// FeedRepository はフィードデータの永続化インターフェース。
// ステータス遷移（active→processing等）はスケジューラの単一実行ガードを兼ねるため、
// アトミックなread-modify-writeとして実装されなければならない。
type FeedRepository interface {
	// FindByID は指定IDのフィードを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Feed, error)

	// ListByShop はショップのフィード一覧を返す。
	ListByShop(ctx context.Context, shopID string) ([]*model.Feed, error)

	// CountByShop はショップのフィード数を返す。プラン上限の判定に使用する。
	CountByShop(ctx context.Context, shopID string) (int, error)

	// Create はフィードを作成する。
	Create(ctx context.Context, feed *model.Feed) error

	// Update はフィードの名前・設定・ステータスを更新する。
	Update(ctx context.Context, feed *model.Feed) error

	// Delete は指定IDのフィードを削除する。バージョン履歴はCASCADE削除される。
	Delete(ctx context.Context, id string) error

	// ListActive はstatusがactiveの全フィードを返す。スケジューリングの列挙に使用する。
	ListActive(ctx context.Context) ([]*model.Feed, error)

	// CountByStatus は指定ステータスのフィード数を返す。
	// 同時実行ゲート（processingのカウント）はこのクエリを共有DBに対して行うため、
	// プロセスをまたいでも安全に機能する。
	CountByStatus(ctx context.Context, status model.FeedStatus) (int, error)

	// MarkProcessing はフィードをactiveからprocessingへアトミックに遷移させる。
	// 遷移できた場合はtrueを返す。既にactiveでない場合はfalseを返す（二重起動の防止）。
	// processing_started_atに現在時刻を記録する。
	MarkProcessing(ctx context.Context, id string, startedAt time.Time) (bool, error)

	// UpdateRunState は生成実行後のフィード状態を更新する。
	// status、settings、last_sync、processing_started_at、live_contentを書き込む。
	UpdateRunState(ctx context.Context, feed *model.Feed) error

	// UpdateLiveContent は配信中のフィード内容を差し替える。ロールバックで使用する。
	UpdateLiveContent(ctx context.Context, id, content string) error

	// ListStaleProcessing はprocessing_started_atがolderThanより古いprocessing状態の
	// フィードを返す。クラッシュした実行の回収（stale lease）に使用する。
	ListStaleProcessing(ctx context.Context, olderThan time.Time) ([]*model.Feed, error)
}

// FeedVersionRepository はフィードバージョンの永続化インターフェース。
// バージョンは追記専用であり、作成後の内容変更は行われない。
type FeedVersionRepository interface {
	// FindByID はフィードIDとバージョンIDでバージョンを取得する。
	// フィードIDでスコープされるため、他フィードのバージョンは見つからない扱いになる。
	// 見つからない場合はnilを返す。
	FindByID(ctx context.Context, feedID, versionID string) (*model.FeedVersion, error)

	// MaxVersion はフィードの最大バージョン番号を返す。バージョンが存在しない場合は0を返す。
	MaxVersion(ctx context.Context, feedID string) (int, error)

	// Create はバージョンを作成する。
	Create(ctx context.Context, version *model.FeedVersion) error

	// ListByFeed はフィードのバージョン一覧をバージョン番号降順で返す。
	// includeArchivedがfalseの場合はactiveのバージョンのみを返す。
	ListByFeed(ctx context.Context, feedID string, includeArchived bool) ([]*model.FeedVersion, error)

	// ArchiveBeyond は最新keep件を除く全バージョンをarchivedに更新し、件数を返す。
	// 削除は行わない。
	ArchiveBeyond(ctx context.Context, feedID string, keep int) (int, error)
}
