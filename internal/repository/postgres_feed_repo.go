package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/feedgen/internal/model"
)

// PostgresFeedRepo はPostgreSQLを使用したフィードリポジトリ。
type PostgresFeedRepo struct {
	db *sql.DB
}

// NewPostgresFeedRepo はPostgresFeedRepoを生成する。
func NewPostgresFeedRepo(db *sql.DB) *PostgresFeedRepo {
	return &PostgresFeedRepo{db: db}
}

// feedColumns はフィード取得クエリの共通SELECT句。
const feedColumns = `id, shop_id, name, settings, status, last_sync,
        processing_started_at, live_content, created_at, updated_at`

// scanFeed は1行分のフィードをスキャンする。
func scanFeed(scan func(dest ...any) error) (*model.Feed, error) {
	feed := &model.Feed{}
	var settingsJSON []byte
	var lastSync, processingStartedAt sql.NullTime
	var liveContent sql.NullString

	if err := scan(
		&feed.ID, &feed.ShopID, &feed.Name, &settingsJSON, &feed.Status,
		&lastSync, &processingStartedAt, &liveContent,
		&feed.CreatedAt, &feed.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(settingsJSON, &feed.Settings); err != nil {
		return nil, fmt.Errorf("フィード設定の読み取りに失敗しました: %w", err)
	}

	feed.LastSync = nullTimeValue(lastSync)
	feed.ProcessingStartedAt = nullTimeValue(processingStartedAt)
	feed.LiveContent = nullStringValue(liveContent)

	return feed, nil
}

// FindByID は指定IDのフィードを取得する。見つからない場合はnilを返す。
func (r *PostgresFeedRepo) FindByID(ctx context.Context, id string) (*model.Feed, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+feedColumns+` FROM feeds WHERE id = $1`, id)

	feed, err := scanFeed(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	return feed, nil
}

// ListByShop はショップのフィード一覧を返す。
func (r *PostgresFeedRepo) ListByShop(ctx context.Context, shopID string) ([]*model.Feed, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+feedColumns+` FROM feeds WHERE shop_id = $1 ORDER BY created_at ASC`,
		shopID,
	)
	if err != nil {
		return nil, fmt.Errorf("ショップのフィード一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectFeeds(rows)
}

// CountByShop はショップのフィード数を返す。
func (r *PostgresFeedRepo) CountByShop(ctx context.Context, shopID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM feeds WHERE shop_id = $1`, shopID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ショップのフィード数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// Create はフィードを作成する。
func (r *PostgresFeedRepo) Create(ctx context.Context, feed *model.Feed) error {
	settingsJSON, err := json.Marshal(feed.Settings)
	if err != nil {
		return fmt.Errorf("フィード設定のシリアライズに失敗しました: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO feeds (id, shop_id, name, settings, status, last_sync,
		                    processing_started_at, live_content, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		feed.ID, feed.ShopID, feed.Name, settingsJSON, feed.Status,
		nullTime(feed.LastSync), nullTime(feed.ProcessingStartedAt),
		feed.LiveContent, feed.CreatedAt, feed.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("フィードの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はフィードの名前・設定・ステータスを更新する。
func (r *PostgresFeedRepo) Update(ctx context.Context, feed *model.Feed) error {
	settingsJSON, err := json.Marshal(feed.Settings)
	if err != nil {
		return fmt.Errorf("フィード設定のシリアライズに失敗しました: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE feeds SET name = $2, settings = $3, status = $4, updated_at = now()
		 WHERE id = $1`,
		feed.ID, feed.Name, settingsJSON, feed.Status,
	)
	if err != nil {
		return fmt.Errorf("フィードの更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDのフィードを削除する。バージョン履歴はCASCADE削除される。
func (r *PostgresFeedRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM feeds WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("フィードの削除に失敗しました: %w", err)
	}
	return nil
}

// ListActive はstatusがactiveの全フィードを返す。
func (r *PostgresFeedRepo) ListActive(ctx context.Context) ([]*model.Feed, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+feedColumns+` FROM feeds WHERE status = 'active' ORDER BY last_sync ASC NULLS FIRST`,
	)
	if err != nil {
		return nil, fmt.Errorf("アクティブフィードの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectFeeds(rows)
}

// CountByStatus は指定ステータスのフィード数を返す。
func (r *PostgresFeedRepo) CountByStatus(ctx context.Context, status model.FeedStatus) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM feeds WHERE status = $1`, status,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ステータス別フィード数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// MarkProcessing はフィードをactiveからprocessingへアトミックに遷移させる。
// WHERE句のstatus条件付きUPDATEにより、複数スケジューラからの二重起動を防止する。
func (r *PostgresFeedRepo) MarkProcessing(ctx context.Context, id string, startedAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE feeds SET status = 'processing', processing_started_at = $2, updated_at = now()
		 WHERE id = $1 AND status = 'active'`,
		id, startedAt,
	)
	if err != nil {
		return false, fmt.Errorf("processing遷移に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("processing遷移の結果確認に失敗しました: %w", err)
	}

	return affected == 1, nil
}

// UpdateRunState は生成実行後のフィード状態を更新する。
func (r *PostgresFeedRepo) UpdateRunState(ctx context.Context, feed *model.Feed) error {
	settingsJSON, err := json.Marshal(feed.Settings)
	if err != nil {
		return fmt.Errorf("フィード設定のシリアライズに失敗しました: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE feeds SET
		    status = $2,
		    settings = $3,
		    last_sync = $4,
		    processing_started_at = $5,
		    live_content = $6,
		    updated_at = now()
		 WHERE id = $1`,
		feed.ID, feed.Status, settingsJSON,
		nullTime(feed.LastSync), nullTime(feed.ProcessingStartedAt),
		feed.LiveContent,
	)
	if err != nil {
		return fmt.Errorf("実行状態の更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateLiveContent は配信中のフィード内容を差し替える。
func (r *PostgresFeedRepo) UpdateLiveContent(ctx context.Context, id, content string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE feeds SET live_content = $2, updated_at = now() WHERE id = $1`,
		id, content,
	)
	if err != nil {
		return fmt.Errorf("配信内容の更新に失敗しました: %w", err)
	}
	return nil
}

// ListStaleProcessing はprocessing_started_atがolderThanより古いprocessing状態のフィードを返す。
func (r *PostgresFeedRepo) ListStaleProcessing(ctx context.Context, olderThan time.Time) ([]*model.Feed, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+feedColumns+` FROM feeds
		 WHERE status = 'processing' AND processing_started_at < $1
		 ORDER BY processing_started_at ASC`,
		olderThan,
	)
	if err != nil {
		return nil, fmt.Errorf("stale processingフィードの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectFeeds(rows)
}

// collectFeeds はrowsから全フィードを読み取る。
func collectFeeds(rows *sql.Rows) ([]*model.Feed, error) {
	var feeds []*model.Feed
	for rows.Next() {
		feed, err := scanFeed(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("フィードの読み取りに失敗しました: %w", err)
		}
		feeds = append(feeds, feed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フィードの走査に失敗しました: %w", err)
	}
	return feeds, nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// nullTime は*time.Timeをsql.NullTimeに変換する。
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullTimeValue はsql.NullTimeから*time.Timeを取得する。
func nullTimeValue(nt sql.NullTime) *time.Time {
	if nt.Valid {
		t := nt.Time
		return &t
	}
	return nil
}

// compile-time interface check
var _ FeedRepository = (*PostgresFeedRepo)(nil)
