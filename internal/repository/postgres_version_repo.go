package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/feedgen/internal/model"
)

// PostgresFeedVersionRepo はPostgreSQLを使用したフィードバージョンリポジトリ。
type PostgresFeedVersionRepo struct {
	db *sql.DB
}

// NewPostgresFeedVersionRepo はPostgresFeedVersionRepoを生成する。
func NewPostgresFeedVersionRepo(db *sql.DB) *PostgresFeedVersionRepo {
	return &PostgresFeedVersionRepo{db: db}
}

// versionColumns はバージョン取得クエリの共通SELECT句。
const versionColumns = `id, feed_id, version, content, format, stats, status,
        rollback_from, note, created_by, created_at`

// scanVersion は1行分のバージョンをスキャンする。
func scanVersion(scan func(dest ...any) error) (*model.FeedVersion, error) {
	v := &model.FeedVersion{}
	var statsJSON []byte
	var rollbackFrom, note sql.NullString

	if err := scan(
		&v.ID, &v.FeedID, &v.Version, &v.Content, &v.Format, &statsJSON,
		&v.Status, &rollbackFrom, &note, &v.CreatedBy, &v.CreatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(statsJSON, &v.Stats); err != nil {
		return nil, fmt.Errorf("バージョン統計の読み取りに失敗しました: %w", err)
	}

	v.RollbackFrom = nullStringValue(rollbackFrom)
	v.Note = nullStringValue(note)

	return v, nil
}

// FindByID はフィードIDとバージョンIDでバージョンを取得する。見つからない場合はnilを返す。
func (r *PostgresFeedVersionRepo) FindByID(ctx context.Context, feedID, versionID string) (*model.FeedVersion, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM feed_versions WHERE id = $1 AND feed_id = $2`,
		versionID, feedID,
	)

	v, err := scanVersion(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("バージョンの取得に失敗しました: %w", err)
	}
	return v, nil
}

// MaxVersion はフィードの最大バージョン番号を返す。バージョンが存在しない場合は0を返す。
func (r *PostgresFeedVersionRepo) MaxVersion(ctx context.Context, feedID string) (int, error) {
	var max int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM feed_versions WHERE feed_id = $1`,
		feedID,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("最大バージョン番号の取得に失敗しました: %w", err)
	}
	return max, nil
}

// Create はバージョンを作成する。
// (feed_id, version)のUNIQUE制約により、同時作成による番号の重複はDBレベルで拒否される。
func (r *PostgresFeedVersionRepo) Create(ctx context.Context, version *model.FeedVersion) error {
	statsJSON, err := json.Marshal(version.Stats)
	if err != nil {
		return fmt.Errorf("バージョン統計のシリアライズに失敗しました: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO feed_versions (id, feed_id, version, content, format, stats,
		                            status, rollback_from, note, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		version.ID, version.FeedID, version.Version, version.Content,
		version.Format, statsJSON, version.Status,
		nullString(version.RollbackFrom), version.Note,
		version.CreatedBy, version.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("バージョンの作成に失敗しました: %w", err)
	}
	return nil
}

// ListByFeed はフィードのバージョン一覧をバージョン番号降順で返す。
func (r *PostgresFeedVersionRepo) ListByFeed(ctx context.Context, feedID string, includeArchived bool) ([]*model.FeedVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM feed_versions WHERE feed_id = $1`
	if !includeArchived {
		query += ` AND status = 'active'`
	}
	query += ` ORDER BY version DESC`

	rows, err := r.db.QueryContext(ctx, query, feedID)
	if err != nil {
		return nil, fmt.Errorf("バージョン一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var versions []*model.FeedVersion
	for rows.Next() {
		v, err := scanVersion(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("バージョンの読み取りに失敗しました: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("バージョンの走査に失敗しました: %w", err)
	}

	return versions, nil
}

// ArchiveBeyond は最新keep件を除く全バージョンをarchivedに更新し、件数を返す。
func (r *PostgresFeedVersionRepo) ArchiveBeyond(ctx context.Context, feedID string, keep int) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE feed_versions SET status = 'archived'
		 WHERE feed_id = $1
		   AND status = 'active'
		   AND version NOT IN (
		       SELECT version FROM feed_versions
		       WHERE feed_id = $1
		       ORDER BY version DESC
		       LIMIT $2
		   )`,
		feedID, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("バージョンのアーカイブに失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("アーカイブ件数の取得に失敗しました: %w", err)
	}

	return int(affected), nil
}

// compile-time interface check
var _ FeedVersionRepository = (*PostgresFeedVersionRepo)(nil)
