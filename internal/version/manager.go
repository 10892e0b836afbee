// Package version はフィードの生成結果を追記専用の番号付き履歴として管理する。
package version

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/feedgen/internal/metrics"
	"github.com/hitoshi/feedgen/internal/model"
	"github.com/hitoshi/feedgen/internal/repository"
)

// VersionManagerService はバージョン管理のインターフェースを定義する。
// ワーカーのオーケストレータとHTTPハンドラの両方から使用される。
type VersionManagerService interface {
	// CreateVersion は新しいバージョンを作成して返す。
	// バージョン番号は既存の最大値+1（初回は1）。作成後に保持数超過分をアーカイブする。
	// アーカイブの失敗はログに記録して無視し、作成処理は成功のまま返す。
	CreateVersion(ctx context.Context, feed *model.Feed, content string, stats model.VersionStats, createdBy string) (*model.FeedVersion, error)

	// GetVersionHistory はバージョン履歴を新しい順で返す。
	// includeArchivedがfalseの場合はアーカイブ済みを除外する。
	GetVersionHistory(ctx context.Context, feedID string, includeArchived bool) ([]*model.FeedVersion, error)

	// Rollback は過去バージョンの内容で新しいバージョンを作成し、
	// フィードの配信内容を差し替える。履歴は書き換えない。
	Rollback(ctx context.Context, feed *model.Feed, versionID string) (*model.FeedVersion, error)

	// CompareVersions は2バージョン間の構造的な差分を返す。
	CompareVersions(ctx context.Context, feedID, fromID, toID string) (*model.VersionDiff, error)
}

// Manager はVersionManagerServiceの実装。
type Manager struct {
	versionRepo    repository.FeedVersionRepository
	feedRepo       repository.FeedRepository
	logger         *slog.Logger
	collector      metrics.MetricsCollector
	versionsToKeep int
}

// NewManager はManagerの新しいインスタンスを生成する。
// versionsToKeepはアーカイブせず保持する最新バージョン数。
func NewManager(
	versionRepo repository.FeedVersionRepository,
	feedRepo repository.FeedRepository,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
	versionsToKeep int,
) *Manager {
	return &Manager{
		versionRepo:    versionRepo,
		feedRepo:       feedRepo,
		logger:         logger,
		collector:      collector,
		versionsToKeep: versionsToKeep,
	}
}

var _ VersionManagerService = (*Manager)(nil)

// CreateVersion は新しいバージョンを作成する。
func (m *Manager) CreateVersion(ctx context.Context, feed *model.Feed, content string, stats model.VersionStats, createdBy string) (*model.FeedVersion, error) {
	maxVersion, err := m.versionRepo.MaxVersion(ctx, feed.ID)
	if err != nil {
		return nil, fmt.Errorf("最大バージョン番号の取得に失敗: %w", err)
	}

	v := &model.FeedVersion{
		ID:        uuid.NewString(),
		FeedID:    feed.ID,
		Version:   maxVersion + 1,
		Content:   content,
		Format:    feed.Settings.Format,
		Stats:     stats,
		Status:    model.VersionStatusActive,
		CreatedBy: createdBy,
		CreatedAt: time.Now(),
	}

	if err := m.versionRepo.Create(ctx, v); err != nil {
		return nil, fmt.Errorf("バージョンの作成に失敗: %w", err)
	}

	m.logger.Info("フィードバージョンを作成しました",
		slog.String("feed_id", feed.ID),
		slog.String("version_id", v.ID),
		slog.Int("version", v.Version),
		slog.String("format", string(v.Format)),
		slog.Int("valid_products", stats.ValidProducts),
		slog.Int("invalid_products", stats.InvalidProducts),
	)
	m.collector.RecordVersionCreated(string(v.Format))

	m.archiveOldVersions(ctx, feed.ID)

	return v, nil
}

// archiveOldVersions は保持数を超えたバージョンをアーカイブする。
// 失敗しても呼び出し元のバージョン作成を妨げない。
func (m *Manager) archiveOldVersions(ctx context.Context, feedID string) {
	archived, err := m.versionRepo.ArchiveBeyond(ctx, feedID, m.versionsToKeep)
	if err != nil {
		m.logger.Error("古いバージョンのアーカイブに失敗しました",
			slog.String("feed_id", feedID),
			slog.String("error", err.Error()),
		)
		return
	}
	if archived > 0 {
		m.logger.Info("古いバージョンをアーカイブしました",
			slog.String("feed_id", feedID),
			slog.Int("archived_count", archived),
		)
	}
}

// GetVersionHistory はバージョン履歴を新しい順で返す。
func (m *Manager) GetVersionHistory(ctx context.Context, feedID string, includeArchived bool) ([]*model.FeedVersion, error) {
	versions, err := m.versionRepo.ListByFeed(ctx, feedID, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("バージョン履歴の取得に失敗: %w", err)
	}
	return versions, nil
}

// Rollback は過去バージョンの内容で新しいバージョンを作成する。
func (m *Manager) Rollback(ctx context.Context, feed *model.Feed, versionID string) (*model.FeedVersion, error) {
	target, err := m.versionRepo.FindByID(ctx, feed.ID, versionID)
	if err != nil {
		return nil, fmt.Errorf("バージョンの取得に失敗: %w", err)
	}
	if target == nil {
		return nil, model.NewVersionNotFoundError(versionID)
	}

	maxVersion, err := m.versionRepo.MaxVersion(ctx, feed.ID)
	if err != nil {
		return nil, fmt.Errorf("最大バージョン番号の取得に失敗: %w", err)
	}

	v := &model.FeedVersion{
		ID:           uuid.NewString(),
		FeedID:       feed.ID,
		Version:      maxVersion + 1,
		Content:      target.Content,
		Format:       target.Format,
		Stats:        target.Stats,
		Status:       model.VersionStatusActive,
		RollbackFrom: target.ID,
		Note:         fmt.Sprintf("バージョン%dへのロールバック", target.Version),
		CreatedBy:    "rollback",
		CreatedAt:    time.Now(),
	}

	if err := m.versionRepo.Create(ctx, v); err != nil {
		return nil, fmt.Errorf("ロールバックバージョンの作成に失敗: %w", err)
	}

	if err := m.feedRepo.UpdateLiveContent(ctx, feed.ID, target.Content); err != nil {
		return nil, fmt.Errorf("配信内容の差し替えに失敗: %w", err)
	}

	m.logger.Info("フィードをロールバックしました",
		slog.String("feed_id", feed.ID),
		slog.String("rollback_from", target.ID),
		slog.Int("source_version", target.Version),
		slog.Int("new_version", v.Version),
	)
	m.collector.RecordVersionRollback(feed.ID)

	m.archiveOldVersions(ctx, feed.ID)

	return v, nil
}

// CompareVersions は2バージョン間の差分を計算する。
// 件数の増減、エラー/警告フィールド集合の対称差、作成時刻の差を返す。
func (m *Manager) CompareVersions(ctx context.Context, feedID, fromID, toID string) (*model.VersionDiff, error) {
	from, err := m.versionRepo.FindByID(ctx, feedID, fromID)
	if err != nil {
		return nil, fmt.Errorf("比較元バージョンの取得に失敗: %w", err)
	}
	if from == nil {
		return nil, model.NewVersionNotFoundError(fromID)
	}

	to, err := m.versionRepo.FindByID(ctx, feedID, toID)
	if err != nil {
		return nil, fmt.Errorf("比較先バージョンの取得に失敗: %w", err)
	}
	if to == nil {
		return nil, model.NewVersionNotFoundError(toID)
	}

	diff := &model.VersionDiff{
		TotalDelta:   to.Stats.TotalProducts - from.Stats.TotalProducts,
		ValidDelta:   to.Stats.ValidProducts - from.Stats.ValidProducts,
		InvalidDelta: to.Stats.InvalidProducts - from.Stats.InvalidProducts,
		TimeGap:      to.CreatedAt.Sub(from.CreatedAt),
	}

	fromErrors := errorFieldSet(from.Stats.Errors)
	toErrors := errorFieldSet(to.Stats.Errors)
	diff.ErrorsAdded = setDifference(toErrors, fromErrors)
	diff.ErrorsRemoved = setDifference(fromErrors, toErrors)

	fromWarnings := warningFieldSet(from.Stats.Warnings)
	toWarnings := warningFieldSet(to.Stats.Warnings)
	diff.WarningsAdded = setDifference(toWarnings, fromWarnings)
	diff.WarningsRemoved = setDifference(fromWarnings, toWarnings)

	return diff, nil
}

// errorFieldSet はエラー一覧から重複のないフィールド名集合を作る。
func errorFieldSet(errs []model.ValidationError) map[string]bool {
	set := make(map[string]bool, len(errs))
	for _, e := range errs {
		set[e.Field] = true
	}
	return set
}

// warningFieldSet は警告一覧から重複のないフィールド名集合を作る。
func warningFieldSet(warns []model.ValidationWarning) map[string]bool {
	set := make(map[string]bool, len(warns))
	for _, w := range warns {
		set[w.Field] = true
	}
	return set
}

// setDifference はaに含まれてbに含まれないフィールド名をソートして返す。
func setDifference(a, b map[string]bool) []string {
	var diff []string
	for k := range a {
		if !b[k] {
			diff = append(diff, k)
		}
	}
	sort.Strings(diff)
	return diff
}
