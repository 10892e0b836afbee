package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/feedgen/internal/model"
)

// PostgresShopRepo はPostgreSQLを使用したショップリポジトリ。
type PostgresShopRepo struct {
	db *sql.DB
}

// NewPostgresShopRepo はPostgresShopRepoを生成する。
func NewPostgresShopRepo(db *sql.DB) *PostgresShopRepo {
	return &PostgresShopRepo{db: db}
}

// FindByID は指定IDのショップを取得する。見つからない場合はnilを返す。
func (r *PostgresShopRepo) FindByID(ctx context.Context, id string) (*model.Shop, error) {
	shop := &model.Shop{}
	var accessToken sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, domain, catalog_url, access_token, tier, created_at, updated_at
		 FROM shops WHERE id = $1`,
		id,
	).Scan(
		&shop.ID, &shop.Name, &shop.Domain, &shop.CatalogURL,
		&accessToken, &shop.Tier, &shop.CreatedAt, &shop.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ショップの取得に失敗しました: %w", err)
	}

	shop.AccessToken = nullStringValue(accessToken)

	return shop, nil
}

// compile-time interface check
var _ ShopRepository = (*PostgresShopRepo)(nil)
