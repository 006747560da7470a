package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/crossfeed/internal/model"
)

// PostgresSourceRepo はPostgreSQLを使用したRSSソースリポジトリ。
type PostgresSourceRepo struct {
	db *sql.DB
}

// NewPostgresSourceRepo はPostgresSourceRepoを生成する。
func NewPostgresSourceRepo(db *sql.DB) *PostgresSourceRepo {
	return &PostgresSourceRepo{db: db}
}

// FindByID は指定IDのRSSソースを取得する。見つからない場合はnilを返す。
func (r *PostgresSourceRepo) FindByID(ctx context.Context, id string) (*model.RSSSource, error) {
	source := &model.RSSSource{}
	var etag, lastModified sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, feed_url, title, etag, last_modified, created_at, updated_at
		 FROM rss_sources WHERE id = $1`,
		id,
	).Scan(
		&source.ID, &source.FeedURL, &source.Title,
		&etag, &lastModified,
		&source.CreatedAt, &source.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("RSSソースの取得に失敗しました: %w", err)
	}

	source.ETag = nullStringValue(etag)
	source.LastModified = nullStringValue(lastModified)

	return source, nil
}

// FindByFeedURL はフィードURLでRSSソースを検索する。見つからない場合はnilを返す。
func (r *PostgresSourceRepo) FindByFeedURL(ctx context.Context, feedURL string) (*model.RSSSource, error) {
	source := &model.RSSSource{}
	var etag, lastModified sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, feed_url, title, etag, last_modified, created_at, updated_at
		 FROM rss_sources WHERE feed_url = $1`,
		feedURL,
	).Scan(
		&source.ID, &source.FeedURL, &source.Title,
		&etag, &lastModified,
		&source.CreatedAt, &source.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("フィードURLによるRSSソースの検索に失敗しました: %w", err)
	}

	source.ETag = nullStringValue(etag)
	source.LastModified = nullStringValue(lastModified)

	return source, nil
}

// List は全RSSソースを作成日時の昇順で取得する。
func (r *PostgresSourceRepo) List(ctx context.Context) ([]model.RSSSource, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, feed_url, title, etag, last_modified, created_at, updated_at
		 FROM rss_sources ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("RSSソース一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var sources []model.RSSSource
	for rows.Next() {
		source := model.RSSSource{}
		var etag, lastModified sql.NullString

		if err := rows.Scan(
			&source.ID, &source.FeedURL, &source.Title,
			&etag, &lastModified,
			&source.CreatedAt, &source.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("RSSソースの読み取りに失敗しました: %w", err)
		}

		source.ETag = nullStringValue(etag)
		source.LastModified = nullStringValue(lastModified)

		sources = append(sources, source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("RSSソース一覧の走査に失敗しました: %w", err)
	}

	return sources, nil
}

// Create はRSSソースを作成する。
func (r *PostgresSourceRepo) Create(ctx context.Context, source *model.RSSSource) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO rss_sources (id, feed_url, title, etag, last_modified,
		                          created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		source.ID, source.FeedURL, source.Title,
		nullString(source.ETag), nullString(source.LastModified),
		source.CreatedAt, source.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("RSSソースの作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateFetchState はタイトルと条件付きGET用のETag/Last-Modifiedを更新する。
func (r *PostgresSourceRepo) UpdateFetchState(ctx context.Context, source *model.RSSSource) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE rss_sources SET
		    title = $2, etag = $3, last_modified = $4, updated_at = now()
		 WHERE id = $1`,
		source.ID, source.Title,
		nullString(source.ETag), nullString(source.LastModified),
	)
	if err != nil {
		return fmt.Errorf("RSSソースの更新に失敗しました: %w", err)
	}
	return nil
}

// Delete はRSSソースを削除する。
func (r *PostgresSourceRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM rss_sources WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("RSSソースの削除に失敗しました: %w", err)
	}
	return nil
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

// compile-time interface check
var _ SourceRepository = (*PostgresSourceRepo)(nil)
