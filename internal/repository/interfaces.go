// Package repository はデータアクセス層を提供する。
package repository

import (
	"context"

	"github.com/hitoshi/crossfeed/internal/model"
)

// AccountRepository は連携アカウントのデータアクセスインターフェース。
type AccountRepository interface {
	// FindByID は指定IDの連携アカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.LinkedAccount, error)
	// FindByPlatformAccount はプラットフォーム・インスタンス・アカウントIDの組で検索する。
	// 見つからない場合はnilを返す。重複登録の検出に使用する。
	FindByPlatformAccount(ctx context.Context, platform model.Platform, instanceURL, accountID string) (*model.LinkedAccount, error)
	// List は全連携アカウントを作成日時の昇順で取得する。
	List(ctx context.Context) ([]model.LinkedAccount, error)
	// Create は連携アカウントを作成する。
	Create(ctx context.Context, account *model.LinkedAccount) error
	// Delete は連携アカウントを削除する。
	Delete(ctx context.Context, id string) error
}

// SourceRepository はRSSソースのデータアクセスインターフェース。
type SourceRepository interface {
	// FindByID は指定IDのRSSソースを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.RSSSource, error)
	// FindByFeedURL はフィードURLでRSSソースを検索する。見つからない場合はnilを返す。
	FindByFeedURL(ctx context.Context, feedURL string) (*model.RSSSource, error)
	// List は全RSSソースを作成日時の昇順で取得する。
	List(ctx context.Context) ([]model.RSSSource, error)
	// Create はRSSソースを作成する。
	Create(ctx context.Context, source *model.RSSSource) error
	// UpdateFetchState はタイトルと条件付きGET用のETag/Last-Modifiedを更新する。
	UpdateFetchState(ctx context.Context, source *model.RSSSource) error
	// Delete はRSSソースを削除する。
	Delete(ctx context.Context, id string) error
}
