package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/crossfeed/internal/model"
)

// PostgresAccountRepo はPostgreSQLを使用した連携アカウントリポジトリ。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

// FindByID は指定IDの連携アカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByID(ctx context.Context, id string) (*model.LinkedAccount, error) {
	account := &model.LinkedAccount{}

	err := r.db.QueryRowContext(ctx,
		`SELECT id, platform, instance_url, handle, account_id, access_token,
		        created_at, updated_at
		 FROM linked_accounts WHERE id = $1`,
		id,
	).Scan(
		&account.ID, &account.Platform, &account.InstanceURL, &account.Handle,
		&account.AccountID, &account.AccessToken,
		&account.CreatedAt, &account.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("連携アカウントの取得に失敗しました: %w", err)
	}

	return account, nil
}

// FindByPlatformAccount はプラットフォーム・インスタンス・アカウントIDの組で検索する。
// 見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByPlatformAccount(ctx context.Context, platform model.Platform, instanceURL, accountID string) (*model.LinkedAccount, error) {
	account := &model.LinkedAccount{}

	err := r.db.QueryRowContext(ctx,
		`SELECT id, platform, instance_url, handle, account_id, access_token,
		        created_at, updated_at
		 FROM linked_accounts
		 WHERE platform = $1 AND instance_url = $2 AND account_id = $3`,
		platform, instanceURL, accountID,
	).Scan(
		&account.ID, &account.Platform, &account.InstanceURL, &account.Handle,
		&account.AccountID, &account.AccessToken,
		&account.CreatedAt, &account.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("連携アカウントの検索に失敗しました: %w", err)
	}

	return account, nil
}

// List は全連携アカウントを作成日時の昇順で取得する。
func (r *PostgresAccountRepo) List(ctx context.Context) ([]model.LinkedAccount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, platform, instance_url, handle, account_id, access_token,
		        created_at, updated_at
		 FROM linked_accounts ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("連携アカウント一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var accounts []model.LinkedAccount
	for rows.Next() {
		account := model.LinkedAccount{}
		if err := rows.Scan(
			&account.ID, &account.Platform, &account.InstanceURL, &account.Handle,
			&account.AccountID, &account.AccessToken,
			&account.CreatedAt, &account.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("連携アカウントの読み取りに失敗しました: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("連携アカウント一覧の走査に失敗しました: %w", err)
	}

	return accounts, nil
}

// Create は連携アカウントを作成する。
func (r *PostgresAccountRepo) Create(ctx context.Context, account *model.LinkedAccount) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO linked_accounts (id, platform, instance_url, handle, account_id,
		                              access_token, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		account.ID, account.Platform, account.InstanceURL, account.Handle,
		account.AccountID, account.AccessToken,
		account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("連携アカウントの作成に失敗しました: %w", err)
	}
	return nil
}

// Delete は連携アカウントを削除する。
func (r *PostgresAccountRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM linked_accounts WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("連携アカウントの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ AccountRepository = (*PostgresAccountRepo)(nil)
