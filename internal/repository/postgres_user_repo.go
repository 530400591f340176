package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/learnhub/internal/model"
)

const userColumns = `id, email, name, image, bio, github_username, twitter_username,
	linkedin_username, website, created_at, updated_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.Name, &user.Image, &user.Bio,
		&user.GitHubUsername, &user.TwitterUsername, &user.LinkedInUsername, &user.Website,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
// identityのINSERTはON CONFLICT DO NOTHINGで行い、競合した場合はロールバックして
// ErrIdentityExistsを返す。同時に初回ログインした場合でもユーザー行は1つしか残らない。
func (r *PostgresUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertUserAndIdentity(ctx, tx, user, identity); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// insertUserAndIdentity はトランザクション内でユーザーとidentityを挿入する。
func insertUserAndIdentity(ctx context.Context, tx *sql.Tx, user *model.User, identity *model.Identity) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO users (id, email, name, image, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Email, user.Name, user.Image, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO identities (id, user_id, provider, provider_user_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (provider, provider_user_id) DO NOTHING`,
		identity.ID, identity.UserID, identity.Provider, identity.ProviderUserID, identity.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert identity: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrIdentityExists
	}
	return nil
}

// SyncProviderFields はIdP由来のフィールドのみを更新する。
// bio等のプロフィール固有フィールドには触れない。
func (r *PostgresUserRepo) SyncProviderFields(ctx context.Context, id, email, name, image string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`UPDATE users SET
			email = CASE WHEN $2 <> '' THEN $2 ELSE email END,
			name = CASE WHEN $3 <> '' THEN $3 ELSE name END,
			image = CASE WHEN $4 <> '' THEN $4 ELSE image END,
			updated_at = now()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, email, name, image,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to sync provider fields: %w", err)
	}
	return user, nil
}

// UpdateProfile はプロフィール固有のフィールドを部分更新する。
// nilのフィールドはCOALESCEにより既存値を維持する。
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, id string, update model.ProfileUpdate) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`UPDATE users SET
			name = COALESCE($2, name),
			bio = COALESCE($3, bio),
			github_username = COALESCE($4, github_username),
			twitter_username = COALESCE($5, twitter_username),
			linkedin_username = COALESCE($6, linkedin_username),
			website = COALESCE($7, website),
			updated_at = now()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, update.Name, update.Bio, update.GitHubUsername,
		update.TwitterUsername, update.LinkedInUsername, update.Website,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
