package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/learnhub/internal/model"
)

// PostgresCredentialRepo はPostgreSQLを使用したメール/パスワード資格情報リポジトリ。
type PostgresCredentialRepo struct {
	db *sql.DB
}

// NewPostgresCredentialRepo はPostgresCredentialRepoを生成する。
func NewPostgresCredentialRepo(db *sql.DB) *PostgresCredentialRepo {
	return &PostgresCredentialRepo{db: db}
}

// FindByEmail は正規化済みメールアドレスで資格情報を検索する。見つからない場合はnilを返す。
func (r *PostgresCredentialRepo) FindByEmail(ctx context.Context, email string) (*model.Credential, error) {
	cred := &model.Credential{}
	err := r.db.QueryRowContext(ctx,
		`SELECT email, user_id, password_hash, created_at
		 FROM password_credentials
		 WHERE email = $1`,
		email,
	).Scan(&cred.Email, &cred.UserID, &cred.PasswordHash, &cred.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find credential: %w", err)
	}
	return cred, nil
}

// CreateWithUser はユーザー、identity、資格情報を同一トランザクションで作成する。
// 同じメールアドレスで同時にサインアップした場合、後続はErrCredentialExistsになる。
func (r *PostgresCredentialRepo) CreateWithUser(ctx context.Context, user *model.User, identity *model.Identity, credential *model.Credential) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertUserAndIdentity(ctx, tx, user, identity); err != nil {
		if errors.Is(err, ErrIdentityExists) {
			return ErrCredentialExists
		}
		return err
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO password_credentials (email, user_id, password_hash, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (email) DO NOTHING`,
		credential.Email, credential.UserID, credential.PasswordHash, credential.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert credential: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrCredentialExists
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// compile-time interface check
var _ CredentialRepository = (*PostgresCredentialRepo)(nil)
