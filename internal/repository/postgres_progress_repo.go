package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/learnhub/internal/model"
)

// PostgresProgressRepo はPostgreSQLを使用した進捗リポジトリ。
type PostgresProgressRepo struct {
	db *sql.DB
}

// NewPostgresProgressRepo はPostgresProgressRepoを生成する。
func NewPostgresProgressRepo(db *sql.DB) *PostgresProgressRepo {
	return &PostgresProgressRepo{db: db}
}

// ListByUserID はユーザーの進捗をスキル名順で返す。
func (r *PostgresProgressRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Progress, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, skill, percent, completed, updated_at
		 FROM progress
		 WHERE user_id = $1
		 ORDER BY skill`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	var records []*model.Progress
	for rows.Next() {
		p := &model.Progress{}
		if err := rows.Scan(&p.UserID, &p.Skill, &p.Percent, &p.Completed, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		records = append(records, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate progress: %w", err)
	}
	return records, nil
}

// Upsert は(user_id, skill)の進捗を作成または上書きする。
func (r *PostgresProgressRepo) Upsert(ctx context.Context, progress *model.Progress) (*model.Progress, error) {
	saved := &model.Progress{}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO progress (user_id, skill, percent, completed, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (user_id, skill) DO UPDATE SET
			percent = EXCLUDED.percent,
			completed = EXCLUDED.completed,
			updated_at = EXCLUDED.updated_at
		 RETURNING user_id, skill, percent, completed, updated_at`,
		progress.UserID, progress.Skill, progress.Percent, progress.Completed,
	).Scan(&saved.UserID, &saved.Skill, &saved.Percent, &saved.Completed, &saved.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert progress: %w", err)
	}
	return saved, nil
}

// compile-time interface check
var _ ProgressRepository = (*PostgresProgressRepo)(nil)
