// Package viewer はリクエストごとに「現在のユーザー」を解決する。
//
// 解決は3段階に分かれる。トークンからセッション（auth）、セッションからプロフィール
// （UserFinder）、進捗から導出指標（progress.Calculator）。どの段階で失敗しても
// 結果はnil（未認証）になり、書き込みは一切行わない。
package viewer

import (
	"context"
	"log/slog"

	"github.com/hitoshi/learnhub/internal/model"
	"github.com/hitoshi/learnhub/internal/progress"
)

// SessionResolver は署名付きトークンを有効なセッションに解決する。
type SessionResolver interface {
	Resolve(ctx context.Context, token string) *model.Session
}

// UserFinder はユーザーIDでプロフィールを取得する。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// ProgressLister はユーザーの進捗を取得する。
type ProgressLister interface {
	ListByUserID(ctx context.Context, userID string) ([]*model.Progress, error)
}

// Binder はセッションと現在のユーザー像を結び付ける。
type Binder struct {
	sessions SessionResolver
	users    UserFinder
	progress ProgressLister
	calc     progress.Calculator
}

// NewBinder はBinderを生成する。
func NewBinder(sessions SessionResolver, users UserFinder, progressLister ProgressLister, calc progress.Calculator) *Binder {
	return &Binder{
		sessions: sessions,
		users:    users,
		progress: progressLister,
		calc:     calc,
	}
}

// CurrentUser はセッショントークンから現在のユーザーを解決する。
// トークンがない・無効・失効済み、またはプロフィールや進捗の取得に失敗した場合はnilを返す。
func (b *Binder) CurrentUser(ctx context.Context, token string) *model.CurrentUser {
	return b.ForSession(ctx, b.sessions.Resolve(ctx, token))
}

// ForSession は解決済みのセッションから現在のユーザーを組み立てる。
// ミドルウェアでセッションを解決済みのリクエストではトークン検証を繰り返さない。
func (b *Binder) ForSession(ctx context.Context, session *model.Session) *model.CurrentUser {
	if session == nil {
		return nil
	}

	user, err := b.users.FindByID(ctx, session.UserID)
	if err != nil {
		slog.Error("failed to load current user",
			slog.String("user_id", session.UserID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if user == nil {
		// 有効なセッションなのにプロフィールがない
		slog.Warn("session references missing user", slog.String("user_id", session.UserID))
		return nil
	}

	records, err := b.progress.ListByUserID(ctx, user.ID)
	if err != nil {
		slog.Error("failed to load progress",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	m := model.ProgressMap(records)
	return &model.CurrentUser{
		User:     user,
		Progress: m,
		Stats:    b.calc.DeriveStats(m),
	}
}
