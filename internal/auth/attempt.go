package auth

import (
	"log/slog"
	"time"

	"github.com/hitoshi/learnhub/internal/metrics"
	"github.com/hitoshi/learnhub/internal/model"
)

// State はセッションライフサイクルの状態。
type State int

const (
	// StateAnonymous は未認証状態。ログアウト・期限切れ・サインイン失敗後もここに戻る。
	StateAnonymous State = iota
	// StateAuthenticating は資格情報の送信またはOAuth開始後、結果が確定するまでの状態。
	StateAuthenticating
	// StateAuthenticated はセッションが発行された状態。
	StateAuthenticated
)

// String は状態名を返す。
func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Attempt は1回のサインイン試行の状態遷移を追跡する。
// Authenticatingから出る遷移はSucceedかFailのどちらか一度だけ有効で、以降の呼び出しは無視される。
type Attempt struct {
	provider string
	state    State
	started  time.Time
	userID   string
	err      error
	metrics  metrics.MetricsCollector
}

// newAttempt はAnonymousからAuthenticatingに遷移した試行を開始する。
func newAttempt(provider string, m metrics.MetricsCollector) *Attempt {
	a := &Attempt{
		provider: provider,
		state:    StateAuthenticating,
		started:  time.Now(),
		metrics:  m,
	}
	slog.Debug("sign-in started",
		slog.String("provider", provider),
		slog.String("from", StateAnonymous.String()),
		slog.String("to", a.state.String()),
	)
	return a
}

// State は現在の状態を返す。
func (a *Attempt) State() State { return a.state }

// Err は失敗理由を返す。
func (a *Attempt) Err() error { return a.err }

// UserID は成功時のユーザーIDを返す。
func (a *Attempt) UserID() string { return a.userID }

// Succeed はAuthenticatedに遷移する。
func (a *Attempt) Succeed(userID string) {
	if a.state != StateAuthenticating {
		return
	}
	a.state = StateAuthenticated
	a.userID = userID
	a.metrics.RecordSignInAttempt(a.provider, metrics.ResultSuccess)
	a.metrics.RecordSignInLatency(a.provider, time.Since(a.started))

	slog.Info("sign-in succeeded",
		slog.String("provider", a.provider),
		slog.String("user_id", userID),
	)
}

// Fail はAnonymousに戻し、受け取ったエラーをそのまま返す。
func (a *Attempt) Fail(err error) error {
	if a.state != StateAuthenticating {
		return err
	}
	a.state = StateAnonymous
	a.err = err
	a.metrics.RecordSignInLatency(a.provider, time.Since(a.started))

	attrs := []any{
		slog.String("provider", a.provider),
		slog.String("error", err.Error()),
	}
	if model.IsCategory(err, model.CategoryValidation) || model.IsCategory(err, model.CategoryAuth) {
		a.metrics.RecordSignInAttempt(a.provider, metrics.ResultFailure)
		slog.Warn("sign-in rejected", attrs...)
	} else {
		a.metrics.RecordSignInAttempt(a.provider, metrics.ResultError)
		slog.Error("sign-in failed", attrs...)
	}
	return err
}
