// Package cleanup は期限切れセッションの定期削除ジョブを提供する。
// セッション行は期限切れ後もFindByIDで無視されるため、削除は容量のための掃除にすぎない。
// Redisストアのセッションはキーの有効期限で消えるので、このジョブの対象外。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SessionCleanupJob は期限切れセッションの削除ジョブ。
type SessionCleanupJob struct {
	db     Executor
	logger *slog.Logger
	// Grace は期限切れからこの時間が経過した行だけを削除する。0なら即時。
	Grace time.Duration
}

// NewSessionCleanupJob は新しいSessionCleanupJobを生成する。
func NewSessionCleanupJob(db Executor, logger *slog.Logger) *SessionCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionCleanupJob{
		db:     db,
		logger: logger,
	}
}

// Run はexpires_atがGraceより前に過ぎたセッションを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *SessionCleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	result, err := j.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= now() - $1::interval`,
		graceInterval(j.Grace),
	)
	if err != nil {
		j.logger.Error("期限切れセッションの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// RunEvery はintervalごとにRunを実行し、ctxがキャンセルされると戻る。
// 起動直後に1回実行する。個々の失敗はログに残して次の周期を待つ。
func (j *SessionCleanupJob) RunEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		_ = j.Run(ctx)

		select {
		case <-ctx.Done():
			j.logger.Info("セッションクリーンアップを停止します")
			return
		case <-ticker.C:
		}
	}
}

// graceInterval はPostgreSQLのinterval文字列を返す。
func graceInterval(d time.Duration) string {
	return fmt.Sprintf("%d seconds", int64(d/time.Second))
}
