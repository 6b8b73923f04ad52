// Package cleanup は期限切れセッションの削除ジョブを提供する。
// 有効期限の判定はセッション解決時に行われるため、このジョブはストアの肥大化を防ぐためだけに使う。
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
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SessionPurgeJob は有効期限を過ぎたセッション行を削除するジョブ。
// 冪等であり、何度実行しても結果は変わらない。
type SessionPurgeJob struct {
	db     Executor
	logger *slog.Logger
	now    func() time.Time
}

// NewSessionPurgeJob は新しいSessionPurgeJobを生成する。
func NewSessionPurgeJob(db Executor, logger *slog.Logger) *SessionPurgeJob {
	return &SessionPurgeJob{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Run はexpires_atが現在時刻以前のセッションを削除し、削除件数を返す。
func (j *SessionPurgeJob) Run(ctx context.Context) (int64, error) {
	start := time.Now()

	query := `DELETE FROM sessions WHERE expires_at <= $1`
	result, err := j.db.ExecContext(ctx, query, j.now().UTC())
	if err != nil {
		j.logger.Error("failed to purge expired sessions",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("failed to purge expired sessions: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get purged session count: %w", err)
	}

	j.logger.Info("expired sessions purged",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return deletedCount, nil
}
