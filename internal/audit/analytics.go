package audit

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

// AnalyticsReader provides read access to the ClickHouse decision_events
// table.
type AnalyticsReader struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewAnalyticsReader opens a ClickHouse connection for read queries.
func NewAnalyticsReader(dsn string, logger *zap.Logger) (*AnalyticsReader, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("NewAnalyticsReader: %w", err)
	}
	// TLS is required for secure deployments (e.g. ClickHouse Cloud on
	// port 9440). ParseDSN sets this when ?secure=true is in the DSN, but
	// it is enforced here as a safety net to match ClickHouse Cloud's
	// official Go connection example. Plaintext local ClickHouse is not
	// supported by this sink.
	if opts.TLS == nil {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("NewAnalyticsReader: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("NewAnalyticsReader: %w", err)
	}

	return &AnalyticsReader{conn: conn, logger: logger}, nil
}

// Close closes the ClickHouse connection.
func (r *AnalyticsReader) Close() error {
	return r.conn.Close()
}

// DecisionSummary holds aggregate decision counts over a time range.
type DecisionSummary struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	Blocked    int `json:"blocked"`
	Failed     int `json:"failed"`
	RolledBack int `json:"rolled_back"`
}

// BlockBucket holds an hourly blocked-action count.
type BlockBucket struct {
	Hour  string `json:"hour"`
	Count int    `json:"count"`
}

// UserBlockCount holds a user and how often their actions were blocked.
type UserBlockCount struct {
	UserID string `json:"user_id"`
	Count  int    `json:"count"`
}

// GetSummary returns decision outcome counts over the given number of days.
func (r *AnalyticsReader) GetSummary(ctx context.Context, days int) (*DecisionSummary, error) {
	rangeStart := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)

	var total, completed, blocked, failed, rolledBack uint64
	err := r.conn.QueryRow(ctx,
		"SELECT count() as total, "+
			"countIf(outcome = 'completed') as completed, "+
			"countIf(outcome = 'blocked') as blocked, "+
			"countIf(outcome = 'failed') as failed, "+
			"countIf(outcome = 'rolled_back') as rolled_back "+
			"FROM decision_events WHERE timestamp >= @range_start",
		clickhouse.Named("range_start", rangeStart),
	).Scan(&total, &completed, &blocked, &failed, &rolledBack)
	if err != nil {
		return nil, fmt.Errorf("GetSummary: %w", err)
	}
	return &DecisionSummary{
		Total:      int(total),
		Completed:  int(completed),
		Blocked:    int(blocked),
		Failed:     int(failed),
		RolledBack: int(rolledBack),
	}, nil
}

// BlocksOverTime returns hourly blocked-action counts over the given number
// of days.
func (r *AnalyticsReader) BlocksOverTime(ctx context.Context, days int) ([]BlockBucket, error) {
	rangeStart := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)

	rows, err := r.conn.Query(ctx,
		"SELECT toStartOfHour(timestamp) as hour, count() as count "+
			"FROM decision_events "+
			"WHERE outcome = 'blocked' AND timestamp >= @range_start "+
			"GROUP BY hour ORDER BY hour",
		clickhouse.Named("range_start", rangeStart),
	)
	if err != nil {
		return nil, fmt.Errorf("BlocksOverTime: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []BlockBucket
	for rows.Next() {
		var hour time.Time
		var count uint64
		if err := rows.Scan(&hour, &count); err != nil {
			return nil, fmt.Errorf("BlocksOverTime scan: %w", err)
		}
		out = append(out, BlockBucket{Hour: hour.Format(time.RFC3339), Count: int(count)})
	}
	return out, rows.Err()
}

// AnalyticsSource is the read surface the periodic report consumes.
// *AnalyticsReader implements it.
type AnalyticsSource interface {
	GetSummary(ctx context.Context, days int) (*DecisionSummary, error)
	TopBlockedUsers(ctx context.Context, days, limit int) ([]UserBlockCount, error)
}

// ReportAnalytics logs a one-day decision summary and, when anything was
// blocked, the most-blocked users. Driven by the periodic maintenance
// sweep.
func ReportAnalytics(ctx context.Context, src AnalyticsSource, logger *zap.Logger) error {
	summary, err := src.GetSummary(ctx, 1)
	if err != nil {
		return fmt.Errorf("ReportAnalytics: %w", err)
	}
	logger.Info("decision summary",
		zap.Int("total", summary.Total),
		zap.Int("completed", summary.Completed),
		zap.Int("blocked", summary.Blocked),
		zap.Int("failed", summary.Failed),
		zap.Int("rolled_back", summary.RolledBack),
	)
	if summary.Blocked == 0 {
		return nil
	}

	top, err := src.TopBlockedUsers(ctx, 1, 5)
	if err != nil {
		return fmt.Errorf("ReportAnalytics: %w", err)
	}
	for _, u := range top {
		logger.Info("blocked actions by user",
			zap.String("user_id", u.UserID),
			zap.Int("count", u.Count),
		)
	}
	return nil
}

// TopBlockedUsers returns the users whose actions were blocked most often
// over the given number of days.
func (r *AnalyticsReader) TopBlockedUsers(ctx context.Context, days, limit int) ([]UserBlockCount, error) {
	rangeStart := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)

	rows, err := r.conn.Query(ctx,
		"SELECT user_id, count() as count "+
			"FROM decision_events "+
			"WHERE outcome = 'blocked' AND user_id != '' AND timestamp >= @range_start "+
			"GROUP BY user_id ORDER BY count DESC LIMIT @limit",
		clickhouse.Named("range_start", rangeStart),
		clickhouse.Named("limit", uint32(limit)),
	)
	if err != nil {
		return nil, fmt.Errorf("TopBlockedUsers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []UserBlockCount
	for rows.Next() {
		var uid string
		var count uint64
		if err := rows.Scan(&uid, &count); err != nil {
			return nil, fmt.Errorf("TopBlockedUsers scan: %w", err)
		}
		out = append(out, UserBlockCount{UserID: uid, Count: int(count)})
	}
	return out, rows.Err()
}
