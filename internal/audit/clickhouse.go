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

const (
	mirrorBufferSize    = 10_000
	mirrorFlushInterval = 100 * time.Millisecond
	mirrorFlushBatch    = 1000
	mirrorDrainTimeout  = 2 * time.Second
)

// ClickHouseMirror writes decision events to ClickHouse asynchronously.
// Write() is non-blocking; events are buffered and batch-inserted in a
// background goroutine.
type ClickHouseMirror struct {
	conn    driver.Conn
	buffer  chan *DecisionEvent
	done    chan struct{}
	flushed chan struct{}
	logger  *zap.Logger
}

// NewClickHouseMirror opens a connection and starts the flush loop.
func NewClickHouseMirror(dsn string, logger *zap.Logger) (*ClickHouseMirror, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("NewClickHouseMirror: %w", err)
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
		return nil, fmt.Errorf("NewClickHouseMirror: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("NewClickHouseMirror: %w", err)
	}

	m := &ClickHouseMirror{
		conn:    conn,
		buffer:  make(chan *DecisionEvent, mirrorBufferSize),
		done:    make(chan struct{}),
		flushed: make(chan struct{}),
		logger:  logger,
	}
	go m.flushLoop()
	return m, nil
}

// Write queues a decision event for async insertion.
// Non-blocking: drops the event if the buffer is full.
func (m *ClickHouseMirror) Write(event *DecisionEvent) {
	select {
	case m.buffer <- event:
	default:
		m.logger.Warn("clickhouse mirror buffer full, dropping event",
			zap.String("action_id", event.ActionID),
		)
	}
}

// Close signals the flush loop to drain remaining events.
func (m *ClickHouseMirror) Close() {
	close(m.done)
	<-m.flushed
}

func (m *ClickHouseMirror) flushLoop() {
	defer close(m.flushed)

	ticker := time.NewTicker(mirrorFlushInterval)
	defer ticker.Stop()

	batch := make([]*DecisionEvent, 0, mirrorFlushBatch)

	for {
		select {
		case event := <-m.buffer:
			batch = append(batch, event)
			if len(batch) >= mirrorFlushBatch {
				m.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				m.flush(batch)
				batch = batch[:0]
			}
		case <-m.done:
			drainCtx, cancel := context.WithTimeout(context.Background(), mirrorDrainTimeout)
			defer cancel()
		drainLoop:
			for {
				select {
				case event := <-m.buffer:
					batch = append(batch, event)
				case <-drainCtx.Done():
					break drainLoop
				default:
					break drainLoop
				}
			}
			if len(batch) > 0 {
				m.flush(batch)
			}
			return
		}
	}
}

func (m *ClickHouseMirror) flush(events []*DecisionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	batch, err := m.conn.PrepareBatch(ctx, `
		INSERT INTO decision_events (
			action_id, user_id, session_id, timestamp, source, environment,
			authority, scope, risk_score, confidence,
			outcome, blocked_by, gate_names, gate_passed, gate_reasons,
			steps_total, steps_done, latency_ms
		)
	`)
	if err != nil {
		m.logger.Error("clickhouse prepare batch failed", zap.Error(err))
		return
	}

	for _, e := range events {
		passedUint8 := make([]uint8, len(e.GatePassed))
		for i, p := range e.GatePassed {
			if p {
				passedUint8[i] = 1
			}
		}

		if err := batch.Append(
			e.ActionID,
			e.UserID,
			e.SessionID,
			e.Timestamp,
			e.Source,
			e.Environment,
			e.Authority,
			e.Scope,
			e.RiskScore,
			e.Confidence,
			e.Outcome,
			e.BlockedBy,
			e.GateNames,
			passedUint8,
			e.GateReasons,
			e.StepsTotal,
			e.StepsDone,
			e.LatencyMs,
		); err != nil {
			m.logger.Error("clickhouse append event failed",
				zap.String("action_id", e.ActionID),
				zap.Error(err),
			)
		}
	}

	if err := batch.Send(); err != nil {
		m.logger.Error("clickhouse batch send failed",
			zap.Int("batch_size", len(events)),
			zap.Error(err),
		)
	}
}

// LogMirror is a fallback MirrorWriter for local development.
type LogMirror struct {
	logger *zap.Logger
}

// NewLogMirror creates a LogMirror that outputs events to the given logger.
func NewLogMirror(logger *zap.Logger) *LogMirror {
	return &LogMirror{logger: logger}
}

func (m *LogMirror) Write(event *DecisionEvent) {
	m.logger.Info("decision_event",
		zap.String("action_id", event.ActionID),
		zap.String("user_id", event.UserID),
		zap.String("outcome", event.Outcome),
		zap.String("blocked_by", event.BlockedBy),
		zap.Float64("risk_score", event.RiskScore),
		zap.String("environment", event.Environment),
		zap.Int32("steps_done", event.StepsDone),
		zap.Float32("latency_ms", event.LatencyMs),
	)
}

func (m *LogMirror) Close() {}
